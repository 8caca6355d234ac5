// Package mailer delivers transactional email.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/wneessen/go-mail"
)

// Config is read from the environment. An empty Host selects the log sender.
type Config struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"MAIL_FROM" envDefault:"Inkwell <no-reply@inkwell.local>"`
	// TLS is one of "mandatory", "opportunistic" or "none".
	TLS string `env:"SMTP_TLS" envDefault:"opportunistic"`
}

// LoadConfig parses mail settings from the process environment.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse mail config: %w", err)
	}
	return cfg, nil
}

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a message or reports why it could not.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP sender, or a LogSender when no host is configured.
func New(cfg Config, logger *slog.Logger) Sender {
	if strings.TrimSpace(cfg.Host) == "" {
		return &LogSender{Logger: logger}
	}
	return &SMTPSender{cfg: cfg}
}

// SMTPSender delivers through an SMTP relay, dialing once per message.
type SMTPSender struct {
	cfg Config
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(tlsPolicy(s.cfg.TLS)),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func tlsPolicy(name string) mail.TLSPolicy {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mandatory":
		return mail.TLSMandatory
	case "none":
		return mail.NoTLS
	default:
		return mail.TLSOpportunistic
	}
}

// LogSender writes messages to the log instead of sending them. It is used in
// development when no SMTP host is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "mail not sent, no SMTP host configured",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return nil
}
