package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

var verificationHTML = template.Must(template.New("verify").Parse(`<!doctype html>
<html>
<body style="font-family: sans-serif">
<p>Hi {{.Username}},</p>
<p>Confirm your email address to finish setting up your Inkwell account.</p>
<p><a href="{{.Link}}">Verify my email</a></p>
<p>The link expires in {{.Hours}} hours. If you did not sign up, ignore this message.</p>
</body>
</html>`))

// VerificationMessage renders the account verification email.
func VerificationMessage(to, username, link string, hours int) (Message, error) {
	data := struct {
		Username string
		Link     string
		Hours    int
	}{username, link, hours}

	var html bytes.Buffer
	if err := verificationHTML.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render verification email: %w", err)
	}

	text := fmt.Sprintf("Hi %s,\n\nConfirm your email address to finish setting up your Inkwell account:\n\n%s\n\nThe link expires in %d hours. If you did not sign up, ignore this message.\n",
		username, link, hours)

	return Message{
		To:      to,
		Subject: "Verify your email address",
		Text:    text,
		HTML:    html.String(),
	}, nil
}
