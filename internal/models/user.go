package models

import "time"

// Roles a user may hold. Admin satisfies every role check.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Socials holds a user's public profile links.
type Socials struct {
	Twitter  string `json:"twitter"`
	Github   string `json:"github"`
	Linkedin string `json:"linkedin"`
	Website  string `json:"website"`
}

// User represents an account on the blog.
type User struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	Username  string  `gorm:"uniqueIndex;size:20;not null" json:"username"`
	Email     string  `gorm:"uniqueIndex;not null" json:"email"`
	Password  string  `gorm:"not null" json:"-"`
	Role      string  `gorm:"size:16;not null;default:user" json:"role"`
	AvatarURL string  `json:"avatar_url"`
	Bio       string  `gorm:"type:text" json:"bio"`
	Socials   Socials `gorm:"embedded;embeddedPrefix:social_" json:"socials"`

	EmailVerified       bool       `gorm:"not null;default:false" json:"email_verified"`
	VerificationToken   *string    `gorm:"uniqueIndex;size:64" json:"-"`
	VerificationExpires *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// PublicProfile is the view of a user shown to other users.
type PublicProfile struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	AvatarURL string    `json:"avatar_url"`
	Bio       string    `json:"bio"`
	Socials   Socials   `json:"socials"`
	CreatedAt time.Time `json:"created_at"`
}

// Public drops the email address and verification state.
func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		AvatarURL: u.AvatarURL,
		Bio:       u.Bio,
		Socials:   u.Socials,
		CreatedAt: u.CreatedAt,
	}
}

// authorOf returns the public view of a preloaded author, or nil when the
// association was not loaded.
func authorOf(u *User) *PublicProfile {
	if u.ID == 0 {
		return nil
	}
	p := u.Public()
	return &p
}
