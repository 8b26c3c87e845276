package user

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already in use")
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	TFASecret    *string   `json:"tfaSecret,omitempty"`
	TFAURL       *string   `json:"tfaUrl,omitempty"`
	TFAEnabled   bool      `json:"tfaEnabled"`
	CreatedAt    time.Time `json:"createdOn"`
}

// HasTwoFactorSecret reports whether a TOTP secret has been enrolled.
func (u User) HasTwoFactorSecret() bool {
	return u.TFASecret != nil && *u.TFASecret != "" && u.TFAURL != nil && *u.TFAURL != ""
}

// Public returns a copy safe to send to the account owner.
// Once 2FA is enabled the secret and provisioning URL are hidden.
func (u User) Public() User {
	out := u
	out.PasswordHash = ""

	if u.TFAEnabled {
		out.TFASecret = nil
		out.TFAURL = nil
	}

	return out
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
