package domain

import (
	"strings"
	"time"
)

// User models a registered account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName,omitempty"`
	PhoneNumber  string    `json:"phoneNumber,omitempty"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NormalizeEmail trims and lower-cases an email address. Emails are matched
// case-insensitively; usernames are not.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
