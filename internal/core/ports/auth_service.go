package ports

import (
	"context"
	"time"
)

// RegisterInput is the DTO passed from the transport layer on registration.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	FullName    string
	PhoneNumber string
}

// LoginInput carries a single identifier matched against username or email.
type LoginInput struct {
	UsernameOrEmail string
	Password        string
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token     string
	TokenType string
	ID        string
	Username  string
	Email     string
	FullName  string
}

// UpdateProfileInput carries the editable profile fields.
type UpdateProfileInput struct {
	Username    string
	Email       string
	FullName    string
	PhoneNumber string
}

// UserProfile is the public projection of a user. It never holds the hash.
type UserProfile struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	FullName    string    `json:"fullName"`
	PhoneNumber string    `json:"phoneNumber"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ProfileUpdate is the result of UpdateProfile. Token is set only when the
// username changed, since tokens issued for the old subject stop resolving.
type ProfileUpdate struct {
	Profile *UserProfile
	Token   string
}

// AuthService defines the authentication use cases.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) error
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
	GetCurrentUser(ctx context.Context, identity string) (*UserProfile, error)
	UpdateProfile(ctx context.Context, identity string, in UpdateProfileInput) (*ProfileUpdate, error)
	Logout(ctx context.Context)
}
