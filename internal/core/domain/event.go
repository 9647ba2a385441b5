package domain

import "time"

// AuthEventType names an auditable step of the authentication workflow.
type AuthEventType string

const (
	EventRegister      AuthEventType = "register"
	EventLogin         AuthEventType = "login"
	EventProfileUpdate AuthEventType = "profile_update"
	EventLogout        AuthEventType = "logout"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// AuthEvent is an append-only audit record. It never carries credentials.
type AuthEvent struct {
	Type AuthEventType
	// Username is the resolved username, or the raw identifier of a failed login.
	Username   string
	Outcome    string
	Reason     string // optional: short failure reason, e.g. "username_taken"
	OccurredAt time.Time
}
