package session

import "errors"

// Session errors. ErrNoSession and ErrMalformedToken are reported to the user
// the same way; the distinction only shows up in logs.
var (
	ErrNoSession      = errors.New("no session")
	ErrMalformedToken = errors.New("malformed token")
	ErrExpired        = errors.New("session expired")
	ErrRoleMismatch   = errors.New("role mismatch")
)

// User visible messages.
const (
	MessageUnauthorized = "UNAUTHORIZED ACCESS"
	MessageExpired      = "SESSION EXPIRED, PLEASE SIGN IN AGAIN"
	messageDenied       = "Access denied. Required role: %s"
)

// Message maps a session error to the text shown to the user.
func Message(err error) string {
	if errors.Is(err, ErrExpired) {
		return MessageExpired
	}
	return MessageUnauthorized
}
