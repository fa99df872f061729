package session

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Role is the closed set of roles the dashboard knows about.
type Role string

const (
	RoleNone  Role = ""
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// rolePrefix is what the remote authority puts in front of every role claim.
const rolePrefix = "ROLE_"

// ParseRole strips the authority prefix and maps the claim onto the closed set.
// Comparison is case-sensitive; anything else is RoleNone.
func ParseRole(claim string) Role {
	switch Role(strings.TrimPrefix(strings.TrimSpace(claim), rolePrefix)) {
	case RoleAdmin:
		return RoleAdmin
	case RoleUser:
		return RoleUser
	default:
		return RoleNone
	}
}

func (r Role) String() string {
	return string(r)
}

// Identity is the user-facing view of the current session.
type Identity struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// DisplayName is the username as the dashboard shows it.
func (i Identity) DisplayName() string {
	// a Caser keeps state between calls, so one per call
	return cases.Upper(language.Und).String(i.Username)
}

func identityFromClaims(c *Claims) Identity {
	return Identity{
		Username: strings.TrimSpace(c.Subject),
		Role:     ParseRole(c.Role),
	}
}
