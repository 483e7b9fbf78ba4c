// Package access restricts the bot to a single Telegram user.
package access

import (
	"fmt"
	"strings"
)

// AccessDeniedError is returned for every sender other than the allowed user.
type AccessDeniedError struct {
	Username string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied for @%s", e.Username)
}

// Guard checks sender identities against the configured username.
type Guard struct {
	allowed string
}

// NewGuard creates a guard for the given username. A leading "@" is ignored.
func NewGuard(username string) *Guard {
	return &Guard{allowed: strings.TrimPrefix(strings.TrimSpace(username), "@")}
}

// Check returns nil when username is the allowed user.
// Telegram usernames are case-insensitive, so the comparison is too.
func (g *Guard) Check(username string) error {
	if g.allowed == "" || username == "" || !strings.EqualFold(username, g.allowed) {
		return &AccessDeniedError{Username: username}
	}
	return nil
}
