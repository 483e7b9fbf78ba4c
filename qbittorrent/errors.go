package qbittorrent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/autobrr/go-qbittorrent"
)

// Common errors returned by the qBittorrent client.
var (
	// ErrTorrentNotFound is returned when no torrent name matches the lookup.
	ErrTorrentNotFound = errors.New("torrent not found")

	// ErrInvalidLink is returned when qBittorrent rejects a torrent link or file.
	ErrInvalidLink = errors.New("torrent file is not valid")

	// ErrNotLoggedIn is returned when an API call is made without a session.
	ErrNotLoggedIn = errors.New("not logged in to qBittorrent")

	// ErrUnavailable wraps transport failures talking to qBittorrent.
	ErrUnavailable = errors.New("qBittorrent is temporarily unavailable")
)

// AuthReason tells why a login attempt was rejected.
type AuthReason string

const (
	ReasonBanned         AuthReason = "banned"
	ReasonBadCredentials AuthReason = "bad_credentials"
)

// AuthError is returned by Login when qBittorrent refuses the credentials.
type AuthError struct {
	Reason AuthReason
}

func (e *AuthError) Error() string {
	if e.Reason == ReasonBanned {
		return "your IP is banned for too many failed login attempts"
	}
	return "incorrect username or password"
}

// Unwrap maps the reason onto the go-qbittorrent sentinel errors.
func (e *AuthError) Unwrap() error {
	if e.Reason == ReasonBanned {
		return qbittorrent.ErrIPBanned
	}
	return qbittorrent.ErrBadCredentials
}

// InvalidGroupError is returned by List for an unknown group name.
type InvalidGroupError struct {
	Group string
}

func (e *InvalidGroupError) Error() string {
	return fmt.Sprintf("%s: unknown group. Available groups: %s", e.Group, strings.Join(Groups, ", "))
}

// APIError represents an unexpected qBittorrent WebAPI response
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("qbittorrent API error: %s: status %d", e.Endpoint, e.StatusCode)
}
