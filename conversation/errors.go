package conversation

import (
	"errors"

	"github.com/kyubik/qbitbot/qbittorrent"
)

// ErrorText renders err as the reply shown to the chat.
func ErrorText(err error) string {
	var groupErr *qbittorrent.InvalidGroupError

	switch {
	case errors.Is(err, qbittorrent.ErrTorrentNotFound):
		return "Torrent not found"
	case errors.Is(err, qbittorrent.ErrInvalidLink):
		return "Torrent file is not valid"
	case errors.Is(err, qbittorrent.ErrUnavailable):
		return "qBittorrent is temporarily unavailable, please try again later"
	case errors.As(err, &groupErr):
		return groupErr.Error()
	default:
		return "Something went wrong: " + err.Error()
	}
}

// isTransient reports whether the step that produced err may be retried
// by resending the same input.
func isTransient(err error) bool {
	return errors.Is(err, qbittorrent.ErrUnavailable)
}
