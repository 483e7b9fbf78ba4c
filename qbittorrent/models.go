package qbittorrent

import (
	"strings"
	"time"

	"github.com/autobrr/go-qbittorrent"
)

// qBittorrent reports this ETA (100 days) when the ETA is undefined.
const infiniteETA = 8640000

// TorrentInfo contains information about a torrent
type TorrentInfo struct {
	Hash         string
	Name         string
	State        string
	SavePath     string
	Category     string
	Tags         []string
	Size         int64
	Downloaded   int64
	Uploaded     int64
	Progress     float64
	Ratio        float64
	DlSpeed      int64
	UpSpeed      int64
	ETA          int64
	Seeds        int64
	Leechs       int64
	AddedOn      time.Time
	CompletionOn time.Time
}

func newTorrentInfo(t qbittorrent.Torrent) *TorrentInfo {
	info := &TorrentInfo{
		Hash:       t.Hash,
		Name:       t.Name,
		State:      string(t.State),
		SavePath:   t.SavePath,
		Category:   t.Category,
		Size:       int64(t.Size),
		Downloaded: int64(t.Downloaded),
		Uploaded:   int64(t.Uploaded),
		Progress:   float64(t.Progress),
		Ratio:      float64(t.Ratio),
		DlSpeed:    int64(t.DlSpeed),
		UpSpeed:    int64(t.UpSpeed),
		ETA:        int64(t.ETA),
		Seeds:      int64(t.NumSeeds),
		Leechs:     int64(t.NumLeechs),
		AddedOn:    time.Unix(int64(t.AddedOn), 0),
	}

	if t.CompletionOn > 0 {
		info.CompletionOn = time.Unix(int64(t.CompletionOn), 0)
	}

	for _, tag := range strings.Split(t.Tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			info.Tags = append(info.Tags, tag)
		}
	}

	return info
}

// IsComplete reports whether all pieces have been downloaded
func (t *TorrentInfo) IsComplete() bool {
	return t.Progress >= 1
}

// IsDownloading reports whether data is being downloaded right now
func (t *TorrentInfo) IsDownloading() bool {
	return t.State == string(qbittorrent.TorrentStateDownloading) ||
		t.State == string(qbittorrent.TorrentStateForcedDl)
}

// IsActivelySeeding checks if the torrent is actively seeding
func (t *TorrentInfo) IsActivelySeeding() bool {
	switch qbittorrent.TorrentState(t.State) {
	case qbittorrent.TorrentStateUploading, qbittorrent.TorrentStateStalledUp,
		qbittorrent.TorrentStateQueuedUp, qbittorrent.TorrentStateForcedUp:
		return true
	}
	return false
}

// TimeLeft returns the remaining download time. ok is false when the torrent
// is complete, not downloading, or no estimate is possible.
func (t *TorrentInfo) TimeLeft() (left time.Duration, ok bool) {
	if t.IsComplete() || !t.IsDownloading() {
		return 0, false
	}

	if t.ETA > 0 && t.ETA < infiniteETA {
		return time.Duration(t.ETA) * time.Second, true
	}

	if t.DlSpeed > 0 {
		remaining := t.Size - t.Downloaded
		if remaining < 0 {
			remaining = 0
		}
		return time.Duration(remaining/t.DlSpeed) * time.Second, true
	}

	return 0, false
}

// FileEntry is a single file inside a torrent
type FileEntry struct {
	Name     string
	Size     int64
	Progress float64
}

// TransferStats holds the global transfer counters shown in qBittorrent's status bar
type TransferStats struct {
	ConnectionStatus string
	DlSpeed          int64
	DlData           int64
	UpSpeed          int64
	UpData           int64
	DHTNodes         int64
}
