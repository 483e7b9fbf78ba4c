package qbittorrent

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const completionLayout = "2006-01-02 15:04:05"

// MessageFormatter renders torrents, files and transfer stats as chat replies
type MessageFormatter struct {
	location *time.Location
}

// NewMessageFormatter creates a formatter printing timestamps in loc.
// A nil loc means local time.
func NewMessageFormatter(loc *time.Location) *MessageFormatter {
	if loc == nil {
		loc = time.Local
	}
	return &MessageFormatter{location: loc}
}

// FormatInfo formats the reply to /info
func (f *MessageFormatter) FormatInfo(t *TorrentInfo) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s\n", t.Name)
	fmt.Fprintf(&sb, "Status: %s\n", t.State)
	fmt.Fprintf(&sb, "Size: %s\n", FormatBytes(t.Size))
	fmt.Fprintf(&sb, "Downloaded: %s (%s)\n", FormatBytes(t.Downloaded), FormatProgress(t.Progress))
	fmt.Fprintf(&sb, "DL: %s\n", FormatSpeed(t.DlSpeed))

	switch left, ok := t.TimeLeft(); {
	case t.IsComplete():
		fmt.Fprintf(&sb, "Completed: %s\n", f.formatTime(t.CompletionOn))
	case ok:
		fmt.Fprintf(&sb, "ETA: %s\n", left.Round(time.Second))
	default:
		sb.WriteString("ETA: ∞\n")
	}

	fmt.Fprintf(&sb, "\nS/L: %d/%d\n", t.Seeds, t.Leechs)
	fmt.Fprintf(&sb, "Uploaded: %s\n", FormatBytes(t.Uploaded))
	fmt.Fprintf(&sb, "UL: %s", FormatSpeed(t.UpSpeed))

	return sb.String()
}

// FormatFile formats one reply of /files
func (f *MessageFormatter) FormatFile(file FileEntry) string {
	return fmt.Sprintf("File: %s\nSize: %s\nProgress: %s",
		file.Name, FormatBytes(file.Size), FormatProgress(file.Progress))
}

// FormatStats formats the reply to /stats
func (f *MessageFormatter) FormatStats(s *TransferStats) string {
	return fmt.Sprintf("Status: %s\nDL: %s (%s downloaded this session)\nUL: %s (%s uploaded this session)\nDHT: %d",
		s.ConnectionStatus,
		FormatSpeed(s.DlSpeed), FormatBytes(s.DlData),
		FormatSpeed(s.UpSpeed), FormatBytes(s.UpData),
		s.DHTNodes)
}

func (f *MessageFormatter) formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.In(f.location).Format(completionLayout)
}

// FormatBytes renders a byte count as a human readable size, e.g. "12 MB"
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// FormatSpeed renders a transfer rate, e.g. "512 kB/s"
func FormatSpeed(bytesPerSecond int64) string {
	return FormatBytes(bytesPerSecond) + "/s"
}

// FormatProgress renders a 0..1 ratio as a percentage with two decimals
func FormatProgress(p float64) string {
	return fmt.Sprintf("%.2f%%", p*100)
}
