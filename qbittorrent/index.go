package qbittorrent

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Entry pairs a torrent display name with its hash.
type Entry struct {
	Name string
	Hash string
}

// Index maps torrent names to hashes in the order qBittorrent returned them.
// It is rebuilt wholesale on refresh and safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewIndex creates an index holding entries.
func NewIndex(entries []Entry) *Index {
	idx := &Index{}
	idx.Replace(entries)
	return idx
}

// Replace swaps the whole content of the index.
func (i *Index) Replace(entries []Entry) {
	copied := make([]Entry, len(entries))
	copy(copied, entries)

	i.mu.Lock()
	i.entries = copied
	i.mu.Unlock()
}

// Len returns the number of indexed torrents.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

// Resolve returns the hash of the torrent called name. An exact name match
// wins; otherwise the first name containing name as a case-sensitive
// substring, in index order.
func (i *Index) Resolve(name string) (string, error) {
	if name == "" {
		return "", ErrTorrentNotFound
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	for _, e := range i.entries {
		if e.Name == name {
			return e.Hash, nil
		}
	}

	for _, e := range i.entries {
		if strings.Contains(e.Name, name) {
			return e.Hash, nil
		}
	}

	return "", ErrTorrentNotFound
}

// RefreshIndex fetches all torrents and rebuilds the name index.
func (c *Client) RefreshIndex(ctx context.Context) error {
	torrents, err := c.fetchTorrents(ctx, nil)
	if err != nil {
		return err
	}

	entries := make([]Entry, 0, len(torrents))
	for _, t := range torrents {
		entries = append(entries, Entry{Name: t.Name, Hash: t.Hash})
	}
	c.index.Replace(entries)

	c.logger.Debug().Int("torrents", len(entries)).Msg("Rebuilt torrent index")
	return nil
}

// lookup resolves name against the index. On a miss it refreshes the index
// once, so torrents added outside the bot can still be found.
func (c *Client) lookup(ctx context.Context, name string) (string, error) {
	hash, err := c.index.Resolve(name)
	if err == nil || name == "" {
		return hash, err
	}
	if !errors.Is(err, ErrTorrentNotFound) {
		return "", err
	}

	if err := c.RefreshIndex(ctx); err != nil {
		return "", err
	}
	return c.index.Resolve(name)
}
