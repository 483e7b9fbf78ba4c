package qbittorrent

import (
	"context"
	"iter"
	"net/http"
	"net/url"
	"strings"

	"github.com/autobrr/go-qbittorrent"
)

// Groups lists the group names accepted by List, in display order.
var Groups = []string{"all", "downloaded", "seeding", "completed", "paused", "active", "inactive", "errored"}

var groupFilters = map[string]qbittorrent.TorrentFilter{
	"all":        qbittorrent.TorrentFilterAll,
	"downloaded": qbittorrent.TorrentFilterDownloading,
	"seeding":    qbittorrent.TorrentFilter("seeding"),
	"completed":  qbittorrent.TorrentFilterCompleted,
	"paused":     qbittorrent.TorrentFilterPaused,
	"active":     qbittorrent.TorrentFilterActive,
	"inactive":   qbittorrent.TorrentFilterInactive,
	"errored":    qbittorrent.TorrentFilterError,
}

// IsAll reports whether name addresses every torrent rather than one.
func IsAll(name string) bool {
	name = strings.TrimSpace(name)
	return name == "" || name == "all"
}

// Info returns details about the torrent whose name matches name.
func (c *Client) Info(ctx context.Context, name string) (*TorrentInfo, error) {
	hash, err := c.lookup(ctx, name)
	if err != nil {
		return nil, err
	}

	torrents, err := c.fetchTorrents(ctx, qbittorrent.TorrentFilterOptions{Hashes: []string{hash}})
	if err != nil {
		return nil, err
	}
	if len(torrents) == 0 {
		return nil, ErrTorrentNotFound
	}

	return newTorrentInfo(torrents[0]), nil
}

// Torrents returns every torrent known to qBittorrent.
func (c *Client) Torrents(ctx context.Context) ([]*TorrentInfo, error) {
	torrents, err := c.fetchTorrents(ctx, qbittorrent.TorrentFilterOptions{})
	if err != nil {
		return nil, err
	}

	results := make([]*TorrentInfo, 0, len(torrents))
	for _, t := range torrents {
		results = append(results, newTorrentInfo(t))
	}
	return results, nil
}

// List returns the names of torrents in group. The server is queried
// immediately; names are yielded lazily.
func (c *Client) List(ctx context.Context, group string) (iter.Seq[string], error) {
	filter, ok := groupFilters[group]
	if !ok {
		return nil, &InvalidGroupError{Group: group}
	}
	if filter == qbittorrent.TorrentFilterPaused && c.usesStopStart() {
		filter = qbittorrent.TorrentFilterStopped
	}

	torrents, err := c.fetchTorrents(ctx, qbittorrent.TorrentFilterOptions{Filter: filter})
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		for _, t := range torrents {
			if !yield(t.Name) {
				return
			}
		}
	}, nil
}

// Contents returns the files of the torrent whose name matches name.
func (c *Client) Contents(ctx context.Context, name string) (iter.Seq[FileEntry], error) {
	hash, err := c.lookup(ctx, name)
	if err != nil {
		return nil, err
	}

	api, err := c.session()
	if err != nil {
		return nil, err
	}

	files, err := api.GetFilesInformationCtx(ctx, hash)
	if err != nil {
		return nil, wrapError("get torrent files", err)
	}

	return func(yield func(FileEntry) bool) {
		for _, f := range *files {
			entry := FileEntry{
				Name:     f.Name,
				Size:     int64(f.Size),
				Progress: float64(f.Progress),
			}
			if !yield(entry) {
				return
			}
		}
	}, nil
}

// Stats returns global transfer counters.
func (c *Client) Stats(ctx context.Context) (*TransferStats, error) {
	api, err := c.session()
	if err != nil {
		return nil, err
	}

	info, err := api.GetTransferInfoCtx(ctx)
	if err != nil {
		return nil, wrapError("get transfer info", err)
	}

	return &TransferStats{
		ConnectionStatus: string(info.ConnectionStatus),
		DlSpeed:          int64(info.DlInfoSpeed),
		DlData:           int64(info.DlInfoData),
		UpSpeed:          int64(info.UpInfoSpeed),
		UpData:           int64(info.UpInfoData),
		DHTNodes:         int64(info.DHTNodes),
	}, nil
}

// Pause pauses the torrent matching name, or every torrent when IsAll(name).
// On WebAPI 2.11 and later go-qbittorrent calls torrents/stop instead.
func (c *Client) Pause(ctx context.Context, name string) error {
	return c.toggle(ctx, "pause", name, (*qbittorrent.Client).PauseCtx)
}

// Resume resumes the torrent matching name, or every torrent when IsAll(name).
func (c *Client) Resume(ctx context.Context, name string) error {
	return c.toggle(ctx, "resume", name, (*qbittorrent.Client).ResumeCtx)
}

func (c *Client) toggle(ctx context.Context, action, name string, call func(*qbittorrent.Client, context.Context, []string) error) error {
	api, err := c.session()
	if err != nil {
		return err
	}

	hashes := "all"
	if !IsAll(name) {
		hash, err := c.lookup(ctx, name)
		if err != nil {
			return err
		}
		hashes = hash
	}

	if err := call(api, ctx, []string{hashes}); err != nil {
		return wrapError(action+" torrents", err)
	}

	c.logger.Info().Str("action", action).Str("hashes", hashes).Msg("Torrent state changed")
	return nil
}

// Delete removes the torrent matching name, and its data if deleteFiles.
func (c *Client) Delete(ctx context.Context, name string, deleteFiles bool) error {
	api, err := c.session()
	if err != nil {
		return err
	}

	hash, err := c.lookup(ctx, name)
	if err != nil {
		return err
	}

	if err := api.DeleteTorrentsCtx(ctx, []string{hash}, deleteFiles); err != nil {
		return wrapError("delete torrent", err)
	}

	c.logger.Info().Str("hash", hash).Bool("delete_files", deleteFiles).Msg("Deleted torrent")

	if err := c.RefreshIndex(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to refresh index after delete")
	}
	return nil
}

// Add submits a torrent link. An empty savePath uses qBittorrent's default.
// A 403 means the session expired; the client logs in again once and retries.
func (c *Client) Add(ctx context.Context, link, savePath string, sequential bool) error {
	api, err := c.session()
	if err != nil {
		return err
	}

	opts := qbittorrent.TorrentAddOptions{
		SavePath:           savePath,
		SequentialDownload: sequential,
	}

	form := url.Values{}
	for k, v := range opts.Prepare() {
		form.Set(k, v)
	}
	form.Set("urls", link)

	status, body, err := c.post(ctx, "torrents/add", form)
	if err == nil && status == http.StatusForbidden {
		c.logger.Info().Msg("qBittorrent session expired, logging in again")
		if err := api.LoginCtx(ctx); err != nil {
			return loginError(err)
		}
		status, body, err = c.post(ctx, "torrents/add", form)
	}
	if err != nil {
		return err
	}

	switch {
	case status == http.StatusUnsupportedMediaType, strings.TrimSpace(string(body)) == "Fails.":
		return ErrInvalidLink
	case status != http.StatusOK:
		return &APIError{Endpoint: "torrents/add", StatusCode: status, Body: string(body)}
	}

	c.logger.Info().
		Str("save_path", savePath).
		Bool("sequential", sequential).
		Msg("Added torrent")

	if err := c.RefreshIndex(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to refresh index after add")
	}
	return nil
}
