// Package qbittorrent provides a session-based client for the qBittorrent Web API.
//
// The client wraps autobrr/go-qbittorrent. It owns one authenticated WebUI
// session (the SID cookie) for the whole process lifetime and keeps an index
// of torrent names to hashes, so chat users can address torrents by (part
// of) their name.
//
// # Features
//
//   - Login/logout with banned-IP and bad-credential detection
//   - Transparent re-login when the WebUI session expires
//   - Name to hash resolution (exact match first, then first substring match)
//   - Info, list by group, file contents, transfer stats
//   - Pause/resume (stop/start on WebAPI 2.11+), delete and add
//   - Reply formatting with human readable sizes and ETAs
//
// # Usage
//
//	client, err := qbittorrent.NewClient(url, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.Login(ctx, username, password); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Logout(context.Background())
//
//	info, err := client.Info(ctx, "ubuntu")
//	if errors.Is(err, qbittorrent.ErrTorrentNotFound) {
//	    // reply "Torrent not found"
//	}
package qbittorrent
