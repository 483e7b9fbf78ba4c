package qbittorrent

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/autobrr/go-qbittorrent"
	"github.com/avast/retry-go"
	"github.com/blang/semver"
	"github.com/rs/zerolog"
)

// WebAPI 2.11 (qBittorrent 5.0) renamed the paused filter to stopped.
var stopStartVersion = semver.MustParse("2.11.0")

// Client wraps the qBittorrent API client. It owns one authenticated
// session and the name to hash index used to resolve user supplied names.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
	index      *Index

	mu         sync.RWMutex
	api        *qbittorrent.Client
	loggedIn   bool
	apiVersion semver.Version
}

// NewClient creates a new qBittorrent client. No request is made until Login.
func NewClient(baseURL string, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("qbittorrent URL is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid qbittorrent URL %q: %w", baseURL, err)
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	httpClient := options.httpClient
	if httpClient == nil {
		var base http.RoundTripper = http.DefaultTransport
		if options.insecureSkipVerify {
			base = &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			}
		}
		httpClient = &http.Client{
			Timeout:   options.timeout,
			Transport: &userAgentTransport{base: base, userAgent: options.userAgent},
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		index:      NewIndex(nil),
	}, nil
}

// Login authenticates against qBittorrent, detects the WebAPI version and
// builds the name index. It must be called once before any other operation.
func (c *Client) Login(ctx context.Context, username, password string) error {
	api := qbittorrent.NewClient(qbittorrent.Config{
		Host:     c.baseURL,
		Username: username,
		Password: password,
		Log:      log.New(debugWriter{c.logger}, "", 0),
	}).WithHTTPClient(c.httpClient)

	if err := api.LoginCtx(ctx); err != nil {
		return loginError(err)
	}

	c.mu.Lock()
	c.api = api
	c.loggedIn = true
	c.mu.Unlock()

	c.detectVersion(ctx)

	if err := c.RefreshIndex(ctx); err != nil {
		if logoutErr := c.Logout(ctx); logoutErr != nil {
			c.logger.Warn().Err(logoutErr).Msg("Failed to release session after index error")
		}
		return fmt.Errorf("failed to build torrent index: %w", err)
	}

	c.logger.Info().
		Str("server", c.baseURL).
		Str("webapi", c.APIVersion()).
		Int("torrents", c.index.Len()).
		Msg("Logged in to qBittorrent")

	return nil
}

func loginError(err error) error {
	switch {
	case errors.Is(err, qbittorrent.ErrIPBanned):
		return &AuthError{Reason: ReasonBanned}
	case errors.Is(err, qbittorrent.ErrBadCredentials):
		return &AuthError{Reason: ReasonBadCredentials}
	}
	return wrapError("log in", err)
}

// Logout ends the session. It is safe to call more than once; only the
// first call after a successful Login reaches the server.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	if !c.loggedIn {
		c.mu.Unlock()
		return nil
	}
	c.loggedIn = false
	c.mu.Unlock()

	status, body, err := c.post(ctx, "auth/logout", nil)
	if err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	if status != http.StatusOK {
		return &APIError{Endpoint: "auth/logout", StatusCode: status, Body: string(body)}
	}

	c.logger.Info().Msg("Logged out of qBittorrent")
	return nil
}

// LoggedIn reports whether the client currently holds a session.
func (c *Client) LoggedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loggedIn
}

// APIVersion returns the detected WebAPI version.
func (c *Client) APIVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiVersion.String()
}

// IndexLen returns the number of torrents in the name index.
func (c *Client) IndexLen() int {
	return c.index.Len()
}

// session returns the API client of the current session.
func (c *Client) session() (*qbittorrent.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loggedIn {
		return nil, ErrNotLoggedIn
	}
	return c.api, nil
}

func (c *Client) detectVersion(ctx context.Context) {
	version := semver.Version{Major: 2}
	defer func() {
		c.mu.Lock()
		c.apiVersion = version
		c.mu.Unlock()
	}()

	api, err := c.session()
	if err != nil {
		return
	}

	raw, err := api.GetWebAPIVersionCtx(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to detect WebAPI version, assuming 2.0")
		return
	}

	parsed, err := semver.ParseTolerant(strings.TrimSpace(raw))
	if err != nil {
		c.logger.Warn().Err(err).Str("version", raw).Msg("Unparsable WebAPI version, assuming 2.0")
		return
	}
	version = parsed
}

func (c *Client) usesStopStart() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiVersion.GE(stopStartVersion)
}

// DefaultSavePath returns qBittorrent's default download directory.
func (c *Client) DefaultSavePath(ctx context.Context) (string, error) {
	api, err := c.session()
	if err != nil {
		return "", err
	}

	path, err := api.GetDefaultSavePathCtx(ctx)
	if err != nil {
		return "", wrapError("get default save path", err)
	}
	return strings.TrimSpace(path), nil
}

func (c *Client) fetchTorrents(ctx context.Context, opts qbittorrent.TorrentFilterOptions) ([]qbittorrent.Torrent, error) {
	api, err := c.session()
	if err != nil {
		return nil, err
	}

	torrents, err := api.GetTorrentsCtx(ctx, opts)
	if err != nil {
		return nil, wrapError("get torrents", err)
	}

	c.logger.Debug().Msgf("Retrieved %d torrents from qBittorrent", len(torrents))
	return torrents, nil
}

// post sends a form to /api/v2/{endpoint} with the session cookies. It
// serves auth/logout, which go-qbittorrent does not expose, and
// torrents/add, whose 415 reply go-qbittorrent folds into
// ErrUnexpectedStatus.
func (c *Client) post(ctx context.Context, endpoint string, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/"+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", c.baseURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: POST %s: %v", ErrUnavailable, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: reading %s response: %v", ErrUnavailable, endpoint, err)
	}
	return resp.StatusCode, body, nil
}

// wrapError annotates a go-qbittorrent error. Transport failures, including
// those buried in its retry log, become ErrUnavailable.
func wrapError(op string, err error) error {
	if isTransportError(err) {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func isTransportError(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	var attempts retry.Error
	if errors.As(err, &attempts) {
		for _, e := range attempts.WrappedErrors() {
			if e != nil && errors.As(e, &urlErr) {
				return true
			}
		}
	}
	return false
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent != "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}

// debugWriter routes go-qbittorrent's log output to zerolog at debug level.
type debugWriter struct {
	logger zerolog.Logger
}

func (w debugWriter) Write(p []byte) (int, error) {
	w.logger.Debug().Str("component", "go-qbittorrent").Msg(strings.TrimSpace(string(p)))
	return len(p), nil
}
