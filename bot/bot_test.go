package bot

import (
	"context"
	"iter"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyubik/qbitbot/access"
	"github.com/kyubik/qbitbot/conversation"
	"github.com/kyubik/qbitbot/filter"
	"github.com/kyubik/qbitbot/qbittorrent"
)

const chatID = 42

type fakeAPI struct {
	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	updates chan tgbotapi.Update
	stopped bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 8)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.Text)
	}
	return out
}

func (f *fakeAPI) last() tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func (f *fakeAPI) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

type fakeTorrents struct {
	mu       sync.Mutex
	groups   map[string][]string
	torrents []*qbittorrent.TorrentInfo
	files    []qbittorrent.FileEntry
	calls    []string
	adds     []string
	err      error
}

func (f *fakeTorrents) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeTorrents) find(name string) (*qbittorrent.TorrentInfo, error) {
	for _, t := range f.torrents {
		if strings.Contains(t.Name, name) {
			return t, nil
		}
	}
	return nil, qbittorrent.ErrTorrentNotFound
}

func (f *fakeTorrents) Info(_ context.Context, name string) (*qbittorrent.TorrentInfo, error) {
	if err := f.record("info " + name); err != nil {
		return nil, err
	}
	return f.find(name)
}

func (f *fakeTorrents) Add(_ context.Context, link, savePath string, sequential bool) error {
	f.adds = append(f.adds, strings.Join([]string{link, savePath, map[bool]string{true: "seq", false: "noseq"}[sequential]}, "|"))
	return f.record("add")
}

func (f *fakeTorrents) Delete(_ context.Context, name string, _ bool) error {
	return f.record("delete " + name)
}

func (f *fakeTorrents) DefaultSavePath(context.Context) (string, error) {
	return "/downloads", f.record("defaultSavePath")
}

func (f *fakeTorrents) List(_ context.Context, group string) (iter.Seq[string], error) {
	if err := f.record("list " + group); err != nil {
		return nil, err
	}
	names, ok := f.groups[group]
	if !ok {
		return nil, &qbittorrent.InvalidGroupError{Group: group}
	}
	return slices.Values(names), nil
}

func (f *fakeTorrents) Contents(_ context.Context, name string) (iter.Seq[qbittorrent.FileEntry], error) {
	if err := f.record("contents " + name); err != nil {
		return nil, err
	}
	if _, err := f.find(name); err != nil {
		return nil, err
	}
	return slices.Values(f.files), nil
}

func (f *fakeTorrents) Stats(context.Context) (*qbittorrent.TransferStats, error) {
	if err := f.record("stats"); err != nil {
		return nil, err
	}
	return &qbittorrent.TransferStats{ConnectionStatus: "connected", DHTNodes: 7}, nil
}

func (f *fakeTorrents) Pause(_ context.Context, name string) error {
	if !qbittorrent.IsAll(name) {
		if _, err := f.find(name); err != nil {
			return err
		}
	}
	return f.record("pause " + name)
}

func (f *fakeTorrents) Resume(_ context.Context, name string) error {
	if !qbittorrent.IsAll(name) {
		if _, err := f.find(name); err != nil {
			return err
		}
	}
	return f.record("resume " + name)
}

func (f *fakeTorrents) Torrents(context.Context) ([]*qbittorrent.TorrentInfo, error) {
	if err := f.record("torrents"); err != nil {
		return nil, err
	}
	return f.torrents, nil
}

func newFakeTorrents() *fakeTorrents {
	return &fakeTorrents{
		groups: map[string][]string{
			"all":     {"ubuntu", "debian", "arch", "fedora", "mint"},
			"seeding": {"ubuntu", "debian", "arch"},
		},
		torrents: []*qbittorrent.TorrentInfo{
			{Name: "ubuntu-24.04.iso", Hash: "H1", State: "uploading", Progress: 1},
			{Name: "debian-12.iso", Hash: "H2", State: "downloading", Progress: 0.5},
		},
		files: []qbittorrent.FileEntry{
			{Name: "a.iso", Size: 1000, Progress: 1},
			{Name: "b.txt", Size: 10, Progress: 0.5},
		},
	}
}

func newTestBot(t *testing.T) (*Bot, *fakeAPI, *fakeTorrents) {
	t.Helper()

	finder, err := filter.NewFinder(map[string]string{"done": "Complete"}, zerolog.Nop())
	require.NoError(t, err)

	api := newFakeAPI()
	torrents := newFakeTorrents()
	return newBot(api, access.NewGuard("@owner"), torrents, finder, zerolog.Nop()), api, torrents
}

func message(user, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{UserName: user, FirstName: "Robin"},
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		end := strings.IndexByte(text, ' ')
		if end < 0 {
			end = len(text)
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	}
	return msg
}

func (b *Bot) receive(user, text string) {
	b.handleMessage(context.Background(), message(user, text))
}

func TestAccessDenied(t *testing.T) {
	inputs := []string{"/start", "/info ubuntu", "/list seeding", "/pause all", "/del", "/find done", "magnet:?xt=urn:btih:abc", "yes"}

	for _, user := range []string{"mallory", ""} {
		for _, text := range inputs {
			t.Run(user+" "+text, func(t *testing.T) {
				b, api, torrents := newTestBot(t)

				b.receive(user, text)

				want := "Access denied"
				if user != "" {
					want = "Access denied for @" + user
				}
				assert.Equal(t, []string{want}, api.texts())
				assert.Empty(t, torrents.calls)
				assert.Zero(t, b.ActiveFlows())
			})
		}
	}
}

func TestAllowedUserCaseInsensitive(t *testing.T) {
	b, api, _ := newTestBot(t)

	b.receive("Owner", "/start")

	assert.Equal(t, []string{"Welcome, Robin!"}, api.texts())
}

func TestInfoCommand(t *testing.T) {
	b, api, _ := newTestBot(t)

	b.receive("owner", "/info debian")
	assert.True(t, strings.HasPrefix(api.last().Text, "debian-12.iso\nStatus: downloading"))

	b.receive("owner", "/info gentoo")
	assert.Equal(t, "Torrent not found", api.last().Text)

	b.receive("owner", "/info")
	assert.Equal(t, "Usage: /info <torrent name>", api.last().Text)
}

func TestListCommand(t *testing.T) {
	b, api, torrents := newTestBot(t)

	b.receive("owner", "/list seeding")
	assert.Equal(t, []string{"ubuntu", "debian", "arch", "seeding: 3 of 5 torrents"}, api.texts())
	assert.ElementsMatch(t, []string{"list seeding", "list all"}, torrents.calls)

	api.reset()
	b.receive("owner", "/list")
	assert.Len(t, api.texts(), 6)
	assert.Equal(t, "all: 5 of 5 torrents", api.last().Text)

	api.reset()
	b.receive("owner", "/list bogus")
	require.Len(t, api.texts(), 1)
	assert.Equal(t,
		"bogus: unknown group. Available groups: all, downloaded, seeding, completed, paused, active, inactive, errored",
		api.last().Text)
}

func TestFilesCommand(t *testing.T) {
	b, api, _ := newTestBot(t)

	b.receive("owner", "/files ubuntu")

	texts := api.texts()
	require.Len(t, texts, 3)
	assert.Equal(t, "File: a.iso\nSize: 1.0 kB\nProgress: 100.00%", texts[0])
	assert.Equal(t, "Total: 2 files", texts[2])
}

func TestStatsCommand(t *testing.T) {
	b, api, _ := newTestBot(t)

	b.receive("owner", "/stats")

	assert.Contains(t, api.last().Text, "Status: connected")
	assert.Contains(t, api.last().Text, "DHT: 7")
}

func TestPauseResumeCommands(t *testing.T) {
	tests := []struct {
		text string
		call string
		want string
	}{
		{"/pause", "pause ", "All torrents paused"},
		{"/pause all", "pause all", "All torrents paused"},
		{"/pause ubuntu", "pause ubuntu", "Torrent paused"},
		{"/resume", "resume ", "All torrents resumed"},
		{"/resume debian", "resume debian", "Torrent resumed"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			b, api, torrents := newTestBot(t)

			b.receive("owner", tt.text)

			assert.Equal(t, []string{tt.want}, api.texts())
			assert.Equal(t, []string{tt.call}, torrents.calls)
		})
	}
}

func TestPauseUnknownTorrent(t *testing.T) {
	b, api, torrents := newTestBot(t)

	b.receive("owner", "/pause gentoo")

	assert.Equal(t, []string{"Torrent not found"}, api.texts())
	assert.Empty(t, torrents.calls)
}

func TestUnavailableServerReply(t *testing.T) {
	b, api, torrents := newTestBot(t)
	torrents.err = qbittorrent.ErrUnavailable

	b.receive("owner", "/stats")

	assert.Equal(t, "qBittorrent is temporarily unavailable, please try again later", api.last().Text)
}

func TestAddFlowThroughBot(t *testing.T) {
	b, api, torrents := newTestBot(t)

	b.receive("owner", "magnet:?xt=urn:btih:abc")
	prompt := api.last()
	assert.Equal(t, "Default save path: /downloads\nEnter save path or press 'Default' button:", prompt.Text)
	keyboard, ok := prompt.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, conversation.ButtonDefault, keyboard.Keyboard[0][0].Text)

	b.receive("owner", "Default")
	keyboard, ok = api.last().ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, keyboard.Keyboard[0], 2)
	assert.Equal(t, conversation.ButtonYes, keyboard.Keyboard[0][0].Text)
	assert.Equal(t, conversation.ButtonNo, keyboard.Keyboard[0][1].Text)

	b.receive("owner", "YES")
	done := api.last()
	assert.Equal(t, "Torrent added", done.Text)
	assert.IsType(t, tgbotapi.ReplyKeyboardRemove{}, done.ReplyMarkup)

	assert.Equal(t, []string{"magnet:?xt=urn:btih:abc||seq"}, torrents.adds)
	assert.Zero(t, b.ActiveFlows())
}

func TestStickerDuringFlowKeepsFlow(t *testing.T) {
	b, api, torrents := newTestBot(t)

	b.receive("owner", "magnet:?xt=urn:btih:abc")
	b.receive("owner", "")

	assert.Equal(t, "Enter save path or press 'Default' button:", api.last().Text)
	assert.Equal(t, 1, b.ActiveFlows())
	assert.Empty(t, torrents.adds)
}

func TestCommandDuringFlowKeepsFlow(t *testing.T) {
	b, api, _ := newTestBot(t)

	b.receive("owner", "/del")
	b.receive("owner", "/stats")
	b.receive("owner", "ubuntu")

	assert.Equal(t, "Are you sure you want to delete ubuntu-24.04.iso?", api.last().Text)
}

func TestCancelCommand(t *testing.T) {
	b, api, torrents := newTestBot(t)

	b.receive("owner", "/del")
	assert.Equal(t, 1, b.ActiveFlows())

	b.receive("owner", "/cancel")
	assert.Equal(t, "Cancelled", api.last().Text)
	assert.Zero(t, b.ActiveFlows())

	b.receive("owner", "ubuntu")
	assert.Equal(t, "Send a torrent link or a command. /help lists the commands.", api.last().Text)
	assert.Empty(t, torrents.calls)

	b.receive("owner", "/cancel")
	assert.Equal(t, "Nothing to cancel", api.last().Text)
}

func TestFindCommand(t *testing.T) {
	b, api, _ := newTestBot(t)

	b.receive("owner", "/find done")
	assert.Equal(t, []string{"ubuntu-24.04.iso\nuploading, 100.00%", "Found 1 torrents"}, api.texts())

	api.reset()
	b.receive("owner", `/find contains(Name, "iso")`)
	assert.Equal(t, "Found 2 torrents", api.last().Text)

	api.reset()
	b.receive("owner", "/find")
	assert.Equal(t, "Usage: /find <expression or preset>\nPresets: done", api.last().Text)

	api.reset()
	b.receive("owner", "/find Size >")
	assert.Contains(t, api.last().Text, "invalid filter")
}

func TestUnknownCommand(t *testing.T) {
	b, api, _ := newTestBot(t)

	b.receive("owner", "/frobnicate")

	assert.Equal(t, "Unknown command /frobnicate. /help lists the commands.", api.last().Text)
}

func TestHelpListsGroups(t *testing.T) {
	b, api, _ := newTestBot(t)

	b.receive("owner", "/help")

	assert.Contains(t, api.last().Text, "all, downloaded, seeding, completed, paused, active, inactive, errored")
}

func TestRun(t *testing.T) {
	b, api, _ := newTestBot(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	api.updates <- tgbotapi.Update{UpdateID: 1}
	api.updates <- tgbotapi.Update{UpdateID: 2, Message: message("owner", "/start")}

	require.Eventually(t, func() bool {
		return len(api.texts()) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Equal(t, []string{"Welcome, Robin!"}, api.texts())
	api.mu.Lock()
	assert.True(t, api.stopped)
	api.mu.Unlock()
}
