package conversation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kyubik/qbitbot/qbittorrent"
)

// Keyboard labels offered as quick replies.
const (
	ButtonDefault = "Default"
	ButtonYes     = "Yes"
	ButtonNo      = "No"
)

const (
	promptSavePath    = "Enter save path or press 'Default' button:"
	promptSequential  = "Do you want to enable sequential download?"
	promptTorrentName = "Enter a torrent name:"
	promptDeleteFiles = "Do you want to delete downloaded files?"
	promptRetry       = "Please try again:"
)

var linkPattern = regexp.MustCompile(`^(https?://\S+\.torrent|magnet:|bc://bt/\S+)`)

// IsTorrentLink reports whether text starts an Add-Torrent flow.
func IsTorrentLink(text string) bool {
	return linkPattern.MatchString(strings.TrimSpace(text))
}

// Torrents is the subset of the qBittorrent client the flows drive.
type Torrents interface {
	Info(ctx context.Context, name string) (*qbittorrent.TorrentInfo, error)
	Add(ctx context.Context, link, savePath string, sequential bool) error
	Delete(ctx context.Context, name string, deleteFiles bool) error
	DefaultSavePath(ctx context.Context) (string, error)
}

// Reply is one outgoing chat message. Keyboard, when set, is offered as a
// single-row quick-reply keyboard; RemoveKeyboard hides a previous one.
type Reply struct {
	Text           string
	Keyboard       []string
	RemoveKeyboard bool
}

func prompt(text string, buttons ...string) Reply {
	return Reply{Text: text, Keyboard: buttons}
}

func final(text string) Reply {
	return Reply{Text: text, RemoveKeyboard: true}
}

// Engine drives the Add-Torrent and Delete-Torrent flows. Calls for the same
// chat must not run concurrently; different chats are independent.
type Engine struct {
	torrents Torrents
	store    *Store
	logger   zerolog.Logger
}

// NewEngine creates an engine backed by torrents
func NewEngine(torrents Torrents, logger zerolog.Logger) *Engine {
	return &Engine{
		torrents: torrents,
		store:    NewStore(),
		logger:   logger.With().Str("component", "conversation").Logger(),
	}
}

// Step returns the current step of chatID.
func (e *Engine) Step(chatID int64) Step {
	return e.store.Get(chatID).Step
}

// Active returns the number of chats inside a flow
func (e *Engine) Active() int {
	return e.store.Len()
}

// StartAdd begins an Add-Torrent flow for link, replacing any active flow.
func (e *Engine) StartAdd(ctx context.Context, chatID int64, link string) []Reply {
	e.begin(chatID, State{Step: StepAwaitingSavePath, URL: strings.TrimSpace(link)})

	text := promptSavePath
	if path, err := e.torrents.DefaultSavePath(ctx); err != nil {
		e.logger.Debug().Err(err).Int64("chat_id", chatID).Msg("Default save path unavailable")
	} else if path != "" {
		text = fmt.Sprintf("Default save path: %s\n%s", path, promptSavePath)
	}

	return []Reply{prompt(text, ButtonDefault)}
}

// StartDelete begins a Delete-Torrent flow, replacing any active flow.
func (e *Engine) StartDelete(_ context.Context, chatID int64) []Reply {
	e.begin(chatID, State{Step: StepAwaitingTorrentName})
	return []Reply{final(promptTorrentName)}
}

// Cancel drops the flow of chatID and reports whether one was active.
func (e *Engine) Cancel(chatID int64) bool {
	ok := e.store.Clear(chatID)
	if ok {
		e.logger.Debug().Int64("chat_id", chatID).Msg("Flow cancelled")
	}
	return ok
}

// Continue feeds text to the active flow of chatID. handled is false when
// the chat has no active flow.
func (e *Engine) Continue(ctx context.Context, chatID int64, text string) (replies []Reply, handled bool) {
	state := e.store.Get(chatID)

	if state.Step != StepIdle && strings.TrimSpace(text) == "" {
		return []Reply{reprompt(state.Step)}, true
	}

	switch state.Step {
	case StepAwaitingSavePath:
		return e.onSavePath(chatID, state, text), true
	case StepAwaitingSequentialFlag:
		return e.onSequential(ctx, chatID, state, text), true
	case StepAwaitingTorrentName:
		return e.onTorrentName(ctx, chatID, state, text), true
	case StepAwaitingDeleteConfirm:
		return e.onDeleteConfirm(chatID, state, text), true
	case StepAwaitingFileDeleteConfirm:
		return e.onFileDeleteConfirm(ctx, chatID, state, text), true
	default:
		return nil, false
	}
}

func (e *Engine) begin(chatID int64, state State) {
	if prev := e.store.Get(chatID); prev.Step != StepIdle {
		e.logger.Debug().
			Int64("chat_id", chatID).
			Stringer("previous", prev.Step).
			Msg("Replacing active flow")
	}
	e.transition(chatID, state)
}

func (e *Engine) transition(chatID int64, state State) {
	e.store.Set(chatID, state)
	e.logger.Debug().Int64("chat_id", chatID).Stringer("step", state.Step).Msg("Flow step")
}

func (e *Engine) onSavePath(chatID int64, state State, text string) []Reply {
	state.SavePath = text
	if text == ButtonDefault {
		state.SavePath = ""
	}
	state.Step = StepAwaitingSequentialFlag
	e.transition(chatID, state)

	return []Reply{prompt(promptSequential, ButtonYes, ButtonNo)}
}

func (e *Engine) onSequential(ctx context.Context, chatID int64, state State, text string) []Reply {
	sequential, ok := parseYesNo(text)
	if !ok {
		return []Reply{prompt(promptRetry, ButtonYes, ButtonNo)}
	}

	awaiting := state
	state.Sequential = sequential
	state.Step = StepReady
	e.transition(chatID, state)

	if err := e.torrents.Add(ctx, state.URL, state.SavePath, state.Sequential); err != nil {
		if isTransient(err) {
			e.store.Set(chatID, awaiting)
			e.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Add failed, flow kept")
			return []Reply{prompt(ErrorText(err), ButtonYes, ButtonNo)}
		}
		e.store.Clear(chatID)
		e.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Add failed")
		return []Reply{final(ErrorText(err))}
	}

	e.store.Clear(chatID)
	e.logger.Info().Int64("chat_id", chatID).Str("url", state.URL).Msg("Torrent added via chat")
	return []Reply{final("Torrent added")}
}

func (e *Engine) onTorrentName(ctx context.Context, chatID int64, state State, text string) []Reply {
	info, err := e.torrents.Info(ctx, text)
	if err != nil {
		if !isTransient(err) {
			e.store.Clear(chatID)
		}
		return []Reply{final(ErrorText(err))}
	}

	state.TorrentName = info.Name
	state.Step = StepAwaitingDeleteConfirm
	e.transition(chatID, state)

	return []Reply{prompt(fmt.Sprintf("Are you sure you want to delete %s?", info.Name), ButtonYes, ButtonNo)}
}

func (e *Engine) onDeleteConfirm(chatID int64, state State, text string) []Reply {
	confirmed, ok := parseYesNo(text)
	if !ok {
		return []Reply{prompt(promptRetry, ButtonYes, ButtonNo)}
	}
	if !confirmed {
		e.store.Clear(chatID)
		return []Reply{final("Deletion cancelled")}
	}

	state.Step = StepAwaitingFileDeleteConfirm
	e.transition(chatID, state)
	return []Reply{prompt(promptDeleteFiles, ButtonYes, ButtonNo)}
}

func (e *Engine) onFileDeleteConfirm(ctx context.Context, chatID int64, state State, text string) []Reply {
	deleteFiles, ok := parseYesNo(text)
	if !ok {
		return []Reply{prompt(promptRetry, ButtonYes, ButtonNo)}
	}

	if err := e.torrents.Delete(ctx, state.TorrentName, deleteFiles); err != nil {
		if isTransient(err) {
			e.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Delete failed, flow kept")
			return []Reply{prompt(ErrorText(err), ButtonYes, ButtonNo)}
		}
		e.store.Clear(chatID)
		e.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Delete failed")
		return []Reply{final(ErrorText(err))}
	}

	e.store.Clear(chatID)
	e.logger.Info().
		Int64("chat_id", chatID).
		Str("torrent", state.TorrentName).
		Bool("delete_files", deleteFiles).
		Msg("Torrent deleted via chat")
	return []Reply{final("Torrent deleted")}
}

// reprompt repeats the question of step, for messages without text such as
// stickers or photos.
func reprompt(step Step) Reply {
	switch step {
	case StepAwaitingSavePath:
		return prompt(promptSavePath, ButtonDefault)
	case StepAwaitingTorrentName:
		return Reply{Text: promptTorrentName}
	default:
		return prompt(promptRetry, ButtonYes, ButtonNo)
	}
}

func parseYesNo(text string) (value, ok bool) {
	switch text = strings.TrimSpace(text); {
	case strings.EqualFold(text, ButtonYes):
		return true, true
	case strings.EqualFold(text, ButtonNo):
		return false, true
	default:
		return false, false
	}
}
