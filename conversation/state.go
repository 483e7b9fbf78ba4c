package conversation

import "sync"

// Step tags the position of a chat inside a multi-turn flow.
type Step int

const (
	StepIdle Step = iota

	// Add-Torrent
	StepAwaitingSavePath
	StepAwaitingSequentialFlag
	StepReady

	// Delete-Torrent
	StepAwaitingTorrentName
	StepAwaitingDeleteConfirm
	StepAwaitingFileDeleteConfirm
)

func (s Step) String() string {
	switch s {
	case StepIdle:
		return "idle"
	case StepAwaitingSavePath:
		return "awaiting_save_path"
	case StepAwaitingSequentialFlag:
		return "awaiting_sequential_flag"
	case StepReady:
		return "ready"
	case StepAwaitingTorrentName:
		return "awaiting_torrent_name"
	case StepAwaitingDeleteConfirm:
		return "awaiting_delete_confirm"
	case StepAwaitingFileDeleteConfirm:
		return "awaiting_file_delete_confirm"
	default:
		return "unknown"
	}
}

// State is the accumulated input of one chat's active flow. Which fields
// are meaningful depends on Step.
type State struct {
	Step Step

	URL        string
	SavePath   string
	Sequential bool

	TorrentName string
}

// Store holds at most one State per chat.
type Store struct {
	mu     sync.Mutex
	states map[int64]State
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{states: make(map[int64]State)}
}

// Get returns the state of chatID. A chat without a flow is StepIdle.
func (s *Store) Get(chatID int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[chatID]
}

// Set replaces the state of chatID. Setting StepIdle removes it.
func (s *Store) Set(chatID int64, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state.Step == StepIdle {
		delete(s.states, chatID)
		return
	}
	s.states[chatID] = state
}

// Clear removes the state of chatID and reports whether one existed.
func (s *Store) Clear(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.states[chatID]
	delete(s.states, chatID)
	return ok
}

// Len returns the number of chats with an active flow
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}
