package bot

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrQueueStopped is returned when work is submitted after Stop
	ErrQueueStopped = errors.New("chat queue is stopped")

	// ErrQueueFull is returned when a chat already has a full backlog
	ErrQueueFull = errors.New("chat queue is full")
)

// chatQueues runs submitted work on one goroutine per chat, so work for the
// same chat is processed in FIFO order while chats proceed independently.
// A worker exits after idleTimeout without work.
type chatQueues struct {
	backlog     int
	idleTimeout time.Duration

	// mu guards queues and stopped. Sends happen under mu, so a reaped or
	// closed channel never receives.
	mu      sync.Mutex
	queues  map[int64]chan func()
	stopped bool

	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newChatQueues(backlog int, idleTimeout time.Duration) *chatQueues {
	if backlog <= 0 {
		backlog = 1
	}
	if idleTimeout <= 0 {
		idleTimeout = time.Minute
	}
	return &chatQueues{
		backlog:     backlog,
		idleTimeout: idleTimeout,
		queues:      make(map[int64]chan func()),
	}
}

// Submit queues work for chatID without blocking. It returns ErrQueueFull
// when the chat's backlog is full.
func (q *chatQueues) Submit(chatID int64, work func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return ErrQueueStopped
	}

	ch, ok := q.queues[chatID]
	if !ok {
		ch = make(chan func(), q.backlog)
		q.queues[chatID] = ch
		q.wg.Add(1)
		go q.worker(chatID, ch)
	}

	select {
	case ch <- work:
		return nil
	default:
		return ErrQueueFull
	}
}

// Len returns the number of running chat workers.
func (q *chatQueues) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues)
}

func (q *chatQueues) worker(chatID int64, ch chan func()) {
	defer q.wg.Done()

	idle := time.NewTimer(q.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case work, ok := <-ch:
			if !ok {
				return
			}
			if work != nil {
				work()
			}
			idle.Reset(q.idleTimeout)
		case <-idle.C:
			if q.reap(chatID, ch) {
				return
			}
			idle.Reset(q.idleTimeout)
		}
	}
}

// reap removes an idle worker's queue. It fails if work arrived meanwhile.
func (q *chatQueues) reap(chatID int64, ch chan func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(ch) > 0 {
		return false
	}
	if q.queues[chatID] == ch {
		delete(q.queues, chatID)
	}
	return true
}

// Stop rejects new work and waits for queued work to finish or ctx to end
func (q *chatQueues) Stop(ctx context.Context) error {
	var err error

	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.stopped = true
		for _, ch := range q.queues {
			close(ch)
		}
		q.mu.Unlock()

		done := make(chan struct{})
		go func() {
			q.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}
	})

	return err
}
