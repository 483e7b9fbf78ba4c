package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatQueuesKeepPerChatOrder(t *testing.T) {
	q := newChatQueues(20, time.Minute)

	var mu sync.Mutex
	got := map[int64][]int{}

	for i := range 20 {
		chat := int64(i % 2)
		require.NoError(t, q.Submit(chat, func() {
			mu.Lock()
			got[chat] = append(got[chat], i)
			mu.Unlock()
		}))
	}

	require.NoError(t, q.Stop(context.Background()))

	assert.Equal(t, []int{0, 2, 4, 6, 8, 10, 12, 14, 16, 18}, got[0])
	assert.Equal(t, []int{1, 3, 5, 7, 9, 11, 13, 15, 17, 19}, got[1])
}

func TestChatQueuesIndependentChats(t *testing.T) {
	q := newChatQueues(1, time.Minute)
	release := make(chan struct{})
	done := make(chan struct{})

	require.NoError(t, q.Submit(1, func() { <-release }))
	require.NoError(t, q.Submit(2, func() { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("chat 2 was blocked by chat 1")
	}

	close(release)
	require.NoError(t, q.Stop(context.Background()))
}

func TestChatQueuesStop(t *testing.T) {
	q := newChatQueues(1, time.Minute)
	release := make(chan struct{})
	require.NoError(t, q.Submit(1, func() { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Stop(ctx), context.DeadlineExceeded)

	assert.ErrorIs(t, q.Submit(1, func() {}), ErrQueueStopped)
	close(release)

	// Stop only runs once
	assert.NoError(t, q.Stop(context.Background()))
}

func TestChatQueuesFullBacklogDoesNotBlockOtherChats(t *testing.T) {
	q := newChatQueues(1, time.Minute)
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	require.NoError(t, q.Submit(1, func() {
		close(started)
		<-release
	}))
	<-started
	require.NoError(t, q.Submit(1, func() {}))

	submitted := make(chan error, 2)
	go func() {
		submitted <- q.Submit(1, func() {})
		submitted <- q.Submit(2, func() { close(done) })
	}()

	for _, want := range []error{ErrQueueFull, nil} {
		select {
		case err := <-submitted:
			if want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, want)
			}
		case <-time.After(time.Second):
			t.Fatal("Submit blocked on a full chat backlog")
		}
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("chat 2 was blocked by chat 1")
	}

	close(release)
	require.NoError(t, q.Stop(context.Background()))
}

func TestChatQueuesReapIdleWorkers(t *testing.T) {
	q := newChatQueues(1, 10*time.Millisecond)

	var wg sync.WaitGroup
	for chat := range int64(100) {
		wg.Add(1)
		require.NoError(t, q.Submit(chat, wg.Done))
	}
	wg.Wait()

	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, 5*time.Millisecond)

	// a reaped chat gets a fresh worker
	ran := make(chan struct{})
	require.NoError(t, q.Submit(7, func() { close(ran) }))
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("work for a reaped chat never ran")
	}

	require.NoError(t, q.Stop(context.Background()))
}
