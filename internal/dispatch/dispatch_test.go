// ABOUTME: Tests for the outbound dispatch queue
// ABOUTME: Validates FIFO ordering, inter-send spacing, and failure isolation

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSender records send order and start timestamps.
type recordingSender struct {
	mu     sync.Mutex
	texts  []string
	starts []time.Time
	failOn map[string]error
	nextID int
}

func (s *recordingSender) Send(ctx context.Context, out Outgoing) (Sent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts = append(s.starts, time.Now())
	s.texts = append(s.texts, out.Text)
	if err, ok := s.failOn[out.Text]; ok {
		return Sent{}, err
	}
	s.nextID++
	return Sent{ChatID: out.ChatID, MessageID: s.nextID}, nil
}

func TestQueue_FIFOOrder(t *testing.T) {
	sender := &recordingSender{}
	q := NewQueue(sender, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	const n = 10
	deliveries := make([]*Delivery, n)
	for i := 0; i < n; i++ {
		deliveries[i] = q.Enqueue(Outgoing{ChatID: 1, Text: fmt.Sprintf("msg-%d", i)})
	}
	for i, d := range deliveries {
		sent, err := d.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i+1, sent.MessageID)
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.texts, n)
	for i, text := range sender.texts {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), text)
	}
}

func TestQueue_Spacing(t *testing.T) {
	const interval = 20 * time.Millisecond
	sender := &recordingSender{}
	q := NewQueue(sender, interval, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	var last *Delivery
	for i := 0; i < 4; i++ {
		last = q.Enqueue(Outgoing{ChatID: 1, Text: fmt.Sprintf("msg-%d", i)})
	}
	_, err := last.Wait(context.Background())
	require.NoError(t, err)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.starts, 4)
	for i := 1; i < len(sender.starts); i++ {
		gap := sender.starts[i].Sub(sender.starts[i-1])
		assert.GreaterOrEqual(t, gap, interval, "send %d started too early", i)
	}
}

func TestQueue_FailureDoesNotPoison(t *testing.T) {
	bang := errors.New("flood control")
	sender := &recordingSender{failOn: map[string]error{"msg-1": bang}}
	q := NewQueue(sender, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	d0 := q.Enqueue(Outgoing{ChatID: 1, Text: "msg-0"})
	d1 := q.Enqueue(Outgoing{ChatID: 1, Text: "msg-1"})
	d2 := q.Enqueue(Outgoing{ChatID: 1, Text: "msg-2"})

	_, err := d0.Wait(context.Background())
	assert.NoError(t, err)

	_, err = d1.Wait(context.Background())
	assert.ErrorIs(t, err, bang)

	// The failure above must not stall the queue
	sent, err := d2.Wait(context.Background())
	assert.NoError(t, err)
	assert.NotZero(t, sent.MessageID)
}

func TestQueue_ShutdownFailsPending(t *testing.T) {
	sender := &recordingSender{}
	q := NewQueue(sender, time.Hour, nil) // pacing long enough to trap entry 2 in the queue

	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx)

	d0 := q.Enqueue(Outgoing{ChatID: 1, Text: "msg-0"})
	_, err := d0.Wait(context.Background())
	require.NoError(t, err)

	d1 := q.Enqueue(Outgoing{ChatID: 1, Text: "msg-1"})
	cancel()

	_, err = d1.Wait(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestDelivery_WaitHonorsContext(t *testing.T) {
	sender := &recordingSender{}
	q := NewQueue(sender, time.Hour, nil)
	// Queue not running: delivery will never resolve.
	d := q.Enqueue(Outgoing{ChatID: 1, Text: "stuck"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := d.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
