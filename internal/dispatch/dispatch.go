// ABOUTME: Global outbound message queue with strict FIFO ordering and rate pacing
// ABOUTME: One in-flight platform send at a time; failures propagate per delivery without stalling the queue

package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tonehoard/tonehoard/internal/views"
)

// DefaultSendInterval is the minimum spacing between platform sends.
const DefaultSendInterval = time.Second

// ErrQueueClosed is returned for deliveries still queued when the queue shuts down.
var ErrQueueClosed = errors.New("dispatch queue closed")

// Outgoing describes one platform operation. Exactly one of the default
// send, Edit, or Delete shapes applies:
//   - Delete != 0: delete that message
//   - Edit != 0: edit that message's text (or only its keyboard when
//     EditMarkupOnly is set)
//   - otherwise: send a new message
type Outgoing struct {
	ChatID int64
	Text   string

	// ReplyTo quotes an existing message when nonzero.
	ReplyTo int

	// ForceReply asks the platform to route the recipient's next reply back
	// to this message (selective: only the quoted user).
	ForceReply bool

	// DisablePreview suppresses link previews.
	DisablePreview bool

	Buttons [][]views.Button

	Edit           int
	EditMarkupOnly bool
	Delete         int
}

// Sent identifies the message a send produced on the platform.
type Sent struct {
	ChatID    int64
	MessageID int
}

// Sender performs one platform call. Implemented by the telegram adapter.
type Sender interface {
	Send(ctx context.Context, out Outgoing) (Sent, error)
}

type result struct {
	sent Sent
	err  error
}

// Delivery is the receipt for one enqueued message. Wait blocks until the
// platform call for this entry completed (or the queue shut down).
type Delivery struct {
	ch chan result
}

// Wait returns the platform's response for this delivery.
func (d *Delivery) Wait(ctx context.Context) (Sent, error) {
	select {
	case r, ok := <-d.ch:
		if !ok {
			return Sent{}, ErrQueueClosed
		}
		return r.sent, r.err
	case <-ctx.Done():
		return Sent{}, ctx.Err()
	}
}

type job struct {
	out      Outgoing
	delivery *Delivery
}

// Queue is the single global serialization point for outbound traffic.
// Entries are sent in Enqueue order; a new send does not begin until the
// configured interval has passed since the previous send returned.
type Queue struct {
	sender   Sender
	interval time.Duration
	jobs     chan job
	logger   *slog.Logger
}

// NewQueue creates a queue over the given sender. An interval <= 0 falls
// back to DefaultSendInterval. Pass nil logger for default.
func NewQueue(sender Sender, interval time.Duration, logger *slog.Logger) *Queue {
	if interval <= 0 {
		interval = DefaultSendInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		sender:   sender,
		interval: interval,
		jobs:     make(chan job, 128),
		logger:   logger.With("component", "dispatch"),
	}
}

// Enqueue appends an entry to the global queue and returns its delivery
// receipt. Enqueue itself never fails; send errors surface via Wait.
func (q *Queue) Enqueue(out Outgoing) *Delivery {
	d := &Delivery{ch: make(chan result, 1)}
	q.jobs <- job{out: out, delivery: d}
	return d
}

// Run drains the queue until ctx is cancelled. It must be called exactly
// once; pending deliveries are failed with ErrQueueClosed on shutdown.
func (q *Queue) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			q.drain()
			return
		case j := <-q.jobs:
			sent, err := q.sender.Send(ctx, j.out)
			if err != nil {
				q.logger.Warn("platform send failed", "chat_id", j.out.ChatID, "error", err)
			}
			j.delivery.ch <- result{sent: sent, err: err}

			// Pace from the moment the platform call returned.
			timer.Reset(q.interval)
			select {
			case <-timer.C:
			case <-ctx.Done():
				q.drain()
				return
			}
		}
	}
}

// drain fails every queued delivery after shutdown.
func (q *Queue) drain() {
	for {
		select {
		case j := <-q.jobs:
			j.delivery.ch <- result{err: ErrQueueClosed}
		default:
			return
		}
	}
}
