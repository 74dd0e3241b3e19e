// ABOUTME: Pending prompt registry resolving the reply-vs-button race at most once
// ABOUTME: Tracks competing listeners per prompt and deregisters both before delivering the winner

package prompt

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ErrCancelled is returned by Wait when the prompt was cancelled before
// any answer arrived.
var ErrCancelled = errors.New("prompt cancelled")

// Answer is the resolved input for one prompt. Exactly one Answer is ever
// delivered per prompt, from whichever source fired first.
type Answer struct {
	// Text is the reply body, or the value carried by the pressed button.
	Text string

	// MessageID is the replying message when the reply listener won; zero
	// for button resolutions.
	MessageID int

	// FromButton marks a callback-listener resolution.
	FromButton bool
}

// replyKey addresses the reply listener: the prompt message a reply quotes.
type replyKey struct {
	chatID    int64
	messageID int
}

// pending is one armed prompt with both of its listeners.
type pending struct {
	id     string
	userID int64
	reply  replyKey
	tag    string // callback listener tag, empty when no button shortcut exists
	ch     chan Answer
}

// Prompt is the caller's handle on one armed prompt.
type Prompt struct {
	registry *Registry
	p        *pending
}

// Wait blocks until the prompt resolves, is cancelled, or ctx ends.
func (pr *Prompt) Wait(ctx context.Context) (Answer, error) {
	select {
	case a, ok := <-pr.p.ch:
		if !ok {
			return Answer{}, ErrCancelled
		}
		return a, nil
	case <-ctx.Done():
		pr.registry.Cancel(pr)
		return Answer{}, ctx.Err()
	}
}

// Registry owns every in-flight prompt. A prompt arms one reply listener
// and optionally one callback listener; the first listener to observe valid
// input removes both under the registry lock, so the loser can never fire.
type Registry struct {
	mu        sync.Mutex
	replies   map[replyKey]*pending
	callbacks map[string]*pending
	logger    *slog.Logger
}

// NewRegistry creates an empty prompt registry. Pass nil logger for default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		replies:   make(map[replyKey]*pending),
		callbacks: make(map[string]*pending),
		logger:    logger.With("component", "prompt"),
	}
}

// Register arms a prompt for the given chat/message, answerable only by
// userID. A non-empty callbackTag additionally arms the button shortcut.
func (r *Registry) Register(chatID int64, messageID int, userID int64, callbackTag string) *Prompt {
	p := &pending{
		id:     uuid.New().String(),
		userID: userID,
		reply:  replyKey{chatID: chatID, messageID: messageID},
		tag:    callbackTag,
		ch:     make(chan Answer, 1),
	}

	r.mu.Lock()
	r.replies[p.reply] = p
	if p.tag != "" {
		r.callbacks[p.tag] = p
	}
	r.mu.Unlock()

	r.logger.Debug("prompt armed",
		"prompt_id", p.id,
		"chat_id", chatID,
		"message_id", messageID,
		"has_button", callbackTag != "")
	return &Prompt{registry: r, p: p}
}

// HandleReply resolves the prompt a reply message answers, if any.
// Replies from any user other than the prompt's requester are ignored.
// Returns true when the event was consumed by a prompt.
func (r *Registry) HandleReply(chatID int64, repliedToID int, userID int64, messageID int, text string) bool {
	key := replyKey{chatID: chatID, messageID: repliedToID}

	r.mu.Lock()
	p, ok := r.replies[key]
	if !ok || p.userID != userID {
		r.mu.Unlock()
		return false
	}
	r.removeLocked(p)
	r.mu.Unlock()

	p.ch <- Answer{Text: text, MessageID: messageID}
	r.logger.Debug("prompt resolved by reply", "prompt_id", p.id)
	return true
}

// HandleCallback resolves the prompt armed with the given tag, if any.
// Presses from any user other than the prompt's requester are ignored.
func (r *Registry) HandleCallback(tag string, userID int64, value string) bool {
	r.mu.Lock()
	p, ok := r.callbacks[tag]
	if !ok || p.userID != userID {
		r.mu.Unlock()
		return false
	}
	r.removeLocked(p)
	r.mu.Unlock()

	p.ch <- Answer{Text: value, FromButton: true}
	r.logger.Debug("prompt resolved by button", "prompt_id", p.id)
	return true
}

// Cancel disarms a prompt without resolving it. Safe to call after
// resolution; a resolved prompt is already gone from the maps.
func (r *Registry) Cancel(pr *Prompt) {
	r.mu.Lock()
	p, ok := r.replies[pr.p.reply]
	if ok && p == pr.p {
		r.removeLocked(p)
		close(p.ch)
	}
	r.mu.Unlock()
}

// Pending reports the number of armed prompts. Used by tests.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.replies)
}

// removeLocked drops both listeners. Must be called with mu held.
func (r *Registry) removeLocked(p *pending) {
	delete(r.replies, p.reply)
	if p.tag != "" {
		delete(r.callbacks, p.tag)
	}
}
