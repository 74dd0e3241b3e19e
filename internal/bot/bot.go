// ABOUTME: Interaction controller turning inbound chat events into ordered outbound replies
// ABOUTME: Owns conversational flows, the collecting session, and all permission gating

package bot

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/tonehoard/tonehoard/internal/account"
	"github.com/tonehoard/tonehoard/internal/dispatch"
	"github.com/tonehoard/tonehoard/internal/prompt"
	"github.com/tonehoard/tonehoard/internal/session"
	"github.com/tonehoard/tonehoard/internal/store"
)

// BindType is the identity namespace this controller binds accounts under.
const BindType = "telegram"

// notRegisteredText is sent whenever a sender has no bound account.
const notRegisteredText = "Please use /register to register or bind account!"

// Identity is the platform-side sender of an event.
type Identity struct {
	UserID   int64
	Username string
}

// bind returns the store identity for this sender.
func (id Identity) bind() store.Bind {
	return store.Bind{Type: BindType, ID: strconv.FormatInt(id.UserID, 10)}
}

// displayName is the account name used at registration.
func (id Identity) displayName() string {
	if id.Username != "" {
		return id.Username
	}
	return strconv.FormatInt(id.UserID, 10)
}

// Incoming locates one inbound message.
type Incoming struct {
	ChatID    int64
	MessageID int
	From      Identity
}

// Callback is one inbound button press.
type Callback struct {
	ChatID    int64
	MessageID int
	From      Identity
	Data      string
}

// AudioUpload is an inbound audio message with whatever metadata the
// platform attached.
type AudioUpload struct {
	Incoming
	FileID   string
	Title    string
	Artist   string
	Duration int
}

// DocumentUpload is an inbound document message.
type DocumentUpload struct {
	Incoming
	FileID   string
	FileName string
}

// Controller coordinates every inbound event against the stores and emits
// all replies through the outbound queue. Callers must deliver events for
// one chat sequentially; distinct chats may call concurrently.
type Controller struct {
	accounts *account.Manager
	lists    store.PlaylistStore
	audio    store.AudioStore
	queue    *dispatch.Queue
	prompts  *prompt.Registry
	sessions *session.Store
	logger   *slog.Logger
}

// New creates a Controller over the given collaborators. Pass nil logger
// for default.
func New(accounts *account.Manager, lists store.PlaylistStore, audio store.AudioStore, queue *dispatch.Queue, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		accounts: accounts,
		lists:    lists,
		audio:    audio,
		queue:    queue,
		prompts:  prompt.NewRegistry(logger),
		sessions: session.NewStore(),
		logger:   logger.With("component", "bot"),
	}
}

// resolve maps a sender to their account, or nil when unregistered.
func (c *Controller) resolve(ctx context.Context, id Identity) *store.Account {
	acct, err := c.accounts.Resolve(ctx, id.bind())
	if err != nil {
		return nil
	}
	return acct
}

// send enqueues and waits for the platform message ID.
func (c *Controller) send(ctx context.Context, out dispatch.Outgoing) (dispatch.Sent, error) {
	return c.queue.Enqueue(out).Wait(ctx)
}

// post enqueues without waiting for the result; send failures are logged
// by the queue.
func (c *Controller) post(out dispatch.Outgoing) {
	c.queue.Enqueue(out)
}

// replyTo posts a plain text reply to a message.
func (c *Controller) replyTo(chatID int64, messageID int, text string) {
	c.post(dispatch.Outgoing{ChatID: chatID, Text: text, ReplyTo: messageID})
}

// sendError posts an error text as a reply with link previews suppressed.
func (c *Controller) sendError(chatID int64, messageID int, text string) {
	c.post(dispatch.Outgoing{
		ChatID:         chatID,
		Text:           text,
		ReplyTo:        messageID,
		DisablePreview: true,
	})
}
