// ABOUTME: Long-poll ingress mapping platform updates to controller entry points
// ABOUTME: One worker goroutine per chat keeps per-chat arrival order; chats run concurrently

package telegram

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tonehoard/tonehoard/internal/bot"
	"github.com/tonehoard/tonehoard/internal/dedupe"
)

// pollTimeout is the long-poll timeout in seconds.
const pollTimeout = 30

// dedupeTTL is how long processed update IDs are remembered.
const dedupeTTL = 10 * time.Minute

// hexIDPattern matches a bare track identifier message.
var hexIDPattern = regexp.MustCompile(`(?i)^[0-9a-f]{24}$`)

// Adapter connects one bot account's update stream to the controller.
type Adapter struct {
	api        *tgbotapi.BotAPI
	controller *bot.Controller
	seen       *dedupe.Seen
	logger     *slog.Logger

	mu      sync.Mutex
	workers map[int64]chan tgbotapi.Update
	wg      sync.WaitGroup
}

// NewAdapter creates the ingress adapter. Pass nil logger for default.
func NewAdapter(api *tgbotapi.BotAPI, controller *bot.Controller, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		api:        api,
		controller: controller,
		seen:       dedupe.New(dedupeTTL),
		logger:     logger.With("component", "telegram"),
		workers:    make(map[int64]chan tgbotapi.Update),
	}
}

// Run consumes updates until ctx is cancelled. Updates for one chat are
// handed to that chat's worker in arrival order.
func (a *Adapter) Run(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout
	updates := a.api.GetUpdatesChan(cfg)

	a.logger.Info("update loop started", "bot", a.api.Self.UserName)
	for {
		select {
		case <-ctx.Done():
			a.api.StopReceivingUpdates()
			a.shutdown()
			return
		case update, ok := <-updates:
			if !ok {
				a.shutdown()
				return
			}
			if a.seen.CheckAndMark(strconv.Itoa(update.UpdateID)) {
				continue
			}
			chatID, ok := updateChatID(update)
			if !ok {
				continue
			}
			a.worker(ctx, chatID) <- update
		}
	}
}

// worker returns the chat's update channel, starting its goroutine on first use.
func (a *Adapter) worker(ctx context.Context, chatID int64) chan tgbotapi.Update {
	a.mu.Lock()
	defer a.mu.Unlock()

	ch, ok := a.workers[chatID]
	if ok {
		return ch
	}

	ch = make(chan tgbotapi.Update, 64)
	a.workers[chatID] = ch
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for update := range ch {
			a.handle(ctx, update)
		}
	}()
	return ch
}

// shutdown closes every worker channel and waits for them to drain.
func (a *Adapter) shutdown() {
	a.mu.Lock()
	for _, ch := range a.workers {
		close(ch)
	}
	a.workers = make(map[int64]chan tgbotapi.Update)
	a.mu.Unlock()
	a.wg.Wait()
}

func (a *Adapter) handle(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		a.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		a.handleMessage(ctx, update.Message)
	}
}

func (a *Adapter) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.Message != nil && q.Data != "" {
		a.controller.HandleCallback(ctx, bot.Callback{
			ChatID:    q.Message.Chat.ID,
			MessageID: q.Message.MessageID,
			From:      identityOf(q.From),
			Data:      q.Data,
		})
	}
	// Every press is acknowledged, including unknown payloads.
	if _, err := a.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		a.logger.Debug("acknowledging callback failed", "error", err)
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	in := bot.Incoming{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		From:      identityOf(msg.From),
	}

	if msg.ReplyToMessage != nil {
		if a.controller.HandleReply(in, msg.ReplyToMessage.MessageID, msg.Text) {
			return
		}
	}

	switch {
	case msg.IsCommand():
		if !addressedToBot(msg, a.api.Self.UserName) {
			return
		}
		a.handleCommand(ctx, in, msg)

	case msg.Audio != nil:
		a.controller.HandleAudio(ctx, bot.AudioUpload{
			Incoming: in,
			FileID:   msg.Audio.FileID,
			Title:    msg.Audio.Title,
			Artist:   msg.Audio.Performer,
			Duration: msg.Audio.Duration,
		})

	case msg.Document != nil:
		a.controller.HandleDocument(ctx, bot.DocumentUpload{
			Incoming: in,
			FileID:   msg.Document.FileID,
			FileName: msg.Document.FileName,
		})

	case hexIDPattern.MatchString(msg.Text):
		a.controller.HandleHexID(ctx, in, strings.ToLower(msg.Text))

	default:
		if links := extractLinks(msg); len(links) > 0 {
			a.controller.HandleLinks(ctx, in, links)
		}
	}
}

func (a *Adapter) handleCommand(ctx context.Context, in bot.Incoming, msg *tgbotapi.Message) {
	args := msg.CommandArguments()
	switch msg.Command() {
	case "register":
		a.controller.Register(ctx, in, strings.TrimSpace(args))
	case "bind":
		a.controller.Bind(ctx, in)
	case "info":
		a.controller.Info(ctx, in)
	case "list":
		a.controller.ShowList(ctx, in, strings.EqualFold(strings.TrimSpace(args), "all"))
	}
}

func identityOf(u *tgbotapi.User) bot.Identity {
	return bot.Identity{UserID: u.ID, Username: u.UserName}
}

// updateChatID picks the chat an update belongs to, for worker routing.
func updateChatID(update tgbotapi.Update) (int64, bool) {
	switch {
	case update.Message != nil:
		return update.Message.Chat.ID, true
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		return update.CallbackQuery.Message.Chat.ID, true
	default:
		return 0, false
	}
}

// addressedToBot reports whether a command should be honored: always in
// private chats, in groups only when suffixed with the bot's username.
func addressedToBot(msg *tgbotapi.Message, username string) bool {
	if msg.Chat.IsPrivate() {
		return true
	}
	return strings.HasSuffix(msg.CommandWithAt(), "@"+username)
}

// extractLinks collects URLs from a message's entities.
func extractLinks(msg *tgbotapi.Message) []string {
	var links []string
	for _, e := range msg.Entities {
		switch e.Type {
		case "url":
			if link := entityText(msg.Text, e); link != "" {
				links = append(links, link)
			}
		case "text_link":
			if e.URL != "" {
				links = append(links, e.URL)
			}
		}
	}
	return links
}

// entityText slices an entity out of the message text. Entity offsets count
// UTF-16 code units.
func entityText(text string, e tgbotapi.MessageEntity) string {
	units := utf16.Encode([]rune(text))
	if e.Offset < 0 || e.Offset+e.Length > len(units) {
		return ""
	}
	return string(utf16.Decode(units[e.Offset : e.Offset+e.Length]))
}
