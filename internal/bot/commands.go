// ABOUTME: Slash command handlers: register, bind, info, list
// ABOUTME: Every handler resolves the sender first and aborts with a fixed message when unregistered

package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tonehoard/tonehoard/internal/account"
	"github.com/tonehoard/tonehoard/internal/dispatch"
	"github.com/tonehoard/tonehoard/internal/store"
	"github.com/tonehoard/tonehoard/internal/views"
)

// Register handles /register. With a token the sender's identity is bound
// to the token's account; without one a fresh account is created. Either
// way the resulting account info is shown.
func (c *Controller) Register(ctx context.Context, msg Incoming, token string) {
	var err error
	if token != "" {
		_, err = c.accounts.ConsumeBindToken(ctx, token, msg.From.bind())
	} else {
		_, err = c.accounts.Register(ctx, msg.From.displayName(), msg.From.bind())
	}
	if err != nil {
		c.sendError(msg.ChatID, msg.MessageID, registerErrorText(err))
		return
	}
	c.Info(ctx, msg)
}

func registerErrorText(err error) string {
	switch {
	case errors.Is(err, store.ErrAccountExists):
		return "User exist"
	case errors.Is(err, store.ErrBindExists):
		return "Bind exist"
	case errors.Is(err, account.ErrTokenNotFound):
		return "Token not found!"
	default:
		return "Failed to register!"
	}
}

// Bind handles /bind: issues a single-use token the sender can redeem from
// another identity via /register <token>.
func (c *Controller) Bind(ctx context.Context, msg Incoming) {
	acct := c.resolve(ctx, msg.From)
	if acct == nil {
		c.sendError(msg.ChatID, msg.MessageID, notRegisteredText)
		return
	}
	token := c.accounts.CreateBindToken(acct.ID)
	c.post(dispatch.Outgoing{
		ChatID: msg.ChatID,
		Text:   fmt.Sprintf("Register token: %s\nExpires after one hour", token),
	})
}

// Info handles /info: prints the sender's account and its bound identities.
func (c *Controller) Info(ctx context.Context, msg Incoming) {
	acct := c.resolve(ctx, msg.From)
	if acct == nil {
		c.post(dispatch.Outgoing{ChatID: msg.ChatID, Text: notRegisteredText})
		return
	}

	binds := make([]string, 0, len(acct.Binds))
	for _, b := range acct.Binds {
		binds = append(binds, fmt.Sprintf("%s(%s)", b.Type, b.ID))
	}
	c.post(dispatch.Outgoing{
		ChatID: msg.ChatID,
		Text:   fmt.Sprintf("ID: %s\nName: %s\nBind: %s", acct.ID, acct.Name, strings.Join(binds, ", ")),
	})
}

// ShowList handles /list. The default scope is the sender's own playlists;
// "/list all" shows every playlist.
func (c *Controller) ShowList(ctx context.Context, msg Incoming, all bool) {
	acct := c.resolve(ctx, msg.From)
	if acct == nil {
		c.sendError(msg.ChatID, msg.MessageID, notRegisteredText)
		return
	}

	ownerID := acct.ID
	if all {
		ownerID = ""
	}
	view, err := c.playlistView(ctx, ownerID, 0, false)
	if err != nil {
		c.logger.Warn("listing playlists failed", "error", err)
		return
	}
	c.post(dispatch.Outgoing{ChatID: msg.ChatID, Text: view.Text, Buttons: view.Buttons})
}

// HandleReply routes a reply message to the prompt that asked for it.
// Returns true when a pending prompt consumed the event.
func (c *Controller) HandleReply(msg Incoming, repliedTo int, text string) bool {
	return c.prompts.HandleReply(msg.ChatID, repliedTo, msg.From.UserID, msg.MessageID, text)
}

// HandleHexID handles a bare track-identifier text. It only acts inside a
// collecting session; the identified track is appended to the session's list.
func (c *Controller) HandleHexID(ctx context.Context, msg Incoming, id string) {
	listID, ok := c.sessions.Collecting(msg.ChatID)
	if !ok {
		return
	}

	track, err := c.audio.GetAudio(ctx, id)
	if err != nil {
		c.replyTo(msg.ChatID, msg.MessageID, "Sound ID not found in database")
		return
	}
	if _, err := c.lists.AddAudio(ctx, listID, track.ID); err != nil {
		c.logger.Warn("appending track to list failed", "list_id", listID, "error", err)
		return
	}
	c.replyTo(msg.ChatID, msg.MessageID, "Added to list!")
}

// playlistView loads one page of playlists and renders it. An empty ownerID
// selects the global listing; adminMode switches to administered lists.
func (c *Controller) playlistView(ctx context.Context, ownerID string, offset int, adminMode bool) (views.View, error) {
	var (
		items []*store.Playlist
		total int
		err   error
	)
	switch {
	case ownerID == "":
		items, total, err = c.lists.ListPlaylists(ctx, offset, views.PageSize)
	case adminMode:
		items, total, err = c.lists.ListPlaylistsByAdmin(ctx, ownerID, offset, views.PageSize)
	default:
		items, total, err = c.lists.ListPlaylistsByOwner(ctx, ownerID, offset, views.PageSize)
	}
	if err != nil {
		return views.View{}, fmt.Errorf("loading playlist page: %w", err)
	}

	return views.PlaylistView(views.PlaylistPage{
		Items:     items,
		Offset:    offset,
		Total:     total,
		OwnerID:   ownerID,
		AdminMode: adminMode,
		ViewerID:  ownerID,
	}), nil
}
