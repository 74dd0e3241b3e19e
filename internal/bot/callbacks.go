// ABOUTME: Button-press dispatch over the typed command set
// ABOUTME: Permission checks run synchronously; prompt flows continue in their own goroutine

package bot

import (
	"context"
	"strconv"
	"strings"

	"github.com/tonehoard/tonehoard/internal/command"
	"github.com/tonehoard/tonehoard/internal/dispatch"
	"github.com/tonehoard/tonehoard/internal/prompt"
	"github.com/tonehoard/tonehoard/internal/views"
)

// setTitlePrefix marks the title-prompt shortcut button. Its payload is
// slash-separated because filenames may contain spaces.
const setTitlePrefix = "setTitle/"

// HandleCallback processes one button press. Unknown or malformed payloads
// are dropped without any visible effect; the adapter acknowledges the
// press either way.
func (c *Controller) HandleCallback(ctx context.Context, cb Callback) {
	if strings.HasPrefix(cb.Data, setTitlePrefix) {
		c.handleSetTitle(cb)
		return
	}

	cmd, err := command.Parse(cb.Data)
	if err != nil {
		c.logger.Debug("dropping callback", "data", cb.Data, "error", err)
		return
	}

	switch cmd := cmd.(type) {
	case command.AudioInfo:
		c.audioInfoCallback(ctx, cb, cmd)
	case command.ShowList:
		c.playlistCallback(ctx, cb, cmd)
	case command.ListInfo:
		c.listInfoCallback(ctx, cb, cmd)
	case command.ListSwitch:
		c.listSwitchCallback(ctx, cb, cmd)
	case command.ListCreate:
		c.listCreateCallback(ctx, cb, cmd)
	case command.ListAudioAdd:
		c.listAudioAddCallback(ctx, cb, cmd)
	case command.ListAudioDel:
		c.listAudioDelCallback(ctx, cb, cmd)
	case command.ListAudioPage:
		c.listAudioPageCallback(ctx, cb, cmd)
	case command.ListAdminAdd:
		c.adminFlowCallback(ctx, cb, cmd.ListID, true)
	case command.ListAdminRemove:
		c.adminFlowCallback(ctx, cb, cmd.ListID, false)
	case command.ListRename:
		c.listRenameCallback(ctx, cb, cmd)
	case command.ListDelete:
		c.listDeleteCallback(ctx, cb, cmd)
	}
}

// handleSetTitle resolves a title prompt through its button shortcut.
// Payload shape: setTitle/<messageID>/<value>.
func (c *Controller) handleSetTitle(cb Callback) {
	parts := strings.SplitN(cb.Data, "/", 3)
	if len(parts) != 3 {
		return
	}
	tag := parts[0] + "/" + parts[1]
	c.prompts.HandleCallback(tag, cb.From.UserID, parts[2])
}

func (c *Controller) audioInfoCallback(ctx context.Context, cb Callback, cmd command.AudioInfo) {
	track, err := c.audio.GetAudio(ctx, cmd.AudioID)
	if err != nil {
		return
	}
	c.post(dispatch.Outgoing{
		ChatID: cb.ChatID,
		Edit:   cb.MessageID,
		Text:   views.AudioDetailText(track),
	})
}

func (c *Controller) playlistCallback(ctx context.Context, cb Callback, cmd command.ShowList) {
	view, err := c.playlistView(ctx, cmd.OwnerID, cmd.Offset, false)
	if err != nil {
		c.logger.Warn("rendering playlist page failed", "error", err)
		return
	}
	c.editView(cb, view)
}

func (c *Controller) listInfoCallback(ctx context.Context, cb Callback, cmd command.ListInfo) {
	acct := c.resolve(ctx, cb.From)
	if acct == nil {
		return
	}
	list, err := c.lists.GetPlaylist(ctx, cmd.ListID)
	if err != nil {
		return
	}
	c.editView(cb, views.ListDetailView(list, acct.ID))
}

func (c *Controller) listSwitchCallback(ctx context.Context, cb Callback, cmd command.ListSwitch) {
	acct := c.resolve(ctx, cb.From)
	if acct == nil {
		return
	}
	view, err := c.playlistView(ctx, acct.ID, 0, cmd.ToAdmin)
	if err != nil {
		c.logger.Warn("rendering playlist page failed", "error", err)
		return
	}
	c.editView(cb, view)
}

// listCreateCallback starts the create-list flow. Only the user the create
// button was rendered for may start it.
func (c *Controller) listCreateCallback(ctx context.Context, cb Callback, cmd command.ListCreate) {
	acct := c.resolve(ctx, cb.From)
	if acct == nil || acct.ID != cmd.OwnerID {
		return
	}
	go c.runCreateListFlow(ctx, cb, acct.ID)
}

func (c *Controller) runCreateListFlow(ctx context.Context, cb Callback, ownerID string) {
	ans, err := c.ask(ctx, cb.ChatID, cb.From.UserID, "Enter name for new playlist")
	if err != nil {
		return
	}
	if ans.Text == "" {
		c.post(dispatch.Outgoing{ChatID: cb.ChatID, Text: "Invalid name!"})
		return
	}
	if _, err := c.lists.CreatePlaylist(ctx, ans.Text, ownerID); err != nil {
		c.logger.Warn("creating playlist failed", "error", err)
		return
	}
	c.replyTo(cb.ChatID, ans.MessageID, "Success!")
}

// listAudioAddCallback toggles the collecting session. Editing rights are
// required for both directions.
func (c *Controller) listAudioAddCallback(ctx context.Context, cb Callback, cmd command.ListAudioAdd) {
	list, err := c.lists.GetPlaylist(ctx, cmd.ListID)
	if err != nil {
		return
	}
	acct := c.resolve(ctx, cb.From)
	if acct == nil || !list.CanEdit(acct.ID) {
		return
	}

	if cmd.Done {
		c.sessions.StopCollecting(cb.ChatID)
		c.post(dispatch.Outgoing{
			ChatID: cb.ChatID,
			Edit:   cb.MessageID,
			Text:   "Now this list have " + strconv.Itoa(list.AudioCount) + " sounds!",
		})
		return
	}

	c.sessions.StartCollecting(cb.ChatID, list.ID)
	c.post(dispatch.Outgoing{
		ChatID:  cb.ChatID,
		Text:    "Send me audio file or sound ID you want add to list " + list.Name,
		Buttons: views.DoneRow(list.ID),
	})
}

// listAudioDelCallback runs the two-phase track removal. The first press
// only asks for confirmation; the confirmed press removes the track and
// marks the confirmation message inert.
func (c *Controller) listAudioDelCallback(ctx context.Context, cb Callback, cmd command.ListAudioDel) {
	if cmd.Confirmed {
		if _, err := c.lists.RemoveAudio(ctx, cmd.ListID, cmd.AudioID); err != nil {
			c.logger.Warn("removing track failed", "list_id", cmd.ListID, "error", err)
		}
		c.post(dispatch.Outgoing{
			ChatID:         cb.ChatID,
			Edit:           cb.MessageID,
			EditMarkupOnly: true,
			Buttons:        views.DeletedRow(),
		})
		return
	}

	list, err := c.lists.GetPlaylist(ctx, cmd.ListID)
	if err != nil {
		return
	}
	track, err := c.audio.GetAudio(ctx, cmd.AudioID)
	if err != nil {
		return
	}
	if ok, err := c.lists.HasAudio(ctx, cmd.ListID, cmd.AudioID); err != nil || !ok {
		return
	}

	confirm := command.ListAudioDel{ListID: cmd.ListID, AudioID: cmd.AudioID, Confirmed: true}
	c.post(dispatch.Outgoing{
		ChatID:  cb.ChatID,
		Text:    "Are you sure delete " + track.Title + " from list " + list.Name + "?",
		Buttons: views.ConfirmRow(confirm.Encode()),
	})
}

func (c *Controller) listAudioPageCallback(ctx context.Context, cb Callback, cmd command.ListAudioPage) {
	items, total, err := c.lists.ListAudio(ctx, cmd.ListID, cmd.Offset, views.PageSize)
	if err != nil {
		return
	}
	view := views.AudioPageView(views.AudioPage{
		ListID:     cmd.ListID,
		Items:      items,
		Offset:     cmd.Offset,
		Total:      total,
		DeleteMode: cmd.DeleteMode,
	})
	c.editView(cb, view)
}

// adminFlowCallback starts the add/remove-admin flow. Owner only.
func (c *Controller) adminFlowCallback(ctx context.Context, cb Callback, listID string, add bool) {
	list, err := c.lists.GetPlaylist(ctx, listID)
	if err != nil {
		return
	}
	acct := c.resolve(ctx, cb.From)
	if acct == nil || !list.IsOwner(acct.ID) {
		return
	}
	go c.runAdminFlow(ctx, cb, list.ID, add)
}

func (c *Controller) runAdminFlow(ctx context.Context, cb Callback, listID string, add bool) {
	promptText := "Enter user's telegram id to add admin"
	selfText := "You are adding your self!"
	if !add {
		promptText = "Enter user's telegram id to remove admin"
		selfText = "You are removing your self!"
	}

	ans, err := c.ask(ctx, cb.ChatID, cb.From.UserID, promptText)
	if err != nil {
		return
	}
	if ans.Text == "" {
		c.post(dispatch.Outgoing{ChatID: cb.ChatID, Text: "Invalid name!"})
		return
	}

	targetID, err := strconv.ParseInt(strings.TrimSpace(ans.Text), 10, 64)
	if err == nil && targetID == cb.From.UserID {
		c.post(dispatch.Outgoing{ChatID: cb.ChatID, Text: selfText})
		return
	}
	target := c.resolve(ctx, Identity{UserID: targetID})
	if err != nil || target == nil {
		c.post(dispatch.Outgoing{ChatID: cb.ChatID, Text: "User not found or not registered!"})
		return
	}

	if add {
		_, err = c.lists.AddAdmin(ctx, listID, target.ID)
	} else {
		_, err = c.lists.RemoveAdmin(ctx, listID, target.ID)
	}
	if err != nil {
		c.logger.Warn("updating admin set failed", "list_id", listID, "error", err)
		return
	}
	c.replyTo(cb.ChatID, ans.MessageID, "Success!")
}

// listRenameCallback starts the rename flow. Owner only.
func (c *Controller) listRenameCallback(ctx context.Context, cb Callback, cmd command.ListRename) {
	list, err := c.lists.GetPlaylist(ctx, cmd.ListID)
	if err != nil {
		return
	}
	acct := c.resolve(ctx, cb.From)
	if acct == nil || !list.IsOwner(acct.ID) {
		return
	}
	go c.runRenameFlow(ctx, cb, list.ID)
}

func (c *Controller) runRenameFlow(ctx context.Context, cb Callback, listID string) {
	ans, err := c.ask(ctx, cb.ChatID, cb.From.UserID, "Enter new name")
	if err != nil {
		return
	}
	if ans.Text == "" {
		c.post(dispatch.Outgoing{ChatID: cb.ChatID, Text: "Invalid name!"})
		return
	}
	if _, err := c.lists.RenamePlaylist(ctx, listID, ans.Text); err != nil {
		c.logger.Warn("renaming playlist failed", "list_id", listID, "error", err)
		return
	}
	c.replyTo(cb.ChatID, ans.MessageID, "Success!")
}

// listDeleteCallback runs the two-phase playlist removal. Owner only, on
// both phases.
func (c *Controller) listDeleteCallback(ctx context.Context, cb Callback, cmd command.ListDelete) {
	list, err := c.lists.GetPlaylist(ctx, cmd.ListID)
	if err != nil {
		return
	}
	acct := c.resolve(ctx, cb.From)
	if acct == nil || !list.IsOwner(acct.ID) {
		return
	}

	if cmd.Confirmed {
		if err := c.lists.DeletePlaylist(ctx, cmd.ListID); err != nil {
			c.logger.Warn("deleting playlist failed", "list_id", cmd.ListID, "error", err)
		}
		c.post(dispatch.Outgoing{
			ChatID:         cb.ChatID,
			Edit:           cb.MessageID,
			EditMarkupOnly: true,
			Buttons:        views.DeletedRow(),
		})
		return
	}

	confirm := command.ListDelete{ListID: cmd.ListID, Confirmed: true}
	c.post(dispatch.Outgoing{
		ChatID:  cb.ChatID,
		Text:    "Are you sure delete list " + list.Name + "?",
		Buttons: views.ConfirmRow(confirm.Encode()),
	})
}

// ask sends a force-reply prompt and waits for the requester's answer.
func (c *Controller) ask(ctx context.Context, chatID, userID int64, text string) (prompt.Answer, error) {
	sent, err := c.send(ctx, dispatch.Outgoing{ChatID: chatID, Text: text, ForceReply: true})
	if err != nil {
		return prompt.Answer{}, err
	}
	return c.prompts.Register(chatID, sent.MessageID, userID, "").Wait(ctx)
}

// editView rewrites the pressed message in place with a rendered view.
func (c *Controller) editView(cb Callback, view views.View) {
	c.post(dispatch.Outgoing{
		ChatID:  cb.ChatID,
		Edit:    cb.MessageID,
		Text:    view.Text,
		Buttons: view.Buttons,
	})
}
