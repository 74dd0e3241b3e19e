// ABOUTME: Audio, document and link ingestion including the bounded title-collection flow
// ABOUTME: Uploads edit their Processing message in place; links reply to the original message

package bot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/tonehoard/tonehoard/internal/dispatch"
	"github.com/tonehoard/tonehoard/internal/store"
	"github.com/tonehoard/tonehoard/internal/views"
)

// titleAttempts bounds how often an invalid answer reissues the title prompt.
const titleAttempts = 3

// sourcePrefix marks platform file references in stored source URIs.
const sourcePrefix = "tg://"

var errNoValidTitle = errors.New("not valid title")

// HandleAudio ingests an uploaded audio message. Resolution and the
// Processing acknowledgment happen in arrival order; the remainder runs in
// its own goroutine because it may wait on a title prompt.
func (c *Controller) HandleAudio(ctx context.Context, up AudioUpload) {
	acct := c.resolve(ctx, up.From)
	if acct == nil {
		c.sendError(up.ChatID, up.MessageID, notRegisteredText)
		return
	}
	go c.runAudioFlow(ctx, up, acct)
}

func (c *Controller) runAudioFlow(ctx context.Context, up AudioUpload, acct *store.Account) {
	source := sourcePrefix + up.FileID
	processing, err := c.sendProcessing(ctx, up.ChatID, up.MessageID)
	if err != nil {
		return
	}

	meta := store.AudioMeta{Title: up.Title, Artist: up.Artist, Duration: up.Duration}
	if up.Title != "" {
		track, err := c.audio.CreateAudio(ctx, acct.ID, source, meta)
		if err != nil {
			c.editError(up.ChatID, processing.MessageID, "An error occured when adding song: "+err.Error())
			return
		}
		c.finishDone(ctx, up.ChatID, processing.MessageID, 0, track)
		return
	}

	if track, err := c.audio.GetAudioBySource(ctx, source); err == nil {
		c.finishDone(ctx, up.ChatID, processing.MessageID, 0, track)
		return
	}

	title, err := c.collectTitle(ctx, up.ChatID, up.MessageID, up.From.UserID, "")
	if err != nil {
		return
	}
	meta.Title = title
	track, err := c.audio.CreateAudio(ctx, acct.ID, source, meta)
	if err != nil {
		c.editError(up.ChatID, processing.MessageID, "An error occured when adding song: "+err.Error())
		return
	}
	c.finishDone(ctx, up.ChatID, processing.MessageID, 0, track)
}

// HandleDocument ingests an uploaded document as a track.
func (c *Controller) HandleDocument(ctx context.Context, up DocumentUpload) {
	acct := c.resolve(ctx, up.From)
	if acct == nil {
		c.sendError(up.ChatID, up.MessageID, notRegisteredText)
		return
	}
	go c.runDocumentFlow(ctx, up, acct)
}

func (c *Controller) runDocumentFlow(ctx context.Context, up DocumentUpload, acct *store.Account) {
	source := sourcePrefix + up.FileID
	processing, err := c.sendProcessing(ctx, up.ChatID, up.MessageID)
	if err != nil {
		return
	}

	track, err := c.audio.CreateAudio(ctx, acct.ID, source, store.AudioMeta{})
	if errors.Is(err, store.ErrMissingTitle) {
		title, terr := c.collectTitle(ctx, up.ChatID, up.MessageID, up.From.UserID, up.FileName)
		if terr != nil {
			c.editError(up.ChatID, processing.MessageID, "Failed to process the file: "+terr.Error())
			return
		}
		track, err = c.audio.CreateAudio(ctx, acct.ID, source, store.AudioMeta{Title: title})
	}
	if err != nil {
		c.editError(up.ChatID, processing.MessageID, "Failed to process the file: "+err.Error())
		return
	}
	c.finishDone(ctx, up.ChatID, processing.MessageID, 0, track)
}

// HandleLinks ingests tracks referenced by URL in a text message.
func (c *Controller) HandleLinks(ctx context.Context, msg Incoming, links []string) {
	acct := c.resolve(ctx, msg.From)
	if acct == nil {
		c.sendError(msg.ChatID, msg.MessageID, notRegisteredText)
		return
	}
	c.replyTo(msg.ChatID, msg.MessageID, "Processing...")
	go c.runLinkFlow(ctx, msg, acct, links)
}

func (c *Controller) runLinkFlow(ctx context.Context, msg Incoming, acct *store.Account, links []string) {
	for _, link := range links {
		track, err := c.audio.CreateAudio(ctx, acct.ID, link, store.AudioMeta{})
		if errors.Is(err, store.ErrMissingTitle) {
			title, terr := c.collectTitle(ctx, msg.ChatID, msg.MessageID, msg.From.UserID, linkBasename(link))
			if terr != nil {
				c.sendError(msg.ChatID, msg.MessageID, fmt.Sprintf("Failed to process the link %s: %s", link, terr))
				continue
			}
			track, err = c.audio.CreateAudio(ctx, acct.ID, link, store.AudioMeta{Title: title})
		}
		if err != nil {
			c.sendError(msg.ChatID, msg.MessageID, fmt.Sprintf("Failed to process the link %s: %s", link, err))
			continue
		}
		c.finishDone(ctx, msg.ChatID, 0, msg.MessageID, track)
	}
}

// collectTitle runs the bounded title prompt. Each attempt arms both a
// force-reply listener and, when a filename suggestion exists, a shortcut
// button resolving to the filename.
func (c *Controller) collectTitle(ctx context.Context, chatID int64, origMsgID int, userID int64, filename string) (string, error) {
	filename = stripExt(filename)
	tag := fmt.Sprintf("setTitle/%d", origMsgID)

	for attempt := 0; attempt < titleAttempts; attempt++ {
		out := dispatch.Outgoing{
			ChatID:     chatID,
			Text:       "The music doesn't have a title.\nPlease add one for it!",
			ReplyTo:    origMsgID,
			ForceReply: true,
		}
		if filename != "" {
			out.Buttons = [][]views.Button{{{
				Label: "Use filename",
				Data:  tag + "/" + filename,
			}}}
		}
		sent, err := c.send(ctx, out)
		if err != nil {
			return "", err
		}

		ans, err := c.prompts.Register(chatID, sent.MessageID, userID, tag).Wait(ctx)
		if err != nil {
			return "", err
		}

		if ans.FromButton {
			// The prompt message is obsolete once the shortcut fired.
			c.post(dispatch.Outgoing{ChatID: chatID, Delete: sent.MessageID})
			return ans.Text, nil
		}
		if ans.Text != "" {
			c.replyTo(chatID, ans.MessageID, "Title set")
			return ans.Text, nil
		}
		c.replyTo(chatID, ans.MessageID, "It doesn't look like a title.")
	}
	return "", errNoValidTitle
}

// finishDone reports a stored track, appending it to the chat's collecting
// list when a session is active. Exactly one of editID and replyToID is set.
func (c *Controller) finishDone(ctx context.Context, chatID int64, editID, replyToID int, track *store.Audio) {
	added := false
	if listID, ok := c.sessions.Collecting(chatID); ok {
		if _, err := c.lists.AddAudio(ctx, listID, track.ID); err != nil {
			c.logger.Warn("appending track to list failed", "list_id", listID, "error", err)
		} else {
			added = true
		}
	}

	text := views.AudioDetailText(track)
	if added {
		text += "\n\nAdded to list!"
	}
	if editID != 0 {
		c.post(dispatch.Outgoing{ChatID: chatID, Edit: editID, Text: text})
		return
	}
	c.post(dispatch.Outgoing{ChatID: chatID, ReplyTo: replyToID, Text: text})
}

// sendProcessing acknowledges an upload and returns the acknowledgment
// message for later in-place edits.
func (c *Controller) sendProcessing(ctx context.Context, chatID int64, replyTo int) (dispatch.Sent, error) {
	return c.send(ctx, dispatch.Outgoing{ChatID: chatID, Text: "Processing...", ReplyTo: replyTo})
}

// editError rewrites a bot-authored message with an error text.
func (c *Controller) editError(chatID int64, messageID int, text string) {
	c.post(dispatch.Outgoing{
		ChatID:         chatID,
		Edit:           messageID,
		Text:           text,
		DisablePreview: true,
	})
}

// stripExt removes a trailing file extension from a suggested title.
func stripExt(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

// linkBasename suggests a title from a URL's last path element.
func linkBasename(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Path == "" || u.Path == "/" {
		return ""
	}
	return path.Base(u.Path)
}
