// ABOUTME: dispatch.Sender implementation over the Telegram Bot API
// ABOUTME: Maps one Outgoing to a send, edit, markup edit or delete call

package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tonehoard/tonehoard/internal/dispatch"
	"github.com/tonehoard/tonehoard/internal/views"
)

// Sender performs outbound platform calls for the dispatch queue.
type Sender struct {
	api *tgbotapi.BotAPI
}

// NewSender wraps a bot API client as a dispatch sender.
func NewSender(api *tgbotapi.BotAPI) *Sender {
	return &Sender{api: api}
}

// Send executes one outbound operation.
func (s *Sender) Send(ctx context.Context, out dispatch.Outgoing) (dispatch.Sent, error) {
	if err := ctx.Err(); err != nil {
		return dispatch.Sent{}, err
	}

	switch {
	case out.Delete != 0:
		if _, err := s.api.Request(tgbotapi.NewDeleteMessage(out.ChatID, out.Delete)); err != nil {
			return dispatch.Sent{}, fmt.Errorf("deleting message: %w", err)
		}
		return dispatch.Sent{ChatID: out.ChatID, MessageID: out.Delete}, nil

	case out.Edit != 0 && out.EditMarkupOnly:
		markup := keyboardFor(out.Buttons)
		if markup == nil {
			markup = &tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
		}
		edit := tgbotapi.NewEditMessageReplyMarkup(out.ChatID, out.Edit, *markup)
		if _, err := s.api.Request(edit); err != nil {
			return dispatch.Sent{}, fmt.Errorf("editing reply markup: %w", err)
		}
		return dispatch.Sent{ChatID: out.ChatID, MessageID: out.Edit}, nil

	case out.Edit != 0:
		edit := tgbotapi.NewEditMessageText(out.ChatID, out.Edit, out.Text)
		edit.DisableWebPagePreview = out.DisablePreview
		edit.ReplyMarkup = keyboardFor(out.Buttons)
		if _, err := s.api.Request(edit); err != nil {
			return dispatch.Sent{}, fmt.Errorf("editing message: %w", err)
		}
		return dispatch.Sent{ChatID: out.ChatID, MessageID: out.Edit}, nil

	default:
		msg := tgbotapi.NewMessage(out.ChatID, out.Text)
		msg.ReplyToMessageID = out.ReplyTo
		msg.DisableWebPagePreview = out.DisablePreview
		if markup := keyboardFor(out.Buttons); markup != nil {
			msg.ReplyMarkup = *markup
		} else if out.ForceReply {
			msg.ReplyMarkup = tgbotapi.ForceReply{ForceReply: true, Selective: true}
		}
		sent, err := s.api.Send(msg)
		if err != nil {
			return dispatch.Sent{}, fmt.Errorf("sending message: %w", err)
		}
		return dispatch.Sent{ChatID: out.ChatID, MessageID: sent.MessageID}, nil
	}
}

// keyboardFor converts a button grid to an inline keyboard, dropping empty
// rows. Returns nil when no row carries a button.
func keyboardFor(buttons [][]views.Button) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		if len(row) == 0 {
			continue
		}
		var converted []tgbotapi.InlineKeyboardButton
		for _, b := range row {
			converted = append(converted, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		rows = append(rows, converted)
	}
	if len(rows) == 0 {
		return nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}
