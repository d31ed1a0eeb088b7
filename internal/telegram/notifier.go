// Package telegram adapts the core services to the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/oggyb/matchbot/internal/notify"
)

// Sender is the part of *tgbotapi.BotAPI the adapter uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Notifier delivers core notifications as Telegram messages.
type Notifier struct {
	api Sender
}

func NewNotifier(api Sender) *Notifier {
	return &Notifier{api: api}
}

// Notify sends msg to the recipient's chat. A match carries a button that
// opens the counterpart's chat when their username is known.
func (n *Notifier) Notify(ctx context.Context, msg notify.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.TelegramID == 0 {
		return fmt.Errorf("notify user %d: no telegram id", msg.UserID)
	}

	out := tgbotapi.NewMessage(msg.TelegramID, msg.Text)
	switch msg.Kind {
	case notify.KindMatch:
		if msg.ContactUsername != "" {
			out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("Write to @"+msg.ContactUsername, "https://t.me/"+msg.ContactUsername),
			))
		}
	case notify.KindLikeCount:
		out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Show likes", cbShowLikes),
		))
	}

	if _, err := n.api.Send(out); err != nil {
		return fmt.Errorf("send %s to %d: %w", msg.Kind, msg.TelegramID, err)
	}
	return nil
}
