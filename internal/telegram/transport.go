package telegram

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/sorenh/handoff-bot/internal/handoff"
	"github.com/sorenh/handoff-bot/internal/models"
)

// Transport delivers router output over the Telegram Bot API.
// Conversation IDs are Telegram chat IDs in decimal form; suggested
// actions are rendered as a one-time reply keyboard.
type Transport struct {
	api    *tgbotapi.BotAPI
	logger *zap.Logger
}

func NewTransport(api *tgbotapi.BotAPI, logger *zap.Logger) *Transport {
	return &Transport{api: api, logger: logger}
}

func (t *Transport) Deliver(ref models.ConversationRef, msg handoff.OutboundMessage) error {
	chatID, err := strconv.ParseInt(ref.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid conversation id %q: %w", ref.ID, err)
	}

	out := tgbotapi.NewMessage(chatID, msg.Text)
	if len(msg.Actions) > 0 {
		out.ReplyMarkup = replyKeyboard(msg.Actions)
	}

	if _, err := t.api.Send(out); err != nil {
		t.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func replyKeyboard(actions []handoff.SuggestedAction) tgbotapi.ReplyKeyboardMarkup {
	buttons := make([]tgbotapi.KeyboardButton, len(actions))
	for i, action := range actions {
		buttons[i] = tgbotapi.NewKeyboardButton(action.Value)
	}
	keyboard := tgbotapi.NewReplyKeyboard(buttons)
	keyboard.OneTimeKeyboard = true
	keyboard.ResizeKeyboard = true
	return keyboard
}
