package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorenh/handoff-bot/internal/handoff"
)

func TestConversationRef(t *testing.T) {
	tests := []struct {
		name     string
		message  *tgbotapi.Message
		wantID   string
		wantName string
	}{
		{
			name: "full name",
			message: &tgbotapi.Message{
				Chat: &tgbotapi.Chat{ID: 42},
				From: &tgbotapi.User{ID: 7, FirstName: "Ada", LastName: "Lovelace"},
			},
			wantID:   "42",
			wantName: "Ada Lovelace",
		},
		{
			name: "first name only",
			message: &tgbotapi.Message{
				Chat: &tgbotapi.Chat{ID: 42},
				From: &tgbotapi.User{ID: 7, FirstName: "Ada"},
			},
			wantID:   "42",
			wantName: "Ada",
		},
		{
			name: "username fallback",
			message: &tgbotapi.Message{
				Chat: &tgbotapi.Chat{ID: -100},
				From: &tgbotapi.User{ID: 7, UserName: "ada_l"},
			},
			wantID:   "-100",
			wantName: "ada_l",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := conversationRef(tt.message)
			assert.Equal(t, tt.wantID, ref.ID)
			assert.Equal(t, tt.wantName, ref.Name)
		})
	}
}

func TestConversationRef_NoSender(t *testing.T) {
	ref := conversationRef(&tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}})
	require.True(t, ref.IsZero())
}

func TestReplyKeyboard(t *testing.T) {
	keyboard := replyKeyboard([]handoff.SuggestedAction{
		handoff.ActionList,
		handoff.ActionConnect,
	})

	require.Len(t, keyboard.Keyboard, 1)
	require.Len(t, keyboard.Keyboard[0], 2)
	assert.Equal(t, "#list", keyboard.Keyboard[0][0].Text)
	assert.Equal(t, "#connect", keyboard.Keyboard[0][1].Text)
	assert.True(t, keyboard.OneTimeKeyboard)
}
