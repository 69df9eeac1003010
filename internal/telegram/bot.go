package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/sorenh/handoff-bot/internal/handoff"
	"github.com/sorenh/handoff-bot/internal/models"
	"github.com/sorenh/handoff-bot/internal/responder"
)

// Bot runs the Telegram update loop. Each inbound message is resolved
// to a conversation reference plus an is-agent flag (membership in the
// configured agent ID set) and handed to the hand-off router; turns the
// router does not claim fall through to the automated responder.
type Bot struct {
	api       *tgbotapi.BotAPI
	transport *Transport
	router    *handoff.Router
	responder responder.Responder
	agentIDs  map[int64]struct{}
	logger    *zap.Logger
}

func New(token string, store handoff.Store, resp responder.Responder, agentIDs []int64, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	transport := NewTransport(api, logger)

	ids := make(map[int64]struct{}, len(agentIDs))
	for _, id := range agentIDs {
		ids[id] = struct{}{}
	}

	return &Bot{
		api:       api,
		transport: transport,
		router:    handoff.NewRouter(store, transport, logger),
		responder: resp,
		agentIDs:  ids,
		logger:    logger,
	}, nil
}

func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		go b.handleMessage(update.Message)
	}

	return nil
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	ctx := context.Background()

	ref := conversationRef(message)
	if ref.IsZero() {
		// No resolvable sender (channel post, service message); skip.
		return
	}
	isAgent := b.isAgent(message.From)

	if message.IsCommand() {
		b.handleCommand(ref, isAgent, message)
		return
	}

	text := message.Text
	if message.Caption != "" {
		text = message.Caption
	}
	if text == "" {
		return
	}

	turn := handoff.Turn{Ref: ref, Text: text, IsAgent: isAgent}

	next := func() error {
		reply, err := b.responder.Respond(ctx, ref.Name, text)
		if err != nil {
			b.sendErrorMessage(ref, "Sorry, I couldn't answer that. Please try again.")
			return err
		}
		return b.transport.Deliver(ref, handoff.OutboundMessage{
			Text:    reply,
			Actions: []handoff.SuggestedAction{handoff.ActionAgent},
		})
	}

	if err := b.router.HandleTurn(ctx, turn, next); err != nil {
		b.logger.Error("Failed to route message",
			zap.Error(err),
			zap.String("conversation_id", ref.ID))
	}
}

func (b *Bot) handleCommand(ref models.ConversationRef, isAgent bool, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.sendWelcome(ref, isAgent)
	case "help":
		b.sendWelcome(ref, isAgent)
	default:
		b.sendErrorMessage(ref, "Unknown command. Use /help to see how this bot works.")
	}
}

func (b *Bot) sendWelcome(ref models.ConversationRef, isAgent bool) {
	var msg handoff.OutboundMessage
	if isAgent {
		msg = handoff.OutboundMessage{
			Text: "Welcome! You are registered as a support agent. " +
				"Send '#list' to see users waiting in the queue and '#connect' to pick up the first one.",
			Actions: []handoff.SuggestedAction{handoff.ActionList, handoff.ActionConnect},
		}
	} else {
		msg = handoff.OutboundMessage{
			Text: "Welcome to the support bot! Ask me anything, " +
				"or send 'agent' to talk to a human.",
			Actions: []handoff.SuggestedAction{handoff.ActionAgent},
		}
	}

	if err := b.transport.Deliver(ref, msg); err != nil {
		b.logger.Error("Failed to send welcome message",
			zap.Error(err),
			zap.String("conversation_id", ref.ID))
	}
}

func (b *Bot) sendErrorMessage(ref models.ConversationRef, text string) {
	if err := b.transport.Deliver(ref, handoff.OutboundMessage{Text: "⚠️ " + text}); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.String("conversation_id", ref.ID))
	}
}

func (b *Bot) isAgent(from *tgbotapi.User) bool {
	if from == nil {
		return false
	}
	_, ok := b.agentIDs[from.ID]
	return ok
}

func conversationRef(message *tgbotapi.Message) models.ConversationRef {
	if message.From == nil {
		return models.ConversationRef{}
	}
	name := strings.TrimSpace(message.From.FirstName + " " + message.From.LastName)
	if name == "" {
		name = message.From.UserName
	}
	return models.ConversationRef{
		ID:   strconv.FormatInt(message.Chat.ID, 10),
		Name: name,
	}
}
