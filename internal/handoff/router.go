package handoff

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sorenh/handoff-bot/internal/models"
)

// Turn is one inbound message, already resolved by the channel adapter
// to a stable conversation reference and a sender classification.
type Turn struct {
	Ref     models.ConversationRef
	Text    string
	IsAgent bool
}

// NextFunc passes an unclaimed turn to the next handler, normally the
// automated responder.
type NextFunc func() error

// Router is the hand-off state machine. It is the only writer of the
// Store; outbound deliveries always happen after the store mutation for
// the turn is complete, so a transport failure never unwinds a routing
// decision.
type Router struct {
	store     Store
	transport Transport
	logger    *zap.Logger
}

func NewRouter(store Store, transport Transport, logger *zap.Logger) *Router {
	return &Router{
		store:     store,
		transport: transport,
		logger:    logger,
	}
}

// HandleTurn routes one inbound message. Transport failures are
// reported to the caller; every failure is local to this turn.
func (r *Router) HandleTurn(ctx context.Context, turn Turn, next NextFunc) error {
	if turn.Ref.IsZero() {
		// No resolvable identity: drop the turn before touching the store.
		r.logger.Warn("Dropping turn without conversation identity")
		return nil
	}
	if next == nil {
		next = func() error { return nil }
	}

	if turn.IsAgent {
		return r.handleAgent(ctx, turn, next)
	}
	return r.handleUser(ctx, turn, next)
}

func (r *Router) handleUser(ctx context.Context, turn Turn, next NextFunc) error {
	user, err := r.store.FindOrCreate(ctx, turn.Ref)
	if err != nil {
		return fmt.Errorf("failed to load user record: %w", err)
	}
	r.logActivity(ctx, turn.Ref, turn.Ref.Name, turn.Text)

	if user.State == models.StateAgent {
		// Bridged: relay verbatim, never interpret as a command.
		return r.deliver(user.AgentRef, OutboundMessage{
			Text:    turn.Text,
			Actions: []SuggestedAction{ActionDisconnect},
		})
	}

	text := strings.ToLower(turn.Text)

	// While queued, everything except "cancel" is buffered: logged
	// above but not relayed anywhere. Repeating "agent" must not reset
	// the user's place in the queue.
	if user.State == models.StateQueued && text != "cancel" {
		return r.deliver(turn.Ref, OutboundMessage{
			Text:    "Please wait, an agent will be with you shortly.",
			Actions: []SuggestedAction{ActionCancel},
		})
	}

	switch text {
	case "agent":
		if _, err := r.store.Queue(ctx, turn.Ref); err != nil {
			return fmt.Errorf("failed to queue user: %w", err)
		}
		return r.deliver(turn.Ref, OutboundMessage{
			Text:    "Hold on while we connect you to an agent.",
			Actions: []SuggestedAction{ActionCancel},
		})
	case "cancel":
		// Dequeue is idempotent, so "cancel" in StateBot is reply-only.
		if _, err := r.store.Dequeue(ctx, turn.Ref); err != nil {
			return fmt.Errorf("failed to dequeue user: %w", err)
		}
		return r.deliver(turn.Ref, OutboundMessage{
			Text:    "You are now reconnected to the bot.",
			Actions: []SuggestedAction{ActionAgent},
		})
	default:
		return next()
	}
}

func (r *Router) handleAgent(ctx context.Context, turn Turn, next NextFunc) error {
	cmd := ParseCommand(turn.Text)

	user, err := r.store.FindByAgent(ctx, turn.Ref)
	if err != nil {
		return fmt.Errorf("failed to look up bridge: %w", err)
	}

	if user != nil {
		return r.handleBridgedAgent(ctx, turn, cmd, user)
	}

	switch cmd.Kind {
	case CmdList:
		return r.replyQueueList(ctx, turn.Ref)
	case CmdConnect:
		return r.connectAgent(ctx, turn.Ref)
	case CmdDisconnect:
		return r.deliver(turn.Ref, OutboundMessage{
			Text:    "You are not connected to a user.",
			Actions: []SuggestedAction{ActionList, ActionConnect},
		})
	case CmdUnknown:
		return r.deliver(turn.Ref, OutboundMessage{
			Text:    "Unknown command.",
			Actions: []SuggestedAction{ActionList, ActionConnect},
		})
	default:
		// Plain text from an agent with no bridge is not ours to answer.
		return next()
	}
}

func (r *Router) handleBridgedAgent(ctx context.Context, turn Turn, cmd Command, user *models.User) error {
	switch cmd.Kind {
	case CmdDisconnect:
		released, err := r.store.Disconnect(ctx, turn.Ref)
		if err != nil {
			return fmt.Errorf("failed to disconnect agent: %w", err)
		}
		if released == nil {
			// The bridge vanished since the lookup, e.g. a second
			// disconnect turn racing this one. Nothing to tear down.
			return r.deliver(turn.Ref, OutboundMessage{
				Text:    "You are not connected to a user.",
				Actions: []SuggestedAction{ActionList, ActionConnect},
			})
		}
		// The agent's own confirmation goes out before the user notice;
		// the two deliveries are independent.
		return errors.Join(
			r.deliver(turn.Ref, OutboundMessage{
				Text:    "You have been disconnected from the user.",
				Actions: []SuggestedAction{ActionList, ActionConnect},
			}),
			r.deliver(released.UserRef, OutboundMessage{
				Text:    "The agent has disconnected. You are now reconnected with the bot.",
				Actions: []SuggestedAction{ActionAgent},
			}),
		)
	case CmdChat:
		r.logActivity(ctx, user.UserRef, turn.Ref.Name, cmd.Text)
		return r.deliver(user.UserRef, OutboundMessage{Text: cmd.Text})
	default:
		return r.deliver(turn.Ref, OutboundMessage{
			Text: "Command not valid when connected to user.",
		})
	}
}

func (r *Router) replyQueueList(ctx context.Context, agentRef models.ConversationRef) error {
	queue, err := r.store.QueueSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to read queue: %w", err)
	}

	actions := []SuggestedAction{ActionList, ActionConnect}
	if len(queue) == 0 {
		return r.deliver(agentRef, OutboundMessage{
			Text:    "There is no one currently in the queue.",
			Actions: actions,
		})
	}

	names := make([]string, len(queue))
	for i, user := range queue {
		names[i] = user.UserRef.Name
	}
	return r.deliver(agentRef, OutboundMessage{
		Text:    "Users in queue:\n" + strings.Join(names, "\n"),
		Actions: actions,
	})
}

func (r *Router) connectAgent(ctx context.Context, agentRef models.ConversationRef) error {
	user, err := r.store.Connect(ctx, agentRef)
	if err != nil {
		return fmt.Errorf("failed to connect agent: %w", err)
	}
	if user == nil {
		return r.deliver(agentRef, OutboundMessage{
			Text:    "There is no one currently in the queue.",
			Actions: []SuggestedAction{ActionList, ActionConnect},
		})
	}

	return errors.Join(
		r.deliver(agentRef, OutboundMessage{
			Text:    fmt.Sprintf("You are now connected to %s.", user.UserRef.Name),
			Actions: []SuggestedAction{ActionDisconnect},
		}),
		r.deliver(user.UserRef, OutboundMessage{
			Text: "You are now connected to an agent.",
		}),
	)
}

func (r *Router) deliver(ref models.ConversationRef, msg OutboundMessage) error {
	if err := r.transport.Deliver(ref, msg); err != nil {
		r.logger.Error("Failed to deliver message",
			zap.Error(err),
			zap.String("conversation_id", ref.ID))
		return err
	}
	return nil
}

func (r *Router) logActivity(ctx context.Context, userRef models.ConversationRef, from, text string) {
	activity := models.Activity{
		ID:        uuid.New().String(),
		From:      from,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if err := r.store.AppendMessage(ctx, userRef, activity); err != nil {
		r.logger.Error("Failed to log activity",
			zap.Error(err),
			zap.String("conversation_id", userRef.ID))
	}
}
