package handoff

import (
	"context"

	"github.com/sorenh/handoff-bot/internal/models"
)

// Store holds the authoritative hand-off record for every user
// conversation the bot has ever seen. Implementations must serialize
// every read-modify-write sequence: no caller may observe a
// half-updated record, and Connect must hand each queue head to exactly
// one agent even under concurrent calls.
//
// Returned records are snapshots; mutating them does not touch the
// store.
type Store interface {
	// FindOrCreate returns the record for the given user conversation,
	// creating it in StateBot on first sight. Idempotent on identity,
	// including under concurrent calls.
	FindOrCreate(ctx context.Context, userRef models.ConversationRef) (*models.User, error)

	// FindByAgent returns the record currently bridged to agentRef, or
	// nil when that agent has no active bridge.
	FindByAgent(ctx context.Context, agentRef models.ConversationRef) (*models.User, error)

	// AppendMessage adds an activity to the record's audit log. It has
	// no effect on routing state.
	AppendMessage(ctx context.Context, userRef models.ConversationRef, activity models.Activity) error

	// Queue admits the user to the agent queue: state becomes
	// StateQueued, QueueTime is set to now and any stale bridge is
	// cleared.
	Queue(ctx context.Context, userRef models.ConversationRef) (*models.User, error)

	// Dequeue returns the user to the automated responder: state
	// becomes StateBot, QueueTime is cleared and any stale bridge is
	// dropped. A no-op for a record already in StateBot.
	Dequeue(ctx context.Context, userRef models.ConversationRef) (*models.User, error)

	// Connect atomically pops the head of the queue (earliest
	// admission) and bridges it to agentRef. Returns nil with no effect
	// when the queue is empty.
	Connect(ctx context.Context, agentRef models.ConversationRef) (*models.User, error)

	// Disconnect tears down agentRef's bridge, returning the released
	// user in StateBot. Returns nil with no effect when the agent has
	// no bridge.
	Disconnect(ctx context.Context, agentRef models.ConversationRef) (*models.User, error)

	// QueueSnapshot lists every queued record ordered by admission,
	// earliest first.
	QueueSnapshot(ctx context.Context) ([]*models.User, error)

	Close() error
}
