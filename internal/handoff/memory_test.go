package handoff

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorenh/handoff-bot/internal/models"
)

// Interface compliance (compile-time assertions)
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

func userRef(id string) models.ConversationRef {
	return models.ConversationRef{ID: id, Name: "user-" + id}
}

func agentRef(id string) models.ConversationRef {
	return models.ConversationRef{ID: id, Name: "agent-" + id}
}

// requireInvariants checks that the bridge and queue-time fields track
// the state exactly.
func requireInvariants(t *testing.T, user *models.User) {
	t.Helper()
	require.Equal(t, user.State == models.StateAgent, !user.AgentRef.IsZero(),
		"agent ref must be set iff state is agent")
	require.Equal(t, user.State == models.StateQueued, !user.QueueTime.IsZero(),
		"queue time must be set iff state is queued")
}

func TestMemoryStore_FindOrCreate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first, err := store.FindOrCreate(ctx, userRef("u1"))
	require.NoError(t, err)
	require.Equal(t, models.StateBot, first.State)
	require.Empty(t, first.Messages)

	second, err := store.FindOrCreate(ctx, userRef("u1"))
	require.NoError(t, err)
	require.Equal(t, first.UserRef, second.UserRef)
	require.Len(t, store.users, 1)
}

func TestMemoryStore_FindOrCreateConcurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.FindOrCreate(ctx, userRef("u1"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, store.users, 1)
}

func TestMemoryStore_TransitionInvariants(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	user, err := store.FindOrCreate(ctx, userRef("u1"))
	require.NoError(t, err)
	requireInvariants(t, user)

	user, err = store.Queue(ctx, userRef("u1"))
	require.NoError(t, err)
	require.Equal(t, models.StateQueued, user.State)
	requireInvariants(t, user)

	user, err = store.Connect(ctx, agentRef("a1"))
	require.NoError(t, err)
	require.Equal(t, models.StateAgent, user.State)
	require.Equal(t, "a1", user.AgentRef.ID)
	requireInvariants(t, user)

	user, err = store.Disconnect(ctx, agentRef("a1"))
	require.NoError(t, err)
	require.Equal(t, models.StateBot, user.State)
	requireInvariants(t, user)

	// The record survives the full cycle and can go around again.
	user, err = store.Queue(ctx, userRef("u1"))
	require.NoError(t, err)
	require.Equal(t, models.StateQueued, user.State)
	requireInvariants(t, user)
}

func TestMemoryStore_DequeueClearsStaleBridge(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Queue(ctx, userRef("u1"))
	require.NoError(t, err)
	_, err = store.Connect(ctx, agentRef("a1"))
	require.NoError(t, err)

	user, err := store.Dequeue(ctx, userRef("u1"))
	require.NoError(t, err)
	require.Equal(t, models.StateBot, user.State)
	requireInvariants(t, user)

	stale, err := store.FindByAgent(ctx, agentRef("a1"))
	require.NoError(t, err)
	require.Nil(t, stale)
}

func TestMemoryStore_QueueOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for _, id := range []string{"a", "b", "c"} {
		_, err := store.Queue(ctx, userRef(id))
		require.NoError(t, err)
	}

	queue, err := store.QueueSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 3)
	require.Equal(t, "a", queue[0].UserRef.ID)
	require.Equal(t, "b", queue[1].UserRef.ID)
	require.Equal(t, "c", queue[2].UserRef.ID)

	connected, err := store.Connect(ctx, agentRef("x"))
	require.NoError(t, err)
	require.Equal(t, "a", connected.UserRef.ID)

	queue, err = store.QueueSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	require.Equal(t, "b", queue[0].UserRef.ID)
	require.Equal(t, "c", queue[1].UserRef.ID)
}

func TestMemoryStore_ConnectEmptyQueue(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	user, err := store.Connect(ctx, agentRef("a1"))
	require.NoError(t, err)
	require.Nil(t, user)

	queue, err := store.QueueSnapshot(ctx)
	require.NoError(t, err)
	require.Empty(t, queue)
}

func TestMemoryStore_DisconnectWithoutBridge(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Queue(ctx, userRef("u1"))
	require.NoError(t, err)

	user, err := store.Disconnect(ctx, agentRef("a1"))
	require.NoError(t, err)
	require.Nil(t, user)

	// Queued record untouched.
	queue, err := store.QueueSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 1)
}

func TestMemoryStore_DequeueIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	user, err := store.Dequeue(ctx, userRef("u1"))
	require.NoError(t, err)
	require.Equal(t, models.StateBot, user.State)

	user, err = store.Dequeue(ctx, userRef("u1"))
	require.NoError(t, err)
	require.Equal(t, models.StateBot, user.State)
	requireInvariants(t, user)
}

func TestMemoryStore_ConcurrentConnectSingleHead(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Queue(ctx, userRef("u1"))
	require.NoError(t, err)

	const agents = 10
	results := make([]*models.User, agents)
	var wg sync.WaitGroup
	for i := 0; i < agents; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user, err := store.Connect(ctx, agentRef(string(rune('a'+i))))
			assert.NoError(t, err)
			results[i] = user
		}(i)
	}
	wg.Wait()

	connected := 0
	for _, user := range results {
		if user != nil {
			connected++
		}
	}
	require.Equal(t, 1, connected, "exactly one agent must win the queue head")
}

func TestMemoryStore_FindByAgent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Queue(ctx, userRef("u1"))
	require.NoError(t, err)
	_, err = store.Connect(ctx, agentRef("a1"))
	require.NoError(t, err)

	user, err := store.FindByAgent(ctx, agentRef("a1"))
	require.NoError(t, err)
	require.NotNil(t, user)
	require.Equal(t, "u1", user.UserRef.ID)

	user, err = store.FindByAgent(ctx, agentRef("a2"))
	require.NoError(t, err)
	require.Nil(t, user)
}

func TestMemoryStore_AppendMessage(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	err := store.AppendMessage(ctx, userRef("u1"), models.Activity{ID: "m1", From: "user-u1", Text: "hi"})
	require.NoError(t, err)

	user, err := store.FindOrCreate(ctx, userRef("u1"))
	require.NoError(t, err)
	require.Len(t, user.Messages, 1)
	require.Equal(t, models.StateBot, user.State, "audit log must not affect routing state")
}

func TestMemoryStore_ReturnsSnapshots(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	user, err := store.FindOrCreate(ctx, userRef("u1"))
	require.NoError(t, err)

	user.State = models.StateAgent
	user.Messages = append(user.Messages, models.Activity{ID: "m1"})

	fresh, err := store.FindOrCreate(ctx, userRef("u1"))
	require.NoError(t, err)
	require.Equal(t, models.StateBot, fresh.State)
	require.Empty(t, fresh.Messages)
}
