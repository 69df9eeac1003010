package models

import "time"

// ConversationRef is a stable handle for one counterparty conversation.
// Two refs address the same conversation iff their IDs match; Name is a
// display label only and never participates in identity.
type ConversationRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (r ConversationRef) Equal(other ConversationRef) bool {
	return r.ID == other.ID
}

func (r ConversationRef) IsZero() bool {
	return r.ID == ""
}

// HandoffState is the routing owner of a user conversation.
type HandoffState string

const (
	// StateBot routes the conversation to the automated responder.
	StateBot HandoffState = "bot"
	// StateQueued means the user is waiting for the next available agent.
	StateQueued HandoffState = "queued"
	// StateAgent means the conversation is bridged to a live agent.
	StateAgent HandoffState = "agent"
)

// Activity is one logged message exchanged over a user conversation.
// The audit log has no effect on routing.
type Activity struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// User is the hand-off record for one user conversation. A record is
// created on the first message from an unseen conversation and is never
// deleted; it cycles Bot -> Queued -> Agent -> Bot any number of times.
//
// AgentRef is set iff State == StateAgent, and QueueTime is set iff
// State == StateQueued.
type User struct {
	UserRef   ConversationRef `json:"user_ref"`
	State     HandoffState    `json:"state"`
	AgentRef  ConversationRef `json:"agent_ref,omitempty"`
	QueueTime time.Time       `json:"queue_time,omitempty"`
	Messages  []Activity      `json:"messages"`
}

// Clone returns a deep copy, so callers can read a record without
// holding the store's lock.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.Messages = make([]Activity, len(u.Messages))
	copy(out.Messages, u.Messages)
	return &out
}
