package handoff

import "github.com/sorenh/handoff-bot/internal/models"

// SuggestedAction is a quick-reply affordance attached to an outbound
// message. The router only names actions; how (or whether) a channel
// renders them is the transport's concern.
type SuggestedAction struct {
	Title string
	Value string
}

var (
	ActionAgent      = SuggestedAction{Title: "Agent", Value: "agent"}
	ActionCancel     = SuggestedAction{Title: "Cancel", Value: "cancel"}
	ActionList       = SuggestedAction{Title: "List", Value: "#list"}
	ActionConnect    = SuggestedAction{Title: "Connect", Value: "#connect"}
	ActionDisconnect = SuggestedAction{Title: "Disconnect", Value: "#disconnect"}
)

// OutboundMessage is one delivery to a conversation.
type OutboundMessage struct {
	Text    string
	Actions []SuggestedAction
}

// Transport delivers outbound messages. Delivery failures are reported
// to the caller and never retried here; they also never roll back a
// routing decision already recorded in the store.
type Transport interface {
	Deliver(ref models.ConversationRef, msg OutboundMessage) error
}
