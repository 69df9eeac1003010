package responder

import (
	"context"
	"fmt"
)

// Responder answers a user turn while the conversation is owned by the
// bot. The hand-off router calls it through the next-handler chain, so
// a queued or bridged conversation never reaches it.
type Responder interface {
	Respond(ctx context.Context, userName, text string) (string, error)
}

// EchoResponder is the fallback used when no OpenAI key is configured.
type EchoResponder struct{}

func NewEchoResponder() *EchoResponder {
	return &EchoResponder{}
}

func (r *EchoResponder) Respond(_ context.Context, _ string, text string) (string, error) {
	return fmt.Sprintf("You said '%s'. Send 'agent' to talk to a human.", text), nil
}
