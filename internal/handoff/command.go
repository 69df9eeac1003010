package handoff

import "strings"

// CommandKind enumerates the agent-side control commands. Commands are
// namespaced with a '#' prefix to keep them apart from chat content
// being relayed; this is a protocol convention, not security, so a real
// chat message starting with '#' is an accepted collision.
type CommandKind int

const (
	// CmdChat is plain text with no '#' prefix: either chat to relay
	// or a message for the next handler.
	CmdChat CommandKind = iota
	// CmdList asks for the current queue.
	CmdList
	// CmdConnect bridges the agent to the queue head.
	CmdConnect
	// CmdDisconnect tears down the agent's bridge.
	CmdDisconnect
	// CmdUnknown is any other '#'-prefixed text.
	CmdUnknown
)

type Command struct {
	Kind CommandKind
	Text string
}

// ParseCommand classifies one agent-side message. Parsing is separate
// from the transition logic so the state machine never touches raw
// text.
func ParseCommand(text string) Command {
	if !strings.HasPrefix(text, "#") {
		return Command{Kind: CmdChat, Text: text}
	}
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "#list":
		return Command{Kind: CmdList, Text: text}
	case "#connect":
		return Command{Kind: CmdConnect, Text: text}
	case "#disconnect":
		return Command{Kind: CmdDisconnect, Text: text}
	default:
		return Command{Kind: CmdUnknown, Text: text}
	}
}
