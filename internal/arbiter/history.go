// Package arbiter implements the core of the policy arbitration service:
// context assembly, the evidence-request tools, and the decision engine's
// bounded reasoning loop.
package arbiter

import (
	"fmt"
	"strings"
)

// Side identifies which party a tool call or evidence item targets.
type Side string

const (
	SideOpposer  Side = "opposer"
	SideDefender Side = "defender"
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideOpposer || s == SideDefender
}

// TurnKind tags an entry in the conversation history.
type TurnKind string

const (
	TurnToolCall   TurnKind = "tool_call"
	TurnToolResult TurnKind = "tool_result"
)

// Turn is one entry in the conversation history: one half of a
// tool-call/tool-result pair. The original request payload is assembled into
// context separately and never recorded here.
type Turn struct {
	Kind    TurnKind
	Side    Side // target party
	Content string
}

// History is the append-only ordered sequence of turns accumulated during a
// single engine run. It is request-scoped and not safe for concurrent use.
type History struct {
	turns []Turn
}

// AppendExchange records a completed tool-call/tool-result pair. Both halves
// are appended together so a failed tool call never leaves a dangling entry.
func (h *History) AppendExchange(side Side, question, answer string) {
	h.turns = append(h.turns,
		Turn{Kind: TurnToolCall, Side: side, Content: question},
		Turn{Kind: TurnToolResult, Side: side, Content: answer},
	)
}

// Len returns the number of recorded turns.
func (h *History) Len() int { return len(h.turns) }

// Turns returns a copy of the recorded turns in order.
func (h *History) Turns() []Turn {
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Render flattens the history into the textual form consumed by context
// assembly. Empty history renders as the empty string.
func (h *History) Render() string {
	if len(h.turns) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, t := range h.turns {
		switch t.Kind {
		case TurnToolCall:
			fmt.Fprintf(&sb, "[arbiter asked %s] %s\n", t.Side, t.Content)
		case TurnToolResult:
			fmt.Fprintf(&sb, "[%s answered] %s\n", t.Side, t.Content)
		}
	}
	return sb.String()
}
