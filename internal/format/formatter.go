// Package format normalizes engine output into the wire-level decision
// schema: identifiers in canonical string form, timestamps in a fixed
// textual format.
package format

import (
	"strings"
	"time"

	"arbiter/internal/types"

	"github.com/google/uuid"
)

// TimestampLayout is the fixed textual format for wire timestamps.
const TimestampLayout = time.RFC3339

// WireDecision is the wire-level form of an ArbitrationDecision.
type WireDecision struct {
	ID           string  `json:"id"`
	PolicyID     string  `json:"policy_id"`
	OpposerID    string  `json:"opposer_id"`
	DefenderID   string  `json:"defender_id"`
	DecisionType string  `json:"decision_type"`
	Decision     string  `json:"decision"`
	Message      string  `json:"message"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
	CreatedAt    string  `json:"created_at"`
}

// Decision maps a complete ArbitrationDecision to its wire form. It fails
// with FormatError only when required fields are missing from an otherwise
// terminal decision; it never patches values.
func Decision(d *types.ArbitrationDecision) (*WireDecision, error) {
	if d == nil {
		return nil, &types.FormatError{Field: "decision"}
	}
	if !d.DecisionType.Valid() {
		return nil, &types.FormatError{Field: "decision_type"}
	}
	if d.DecisionType.Terminal() {
		if d.ID == uuid.Nil {
			return nil, &types.FormatError{Field: "id"}
		}
		if d.PolicyID == uuid.Nil {
			return nil, &types.FormatError{Field: "policy_id"}
		}
		if strings.TrimSpace(d.Decision) == "" {
			return nil, &types.FormatError{Field: "decision"}
		}
		if strings.TrimSpace(d.Reasoning) == "" {
			return nil, &types.FormatError{Field: "reasoning"}
		}
	}
	return wire(d), nil
}

// Partial maps a possibly incomplete decision snapshot to its wire form.
// Total over well-formed input; missing fields render as zero values.
func Partial(d *types.ArbitrationDecision) *WireDecision {
	if d == nil {
		return &WireDecision{}
	}
	return wire(d)
}

func wire(d *types.ArbitrationDecision) *WireDecision {
	w := &WireDecision{
		ID:           canonicalID(d.ID),
		PolicyID:     canonicalID(d.PolicyID),
		OpposerID:    canonicalID(d.OpposerID),
		DefenderID:   canonicalID(d.DefenderID),
		DecisionType: string(d.DecisionType),
		Decision:     d.Decision,
		Message:      d.Message,
		Confidence:   d.Confidence,
		Reasoning:    d.Reasoning,
	}
	if !d.CreatedAt.IsZero() {
		w.CreatedAt = d.CreatedAt.UTC().Format(TimestampLayout)
	}
	return w
}

// canonicalID renders a UUID in canonical string form; the zero UUID renders
// as the empty string rather than all-zero digits.
func canonicalID(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}
