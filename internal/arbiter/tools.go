package arbiter

import (
	"context"
	"fmt"

	"arbiter/internal/llm"
	"arbiter/internal/types"

	"go.uber.org/zap"
)

// Tool names exposed to the reasoning backend.
const (
	ToolRequestOpposerEvidence  = "request_opposer_evidence"
	ToolRequestDefenderEvidence = "request_defender_evidence"
)

// EvidenceChannel is the path to the external parties. It is the only
// sanctioned way for the engine to acquire information beyond the original
// request payload. Implementations may block until the party answers; the
// engine bounds the wait through ctx.
type EvidenceChannel interface {
	RequestEvidence(ctx context.Context, side Side, question string) (string, error)
}

// EvidenceToolDefinitions returns the two evidence-request tools in the
// backend's tool-definition format. Both share one schema; they differ only
// in the target party.
func EvidenceToolDefinitions() []llm.ToolDefinition {
	questionSchema := func(party string) map[string]interface{} {
		return map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "The question to ask the " + party,
				},
			},
			"required": []string{"question"},
		}
	}

	return []llm.ToolDefinition{
		{
			Name:        ToolRequestOpposerEvidence,
			Description: "Ask the opposer for additional evidence or clarification.",
			InputSchema: questionSchema("opposer"),
		},
		{
			Name:        ToolRequestDefenderEvidence,
			Description: "Ask the defender for additional evidence or clarification.",
			InputSchema: questionSchema("defender"),
		},
	}
}

// sideForTool maps a tool name to the party it targets.
func sideForTool(name string) (Side, bool) {
	switch name {
	case ToolRequestOpposerEvidence:
		return SideOpposer, true
	case ToolRequestDefenderEvidence:
		return SideDefender, true
	}
	return "", false
}

// evidenceTools executes evidence requests against the channel and records
// completed exchanges into history.
type evidenceTools struct {
	channel EvidenceChannel
	history *History
	logger  *zap.Logger
}

func newEvidenceTools(channel EvidenceChannel, history *History, logger *zap.Logger) *evidenceTools {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &evidenceTools{channel: channel, history: history, logger: logger}
}

// request solicits evidence from one side. On success the Q/A pair is
// appended to history. On failure nothing is recorded, so retrying with the
// same question leaves the engine state equivalent to never having asked.
func (t *evidenceTools) request(ctx context.Context, side Side, question string) (string, error) {
	if !side.Valid() {
		return "", fmt.Errorf("unknown side: %s", side)
	}
	if t.channel == nil {
		return "", &types.EvidenceUnavailable{
			Side:     string(side),
			Question: question,
			Cause:    fmt.Errorf("no evidence channel configured"),
		}
	}

	answer, err := t.channel.RequestEvidence(ctx, side, question)
	if err != nil {
		if ctx.Err() != nil {
			// Cancellation is not an availability problem; let the engine
			// abort the run.
			return "", ctx.Err()
		}
		t.logger.Warn("evidence request failed",
			zap.String("side", string(side)),
			zap.Error(err))
		return "", &types.EvidenceUnavailable{Side: string(side), Question: question, Cause: err}
	}

	t.history.AppendExchange(side, question, answer)
	t.logger.Debug("evidence received",
		zap.String("side", string(side)),
		zap.Int("answer_len", len(answer)))
	return answer, nil
}
