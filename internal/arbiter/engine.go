package arbiter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"arbiter/internal/llm"
	"arbiter/internal/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EngineConfig bounds one reasoning loop.
type EngineConfig struct {
	// MaxRounds limits reasoning rounds per invocation to prevent runaway
	// tool-call loops.
	MaxRounds int

	// ToolTimeout is the maximum wait for a single evidence request.
	ToolTimeout time.Duration
}

// DefaultEngineConfig returns sensible defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxRounds:   8,
		ToolTimeout: 2 * time.Minute,
	}
}

// Engine runs the bounded reasoning loop over a single logical conversation.
// All per-run state (policy, evidence lists, history) is request-scoped; an
// Engine is safe for concurrent Run calls.
type Engine struct {
	client  llm.Client
	channel EvidenceChannel
	logger  *zap.Logger
	config  EngineConfig
}

// NewEngine creates an engine over the given reasoning backend and evidence
// channel. channel may be nil, in which case every tool call resolves to
// EvidenceUnavailable.
func NewEngine(client llm.Client, channel EvidenceChannel, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		client:  client,
		channel: channel,
		logger:  logger,
		config:  DefaultEngineConfig(),
	}
}

// SetConfig replaces the engine configuration.
func (e *Engine) SetConfig(cfg EngineConfig) {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultEngineConfig().MaxRounds
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = DefaultEngineConfig().ToolTimeout
	}
	e.config = cfg
}

// SnapshotPhase tags the stage a snapshot was taken at.
type SnapshotPhase string

const (
	PhaseRoundStart SnapshotPhase = "round_start"
	PhaseToolCall   SnapshotPhase = "tool_call"
	PhaseToolResult SnapshotPhase = "tool_result"
	PhaseDecision   SnapshotPhase = "decision"
)

// Snapshot is an in-progress view of the engine's reasoning, emitted to the
// observer as the loop advances. Decision is set only in the decision phase.
type Snapshot struct {
	Round    int
	Phase    SnapshotPhase
	Side     Side // target party, for tool phases
	Detail   string
	Decision *types.ArbitrationDecision
}

// Observer receives reasoning snapshots in production order. Called
// synchronously from the engine goroutine; a nil observer is ignored.
type Observer func(Snapshot)

// decisionPayload is the JSON shape the rubric instructs the backend to emit.
type decisionPayload struct {
	DecisionType string  `json:"decision_type"`
	Decision     string  `json:"decision"`
	Message      string  `json:"message"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
}

// Run executes one engine invocation and returns exactly one
// ArbitrationDecision, terminal or not. The caller decides whether to
// re-invoke with augmented evidence.
func (e *Engine) Run(ctx context.Context, req *types.ArbitrationRequest) (*types.ArbitrationDecision, error) {
	return e.RunWithObserver(ctx, req, nil)
}

// RunWithObserver is Run with reasoning snapshots delivered to observe.
//
// Each round either emits a decision with no tool call, or issues exactly one
// tool call with no decision. A backend response carrying both is treated as
// a tool round and any draft decision text is discarded; additional tool
// calls beyond the first are ignored (no concurrent fan-out).
func (e *Engine) RunWithObserver(ctx context.Context, req *types.ArbitrationRequest, observe Observer) (*types.ArbitrationDecision, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	history := &History{}
	tools := newEvidenceTools(e.channel, history, e.logger)
	toolDefs := EvidenceToolDefinitions()

	opposerID := opposerFrom(req)
	start := time.Now()

	for round := 1; round <= e.config.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, &types.EngineFailure{Stage: "round", Cause: err}
		}

		systemPrompt, err := AssembleContext(req, history)
		if err != nil {
			return nil, err
		}

		notify(observe, Snapshot{Round: round, Phase: PhaseRoundStart})

		resp, err := e.client.CompleteWithTools(ctx, systemPrompt, req.UserQuery, toolDefs)
		if err != nil {
			return nil, &types.EngineFailure{Stage: "completion", Cause: err}
		}

		if len(resp.ToolCalls) > 0 {
			if err := e.runToolRound(ctx, tools, resp.ToolCalls[0], round, observe); err != nil {
				return nil, err
			}
			continue
		}

		decision, err := e.decodeDecision(resp.Text, req, opposerID)
		if err != nil {
			return nil, err
		}

		notify(observe, Snapshot{Round: round, Phase: PhaseDecision, Decision: decision})
		e.logger.Info("arbitration decided",
			zap.String("decision_type", string(decision.DecisionType)),
			zap.Float64("confidence", decision.Confidence),
			zap.Int("rounds", round),
			zap.Duration("elapsed", time.Since(start)))
		return decision, nil
	}

	return nil, &types.EngineFailure{
		Stage: "budget",
		Cause: fmt.Errorf("no decision after %d rounds", e.config.MaxRounds),
	}
}

// runToolRound executes a single evidence request. EvidenceUnavailable is
// absorbed as "no new information"; everything else aborts the run.
func (e *Engine) runToolRound(ctx context.Context, tools *evidenceTools, call llm.ToolCall, round int, observe Observer) error {
	side, ok := sideForTool(call.Name)
	if !ok {
		return &types.EngineFailure{
			Stage: "tool_dispatch",
			Cause: fmt.Errorf("backend requested unknown tool %q", call.Name),
		}
	}

	question, _ := call.Input["question"].(string)
	if question == "" {
		return &types.EngineFailure{
			Stage: "tool_dispatch",
			Cause: fmt.Errorf("tool %s called without a question", call.Name),
		}
	}

	notify(observe, Snapshot{Round: round, Phase: PhaseToolCall, Side: side, Detail: question})

	toolCtx, cancel := context.WithTimeout(ctx, e.config.ToolTimeout)
	defer cancel()

	answer, err := tools.request(toolCtx, side, question)
	if err != nil {
		var unavailable *types.EvidenceUnavailable
		if errors.As(err, &unavailable) {
			e.logger.Warn("continuing without new evidence",
				zap.String("side", string(side)),
				zap.Int("round", round))
			return nil
		}
		if ctx.Err() != nil {
			return &types.EngineFailure{Stage: "tool_execution", Cause: ctx.Err()}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			// The party did not answer within the tool budget. The answer
			// channel is unavailable, not the run.
			e.logger.Warn("evidence request timed out, continuing without new evidence",
				zap.String("side", string(side)),
				zap.Int("round", round))
			return nil
		}
		return &types.EngineFailure{Stage: "tool_execution", Cause: err}
	}

	notify(observe, Snapshot{Round: round, Phase: PhaseToolResult, Side: side, Detail: answer})
	return nil
}

// decodeDecision parses the backend's decision payload and validates it
// against the wire contract. Out-of-contract values surface as EngineFailure
// carrying the validation cause, never clamped.
func (e *Engine) decodeDecision(text string, req *types.ArbitrationRequest, opposerID uuid.UUID) (*types.ArbitrationDecision, error) {
	jsonStr := llm.ExtractJSON(text)
	if jsonStr == "" {
		return nil, &types.EngineFailure{
			Stage: "decode",
			Cause: fmt.Errorf("no decision payload in backend response"),
		}
	}

	var payload decisionPayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return nil, &types.EngineFailure{Stage: "decode", Cause: err}
	}

	decision := &types.ArbitrationDecision{
		ID:           uuid.New(),
		PolicyID:     req.Policy.ID,
		OpposerID:    opposerID,
		DefenderID:   req.Policy.CreatorID,
		DecisionType: normalizeDecisionType(payload.DecisionType),
		Decision:     payload.Decision,
		Message:      payload.Message,
		Confidence:   payload.Confidence,
		Reasoning:    payload.Reasoning,
		CreatedAt:    time.Now().UTC(),
	}

	if err := decision.Validate(); err != nil {
		return nil, &types.EngineFailure{Stage: "validation", Cause: err}
	}
	return decision, nil
}

// normalizeDecisionType maps legacy aliases onto the canonical enumeration.
func normalizeDecisionType(s string) types.DecisionType {
	switch s {
	case "clarify", "clearify":
		return types.DecisionNeedsMoreInfo
	}
	return types.DecisionType(s)
}

// opposerFrom derives the opposer's identity from the submitted evidence.
// A dispute can legitimately open with no opposer evidence; the id is then
// zero until the opposer first submits.
func opposerFrom(req *types.ArbitrationRequest) uuid.UUID {
	if len(req.OpposerEvidences) > 0 {
		return req.OpposerEvidences[0].SubmitterID
	}
	return uuid.Nil
}

func notify(observe Observer, s Snapshot) {
	if observe != nil {
		observe(s)
	}
}
