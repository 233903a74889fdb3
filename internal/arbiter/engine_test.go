package arbiter

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"arbiter/internal/llm"
	"arbiter/internal/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient replays a fixed sequence of backend responses. The system
// prompt of every round is captured for context assertions.
type scriptedClient struct {
	responses []*llm.ToolResponse
	errs      []error
	prompts   []string
	calls     int
}

func (c *scriptedClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.CompleteWithTools(ctx, "", prompt, nil)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (c *scriptedClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.CompleteWithTools(ctx, systemPrompt, userPrompt, nil)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (c *scriptedClient) CompleteWithTools(ctx context.Context, systemPrompt, userPrompt string, tools []llm.ToolDefinition) (*llm.ToolResponse, error) {
	c.prompts = append(c.prompts, systemPrompt)
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i >= len(c.responses) {
		// Keep replaying the last scripted response
		i = len(c.responses) - 1
	}
	return c.responses[i], nil
}

// scriptedChannel answers evidence requests from a table keyed by side.
type scriptedChannel struct {
	answers  map[Side]string
	err      error
	requests []string
}

func (ch *scriptedChannel) RequestEvidence(ctx context.Context, side Side, question string) (string, error) {
	ch.requests = append(ch.requests, string(side)+": "+question)
	if ch.err != nil {
		return "", ch.err
	}
	return ch.answers[side], nil
}

func textResponse(body string) *llm.ToolResponse {
	return &llm.ToolResponse{Text: body, StopReason: "end_turn"}
}

func decisionResponse(decisionType string, confidence float64) *llm.ToolResponse {
	return textResponse(fmt.Sprintf(
		`{"decision_type": %q, "decision": "the verdict", "message": "done", "confidence": %v, "reasoning": "weighed both evidence lists"}`,
		decisionType, confidence))
}

func toolResponse(tool, question string) *llm.ToolResponse {
	return &llm.ToolResponse{
		StopReason: "tool_use",
		ToolCalls: []llm.ToolCall{{
			ID:    "call-1",
			Name:  tool,
			Input: map[string]interface{}{"question": question},
		}},
	}
}

func testRequest() *types.ArbitrationRequest {
	creator := uuid.New()
	opposer := uuid.New()
	policyID := uuid.New()
	return &types.ArbitrationRequest{
		Policy: types.Policy{
			ID:        policyID,
			CreatorID: creator,
			Name:      "Remote Work Policy",
			CreatedAt: time.Now().UTC(),
		},
		OpposerEvidences: []types.Evidence{{
			ID:          uuid.New(),
			PolicyID:    policyID,
			SubmitterID: opposer,
			Content:     "productivity dropped 20%, no correction",
			CreatedAt:   time.Now().UTC(),
		}},
		DefenderEvidences: []types.Evidence{{
			ID:          uuid.New(),
			PolicyID:    policyID,
			SubmitterID: creator,
			Content:     "tracking tools implemented, improvement plans underway",
			CreatedAt:   time.Now().UTC(),
		}},
		UserQuery: "enforce the policy",
	}
}

func TestEngine_ImmediateDecision(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ToolResponse{decisionResponse("approve_opposer", 0.85)}}
	engine := NewEngine(client, nil, nil)

	req := testRequest()
	decision, err := engine.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, types.DecisionApproveOpposer, decision.DecisionType)
	assert.Equal(t, 0.85, decision.Confidence)
	assert.Equal(t, req.Policy.ID, decision.PolicyID)
	assert.Equal(t, req.Policy.CreatorID, decision.DefenderID)
	assert.Equal(t, req.OpposerEvidences[0].SubmitterID, decision.OpposerID)
	assert.NotEqual(t, uuid.Nil, decision.ID)
	assert.NotEmpty(t, decision.Reasoning)
	assert.Equal(t, 1, client.calls)
}

func TestEngine_ToolRoundThenDecision(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ToolResponse{
		toolResponse(ToolRequestDefenderEvidence, "what tracking tools were added?"),
		decisionResponse("reject_opposer", 0.7),
	}}
	channel := &scriptedChannel{answers: map[Side]string{
		SideDefender: "time tracking and weekly reviews",
	}}
	engine := NewEngine(client, channel, nil)

	decision, err := engine.Run(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, types.DecisionRejectOpposer, decision.DecisionType)
	assert.Equal(t, 2, client.calls)
	require.Len(t, channel.requests, 1)
	assert.Equal(t, "defender: what tracking tools were added?", channel.requests[0])

	// The second round's context must carry the recorded exchange
	require.Len(t, client.prompts, 2)
	assert.NotContains(t, client.prompts[0], "time tracking and weekly reviews")
	assert.Contains(t, client.prompts[1], "[arbiter asked defender] what tracking tools were added?")
	assert.Contains(t, client.prompts[1], "[defender answered] time tracking and weekly reviews")
}

func TestEngine_EvidenceUnavailableAbsorbed(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ToolResponse{
		toolResponse(ToolRequestOpposerEvidence, "any follow-up data?"),
		decisionResponse("needs_more_info", 0.4),
	}}
	channel := &scriptedChannel{err: errors.New("party offline")}
	engine := NewEngine(client, channel, nil)

	decision, err := engine.Run(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, types.DecisionNeedsMoreInfo, decision.DecisionType)

	// Failed tool calls must not leave history entries behind
	assert.NotContains(t, client.prompts[1], "any follow-up data?")
}

func TestEngine_ToolTimeoutAbsorbed(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ToolResponse{
		toolResponse(ToolRequestDefenderEvidence, "any records?"),
		decisionResponse("needs_more_info", 0.3),
	}}
	engine := NewEngine(client, &blockedChannel{}, nil)
	engine.SetConfig(EngineConfig{MaxRounds: 4, ToolTimeout: 50 * time.Millisecond})

	// A party that never answers exhausts the tool budget; the run continues
	// with no new information instead of failing.
	decision, err := engine.Run(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, types.DecisionNeedsMoreInfo, decision.DecisionType)
	assert.Equal(t, 2, client.calls)
	assert.NotContains(t, client.prompts[1], "any records?")
}

func TestEngine_NilChannelDefersToCaller(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ToolResponse{
		toolResponse(ToolRequestOpposerEvidence, "more details please"),
		decisionResponse("request_opposer_evidence", 0.5),
	}}
	engine := NewEngine(client, nil, nil)

	decision, err := engine.Run(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, types.DecisionRequestOpposerEvidence, decision.DecisionType)
	assert.False(t, decision.DecisionType.Terminal())
}

func TestEngine_MaxRoundsBudget(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ToolResponse{
		toolResponse(ToolRequestDefenderEvidence, "anything else?"),
	}}
	channel := &scriptedChannel{answers: map[Side]string{SideDefender: "nothing new"}}
	engine := NewEngine(client, channel, nil)
	engine.SetConfig(EngineConfig{MaxRounds: 3, ToolTimeout: time.Second})

	_, err := engine.Run(context.Background(), testRequest())
	var ef *types.EngineFailure
	require.ErrorAs(t, err, &ef)
	assert.Equal(t, "budget", ef.Stage)
	assert.Equal(t, 3, client.calls)
}

func TestEngine_BackendErrorSurfacesAsEngineFailure(t *testing.T) {
	client := &scriptedClient{
		responses: []*llm.ToolResponse{nil},
		errs:      []error{errors.New("rate limited")},
	}
	engine := NewEngine(client, nil, nil)

	_, err := engine.Run(context.Background(), testRequest())
	var ef *types.EngineFailure
	require.ErrorAs(t, err, &ef)
	assert.Equal(t, "completion", ef.Stage)
}

func TestEngine_OutOfRangeConfidenceRejected(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ToolResponse{decisionResponse("approve_opposer", 1.5)}}
	engine := NewEngine(client, nil, nil)

	_, err := engine.Run(context.Background(), testRequest())
	var ef *types.EngineFailure
	require.ErrorAs(t, err, &ef)
	assert.Equal(t, "validation", ef.Stage)

	var vErr *types.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestEngine_UndecodableResponseRejected(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ToolResponse{textResponse("I cannot decide right now.")}}
	engine := NewEngine(client, nil, nil)

	_, err := engine.Run(context.Background(), testRequest())
	var ef *types.EngineFailure
	require.ErrorAs(t, err, &ef)
	assert.Equal(t, "decode", ef.Stage)
}

func TestEngine_ClarifyAliasNormalized(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ToolResponse{decisionResponse("clarify", 0.3)}}
	engine := NewEngine(client, nil, nil)

	decision, err := engine.Run(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, types.DecisionNeedsMoreInfo, decision.DecisionType)
}

func TestEngine_CancelledContext(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ToolResponse{decisionResponse("approve_opposer", 0.9)}}
	engine := NewEngine(client, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Run(ctx, testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_InvalidRequestRejected(t *testing.T) {
	engine := NewEngine(&scriptedClient{responses: []*llm.ToolResponse{decisionResponse("approve_opposer", 0.9)}}, nil, nil)

	req := testRequest()
	req.Policy.ID = uuid.Nil
	_, err := engine.Run(context.Background(), req)
	var vErr *types.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "policy", vErr.Field)
}

func TestEngine_ObserverSeesPhasesInOrder(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ToolResponse{
		toolResponse(ToolRequestOpposerEvidence, "more numbers?"),
		decisionResponse("reject_opposer", 0.6),
	}}
	channel := &scriptedChannel{answers: map[Side]string{SideOpposer: "no further data"}}
	engine := NewEngine(client, channel, nil)

	var phases []SnapshotPhase
	decision, err := engine.RunWithObserver(context.Background(), testRequest(), func(s Snapshot) {
		phases = append(phases, s.Phase)
		if s.Phase == PhaseToolCall {
			assert.Equal(t, SideOpposer, s.Side)
			assert.Equal(t, "more numbers?", s.Detail)
		}
		if s.Phase == PhaseDecision {
			require.NotNil(t, s.Decision)
		}
	})
	require.NoError(t, err)
	require.NotNil(t, decision)
	assert.Equal(t, []SnapshotPhase{
		PhaseRoundStart, PhaseToolCall, PhaseToolResult,
		PhaseRoundStart, PhaseDecision,
	}, phases)
}

func TestEngine_UnknownToolRejected(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ToolResponse{
		toolResponse("delete_policy", "should not exist"),
	}}
	engine := NewEngine(client, &scriptedChannel{}, nil)

	_, err := engine.Run(context.Background(), testRequest())
	var ef *types.EngineFailure
	require.ErrorAs(t, err, &ef)
	assert.Equal(t, "tool_dispatch", ef.Stage)
}
