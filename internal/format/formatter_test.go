package format

import (
	"testing"
	"time"

	"arbiter/internal/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeDecision() *types.ArbitrationDecision {
	return &types.ArbitrationDecision{
		ID:           uuid.New(),
		PolicyID:     uuid.New(),
		OpposerID:    uuid.New(),
		DefenderID:   uuid.New(),
		DecisionType: types.DecisionApproveOpposer,
		Decision:     "the policy was violated",
		Message:      "enforcement approved",
		Confidence:   0.82,
		Reasoning:    "opposer evidence is uncontested",
		CreatedAt:    time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestDecision_Complete(t *testing.T) {
	d := completeDecision()
	wire, err := Decision(d)
	require.NoError(t, err)

	assert.Equal(t, d.ID.String(), wire.ID)
	assert.Equal(t, d.PolicyID.String(), wire.PolicyID)
	assert.Equal(t, "approve_opposer", wire.DecisionType)
	assert.Equal(t, 0.82, wire.Confidence)
	assert.Equal(t, "2026-03-14T09:30:00Z", wire.CreatedAt)
}

func TestDecision_MissingFieldsRejected(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.ArbitrationDecision)
		field  string
	}{
		{"nil id", func(d *types.ArbitrationDecision) { d.ID = uuid.Nil }, "id"},
		{"nil policy id", func(d *types.ArbitrationDecision) { d.PolicyID = uuid.Nil }, "policy_id"},
		{"blank decision", func(d *types.ArbitrationDecision) { d.Decision = "  " }, "decision"},
		{"blank reasoning", func(d *types.ArbitrationDecision) { d.Reasoning = "" }, "reasoning"},
		{"unknown type", func(d *types.ArbitrationDecision) { d.DecisionType = "escalate" }, "decision_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := completeDecision()
			tt.mutate(d)
			_, err := Decision(d)
			var fErr *types.FormatError
			require.ErrorAs(t, err, &fErr)
			assert.Equal(t, tt.field, fErr.Field)
		})
	}
}

func TestDecision_NonTerminalAllowsMissingVerdict(t *testing.T) {
	d := completeDecision()
	d.DecisionType = types.DecisionNeedsMoreInfo
	d.Decision = ""
	d.Reasoning = ""

	wire, err := Decision(d)
	require.NoError(t, err)
	assert.Equal(t, "needs_more_info", wire.DecisionType)
}

func TestDecision_NilRejected(t *testing.T) {
	_, err := Decision(nil)
	var fErr *types.FormatError
	require.ErrorAs(t, err, &fErr)
}

func TestPartial_TotalOverIncompleteInput(t *testing.T) {
	wire := Partial(nil)
	require.NotNil(t, wire)
	assert.Equal(t, "", wire.ID)

	wire = Partial(&types.ArbitrationDecision{DecisionType: types.DecisionRequestOpposerEvidence})
	assert.Equal(t, "request_opposer_evidence", wire.DecisionType)
	assert.Equal(t, "", wire.ID)
	assert.Equal(t, "", wire.CreatedAt)
}

func TestCanonicalID_NilRendersEmpty(t *testing.T) {
	d := completeDecision()
	d.DecisionType = types.DecisionNeedsMoreInfo
	d.OpposerID = uuid.Nil

	wire, err := Decision(d)
	require.NoError(t, err)
	assert.Equal(t, "", wire.OpposerID)
	assert.NotContains(t, wire.OpposerID, "00000000")
}
