// Package types defines the shared data model for the policy arbitration
// service: policies, evidence, arbitration requests and decisions, and the
// error taxonomy crossed between components.
package types

import (
	"time"

	"github.com/google/uuid"
)

// Policy is the rule set in dispute. Immutable once submitted for arbitration.
type Policy struct {
	ID          uuid.UUID `json:"id"`
	CreatorID   uuid.UUID `json:"creator_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Evidence is an atomic, immutable unit of argument or proof. Which side it
// belongs to is tracked by the list it was submitted into, not by a field.
type Evidence struct {
	ID          uuid.UUID `json:"id"`
	PolicyID    uuid.UUID `json:"policy_id"`
	SubmitterID uuid.UUID `json:"submitter_id"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// ArbitrationRequest is the ephemeral per-call input. Evidence lists are owned
// by value and ordered by submission.
type ArbitrationRequest struct {
	Policy            Policy     `json:"policy"`
	OpposerEvidences  []Evidence `json:"opposer_evidences"`
	DefenderEvidences []Evidence `json:"defender_evidences"`
	UserQuery         string     `json:"user_query"`
}

// DecisionType enumerates the outcomes the arbiter can reach.
type DecisionType string

const (
	// DecisionApproveOpposer: the opposition proved its case; terminal.
	DecisionApproveOpposer DecisionType = "approve_opposer"
	// DecisionRejectOpposer: the opposition failed to prove its case; terminal.
	DecisionRejectOpposer DecisionType = "reject_opposer"
	// DecisionNeedsMoreInfo: no action taken, insufficient information,
	// no tool call issued.
	DecisionNeedsMoreInfo DecisionType = "needs_more_info"
	// DecisionRequestOpposerEvidence: the opposer should provide more evidence.
	DecisionRequestOpposerEvidence DecisionType = "request_opposer_evidence"
	// DecisionRequestDefenderEvidence: the defender should provide more evidence.
	DecisionRequestDefenderEvidence DecisionType = "request_defender_evidence"
)

// Valid reports whether d is one of the five enumerated decision types.
func (d DecisionType) Valid() bool {
	switch d {
	case DecisionApproveOpposer, DecisionRejectOpposer, DecisionNeedsMoreInfo,
		DecisionRequestOpposerEvidence, DecisionRequestDefenderEvidence:
		return true
	}
	return false
}

// Terminal reports whether d ends the dispute.
func (d DecisionType) Terminal() bool {
	return d == DecisionApproveOpposer || d == DecisionRejectOpposer
}

// ArbitrationDecision is the arbiter's judgment for one engine invocation.
// Exactly one is produced per invocation, terminal or not.
type ArbitrationDecision struct {
	ID           uuid.UUID    `json:"id"`
	PolicyID     uuid.UUID    `json:"policy_id"`
	OpposerID    uuid.UUID    `json:"opposer_id"`
	DefenderID   uuid.UUID    `json:"defender_id"`
	DecisionType DecisionType `json:"decision_type"`
	Decision     string       `json:"decision"`
	Message      string       `json:"message"`
	Confidence   float64      `json:"confidence"`
	Reasoning    string       `json:"reasoning"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Validate checks the decision against its wire contract. Out-of-range
// confidence and unknown decision types are rejected, never clamped.
func (d *ArbitrationDecision) Validate() error {
	if !d.DecisionType.Valid() {
		return &ValidationError{Field: "decision_type", Reason: "unknown decision type: " + string(d.DecisionType)}
	}
	if d.Confidence < 0.0 || d.Confidence > 1.0 {
		return &ValidationError{Field: "confidence", Reason: "confidence must be within [0.0, 1.0]"}
	}
	return nil
}

// HealthResponse is the health-check payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Service string `json:"service"`
}

// ErrorResponse is the standard error payload for the HTTP surface.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}
