package arbiter

import (
	"fmt"
	"strings"
	"time"

	"arbiter/internal/types"

	"github.com/google/uuid"
)

// arbitrationRubric frames the arbiter's role, the weight of policy versus
// evidence, the objectivity requirement, and the prohibition on fabricating
// evidence. It also pins down the JSON shape of a decision so the engine can
// decode terminal rounds.
const arbitrationRubric = `You are a policy arbiter.
Your task is to evaluate the Policy and the Evidence provided by both the opposer and the defender, and to judge whether the defender has neglected the policy.

The Policy is a set of rules, guidelines or facts agreed upon by both opposer and defender.
Evidence is a piece of information, argument or proof that has been fact checked to be correct.

Always reason step by step and provide a decision at the end.
Consider all evidence provided before making a decision.
You may request more evidence from either side via the available tools if you need more information, but issue at most one request at a time.

Your decision_type must be one of:
- approve_opposer: the opposition proved its case; the policy was violated.
- reject_opposer: the opposition failed to prove its case; the defender complied.
- needs_more_info: you do not want to decide or act yet; insufficient information.
- request_opposer_evidence: the opposer needs to provide more evidence to support their claim.
- request_defender_evidence: the defender needs to provide additional evidence or clarification.

Do not make up evidence. Only use the evidence provided.
Be objective and impartial in your evaluation.
Be concise and clear in your reasoning.
Do not take action if you do not have to; use needs_more_info instead.

When you are ready to decide, respond with a single JSON object:
{"decision_type": "...", "decision": "...", "message": "...", "confidence": 0.0, "reasoning": "..."}
where message is your response to the user, confidence is between 0.0 and 1.0, and reasoning explains the decision in detail.`

// ValidateRequest checks the request's policy and evidence lists before any
// context is assembled. Empty evidence lists are valid.
func ValidateRequest(req *types.ArbitrationRequest) error {
	if req == nil {
		return &types.ValidationError{Field: "request", Reason: "request is required"}
	}
	if req.Policy.ID == uuid.Nil {
		return &types.ValidationError{Field: "policy", Reason: "policy is required"}
	}
	if strings.TrimSpace(req.Policy.Name) == "" {
		return &types.ValidationError{Field: "policy.name", Reason: "policy name is required"}
	}
	for i, ev := range req.OpposerEvidences {
		if err := validateEvidence(ev, fmt.Sprintf("opposer_evidences[%d]", i)); err != nil {
			return err
		}
	}
	for i, ev := range req.DefenderEvidences {
		if err := validateEvidence(ev, fmt.Sprintf("defender_evidences[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

func validateEvidence(ev types.Evidence, field string) error {
	if ev.ID == uuid.Nil {
		return &types.ValidationError{Field: field + ".id", Reason: "evidence id is required"}
	}
	if strings.TrimSpace(ev.Content) == "" {
		return &types.ValidationError{Field: field + ".content", Reason: "evidence content is required"}
	}
	return nil
}

// AssembleContext builds the evaluation context for one reasoning round.
// Section order is fixed: rubric, policy, defender evidence, opposer
// evidence, conversation history. Evidence renders in submission order.
func AssembleContext(req *types.ArbitrationRequest, history *History) (string, error) {
	if err := ValidateRequest(req); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(arbitrationRubric)
	sb.WriteString("\n\nPolicy:\n")
	writePolicy(&sb, req.Policy)

	sb.WriteString("\nDefender Evidence:\n")
	writeEvidenceList(&sb, req.DefenderEvidences)

	sb.WriteString("\nOpposer Evidence:\n")
	writeEvidenceList(&sb, req.OpposerEvidences)

	sb.WriteString("\nContext:\n")
	if history != nil {
		sb.WriteString(history.Render())
	}

	return sb.String(), nil
}

func writePolicy(sb *strings.Builder, p types.Policy) {
	fmt.Fprintf(sb, "id=%s name=%q", p.ID, p.Name)
	if p.Description != "" {
		fmt.Fprintf(sb, " description=%q", p.Description)
	}
	if !p.CreatedAt.IsZero() {
		fmt.Fprintf(sb, " created_at=%s", p.CreatedAt.UTC().Format(time.RFC3339))
	}
	sb.WriteString("\n")
}

func writeEvidenceList(sb *strings.Builder, evidences []types.Evidence) {
	for _, ev := range evidences {
		fmt.Fprintf(sb, "- %s (submitted by %s at %s)\n",
			ev.Content, ev.SubmitterID, ev.CreatedAt.UTC().Format(time.RFC3339))
	}
}
