// Package service hosts the arbitration lifecycle: it owns the decision
// engine, applies the per-request wall clock budget, and wraps results in the
// response envelope callers consume.
package service

import (
	"context"
	"fmt"
	"time"

	"arbiter/internal/arbiter"
	"arbiter/internal/format"
	"arbiter/internal/llm"
	"arbiter/internal/stream"
	"arbiter/internal/types"

	"go.uber.org/zap"
)

// AgentVersion identifies the decision engine build.
const AgentVersion = "1.0.0"

// ServiceVersion identifies the service layer build.
const ServiceVersion = "1.0.0"

// ResultMetadata describes how a result was produced.
type ResultMetadata struct {
	ProcessingCompleted bool   `json:"processing_completed"`
	AgentVersion        string `json:"agent_version"`
	ServiceVersion      string `json:"service_version"`
}

// ArbitrationResult pairs a wire decision with its processing metadata.
type ArbitrationResult struct {
	ArbitrationResult *format.WireDecision `json:"arbitration_result"`
	Metadata          ResultMetadata       `json:"metadata"`
}

// Envelope is the top-level response shape for non-streaming arbitration.
type Envelope struct {
	Status string             `json:"status"`
	Result *ArbitrationResult `json:"result"`
}

// Options configures an ArbiterService.
type Options struct {
	// RequestBudget caps the wall clock time of one arbitration call.
	// Zero means no budget.
	RequestBudget time.Duration

	// Engine bounds, forwarded to the decision engine.
	Engine arbiter.EngineConfig
}

// ArbiterService runs arbitrations over a configured reasoning backend.
type ArbiterService struct {
	engine *arbiter.Engine
	logger *zap.Logger
	opts   Options
	ready  bool
}

// New creates a service over the given backend and evidence channel.
func New(client llm.Client, channel arbiter.EvidenceChannel, logger *zap.Logger, opts Options) *ArbiterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := arbiter.NewEngine(client, channel, logger)
	if opts.Engine.MaxRounds > 0 || opts.Engine.ToolTimeout > 0 {
		engine.SetConfig(opts.Engine)
	}
	return &ArbiterService{
		engine: engine,
		logger: logger,
		opts:   opts,
	}
}

// Initialize prepares the service for traffic.
func (s *ArbiterService) Initialize(ctx context.Context) error {
	if s.engine == nil {
		return fmt.Errorf("service has no engine")
	}
	s.ready = true
	s.logger.Info("arbiter service initialized",
		zap.String("agent_version", AgentVersion),
		zap.Duration("request_budget", s.opts.RequestBudget))
	return nil
}

// Cleanup releases service resources. Safe to call more than once.
func (s *ArbiterService) Cleanup() {
	if !s.ready {
		return
	}
	s.ready = false
	s.logger.Info("arbiter service shut down")
}

// Ready reports whether Initialize has completed.
func (s *ArbiterService) Ready() bool {
	return s.ready
}

// ValidatePolicy checks a request's policy and evidence for structural
// validity without invoking the backend.
func (s *ArbiterService) ValidatePolicy(req *types.ArbitrationRequest) error {
	return arbiter.ValidateRequest(req)
}

// Arbitrate runs one arbitration to completion and returns the enveloped
// result. The request budget, when set, bounds the whole call including any
// evidence round trips.
func (s *ArbiterService) Arbitrate(ctx context.Context, req *types.ArbitrationRequest) (*Envelope, error) {
	ctx, cancel := s.budget(ctx)
	defer cancel()

	start := time.Now()
	decision, err := s.engine.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	wire, err := format.Decision(decision)
	if err != nil {
		return nil, &types.EngineFailure{Stage: "formatting", Cause: err}
	}

	s.logger.Info("arbitration completed",
		zap.String("policy_id", wire.PolicyID),
		zap.String("decision_type", wire.DecisionType),
		zap.Duration("elapsed", time.Since(start)))

	return &Envelope{
		Status: "success",
		Result: &ArbitrationResult{
			ArbitrationResult: wire,
			Metadata: ResultMetadata{
				ProcessingCompleted: true,
				AgentVersion:        AgentVersion,
				ServiceVersion:      ServiceVersion,
			},
		},
	}, nil
}

// ArbitrateStream runs one arbitration and returns its event stream. The
// returned cancel func releases the budget timer and must be called once the
// consumer is done with the channel.
func (s *ArbiterService) ArbitrateStream(ctx context.Context, req *types.ArbitrationRequest) (<-chan stream.Event, context.CancelFunc) {
	ctx, cancel := s.budget(ctx)
	return stream.Arbitrate(ctx, s.engine, req, s.logger), cancel
}

func (s *ArbiterService) budget(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.RequestBudget <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.RequestBudget)
}
