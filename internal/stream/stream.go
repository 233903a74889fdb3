// Package stream adapts one decision-engine run into an append-only event
// sequence: zero or more partial decision snapshots followed by exactly one
// complete or error marker. The stream is non-replayable; a consumer that
// disconnects loses unseen events.
package stream

import (
	"context"
	"time"

	"arbiter/internal/arbiter"
	"arbiter/internal/format"
	"arbiter/internal/types"

	"go.uber.org/zap"
)

// EventType tags a stream event.
type EventType string

const (
	EventPartial  EventType = "partial"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one frame of the arbitration stream.
type Event struct {
	Type      EventType            `json:"type"`
	Message   string               `json:"message,omitempty"`
	Timestamp string               `json:"timestamp,omitempty"`
	Data      *format.WireDecision `json:"data,omitempty"`
}

// Arbitrate wraps one engine invocation and returns its event stream.
// Partials are delivered in production order; the complete or error marker is
// always the last event, and the channel is closed after it. Cancelling ctx
// aborts the run and yields an error marker.
func Arbitrate(ctx context.Context, engine *arbiter.Engine, req *types.ArbitrationRequest, logger *zap.Logger) <-chan Event {
	if logger == nil {
		logger = zap.NewNop()
	}
	events := make(chan Event, 8)

	go func() {
		defer close(events)

		// Partials are best effort: dropped when the consumer lags. The
		// terminal frame is sent unconditionally so the stream always ends
		// with exactly one complete or error marker.
		partial := func(ev Event) {
			select {
			case events <- ev:
			default:
			}
		}

		decision, err := engine.RunWithObserver(ctx, req, func(s arbiter.Snapshot) {
			if s.Phase == arbiter.PhaseRoundStart {
				return
			}
			partial(Event{Type: EventPartial, Data: snapshotWire(req, s)})
		})
		if err != nil {
			logger.Warn("streaming arbitration failed", zap.Error(err))
			events <- Event{
				Type:      EventError,
				Message:   err.Error(),
				Timestamp: time.Now().UTC().Format(format.TimestampLayout),
			}
			return
		}

		wire, err := format.Decision(decision)
		if err != nil {
			events <- Event{
				Type:      EventError,
				Message:   err.Error(),
				Timestamp: time.Now().UTC().Format(format.TimestampLayout),
			}
			return
		}

		events <- Event{Type: EventComplete, Message: "done", Data: wire}
	}()

	return events
}

// snapshotWire renders a reasoning snapshot as a decision-in-progress.
func snapshotWire(req *types.ArbitrationRequest, s arbiter.Snapshot) *format.WireDecision {
	if s.Decision != nil {
		return format.Partial(s.Decision)
	}

	w := &format.WireDecision{
		PolicyID: req.Policy.ID.String(),
		Message:  s.Detail,
	}
	if s.Phase == arbiter.PhaseToolCall {
		switch s.Side {
		case arbiter.SideOpposer:
			w.DecisionType = string(types.DecisionRequestOpposerEvidence)
		case arbiter.SideDefender:
			w.DecisionType = string(types.DecisionRequestDefenderEvidence)
		}
	}
	return w
}
