package gatekeeper

import (
	"context"

	"github.com/liamashdown/tokengate/internal/metrics"
	"github.com/liamashdown/tokengate/internal/risk"
)

// Result is a decision together with what was dispatched for it.
type Result struct {
	Decision Decision
	Dispatch DispatchReport
}

// Gate is the entrypoint callers use: evaluate, then dispatch effects.
type Gate struct {
	pipeline   *Pipeline
	dispatcher *Dispatcher
}

// NewGate creates a gate
func NewGate(pipeline *Pipeline, dispatcher *Dispatcher) *Gate {
	return &Gate{pipeline: pipeline, dispatcher: dispatcher}
}

// Pipeline returns the underlying pipeline.
func (g *Gate) Pipeline() *Pipeline {
	return g.pipeline
}

// Check evaluates address and performs the resulting effects. The error is
// non-nil only for persistent-store failures, in which case nothing is
// dispatched.
func (g *Gate) Check(ctx context.Context, address string, filters risk.FilterConfig, opts Options) (*Result, error) {
	metrics.InFlightEvaluations.Inc()
	defer metrics.InFlightEvaluations.Dec()

	outcome, err := g.pipeline.Evaluate(ctx, address, filters, opts)
	if err != nil {
		return nil, err
	}
	report := g.dispatcher.Dispatch(ctx, outcome.Effects)
	return &Result{Decision: outcome.Decision, Dispatch: report}, nil
}
