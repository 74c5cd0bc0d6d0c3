package service

import (
	"sync"

	gocel "github.com/google/cel-go/cel"

	"github.com/mcpbridge/gateway/internal/adapter/outbound/cel"
	"github.com/mcpbridge/gateway/internal/domain/policy"
)

// ToolPolicy evaluates the optional per-tool CEL allow_if predicate the
// Endpoint Synthesizer consults before dispatching a call (SPEC_FULL.md's
// supplemented access-control feature; purely additive over spec.md — a
// tool with no configured predicate is never gated here).
type ToolPolicy struct {
	eval *cel.Evaluator

	mu       sync.Mutex
	compiled map[string]gocel.Program
}

// NewToolPolicy builds a ToolPolicy against the shared CEL policy
// environment (internal/adapter/outbound/cel).
func NewToolPolicy() (*ToolPolicy, error) {
	eval, err := cel.NewEvaluator()
	if err != nil {
		return nil, err
	}
	return &ToolPolicy{eval: eval, compiled: make(map[string]gocel.Program)}, nil
}

// Allow compiles (cached) and evaluates expr against evalCtx. A malformed
// expression is treated as a denial rather than a panic or a silent pass.
func (p *ToolPolicy) Allow(expr string, evalCtx policy.EvaluationContext) (bool, error) {
	prg, err := p.program(expr)
	if err != nil {
		return false, err
	}
	return p.eval.Evaluate(prg, evalCtx)
}

// Validate checks expr compiles and stays within the evaluator's
// complexity limits, without evaluating it.
func (p *ToolPolicy) Validate(expr string) error {
	return p.eval.ValidateExpression(expr)
}

func (p *ToolPolicy) program(expr string) (gocel.Program, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prg, ok := p.compiled[expr]; ok {
		return prg, nil
	}
	prg, err := p.eval.Compile(expr)
	if err != nil {
		return nil, err
	}
	p.compiled[expr] = prg
	return prg, nil
}
