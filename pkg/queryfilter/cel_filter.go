// Package queryfilter compiles CEL expressions into predicates over a run,
// used to filter list_runs results without hardcoding every query shape the
// authority supports.
package queryfilter

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/openagents/runtime-authority/pkg/runtypes"
)

// Filter evaluates a compiled CEL expression against a run.
type Filter struct {
	env     *cel.Env
	mu      sync.RWMutex
	program map[string]cel.Program
}

// NewFilter builds a CEL environment exposing a single `run` variable,
// itself a map with the same field names as runtypes.Run's JSON encoding
// (id, worker_id, status, metadata, created_at, updated_at).
func NewFilter() (*Filter, error) {
	env, err := cel.NewEnv(
		cel.Variable("run", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("build CEL environment: %w", err)
	}
	return &Filter{env: env, program: make(map[string]cel.Program)}, nil
}

// Compile parses and checks expr once; subsequent Predicate calls for the
// same expr reuse the compiled program.
func (f *Filter) Compile(expr string) error {
	_, err := f.programFor(expr)
	return err
}

// Predicate returns a function matching runtypes.Run against expr, which
// must evaluate to a bool given the `run` variable.
func (f *Filter) Predicate(expr string) (func(runtypes.Run) bool, error) {
	prg, err := f.programFor(expr)
	if err != nil {
		return nil, err
	}
	return func(run runtypes.Run) bool {
		out, _, err := prg.Eval(map[string]interface{}{"run": runToCELMap(run)})
		if err != nil {
			return false
		}
		b, ok := out.(types.Bool)
		if !ok {
			return false
		}
		return bool(b)
	}, nil
}

func (f *Filter) programFor(expr string) (cel.Program, error) {
	f.mu.RLock()
	prg, ok := f.program[expr]
	f.mu.RUnlock()
	if ok {
		return prg, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if prg, ok := f.program[expr]; ok {
		return prg, nil
	}

	ast, issues := f.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile filter expression: %w", issues.Err())
	}
	prg, err := f.env.Program(ast, cel.InterruptCheckFrequency(100), cel.CostLimit(10000))
	if err != nil {
		return nil, fmt.Errorf("build filter program: %w", err)
	}
	f.program[expr] = prg
	return prg, nil
}

func runToCELMap(run runtypes.Run) map[string]interface{} {
	return map[string]interface{}{
		"id":         run.ID,
		"worker_id":  run.WorkerID,
		"status":     string(run.Status),
		"metadata":   run.Metadata,
		"created_at": run.CreatedAt.Unix(),
		"updated_at": run.UpdatedAt.Unix(),
	}
}
