package tplengine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

const (
	defaultCostLimit     = 1000
	programCacheCounters = 10_000
	programCacheMaxCost  = 1_000
)

// Evaluator runs sandboxed boolean CEL expressions against the supplied
// context only; expressions have no ambient access. Compiled programs are
// cached keyed by expression and declared variable set.
type Evaluator struct {
	costLimit    uint64
	programCache *ristretto.Cache[string, cel.Program]
}

type EvaluatorOption func(*Evaluator)

func WithCostLimit(limit uint64) EvaluatorOption {
	return func(e *Evaluator) {
		e.costLimit = limit
	}
}

func NewEvaluator(opts ...EvaluatorOption) (*Evaluator, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, cel.Program]{
		NumCounters: programCacheCounters,
		MaxCost:     programCacheMaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create program cache: %w", err)
	}
	e := &Evaluator{
		costLimit:    defaultCostLimit,
		programCache: cache,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Evaluate compiles and runs expr against data, returning its boolean result.
// Non-boolean results are an error, as is any reference the compiler cannot
// resolve within the declared variables.
func (e *Evaluator) Evaluate(ctx context.Context, expr string, data map[string]any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if strings.TrimSpace(expr) == "" {
		return false, fmt.Errorf("expression cannot be empty")
	}
	program, err := e.program(expr, data)
	if err != nil {
		return false, err
	}
	out, _, err := program.ContextEval(ctx, data)
	if err != nil {
		return false, fmt.Errorf("CEL evaluation failed: %w", err)
	}
	result, ok := out.(types.Bool)
	if !ok {
		return false, fmt.Errorf("CEL expression must evaluate to a boolean, got %s", out.Type().TypeName())
	}
	return bool(result), nil
}

func (e *Evaluator) program(expr string, data map[string]any) (cel.Program, error) {
	key := cacheKey(expr, data)
	if cached, found := e.programCache.Get(key); found {
		return cached, nil
	}
	envOpts := make([]cel.EnvOption, 0, len(data))
	for name := range data {
		envOpts = append(envOpts, cel.Variable(name, cel.DynType))
	}
	env, err := cel.NewEnv(envOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation failed: %w", issues.Err())
	}
	program, err := env.Program(ast, cel.CostLimit(e.costLimit), cel.InterruptCheckFrequency(100))
	if err != nil {
		return nil, fmt.Errorf("failed to build CEL program: %w", err)
	}
	e.programCache.Set(key, program, 1)
	return program, nil
}

func cacheKey(expr string, data map[string]any) string {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)
	return expr + "|" + strings.Join(names, ",")
}
