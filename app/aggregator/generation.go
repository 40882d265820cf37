package aggregator

import (
	"context"
	"sync/atomic"
)

// Generations hands out monotonically increasing request ids so that a
// caller only applies the result of the most recently issued aggregation.
type Generations struct {
	latest atomic.Uint64
}

func (g *Generations) Begin() uint64 {
	return g.latest.Add(1)
}

func (g *Generations) IsLatest(gen uint64) bool {
	return g.latest.Load() == gen
}

// Tagged is an aggregation outcome labelled with the generation that requested it.
type Tagged struct {
	Generation uint64
	Result     Result
	Err        error
}

// AggregateTagged issues a new generation and aggregates under it. Callers
// must check gens.IsLatest(t.Generation) before applying the result.
func (a *Aggregator) AggregateTagged(ctx context.Context, gens *Generations, mode Mode, opts ...Option) Tagged {
	gen := gens.Begin()
	result, err := a.Aggregate(ctx, mode, opts...)
	return Tagged{Generation: gen, Result: result, Err: err}
}
