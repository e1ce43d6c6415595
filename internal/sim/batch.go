package sim

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/glide/internal/config"
	"github.com/san-kum/glide/internal/logging"
)

// Batch runs independent configurations side by side. Each run is still
// single-threaded; only whole runs overlap.
type Batch struct {
	configs []config.Config
	log     logging.Logger
	limit   int
	observe func(i int, s *Simulator)
}

func NewBatch(configs []config.Config, log logging.Logger) *Batch {
	return &Batch{configs: configs, log: log, limit: runtime.GOMAXPROCS(0)}
}

// SetLimit caps the number of runs in flight.
func (b *Batch) SetLimit(n int) {
	if n > 0 {
		b.limit = n
	}
}

// OnSetup is called with each simulator before it runs, to attach metrics
// or observers.
func (b *Batch) OnSetup(fn func(i int, s *Simulator)) { b.observe = fn }

// Run returns one result per configuration, in order. The first failing run
// cancels the others.
func (b *Batch) Run(ctx context.Context) ([]*Result, error) {
	results := make([]*Result, len(b.configs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.limit)
	for i, cfg := range b.configs {
		i, cfg := i, cfg
		g.Go(func() error {
			s, err := New(cfg, nil, nil, b.log)
			if err != nil {
				return err
			}
			if b.observe != nil {
				b.observe(i, s)
			}
			runCtx := logging.ContextWithRunID(ctx, fmt.Sprintf("%s#%d", cfg.Name, i))
			results[i], err = s.Run(runCtx)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
