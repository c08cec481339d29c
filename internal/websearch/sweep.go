package websearch

import (
	"context"
	"log/slog"
	"time"

	"github.com/danielpatrickdp/briefgate/internal/worker"
)

// #region sweep
// Sweeper issues a batch of queries against a provider with bounded
// concurrency. Each query runs under the pool's per-call timeout.
type Sweeper struct {
	provider   Provider
	pool       *worker.Pool
	maxResults int
	logger     *slog.Logger
}

// NewSweeper creates a sweeper. A nil logger uses slog.Default().
func NewSweeper(provider Provider, cfg Config, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.MaxResults
	if limit <= 0 {
		limit = DefaultConfig().MaxResults
	}
	return &Sweeper{
		provider:   provider,
		pool:       worker.NewPool(cfg.Concurrency, cfg.Timeout),
		maxResults: limit,
		logger:     logger,
	}
}

// Run issues every query and returns one Outcome per query, in order.
// Failures and timeouts are carried on the Outcome, never returned.
func (s *Sweeper) Run(ctx context.Context, queries []Query) []Outcome {
	tasks := make([]worker.Task[Outcome], len(queries))
	for i, q := range queries {
		tasks[i] = func(ctx context.Context) Outcome {
			return s.issue(ctx, q)
		}
	}
	return worker.Run(ctx, s.pool, tasks)
}

func (s *Sweeper) issue(ctx context.Context, q Query) Outcome {
	start := time.Now()
	resp, err := s.provider.Search(ctx, q.Text, s.maxResults)
	out := Outcome{Query: q, Elapsed: time.Since(start)}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.logger.Warn("web search degraded", "query", q.Text, "intent", q.Intent, "error", err)
		out.Err = err
		return out
	}
	out.Response = resp
	s.logger.Debug("web search", "query", q.Text, "results", len(resp.Results), "elapsed", out.Elapsed)
	return out
}

// #endregion sweep
