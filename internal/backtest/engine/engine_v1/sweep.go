package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/rxtech-lab/moth-trading/internal/backtest/engine/engine_v1/cache"
	"github.com/rxtech-lab/moth-trading/internal/logger"
	"github.com/rxtech-lab/moth-trading/internal/types"
	"github.com/rxtech-lab/moth-trading/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Job is one strategy variant run against one bar series.
type Job struct {
	// Name labels the strategy variant in results
	Name string
	// DataPath identifies the series. Jobs sharing a DataPath and indicator
	// settings share one indicator computation.
	DataPath string
	Bars     []types.Bar
	Strategy StrategyConfig
}

// JobResult pairs a job with its outcome.
type JobResult struct {
	Index  int
	Job    Job
	Result *Result
}

// SweepOptions tunes a Sweep.
type SweepOptions struct {
	// Parallelism bounds concurrent jobs. Zero means one job per CPU.
	Parallelism int
	// OnStart is called before a job runs. Returning an error cancels the sweep.
	OnStart func(index int, job Job) error
	// OnDone is called after a job finished. Returning an error cancels the sweep.
	OnDone func(result JobResult) error
	// Cache shares indicator rows between jobs. Nil creates a fresh one.
	Cache *cache.IndicatorCache
	Log   *logger.Logger
}

// Sweep runs every job with the engine config and returns the results in job
// order. Each job owns its own ledger, so jobs never observe each other. The
// first failing job cancels the rest.
func Sweep(ctx context.Context, config BacktestEngineV1Config, jobs []Job, opts SweepOptions) ([]JobResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	log := opts.Log
	if log == nil {
		log = logger.NewNopLogger()
	}

	indicatorCache := opts.Cache
	if indicatorCache == nil {
		indicatorCache = cache.NewIndicatorCache()
	}

	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = config.Parallelism
	}

	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	results := make([]JobResult, len(jobs))

	// hooks run one at a time so callers need no locking of their own
	var hookMu sync.Mutex

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(parallelism)

	for i, job := range jobs {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			if opts.OnStart != nil {
				hookMu.Lock()
				err := opts.OnStart(i, job)
				hookMu.Unlock()

				if err != nil {
					return err
				}
			}

			simulator, err := NewSimulator(config, job.Strategy, WithLogger(log))
			if err != nil {
				return errors.Wrapf(errors.ErrCodeBacktestConfigError, err, "job %d (%s)", i, job.Name)
			}

			rows := indicatorRows(indicatorCache, simulator, job)
			result := JobResult{Index: i, Job: job, Result: simulator.RunRows(rows)}
			results[i] = result

			log.Debug("Sweep job finished",
				zap.Int("index", i),
				zap.String("name", job.Name),
				zap.String("data", job.DataPath),
				zap.Int("trades", result.Result.Report.TotalTrades),
			)

			if opts.OnDone != nil {
				hookMu.Lock()
				defer hookMu.Unlock()

				return opts.OnDone(result)
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	hits, misses := indicatorCache.Stats()
	log.Info("Sweep finished",
		zap.Int("jobs", len(jobs)),
		zap.Int("parallelism", parallelism),
		zap.Int("indicator_cache_hits", hits),
		zap.Int("indicator_cache_misses", misses),
	)

	return results, nil
}

func indicatorRows(indicatorCache *cache.IndicatorCache, simulator *Simulator, job Job) []types.IndicatorRow {
	if job.DataPath == "" {
		return simulator.Indicators(job.Bars)
	}

	key := fmt.Sprintf("%s|%+v", job.DataPath, job.Strategy.Indicators)

	return indicatorCache.GetOrCompute(key, func() []types.IndicatorRow {
		return simulator.Indicators(job.Bars)
	})
}
