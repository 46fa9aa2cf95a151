package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/rxtech-lab/moth-trading/internal/backtest/engine/engine_v1/cache"
	"github.com/rxtech-lab/moth-trading/internal/types"
	"github.com/rxtech-lab/moth-trading/mocks"
	codes "github.com/rxtech-lab/moth-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type SweepTestSuite struct {
	suite.Suite
	bars []types.Bar
}

func TestSweepSuite(t *testing.T) {
	suite.Run(t, new(SweepTestSuite))
}

func (suite *SweepTestSuite) SetupSuite() {
	config := mocks.DefaultConfig()
	config.Count = 1200
	config.Volatility = 0.01
	suite.bars = mocks.NewDataGenerator(3).Generate(config)
}

func (suite *SweepTestSuite) jobs(n int) []Job {
	jobs := make([]Job, n)

	for i := range jobs {
		strategy := DefaultStrategyConfig()
		strategy.RiskPerTrade = 0.01 * float64(i+1)
		jobs[i] = Job{
			Name:     fmt.Sprintf("risk_%d", i+1),
			DataPath: "btc.parquet",
			Bars:     suite.bars,
			Strategy: strategy,
		}
	}

	return jobs
}

func (suite *SweepTestSuite) TestResultsFollowJobOrder() {
	jobs := suite.jobs(8)
	done := 0

	results, err := Sweep(context.Background(), EmptyConfig(), jobs, SweepOptions{
		Parallelism: 4,
		OnDone: func(result JobResult) error {
			done++

			return nil
		},
	})
	suite.Require().NoError(err)
	suite.Require().Len(results, len(jobs))
	suite.Equal(len(jobs), done)

	for i, result := range results {
		suite.Equal(i, result.Index)
		suite.Equal(jobs[i].Name, result.Job.Name)

		expected, err := Backtest(suite.bars, 10000, jobs[i].Strategy.RiskPerTrade)
		suite.Require().NoError(err)
		suite.Equal(expected.EquityCurve, result.Result.EquityCurve)
		suite.Equal(expected.Trades, result.Result.Trades)
	}
}

func (suite *SweepTestSuite) TestIndicatorRowsAreShared() {
	jobs := suite.jobs(3)

	other := DefaultStrategyConfig()
	other.Indicators.EMAFast = 5
	jobs = append(jobs,
		Job{Name: "fast_ema", DataPath: "btc.parquet", Bars: suite.bars, Strategy: other},
		Job{Name: "inline", Bars: suite.bars, Strategy: DefaultStrategyConfig()},
	)

	indicatorCache := cache.NewIndicatorCache()

	_, err := Sweep(context.Background(), EmptyConfig(), jobs, SweepOptions{Cache: indicatorCache})
	suite.Require().NoError(err)

	hits, misses := indicatorCache.Stats()
	suite.Equal(2, hits)
	suite.Equal(2, misses)
	suite.Equal(2, indicatorCache.Len())
}

func (suite *SweepTestSuite) TestStartErrorCancels() {
	abort := errors.New("abort")

	var started atomic.Int32

	_, err := Sweep(context.Background(), EmptyConfig(), suite.jobs(6), SweepOptions{
		Parallelism: 1,
		OnStart: func(index int, job Job) error {
			started.Add(1)
			if index == 1 {
				return abort
			}

			return nil
		},
	})

	suite.ErrorIs(err, abort)
	suite.LessOrEqual(started.Load(), int32(6))
}

func (suite *SweepTestSuite) TestDoneErrorCancels() {
	failure := errors.New("disk full")

	_, err := Sweep(context.Background(), EmptyConfig(), suite.jobs(3), SweepOptions{
		OnDone: func(result JobResult) error {
			return failure
		},
	})

	suite.ErrorIs(err, failure)
}

func (suite *SweepTestSuite) TestInvalidInput() {
	bad := suite.jobs(2)
	bad[1].Strategy.RiskPerTrade = 0

	badConfig := EmptyConfig()
	badConfig.InitialBalance = -1

	tests := []struct {
		name   string
		config BacktestEngineV1Config
		jobs   []Job
		code   codes.ErrorCode
	}{
		{name: "invalid job strategy", config: EmptyConfig(), jobs: bad, code: codes.ErrCodeBacktestConfigError},
		{name: "invalid engine config", config: badConfig, jobs: suite.jobs(1), code: codes.ErrCodeInvalidConfiguration},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			_, err := Sweep(context.Background(), tc.config, tc.jobs, SweepOptions{})
			suite.Require().Error(err)
			suite.Equal(tc.code, codes.GetCode(err))
		})
	}
}

func (suite *SweepTestSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Sweep(ctx, EmptyConfig(), suite.jobs(2), SweepOptions{})
	suite.ErrorIs(err, context.Canceled)
}

func (suite *SweepTestSuite) TestNoJobs() {
	results, err := Sweep(context.Background(), EmptyConfig(), nil, SweepOptions{})
	suite.NoError(err)
	suite.Empty(results)
}
