package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/moth-trading/internal/backtest/engine"
	"github.com/rxtech-lab/moth-trading/internal/backtest/engine/engine_v1/cache"
	"github.com/rxtech-lab/moth-trading/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/moth-trading/internal/logger"
	"github.com/rxtech-lab/moth-trading/internal/types"
	"github.com/rxtech-lab/moth-trading/internal/version"
	"github.com/rxtech-lab/moth-trading/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type BacktestEngineV1 struct {
	config              BacktestEngineV1Config
	strategyConfigPaths []string
	strategyConfigs     []string
	dataPaths           []string
	resultsFolder       string
	log                 *logger.Logger
	datasource          datasource.DataSource
	cache               *cache.IndicatorCache
	now                 func() time.Time
}

// namedConfig is a parsed strategy config with the label its results are filed under.
type namedConfig struct {
	name     string
	strategy StrategyConfig
}

// series is the bars loaded from one data file.
type series struct {
	path string
	bars []types.Bar
}

// run ties a sweep job back to its position in the config x data grid.
type run struct {
	id          string
	configIndex int
	dataIndex   int
	folder      string
}

func NewBacktestEngineV1() engine.Engine {
	return &BacktestEngineV1{
		config:              EmptyConfig(),
		strategyConfigPaths: nil,
		strategyConfigs:     nil,
		dataPaths:           nil,
		resultsFolder:       "",
		log:                 logger.NewNopLogger(),
		datasource:          nil,
		cache:               cache.NewIndicatorCache(),
		now:                 time.Now,
	}
}

// SetLogger replaces the logger Initialize would create.
func (b *BacktestEngineV1) SetLogger(log *logger.Logger) {
	if log != nil {
		b.log = log
	}
}

// Initialize implements engine.Engine.
func (b *BacktestEngineV1) Initialize(config string) error {
	b.config = EmptyConfig()

	if err := yaml.Unmarshal([]byte(config), &b.config); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestConfigError, "failed to parse backtest config", err)
	}

	if err := b.config.Validate(); err != nil {
		return err
	}

	b.log.Debug("Backtest engine initialized",
		zap.Float64("initial_balance", b.config.InitialBalance),
		zap.String("broker", string(b.config.Broker)),
		zap.String("resample", string(b.config.Resample)),
	)

	return nil
}

// SetConfigPath implements engine.Engine.
func (b *BacktestEngineV1) SetConfigPath(path string) error {
	// use glob to get all the files that match the path
	files, err := filepath.Glob(path)
	if err != nil {
		b.log.Error("Failed to set config path",
			zap.String("path", path),
			zap.Error(err),
		)

		return errors.Wrapf(errors.ErrCodeInvalidParameter, err, "invalid config path %q", path)
	}

	b.strategyConfigPaths = files
	b.strategyConfigs = nil
	b.log.Debug("Config paths set",
		zap.Strings("files", files),
	)

	return nil
}

// SetConfigContent implements engine.Engine.
func (b *BacktestEngineV1) SetConfigContent(configs []string) error {
	b.strategyConfigs = configs
	b.strategyConfigPaths = nil
	b.log.Debug("Config content set",
		zap.Int("count", len(configs)),
	)

	return nil
}

// SetDataPath implements engine.Engine.
func (b *BacktestEngineV1) SetDataPath(path string) error {
	// use glob to get all the files that match the path
	files, err := filepath.Glob(path)
	if err != nil {
		b.log.Error("Failed to set data path",
			zap.String("path", path),
			zap.Error(err),
		)

		return errors.Wrapf(errors.ErrCodeInvalidParameter, err, "invalid data path %q", path)
	}

	// Convert all paths to absolute paths
	absolutePaths := make([]string, len(files))

	for i, file := range files {
		absPath, err := filepath.Abs(file)
		if err != nil {
			b.log.Error("Failed to get absolute path",
				zap.String("path", file),
				zap.Error(err),
			)

			return errors.Wrapf(errors.ErrCodeInvalidParameter, err, "invalid data path %q", file)
		}

		absolutePaths[i] = absPath
	}

	b.dataPaths = absolutePaths
	b.log.Debug("Data paths set",
		zap.Strings("files", absolutePaths),
	)

	return nil
}

// SetResultsFolder implements engine.Engine.
func (b *BacktestEngineV1) SetResultsFolder(folder string) error {
	b.resultsFolder = folder
	b.log.Debug("Results folder set",
		zap.String("folder", folder),
	)

	return nil
}

// SetDataSource implements engine.Engine.
func (b *BacktestEngineV1) SetDataSource(datasource datasource.DataSource) error {
	b.datasource = datasource

	return nil
}

// Run implements engine.Engine. Every data file is loaded once, then every
// strategy config runs against every series on a bounded worker pool. Each run
// writes its own results folder and the sweep writes summary.yaml at the root.
func (b *BacktestEngineV1) Run(ctx context.Context, callbacks engine.LifecycleCallbacks) (err error) {
	if err := b.preRunCheck(); err != nil {
		return err
	}

	if callbacks.OnBacktestEnd != nil {
		defer func() {
			(*callbacks.OnBacktestEnd)(err)
		}()
	}

	configs, err := b.loadConfigs()
	if err != nil {
		return err
	}

	if callbacks.OnBacktestStart != nil {
		if err := (*callbacks.OnBacktestStart)(len(configs), len(b.dataPaths)); err != nil {
			return err
		}
	}

	// clean the results folder
	if err := os.RemoveAll(b.resultsFolder); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestWriteFailed, "failed to clean results folder", err)
	}

	if err := os.MkdirAll(b.resultsFolder, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestWriteFailed, "failed to create results folder", err)
	}

	data, err := b.loadData(ctx)
	if err != nil {
		return err
	}

	jobs := make([]Job, 0, len(configs)*len(data))
	runs := make([]run, 0, cap(jobs))

	for configIndex, config := range configs {
		for dataIndex, s := range data {
			jobs = append(jobs, Job{
				Name:     config.name,
				DataPath: s.path,
				Bars:     s.bars,
				Strategy: config.strategy,
			})
			runs = append(runs, run{
				id:          uuid.New().String(),
				configIndex: configIndex,
				dataIndex:   dataIndex,
				folder:      getResultFolder(config.name, s.path, b),
			})
		}
	}

	writer, err := NewResultWriter()
	if err != nil {
		return err
	}
	defer writer.Close()

	stats := make([]types.RunStats, len(jobs))
	startedAt := b.now()

	_, err = Sweep(ctx, b.config, jobs, SweepOptions{
		Cache: b.cache,
		Log:   b.log,
		OnStart: func(index int, job Job) error {
			r := runs[index]

			b.log.Debug("Running strategy",
				zap.String("run_id", r.id),
				zap.String("config", job.Name),
				zap.String("data", job.DataPath),
				zap.String("result", r.folder),
			)

			if callbacks.OnRunStart == nil {
				return nil
			}

			return (*callbacks.OnRunStart)(r.id, r.configIndex, job.Name, r.dataIndex, job.DataPath, len(job.Bars))
		},
		OnDone: func(result JobResult) error {
			r := runs[result.Index]
			job := result.Job

			runStats := types.RunStats{
				ID:            r.id,
				Timestamp:     startedAt,
				Symbol:        symbolOf(job.Bars),
				ConfigName:    job.Name,
				DataPath:      job.DataPath,
				EngineVersion: version.GetVersion(),
			}

			written, err := writer.Write(r.folder, runStats, result.Result, job.Bars)
			if err != nil {
				return err
			}

			stats[result.Index] = written

			if callbacks.OnRunEnd != nil {
				(*callbacks.OnRunEnd)(r.configIndex, job.Name, r.dataIndex, job.DataPath, r.folder)
			}

			return nil
		},
	})
	if err != nil {
		return err
	}

	// indicator rows are only shared within one Run
	b.cache.Reset()

	if err := WriteSummary(b.resultsFolder, stats); err != nil {
		return err
	}

	b.log.Info("Backtest completed",
		zap.Int("configs", len(configs)),
		zap.Int("data_files", len(data)),
		zap.Int("runs", len(jobs)),
		zap.String("results", b.resultsFolder),
	)

	return nil
}

// GetConfigSchema implements engine.Engine.
func (b *BacktestEngineV1) GetConfigSchema() (string, error) {
	config := b.config

	schema, err := config.GenerateSchemaJSON()
	if err != nil {
		return "", fmt.Errorf("failed to generate schema: %w", err)
	}

	return schema, nil
}

// GetStrategyConfigSchema implements engine.Engine.
func (b *BacktestEngineV1) GetStrategyConfigSchema() (string, error) {
	config := DefaultStrategyConfig()

	schema, err := config.GenerateSchemaJSON()
	if err != nil {
		return "", fmt.Errorf("failed to generate schema: %w", err)
	}

	return schema, nil
}

// loadConfigs parses either the inline configs or the config files. File
// configs are labelled by file name, inline ones by position.
func (b *BacktestEngineV1) loadConfigs() ([]namedConfig, error) {
	configs := make([]namedConfig, 0, len(b.strategyConfigs)+len(b.strategyConfigPaths))

	for i, content := range b.strategyConfigs {
		strategy, err := ParseStrategyConfig([]byte(content))
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeBacktestConfigError, err, "invalid strategy config %d", i)
		}

		configs = append(configs, namedConfig{name: fmt.Sprintf("config_%d", i), strategy: strategy})
	}

	for _, configPath := range b.strategyConfigPaths {
		content, err := os.ReadFile(configPath)
		if err != nil {
			b.log.Error("Failed to read config",
				zap.String("config", configPath),
				zap.Error(err),
			)

			return nil, errors.Wrapf(errors.ErrCodeBacktestConfigError, err, "failed to read strategy config %s", configPath)
		}

		strategy, err := ParseStrategyConfig(content)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeBacktestConfigError, err, "invalid strategy config %s", configPath)
		}

		name := strings.TrimSuffix(filepath.Base(configPath), filepath.Ext(configPath))
		configs = append(configs, namedConfig{name: name, strategy: strategy})
	}

	return configs, nil
}

// loadData reads every data file through the data source, resampled when the
// config asks for it. The data source holds one file at a time, so files load
// sequentially.
func (b *BacktestEngineV1) loadData(ctx context.Context) ([]series, error) {
	data := make([]series, 0, len(b.dataPaths))

	for _, dataPath := range b.dataPaths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := b.datasource.Initialize(dataPath); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeDataNotFound, err, "failed to initialize data source for %s", dataPath)
		}

		var bars []types.Bar

		var err error

		if b.config.Resample != "" {
			bars, err = b.datasource.GetRange(b.config.StartTime, b.config.EndTime, optional.Some(b.config.Resample))
		} else {
			bars, err = datasource.Collect(b.datasource, b.config.StartTime, b.config.EndTime)
		}

		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to read bars from %s", dataPath)
		}

		b.log.Debug("Loaded data file",
			zap.String("data", dataPath),
			zap.Int("bars", len(bars)),
		)

		data = append(data, series{path: dataPath, bars: bars})
	}

	return data, nil
}

func (b *BacktestEngineV1) preRunCheck() error {
	if len(b.strategyConfigPaths) == 0 && len(b.strategyConfigs) == 0 {
		b.log.Error("No strategy configs loaded")

		return errors.New(errors.ErrCodeBacktestConfigError, "no strategy configs loaded")
	}

	if len(b.dataPaths) == 0 {
		b.log.Error("No data paths loaded")

		return errors.New(errors.ErrCodeBacktestConfigError, "no data paths loaded")
	}

	if b.resultsFolder == "" {
		b.log.Error("No results folder set")

		return errors.New(errors.ErrCodeBacktestConfigError, "no results folder set")
	}

	if b.datasource == nil {
		b.log.Error("No datasource set")

		return errors.New(errors.ErrCodeBacktestConfigError, "no datasource set")
	}

	return nil
}

func symbolOf(bars []types.Bar) string {
	for _, bar := range bars {
		if bar.Symbol != "" {
			return bar.Symbol
		}
	}

	return ""
}
