package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/rxtech-lab/moth-trading/internal/backtest/engine"
	engineV1 "github.com/rxtech-lab/moth-trading/internal/backtest/engine/engine_v1"
	"github.com/rxtech-lab/moth-trading/internal/logger"
	"github.com/rxtech-lab/moth-trading/internal/types"
	"github.com/rxtech-lab/moth-trading/internal/version"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(cmd *cli.Command) (*logger.Logger, error) {
	level := zapcore.WarnLevel
	if cmd.Bool("verbose") {
		level = zapcore.DebugLevel
	}

	return logger.NewLoggerWithLevel(level)
}

// newEngine wires the engine flags shared by run and sweep.
func newEngine(cmd *cli.Command, log *logger.Logger) (engine.Engine, error) {
	backtester := engineV1.NewBacktestEngineV1()
	if withLogger, ok := backtester.(interface{ SetLogger(*logger.Logger) }); ok {
		withLogger.SetLogger(log)
	}

	engineConfig := ""

	if path := cmd.String("engine-config"); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read engine config: %w", err)
		}

		engineConfig = string(content)
	}

	if err := backtester.Initialize(engineConfig); err != nil {
		return nil, err
	}

	if err := backtester.SetConfigPath(cmd.String("config")); err != nil {
		return nil, err
	}

	if err := backtester.SetDataPath(cmd.String("data")); err != nil {
		return nil, err
	}

	if err := backtester.SetResultsFolder(cmd.String("results")); err != nil {
		return nil, err
	}

	return backtester, nil
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	backtester, err := newEngine(cmd, log)
	if err != nil {
		return err
	}

	onRunEnd := engine.OnRunEndCallback(func(_ int, configName string, _ int, dataFilePath string, resultFolderPath string) {
		fmt.Printf("%s on %s -> %s\n", configName, filepath.Base(dataFilePath), resultFolderPath)
	})

	if err := backtester.Run(ctx, engine.LifecycleCallbacks{OnRunEnd: &onRunEnd}); err != nil {
		return err
	}

	return printSummary(cmd.String("results"))
}

func sweepAction(ctx context.Context, cmd *cli.Command) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	backtester, err := newEngine(cmd, log)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar

	onStart := engine.OnBacktestStartCallback(func(totalConfigs int, totalDataFiles int) error {
		bar = progressbar.NewOptions(totalConfigs*totalDataFiles,
			progressbar.OptionSetDescription(fmt.Sprintf("Sweeping %d configs x %d files", totalConfigs, totalDataFiles)),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWriter(os.Stderr),
		)

		return nil
	})

	onRunEnd := engine.OnRunEndCallback(func(_ int, _ string, _ int, _ string, _ string) {
		_ = bar.Add(1)
	})

	onEnd := engine.OnBacktestEndCallback(func(err error) {
		if bar != nil {
			_ = bar.Finish()
		}

		if err != nil {
			log.Error("Sweep failed", zap.Error(err))
		}
	})

	err = backtester.Run(ctx, engine.LifecycleCallbacks{
		OnBacktestStart: &onStart,
		OnBacktestEnd:   &onEnd,
		OnRunEnd:        &onRunEnd,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr)

	return printSummary(cmd.String("results"))
}

func schemaAction(_ context.Context, cmd *cli.Command) error {
	backtester := engineV1.NewBacktestEngineV1()

	schema, err := backtester.GetConfigSchema()
	if cmd.Bool("strategy") {
		schema, err = backtester.GetStrategyConfigSchema()
	}

	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func summaryAction(_ context.Context, cmd *cli.Command) error {
	return printSummary(cmd.String("results"))
}

func printSummary(resultsFolder string) error {
	stats, err := types.ReadRunStats(filepath.Join(resultsFolder, engineV1.SummaryFileName))
	if err != nil {
		return err
	}

	for _, s := range stats {
		if err := version.CheckCompatibility(s.EngineVersion, version.GetVersion()); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s on %s: %v\n", s.ConfigName, filepath.Base(s.DataPath), err)
		}
	}

	table := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(table, "CONFIG\tDATA\tTRADES\tWIN %\tRETURN %\tMAX DD %\tPROFIT FACTOR")

	for _, s := range stats {
		fmt.Fprintf(table, "%s\t%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\n",
			s.ConfigName,
			filepath.Base(s.DataPath),
			s.Report.TotalTrades,
			s.Report.WinRate,
			s.Report.TotalReturn,
			s.Report.MaxDrawdown,
			s.Report.ProfitFactor,
		)
	}

	return table.Flush()
}

func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "config",
			Aliases:  []string{"c"},
			Usage:    "Strategy config file or glob, e.g. `config/*.yaml`",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "data",
			Aliases:  []string{"d"},
			Usage:    "Bar file or glob (parquet or csv)",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "engine-config",
			Aliases: []string{"e"},
			Usage:   "Engine config yaml (balance, fees, time range, resample, parallelism)",
		},
		&cli.StringFlag{
			Name:    "results",
			Aliases: []string{"r"},
			Usage:   "Results folder, recreated on every run",
			Value:   "results",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Log at debug level",
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:     "backtest",
		Version:  version.GetVersion(),
		Usage:    "Backtest trend following strategies on historical bars",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run strategy configs against bar files and write the results",
				Flags:  engineFlags(),
				Action: runAction,
			},
			{
				Name:   "sweep",
				Usage:  "Run every config against every data file in parallel with a progress bar",
				Flags:  engineFlags(),
				Action: sweepAction,
			},
			{
				Name:  "summary",
				Usage: "Print the summary of a results folder written by run or sweep",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "results",
						Aliases: []string{"r"},
						Usage:   "Results folder to read",
						Value:   "results",
					},
				},
				Action: summaryAction,
			},
			{
				Name:  "schema",
				Usage: "Print the JSON schema of the engine config",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "strategy",
						Usage: "Print the strategy config schema instead",
					},
				},
				Action: schemaAction,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
