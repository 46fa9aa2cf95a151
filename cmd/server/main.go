package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rxtech-lab/moth-trading/internal/api"
	"github.com/rxtech-lab/moth-trading/internal/arbitrage"
	"github.com/rxtech-lab/moth-trading/internal/logger"
	"github.com/rxtech-lab/moth-trading/internal/paper"
	"github.com/rxtech-lab/moth-trading/internal/version"
	"github.com/rxtech-lab/moth-trading/pkg/marketdata/provider"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func serveAction(ctx context.Context, cmd *cli.Command) error {
	level := zapcore.InfoLevel
	if cmd.Bool("verbose") {
		level = zapcore.DebugLevel
	}

	log, err := logger.NewLoggerWithLevel(level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	opts := []api.Option{api.WithLogger(log)}

	if names := cmd.String("exchanges"); names != "" {
		exchanges := make(map[string]provider.Provider)

		for _, name := range strings.Split(names, ",") {
			name = strings.TrimSpace(name)

			marketProvider, err := provider.NewMarketDataProvider(provider.ProviderType(name), nil)
			if err != nil {
				return err
			}

			exchanges[name] = provider.NewTickerCache(marketProvider, cmd.Duration("ticker-ttl"))
		}

		opts = append(opts, api.WithDetector(arbitrage.NewDetector(exchanges, arbitrage.WithLogger(log))))
	}

	if balance := cmd.Float("paper-balance"); balance > 0 {
		trader, err := paper.NewTrader(balance, paper.WithLogger(log))
		if err != nil {
			return err
		}

		opts = append(opts, api.WithTrader(trader))
	}

	server := api.NewServer(opts...)
	if err := server.Start(cmd.String("address")); err != nil {
		return err
	}

	<-ctx.Done()

	log.Info("Shutting down", zap.String("address", server.Address()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return server.Stop(shutdownCtx)
}

func main() {
	cmd := &cli.Command{
		Name:    "server",
		Version: version.GetVersion(),
		Usage:   "Serve backtests, indicators, arbitrage scans and a paper account over HTTP",
		Flags:   []cli.Flag{
			&cli.StringFlag{
				Name:    "address",
				Aliases: []string{"a"},
				Usage:   "Listen address",
				Value:   ":8080",
			},
			&cli.StringFlag{
				Name:  "exchanges",
				Usage: "Comma separated exchanges for the arbitrage routes, e.g. binance. Empty disables them.",
			},
			&cli.DurationFlag{
				Name:  "ticker-ttl",
				Usage: "How long a fetched ticker is reused",
				Value: provider.DefaultTickerTTL,
			},
			&cli.FloatFlag{
				Name:  "paper-balance",
				Usage: "Initial balance of the paper account. Zero disables the paper routes.",
				Value: 10000,
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log at debug level",
			},
		},
		Action: serveAction,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
