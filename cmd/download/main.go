package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rxtech-lab/moth-trading/internal/version"
	"github.com/rxtech-lab/moth-trading/pkg/marketdata"
	"github.com/rxtech-lab/moth-trading/pkg/marketdata/provider"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
)

// downloadAction fetches the requested klines and writes them under the data folder.
func downloadAction(ctx context.Context, cmd *cli.Command) error {
	ticker := strings.ToUpper(cmd.String("ticker"))
	startDate := cmd.Timestamp("start")
	endDate := cmd.Timestamp("end")
	interval := marketdata.Timespan(cmd.String("interval"))

	var bar *progressbar.ProgressBar

	onProgress := func(current float64, total float64, _ string) {
		if bar == nil {
			bar = progressbar.NewOptions64(int64(total),
				progressbar.OptionSetDescription(fmt.Sprintf("Downloading %s %s", ticker, interval)),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowElapsedTimeOnFinish(),
			)
		}

		_ = bar.Set64(int64(current))
	}

	client, err := marketdata.NewClient(marketdata.ClientConfig{
		ProviderType: provider.ProviderType(cmd.String("provider")),
		Format:       marketdata.OutputFormat(cmd.String("format")),
		DataPath:     cmd.String("data"),
	}, onProgress)
	if err != nil {
		return fmt.Errorf("failed to create market data client: %w", err)
	}

	log.Printf("Starting download for %s from %s to %s at %s...",
		ticker, startDate.Format("2006-01-02"), endDate.Format("2006-01-02"), interval)

	path, err := client.Download(ctx, marketdata.DownloadParams{
		Ticker:    ticker,
		StartDate: startDate,
		EndDate:   endDate,
		Interval:  interval,
	})
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	log.Printf("Download completed: %s", path)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "download",
		Version: version.GetVersion(),
		Usage:   "Download historical klines from an exchange",
		Flags:   []cli.Flag{
			&cli.StringFlag{
				Name:     "ticker",
				Aliases:  []string{"t"},
				Usage:    "Trading pair, e.g. BTCUSDT",
				Required: true,
			},
			&cli.TimestampFlag{
				Name:    "start",
				Aliases: []string{"s"},
				Usage:   "Start date in `YYYY-MM-DD` format",
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
				Required: true,
			},
			&cli.TimestampFlag{
				Name:    "end",
				Aliases: []string{"e"},
				Usage:   "End date in `YYYY-MM-DD` format. Defaults to now.",
				Value:   time.Now(),
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.StringFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "Kline interval, e.g. 1m, 15m, 1h, 1d",
				Value:   string(marketdata.TimespanOneHour),
			},
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   fmt.Sprintf("Data provider to use (%s)", provider.ProviderBinance),
				Value:   string(provider.ProviderBinance),
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   fmt.Sprintf("Output format (%s or %s)", marketdata.OutputFormatCSV, marketdata.OutputFormatParquet),
				Value:   string(marketdata.OutputFormatCSV),
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Path to the data output directory",
				Value:   "data",
			},
		},
		Action: downloadAction,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
