package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/GiGurra/boa/pkg/boa"

	"trackme/internal/cli"
	"trackme/internal/core"
	"trackme/internal/export"
	applog "trackme/internal/log"
	"trackme/internal/report"
	"trackme/internal/services"
)

type Params struct {
	User   string `descr:"User id whose records are reported"`
	Period string `descr:"Transaction period" default:"this-month" alts:"this-month,last-month,this-year,all-time" strict:"true"`
	Format string `descr:"Output format" default:"table" alts:"table,yaml" strict:"true"`
	Xlsx   string `descr:"Also write an XLSX workbook to this path" optional:"true"`
}

func main() {
	boa.NewCmdT[Params]("trackme-report").
		WithShort("Print a user's subscriptions and money totals").
		WithLong("Reads the configured store and prints every subscription with its due state, followed by income, expense and balance for the chosen period.").
		WithRunFunc(func(params *Params) {
			if err := run(params); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}).
		Run()
}

func run(params *Params) error {
	cli.LoadEnvFile()
	// Only errors are logged so the report output stays clean.
	logger := cli.SetupLogger("error", applog.ComponentReport)
	cfg := cli.LoadAndValidateConfig(logger)

	period, err := core.ParsePeriod(params.Period)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// Reports never write, so change publishing stays off.
	storeCfg := *cfg
	storeCfg.AMQPURL = ""
	backendResult := cli.MustOpenStore(ctx, logger, &storeCfg)
	defer backendResult.Cleanup()

	clock := services.NewClock(cfg.Location())
	subs, err := services.NewSubscriptionService(backendResult.Store, clock, logger).List(ctx, params.User)
	if err != nil {
		return fmt.Errorf("load subscriptions: %w", err)
	}
	txs, err := services.NewTransactionService(backendResult.Store, nil, clock, logger).List(ctx, params.User)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	d := services.BuildDashboard(params.User, subs, txs, clock.Today())

	if err := report.Render(os.Stdout, d, period, params.Format); err != nil {
		return err
	}

	if params.Xlsx != "" {
		f, err := os.Create(params.Xlsx)
		if err != nil {
			return fmt.Errorf("create %s: %w", params.Xlsx, err)
		}
		if err := export.WriteWorkbook(f, d); err != nil {
			f.Close()
			return fmt.Errorf("write workbook: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", params.Xlsx, err)
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", params.Xlsx)
	}
	return nil
}
