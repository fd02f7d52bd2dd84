package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/defistate/defistate-amm-go/cmd/simulator/config"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "scenario.yaml", "Path to the scenario file.")
	verbose := flag.Bool("v", false, "Log every pool operation.")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	// the report goes to stdout, logs to stderr
	rootLogger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	close := func() {
		os.Exit(1)
	}

	log.Printf("Loading scenario from: %s", *configPath)
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		rootLogger.Error("Failed to load configuration", "error", err)
		close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	runner, err := NewRunner(cfg, rootLogger.With("component", "simulator"), registry)
	if err != nil {
		rootLogger.Error("Failed to set up scenario", "error", err)
		close()
	}

	reports, runErr := runner.Run(ctx)
	printReports(reports)
	if runErr != nil {
		rootLogger.Error("Scenario failed", "completed_steps", len(reports), "error", runErr)
		close()
	}
	printPositions(runner.Positions())
	printOperationCounts(registry)
}

func printReports(reports []StepReport) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tOP\tPOOL\tACCOUNT\tAMOUNT0\tAMOUNT1\tTICK\tPRICE\tINVERSE\tRESERVE0\tRESERVE1\tCHANGED\tERROR")
	for _, r := range reports {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.Index, r.Op, r.Pool, r.Account, r.Amount0, r.Amount1, r.Tick,
			r.Price.String(), r.InversePrice.String(), r.Reserve0.StringFixed(6), r.Reserve1.StringFixed(6),
			len(r.Diff.Additions)+len(r.Diff.Updates)+len(r.Diff.Deletions), errText)
	}
	w.Flush()
}

func printPositions(positions []PositionReport) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nACCOUNT\tPOOL\tLOWER\tUPPER\tLIQUIDITY\tOWED0\tOWED1")
	for _, p := range positions {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			p.Account, p.Pool, p.TickLower, p.TickUpper, p.Liquidity, p.Owed0, p.Owed1)
	}
	w.Flush()
}

func printOperationCounts(registry *prometheus.Registry) {
	families, err := registry.Gather()
	if err != nil {
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nMETRIC\tLABELS\tVALUE")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			labels := ""
			for _, lp := range m.GetLabel() {
				labels += lp.GetName() + "=" + lp.GetValue() + " "
			}
			fmt.Fprintf(w, "%s\t%s\t%.0f\n", mf.GetName(), labels, m.GetCounter().GetValue())
		}
	}
	w.Flush()
}
