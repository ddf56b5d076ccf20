package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scanforge/scanforge/internal/config"
	"github.com/scanforge/scanforge/internal/query"
	"github.com/scanforge/scanforge/internal/trace"
)

func newRunCmd(configPath *string) *cobra.Command {
	var (
		target    string
		showStats bool
		showTrace bool
	)

	cmd := &cobra.Command{
		Use:   "run [request text]",
		Short: "Run a scan request through the pipeline",
		Example: `  scanforge run "scan the web server for open ports" --target 203.0.113.10
  scanforge run "udp scan with service detection" --trace`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			orch, cleanup, err := buildOrchestrator(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			q := query.New(strings.Join(args, " "), target, nil)
			decision, err := orch.Submit(ctx, q)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(decision); encErr != nil {
				return encErr
			}

			if showTrace {
				trail, traceErr := orch.Trace(ctx, q.ID)
				if traceErr != nil {
					return traceErr
				}
				printTrail(cmd, trail)
			}

			if showStats {
				snap := orch.Stats().Snapshot()
				fmt.Fprintf(cmd.OutOrStdout(),
					"sessions=%d autonomous=%d iterative=%d failed=%d no_regeneration_rate=%.2f\n",
					snap.TotalSessions, snap.AutonomousRepairs, snap.IterativeRepairs,
					snap.FailedRepairs, orch.Stats().NoRegenerationRate())
			}

			return err
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "explicit scan target (host, IP, or CIDR)")
	cmd.Flags().BoolVar(&showStats, "stats", false, "print aggregate repair counters after the run")
	cmd.Flags().BoolVar(&showTrace, "trace", false, "print the audit trail after the run")

	return cmd
}

func printTrail(cmd *cobra.Command, trail []trace.Record) {
	for _, rec := range trail {
		fmt.Fprintf(cmd.OutOrStdout(), "%3d %-16s %-10s in=%q out=%q\n",
			rec.Seq, rec.Stage, rec.Duration, rec.InputSummary, rec.OutputSummary)
	}
}
