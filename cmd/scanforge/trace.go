package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scanforge/scanforge/internal/config"
	"github.com/scanforge/scanforge/internal/trace"
	"github.com/scanforge/scanforge/internal/types"
)

func newTraceCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace <request-id>",
		Short: "Replay the audit trail for a past request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Trace.Path == "" {
				return fmt.Errorf("no trace database configured; set trace.path")
			}

			requestID, err := types.ParseID(args[0])
			if err != nil {
				return fmt.Errorf("invalid request id %q: %w", args[0], err)
			}

			store, err := trace.OpenStore(cfg.Trace.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			trail, err := store.ByRequest(cmd.Context(), requestID)
			if err != nil {
				return err
			}
			if len(trail) == 0 {
				return fmt.Errorf("no trace records for request %s", requestID)
			}

			printTrail(cmd, trail)
			return nil
		},
	}
	return cmd
}
