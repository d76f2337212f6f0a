package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/livebridge/internal/status"
)

// CreateStatusCmd creates the status command. configure returns the
// status settings resolved from flags, environment and config file.
func CreateStatusCmd(configure func() status.Config) *cobra.Command {
	var showKey bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Probe the streaming backends once",
		Long: `Queries SRS, then Owncast, exactly like GET /api/stream/status and prints the ` +
			`normalized snapshot as JSON. Exits with status 1 when the stream is offline.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			snap := status.New(configure(), nil).GetStatus(ctx)
			if !showKey {
				snap = snap.Public()
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(snap); err != nil {
				return fmt.Errorf("failed to encode status: %w", err)
			}

			if !snap.Online {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showKey, "show-key", false, "Include the RTMP stream key in the output")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "Overall deadline for all probes")

	return cmd
}
