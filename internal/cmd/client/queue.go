package client

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// NewQueueCommand constructs the `queue` command group for write-queue
// introspection.
func NewQueueCommand(baseURL BaseURLFunc) *cobra.Command {
	queueCmd := &cobra.Command{Use: "queue", Short: "Write-queue operations"}
	queueCmd.AddCommand(
		newQueueStatsCommand(baseURL),
		newQueueDeadCommand(baseURL),
	)
	return queueCmd
}

func newQueueStatsCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show pending/dead counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := newAPIClient(baseURL()).queueStats(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
}

func newQueueDeadCommand(baseURL BaseURLFunc) *cobra.Command {
	deadCmd := &cobra.Command{
		Use:   "dead",
		Short: "List dead-lettered entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			entries, err := newAPIClient(baseURL()).queueDead(cmd.Context(), limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, e := range entries {
				var v any
				if err := json.Unmarshal(e, &v); err != nil {
					return err
				}
				if err := enc.Encode(v); err != nil {
					return err
				}
			}
			return nil
		},
	}
	deadCmd.Flags().Int("limit", 0, "Stop after N entries (0 = server default)")
	return deadCmd
}
