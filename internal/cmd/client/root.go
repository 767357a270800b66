package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs the client command groups. baseURL is resolved per
// invocation so flags and env are read at run time.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "dp1-feed",
		Short: "dp1-feed client commands",
	}
	root.AddCommand(NewRecordCommand(baseURL))
	root.AddCommand(NewQueueCommand(baseURL))
	return root
}
