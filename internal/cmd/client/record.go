package client

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// NewRecordCommand constructs the `record` command group and subcommands.
func NewRecordCommand(baseURL BaseURLFunc) *cobra.Command {
	recordCmd := &cobra.Command{Use: "record", Short: "Record operations"}

	recordCmd.AddCommand(
		newRecordGetCommand(baseURL),
		newRecordPutCommand(baseURL),
		newRecordPutBatchCommand(baseURL),
		newRecordDeleteCommand(baseURL),
		newRecordListCommand(baseURL),
	)

	return recordCmd
}

func newRecordGetCommand(baseURL BaseURLFunc) *cobra.Command {
	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			value, err := newAPIClient(baseURL()).getRecord(cmd.Context(), ns, args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(value))
			return nil
		},
	}
	getCmd.Flags().StringP("namespace", "n", "playlists", "Namespace")
	return getCmd
}

func newRecordPutCommand(baseURL BaseURLFunc) *cobra.Command {
	putCmd := &cobra.Command{
		Use:   "put <key> [value]",
		Short: "Save a record (JSON value from arg or stdin)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			var raw []byte
			if len(args) == 2 {
				raw = []byte(args[1])
			} else {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				raw = b
			}
			if !json.Valid(raw) {
				return fmt.Errorf("value is not valid JSON")
			}
			if err := newAPIClient(baseURL()).putRecord(cmd.Context(), ns, args[0], raw); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
	putCmd.Flags().StringP("namespace", "n", "playlists", "Namespace")
	return putCmd
}

func newRecordPutBatchCommand(baseURL BaseURLFunc) *cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "put-batch <file>",
		Short: "Save records from a JSON object of key to value ('-' for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			var raw []byte
			var err error
			if args[0] == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			var entries map[string]json.RawMessage
			if err := json.Unmarshal(raw, &entries); err != nil {
				return fmt.Errorf("invalid batch input: %w", err)
			}
			if err := newAPIClient(baseURL()).putBatch(cmd.Context(), ns, entries); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
	batchCmd.Flags().StringP("namespace", "n", "playlists", "Namespace")
	return batchCmd
}

func newRecordDeleteCommand(baseURL BaseURLFunc) *cobra.Command {
	delCmd := &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			if err := newAPIClient(baseURL()).deleteRecord(cmd.Context(), ns, args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
	delCmd.Flags().StringP("namespace", "n", "playlists", "Namespace")
	return delCmd
}

func newRecordListCommand(baseURL BaseURLFunc) *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List record keys",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, _ := cmd.Flags().GetString("namespace")
			prefix, _ := cmd.Flags().GetString("prefix")
			cursor, _ := cmd.Flags().GetString("cursor")
			filter, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt("limit")
			page, err := newAPIClient(baseURL()).listRecords(cmd.Context(), ns, prefix, cursor, filter, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, k := range page.Keys {
				_, _ = fmt.Fprintln(out, k)
			}
			if !page.IsComplete {
				_, _ = fmt.Fprintln(out, "cursor:", page.Cursor)
			}
			return nil
		},
	}
	listCmd.Flags().StringP("namespace", "n", "playlists", "Namespace")
	listCmd.Flags().String("prefix", "", "Key prefix")
	listCmd.Flags().String("cursor", "", "Resume after this key")
	listCmd.Flags().String("filter", "", "CEL filter (server-side)")
	listCmd.Flags().Int("limit", 0, "Page size (0 = server default)")
	return listCmd
}
