package app

import (
	"github.com/spf13/cobra"

	"github.com/gova-training/gova/internal/contract"
)

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	history := &cobra.Command{Use: "history", Short: "Inspect the local journal of confirmed bookings"}

	var limit, offset int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent confirmations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, _, _, err := buildContext(cmd, opts, "history.list")
			if err != nil {
				return err
			}
			entries, hasMore, err := readHistoryPage(limit, offset)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, "Check --limit/--offset and history file permissions", 2)
			}
			if entries == nil {
				entries = []historyEntry{}
			}
			return p.Success(entries, map[string]any{"count": len(entries), "has_more": hasMore, "offset": offset}, nil)
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "Maximum entries")
	list.Flags().IntVar(&offset, "offset", 0, "Skip this many of the newest entries")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the local journal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, _, _, err := buildContext(cmd, opts, "history.clear")
			if err != nil {
				return err
			}
			n, err := clearHistory()
			if err != nil {
				return failWithHint(p, contract.ErrGeneric, err, "Check history file permissions", 1)
			}
			return p.Success(map[string]any{"cleared": n}, map[string]any{"count": n}, nil)
		},
	}

	history.AddCommand(list, clearCmd)
	return history
}
