package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/darkprince558/flip/internal/audit"
)

func newHistoryCmd() *cobra.Command {
	var clear bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past transfers and server sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if clear {
				if err := audit.ClearHistory(); err != nil {
					return err
				}
				fmt.Println("History cleared.")
				return nil
			}
			return audit.ShowHistory(os.Stdout)
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "delete the history file")
	return cmd
}
