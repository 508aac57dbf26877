package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/schd/model"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <model>",
		Short: "Validate a model without running it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := model.Load(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d threads, %d tasks, %d execution units, "+
				"%d common resources, %d events\n",
				args[0], len(m.Threads), len(m.Tasks), len(m.Executors),
				len(m.Common), len(m.Events()))

			return nil
		},
	}
}
