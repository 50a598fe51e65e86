package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "recur %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", gitCommit)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", buildDate)
			fmt.Fprintf(cmd.OutOrStdout(), "  go:     %s\n", runtime.Version())
		},
	}
}
