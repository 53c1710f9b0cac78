package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dashfin/internal/version"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dashfin %s\n", version.Get())
		},
	}
}
