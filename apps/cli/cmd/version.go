package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pagespec version %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "Built: %s (%s/%s)\n", buildTime, runtime.GOOS, runtime.GOARCH)
	},
}
