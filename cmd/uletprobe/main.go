// Command uletprobe exercises HTTP endpoints through the ulet client,
// reporting per-target outcomes and optionally exposing Prometheus metrics.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adiwarsito/ulet"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "uletprobe",
		Short: "Probe HTTP endpoints through the ulet resilient client",
		Long:  "Run configured probes with retries, timeouts and response caching",
	}

	rootCmd.AddCommand(probeCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(ulet.GetVersion())
		},
	}
}
