package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "reliwire",
		Short: "Reliability layer for duplex message transports",
		Long: `Reliwire adds application-level delivery semantics on top of a
duplex message transport such as a WebSocket:

  • Acknowledged one-way notes
  • Request/response with per-message and per-ack timeouts
  • Exactly-once terminal outcomes for every operation
  • Adaptive RTT-scaled heartbeats for fast dead-peer detection`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		callCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}
