package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hostgossipd",
		Short: "Replicated host inventory daemon",
		Long: `hostgossipd maintains a replicated inventory of end-station hosts across
a cluster of nodes using optimistic replication and periodic anti-entropy.`,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCmd.PersistentFlags().String("node-id", "", "this node's identity (required)")
	rootCmd.PersistentFlags().String("listen", ":7946", "gossip and query HTTP listen address")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringSlice("peers", nil, "peer addresses as node-id=host:port")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newWatchCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
