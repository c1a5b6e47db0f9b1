// Command rpcclient calls XML-RPC and JSON-RPC 2.0 servers from the shell.
//
//	rpcclient call --endpoint http://localhost/rpc echo '"hello"'
//	rpcclient batch --endpoint http://localhost/rpc --protocol json calls.json
package main

import (
	"os"

	"github.com/spf13/cobra"

	"rpcclient/config"
)

const Version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:           "rpcclient",
	Short:         "XML-RPC and JSON-RPC 2.0 client",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	cobra.OnInitialize(config.LoadEnvFiles)
	config.SetupFlags(rootCmd)

	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
