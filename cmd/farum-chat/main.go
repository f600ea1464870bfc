package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "farum-chat",
	Short: "Multi-user chat threads over a schema-less document store",
	Long: `farum-chat keeps per-user chat threads and their message histories in a
key/value document store (memory, bolt, redis, sqlite or firestore) and talks
to Gemini, or a local mock, for replies.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if configFile != "" {
			_ = os.Setenv("FARUM_CONFIG_FILE", configFile)
		}
	},
}

func main() {
	rootCmd.AddCommand(
		NewChatCommand(),
		NewServeCommand(),
		NewKeysCommand(),
	)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"YAML config file (overrides FARUM_CONFIG_FILE)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
