package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/farum-chat/internal/config"
	"github.com/PabloGalante/farum-chat/internal/observability"
)

func NewKeysCommand() *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List stored document keys (operator tooling)",
		Example: `  farum-chat keys --prefix thread-index:
  farum-chat keys --prefix chat-history-`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			observability.Configure(cmd.ErrOrStderr(), cfg.LogLevel)

			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			keys, err := a.storage.Keys(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Only list keys starting with this prefix")
	return cmd
}
