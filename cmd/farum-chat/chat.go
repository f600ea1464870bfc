package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/farum-chat/internal/adapters/console"
	"github.com/PabloGalante/farum-chat/internal/config"
	"github.com/PabloGalante/farum-chat/internal/domain"
	"github.com/PabloGalante/farum-chat/internal/observability"
)

func NewChatCommand() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Pick or start a conversation and chat in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				return domain.ErrMissingUserID
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			// Keep log lines out of the transcript.
			logOut := os.Stderr
			if cfg.LogFile != "" {
				f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
				if err != nil {
					return err
				}
				defer f.Close()
				logOut = f
			}
			observability.Configure(logOut, cfg.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			session := console.NewSession(a.svc, domain.UserID(user), cmd.InOrStdin(), cmd.OutOrStdout(), cfg.ThreadListLimit)
			if err := session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", os.Getenv("USER"), "User whose conversations are shown")
	return cmd
}
