package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GK-FY/bulk/internal/app/apiapp"
	"github.com/GK-FY/bulk/internal/app/botapp"
)

const shutdownTimeout = 10 * time.Second

func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot listener and the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer func() {
				_ = log.Sync()
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			bot, err := botapp.New(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("create bot app: %w", err)
			}
			defer bot.Close()

			api, err := apiapp.New(cfg, log, bot.API())
			if err != nil {
				return fmt.Errorf("create api app: %w", err)
			}

			errCh := make(chan error, 2)
			go func() {
				errCh <- api.Run()
			}()
			go func() {
				errCh <- bot.Run(ctx)
			}()

			var runErr error
			select {
			case <-ctx.Done():
			case runErr = <-errCh:
				if runErr != nil {
					log.Error("app stopped with error", zap.Error(runErr))
				}
				stop()
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := api.Shutdown(shutdownCtx); err != nil {
				log.Error("shutdown api app", zap.Error(err))
			}
			return runErr
		},
	}
}
