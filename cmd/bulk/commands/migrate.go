package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	pgrepo "github.com/GK-FY/bulk/internal/repo/postgres"
)

func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer func() {
				_ = log.Sync()
			}()

			if strings.TrimSpace(cfg.Postgres.DSN) == "" {
				return fmt.Errorf("postgres.dsn is empty")
			}

			pool, err := pgrepo.NewPool(cmd.Context(), cfg.Postgres.DSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := pgrepo.Migrate(cmd.Context(), pool); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
			log.Info("schema applied")
			return nil
		},
	}
}
