package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GK-FY/bulk/internal/config"
	"github.com/GK-FY/bulk/internal/infra/logger"
)

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, log, nil
}
