package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/GK-FY/bulk/cmd/bulk/commands"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "bulk",
		Short:         "Bulk messaging bot",
		Long:          "Chat bot for bulk messaging with a prepaid balance, gateway top-ups and an admin console",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", defaultConfigPath(), "path to the YAML config file")

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	if path := os.Getenv("APP_CONFIG"); path != "" {
		return path
	}
	return "configs/config.yaml"
}
