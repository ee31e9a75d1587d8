package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/fieldops/fieldsync/internal/config"
	"github.com/fieldops/fieldsync/internal/logging"
)

const FlagConfig = "config"

// rootCmd is a base command.
var rootCmd = &cobra.Command{
	Use:   "fieldsync",
	Short: "Offline durability and sync agent for field visits",
}

func main() {
	rootCmd.PersistentFlags().String(FlagConfig, "", "path to config file (YAML)")
	rootCmd.AddCommand(GetAgentCmd(), GetSyncCmd(), GetStatusCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("rootCmd.Execute: %v", err)
	}
}

// loadConfig reads the --config flag and initializes logging from the
// resulting configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString(FlagConfig)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logging.Init(os.Stdout, logging.ParseLevel(cfg.Logging.Level))
	return cfg, nil
}
