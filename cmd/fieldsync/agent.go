package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fieldops/fieldsync/internal/notify"
	"github.com/fieldops/fieldsync/internal/offline"
)

const FlagUserID = "user-id"

// GetAgentCmd returns the long-running agent command: heartbeat monitoring
// plus automatic drains on reconnect, until SIGINT/SIGTERM.
func GetAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the sync agent until interrupted",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig(cmd)
			if err != nil {
				log.Fatalf("config: %v", err)
			}
			userID, err := cmd.Flags().GetString(FlagUserID)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagUserID, err)
			}

			mgr := offline.New(cfg, notify.LogNotifier{})
			if err := mgr.Initialize(context.Background()); err != nil {
				log.Fatalf("manager init: %v", err)
			}
			defer mgr.Close()

			// Refresh reference data once at startup when reachable.
			if mgr.CheckConnectivity(context.Background()) {
				if err := mgr.RefreshReferenceData(context.Background(), userID); err != nil {
					log.Printf("reference data refresh: %v", err)
				}
				if _, err := mgr.SyncNow(context.Background()); err != nil {
					log.Printf("initial sync: %v", err)
				}
			}

			// Wait for signal
			signalCh := make(chan os.Signal, 1)
			signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
			<-signalCh
		},
	}
	cmd.Flags().String(FlagUserID, "", "employee id used to refresh the cached profile")
	return cmd
}
