package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/fieldops/fieldsync/internal/models"
	"github.com/fieldops/fieldsync/internal/notify"
	"github.com/fieldops/fieldsync/internal/offline"
)

// GetStatusCmd returns the queue/connectivity status command.
func GetStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity state and queue depth",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig(cmd)
			if err != nil {
				log.Fatalf("config: %v", err)
			}

			mgr := offline.New(cfg, notify.Discard{})
			if err := mgr.Initialize(context.Background()); err != nil {
				log.Fatalf("manager init: %v", err)
			}
			defer mgr.Close()

			mgr.CheckConnectivity(context.Background())

			status, err := mgr.Status(context.Background())
			if err != nil {
				log.Fatalf("status: %v", err)
			}

			fmt.Printf("online:   %v\n", status.Online)
			fmt.Printf("degraded: %v\n", status.Degraded)
			fmt.Printf("syncing:  %v\n", status.SyncRunning)
			for _, st := range []models.OrderStatus{
				models.OrderStatusPending,
				models.OrderStatusSyncing,
				models.OrderStatusSynced,
				models.OrderStatusError,
			} {
				fmt.Printf("queue[%s]: %d\n", st, status.QueueByState[st])
			}
		},
	}
}
