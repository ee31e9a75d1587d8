package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/fieldops/fieldsync/internal/notify"
	"github.com/fieldops/fieldsync/internal/offline"
	"github.com/fieldops/fieldsync/internal/sync"
)

const FlagRetryFailed = "retry-failed"

// GetSyncCmd returns the one-shot drain command.
func GetSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a single drain pass and exit",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig(cmd)
			if err != nil {
				log.Fatalf("config: %v", err)
			}
			retryFailed, err := cmd.Flags().GetBool(FlagRetryFailed)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagRetryFailed, err)
			}

			mgr := offline.New(cfg, notify.LogNotifier{})
			if err := mgr.Initialize(context.Background()); err != nil {
				log.Fatalf("manager init: %v", err)
			}
			defer mgr.Close()

			if !mgr.CheckConnectivity(context.Background()) {
				log.Fatal("remote is unreachable, nothing to do")
			}

			var res *sync.Result
			if retryFailed {
				res, err = mgr.RetryFailed(context.Background())
			} else {
				res, err = mgr.SyncNow(context.Background())
			}
			if err != nil {
				log.Fatalf("sync: %v", err)
			}
			if res == nil {
				fmt.Println("sync skipped")
				return
			}
			fmt.Printf("synced=%d failed=%d uploaded=%d promoted=%d\n",
				res.Synced, res.Failed, res.Uploaded, res.Promoted)
		},
	}
	cmd.Flags().Bool(FlagRetryFailed, false, "reset failed visits before draining")
	return cmd
}
