package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bujo/internal/client/localdb"
	"bujo/internal/client/mirror"
	"bujo/internal/client/opqueue"
	"bujo/internal/client/sync"
	"bujo/internal/client/transport"
	"bujo/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAgent()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := localdb.Open(cfg.LocalDatabaseURL)
	if err != nil {
		log.Fatalf("local db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	client := transport.NewClient(cfg.ServerURL, cfg.APIToken, nil)
	store := mirror.NewStore(db)
	queue := opqueue.NewQueue(db)
	coordinator := sync.NewCoordinator(client, store, queue, cfg.SyncedRetention, nil)

	coordinator.Subscribe(func(state sync.State) {
		log.Printf("online=%t syncing=%t pending=%d lastSync=%d",
			state.IsOnline, state.IsSyncing, state.PendingOperationsCount, state.LastSyncTimestamp)
	})

	scheduler := sync.NewScheduler()
	if _, err := scheduler.ScheduleSync(cfg.SyncInterval, coordinator); err != nil {
		log.Fatalf("schedule sync: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	startCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	if err := coordinator.Sync(startCtx); err != nil {
		log.Printf("initial sync: %v", err)
	}
	cancel()

	log.Println("Sync agent started.")
	<-ctx.Done()
	log.Println("Shutdown complete.")
}
