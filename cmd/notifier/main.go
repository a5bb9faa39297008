package main

import (
	"context"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hackgods/booking-lifecycle/internal/bootstrap"
	"github.com/hackgods/booking-lifecycle/internal/config"
	"github.com/hackgods/booking-lifecycle/internal/notify"
	redisclient "github.com/hackgods/booking-lifecycle/internal/redis"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("notifier starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if !cfg.RedisEnabled() {
		log.Fatal("notifier needs REDIS_URL or REDIS_ADDR")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := bootstrap.OpenStore(rootCtx, cfg)
	if err != nil {
		log.Fatalf("store connection error: %v", err)
	}
	defer store.Close()

	rdb, err := bootstrap.OpenRedis(rootCtx, cfg)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer bootstrap.CloseRedis(rdb)

	queue := redisclient.NewQueue(rdb, cfg.NotifyQueue)
	dispatcher := notify.NewDispatcher(store.Repo, bootstrap.NewMailer(cfg), cfg.Location)

	workers := max(cfg.NotifyWorkers, 1)
	log.Printf("consuming queue=%s workers=%d", cfg.NotifyQueue, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			notify.NewWorker(queue, dispatcher).Run(rootCtx)
		}()
	}

	<-rootCtx.Done()
	log.Println("shutdown signal received, waiting for workers")
	wg.Wait()
	log.Println("notifier stopped")
}
