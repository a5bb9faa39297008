package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/booking-lifecycle/internal/api"
	"github.com/hackgods/booking-lifecycle/internal/appointment"
	"github.com/hackgods/booking-lifecycle/internal/bootstrap"
	"github.com/hackgods/booking-lifecycle/internal/config"
	"github.com/hackgods/booking-lifecycle/internal/notify"
	redisclient "github.com/hackgods/booking-lifecycle/internal/redis"
)

var version = "dev"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s store=%s tz=%s", cfg.Env, cfg.HTTPPort, cfg.StoreDriver, cfg.Timezone)

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

	checks := []api.HealthCheck{{Name: store.Driver, Critical: true, Ping: store.Ping}}

	var (
		locker  redisclient.Locker
		emitter appointment.Emitter
	)
	if rdb != nil {
		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
		emitter = notify.NewQueueEmitter(redisclient.NewQueue(rdb, cfg.NotifyQueue))
		checks = append(checks, api.HealthCheck{Name: "redis", Ping: redisclient.Ping(rdb)})
		log.Printf("events go to redis queue=%s", cfg.NotifyQueue)
	} else {
		dispatcher := notify.NewDispatcher(store.Repo, bootstrap.NewMailer(cfg), cfg.Location)
		async := notify.NewAsyncEmitter(dispatcher, cfg.NotifyWorkers, 256)
		defer async.Close()
		emitter = async
		log.Printf("events dispatched in-process workers=%d", cfg.NotifyWorkers)
	}

	svc := appointment.NewService(store.Repo, locker, emitter, cfg)

	var limiter *api.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = api.NewRateLimiter(rootCtx, cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	router := api.NewRouter(api.RouterConfig{
		Service:     svc,
		Checks:      checks,
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
		RateLimiter: limiter,
		Env:         cfg.Env,
		Version:     version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-errCh:
		if err != nil {
			log.Printf("http server error: %v", err)
		}
	}

	log.Println("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
