package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"webpptx/internal/api"
	"webpptx/internal/config"
	"webpptx/internal/mirror"
	"webpptx/internal/queue"
	"webpptx/internal/ratelimit"
	"webpptx/internal/store"
	"webpptx/internal/telemetry"
	workerproc "webpptx/internal/worker"
)

func main() {
	cfg := config.Load()
	if cfg.APIKey == "" {
		log.Fatal("API_KEY must be set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	st := store.New()
	q := queue.NewRedisQueue(cfg)

	redisLimiter := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	limiter := ratelimit.NewTokenBucket(redisLimiter, cfg.RateLimitCapacity, cfg.RateLimitRefill, time.Hour)

	processor := workerproc.NewProcessor(cfg, q, st)
	processor.RegisterHandler("metadata", workerproc.NewMetadataHandler().Handle)
	processor.RegisterHandler("animation", workerproc.NewAnimationHandler().Handle)

	if m, err := mirror.New(ctx, cfg); err != nil {
		log.Fatalf("init result mirror: %v", err)
	} else if m != nil {
		processor.SetMirror(m)
		log.Printf("mirroring result archives to s3://%s", cfg.S3Bucket)
	}

	go func() {
		log.Printf("worker pool started: %d workers, poll=%s", cfg.WorkerCount, cfg.WorkerPollInterval)
		if err := processor.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("worker pool stopped: %v", err)
		}
	}()

	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, telemetry.Handler()); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	server := api.New(cfg, st, q, limiter)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	log.Printf("api listening on :%s (temp dir %s)", cfg.HTTPPort, cfg.TempDir)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)
}
