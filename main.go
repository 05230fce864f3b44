package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"fileconverter/config"
	"fileconverter/convert"
	"fileconverter/jobs"
	"fileconverter/storage"
	"fileconverter/worker"
)

func main() {
	log.Println("Starting FileConverter engine...")

	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}
	cfg := config.Load()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	log.Println("Connected to Redis successfully")

	db, err := jobs.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database successfully")

	var blobs storage.Storage
	if cfg.StorageType == "s3" {
		blobs, err = storage.NewS3(cfg)
	} else {
		blobs, err = storage.NewLocal(cfg.TempDir)
	}
	if err != nil {
		log.Fatalf("Failed to initialize %s storage: %v", cfg.StorageType, err)
	}
	log.Printf("Initialized %s storage", cfg.StorageType)

	store := jobs.NewStore(redisClient, db, cfg.ResultExpiry)
	queue := worker.NewRedisQueue(redisClient, cfg.PendingQueue, cfg.ProcessingQueue, cfg.FailedQueue)
	dispatcher := convert.NewDispatcher(cfg, blobs)
	aggregator := worker.NewAggregator(blobs)
	pool := worker.NewPool(cfg, redisClient, queue, store, dispatcher, aggregator)
	retention := jobs.NewRetention(blobs, cfg.RetentionWindow, cfg.SweepInterval)

	var wg sync.WaitGroup
	runCtx, cancel := context.WithCancel(ctx)

	pool.Run(runCtx, &wg)

	wg.Add(1)
	go func() {
		defer wg.Done()
		pool.RecoveryLoop(runCtx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		pool.HeartbeatLoop(runCtx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		retention.Run(runCtx)
	}()

	log.Printf("Started %d conversion workers", cfg.WorkerCount)
	log.Printf("Listening on Redis queue: %s", cfg.PendingQueue)
	log.Printf("Gotenberg URL: %s", cfg.GotenbergURL)
	log.Println("Engine is ready to process conversions")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutdown signal received, stopping workers...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("All workers stopped gracefully")
	case <-time.After(30 * time.Second):
		log.Println("Shutdown timeout, forcing exit")
	}

	redisClient.Close()
	log.Println("Conversion engine stopped")
}
