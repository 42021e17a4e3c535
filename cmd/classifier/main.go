package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/attribution/internal/classify"
	"github.com/ignite/attribution/internal/config"
	"github.com/ignite/attribution/internal/pkg/httpretry"
	"github.com/ignite/attribution/internal/repository/postgres"
	"github.com/ignite/attribution/internal/warehouse"
	"github.com/ignite/attribution/internal/worker"

	_ "github.com/lib/pq"
)

func main() {
	log.Println("Starting IP classification worker...")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(ctx); err != nil {
		cancel()
		log.Fatalf("Failed to ping database: %v", err)
	}
	cancel()
	log.Println("Connected to database")

	// Redis is optional here: without it the batch lock falls back to a
	// Postgres advisory lock.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("Warning: Redis unreachable, using Postgres advisory lock: %v", err)
			redisClient = nil
		}
	}

	reputation := classify.NewHTTPReputationClient(
		cfg.Reputation.BaseURL,
		cfg.Reputation.APIKey,
		httpretry.NewRetryClient(nil, 3),
	)
	classifier := classify.NewIPClassifier(
		postgres.NewClassificationRepo(db),
		reputation,
		net.DefaultResolver,
		time.Duration(cfg.Reputation.TimeoutSeconds)*time.Second,
	)

	var mirror worker.ClassificationMirror
	if cfg.Snowflake.Account != "" {
		sf, err := warehouse.NewSnowflakeSink(cfg.Snowflake)
		if err != nil {
			log.Printf("Warning: Snowflake mirror disabled: %v", err)
		} else {
			defer sf.Close()
			mirror = sf
			log.Println("Snowflake mirror enabled")
		}
	}

	w := worker.NewIPClassifierWorker(postgres.NewPageviewRepo(db), classifier, mirror, redisClient, db)
	if secs := cfg.Classifier.PollIntervalSeconds; secs > 0 {
		w.SetPollInterval(time.Duration(secs) * time.Second)
	}
	if err := w.Start(); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down classifier...")
	w.Stop()
	log.Println("Classifier stopped")
}
