package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/attribution/internal/api"
	"github.com/ignite/attribution/internal/attribution"
	"github.com/ignite/attribution/internal/classify"
	"github.com/ignite/attribution/internal/codes"
	"github.com/ignite/attribution/internal/config"
	"github.com/ignite/attribution/internal/leads"
	"github.com/ignite/attribution/internal/notify"
	"github.com/ignite/attribution/internal/repository/postgres"
	"github.com/ignite/attribution/internal/warehouse"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}

	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if err := checkPortAvailable(host, port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	if err := db.Ping(); err != nil {
		log.Fatalf("Database unreachable: %v", err)
	}
	log.Println("Connected to PostgreSQL")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	// The context store is the only linkage between collect and event. A
	// server without it would take collects whose events can never land.
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Redis unreachable: %v", err)
	}
	log.Printf("Connected to Redis at %s", cfg.Redis.Addr)

	node, err := snowflake.NewNode(nodeID())
	if err != nil {
		log.Fatalf("Failed to create id node: %v", err)
	}
	signer, err := attribution.NewSigner(cfg.Signing.Secret, cfg.Signing.MaxSkew())
	if err != nil {
		log.Fatalf("Failed to create signer: %v", err)
	}
	codec, err := codes.NewOpaqueCodec(cfg.Codes.Salt)
	if err != nil {
		log.Fatalf("Failed to create opaque codec: %v", err)
	}

	campaignRepo := postgres.NewCampaignRepo(db)
	pageviewRepo := postgres.NewPageviewRepo(db)
	eventRepo := postgres.NewEventRepo(db)
	leadRepo := postgres.NewLeadRepo(db)
	conversionRepo := postgres.NewConversionRepo(db)
	platformRepo := postgres.NewPlatformRepo(db)

	var sink attribution.PageviewSink
	if cfg.Snowflake.Account != "" {
		sf, err := warehouse.NewSnowflakeSink(cfg.Snowflake)
		if err != nil {
			log.Printf("Warning: Snowflake sink disabled: %v", err)
		} else {
			defer sf.Close()
			sink = sf
			log.Printf("Snowflake mirror enabled (database: %s.%s)", cfg.Snowflake.Database, cfg.Snowflake.Schema)
		}
	} else {
		log.Println("Snowflake mirror not configured")
	}

	var notifier notify.Notifier
	if cfg.SQS.QueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.SQS.Region))
		if err != nil {
			log.Printf("Warning: notifications disabled: %v", err)
		} else {
			notifier = notify.NewSQSNotifier(sqs.NewFromConfig(awsCfg), cfg.SQS.QueueURL)
			log.Println("SQS notifications enabled")
		}
	} else {
		log.Println("SQS notifications not configured")
	}

	store := attribution.NewRedisStore(redisClient, cfg.Context.KeyPrefix)
	collector := attribution.NewCollector(
		campaignRepo, pageviewRepo, store,
		signer, codec, node, classify.NewDeviceClassifier(), sink, nil,
		attribution.CollectorConfig{
			CampaignTTL: cfg.Context.CampaignTTL(),
			PageviewTTL: cfg.Context.PageviewTTL(),
		})
	recorder := attribution.NewRecorder(eventRepo, store, node, nil, cfg.Context.PageviewTTL())
	scripts := attribution.NewScriptRenderer(store, cfg.Script.BaseURL, "",
		time.Duration(cfg.Script.CacheTTLSeconds)*time.Second)
	ingestor := leads.NewIngestor(leadRepo, node, notifier, nil)
	converter := leads.NewConverter(conversionRepo, pageviewRepo, node, notifier, nil)

	handlers := api.NewHandlers(collector, recorder, scripts, ingestor, converter,
		campaignRepo, platformRepo, codec)
	router := api.SetupRoutes(handlers)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	db.Close()
	redisClient.Close()
	log.Println("Server stopped")
}

// nodeID picks the snowflake node from the environment so replicas never
// share an id space. Defaults to 1.
func nodeID() int64 {
	if v := os.Getenv("NODE_ID"); v != "" {
		var id int64
		if _, err := fmt.Sscanf(v, "%d", &id); err == nil {
			return id
		}
	}
	return 1
}
