package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/crm-engine/internal/api"
	"github.com/ignite/crm-engine/internal/config"
	"github.com/ignite/crm-engine/internal/delivery"
	"github.com/ignite/crm-engine/internal/ingest"
	"github.com/ignite/crm-engine/internal/pkg/logger"
	"github.com/ignite/crm-engine/internal/queue"
	"github.com/ignite/crm-engine/internal/repository/postgres"
	"github.com/ignite/crm-engine/internal/service/campaign"

	_ "github.com/lib/pq"
)

func main() {
	log.Println("Starting CRM engine API server...")

	cfg, err := config.LoadFromEnv("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	if cfg.Logging.RedactPII != nil {
		logger.SetRedactPII(*cfg.Logging.RedactPII)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database")

	// The server owns its own broker connection; the worker opens another.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to ping redis: %v", err)
	}
	log.Println("Connected to redis")

	receiptsQueue := queue.New(rdb, queue.DeliveryReceiptsQueue)
	customerQueue := queue.New(rdb, queue.CustomerIngestQueue)
	orderQueue := queue.New(rdb, queue.OrderIngestQueue)

	vendor := delivery.NewSimulatedVendor(cfg.Delivery.VendorSuccessRate, time.Now().UnixNano())
	orchestrator := delivery.NewOrchestrator(
		postgres.NewDeliveryRepo(db),
		receiptsQueue,
		vendor,
		delivery.NewTemplateService(),
		cfg.Delivery.InsertBatchSize,
	)

	svc := campaign.NewService(postgres.NewCampaignRepo(db), orchestrator)
	gateway := ingest.NewGateway(customerQueue, orderQueue)

	router := api.NewRouter(api.NewHandlers(svc, gateway), cfg.Server.CORSOrigins)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("Listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
