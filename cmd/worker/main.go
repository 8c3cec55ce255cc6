package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/crm-engine/internal/config"
	"github.com/ignite/crm-engine/internal/ingest"
	"github.com/ignite/crm-engine/internal/pkg/distlock"
	"github.com/ignite/crm-engine/internal/pkg/logger"
	"github.com/ignite/crm-engine/internal/queue"
	"github.com/ignite/crm-engine/internal/receipt"
	"github.com/ignite/crm-engine/internal/repository/postgres"

	_ "github.com/lib/pq"
)

func main() {
	log.Println("Starting CRM engine worker...")

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

	// One worker instance at a time: processing-list recovery below is only
	// safe when no other instance is mid-claim.
	lock := distlock.New(rdb, "crm-worker", 30*time.Second)
	if ok, err := lock.Acquire(context.Background()); err != nil {
		log.Fatalf("Failed to acquire worker lock: %v", err)
	} else if !ok {
		log.Fatal("Another worker instance holds the lock, exiting")
	}
	defer lock.Release(context.Background())

	customerQueue := queue.New(rdb, queue.CustomerIngestQueue)
	orderQueue := queue.New(rdb, queue.OrderIngestQueue)
	receiptsQueue := queue.New(rdb, queue.DeliveryReceiptsQueue)

	// Reclaim anything a previous instance claimed but never settled.
	for _, q := range []*queue.Queue{customerQueue, orderQueue, receiptsQueue} {
		n, err := q.RecoverPending(context.Background())
		if err != nil {
			log.Fatalf("Failed to recover %s: %v", q.Name(), err)
		}
		if n > 0 {
			log.Printf("Recovered %d pending messages on %s", n, q.Name())
		}
	}

	customerRepo := postgres.NewCustomerRepo(db)
	customerLoop := ingest.NewLoop(customerQueue, ingest.NewCustomerConsumer(customerRepo), "CustomerIngest")
	orderLoop := ingest.NewLoop(orderQueue, ingest.NewOrderConsumer(customerRepo), "OrderIngest")

	acc := receipt.NewAccumulator(cfg.Receipts.BatchSize, time.Duration(cfg.Receipts.FlushIntervalMS)*time.Millisecond)
	receiptConsumer := receipt.NewConsumer(
		receiptsQueue,
		postgres.NewReceiptRepo(db),
		acc,
		receipt.ParseAckPolicy(cfg.Receipts.AckPolicy),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go lock.KeepAlive(ctx)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := customerLoop.Run(ctx); err != nil {
			log.Printf("Customer consumer stopped: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := orderLoop.Run(ctx); err != nil {
			log.Printf("Order consumer stopped: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		// Run flushes any partial receipt batch before returning.
		if err := receiptConsumer.Run(ctx); err != nil {
			log.Printf("Receipt consumer stopped: %v", err)
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done
	log.Println("Shutting down...")

	cancel()
	wg.Wait()
	log.Println("Worker stopped")
}
