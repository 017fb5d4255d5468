package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	cartservice "github.com/fernandoirangph/pms-i/internal/cart"
	"github.com/fernandoirangph/pms-i/internal/cart/cache"
	cartrepo "github.com/fernandoirangph/pms-i/internal/cart/repository"
	"github.com/fernandoirangph/pms-i/internal/outbox"
	planningrepo "github.com/fernandoirangph/pms-i/internal/planning/repository"
	"github.com/fernandoirangph/pms-i/internal/product/store"
	"github.com/fernandoirangph/pms-i/internal/reconciler"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Configuration
	planningDBPath := getEnv("PLANNING_DB_PATH", "planning.db")
	planningMigrations := getEnv("PLANNING_MIGRATIONS_PATH", "internal/planning/repository/migrations")
	catalogDBPath := getEnv("CATALOG_DB_PATH", "catalog.db")
	catalogMigrations := getEnv("CATALOG_MIGRATIONS_PATH", "internal/product/store/migrations")
	mongoURI := getEnv("MONGO_URI", "mongodb://localhost:27017")
	mongoDBName := getEnv("MONGO_DB_NAME", "cartdb")
	outboxMigrations := getEnv("OUTBOX_MIGRATIONS_PATH", "internal/outbox/migrations")
	kafkaBrokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	sweepInterval := getEnvDuration("STATUS_SWEEP_INTERVAL", time.Minute)
	pruneInterval := getEnvDuration("CART_PRUNE_INTERVAL", time.Hour)
	pruneMaxAge := getEnvDuration("CART_PRUNE_MAX_AGE", 7*24*time.Hour)

	ctx := context.Background()

	// Planning and budget share one sqlite database.
	planningDB, err := planningrepo.NewRepository(planningDBPath)
	if err != nil {
		log.Fatalf("Failed to open planning database: %v", err)
	}
	defer planningDB.Close()
	if err := planningDB.RunMigrations(planningMigrations); err != nil {
		log.Fatalf("Failed to migrate planning database: %v", err)
	}

	// Product catalog.
	catalog, err := store.NewSQLiteStore(catalogDBPath)
	if err != nil {
		log.Fatalf("Failed to open catalog database: %v", err)
	}
	defer catalog.Close()
	if err := catalog.RunMigrations(catalogMigrations); err != nil {
		log.Fatalf("Failed to migrate catalog database: %v", err)
	}

	// Cart store.
	mongoDB, err := cartrepo.ConnectMongoDB(ctx, mongoURI, mongoDBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	if err := cartrepo.EnsureIndexes(ctx, mongoDB); err != nil {
		log.Fatalf("Failed to create cart indexes: %v", err)
	}
	repo := cartrepo.NewMongoRepository(mongoDB)
	log.Printf("Connected to MongoDB at %s", mongoURI)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	log.Printf("Redis ping succeeded")

	// Checkout event outbox.
	creds := &outbox.Credentials{
		Host:              getEnv("POSTGRES_HOST", "localhost"),
		Port:              getEnvInt("POSTGRES_PORT", 5432),
		User:              getEnv("POSTGRES_USER", "postgres"),
		Password:          getEnv("POSTGRES_PASSWORD", "postgres"),
		DBName:            getEnv("POSTGRES_DB", "outbox"),
		MigrationsDirPath: outboxMigrations,
	}
	outboxRepo, err := outbox.NewRepository(creds)
	if err != nil {
		log.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer outboxRepo.Close()
	if err := outboxRepo.RunMigrations(creds); err != nil {
		log.Fatalf("Failed to migrate outbox database: %v", err)
	}
	log.Printf("Connected to postgres at %s:%d", creds.Host, creds.Port)

	cartCache := cache.NewRedisCache(redisClient)
	recorder := outbox.NewRecorder(outboxRepo)
	carts := cartservice.NewService(repo, cartCache, catalog, recorder)

	jobCtx, cancelJobs := context.WithCancel(ctx)

	poller := outbox.NewPoller(outboxRepo, kafkaBrokers...)
	go poller.Run(jobCtx)
	log.Printf("Outbox poller publishing to %v", kafkaBrokers)

	go runCartPruner(jobCtx, carts, pruneInterval, pruneMaxAge)
	log.Printf("Abandoned-cart pruner running every %s (max age %s)", pruneInterval, pruneMaxAge)

	sweeper := reconciler.New(planningDB)
	if err := sweeper.Start(jobCtx, sweepInterval); err != nil {
		log.Fatalf("Failed to start status sweep: %v", err)
	}
	log.Printf("Status sweep running every %s", sweepInterval)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancelJobs()
	if err := poller.Close(); err != nil {
		log.Printf("Failed to close kafka writer: %v", err)
	}
	sweeper.Stop()
	mongoDB.Client().Disconnect(ctx)
	log.Println("Worker stopped")
}

func runCartPruner(ctx context.Context, carts *cartservice.Service, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			pruned, err := carts.PruneAbandonedCarts(ctx, time.Now().Add(-maxAge))
			if err != nil {
				log.Printf("abandoned-cart prune failed: %v", err)
				continue
			}
			if pruned > 0 {
				log.Printf("pruned %d abandoned carts", pruned)
			}
		case <-ctx.Done():
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
