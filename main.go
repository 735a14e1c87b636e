// Package main provides the main entry point for the ICHRA enrollment service
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coverbridge/ichra-enrollment/app/handlers"
	"github.com/coverbridge/ichra-enrollment/app/router"
	businessflow "github.com/coverbridge/ichra-enrollment/business_flow"
	"github.com/coverbridge/ichra-enrollment/config"
	"github.com/coverbridge/ichra-enrollment/models"
	"github.com/coverbridge/ichra-enrollment/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting ICHRA enrollment service...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// buildRepositories wires the persistence gateway for the configured
// storage backend.
func buildRepositories(cfg *config.ProductionConfig) (
	repository.UserRepository,
	repository.BusinessRepository,
	repository.IchraPlanRepository,
	repository.EnrollmentRepository,
	repository.TxManager,
	error,
) {
	switch cfg.Storage.Backend {
	case config.StorageBackendMemory:
		log.Println("Using in-memory storage backend")
		store := repository.NewMemoryStore()
		return repository.NewMemoryUserRepository(store),
			repository.NewMemoryBusinessRepository(store),
			repository.NewMemoryIchraPlanRepository(store),
			repository.NewMemoryEnrollmentRepository(store),
			repository.NewMemoryTxManager(store),
			nil

	case config.StorageBackendPostgres:
		db, err := initializeDatabase(cfg.Database)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		if err := db.AutoMigrate(
			&models.User{},
			&models.Business{},
			&models.IchraPlan{},
			&models.Enrollment{},
		); err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
		return repository.NewUserRepository(db),
			repository.NewBusinessRepository(db),
			repository.NewIchraPlanRepository(db),
			repository.NewEnrollmentRepository(db),
			repository.NewGormTxManager(db),
			nil

	default:
		return nil, nil, nil, nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	userRepo, businessRepo, planRepo, enrollmentRepo, txManager, err := buildRepositories(cfg)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		cancel := startCacheHealthMonitor(context.Background(), rc, 30*time.Second)
		stopFuncs = append(stopFuncs, cancel)
	}

	// Seed the plan catalog before the API becomes reachable
	seedCtx, seedCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer seedCancel()
	if err := repository.SeedIchraPlans(seedCtx, planRepo); err != nil {
		return nil, fmt.Errorf("failed to seed plan catalog: %w", err)
	}

	// Initialize the enrollment flow
	enrollmentFlow := businessflow.NewEnrollmentFlow(
		userRepo,
		businessRepo,
		planRepo,
		enrollmentRepo,
		txManager,
		rc,
		cfg.Cache.DefaultTTL,
		cfg.Security.BcryptCost,
	)

	// Initialize handlers
	planHandler := handlers.NewPlanHandler(enrollmentFlow)
	enrollmentHandler := handlers.NewEnrollmentHandler(enrollmentFlow)

	// Initialize router
	appRouter := router.NewFiberRouter(cfg, planHandler, enrollmentHandler)

	fiberRouter := appRouter.(*router.FiberRouter)
	return &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}, nil
}
