package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/warmup-engine/internal/api"
	"github.com/ignite/warmup-engine/internal/config"
	"github.com/ignite/warmup-engine/internal/repository/postgres"
	"github.com/ignite/warmup-engine/internal/transport"
	"github.com/ignite/warmup-engine/internal/warmup"
	"github.com/ignite/warmup-engine/internal/worker"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	log.Println("Starting Warmup Engine...")

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Database connection
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.Lifetime())

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database")

	// Redis (optional)
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Invalid Redis URL: %v", err)
		}
		redisClient = redis.NewClient(opt)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Fatalf("Failed to ping Redis: %v", err)
		}
		defer redisClient.Close()
		log.Println("Connected to Redis")
	} else {
		log.Println("Redis disabled: interaction simulation off, quota unlimited, advisory locks in use")
	}

	// Repositories
	planRepo := postgres.NewPlanRepo(db)
	jobRepo := postgres.NewJobRepo(db)
	emailRepo := postgres.NewEmailRepo(db)
	activityRepo := postgres.NewActivityRepo(db)
	recipientRepo := postgres.NewRecipientRepo(db)
	notifier := postgres.NewNotifier(db)

	// Services
	planSvc := warmup.NewPlanService(planRepo, activityRepo, notifier)

	generator := warmup.NewGenerator(planRepo, jobRepo, emailRepo, recipientRepo)
	generator.WindowStartHour = cfg.Warmup.WindowStartHour
	generator.WindowEndHour = cfg.Warmup.WindowEndHour
	generator.SenderName = cfg.Warmup.SenderName

	var (
		simulator *warmup.Simulator
		quota     warmup.QuotaChecker = warmup.UnlimitedQuota{}
	)
	if redisClient != nil {
		simulator = warmup.NewSimulator(redisClient, jobRepo, emailRepo)
		quota = warmup.NewRedisQuota(redisClient, int(cfg.Quota.HourlyLimit), int(cfg.Quota.DailyLimit))
	}

	var sender warmup.Sender
	if apiKey := os.Getenv("SPARKPOST_API_KEY"); apiKey != "" {
		fromEmail := os.Getenv("WARMUP_FROM_EMAIL")
		if fromEmail == "" {
			fromEmail = "hello@localhost"
		}
		sender = transport.NewSparkPostSender(apiKey, fromEmail, cfg.Warmup.SenderName)
		log.Println("Using SparkPost sender")
	} else {
		sender = transport.NewSimulatedSender()
		log.Println("No SPARKPOST_API_KEY set, using simulated sender")
	}

	executor := warmup.NewExecutor(planRepo, jobRepo, emailRepo, quota, sender, simulator, planSvc)
	executor.WindowStartHour = cfg.Warmup.WindowStartHour
	executor.WindowEndHour = cfg.Warmup.WindowEndHour

	monitor := warmup.NewMonitor(planRepo, jobRepo, planSvc)

	// Background runner
	runner := worker.NewWarmupRunner(db, redisClient, planSvc, generator, executor, simulator, monitor)
	runner.ScheduleInterval = cfg.Warmup.ScheduleInterval()
	runner.ExecuteInterval = cfg.Warmup.ExecuteInterval()
	runner.SweepInterval = cfg.Warmup.SweepInterval()
	runner.MonitorInterval = cfg.Warmup.MonitorInterval()
	if err := runner.Start(); err != nil {
		log.Fatalf("Failed to start runner: %v", err)
	}

	// HTTP server
	warmupSvc := api.NewWarmupService(planSvc, generator, executor, planRepo, jobRepo, activityRepo)
	router := api.SetupRoutes(warmupSvc)

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	runner.Stop()
	log.Println("Warmup Engine stopped")
}
