package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"promosms/internal/cache"
	"promosms/internal/config"
	"promosms/internal/constants"
	"promosms/internal/database"
	"promosms/internal/query"
	"promosms/internal/schema"
	"promosms/internal/service"
	"promosms/internal/tracing"
	"promosms/internal/translator"
	"promosms/pkg/gateway"
	"promosms/pkg/textgen"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("PromoSMS %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting PromoSMS")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			level = logrus.InfoLevel
		}
		logger.SetLevel(level)
	}

	tracingManager := tracing.NewManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	gatewayClient := gateway.NewClient(gateway.Config{
		URL:           cfg.Gateway.URL,
		SysID:         cfg.Gateway.SysID,
		SrcAddress:    cfg.Gateway.SrcAddress,
		DRFlag:        cfg.Gateway.DRFlag,
		FirstFailFlag: cfg.Gateway.FirstFailFlag,
		Timeout:       time.Duration(cfg.Gateway.TimeoutSec) * time.Second,
	}, nil, logger)

	// The AI key never lives in the config file.
	aiClient := textgen.NewClient(textgen.ClientConfig{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  os.Getenv("PROMOSMS_AI_API_KEY"),
		Model:   cfg.AI.Model,
		Timeout: time.Duration(cfg.AI.TimeoutSec) * time.Second,
	}, nil, logger)

	var translationCache cache.TranslationCache = cache.NewNoopCache()
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warnf("Redis unreachable, translation caching disabled: %v", err)
		} else {
			translationCache = cache.NewRedisCache(rdb,
				time.Duration(cfg.Redis.TTLHours)*time.Hour)
			logger.WithField("addr", cfg.Redis.Addr).Info("Translation cache enabled")
		}
	}

	catalog := schema.Default()
	queryTranslator := translator.New(catalog, aiClient, translationCache, cfg.Query.MaxRequestLength, logger)
	queryExecutor := query.NewExecutor(db.SQL(), catalog, cfg.Query.LimitCeiling, logger)
	submitter := service.NewSubmitter(db, cfg.SMS.MaxLength, logger)
	drafter := service.NewDrafter(aiClient, cfg.SMS.Brand, cfg.SMS.MaxLength, logger)

	dispatcher := service.NewDispatcher(db, gatewayClient, cfg.Dispatch, logger)
	dispatcherDone := make(chan struct{})
	go func() {
		dispatcher.Start(ctx)
		close(dispatcherDone)
	}()
	// Drain in-flight sends on every exit path, so no message is left
	// stuck in the sending state when the process stops.
	defer func() {
		dispatcher.Stop()
		<-dispatcherDone
	}()

	server := NewServer(cfg, db, submitter, drafter, queryTranslator, queryExecutor, logger)
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("Shutdown complete")
	return nil
}
