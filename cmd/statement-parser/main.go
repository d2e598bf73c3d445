package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/statement-parser/client/internal/api"
	"github.com/statement-parser/client/internal/config"
	"github.com/statement-parser/client/internal/extraction"
	"github.com/statement-parser/client/internal/logger"
	"github.com/statement-parser/client/internal/session"
	"github.com/statement-parser/client/internal/storage"
	"github.com/statement-parser/client/internal/web"
	"go.uber.org/zap"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file (default: statement-parser.yaml next to the binary)")
	flag.Parse()

	if *configPath == "" {
		// Get the executable's directory for config resolution
		exePath, err := os.Executable()
		if err != nil {
			fmt.Printf("Failed to get executable path: %v\n", err)
			os.Exit(1)
		}
		*configPath = filepath.Join(filepath.Dir(exePath), "statement-parser.yaml")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Get()

	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatal("failed to create directories", zap.Error(err))
	}

	store, err := storage.NewLocalStore(cfg.GetStagingDir())
	if err != nil {
		log.Fatal("failed to initialize staging store", zap.Error(err))
	}

	client, err := extraction.NewClient(extraction.Config{
		BaseURL: cfg.Extraction.BaseURL,
		Timeout: cfg.ExtractionTimeout(),
	}, log.Named("extraction"))
	if err != nil {
		log.Fatal("invalid extraction service configuration", zap.Error(err))
	}

	controller := session.NewController(client, log.Named("controller"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start background cleanup of staged uploads
	go func() {
		interval := cfg.CleanupInterval()
		if interval <= 0 {
			return
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				removed, err := store.CleanupOld(cfg.StagedFileMaxAge())
				if err != nil {
					log.Warn("staging cleanup failed", zap.Error(err))
				}
				if removed > 0 {
					log.Info("staging cleanup", zap.Int("removed", removed))
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.SetupMiddleware(e, api.MiddlewareConfig{
		Logger:         log.Named("http"),
		RequestLogging: cfg.Server.EnableRequestLogging,
		BodyLimit:      cfg.Server.BodyLimit,
		EnableCORS:     cfg.Server.EnableCORS,
		AllowOrigins:   cfg.Server.AllowOrigins,
		RequestTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
	})

	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Controller:         controller,
		Store:              store,
		Logger:             log.Named("api"),
		Version:            Version,
		ExtractionEndpoint: client.Endpoint(),
	}))

	// Register embedded frontend if available
	embeddedMode := web.HasEmbeddedFiles()
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			log.Warn("failed to register static routes", zap.Error(err))
			embeddedMode = false
		}
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(*configPath, cfg, client.Endpoint(), embeddedMode)

	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", zap.Error(err))
	}
	// Let an in-flight extraction finish so its outcome is logged.
	if err := controller.Wait(shutdownCtx); err != nil {
		log.Warn("extraction still in flight at exit", zap.Error(err))
	}
}

func printBanner(configPath string, cfg *config.AppConfig, endpoint string, embedded bool) {
	mode := "API only"
	if embedded {
		mode = "Embedded UI"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Credit Card Statement Parser                    ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Mode:       %-45s║\n", mode)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Extractor: %-46s║\n", endpoint)
	fmt.Printf("║  Staging:   %-46s║\n", cfg.GetStagingDir())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	if embedded {
		fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
	}
}
