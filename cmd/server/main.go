package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/comex-report/unificador/internal/api"
	"github.com/comex-report/unificador/internal/config"
	"github.com/comex-report/unificador/internal/history"
	"github.com/comex-report/unificador/internal/importer"
	"github.com/comex-report/unificador/internal/logging"
	"github.com/comex-report/unificador/internal/metrics"
	"github.com/comex-report/unificador/internal/models"
	"github.com/comex-report/unificador/internal/storage"
	"github.com/comex-report/unificador/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	// Load XML configuration
	configPath := filepath.Join(exeDir, config.FileName)
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Options{
		Level: cfg.Advanced.LogLevel,
		JSON:  cfg.Advanced.LogJSON,
	})

	if err := run(cfg, configPath, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.AppConfig, configPath string, logger zerolog.Logger) error {
	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	rules, err := importer.LoadRules(cfg.Processing.RulesFile)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	if cfg.Processing.RulesFile != "" {
		logger.Info().Str("file", cfg.Processing.RulesFile).Msg("custom rules loaded")
	}
	processor := importer.NewProcessor(nil, rules)

	fileStore, err := storage.NewLocalStore(cfg.GetReportsDir())
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	archive, err := history.Open(cfg.Storage.HistoryDatabase, history.Options{
		Threads:     cfg.Advanced.DuckDBThreads,
		MemoryLimit: cfg.Advanced.DuckDBMemoryLimit,
	}, logger.With().Str("component", "history").Logger())
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer archive.Close()

	restoreStoredReports(archive, fileStore, logger)

	var m *metrics.Metrics
	if cfg.Advanced.EnableMetrics {
		m = metrics.New(cfg.Advanced.RuntimeMetrics)
	}

	e := newServer(cfg, &api.Dependencies{
		Unifier: processor,
		Store:   fileStore,
		Archive: archive,
		Metrics: m,
		Logger:  logger,
		Version: Version,
	}, logger)

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(cfg, configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.StartServer(s)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newServer(cfg *config.AppConfig, deps *api.Dependencies, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.SetupMiddleware(e)

	// Configure middleware
	if cfg.Advanced.EnableRequestLogging {
		e.Use(logging.RequestLogger(logger))
	}

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error().Err(err).Bytes("stack", stack).Msg("panic recovered")
			return err
		},
	}))

	if deps.Metrics != nil {
		e.Use(deps.Metrics.Middleware())
	}

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout:      time.Duration(cfg.Server.RequestTimeout) * time.Second,
		ErrorMessage: "Request timeout - processing took too long",
		Skipper: func(c echo.Context) bool {
			return strings.HasSuffix(c.Request().URL.Path, "/download")
		},
	}))

	// Compression middleware; workbooks are already zip archives
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/unificar" || strings.HasSuffix(path, "/download")
		},
	}))

	// Body limit middleware
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// CORS configuration
	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:  origins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			ExposeHeaders: []string{echo.HeaderContentDisposition, api.HeaderReportID},
		}))
	}

	api.RegisterRoutes(e, api.NewHandlers(deps))

	if deps.Metrics != nil {
		e.GET("/metrics", deps.Metrics.Handler())
	}

	// Register embedded page
	if web.HasEmbeddedFiles() {
		if err := web.RegisterStaticRoutes(e); err != nil {
			logger.Warn().Err(err).Msg("failed to register static routes")
		}
	}

	return e
}

// restoreStoredReports makes workbooks saved by earlier runs downloadable again.
func restoreStoredReports(archive *history.Archive, store storage.Store, logger zerolog.Logger) {
	reports, err := archive.List(context.Background(), 0)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to list archived reports")
		return
	}

	restored := 0
	for _, r := range reports {
		if r.FileID == "" {
			continue
		}
		err := store.RegisterFile(&models.FileInfo{
			ID:         r.FileID,
			Name:       importer.OutputFilename,
			UploadedAt: r.CreatedAt,
			Status:     "generated",
		})
		if err != nil {
			logger.Debug().Err(err).Str("report", r.ID).Msg("stored workbook missing")
			continue
		}
		restored++
	}
	logger.Info().Int("reports", len(reports)).Int("workbooks", restored).Msg("history loaded")
}

func printBanner(cfg *config.AppConfig, configPath string) {
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Reporte COMEX - Unificador                      ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
	fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
}
