package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/pflag"

	"pagespeed-tracker/internal/config"
	"pagespeed-tracker/internal/domain"
	"pagespeed-tracker/internal/repository"
	"pagespeed-tracker/internal/router"
	"pagespeed-tracker/internal/util"
)

var version = "dev" // Set by -ldflags during build

func LoggerInitialize(cfg config.LogConfig) (*util.MetricsLogger, error) {

	level, err := util.ParseLogLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	metricsLogger := &util.MetricsLogger{}
	if err := metricsLogger.Init(util.LoggerOptions{
		Folder:     cfg.Dir,
		FileName:   cfg.File,
		Level:      level,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		Stderr:     cfg.Stderr,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	metricsLogger.LogEvent(util.LOG_LEVEL_INFO, "Service started, version", version)

	currentTime := time.Now().Format(time.RFC3339)

	fmt.Fprintf(os.Stderr, "\n%s: PageSpeed tracker started \n", currentTime)

	return metricsLogger, nil
}

func main() {
	var (
		configPath  string
		addr        string
		dbPath      string
		staticDir   string
		showVersion bool
	)

	pflag.StringVarP(&configPath, "config", "c", "", "Path to YAML config file (default $"+config.EnvConfigPath+")")
	pflag.StringVar(&addr, "addr", "", "Listen address, e.g. :8080")
	pflag.StringVar(&dbPath, "db", "", "Path to the SQLite database")
	pflag.StringVar(&staticDir, "static", "", "Directory served at / (front-end)")
	pflag.BoolVarP(&showVersion, "version", "V", false, "Show version and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("pagespeed-tracker version %s\n", version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if staticDir != "" {
		cfg.Server.StaticDir = staticDir
	}

	logger, err := LoggerInitialize(cfg.Log)
	if err != nil {
		log.Fatalf("Error while initializing the logger: %v", err)
	}
	defer logger.DeInit()

	var metricStore domain.MetricStore = repository.NewSQLiteStore(cfg.Database.Path,
		repository.WithBusyTimeout(cfg.Database.BusyTimeout))

	if err := metricStore.Init(); err != nil {
		logger.LogEvent(util.LOG_LEVEL_ERROR, "Failed to initialize metric store:", err)
		logger.DeInit()
		log.Fatalf("Failed to initialize metric store: %v", err)
	}
	defer metricStore.Close()

	handler := router.NewHandler(metricStore, logger, router.Options{
		StaticDir:    cfg.Server.StaticDir,
		CORSOrigins:  cfg.Server.CORSOrigins,
		DefaultLimit: cfg.Server.DefaultLimit,
	})

	if err := router.Run(cfg.Server.Addr, handler); err != nil {
		logger.LogEvent(util.LOG_LEVEL_ERROR, "Server stopped with error:", err)
		log.Printf("Server error: %v", err)
	}
}
