package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"thetaflow/bulk"
	"thetaflow/config"
	"thetaflow/logger"
	"thetaflow/pipeline"
	"thetaflow/realtime"
	"thetaflow/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	mode := flag.String("mode", "bulk", "Run mode: bulk, realtime, pipeline or repair")
	dateFlag := flag.String("date", "", "Date for pipeline mode (YYYY-MM-DD, default today)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Thetaflow.Name,
		"version": cfg.Thetaflow.Version,
		"mode":    *mode,
	}).Info("starting thetaflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}
	if cfg.Storage.S3.Enabled {
		logger.InitCloudWatch(cfg.Storage.S3.Region, "Thetaflow", cfg.Logging.DashboardName)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
		cancel()
	}()

	w, err := writer.New(cfg)
	if err != nil {
		log.WithError(err).Error("Failed to initialize writer")
		os.Exit(1)
	}

	var exitCode int
	switch strings.ToLower(*mode) {
	case "bulk":
		exitCode = runBulk(ctx, cfg, w, log)
	case "realtime":
		exitCode = runRealtime(ctx, cfg, w, log)
	case "pipeline":
		exitCode = runPipeline(ctx, cfg, w, log, *dateFlag)
	case "repair":
		exitCode = runRepair(cfg, w, log)
	default:
		log.WithFields(logger.Fields{"mode": *mode}).Error("unknown mode")
		exitCode = 2
	}

	log.WithFields(logger.Fields{"exit_code": exitCode}).Info("thetaflow stopped")
	os.Exit(exitCode)
}

func runBulk(ctx context.Context, cfg *config.Config, w *writer.Writer, log *logger.Log) int {
	if len(cfg.Bulk.Symbols) == 0 {
		log.Error("bulk mode requires bulk.symbols in configuration")
		return 2
	}

	summary, err := bulk.New(cfg, w).Run(ctx)
	if err != nil && err != context.Canceled {
		log.WithError(err).Error("bulk run failed")
		return 1
	}
	if summary != nil && summary.Errors > 0 {
		return 1
	}
	return 0
}

func runRealtime(ctx context.Context, cfg *config.Config, w *writer.Writer, log *logger.Log) int {
	if len(cfg.Realtime.Symbols) == 0 {
		log.Error("realtime mode requires realtime.symbols in configuration")
		return 2
	}

	feed, err := realtime.New(cfg, w)
	if err != nil {
		log.WithError(err).Error("failed to start realtime feed")
		return 1
	}
	if err := feed.Run(ctx); err != nil && err != context.Canceled {
		log.WithError(err).Error("realtime feed failed")
		return 1
	}
	return 0
}

func runPipeline(ctx context.Context, cfg *config.Config, w *writer.Writer, log *logger.Log, dateFlag string) int {
	symbols := cfg.Bulk.Symbols
	if len(symbols) == 0 {
		symbols = cfg.Realtime.Symbols
	}
	if len(symbols) == 0 {
		log.Error("pipeline mode requires symbols in configuration")
		return 2
	}

	day := time.Now().UTC()
	if dateFlag != "" {
		var err error
		day, err = time.Parse("2006-01-02", dateFlag)
		if err != nil {
			log.WithError(err).Error("invalid -date, expected YYYY-MM-DD")
			return 2
		}
	}

	p, err := pipeline.New(cfg, w)
	if err != nil {
		log.WithError(err).Error("failed to start pipeline")
		return 1
	}
	defer p.Close()

	if failures := p.RunFull(ctx, day, symbols); failures > 0 {
		return 1
	}
	return 0
}

func runRepair(cfg *config.Config, w *writer.Writer, log *logger.Log) int {
	total := 0
	for _, root := range []string{cfg.Writer.OptionRoot, cfg.Writer.UnderlyingRoot} {
		if root == "" {
			continue
		}
		if _, err := os.Stat(root); os.IsNotExist(err) {
			continue
		}
		n, err := w.RepairTree(root)
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{"root": root}).Error("tree repair failed")
			return 1
		}
		total += n
	}
	fmt.Printf("repaired %d files\n", total)
	return 0
}
