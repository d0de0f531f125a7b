// cmd/pipeline/main.go
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/edulake/pipeline/pkg/audit"
	"github.com/edulake/pipeline/pkg/config"
	"github.com/edulake/pipeline/pkg/dq"
	"github.com/edulake/pipeline/pkg/gate"
	"github.com/edulake/pipeline/pkg/gold"
	"github.com/edulake/pipeline/pkg/pipeline"
	"github.com/edulake/pipeline/pkg/quarantine"
	"github.com/edulake/pipeline/pkg/reader"
	"github.com/edulake/pipeline/pkg/registry"
	"github.com/edulake/pipeline/pkg/silver"
	"github.com/edulake/pipeline/pkg/store"
)

func main() {
	// .env is optional; environment variables win.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Error("Pipeline run failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if err := cfg.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create data directories: %w", err)
	}

	st, err := store.NewDuckDBStore(cfg.StorePath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	ledger, err := audit.NewLedger(st.DB(), logger)
	if err != nil {
		return err
	}

	metrics, err := audit.NewMetricsLedger(st.DB(), logger)
	if err != nil {
		return err
	}

	engine, err := dq.NewEngine(logger)
	if err != nil {
		return err
	}

	qw, err := quarantine.NewWriter(st, cfg.QuarantineDir, logger)
	if err != nil {
		return err
	}

	reg := registry.Default()

	silverStage, err := silver.NewStage(reg, engine, st, qw, metrics, cfg.SilverDir, cfg.WorkerPoolSize, logger)
	if err != nil {
		return err
	}

	gateStage, err := gate.NewStage(reg, engine, st, qw, metrics, cfg.SilverDir, cfg.GoldDir, cfg.GateBlocking, logger)
	if err != nil {
		return err
	}

	goldBuilder, err := gold.NewBuilder(reg, st, cfg.SilverDir, cfg.GoldDir, logger)
	if err != nil {
		return err
	}

	rd, err := reader.NewExcelReader(logger)
	if err != nil {
		return err
	}

	coordinator, err := pipeline.NewCoordinator(cfg, rd, ledger, silverStage, gateStage, goldBuilder, logger)
	if err != nil {
		return err
	}

	result, err := coordinator.Run(context.Background())
	if err != nil {
		return err
	}

	logger.Info("Run completed",
		zap.String("runID", result.RunID),
		zap.Int64("totalRows", result.TotalRows),
		zap.Int64("totalQuarantined", result.TotalQuarantined))
	return nil
}

// buildLogger constructs the process logger from configuration.
func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.LogFormat == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
