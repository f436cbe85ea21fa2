package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/toolgate/internal/config"
	"github.com/harun/toolgate/internal/logger"
	"github.com/harun/toolgate/internal/metrics"
	"github.com/harun/toolgate/internal/tracing"
	"github.com/harun/toolgate/pkg/catalog"
	"github.com/harun/toolgate/pkg/fileoutput"
	"github.com/harun/toolgate/pkg/toolexecutor"
)

// app is the dispatcher and its collaborators assembled from configuration
type app struct {
	cfg      *config.Config
	logger   *logger.Logger
	metrics  *metrics.Metrics
	registry *toolexecutor.Registry
	signer   *toolexecutor.InternalTokenSigner
	files    *fileoutput.Processor
	executor *toolexecutor.ToolExecutor
}

// loadConfig reads the config file and applies command line overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if rootCmd.PersistentFlags().Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newApp wires config, logging, tracing, metrics, the catalog, file outputs
// and the executor together.
func newApp(cfg *config.Config) (_ *app, err error) {
	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	defer func() {
		if err != nil {
			_ = log.Close()
		}
	}()

	a := &app{cfg: cfg, logger: log}

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(cfg.Tracing.ServiceName, cfg.Tracing.SampleRatio); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing")
		}
	}

	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewMetrics()
	}

	catalogLoader := catalog.NewLoader(log.Component("catalog"))
	a.registry = toolexecutor.NewRegistry(catalogLoader.DescriptorLoader(cfg.Catalog.Path), log.GetZerolog())
	if err := a.registry.LoadError(); err != nil {
		return nil, fmt.Errorf("failed to load tool catalog: %w", err)
	}

	if cfg.Dispatcher.ServerMode() {
		a.signer, err = toolexecutor.NewInternalTokenSigner(cfg.Dispatcher.InternalSecret, "toolgate", cfg.Dispatcher.TokenTTL())
		if err != nil {
			return nil, fmt.Errorf("failed to create internal token signer: %w", err)
		}
	}

	var fileOutputs toolexecutor.FileOutputProcessor
	if cfg.Files.Enabled {
		a.files, err = fileoutput.NewProcessor(fileoutput.Config{
			Dir:           cfg.Files.Dir,
			PublicBaseURL: cfg.Files.PublicBaseURL,
			Logger:        log.GetZerolog(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create file output processor: %w", err)
		}
		fileOutputs = a.files
	}

	execCfg := toolexecutor.Config{
		BaseURL:         cfg.Dispatcher.BaseURL,
		InternalPrefix:  cfg.Dispatcher.InternalPrefix,
		Registry:        a.registry,
		CustomToolCache: toolexecutor.NewCustomToolCache(),
		Signer:          a.signer,
		FileOutputs:     fileOutputs,
		Logger:          log.GetZerolog(),
	}
	if a.metrics != nil {
		execCfg.Metrics = a.metrics
	}

	a.executor, err = toolexecutor.New(execCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool executor: %w", err)
	}

	return a, nil
}

// Close flushes tracing and closes the log file
func (a *app) Close() {
	if a.cfg.Tracing.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to shut down tracing")
		}
	}
	_ = a.logger.Close()
}
