package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/face-vector/internal/config"
	"github.com/kozaktomas/face-vector/internal/embedding"
	"github.com/kozaktomas/face-vector/internal/face/cascade"
	"github.com/kozaktomas/face-vector/internal/handler"
	"github.com/kozaktomas/face-vector/internal/logging"
	"github.com/kozaktomas/face-vector/internal/storage"
)

// pipeline holds the process-wide handler. The cascade is loaded once and
// reused across invocations.
type pipeline struct {
	cfg      *config.Config
	logger   *slog.Logger
	handler  *handler.Handler
	detector *cascade.Detector
}

// loadConfig reads the environment and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	logger, err := logging.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	fetcher, err := storage.New(ctx, &cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("creating %s fetcher: %w", cfg.Storage.Backend, err)
	}

	detector, err := cascade.New(&cfg.Detector)
	if err != nil {
		return nil, fmt.Errorf("loading face detector: %w", err)
	}

	spec, _ := cfg.GetModelSpec(cfg.Embedding.Model)
	extractor := embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.Model, spec.Dim, cfg.Embedding.Timeout)

	logger.Debug("pipeline ready",
		"backend", cfg.Storage.Backend,
		"cascade", cfg.Detector.CascadePath,
		"model", extractor.Model(),
		"dim", spec.Dim,
	)

	return &pipeline{
		cfg:      cfg,
		logger:   logger,
		handler:  handler.New(fetcher, detector, extractor, logger),
		detector: detector,
	}, nil
}

func (p *pipeline) Close() error {
	return p.detector.Close()
}
