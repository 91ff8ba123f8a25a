// Package bootstrap wires the pipeline from configuration. Both the daemon
// and the batch CLI assemble the same orchestrator through here.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/belegwerk/einvoice/internal/common"
	"github.com/belegwerk/einvoice/internal/compliance"
	"github.com/belegwerk/einvoice/internal/extract"
	"github.com/belegwerk/einvoice/internal/ingest"
	"github.com/belegwerk/einvoice/internal/llm"
	"github.com/belegwerk/einvoice/internal/notify"
	"github.com/belegwerk/einvoice/internal/observability/metrics"
	"github.com/belegwerk/einvoice/internal/ocr"
	"github.com/belegwerk/einvoice/internal/pipeline"
	"github.com/belegwerk/einvoice/internal/repository"
	"github.com/belegwerk/einvoice/internal/storage/localfs"
	"github.com/belegwerk/einvoice/internal/validator"
)

// App bundles everything a binary needs after wiring.
type App struct {
	DB           *sql.DB
	Store        *repository.Store
	Orchestrator *pipeline.Orchestrator
	Revalidator  *pipeline.Revalidator
	Metrics      *metrics.PipelineMetrics
	Artifacts    *localfs.Storage
	Logger       *slog.Logger
}

// Options tweaks wiring per binary.
type Options struct {
	Service  string
	Notifier notify.Notifier // nil gets the no-op notifier
	Hybrid   bool            // generate the hybrid PDF alongside the XML
}

// New builds the pipeline from config. The caller owns closing App.DB.
func New(ctx context.Context, cfg common.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Service == "" {
		opts.Service = "einvoice"
	}

	db, err := repository.OpenDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repository.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	store := repository.NewStore(db, logger)

	artifacts, err := localfs.New(cfg.Storage.BasePath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open artifact store: %w", err)
	}

	tesseract := ocr.NewTesseractEngine(ocr.TesseractConfig{
		Language: cfg.OCR.Language,
		DPI:      cfg.OCR.DPI,
	})
	pdfText := ocr.NewPDFTextEngine()
	extractor := ocr.NewExtractor(tesseract, pdfText, cfg.OCR.Timeout, logger)

	var hosted []llm.Categorizer
	if cfg.LLM.OpenAIAPIKey != "" {
		hosted = append(hosted, llm.NewOpenAIClient(llm.OpenAIConfig{
			BaseURL: cfg.LLM.OpenAIBaseURL,
			APIKey:  cfg.LLM.OpenAIAPIKey,
			Model:   cfg.LLM.OpenAIModel,
			Timeout: cfg.LLM.Timeout,
		}, logger))
	}
	if cfg.LLM.MistralAPIKey != "" {
		hosted = append(hosted, llm.NewMistralClient(llm.MistralConfig{
			BaseURL: cfg.LLM.MistralBaseURL,
			APIKey:  cfg.LLM.MistralAPIKey,
			Model:   cfg.LLM.MistralModel,
			Timeout: cfg.LLM.Timeout,
		}, logger))
	}
	local := llm.NewOllamaClient(llm.OllamaConfig{
		BaseURL: cfg.LLM.OllamaURL,
		Model:   cfg.LLM.OllamaModel,
		Timeout: cfg.LLM.Timeout,
	}, logger)
	m := metrics.NewPipelineMetrics(opts.Service)

	router := llm.NewRouter(hosted, local, logger,
		llm.WithHostedRateLimit(cfg.LLM.RatePerSecond),
		llm.WithFailureObserver(func(provider string) {
			m.ObserveProviderFailure(opts.Service, provider)
		}))

	fields := extract.NewFieldExtractor(extract.NewStructurer(logger), router, logger)

	generator, err := compliance.NewGenerator(logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load field mappings: %w", err)
	}

	valClient := validator.NewClient(validator.Config{
		BaseURL: cfg.Validator.BaseURL,
		Profile: cfg.Validator.Profile,
		Timeout: cfg.Validator.Timeout,
	}, logger)

	pipeOpts := pipeline.Options{
		Numbers:  store.Sequences,
		Notifier: opts.Notifier,
		Metrics:  m,
		Limits:   ingest.Limits{MaxBytes: cfg.OCR.MaxUploadB},
		KeyFunc:  localfs.NewKey,
		Service:  opts.Service,
	}
	if opts.Hybrid {
		pipeOpts.Hybrid = compliance.NewHybridBuilder(logger)
	}

	orch := pipeline.NewOrchestrator(extractor, fields, generator, valClient, store, artifacts, logger, pipeOpts)
	reval := pipeline.NewRevalidator(store.Invoices, store.Results, artifacts, valClient, logger)

	return &App{
		DB:           db,
		Store:        store,
		Orchestrator: orch,
		Revalidator:  reval,
		Metrics:      m,
		Artifacts:    artifacts,
		Logger:       logger,
	}, nil
}
