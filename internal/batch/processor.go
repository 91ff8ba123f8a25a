// Package batch fans the document pipeline out over many inputs with a
// bounded worker pool. Every input yields exactly one outcome; one document's
// failure never touches its siblings.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/belegwerk/einvoice/internal/common"
	"github.com/belegwerk/einvoice/internal/ocr"
	"github.com/belegwerk/einvoice/internal/pipeline"
)

// Input is one document queued for a batch run.
type Input struct {
	TenantID uuid.UUID
	Document ocr.DocumentInput
}

// Outcome is the per-document result. Err carries the terminal error, Kind
// its machine-readable classification.
type Outcome struct {
	Input     Input
	InvoiceID uuid.UUID
	Err       error
	Kind      string
}

// Runner is the slice of the orchestrator the pool drives.
type Runner interface {
	Process(ctx context.Context, tenantID uuid.UUID, input ocr.DocumentInput) pipeline.Outcome
}

type Processor struct {
	runner  Runner
	logger  *slog.Logger
	workers int
	timeout time.Duration
}

type Option func(*Processor)

func WithWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithDocumentTimeout(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewProcessor(runner Runner, logger *slog.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		runner:  runner,
		logger:  logger,
		workers: 4,
		timeout: 5 * time.Minute,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process runs the pipeline over all inputs with at most the configured
// number of documents in flight. Outcome order does not match input order.
// Cancelling ctx lets in-flight documents finish or fail cleanly; not-yet
// started documents are reported as failed without being run.
func (p *Processor) Process(ctx context.Context, inputs []Input) []Outcome {
	if len(inputs) == 0 {
		return nil
	}

	jobs := make(chan Input)
	results := make(chan Outcome, len(inputs))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for in := range jobs {
				results <- p.runOne(ctx, workerID, in)
			}
		}(i + 1)
	}

	for _, in := range inputs {
		jobs <- in
	}
	close(jobs)
	wg.Wait()
	close(results)

	outcomes := make([]Outcome, 0, len(inputs))
	for out := range results {
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// runOne isolates a single document: its own timeout, and a recover so a
// panic in one document's run cannot take down the batch.
func (p *Processor) runOne(ctx context.Context, workerID int, in Input) (out Outcome) {
	out.Input = in

	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("document panic: %v", r)
			out.Kind = common.ClassifyKind(out.Err)
			p.logger.Error("batch.document_panic",
				"worker_id", workerID, "filename", in.Document.Filename, "panic", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		out.Err = fmt.Errorf("batch cancelled before start: %w", err)
		out.Kind = common.ClassifyKind(out.Err)
		return out
	}

	docCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	res := p.runner.Process(docCtx, in.TenantID, in.Document)
	if res.Err != nil {
		out.Err = res.Err
		out.Kind = common.ClassifyKind(res.Err)
		p.logger.Warn("batch.document_failed",
			"worker_id", workerID, "filename", in.Document.Filename, "kind", out.Kind)
		return out
	}

	out.InvoiceID = res.InvoiceID
	p.logger.Info("batch.document_done",
		"worker_id", workerID, "filename", in.Document.Filename, "invoice_id", res.InvoiceID)
	return out
}
