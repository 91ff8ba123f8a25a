// einvoice-batch runs the pipeline over every document in a directory and
// prints one outcome line per file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/belegwerk/einvoice/constants"
	"github.com/belegwerk/einvoice/internal/batch"
	"github.com/belegwerk/einvoice/internal/bootstrap"
	"github.com/belegwerk/einvoice/internal/common"
	"github.com/belegwerk/einvoice/internal/export"
	"github.com/belegwerk/einvoice/internal/observability/logging"
	"github.com/belegwerk/einvoice/internal/ocr"
)

const service = "einvoice-batch"

func main() {
	_ = godotenv.Load()

	var (
		dir        = flag.String("dir", "", "directory of invoice documents to process")
		tenant     = flag.String("tenant", "", "tenant id (uuid)")
		workers    = flag.Int("workers", 0, "concurrency bound (default from config)")
		noHybrid   = flag.Bool("no-hybrid", false, "skip hybrid PDF generation")
		exportPath = flag.String("export", "", "write the tenant's invoices to this XLSX file instead of processing")
	)
	flag.Parse()

	cfg := common.LoadConfig()
	logger := logging.NewJSONLogger(service, cfg.LogLevel)

	if *dir == "" && *exportPath == "" {
		fmt.Fprintln(os.Stderr, "usage: einvoice-batch -dir <directory> -tenant <uuid> [-export <file.xlsx>]")
		os.Exit(2)
	}
	tenantID, err := uuid.Parse(*tenant)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid tenant id: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{
		Service: service,
		Hybrid:  !*noHybrid,
	})
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.DB.Close()

	if *exportPath != "" {
		exporter := export.NewService(app.Store.Invoices, logger)
		data, err := exporter.ExportInvoicesXLSX(ctx, tenantID, 0)
		if err != nil {
			logger.Error("export failed", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*exportPath, data, 0o644); err != nil {
			logger.Error("write export file failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("exported invoices to %s\n", *exportPath)
		return
	}

	inputs, err := collectInputs(*dir, tenantID)
	if err != nil {
		logger.Error("scan directory failed", "error", err)
		os.Exit(1)
	}
	if len(inputs) == 0 {
		fmt.Println("no processable documents found")
		return
	}

	concurrency := cfg.Batch.Concurrency
	if *workers > 0 {
		concurrency = *workers
	}
	processor := batch.NewProcessor(app.Orchestrator, logger,
		batch.WithWorkers(concurrency),
		batch.WithDocumentTimeout(cfg.Batch.DocumentTimeout))

	outcomes := processor.Process(ctx, inputs)

	var failed int
	for _, out := range outcomes {
		if out.Err != nil {
			failed++
			fmt.Printf("FAIL  %-40s %s: %v\n", out.Input.Document.Filename, out.Kind, out.Err)
			continue
		}
		fmt.Printf("OK    %-40s invoice %s\n", out.Input.Document.Filename, out.InvoiceID)
	}
	fmt.Printf("%d processed, %d failed\n", len(outcomes), failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// collectInputs reads every file with a supported extension in dir,
// non-recursively.
func collectInputs(dir string, tenantID uuid.UUID) ([]batch.Input, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var inputs []batch.Input
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := constants.NormalizeExt(filepath.Ext(e.Name()))
		if _, ok := constants.AllowedExtensions[ext]; !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, batch.Input{
			TenantID: tenantID,
			Document: ocr.DocumentInput{Filename: e.Name(), Bytes: data},
		})
	}
	return inputs, nil
}
