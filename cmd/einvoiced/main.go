// einvoiced is the pipeline daemon: it consumes upload events from the
// message queue, runs each document through the invoice pipeline and serves
// the metrics endpoint.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/belegwerk/einvoice/internal/bootstrap"
	"github.com/belegwerk/einvoice/internal/common"
	"github.com/belegwerk/einvoice/internal/notify"
	"github.com/belegwerk/einvoice/internal/observability/logging"
	"github.com/belegwerk/einvoice/internal/ocr"
	queue "github.com/belegwerk/einvoice/internal/queue/nats"
)

const service = "einvoiced"

func main() {
	_ = godotenv.Load()
	cfg := common.LoadConfig()
	logger := logging.NewJSONLogger(service, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	q, err := queue.NewWithOptions(cfg.Queue.NATSURL, queue.Options{UploadsSubject: cfg.Queue.Subject}, logger)
	if err != nil {
		logger.Error("queue connect failed", "error", err)
		os.Exit(1)
	}
	defer q.Close()

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{
		Service:  service,
		Notifier: notify.NewQueueNotifier(q, logger),
		Hybrid:   true,
	})
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.DB.Close()

	// metrics endpoint
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.Metrics.Handler())
	metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
	go func() {
		logger.Info("metrics.listening", "addr", cfg.Metrics.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	handler := func(ctx context.Context, msg queue.UploadMessage) error {
		data, err := os.ReadFile(msg.Path)
		if err != nil {
			return err
		}
		out := app.Orchestrator.Process(ctx, msg.TenantID, ocr.DocumentInput{
			Filename:     msg.Filename,
			DeclaredType: msg.DeclaredType,
			Bytes:        data,
		})
		return out.Err
	}

	go func() {
		revalidate := func(ctx context.Context, msg queue.RevalidateMessage) error {
			_, err := app.Revalidator.Revalidate(ctx, msg.InvoiceID)
			return err
		}
		if err := q.SubscribeRevalidate(ctx, revalidate); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("revalidate subscription failed", "error", err)
		}
	}()

	logger.Info("daemon.started", "subject", cfg.Queue.Subject)
	if err := q.SubscribeUploads(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("subscription failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info("daemon.stopped")
}
