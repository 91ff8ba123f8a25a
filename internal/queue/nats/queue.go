// Package nats feeds the pipeline daemon with upload events and broadcasts
// persisted-invoice events for downstream consumers.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	SubjectUploads    = "einvoice.uploads"
	SubjectPersisted  = "einvoice.invoices.persisted"
	SubjectRevalidate = "einvoice.invoices.revalidate"

	workerGroup = "pipeline-workers"
)

// UploadMessage announces a stored upload waiting for processing. Path points
// at the raw bytes on shared storage; the document itself never travels over
// the queue.
type UploadMessage struct {
	TenantID     uuid.UUID `json:"tenant_id"`
	Filename     string    `json:"filename"`
	DeclaredType string    `json:"declared_type,omitempty"`
	Path         string    `json:"path"`
}

// RevalidateMessage asks the workers to re-run external validation for an
// already persisted invoice.
type RevalidateMessage struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
}

// PersistedEvent is published after the persistence transaction commits.
type PersistedEvent struct {
	InvoiceID        uuid.UUID `json:"invoice_id"`
	TenantID         uuid.UUID `json:"tenant_id"`
	InvoiceNumber    string    `json:"invoice_number"`
	ValidationStatus string    `json:"validation_status"`
}

type Queue struct {
	conn           *nats.Conn
	uploadsSubject string
	log            *slog.Logger
}

type Options struct {
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
	UploadsSubject string
}

func New(url string, logger *slog.Logger) (*Queue, error) {
	return NewWithOptions(url, Options{}, logger)
}

func NewWithOptions(url string, options Options, logger *slog.Logger) (*Queue, error) {
	if logger == nil {
		logger = slog.Default()
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}

	conn, err := nats.Connect(
		url,
		nats.Name("einvoice-pipeline"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("queue.disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("queue.reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	subject := options.UploadsSubject
	if subject == "" {
		subject = SubjectUploads
	}
	return &Queue{conn: conn, uploadsSubject: subject, log: logger}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// PublishUpload announces a new upload to the pipeline workers.
func (q *Queue) PublishUpload(_ context.Context, msg UploadMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal upload message: %w", err)
	}
	if err := q.conn.Publish(q.uploadsSubject, data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// PublishRevalidate requests a fresh validation run for a persisted invoice.
func (q *Queue) PublishRevalidate(_ context.Context, msg RevalidateMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal revalidate message: %w", err)
	}
	if err := q.conn.Publish(SubjectRevalidate, data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// PublishPersisted broadcasts a committed invoice. Failures are the caller's
// to ignore; the invoice is already durable.
func (q *Queue) PublishPersisted(_ context.Context, ev PersistedEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal persisted event: %w", err)
	}
	if err := q.conn.Publish(SubjectPersisted, data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// SubscribeUploads consumes upload events in the shared worker group until
// ctx is cancelled, then drains.
func (q *Queue) SubscribeUploads(ctx context.Context, handler func(context.Context, UploadMessage) error) error {
	return subscribeJSON(ctx, q, q.uploadsSubject, handler)
}

// SubscribeRevalidate consumes revalidation requests in the shared worker
// group until ctx is cancelled, then drains.
func (q *Queue) SubscribeRevalidate(ctx context.Context, handler func(context.Context, RevalidateMessage) error) error {
	return subscribeJSON(ctx, q, SubjectRevalidate, handler)
}

func subscribeJSON[T any](ctx context.Context, q *Queue, subject string, handler func(context.Context, T) error) error {
	sub, err := q.conn.QueueSubscribe(subject, workerGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		var payload T
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			q.log.Error("queue.message.malformed", "subject", subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, payload); err != nil {
			q.log.Error("queue.handler_error", "subject", subject, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
