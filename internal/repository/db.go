// Package repository persists invoices, validation results, upload logs and
// the per-tenant number sequences on Postgres.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/belegwerk/einvoice/internal/common"
)

// OpenDB opens a pooled connection with the configured limits and verifies
// it. Zero values fall back to safe pool defaults.
func OpenDB(cfg common.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	maxOpen, maxIdle, lifetime := poolLimits(cfg)
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func poolLimits(cfg common.DatabaseConfig) (maxOpen, maxIdle int, lifetime time.Duration) {
	maxOpen = cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	maxIdle = cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = maxOpen
	}
	lifetime = cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 30 * time.Minute
	}
	return maxOpen, maxIdle, lifetime
}

// EnsureSchema applies the bootstrap DDL. Idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across daemon and batch-CLI startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS invoices (
	id UUID PRIMARY KEY,
	tenant_id UUID NOT NULL,
	public_id UUID NOT NULL UNIQUE,
	invoice_number TEXT NOT NULL,
	draft JSONB NOT NULL,
	source_type TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	skr03_account TEXT,
	category_label TEXT,
	validation_status TEXT NOT NULL,
	validation_errors JSONB NOT NULL DEFAULT '[]'::jsonb,
	xml_key TEXT,
	hybrid_pdf_key TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_invoices_tenant ON invoices(tenant_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices(validation_status);

CREATE TABLE IF NOT EXISTS validation_results (
	id UUID PRIMARY KEY,
	invoice_id UUID NOT NULL REFERENCES invoices(id),
	valid BOOLEAN NOT NULL,
	validator_version TEXT,
	issues JSONB NOT NULL DEFAULT '[]'::jsonb,
	error_count INT NOT NULL DEFAULT 0,
	warning_count INT NOT NULL DEFAULT 0,
	unreachable BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_validation_results_invoice ON validation_results(invoice_id, created_at DESC);

CREATE TABLE IF NOT EXISTS upload_logs (
	id UUID PRIMARY KEY,
	tenant_id UUID NOT NULL,
	filename TEXT NOT NULL,
	declared_type TEXT,
	size_bytes BIGINT NOT NULL DEFAULT 0,
	outcome TEXT NOT NULL,
	error_kind TEXT,
	error_detail TEXT,
	invoice_id UUID REFERENCES invoices(id),
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_upload_logs_tenant ON upload_logs(tenant_id, created_at DESC);

CREATE TABLE IF NOT EXISTS number_sequences (
	tenant_id UUID PRIMARY KEY,
	prefix TEXT NOT NULL DEFAULT 'RE',
	separator TEXT NOT NULL DEFAULT '-',
	year_format BOOLEAN NOT NULL DEFAULT TRUE,
	padding INT NOT NULL DEFAULT 5,
	counter BIGINT NOT NULL DEFAULT 0,
	last_reset_year INT NOT NULL DEFAULT 0,
	reset_yearly BOOLEAN NOT NULL DEFAULT TRUE
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so repositories can join an
// enclosing transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
