package repository

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/belegwerk/einvoice/internal/entity"
)

func newSequenceWithMock(t *testing.T) (*SequenceRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewSequenceRepository(db, nil), mock, func() { _ = db.Close() }
}

var seqCols = []string{"prefix", "separator", "year_format", "padding", "counter", "last_reset_year", "reset_yearly"}

func TestSequenceNext_IncrementsUnderRowLock(t *testing.T) {
	repo, mock, done := newSequenceWithMock(t)
	defer done()

	tenant := uuid.New()
	year := time.Now().Year()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT prefix, separator, year_format, padding, counter, last_reset_year, reset_yearly").
		WithArgs(tenant).
		WillReturnRows(sqlmock.NewRows(seqCols).AddRow("RE", "-", true, 5, int64(41), year, true))
	mock.ExpectExec("UPDATE number_sequences").
		WithArgs(tenant, int64(42), year).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	number, err := repo.Next(context.Background(), tenant)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	want := entity.FormatNumber("RE", "-", true, 5, year, 42)
	if number != want {
		t.Errorf("number = %q, want %q", number, want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSequenceNext_YearBoundaryResetsCounter(t *testing.T) {
	repo, mock, done := newSequenceWithMock(t)
	defer done()

	tenant := uuid.New()
	year := time.Now().Year()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT prefix, separator").
		WithArgs(tenant).
		WillReturnRows(sqlmock.NewRows(seqCols).AddRow("RE", "-", true, 5, int64(99), year-1, true))
	mock.ExpectExec("UPDATE number_sequences").
		WithArgs(tenant, int64(1), year).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	number, err := repo.Next(context.Background(), tenant)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	want := entity.FormatNumber("RE", "-", true, 5, year, 1)
	if number != want {
		t.Errorf("number = %q, want %q", number, want)
	}
}

func TestSequenceNext_NoResetWhenNotYearly(t *testing.T) {
	repo, mock, done := newSequenceWithMock(t)
	defer done()

	tenant := uuid.New()
	year := time.Now().Year()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT prefix, separator").
		WithArgs(tenant).
		WillReturnRows(sqlmock.NewRows(seqCols).AddRow("INV", "/", false, 3, int64(99), year-1, false))
	mock.ExpectExec("UPDATE number_sequences").
		WithArgs(tenant, int64(100), year-1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	number, err := repo.Next(context.Background(), tenant)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if number != "INV/100" {
		t.Errorf("number = %q", number)
	}
}

func TestSequenceNext_FirstDrawCreatesRow(t *testing.T) {
	repo, mock, done := newSequenceWithMock(t)
	defer done()

	tenant := uuid.New()
	year := time.Now().Year()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT prefix, separator").
		WithArgs(tenant).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO number_sequences").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT prefix, separator").
		WithArgs(tenant).
		WillReturnRows(sqlmock.NewRows(seqCols).AddRow("RE", "-", true, 5, int64(0), year, true))
	mock.ExpectExec("UPDATE number_sequences").
		WithArgs(tenant, int64(1), year).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	number, err := repo.Next(context.Background(), tenant)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	want := entity.FormatNumber("RE", "-", true, 5, year, 1)
	if number != want {
		t.Errorf("number = %q, want %q", number, want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// Serialized draws model what the row lock enforces: every draw sees the
// committed counter of the previous one, so numbers are distinct and
// strictly increasing.
func TestSequenceNext_SerializedDrawsAreStrictlyIncreasing(t *testing.T) {
	repo, mock, done := newSequenceWithMock(t)
	defer done()

	tenant := uuid.New()
	year := time.Now().Year()

	const draws = 5
	for i := 0; i < draws; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT prefix, separator").
			WithArgs(tenant).
			WillReturnRows(sqlmock.NewRows(seqCols).AddRow("RE", "-", true, 5, int64(i), year, true))
		mock.ExpectExec("UPDATE number_sequences").
			WithArgs(tenant, int64(i+1), year).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
	}

	seen := make(map[string]bool, draws)
	prev := ""
	for i := 0; i < draws; i++ {
		number, err := repo.Next(context.Background(), tenant)
		if err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
		if seen[number] {
			t.Fatalf("duplicate number %q", number)
		}
		seen[number] = true
		if number <= prev {
			t.Fatalf("numbers not strictly increasing: %q after %q", number, prev)
		}
		prev = number
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSequenceGet_DefaultsForUnknownTenant(t *testing.T) {
	repo, mock, done := newSequenceWithMock(t)
	defer done()

	tenant := uuid.New()
	mock.ExpectQuery("SELECT prefix, separator").
		WithArgs(tenant).
		WillReturnError(sql.ErrNoRows)

	seq, err := repo.Get(context.Background(), tenant)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if seq.Prefix != "RE" || seq.Padding != 5 || !seq.ResetYearly {
		t.Errorf("unexpected defaults: %+v", seq)
	}
}

func TestPreviewFormat(t *testing.T) {
	year := time.Now().Year()
	tests := []struct {
		prefix, separator string
		yearFormat        bool
		padding           int
		want              string
	}{
		{"RE", "-", true, 5, fmt.Sprintf("RE-%d-00001", year)},
		{"", "-", false, 3, "001"},
		{"INV", "/", false, 0, "INV/1"},
	}
	for _, tt := range tests {
		if got := PreviewFormat(tt.prefix, tt.separator, tt.yearFormat, tt.padding); got != tt.want {
			t.Errorf("PreviewFormat(%q,%q,%v,%d) = %q, want %q",
				tt.prefix, tt.separator, tt.yearFormat, tt.padding, got, tt.want)
		}
	}
}
