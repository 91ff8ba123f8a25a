//go:build integration

package repository

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/belegwerk/einvoice/internal/common"
)

// Run with a real database:
//
//	TEST_DATABASE_DSN=postgres://... go test -tags integration ./internal/repository
func openTestDB(t *testing.T) *SequenceRepository {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	db, err := OpenDB(common.DatabaseConfig{DSN: dsn})
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return NewSequenceRepository(db, nil)
}

// Concurrent draws for one tenant must serialize on the row lock: every
// goroutine gets a distinct number and nothing is drawn twice.
func TestSequenceNext_ConcurrentDrawsAreDistinct(t *testing.T) {
	repo := openTestDB(t)
	tenant := uuid.New()

	const (
		goroutines        = 8
		drawsPerGoroutine = 25
	)

	var (
		mu      sync.Mutex
		numbers []string
		wg      sync.WaitGroup
	)
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < drawsPerGoroutine; i++ {
				number, err := repo.Next(context.Background(), tenant)
				if err != nil {
					t.Errorf("Next: %v", err)
					return
				}
				mu.Lock()
				numbers = append(numbers, number)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	want := goroutines * drawsPerGoroutine
	if len(numbers) != want {
		t.Fatalf("drew %d numbers, want %d", len(numbers), want)
	}
	seen := make(map[string]bool, want)
	for _, n := range numbers {
		if seen[n] {
			t.Fatalf("number %q drawn twice", n)
		}
		seen[n] = true
	}

	seq, err := repo.Get(context.Background(), tenant)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if seq.Counter != int64(want) {
		t.Fatalf("counter = %d, want %d", seq.Counter, want)
	}
}
