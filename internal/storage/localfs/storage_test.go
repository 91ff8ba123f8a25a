package localfs

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
)

func TestSaveAndOpenRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	key := NewKey("xml")
	if err := s.Save(context.Background(), key, strings.NewReader("<Invoice/>")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rc, err := s.Open(context.Background(), key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, []byte("<Invoice/>")) {
		t.Errorf("round trip mismatch: %q", data)
	}
}

func TestNewKeyIsUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		k := NewKey("pdf")
		if seen[k] {
			t.Fatalf("duplicate key %q", k)
		}
		seen[k] = true
		if !strings.HasSuffix(k, ".pdf") {
			t.Fatalf("key %q missing extension", k)
		}
	}
}

func TestEscapingKeysRejected(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, key := range []string{"", "../outside.xml", "a/../../b.xml", "/etc/passwd"} {
		if err := s.Save(context.Background(), key, strings.NewReader("x")); err == nil {
			t.Errorf("Save accepted key %q", key)
		}
		if _, err := s.Open(context.Background(), key); err == nil {
			t.Errorf("Open accepted key %q", key)
		}
	}
}

func TestOpenMissingKey(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Open(context.Background(), "no/such.xml"); err == nil {
		t.Fatal("expected an error")
	}
}
