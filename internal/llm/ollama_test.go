package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaCategorizeParsesJSONResponse(t *testing.T) {
	var capturedPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		capturedPrompt, _ = payload["prompt"].(string)
		_, _ = w.Write([]byte(`{"response":"{\"skr03_account\":\"4400\",\"category\":\"Buerokosten\"}"}`))
	}))
	defer server.Close()

	c := NewOllamaClient(OllamaConfig{BaseURL: server.URL, Model: "llama3.1:8b"}, nil)
	cat, err := c.Categorize(context.Background(), CategoryRequest{
		SellerName: "Staples", Description: "Bueroartikel", Amount: 59.99,
	})
	if err != nil {
		t.Fatalf("Categorize() error = %v", err)
	}
	if cat.SKR03Account != "4400" || cat.Label != "Buerokosten" {
		t.Fatalf("got %+v", cat)
	}
	for _, want := range []string{"Staples", "Bueroartikel", "59.99"} {
		if !strings.Contains(capturedPrompt, want) {
			t.Fatalf("prompt missing %q: %s", want, capturedPrompt)
		}
	}
}

func TestOllamaCategorizeSurfacesHTTPBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewOllamaClient(OllamaConfig{BaseURL: server.URL}, nil)
	_, err := c.Categorize(context.Background(), CategoryRequest{})
	if err == nil || !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestOpenAICategorizeViaChatCompletions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("authorization header = %q", got)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"skr03_account\":\"4930\",\"category\":\"Buerobedarf\"}"}}]}`))
	}))
	defer server.Close()

	c := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "test-key", Model: "gpt-4o-mini"}, nil)
	cat, err := c.Categorize(context.Background(), CategoryRequest{SellerName: "Staples"})
	if err != nil {
		t.Fatalf("Categorize() error = %v", err)
	}
	if cat.SKR03Account != "4930" {
		t.Fatalf("got %+v", cat)
	}
}

func TestExtractJSONObjectTrimsProse(t *testing.T) {
	in := "Here you go: {\"skr03_account\":\"4400\",\"category\":\"x\"} hope that helps"
	got := extractJSONObject(in)
	if got != `{"skr03_account":"4400","category":"x"}` {
		t.Fatalf("extractJSONObject() = %q", got)
	}
}
