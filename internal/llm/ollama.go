package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// OllamaConfig configures the locally-run model tier.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OllamaClient is the always-available local tier. Its failure is fatal to the
// caller; there is no tier below it.
type OllamaClient struct {
	cfg        OllamaConfig
	httpClient *http.Client
	log        *slog.Logger
}

// NewOllamaClient builds the local tier.
func NewOllamaClient(cfg OllamaConfig, logger *slog.Logger) *OllamaClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &OllamaClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}

func (c *OllamaClient) Name() ProviderName { return ProviderLocal }

// Categorize generates a JSON-formatted completion from the local model.
func (c *OllamaClient) Categorize(ctx context.Context, req CategoryRequest) (Category, error) {
	payload := map[string]any{
		"model":  c.cfg.Model,
		"prompt": BuildCategoryPrompt(req),
		"stream": false,
		"format": "json",
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Category{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/api/generate", bytes.NewReader(b))
	if err != nil {
		return Category{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Category{}, fmt.Errorf("ollama http error: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Category{}, fmt.Errorf("read ollama response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Category{}, fmt.Errorf("ollama status %d: %s", resp.StatusCode, string(data))
	}

	var gen struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(data, &gen); err != nil {
		return Category{}, fmt.Errorf("decode ollama response: %w", err)
	}

	cat, err := parseCategory([]byte(extractJSONObject(gen.Response)))
	if err != nil {
		c.log.Error("llm.ollama.bad_shape", "error", err)
		return Category{}, err
	}
	return cat, nil
}

// extractJSONObject trims any prose the model wrapped around the JSON object.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return strings.TrimSpace(s)
}
