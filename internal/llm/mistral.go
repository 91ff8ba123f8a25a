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

const mistralChatPath = "/v1/chat/completions"

// MistralConfig configures the second hosted provider.
type MistralConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// MistralClient is the second hosted categorization tier.
type MistralClient struct {
	cfg        MistralConfig
	httpClient *http.Client
	log        *slog.Logger
}

// NewMistralClient builds the second hosted tier.
func NewMistralClient(cfg MistralConfig, logger *slog.Logger) *MistralClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.mistral.ai"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &MistralClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}

func (c *MistralClient) Name() ProviderName { return ProviderMistral }

// Categorize requests a category assignment from the Mistral chat API.
func (c *MistralClient) Categorize(ctx context.Context, req CategoryRequest) (Category, error) {
	payload := map[string]any{
		"model":           c.cfg.Model,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "user", "content": BuildCategoryPrompt(req)},
		},
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Category{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+mistralChatPath, bytes.NewReader(b))
	if err != nil {
		return Category{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Category{}, fmt.Errorf("mistral http error: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Category{}, fmt.Errorf("read mistral response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Category{}, fmt.Errorf("mistral status %d: %s", resp.StatusCode, string(data))
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &cc); err != nil {
		return Category{}, fmt.Errorf("decode mistral response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return Category{}, fmt.Errorf("no choices in mistral response")
	}

	cat, err := parseCategory([]byte(strings.TrimSpace(cc.Choices[0].Message.Content)))
	if err != nil {
		c.log.Error("llm.mistral.bad_shape", "error", err)
		return Category{}, err
	}
	return cat, nil
}
