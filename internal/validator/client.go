// Package validator talks to the external schematron validation service and
// normalizes its reports. The service being down is an expected condition and
// must never fail an upload; callers record a synthetic pending result instead.
package validator

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

	"github.com/belegwerk/einvoice/internal/common"
	"github.com/belegwerk/einvoice/internal/entity"
)

const defaultProfile = "xrechnung_3.0"

// Config configures the validation-service client.
type Config struct {
	BaseURL string
	Profile string
	Timeout time.Duration
}

// Client checks generated XML against the configured profile.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Profile == "" {
		cfg.Profile = defaultProfile
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}

// report is the service's wire format.
type report struct {
	Valid   bool   `json:"valid"`
	Version string `json:"version"`
	Issues  []struct {
		Severity string `json:"severity"`
		Code     string `json:"code"`
		Message  string `json:"message"`
		Location string `json:"location"`
	} `json:"issues"`
}

// Validate submits the XML and returns the normalized result. Any failure to
// obtain a usable report (transport error, non-2xx status, unparseable body)
// is an unreachable-kind error; the document itself is not judged.
func (c *Client) Validate(ctx context.Context, xml []byte) (*entity.ValidationResult, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/validate?profile=" + c.cfg.Profile

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(xml))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/xml")

	c.log.Debug("validator.validate.start", "profile", c.cfg.Profile, "bytes", len(xml))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, common.WrapKind(common.ErrValidatorUnreachable, "validator.validate", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, common.WrapKind(common.ErrValidatorUnreachable, "validator.validate", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, common.WrapKind(common.ErrValidatorUnreachable, "validator.validate",
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200)))
	}

	var r report
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, common.WrapKind(common.ErrValidatorUnreachable, "validator.validate",
			fmt.Errorf("parse report: %w", err))
	}

	result := &entity.ValidationResult{
		Valid:            r.Valid,
		ValidatorVersion: r.Version,
		CreatedAt:        time.Now().UTC(),
	}
	for _, is := range r.Issues {
		issue := entity.Issue{
			Severity: strings.ToLower(is.Severity),
			Code:     is.Code,
			Message:  is.Message,
			Location: is.Location,
		}
		switch issue.Severity {
		case "error", "fatal":
			issue.Severity = "error"
			result.ErrorCount++
		default:
			issue.Severity = "warning"
			result.WarningCount++
		}
		result.Issues = append(result.Issues, issue)
	}
	// a report claiming validity while carrying errors is not trusted
	if result.ErrorCount > 0 {
		result.Valid = false
	}

	c.log.Info("validator.validate.done",
		"valid", result.Valid,
		"errors", result.ErrorCount,
		"warnings", result.WarningCount,
		"version", result.ValidatorVersion)
	return result, nil
}

// UnreachableResult builds the synthetic row recorded when the service could
// not be reached. The invoice keeps its pending validation status.
func UnreachableResult() *entity.ValidationResult {
	return &entity.ValidationResult{
		Valid:       false,
		Unreachable: true,
		CreatedAt:   time.Now().UTC(),
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
