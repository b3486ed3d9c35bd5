package probe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"imagegen/internal/config"
	"imagegen/internal/util"

	"resty.dev/v3"
)

// Status is the outcome of probing one backend.
type Status string

const (
	StatusOK              Status = "ok"
	StatusAuthFailed      Status = "auth_failed"
	StatusUnexpected      Status = "unexpected_status"
	StatusConnectionError Status = "connection_error"
	StatusMissingConfig   Status = "missing_config"
	StatusSkipped         Status = "skipped"
)

// BytePlusHostHint marks base URLs that point at the BytePlus gateway.
const BytePlusHostHint = "bytepluses.com"

const bodyPreviewLimit = 100

// Result describes a single backend probe.
type Result struct {
	Name       string
	BaseURL    string
	Status     Status
	StatusCode int
	ModelCount int
	Detail     string
	Warnings   []string
}

// Failed reports whether the probe found a problem that blocks the backend.
func (r Result) Failed() bool {
	switch r.Status {
	case StatusAuthFailed, StatusConnectionError, StatusMissingConfig:
		return true
	}
	return false
}

type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Prober issues GET <base>/models against OpenAI compatible backends.
type Prober struct {
	client *resty.Client
}

// NewProber creates a prober whose requests time out after timeout.
func NewProber(timeout time.Duration) *Prober {
	return &Prober{client: resty.New().SetTimeout(timeout)}
}

// Check probes baseURL with apiKey as bearer token.
func (p *Prober) Check(ctx context.Context, name, baseURL, apiKey string) Result {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	result := Result{Name: name, BaseURL: base}

	var models modelList
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		SetResult(&models).
		Get(base + "/models")
	if err != nil {
		result.Status = StatusConnectionError
		result.Detail = util.MaskSecrets(err.Error(), apiKey)
		return result
	}

	result.StatusCode = resp.StatusCode()
	switch {
	case resp.StatusCode() == 401:
		result.Status = StatusAuthFailed
		result.Detail = "authentication failed (401)"
	case resp.IsSuccess():
		result.Status = StatusOK
		result.ModelCount = len(models.Data)
	default:
		result.Status = StatusUnexpected
		result.Detail = util.MaskSecrets(util.TruncateRunes(resp.String(), bodyPreviewLimit), apiKey)
	}
	return result
}

// CheckImage probes the image generation backend.
func (p *Prober) CheckImage(ctx context.Context, cfg config.ServerConfig) Result {
	switch {
	case cfg.ImageAPIKey == "":
		return Result{Name: "image", Status: StatusMissingConfig, Detail: "IMAGE_GEN_API_KEY is missing"}
	case cfg.ImageBaseURL == "":
		return Result{Name: "image", Status: StatusMissingConfig, Detail: "ARK_BASE_URL is missing"}
	}
	return p.Check(ctx, "image", cfg.ImageBaseURL, cfg.ImageAPIKey)
}

// CheckText probes the prompt enhancement backend. A missing key skips the
// probe since enhancement is optional.
func (p *Prober) CheckText(ctx context.Context, cfg config.ServerConfig) Result {
	switch {
	case cfg.TextAPIKey == "":
		return Result{Name: "text", Status: StatusSkipped, Detail: "TEXT_GEN_API_KEY not set, prompt enhancement disabled"}
	case cfg.TextBaseURL == "":
		return Result{Name: "text", Status: StatusMissingConfig, Detail: "TEXT_GEN_BASE_URL is missing"}
	}

	result := p.Check(ctx, "text", cfg.TextBaseURL, cfg.TextAPIKey)
	if !strings.Contains(cfg.TextBaseURL, BytePlusHostHint) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("TEXT_GEN_BASE_URL (%s) does not look like a BytePlus endpoint", cfg.TextBaseURL))
	}
	if cfg.TextModelEndpoint == "" {
		result.Warnings = append(result.Warnings, "TEXT_GEN_MODEL_ENDPOINT is not set")
	}
	return result
}

// CheckAll probes both backends in order.
func (p *Prober) CheckAll(ctx context.Context, cfg config.ServerConfig) []Result {
	return []Result{p.CheckImage(ctx, cfg), p.CheckText(ctx, cfg)}
}
