// Package dispatch runs the generation pipeline: access check, validation,
// quota, prompt processing, backend call and result assembly.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"imagegen/internal/catalog"
	"imagegen/internal/core"
	"imagegen/internal/log"
	"imagegen/internal/metrics"
	"imagegen/internal/process"
	"imagegen/internal/util"
)

const requestIDPrefix = "img-"

// Config dispatcher limits
type Config struct {
	DefaultModelID  string
	MaxPromptLength int
}

// Dependencies collaborators used by the dispatcher. Generator may be nil
// when no credential is configured; every request then fails with a
// configuration error.
type Dependencies struct {
	Models    *catalog.ModelRegistry
	Processor *process.PromptProcessor
	Generator core.ImageGenerator
	Quota     core.QuotaLimiter
	Access    *AccessController
	Metrics   core.MetricsCollector
	Logger    core.Logger
}

// Dispatcher orchestrates a single generation request.
type Dispatcher struct {
	cfg       Config
	models    *catalog.ModelRegistry
	processor *process.PromptProcessor
	generator core.ImageGenerator
	quota     core.QuotaLimiter
	access    *AccessController
	metrics   core.MetricsCollector
	logger    core.Logger
	now       func() time.Time
}

// WithClock overrides the clock used for latency reporting.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg Config, deps Dependencies) *Dispatcher {
	if cfg.MaxPromptLength <= 0 {
		cfg.MaxPromptLength = core.DefaultMaxPromptLength
	}
	if deps.Metrics == nil {
		deps.Metrics = &core.NopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = &core.NopLogger{}
	}
	if deps.Access == nil {
		deps.Access = NewAccessController("")
	}
	return &Dispatcher{
		cfg:       cfg,
		models:    deps.Models,
		processor: deps.Processor,
		generator: deps.Generator,
		quota:     deps.Quota,
		access:    deps.Access,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       time.Now,
	}
}

// Handle processes req and returns the result envelope or an *core.AppError.
func (d *Dispatcher) Handle(ctx context.Context, req core.PromptRequest) (*core.GenerationResult, error) {
	requestID := util.GenerateRequestID(requestIDPrefix)
	logger := log.WithPrefix(d.logger, requestID)

	logger.Debug("Received prompt (model=%q style=%q): %s", req.ModelID, req.StyleID, util.TruncateRunes(req.Prompt, 200))

	if !d.access.Authorize(req.AccessCode) {
		logger.Warn("Rejected request with invalid access code")
		return nil, core.ErrUnauthorized()
	}

	if d.generator == nil {
		logger.Error("Image generation credential is not configured")
		return nil, core.ErrConfiguration(core.MsgAPIKeyMissing)
	}

	if strings.TrimSpace(req.Prompt) == "" {
		return nil, core.ErrBadRequest(core.MsgNoPrompt)
	}
	if util.PromptLength(req.Prompt) > d.cfg.MaxPromptLength {
		return nil, core.ErrBadRequest(fmt.Sprintf(core.MsgPromptTooLong, d.cfg.MaxPromptLength))
	}

	modelID := req.ModelID
	if modelID == "" {
		modelID = d.cfg.DefaultModelID
	}
	model, err := d.models.Resolve(modelID)
	if err != nil {
		logger.Warn("Rejected unknown or unconfigured model %q", modelID)
		return nil, core.ErrBadRequest(core.MsgInvalidModel)
	}

	allowed, quotaMsg, err := d.quota.CheckQuota(ctx, model.ID)
	if err != nil {
		logger.Error("Quota check failed for %s: %v", model.ID, err)
		return nil, core.ErrUpstream(core.MsgQuotaCheckFailure, nil)
	}
	if !allowed {
		d.metrics.RecordQuotaRejection(model.ID)
		return nil, core.ErrTooManyRequests(quotaMsg)
	}

	start := d.now()

	processed := d.processor.ProcessPrompt(ctx, req.Prompt, req.StyleID, req.CustomStyle)
	if processed.Mode == core.PromptModeRaw && processed.FinalPrompt == "" {
		return nil, core.ErrBadRequest(core.MsgEmptyRawPrompt)
	}
	logger.Info("Generating with %s (%s), style=%s mode=%s, prompt: %s",
		model.DisplayName, model.EndpointID, processed.Style.ID, processed.Mode, util.TruncateRunes(processed.FinalPrompt, 80))

	imageURL, err := d.generator.GenerateImage(ctx, model.EndpointID, processed.FinalPrompt, model.OutputSize)
	if err != nil {
		logger.Error("Image generation failed after %s: %v", d.now().Sub(start).Round(time.Millisecond), err)
		metrics.RecordFailureWithMetrics(d.metrics, start, model.ID, processed.Style.ID, core.KindUpstream)
		return nil, core.ErrUpstream(core.MsgGenerationFailed, err)
	}
	if imageURL == "" {
		logger.Error("Image backend returned no image data")
		metrics.RecordFailureWithMetrics(d.metrics, start, model.ID, processed.Style.ID, core.KindUpstream)
		return nil, core.ErrUpstream(core.MsgNoImageData, nil)
	}

	if err := d.quota.RecordSuccess(ctx, model.ID); err != nil {
		// the image exists already, so the caller still gets it
		logger.Error("Failed to record quota usage for %s: %v", model.ID, err)
	}

	elapsed := d.now().Sub(start)
	metrics.RecordSuccessWithMetrics(d.metrics, start, model.ID, processed.Style.ID, processed.Mode)
	logger.Info("Generated image in %ss", util.FormatSeconds(elapsed))

	return &core.GenerationResult{
		ImageURL:         imageURL,
		OriginalPrompt:   req.Prompt,
		FinalPrompt:      processed.FinalPrompt,
		ModelDisplayName: model.DisplayName,
		StyleDisplayName: processed.Style.DisplayName,
		Debug: core.DebugInfo{
			ElapsedSeconds:      elapsed.Seconds(),
			TimeElapsed:         util.FormatSeconds(elapsed),
			FinalPromptLength:   util.PromptLength(processed.FinalPrompt),
			EstimatedTokenCount: util.EstimateTokenCount(processed.FinalPrompt),
			PromptMode:          processed.Mode,
			RequestID:           requestID,
		},
	}, nil
}
