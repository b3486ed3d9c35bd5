package process

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"imagegen/internal/cache"
	"imagegen/internal/catalog"
	"imagegen/internal/core"
	"imagegen/internal/util"
)

// ErrEnhancementDisabled is the fallback reason when no text completer is configured.
var ErrEnhancementDisabled = errors.New("prompt enhancement not configured")

// PromptProcessor turns a user prompt into the final generation prompt
type PromptProcessor struct {
	styles    *catalog.StyleCatalog
	completer core.TextCompleter
	cache     *cache.EnhancementCache
	rawMarker string
	timeout   time.Duration
	metrics   core.MetricsCollector
	logger    core.Logger
}

// ProcessorConfig prompt processor settings
type ProcessorConfig struct {
	RawMarker      string
	EnhanceTimeout time.Duration
}

// NewPromptProcessor creates a new prompt processor. completer and c may be nil.
func NewPromptProcessor(cfg ProcessorConfig, styles *catalog.StyleCatalog, completer core.TextCompleter, c *cache.EnhancementCache, metrics core.MetricsCollector, logger core.Logger) *PromptProcessor {
	if cfg.RawMarker == "" {
		cfg.RawMarker = core.DefaultRawModeMarker
	}
	if cfg.EnhanceTimeout <= 0 {
		cfg.EnhanceTimeout = core.DefaultEnhanceTimeout
	}
	if metrics == nil {
		metrics = &core.NopMetrics{}
	}
	if logger == nil {
		logger = &core.NopLogger{}
	}
	return &PromptProcessor{
		styles:    styles,
		completer: completer,
		cache:     c,
		rawMarker: cfg.RawMarker,
		timeout:   cfg.EnhanceTimeout,
		metrics:   metrics,
		logger:    logger,
	}
}

// ProcessPromptResult prompt processing result
type ProcessPromptResult struct {
	FinalPrompt string
	Mode        string
	Style       core.StylePreset
	// FallbackReason is set when enhancement was attempted and failed
	FallbackReason error
	CacheHit       bool
}

// EnhanceResult is either a rewritten prompt or the reason there is none.
type EnhanceResult struct {
	Prompt   string
	Reason   error
	CacheHit bool
}

// OK reports whether enhancement produced a usable prompt.
func (r EnhanceResult) OK() bool {
	return r.Reason == nil && r.Prompt != ""
}

// EnhancementEnabled reports whether a text completer is configured.
func (p *PromptProcessor) EnhancementEnabled() bool {
	return p.completer != nil
}

// RawMarker returns the marker that switches a prompt to raw mode.
func (p *PromptProcessor) RawMarker() string {
	return p.rawMarker
}

// ProcessPrompt selects raw passthrough, LLM enhancement or suffix
// concatenation, in that order.
func (p *PromptProcessor) ProcessPrompt(ctx context.Context, original, styleID, customSuffix string) ProcessPromptResult {
	if strings.Contains(original, p.rawMarker) {
		final := strings.TrimSpace(strings.ReplaceAll(original, p.rawMarker, ""))
		p.logger.Debug("Raw mode prompt, %d characters after stripping marker", util.PromptLength(final))
		// no suffix is applied, so report the none preset
		return ProcessPromptResult{FinalPrompt: final, Mode: core.PromptModeRaw, Style: p.styles.Resolve(core.StyleIDNone)}
	}

	style := p.styles.Resolve(styleID)

	suffix := style.PromptSuffix
	if style.ID == core.StyleIDCustom {
		suffix = NormalizeCustomSuffix(customSuffix)
	}

	if style.ID != core.StyleIDNone {
		return ProcessPromptResult{FinalPrompt: original + suffix, Mode: core.PromptModeStyled, Style: style}
	}

	enhanced := p.Enhance(ctx, original, suffix)
	if enhanced.OK() {
		return ProcessPromptResult{FinalPrompt: enhanced.Prompt, Mode: core.PromptModeEnhanced, Style: style, CacheHit: enhanced.CacheHit}
	}

	if errors.Is(enhanced.Reason, ErrEnhancementDisabled) {
		return ProcessPromptResult{FinalPrompt: original + suffix, Mode: core.PromptModeStyled, Style: style}
	}

	p.logger.Warn("Prompt enhancement failed, using plain prompt: %v", enhanced.Reason)
	return ProcessPromptResult{
		FinalPrompt:    original + suffix,
		Mode:           core.PromptModeFallback,
		Style:          style,
		FallbackReason: enhanced.Reason,
	}
}

// Enhance asks the text completer to rewrite prompt. It never returns an
// error; failures are reported through EnhanceResult.Reason.
func (p *PromptProcessor) Enhance(ctx context.Context, prompt, suffix string) EnhanceResult {
	if p.completer == nil {
		return EnhanceResult{Reason: ErrEnhancementDisabled}
	}

	if p.cache != nil {
		if cached, found := p.cache.Get(prompt, suffix); found {
			p.metrics.RecordCacheHit()
			p.logger.Debug("Enhancement cache hit: %s", cache.TruncateCacheKey(cache.GenerateEnhancementCacheKey(prompt, suffix), 24))
			return EnhanceResult{Prompt: cached, CacheHit: true}
		}
		p.metrics.RecordCacheMiss()
	}

	enhanceCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	text, err := p.completer.CompleteText(enhanceCtx, core.EnhanceSystemPrompt, fmt.Sprintf(core.EnhanceUserMessageFormat, prompt, suffix))
	if err != nil {
		p.metrics.RecordEnhancement(false)
		return EnhanceResult{Reason: fmt.Errorf("text completion: %w", err)}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		p.metrics.RecordEnhancement(false)
		return EnhanceResult{Reason: errors.New("text completion returned no content")}
	}

	p.metrics.RecordEnhancement(true)
	p.logger.Debug("Prompt enhanced in %s: %s", time.Since(start).Round(time.Millisecond), util.TruncateRunes(text, 80))
	if p.cache != nil {
		p.cache.Set(prompt, suffix, text)
	}
	return EnhanceResult{Prompt: text}
}

// NormalizeCustomSuffix trims a caller-supplied style and joins it with ", "
// unless it already starts with a comma.
func NormalizeCustomSuffix(custom string) string {
	custom = strings.TrimSpace(custom)
	if custom == "" || strings.HasPrefix(custom, ",") {
		return custom
	}
	return ", " + custom
}
