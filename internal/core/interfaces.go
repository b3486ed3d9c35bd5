package core

import (
	"context"
	"time"
)

// Logger interface
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	Fatal(format string, args ...any)
}

// Cache interface
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, duration time.Duration)
	Stop()
}

// StorageInterface storage interface
type StorageInterface interface {
	SaveStats(stats *GenerationStats) error
	LoadStats() (*GenerationStats, error)
	Close() error
}

// ImageGenerator is the image generation capability. An empty URL with a nil
// error means the backend answered without image data.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, endpointID, prompt, size string) (string, error)
}

// TextCompleter is the optional text completion capability used for prompt enhancement.
type TextCompleter interface {
	CompleteText(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// QuotaLimiter enforces per-model daily generation quotas. CheckQuota and
// RecordSuccess are each atomic; the pair is not.
type QuotaLimiter interface {
	CheckQuota(ctx context.Context, modelID string) (allowed bool, message string, err error)
	RecordSuccess(ctx context.Context, modelID string) error
}

// MetricsCollector interface
type MetricsCollector interface {
	RecordGeneration(record GenerationRecord)
	RecordQuotaRejection(modelID string)
	RecordEnhancement(success bool)
	RecordCacheHit()
	RecordCacheMiss()
	GetQPS() float64
}

// NopLogger empty logger implementation
type NopLogger struct{}

func (*NopLogger) Debug(format string, args ...any) {}
func (*NopLogger) Info(format string, args ...any)  {}
func (*NopLogger) Warn(format string, args ...any)  {}
func (*NopLogger) Error(format string, args ...any) {}
func (*NopLogger) Fatal(format string, args ...any) {}

// NopMetrics empty metrics collector implementation
type NopMetrics struct{}

func (*NopMetrics) RecordGeneration(record GenerationRecord) {}
func (*NopMetrics) RecordQuotaRejection(modelID string)      {}
func (*NopMetrics) RecordEnhancement(success bool)           {}
func (*NopMetrics) RecordCacheHit()                          {}
func (*NopMetrics) RecordCacheMiss()                         {}
func (*NopMetrics) GetQPS() float64                          { return 0 }
