package core

import "time"

// PromptRequest is the inbound generation request.
type PromptRequest struct {
	Prompt      string `json:"prompt"`
	ModelID     string `json:"model_id,omitempty"`
	StyleID     string `json:"style_id,omitempty"`
	AccessCode  string `json:"access_code,omitempty"`
	CustomStyle string `json:"custom_style,omitempty"`
}

// GenerationResult is the outbound success envelope.
type GenerationResult struct {
	ImageURL         string    `json:"image_url"`
	OriginalPrompt   string    `json:"original_prompt"`
	FinalPrompt      string    `json:"final_prompt"`
	ModelDisplayName string    `json:"model_used"`
	StyleDisplayName string    `json:"style_used"`
	Debug            DebugInfo `json:"debug_info"`
}

// DebugInfo carries latency and prompt size details.
type DebugInfo struct {
	ElapsedSeconds      float64 `json:"-"`
	TimeElapsed         string  `json:"time_elapsed"`
	FinalPromptLength   int     `json:"prompt_length"`
	EstimatedTokenCount int     `json:"estimated_tokens"`
	PromptMode          string  `json:"prompt_mode"`
	RequestID           string  `json:"request_id"`
}

// ErrorResponse is the outbound failure envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// GenerationRecord represents a single dispatch outcome for history tracking.
type GenerationRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	Success      bool      `json:"success"`
	ResponseTime int64     `json:"response_time"`
	Model        string    `json:"model"`
	Style        string    `json:"style"`
	PromptMode   string    `json:"prompt_mode,omitempty"`
	ErrorKind    string    `json:"error_kind,omitempty"`
}

// GenerationStats holds aggregated generation statistics for monitoring.
type GenerationStats struct {
	TotalRequests       int64              `json:"total_requests"`
	SuccessfulRequests  int64              `json:"successful_requests"`
	FailedRequests      int64              `json:"failed_requests"`
	QuotaRejections     int64              `json:"quota_rejections"`
	EnhancementFailures int64              `json:"enhancement_failures"`
	TotalResponseTime   int64              `json:"total_response_time"`
	LastRequestTime     time.Time          `json:"last_request_time"`
	History             []GenerationRecord `json:"history"`
}

// PeriodStats holds computed statistics for a time period.
type PeriodStats struct {
	Requests        int64   `json:"requests"`
	SuccessRate     float64 `json:"successRate"`
	AvgResponseTime int64   `json:"avgResponseTime"`
	QPS             float64 `json:"qps"`
}
