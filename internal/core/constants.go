package core

// Default config constants
const (
	DefaultPort            = "7860"
	DefaultGinMode         = "release"
	DefaultImageBaseURL    = "https://ark.ap-southeast.bytepluses.com/api/v3"
	DefaultTextBaseURL     = "https://ark.cn-beijing.volces.com/api/v3"
	DefaultModelID         = "model_2"
	DefaultMaxPromptLength = 2000
	DefaultRawModeMarker   = "#RAW"
	DefaultQuotaKeyPrefix  = "imagegen:quota"
	DefaultRateLimit       = 120
	CORSMaxAge             = "86400"
)

// Style identifiers with special meaning
const (
	StyleIDNone   = "none"
	StyleIDCustom = "custom"
)

// Display names
const (
	StyleNameDefault = "Default"
	StyleNameCustom  = "Custom"
)

// Prompt modes reported in the debug block
const (
	PromptModeRaw      = "raw"
	PromptModeEnhanced = "enhanced"
	PromptModeStyled   = "styled"
	PromptModeFallback = "fallback"
)

// Enhancement instructions sent to the text completion backend
const (
	EnhanceSystemPrompt = `You are an expert AI art prompt generator.
Your task is to take a user's basic description and a style, and rewrite it into a detailed, high-quality prompt for image generation.

Rules:
1. Keep the prompt in English.
2. Focus on visual details, lighting, texture, and composition.
3. Incorporate the requested style naturally.
4. Output ONLY the final prompt text, no explanations.`
	EnhanceUserMessageFormat = "Description: %s\nStyle/Suffix to incorporate: %s"
	EnhanceTemperature       = 0.7
)

// Image response format requested from the generation backend
const (
	ImageResponseFormatURL = "url"
	ImagesPerRequest       = 1
)

// HTTP header constants
const (
	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
	HeaderAccessCode    = "X-Access-Code"
	ContentTypeJSON     = "application/json"
	AuthBearerPrefix    = "Bearer "
)

// Time format constants
const (
	TimeFormatDateTime = "2006-01-02 15:04:05"
	QuotaDayLayout     = "2006-01-02"
)

// File permission constants
const (
	FilePermissionReadWrite = 0644
)

// Logging config constants
const (
	MaxDebugFilePathLength = 260
)

// SecretMask replaces configured credentials in client-facing messages
const SecretMask = "***"
