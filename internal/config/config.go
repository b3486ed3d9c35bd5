package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"imagegen/internal/catalog"
	"imagegen/internal/core"
	"imagegen/internal/util"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// ServerConfig server configuration
type ServerConfig struct {
	Port    string
	GinMode string

	ImageAPIKey       string
	ImageBaseURL      string
	TextAPIKey        string
	TextBaseURL       string
	TextModelEndpoint string

	Models         []core.ModelProfile
	Styles         []core.StylePreset
	DefaultModelID string

	AccessCode      string
	MaxPromptLength int
	RawModeMarker   string
	EnhanceTimeout  time.Duration

	RedisURL         string
	QuotaKeyPrefix   string
	RateLimit        int
	CORSAllowOrigins []string

	HTTPClientSettings HTTPClientSettings
	Storage            core.StorageInterface
	// RedisClient is shared by quota counting and stats storage when REDIS_URL is set
	RedisClient *redis.Client
	Logger      core.Logger
}

// HTTPClientSettings HTTP client configuration
type HTTPClientSettings struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration
	RequestTimeout      time.Duration
}

// DefaultHTTPClientSettings default HTTP client settings
func DefaultHTTPClientSettings() HTTPClientSettings {
	return HTTPClientSettings{
		MaxIdleConns:        core.HTTPMaxIdleConns,
		MaxIdleConnsPerHost: core.HTTPMaxIdleConnsPerHost,
		MaxConnsPerHost:     core.HTTPMaxConnsPerHost,
		IdleConnTimeout:     core.HTTPIdleConnTimeout,
		TLSHandshakeTimeout: core.HTTPTLSHandshakeTimeout,
		RequestTimeout:      core.DefaultGenerationTimeout,
	}
}

// TextEnabled reports whether prompt enhancement is configured.
func (c *ServerConfig) TextEnabled() bool {
	return c.TextAPIKey != "" && c.TextModelEndpoint != ""
}

// Secrets returns the backend API keys that must never appear in client
// responses. The access code is left out: upstream errors never echo it and
// a short code would mask unrelated text.
func (c *ServerConfig) Secrets() []string {
	return []string{c.ImageAPIKey, c.TextAPIKey}
}

// envModelDefaults mirrors the two backends shipped by default.
var envModelDefaults = []struct {
	id    string
	name  string
	size  string
	quota int
}{
	{"model_1", "Seedream 5.0 Lite", "1920x1920", 20},
	{"model_2", "Seedream 4.0", "1024x1024", 100},
}

// LoadModelsFromEnv builds model profiles from MODEL_n_* variables.
func LoadModelsFromEnv() ([]core.ModelProfile, error) {
	var errs error
	models := make([]core.ModelProfile, 0, len(envModelDefaults))
	for i, d := range envModelDefaults {
		prefix := fmt.Sprintf("MODEL_%d_", i+1)
		quota, err := util.GetEnvInt(prefix+"DAILY_QUOTA", d.quota)
		if err != nil {
			errs = errors.Join(errs, err)
		}
		models = append(models, core.ModelProfile{
			ID:          d.id,
			DisplayName: util.GetEnvWithDefault(prefix+"NAME", d.name),
			EndpointID:  strings.TrimSpace(os.Getenv(prefix + "ENDPOINT")),
			OutputSize:  util.GetEnvWithDefault(prefix+"SIZE", d.size),
			DailyQuota:  quota,
		})
	}
	return models, errs
}

// LoadModelsConfig loads model profiles from a JSON file. Both
// {"models":[...]} and a bare array are accepted.
func LoadModelsConfig(path string) ([]core.ModelProfile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path from config, not user input
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cfg core.ModelsConfig
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		var models []core.ModelProfile
		if err := sonic.Unmarshal(data, &models); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		cfg.Models = models
	}
	return cfg.Models, nil
}

// LoadStylesConfig loads style presets from a JSON file. Both
// {"styles":[...]} and a bare array are accepted.
func LoadStylesConfig(path string) ([]core.StylePreset, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path from config, not user input
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cfg core.StylesConfig
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		var styles []core.StylePreset
		if err := sonic.Unmarshal(data, &styles); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		cfg.Styles = styles
	}
	return cfg.Styles, nil
}

// LoadServerConfigFromEnv loads server config from environment variables
func LoadServerConfigFromEnv(logger core.Logger) (ServerConfig, error) {
	if logger == nil {
		logger = &core.NopLogger{}
	}

	var (
		models []core.ModelProfile
		styles []core.StylePreset
		err    error
	)

	if path := os.Getenv("MODELS_CONFIG_PATH"); path != "" {
		models, err = LoadModelsConfig(path)
		if err != nil {
			return ServerConfig{}, err
		}
		logger.Info("Loaded %d models from %s", len(models), path)
	} else {
		models, err = LoadModelsFromEnv()
		if err != nil {
			return ServerConfig{}, err
		}
	}

	if path := os.Getenv("STYLES_CONFIG_PATH"); path != "" {
		styles, err = LoadStylesConfig(path)
		if err != nil {
			return ServerConfig{}, err
		}
		logger.Info("Loaded %d styles from %s", len(styles), path)
	} else {
		styles = catalog.BuiltinStyles()
	}

	var parseErrs error
	maxPromptLength, err := util.GetEnvInt("MAX_PROMPT_LENGTH", core.DefaultMaxPromptLength)
	parseErrs = errors.Join(parseErrs, err)
	rateLimit, err := util.GetEnvInt("RATE_LIMIT", core.DefaultRateLimit)
	parseErrs = errors.Join(parseErrs, err)
	enhanceTimeout, err := util.GetEnvDuration("ENHANCE_TIMEOUT", core.DefaultEnhanceTimeout)
	parseErrs = errors.Join(parseErrs, err)
	generationTimeout, err := util.GetEnvDuration("GENERATION_TIMEOUT", core.DefaultGenerationTimeout)
	parseErrs = errors.Join(parseErrs, err)
	if parseErrs != nil {
		return ServerConfig{}, parseErrs
	}

	httpSettings := DefaultHTTPClientSettings()
	httpSettings.RequestTimeout = generationTimeout

	cfg := ServerConfig{
		Port:               util.GetEnvWithDefault("PORT", core.DefaultPort),
		GinMode:            util.GetEnvWithDefault("GIN_MODE", core.DefaultGinMode),
		ImageAPIKey:        os.Getenv("IMAGE_GEN_API_KEY"),
		ImageBaseURL:       util.GetEnvWithDefault("ARK_BASE_URL", core.DefaultImageBaseURL),
		TextAPIKey:         os.Getenv("TEXT_GEN_API_KEY"),
		TextBaseURL:        util.GetEnvWithDefault("TEXT_GEN_BASE_URL", core.DefaultTextBaseURL),
		TextModelEndpoint:  os.Getenv("TEXT_GEN_MODEL_ENDPOINT"),
		Models:             models,
		Styles:             styles,
		DefaultModelID:     util.GetEnvWithDefault("DEFAULT_MODEL_ID", core.DefaultModelID),
		AccessCode:         os.Getenv("ACCESS_CODE"),
		MaxPromptLength:    maxPromptLength,
		RawModeMarker:      util.GetEnvWithDefault("RAW_MODE_MARKER", core.DefaultRawModeMarker),
		EnhanceTimeout:     enhanceTimeout,
		RedisURL:           os.Getenv("REDIS_URL"),
		QuotaKeyPrefix:     util.GetEnvWithDefault("QUOTA_KEY_PREFIX", core.DefaultQuotaKeyPrefix),
		RateLimit:          rateLimit,
		CORSAllowOrigins:   util.ParseEnvList(util.GetEnvWithDefault("CORS_ALLOW_ORIGIN", "*")),
		HTTPClientSettings: httpSettings,
		Logger:             logger,
	}

	if err := cfg.Validate(logger); err != nil {
		return ServerConfig{}, err
	}

	if cfg.ImageAPIKey == "" {
		logger.Warn("IMAGE_GEN_API_KEY is empty, every generation request will fail until it is configured")
	}
	if cfg.TextEnabled() {
		logger.Info("Prompt enhancement enabled (%s)", cfg.TextModelEndpoint)
	} else {
		logger.Info("Prompt enhancement disabled, style suffixes are concatenated")
	}
	if cfg.AccessCode != "" {
		logger.Info("Access code protection enabled")
	}

	return cfg, nil
}

// Validate checks the configuration once at load time. Models without an
// endpoint are dropped so the registry only holds dispatchable backends.
func (c *ServerConfig) Validate(logger core.Logger) error {
	if logger == nil {
		logger = &core.NopLogger{}
	}

	var errs error
	if c.MaxPromptLength <= 0 {
		errs = errors.Join(errs, fmt.Errorf("MAX_PROMPT_LENGTH must be positive, got %d", c.MaxPromptLength))
	}
	if strings.TrimSpace(c.RawModeMarker) == "" {
		errs = errors.Join(errs, fmt.Errorf("RAW_MODE_MARKER must not be blank"))
	}
	if c.RateLimit <= 0 {
		errs = errors.Join(errs, fmt.Errorf("RATE_LIMIT must be positive, got %d", c.RateLimit))
	}
	if c.EnhanceTimeout <= 0 {
		errs = errors.Join(errs, fmt.Errorf("ENHANCE_TIMEOUT must be positive, got %s", c.EnhanceTimeout))
	}

	configured := make([]core.ModelProfile, 0, len(c.Models))
	for _, m := range c.Models {
		if m.DailyQuota < 0 {
			errs = errors.Join(errs, fmt.Errorf("model %s: daily quota must be >= 0, got %d", m.ID, m.DailyQuota))
			continue
		}
		if !m.Configured() {
			logger.Warn("Model %s (%s) has no endpoint configured, skipping", m.ID, m.DisplayName)
			continue
		}
		configured = append(configured, m)
	}
	c.Models = configured

	if _, err := catalog.NewModelRegistry(c.Models); err != nil {
		errs = errors.Join(errs, err)
	}
	if _, err := catalog.NewStyleCatalog(c.Styles); err != nil {
		errs = errors.Join(errs, err)
	}
	if errs != nil {
		return errs
	}

	if len(c.Models) == 0 {
		logger.Warn("No image models configured, every generation request will be rejected")
		return nil
	}

	found := false
	for _, m := range c.Models {
		if m.ID == c.DefaultModelID {
			found = true
			break
		}
	}
	if !found {
		logger.Warn("Default model %q is not configured, falling back to %s", c.DefaultModelID, c.Models[0].ID)
		c.DefaultModelID = c.Models[0].ID
	}
	return nil
}
