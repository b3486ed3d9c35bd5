package util

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"imagegen/internal/core"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// MarshalJSON wraps Sonic for performance
func MarshalJSON(v any) ([]byte, error) {
	return sonic.Marshal(v)
}

// GenerateRequestID generates a prefixed unique request ID
func GenerateRequestID(prefix string) string {
	return prefix + uuid.NewString()
}

// TruncateRunes shortens s to at most n runes for log display.
func TruncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

// PromptLength counts characters, not bytes.
func PromptLength(s string) int {
	return utf8.RuneCountInString(s)
}

// EstimateTokenCount approximates tokens as one per four characters.
func EstimateTokenCount(text string) int {
	return PromptLength(text) / 4
}

// FormatSeconds renders a duration as seconds with two decimals.
func FormatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.2f", d.Seconds())
}

// MaskSecrets replaces every non-empty secret in s.
func MaskSecrets(s string, secrets ...string) string {
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		s = strings.ReplaceAll(s, secret, core.SecretMask)
	}
	return s
}

// ParseEnvList parses comma-separated env var to trimmed slice
func ParseEnvList(envVar string) []string {
	if envVar == "" {
		return nil
	}
	parts := strings.Split(envVar, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// GetEnvWithDefault gets env var with default value
func GetEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt parses an integer env var; invalid values fall back to the default.
func GetEnvInt(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid %s value '%s': %w", key, raw, err)
	}
	return value, nil
}

// GetEnvDuration parses a duration env var ("30s", "2m" or plain seconds).
func GetEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid %s value '%s': %w", key, raw, err)
	}
	return value, nil
}
