// Package backend adapts OpenAI-compatible image and chat APIs to the
// generation capabilities used by the dispatcher.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"imagegen/internal/config"
	"imagegen/internal/core"

	openai "github.com/sashabaranov/go-openai"
)

// NewHTTPClient creates a pooled HTTP client for backend calls.
func NewHTTPClient(settings config.HTTPClientSettings) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          settings.MaxIdleConns,
		MaxIdleConnsPerHost:   settings.MaxIdleConnsPerHost,
		MaxConnsPerHost:       settings.MaxConnsPerHost,
		IdleConnTimeout:       settings.IdleConnTimeout,
		TLSHandshakeTimeout:   settings.TLSHandshakeTimeout,
		ExpectContinueTimeout: core.HTTPExpectContinueTimeout,
		ForceAttemptHTTP2:     true,
		ResponseHeaderTimeout: core.HTTPResponseHeaderTimeout,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   settings.RequestTimeout,
	}
}

func newOpenAIClient(apiKey, baseURL string, httpClient *http.Client) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return openai.NewClientWithConfig(cfg)
}

// ImageClient calls the images/generations endpoint.
type ImageClient struct {
	client *openai.Client
	logger core.Logger
}

// NewImageClient creates an image generation client.
func NewImageClient(apiKey, baseURL string, httpClient *http.Client, logger core.Logger) *ImageClient {
	if logger == nil {
		logger = &core.NopLogger{}
	}
	return &ImageClient{client: newOpenAIClient(apiKey, baseURL, httpClient), logger: logger}
}

// GenerateImage requests a single image and returns its URL. An empty URL
// with a nil error means the backend returned no image data.
func (c *ImageClient) GenerateImage(ctx context.Context, endpointID, prompt, size string) (string, error) {
	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Model:          endpointID,
		Prompt:         prompt,
		Size:           size,
		N:              core.ImagesPerRequest,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", describeError(err)
	}

	for _, item := range resp.Data {
		if item.URL != "" {
			return item.URL, nil
		}
	}
	c.logger.Warn("Image backend %s returned %d items without a URL", endpointID, len(resp.Data))
	return "", nil
}

// TextClient calls the chat/completions endpoint.
type TextClient struct {
	client     *openai.Client
	endpointID string
}

// NewTextClient creates a chat completion client bound to endpointID.
func NewTextClient(apiKey, baseURL, endpointID string, httpClient *http.Client) *TextClient {
	return &TextClient{client: newOpenAIClient(apiKey, baseURL, httpClient), endpointID: endpointID}
}

// CompleteText sends a system and user message pair and returns the first choice.
func (c *TextClient) CompleteText(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.endpointID,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
		Temperature: core.EnhanceTemperature,
	})
	if err != nil {
		return "", describeError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// describeError flattens go-openai errors into status and message.
func describeError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("backend returned status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("backend returned status %d: %w", reqErr.HTTPStatusCode, reqErr.Err)
	}
	return err
}
