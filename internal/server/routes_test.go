package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"imagegen/internal/catalog"
	"imagegen/internal/config"
	"imagegen/internal/core"
	"imagegen/internal/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type stubGenerator struct {
	mu    sync.Mutex
	url   string
	err   error
	calls int
}

func (g *stubGenerator) GenerateImage(context.Context, string, string, string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.url, g.err
}

func contains(s, sub string) bool {
	return strings.Contains(s, sub)
}

func testConfig(st core.StorageInterface) config.ServerConfig {
	return config.ServerConfig{
		Port:    "0",
		GinMode: gin.TestMode,
		Models: []core.ModelProfile{
			{ID: "model_1", DisplayName: "Seedream 5.0 Lite", EndpointID: "ep-1", OutputSize: "1920x1920", DailyQuota: 1},
			{ID: "model_2", DisplayName: "Seedream 4.0", EndpointID: "ep-2", OutputSize: "1024x1024", DailyQuota: 100},
		},
		Styles:             catalog.BuiltinStyles(),
		DefaultModelID:     "model_2",
		MaxPromptLength:    core.DefaultMaxPromptLength,
		RawModeMarker:      core.DefaultRawModeMarker,
		EnhanceTimeout:     time.Second,
		RateLimit:          100,
		HTTPClientSettings: config.DefaultHTTPClientSettings(),
		Storage:            st,
		Logger:             &core.NopLogger{},
	}
}

func newTestServer(t *testing.T, mutate func(*config.ServerConfig), opts ...Option) (*Server, *stubGenerator) {
	t.Helper()

	st := storage.NewFileStorage(filepath.Join(t.TempDir(), "stats.json"))
	cfg := testConfig(st)
	if mutate != nil {
		mutate(&cfg)
	}

	gen := &stubGenerator{url: "https://cdn.example.com/fox.png"}
	server, err := NewServer(cfg, append([]Option{WithImageGenerator(gen)}, opts...)...)
	if err != nil {
		t.Fatalf("创建测试 Server 失败: %v", err)
	}

	t.Cleanup(func() {
		_ = server.Close()
		_ = st.Close()
	})

	return server, gen
}

func postGenerate(t *testing.T, server *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewBufferString(body))
	req.Header.Set(core.HeaderContentType, core.ContentTypeJSON)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := sonic.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("解析响应失败: %v, body=%s", err, w.Body.String())
	}
}

func TestServerRoutes_Health(t *testing.T) {
	server, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("/health 应返回 200，实际 %d", w.Code)
	}
	if !contains(w.Body.String(), `"healthy"`) {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestServerRoutes_IndexPage(t *testing.T) {
	server, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("首页应公开访问，实际 %d", w.Code)
	}
	if ct := w.Header().Get(core.HeaderContentType); !contains(ct, "text/html") {
		t.Errorf("首页应返回 HTML，实际 %s", ct)
	}
	if !contains(w.Body.String(), "/generate") {
		t.Error("首页应调用 /generate")
	}
}

func TestServerRoutes_Config(t *testing.T) {
	server, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("/config 应返回 200，实际 %d", w.Code)
	}

	var listing core.CatalogListing
	decode(t, w, &listing)
	if len(listing.Models) != 2 || listing.DefaultModel != "model_2" {
		t.Errorf("unexpected listing %+v", listing)
	}
	if listing.Styles[0].ID != core.StyleIDNone || listing.Styles[len(listing.Styles)-1].ID != core.StyleIDCustom {
		t.Errorf("none should be first and custom last, got %+v", listing.Styles)
	}
}

func TestServerRoutes_GenerateSuccess(t *testing.T) {
	server, gen := newTestServer(t, nil)

	w := postGenerate(t, server, `{"prompt":"a red fox","model_id":"model_2","style_id":"none"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d: %s", w.Code, w.Body.String())
	}

	var body map[string]any
	decode(t, w, &body)
	if body["image_url"] != "https://cdn.example.com/fox.png" {
		t.Errorf("unexpected image_url %v", body["image_url"])
	}
	if body["final_prompt"] != "a red fox" || body["style_used"] != core.StyleNameDefault || body["model_used"] != "Seedream 4.0" {
		t.Errorf("unexpected body %v", body)
	}
	debug, ok := body["debug_info"].(map[string]any)
	if !ok {
		t.Fatalf("debug_info missing: %v", body)
	}
	for _, key := range []string{"time_elapsed", "prompt_length", "estimated_tokens"} {
		if _, ok := debug[key]; !ok {
			t.Errorf("debug_info.%s missing", key)
		}
	}
	if gen.calls != 1 {
		t.Errorf("expected 1 backend call, got %d", gen.calls)
	}
}

func TestServerRoutes_GenerateErrors(t *testing.T) {
	server, _ := newTestServer(t, func(cfg *config.ServerConfig) { cfg.AccessCode = "secret" })

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"非法 JSON", `{"prompt":`, http.StatusBadRequest},
		{"错误访问码", `{"prompt":"fox","access_code":"wrong"}`, http.StatusUnauthorized},
		{"缺少提示词", `{"prompt":"","access_code":"secret"}`, http.StatusBadRequest},
		{"未知模型", `{"prompt":"fox","model_id":"x","access_code":"secret"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postGenerate(t, server, tt.body)
			if w.Code != tt.status {
				t.Errorf("期望 %d，实际 %d: %s", tt.status, w.Code, w.Body.String())
			}
			var resp core.ErrorResponse
			decode(t, w, &resp)
			if resp.Error == "" {
				t.Error("error message should not be empty")
			}
		})
	}
}

func TestServerRoutes_AccessCodeHeader(t *testing.T) {
	server, _ := newTestServer(t, func(cfg *config.ServerConfig) { cfg.AccessCode = "secret" })

	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewBufferString(`{"prompt":"a red fox"}`))
	req.Header.Set(core.HeaderContentType, core.ContentTypeJSON)
	req.Header.Set(core.HeaderAccessCode, "secret")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("header access code should be accepted, got %d", w.Code)
	}
}

func TestServerRoutes_QuotaExhausted(t *testing.T) {
	server, _ := newTestServer(t, nil)

	if w := postGenerate(t, server, `{"prompt":"fox","model_id":"model_1"}`); w.Code != http.StatusOK {
		t.Fatalf("first request should succeed, got %d", w.Code)
	}
	w := postGenerate(t, server, `{"prompt":"fox","model_id":"model_1"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should hit quota, got %d", w.Code)
	}
}

func TestServerRoutes_UpstreamError(t *testing.T) {
	server, gen := newTestServer(t, nil)
	gen.err = errors.New("backend returned status 500: overloaded")

	w := postGenerate(t, server, `{"prompt":"fox"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	if !contains(w.Body.String(), "overloaded") {
		t.Errorf("upstream details should be surfaced, body=%s", w.Body.String())
	}
}

func TestServerRoutes_NoCredential(t *testing.T) {
	st := storage.NewFileStorage(filepath.Join(t.TempDir(), "stats.json"))
	server, err := NewServer(testConfig(st))
	if err != nil {
		t.Fatalf("创建测试 Server 失败: %v", err)
	}
	defer func() { _ = server.Close() }()

	w := postGenerate(t, server, `{"prompt":"fox"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 without credential, got %d", w.Code)
	}
	if !contains(w.Body.String(), string(core.KindConfiguration)) {
		t.Errorf("expected configuration error kind, body=%s", w.Body.String())
	}
}

func TestServerRoutes_RateLimit(t *testing.T) {
	server, _ := newTestServer(t, func(cfg *config.ServerConfig) { cfg.RateLimit = 1 })

	if w := postGenerate(t, server, `{"prompt":"fox"}`); w.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", w.Code)
	}
	if w := postGenerate(t, server, `{"prompt":"fox"}`); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be throttled, got %d", w.Code)
	}
}

func TestServerRoutes_Stats(t *testing.T) {
	server, _ := newTestServer(t, nil)
	postGenerate(t, server, `{"prompt":"fox","model_id":"model_1"}`)
	postGenerate(t, server, `{"prompt":"fox","model_id":"model_1"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("/api/stats 应公开访问，实际 %d", w.Code)
	}

	var body struct {
		TotalRequests   int64 `json:"totalRequests"`
		QuotaRejections int64 `json:"quotaRejections"`
		Quota           []struct {
			Model string `json:"model"`
			Used  int    `json:"used"`
			Limit int    `json:"limit"`
		} `json:"quota"`
	}
	decode(t, w, &body)
	if body.TotalRequests != 1 || body.QuotaRejections != 1 {
		t.Errorf("unexpected totals: %+v", body)
	}
	if len(body.Quota) != 2 || body.Quota[0].Model != "model_1" || body.Quota[0].Used != 1 || body.Quota[0].Limit != 1 {
		t.Errorf("unexpected quota usage: %+v", body.Quota)
	}
}

func TestServerRoutes_RedisQuotaSharedAcrossServers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	withRedis := func(cfg *config.ServerConfig) {
		cfg.RedisClient = client
		cfg.QuotaKeyPrefix = "test:quota"
	}
	first, _ := newTestServer(t, withRedis)
	second, _ := newTestServer(t, withRedis)

	if w := postGenerate(t, first, `{"prompt":"fox","model_id":"model_1"}`); w.Code != http.StatusOK {
		t.Fatalf("first replica should succeed, got %d", w.Code)
	}
	if w := postGenerate(t, second, `{"prompt":"fox","model_id":"model_1"}`); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second replica should see the shared quota, got %d", w.Code)
	}
}

func TestServerRoutes_QuotaRollover(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 3, 14, 23, 59, 0, 0, time.Local)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	server, _ := newTestServer(t, nil, WithQuotaClock(clock))

	postGenerate(t, server, `{"prompt":"fox","model_id":"model_1"}`)
	if w := postGenerate(t, server, `{"prompt":"fox","model_id":"model_1"}`); w.Code != http.StatusTooManyRequests {
		t.Fatalf("quota should be exhausted, got %d", w.Code)
	}

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	if w := postGenerate(t, server, `{"prompt":"fox","model_id":"model_1"}`); w.Code != http.StatusOK {
		t.Fatalf("quota should reset on a new day, got %d", w.Code)
	}
}

type spyStorage struct {
	mu       sync.Mutex
	saveCall int
	lastStat core.GenerationStats
}

func (s *spyStorage) SaveStats(stats *core.GenerationStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saveCall++
	if stats != nil {
		s.lastStat = *stats
		s.lastStat.History = append([]core.GenerationRecord(nil), stats.History...)
	}
	return nil
}

func (s *spyStorage) LoadStats() (*core.GenerationStats, error) {
	return &core.GenerationStats{}, nil
}

func (s *spyStorage) Close() error {
	return nil
}

func (s *spyStorage) snapshot() (int, core.GenerationStats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	statsCopy := s.lastStat
	statsCopy.History = append([]core.GenerationRecord(nil), s.lastStat.History...)
	return s.saveCall, statsCopy
}

func TestServerClose_PersistsBufferedMetrics(t *testing.T) {
	st := &spyStorage{}
	server, err := NewServer(testConfig(st), WithImageGenerator(&stubGenerator{url: "u"}))
	if err != nil {
		t.Fatalf("创建测试 Server 失败: %v", err)
	}

	server.metricsService.RecordGeneration(core.GenerationRecord{Success: true, ResponseTime: 10, Model: "model_1"})
	server.metricsService.RecordGeneration(core.GenerationRecord{Success: false, ResponseTime: 20, Model: "model_1"})

	beforeSaves, beforeStats := st.snapshot()
	if beforeStats.TotalRequests != 1 {
		t.Fatalf("关闭前应只持久化首条记录，实际 total=%d", beforeStats.TotalRequests)
	}

	if err := server.Close(); err != nil {
		t.Fatalf("关闭 Server 失败: %v", err)
	}

	afterSaves, afterStats := st.snapshot()
	if afterSaves <= beforeSaves {
		t.Fatalf("关闭后应触发最终持久化，save 次数 %d -> %d", beforeSaves, afterSaves)
	}
	if afterStats.TotalRequests != 2 {
		t.Fatalf("关闭后应持久化全部请求，实际 total=%d", afterStats.TotalRequests)
	}
	if len(afterStats.History) != 2 {
		t.Fatalf("关闭后应持久化完整历史，实际 history=%d", len(afterStats.History))
	}
}

func TestServerClose_Idempotent(t *testing.T) {
	server, _ := newTestServer(t, nil)

	if err := server.Close(); err != nil {
		t.Fatalf("第一次关闭失败: %v", err)
	}
	if err := server.Close(); err != nil {
		t.Fatalf("第二次关闭失败: %v", err)
	}
}

func TestNewServer_RequiresLoggerAndStorage(t *testing.T) {
	cfg := testConfig(nil)
	if _, err := NewServer(cfg); err == nil {
		t.Error("storage should be required")
	}
	cfg = testConfig(&spyStorage{})
	cfg.Logger = nil
	if _, err := NewServer(cfg); err == nil {
		t.Error("logger should be required")
	}
}
