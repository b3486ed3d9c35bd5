package metrics

import (
	"sync"
	"testing"
	"time"

	"imagegen/internal/core"
)

type countingStorage struct {
	mu        sync.Mutex
	saveCount int
	loaded    *core.GenerationStats
	last      *core.GenerationStats
}

func (s *countingStorage) SaveStats(stats *core.GenerationStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCount++
	s.last = stats
	return nil
}

func (s *countingStorage) LoadStats() (*core.GenerationStats, error) {
	if s.loaded != nil {
		return s.loaded, nil
	}
	return &core.GenerationStats{}, nil
}

func (s *countingStorage) Close() error { return nil }

func (s *countingStorage) getSaveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveCount
}

func newTestService(storage core.StorageInterface, historySize int) *MetricsService {
	return NewMetricsService(MetricsConfig{
		SaveInterval: time.Second,
		HistorySize:  historySize,
		Storage:      storage,
		Logger:       &core.NopLogger{},
	})
}

func TestNewMetricsService(t *testing.T) {
	ms := newTestService(nil, 10)
	defer func() { _ = ms.Close() }()

	if ms == nil {
		t.Fatal("MetricsService should not be nil")
	}
}

func TestMetricsService_RecordGeneration(t *testing.T) {
	ms := newTestService(nil, 10)
	defer func() { _ = ms.Close() }()

	ms.RecordGeneration(core.GenerationRecord{Success: true, ResponseTime: 100, Model: "model_1"})
	ms.RecordGeneration(core.GenerationRecord{Success: false, ResponseTime: 200, Model: "model_2", ErrorKind: string(core.KindUpstream)})
	ms.RecordGeneration(core.GenerationRecord{Success: true, ResponseTime: 150, Model: "model_2"})

	stats := ms.GetGenerationStats()
	if stats.TotalRequests != 3 {
		t.Errorf("Expected 3 total requests, got %d", stats.TotalRequests)
	}
	if stats.SuccessfulRequests != 2 {
		t.Errorf("Expected 2 successful requests, got %d", stats.SuccessfulRequests)
	}
	if stats.FailedRequests != 1 {
		t.Errorf("Expected 1 failed request, got %d", stats.FailedRequests)
	}
	if stats.TotalResponseTime != 450 {
		t.Errorf("Expected total response time 450, got %d", stats.TotalResponseTime)
	}
	if len(stats.History) != 3 {
		t.Errorf("Expected 3 history records, got %d", len(stats.History))
	}
	for _, r := range stats.History {
		if r.Timestamp.IsZero() {
			t.Error("Timestamp should be filled in")
		}
	}
}

func TestMetricsService_QuotaAndEnhancementCounters(t *testing.T) {
	ms := newTestService(nil, 10)
	defer func() { _ = ms.Close() }()

	ms.RecordQuotaRejection("model_1")
	ms.RecordQuotaRejection("model_1")
	ms.RecordEnhancement(true)
	ms.RecordEnhancement(false)

	stats := ms.GetGenerationStats()
	if stats.QuotaRejections != 2 {
		t.Errorf("Expected 2 quota rejections, got %d", stats.QuotaRejections)
	}
	if stats.EnhancementFailures != 1 {
		t.Errorf("Expected 1 enhancement failure, got %d", stats.EnhancementFailures)
	}
	if ms.SuccessfulEnhancements() != 1 {
		t.Errorf("Expected 1 successful enhancement, got %d", ms.SuccessfulEnhancements())
	}
}

func TestMetricsService_CacheHitRate(t *testing.T) {
	ms := newTestService(nil, 10)
	defer func() { _ = ms.Close() }()

	if ms.CacheHitRate() != 0 {
		t.Error("空统计命中率应为 0")
	}
	ms.RecordCacheHit()
	ms.RecordCacheMiss()
	ms.RecordCacheMiss()
	ms.RecordCacheMiss()
	if rate := ms.CacheHitRate(); rate != 25 {
		t.Errorf("Expected 25%% hit rate, got %f", rate)
	}
}

func TestMetricsService_GetQPS(t *testing.T) {
	ms := newTestService(nil, 10)
	defer func() { _ = ms.Close() }()

	if qps := ms.GetQPS(); qps != 0 {
		t.Errorf("QPS should be 0 without requests, got %f", qps)
	}
	for i := 0; i < 6; i++ {
		ms.RecordGeneration(core.GenerationRecord{Success: true})
	}
	if qps := ms.GetQPS(); qps != 0.1 {
		t.Errorf("Expected QPS 0.1, got %f", qps)
	}
}

func TestMetricsService_MaxHistorySize(t *testing.T) {
	ms := newTestService(nil, 3)
	defer func() { _ = ms.Close() }()

	for i := 0; i < 5; i++ {
		ms.RecordGeneration(core.GenerationRecord{Success: true, ResponseTime: 100, Model: "model"})
	}

	stats := ms.GetGenerationStats()
	if len(stats.History) != 3 {
		t.Errorf("History should be capped at 3, got %d", len(stats.History))
	}
}

func TestMetricsService_DefaultHistorySize(t *testing.T) {
	ms := newTestService(nil, 0)
	defer func() { _ = ms.Close() }()

	if ms.maxHistorySize != core.HistoryBufferSize {
		t.Errorf("Expected default history size %d, got %d", core.HistoryBufferSize, ms.maxHistorySize)
	}
}

func TestRecordSuccessWithMetrics(t *testing.T) {
	ms := newTestService(nil, 10)
	defer func() { _ = ms.Close() }()

	RecordSuccessWithMetrics(ms, time.Now(), "model_2", "none", core.PromptModeStyled)

	stats := ms.GetGenerationStats()
	if stats.SuccessfulRequests != 1 {
		t.Errorf("Expected 1 successful request, got %d", stats.SuccessfulRequests)
	}
	if stats.History[0].PromptMode != core.PromptModeStyled {
		t.Errorf("Unexpected prompt mode %q", stats.History[0].PromptMode)
	}
}

func TestRecordFailureWithMetrics(t *testing.T) {
	ms := newTestService(nil, 10)
	defer func() { _ = ms.Close() }()

	RecordFailureWithMetrics(ms, time.Now(), "model_2", "none", core.KindUpstream)

	stats := ms.GetGenerationStats()
	if stats.FailedRequests != 1 {
		t.Errorf("Expected 1 failed request, got %d", stats.FailedRequests)
	}
	if stats.History[0].ErrorKind != string(core.KindUpstream) {
		t.Errorf("Unexpected error kind %q", stats.History[0].ErrorKind)
	}
}

func TestGetPeriodStats(t *testing.T) {
	now := time.Now()
	history := []core.GenerationRecord{
		{Timestamp: now.Add(-10 * time.Minute), Success: true, ResponseTime: 100},
		{Timestamp: now.Add(-30 * time.Minute), Success: false, ResponseTime: 300},
		{Timestamp: now.Add(-5 * time.Hour), Success: true, ResponseTime: 500},
	}

	periods := GetPeriodStats(history, 1, 24)
	if periods[1].Requests != 2 || periods[24].Requests != 3 {
		t.Errorf("Unexpected request counts: %+v", periods)
	}
	if periods[1].SuccessRate != 50 {
		t.Errorf("Expected 50%% success rate, got %f", periods[1].SuccessRate)
	}
	if periods[1].AvgResponseTime != 200 {
		t.Errorf("Expected avg 200ms, got %d", periods[1].AvgResponseTime)
	}
	if GetPeriodStats(history) != nil {
		t.Error("No periods should return nil")
	}
}

func TestGetModelUsage(t *testing.T) {
	usage := GetModelUsage([]core.GenerationRecord{
		{Model: "model_2", Success: true},
		{Model: "model_1", Success: false},
		{Model: "model_2", Success: false},
	})
	if len(usage) != 2 {
		t.Fatalf("Expected 2 models, got %d", len(usage))
	}
	if usage[0].Model != "model_2" || usage[0].Requests != 2 || usage[0].Successful != 1 {
		t.Errorf("Unexpected first entry %+v", usage[0])
	}
}

func TestMetricsService_LoadStats(t *testing.T) {
	st := &countingStorage{loaded: &core.GenerationStats{
		TotalRequests:   7,
		QuotaRejections: 2,
		History:         []core.GenerationRecord{{Model: "model_1", Success: true, Timestamp: time.Now()}},
	}}
	ms := newTestService(st, 10)
	defer func() { _ = ms.Close() }()

	if err := ms.LoadStats(); err != nil {
		t.Fatalf("LoadStats failed: %v", err)
	}
	stats := ms.GetGenerationStats()
	if stats.TotalRequests != 7 || stats.QuotaRejections != 2 || len(stats.History) != 1 {
		t.Errorf("Unexpected loaded stats: %+v", stats)
	}
}

func TestMetricsService_Close_Idempotent(t *testing.T) {
	st := &countingStorage{}
	ms := newTestService(st, 10)

	ms.RecordGeneration(core.GenerationRecord{Success: true, ResponseTime: 10, Model: "model_1"})

	if err := ms.Close(); err != nil {
		t.Fatalf("第一次关闭不应失败: %v", err)
	}
	firstCloseSaves := st.getSaveCount()
	if firstCloseSaves == 0 {
		t.Fatal("第一次关闭后应至少有一次持久化")
	}

	if err := ms.Close(); err != nil {
		t.Fatalf("第二次关闭不应失败: %v", err)
	}

	if st.getSaveCount() != firstCloseSaves {
		t.Fatalf("第二次 Close 不应新增持久化，第一次=%d，第二次后=%d", firstCloseSaves, st.getSaveCount())
	}
}
