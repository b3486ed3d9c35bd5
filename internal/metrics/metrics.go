package metrics

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"imagegen/internal/core"
)

// AtomicGenerationStats thread-safe generation counters
type AtomicGenerationStats struct {
	TotalRequests       atomic.Int64
	SuccessfulRequests  atomic.Int64
	FailedRequests      atomic.Int64
	QuotaRejections     atomic.Int64
	EnhancementFailures atomic.Int64
	TotalResponseTime   atomic.Int64
}

// MetricsConfig configuration for MetricsService
type MetricsConfig struct {
	SaveInterval time.Duration
	HistorySize  int
	Storage      core.StorageInterface
	Logger       core.Logger
}

// MetricsService collects and manages metrics
type MetricsService struct {
	atomicStats      AtomicGenerationStats
	enhancements     atomic.Int64
	cacheHits        atomic.Int64
	cacheMisses      atomic.Int64
	history          []core.GenerationRecord
	historyMu        sync.RWMutex
	lastRequestTime  time.Time
	maxHistorySize   int
	storage          core.StorageInterface
	logger           core.Logger
	lastSaveTime     time.Time
	minSaveInterval  time.Duration
	done             chan struct{}
	closeOnce        sync.Once
	closeErr         error
	historyBuffer    []core.GenerationRecord
	bufferMu         sync.Mutex
	bufferFlushTimer *time.Ticker
	recentRequests   []time.Time
	recentMu         sync.Mutex
}

// NewMetricsService creates a new MetricsService
func NewMetricsService(config MetricsConfig) *MetricsService {
	if config.HistorySize <= 0 {
		config.HistorySize = core.HistoryBufferSize
	}
	if config.Logger == nil {
		config.Logger = &core.NopLogger{}
	}
	ms := &MetricsService{
		maxHistorySize:  config.HistorySize,
		storage:         config.Storage,
		logger:          config.Logger,
		minSaveInterval: config.SaveInterval,
		done:            make(chan struct{}),
		historyBuffer:   make([]core.GenerationRecord, 0, core.HistoryBatchSize),
	}

	ms.bufferFlushTimer = time.NewTicker(core.HistoryFlushInterval)
	go ms.flushLoop()

	return ms
}

func (ms *MetricsService) flushLoop() {
	for {
		select {
		case <-ms.bufferFlushTimer.C:
			ms.flushBuffer()
		case <-ms.done:
			return
		}
	}
}

func (ms *MetricsService) flushBuffer() {
	ms.bufferMu.Lock()
	if len(ms.historyBuffer) == 0 {
		ms.bufferMu.Unlock()
		return
	}
	batch := ms.historyBuffer
	ms.historyBuffer = make([]core.GenerationRecord, 0, core.HistoryBatchSize)
	ms.bufferMu.Unlock()

	ms.historyMu.Lock()
	ms.history = append(ms.history, batch...)
	if len(ms.history) > ms.maxHistorySize {
		ms.history = ms.history[len(ms.history)-ms.maxHistorySize:]
	}
	ms.historyMu.Unlock()
}

// trimRecent drops entries older than one minute; caller must hold recentMu
func (ms *MetricsService) trimRecent(now time.Time) {
	cutoff := now.Add(-1 * time.Minute)
	startIdx := 0
	for startIdx < len(ms.recentRequests) && ms.recentRequests[startIdx].Before(cutoff) {
		startIdx++
	}
	if startIdx > 0 {
		newRecent := make([]time.Time, len(ms.recentRequests)-startIdx)
		copy(newRecent, ms.recentRequests[startIdx:])
		ms.recentRequests = newRecent
	}
}

// RecordGeneration records one dispatch outcome
func (ms *MetricsService) RecordGeneration(record core.GenerationRecord) {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	ms.historyMu.Lock()
	ms.lastRequestTime = record.Timestamp
	ms.historyMu.Unlock()
	ms.atomicStats.TotalRequests.Add(1)
	ms.atomicStats.TotalResponseTime.Add(record.ResponseTime)

	if record.Success {
		ms.atomicStats.SuccessfulRequests.Add(1)
	} else {
		ms.atomicStats.FailedRequests.Add(1)
	}

	ms.recentMu.Lock()
	ms.recentRequests = append(ms.recentRequests, record.Timestamp)
	ms.trimRecent(time.Now())
	ms.recentMu.Unlock()

	ms.bufferMu.Lock()
	ms.historyBuffer = append(ms.historyBuffer, record)
	shouldFlush := len(ms.historyBuffer) >= core.HistoryBatchSize
	ms.bufferMu.Unlock()

	if shouldFlush {
		ms.flushBuffer()
	}

	ms.SaveStatsDebounced()
}

// RecordQuotaRejection records a request denied by the daily quota
func (ms *MetricsService) RecordQuotaRejection(modelID string) {
	ms.atomicStats.QuotaRejections.Add(1)
	ms.logger.Debug("Quota rejection recorded for %s", modelID)
}

// RecordEnhancement records a prompt enhancement attempt
func (ms *MetricsService) RecordEnhancement(success bool) {
	if success {
		ms.enhancements.Add(1)
		return
	}
	ms.atomicStats.EnhancementFailures.Add(1)
}

// RecordCacheHit records cache hit
func (ms *MetricsService) RecordCacheHit() {
	ms.cacheHits.Add(1)
}

// RecordCacheMiss records cache miss
func (ms *MetricsService) RecordCacheMiss() {
	ms.cacheMisses.Add(1)
}

// CacheHitRate returns the enhancement cache hit rate in percent
func (ms *MetricsService) CacheHitRate() float64 {
	hits := ms.cacheHits.Load()
	total := hits + ms.cacheMisses.Load()
	if total == 0 {
		return 0
	}
	return math.Round(float64(hits)/float64(total)*10000) / 100
}

// SuccessfulEnhancements returns how many rewrites succeeded since start
func (ms *MetricsService) SuccessfulEnhancements() int64 {
	return ms.enhancements.Load()
}

// GetQPS returns current QPS
func (ms *MetricsService) GetQPS() float64 {
	ms.recentMu.Lock()
	defer ms.recentMu.Unlock()

	ms.trimRecent(time.Now())
	if len(ms.recentRequests) == 0 {
		return 0
	}

	return math.Round(float64(len(ms.recentRequests))/60.0*1000) / 1000
}

// GetGenerationStats returns current stats snapshot
func (ms *MetricsService) GetGenerationStats() core.GenerationStats {
	ms.flushBuffer()
	ms.historyMu.RLock()
	defer ms.historyMu.RUnlock()

	historyCopy := make([]core.GenerationRecord, len(ms.history))
	copy(historyCopy, ms.history)

	return core.GenerationStats{
		TotalRequests:       ms.atomicStats.TotalRequests.Load(),
		SuccessfulRequests:  ms.atomicStats.SuccessfulRequests.Load(),
		FailedRequests:      ms.atomicStats.FailedRequests.Load(),
		QuotaRejections:     ms.atomicStats.QuotaRejections.Load(),
		EnhancementFailures: ms.atomicStats.EnhancementFailures.Load(),
		TotalResponseTime:   ms.atomicStats.TotalResponseTime.Load(),
		LastRequestTime:     ms.lastRequestTime,
		History:             historyCopy,
	}
}

// GetPeriodStats computes period statistics for multiple hour windows in a single pass.
func GetPeriodStats(history []core.GenerationRecord, hourPeriods ...int) map[int]core.PeriodStats {
	if len(hourPeriods) == 0 {
		return nil
	}

	now := time.Now()
	cutoffs := make([]time.Time, len(hourPeriods))
	requests := make([]int64, len(hourPeriods))
	successful := make([]int64, len(hourPeriods))
	responseTime := make([]int64, len(hourPeriods))

	for i, hours := range hourPeriods {
		cutoffs[i] = now.Add(-time.Duration(hours) * time.Hour)
	}

	for _, record := range history {
		for i, cutoff := range cutoffs {
			if record.Timestamp.After(cutoff) {
				requests[i]++
				responseTime[i] += record.ResponseTime
				if record.Success {
					successful[i]++
				}
			}
		}
	}

	result := make(map[int]core.PeriodStats, len(hourPeriods))
	for i, hours := range hourPeriods {
		stats := core.PeriodStats{
			Requests: requests[i],
			QPS:      float64(requests[i]) / (float64(hours) * 3600.0),
		}
		if requests[i] > 0 {
			stats.SuccessRate = float64(successful[i]) / float64(requests[i]) * 100
			stats.AvgResponseTime = responseTime[i] / requests[i]
		}
		result[hours] = stats
	}
	return result
}

// ModelUsage counts generations per model in history
type ModelUsage struct {
	Model      string `json:"model"`
	Requests   int64  `json:"requests"`
	Successful int64  `json:"successful"`
}

// GetModelUsage aggregates history by model, busiest first.
func GetModelUsage(history []core.GenerationRecord) []ModelUsage {
	byModel := make(map[string]*ModelUsage)
	for _, record := range history {
		u, ok := byModel[record.Model]
		if !ok {
			u = &ModelUsage{Model: record.Model}
			byModel[record.Model] = u
		}
		u.Requests++
		if record.Success {
			u.Successful++
		}
	}

	out := make([]ModelUsage, 0, len(byModel))
	for _, u := range byModel {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Requests != out[j].Requests {
			return out[i].Requests > out[j].Requests
		}
		return out[i].Model < out[j].Model
	})
	return out
}

// LoadStats loads stats from storage
func (ms *MetricsService) LoadStats() error {
	if ms.storage == nil {
		return nil
	}
	stats, err := ms.storage.LoadStats()
	if err != nil {
		return err
	}

	ms.atomicStats.TotalRequests.Store(stats.TotalRequests)
	ms.atomicStats.SuccessfulRequests.Store(stats.SuccessfulRequests)
	ms.atomicStats.FailedRequests.Store(stats.FailedRequests)
	ms.atomicStats.QuotaRejections.Store(stats.QuotaRejections)
	ms.atomicStats.EnhancementFailures.Store(stats.EnhancementFailures)
	ms.atomicStats.TotalResponseTime.Store(stats.TotalResponseTime)

	ms.historyMu.Lock()
	ms.lastRequestTime = stats.LastRequestTime
	ms.history = stats.History
	if len(ms.history) > ms.maxHistorySize {
		ms.history = ms.history[len(ms.history)-ms.maxHistorySize:]
	}
	ms.historyMu.Unlock()

	return nil
}

// SaveStatsDebounced saves stats with debounce
func (ms *MetricsService) SaveStatsDebounced() {
	now := time.Now()
	ms.historyMu.Lock()
	if now.Sub(ms.lastSaveTime) < ms.minSaveInterval {
		ms.historyMu.Unlock()
		return
	}
	ms.lastSaveTime = now
	ms.historyMu.Unlock()

	if ms.storage == nil {
		return
	}

	stats := ms.GetGenerationStats()
	if err := ms.storage.SaveStats(&stats); err != nil {
		ms.logger.Warn("Failed to save stats: %v", err)
	}
}

// Close saves final stats and stops. Subsequent calls return the first result.
func (ms *MetricsService) Close() error {
	ms.closeOnce.Do(func() {
		close(ms.done)
		ms.bufferFlushTimer.Stop()
		ms.flushBuffer()

		if ms.storage != nil {
			stats := ms.GetGenerationStats()
			ms.closeErr = ms.storage.SaveStats(&stats)
		}
	})
	return ms.closeErr
}

// RecordSuccessWithMetrics records successful generation
func RecordSuccessWithMetrics(metrics core.MetricsCollector, startTime time.Time, model, style, mode string) {
	metrics.RecordGeneration(core.GenerationRecord{
		Timestamp:    time.Now(),
		Success:      true,
		ResponseTime: time.Since(startTime).Milliseconds(),
		Model:        model,
		Style:        style,
		PromptMode:   mode,
	})
}

// RecordFailureWithMetrics records failed generation
func RecordFailureWithMetrics(metrics core.MetricsCollector, startTime time.Time, model, style string, kind core.ErrorKind) {
	metrics.RecordGeneration(core.GenerationRecord{
		Timestamp:    time.Now(),
		Success:      false,
		ResponseTime: time.Since(startTime).Milliseconds(),
		Model:        model,
		Style:        style,
		ErrorKind:    string(kind),
	})
}
