package core

import "time"

// Timeout constants
const (
	DefaultEnhanceTimeout    = 30 * time.Second
	DefaultGenerationTimeout = 2 * time.Minute
	ProbeTimeout             = 10 * time.Second
)

// HTTP client config constants
const (
	HTTPMaxIdleConns          = 100
	HTTPMaxIdleConnsPerHost   = 20
	HTTPMaxConnsPerHost       = 50
	HTTPIdleConnTimeout       = 90 * time.Second
	HTTPTLSHandshakeTimeout   = 30 * time.Second
	HTTPResponseHeaderTimeout = 2 * time.Minute
	HTTPExpectContinueTimeout = 5 * time.Second
)

// Cache config constants
const (
	CacheDefaultCapacity = 1000
	CacheCleanupInterval = 5 * time.Minute
	EnhancementCacheTTL  = 10 * time.Minute
	CacheKeyVersion      = "v1"
)

// Quota store constants
const (
	QuotaKeyTTL = 48 * time.Hour
)

// Stats and monitoring constants
const (
	StatsFilePath        = "stats.json"
	StatsRedisKey        = "imagegen:stats"
	MinSaveInterval      = 5 * time.Second
	HistoryBufferSize    = 1000
	HistoryBatchSize     = 100
	HistoryFlushInterval = 100 * time.Millisecond
)

// Request limits
const (
	MaxBodySize           = 1 << 20
	RateLimitWindow       = time.Minute
	RateLimitCleanupEvery = 5 * time.Minute
)
