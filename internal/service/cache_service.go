package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/meemli/meemli-api/pkg/errors"
)

// Cache key namespaces. Writes to an entity invalidate its namespace.
const (
	cacheKeySessions = "meemli:sessions:"
	cacheKeyPrograms = "meemli:programs:"
	cacheKeySections = "meemli:sections:"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService caches list responses. Failures are logged and treated as misses.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get loads key into dest and reports whether it was a hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil)
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	return err == nil
}

// Set stores value under key with the default TTL.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.Set(ctx, key, value, s.defaultTTL); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops every key in the given namespaces.
func (s *CacheService) Invalidate(ctx context.Context, namespaces ...string) {
	if !s.Enabled() {
		return
	}
	for _, ns := range namespaces {
		if err := s.repo.DeleteByPattern(ctx, ns+"*"); err != nil {
			s.logger.Warn("cache invalidate failed", zap.String("pattern", ns+"*"), zap.Error(err))
		}
	}
}
