package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
	"github.com/Milankumar13/automated-timetable-backend/pkg/config"
	appErrors "github.com/Milankumar13/automated-timetable-backend/pkg/errors"
)

type occupancyCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	OccupancyKey(tenantID, slotID string) string
}

// AvailabilityService serves the read-only occupancy view of slots. Reads go
// through Redis with a short TTL; the snapshot may lag the live index by one
// transaction, which callers accept in exchange for not contending on locks.
type AvailabilityService struct {
	conflicts *ConflictIndex
	cache     occupancyCache
	ttl       time.Duration
	logger    *zap.Logger
}

// NewAvailabilityService wires the occupancy view. cache may be nil, in which
// case every read hits the database.
func NewAvailabilityService(conflicts *ConflictIndex, cache occupancyCache, cfg config.EngineConfig, logger *zap.Logger) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.OccupancyCacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &AvailabilityService{conflicts: conflicts, cache: cache, ttl: ttl, logger: logger}
}

// SlotOccupancy returns which rooms and professors are taken in a slot.
func (s *AvailabilityService) SlotOccupancy(ctx context.Context, tenantID, slotID string) (*models.SlotOccupancy, error) {
	if s.cache != nil {
		var cached models.SlotOccupancy
		key := s.cache.OccupancyKey(tenantID, slotID)
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("occupancy cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	occupancy, err := s.conflicts.QueryPlanOccupancy(ctx, tenantID, slotID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query slot occupancy")
	}

	if s.cache != nil {
		key := s.cache.OccupancyKey(tenantID, slotID)
		if err := s.cache.Set(ctx, key, occupancy, s.ttl); err != nil {
			s.logger.Warn("occupancy cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return occupancy, nil
}
