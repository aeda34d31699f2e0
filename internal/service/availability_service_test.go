package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
	"github.com/Milankumar13/automated-timetable-backend/pkg/config"
	appErrors "github.com/Milankumar13/automated-timetable-backend/pkg/errors"
)

func TestAvailabilityServiceQueriesIndexOnMiss(t *testing.T) {
	plans := &conflictPlanReaderStub{
		active: []models.ClassPlan{{ID: "plan-1", RoomID: "room-a", ProfessorID: "prof-a", SlotID: testSlotID}},
	}
	cache := newOccupancyCacheStub()
	svc := newAvailabilityFixture(plans, cache)

	occupancy, err := svc.SlotOccupancy(context.Background(), testTenantID, testSlotID)
	require.NoError(t, err)
	require.Len(t, occupancy.Rooms, 1)
	assert.Equal(t, "room-a", occupancy.Rooms[0].ID)
	assert.Equal(t, 1, cache.sets, "a miss populates the cache")
}

func TestAvailabilityServiceServesCachedSnapshot(t *testing.T) {
	plans := &conflictPlanReaderStub{
		active: []models.ClassPlan{{ID: "plan-1", RoomID: "room-a", ProfessorID: "prof-a", SlotID: testSlotID}},
	}
	cache := newOccupancyCacheStub()
	svc := newAvailabilityFixture(plans, cache)

	_, err := svc.SlotOccupancy(context.Background(), testTenantID, testSlotID)
	require.NoError(t, err)

	// The second read is served from the cache even though the live index
	// changed underneath.
	plans.active = append(plans.active, models.ClassPlan{ID: "plan-2", RoomID: "room-b", ProfessorID: "prof-b", SlotID: testSlotID})
	occupancy, err := svc.SlotOccupancy(context.Background(), testTenantID, testSlotID)
	require.NoError(t, err)
	assert.Len(t, occupancy.Rooms, 1)
	assert.Equal(t, 1, cache.sets)
}

func TestAvailabilityServiceWorksWithoutCache(t *testing.T) {
	plans := &conflictPlanReaderStub{}
	svc := newAvailabilityFixture(plans, nil)

	occupancy, err := svc.SlotOccupancy(context.Background(), testTenantID, testSlotID)
	require.NoError(t, err)
	assert.Empty(t, occupancy.Rooms)
	assert.Empty(t, occupancy.Professors)
}

// --- Fixtures ---

func newAvailabilityFixture(plans *conflictPlanReaderStub, cache *occupancyCacheStub) *AvailabilityService {
	index := NewConflictIndex(plans, &conflictSessionReaderStub{}, zap.NewNop())
	cfg := config.EngineConfig{OccupancyCacheTTL: 30 * time.Second}
	if cache == nil {
		return NewAvailabilityService(index, nil, cfg, zap.NewNop())
	}
	return NewAvailabilityService(index, cache, cfg, zap.NewNop())
}

type occupancyCacheStub struct {
	entries map[string]*models.SlotOccupancy
	sets    int
}

func newOccupancyCacheStub() *occupancyCacheStub {
	return &occupancyCacheStub{entries: make(map[string]*models.SlotOccupancy)}
}

func (c *occupancyCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	cached, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	if out, ok := dest.(*models.SlotOccupancy); ok {
		*out = *cached
	}
	return nil
}

func (c *occupancyCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if occupancy, ok := value.(*models.SlotOccupancy); ok {
		copied := *occupancy
		c.entries[key] = &copied
		c.sets++
	}
	return nil
}

func (c *occupancyCacheStub) OccupancyKey(tenantID, slotID string) string {
	return "occupancy:" + tenantID + ":" + slotID
}
