package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
	"github.com/Milankumar13/automated-timetable-backend/pkg/config"
)

const (
	testTenantID    = "tenant-1"
	testSectionID   = "11111111-1111-1111-1111-111111111111"
	testProfessorID = "22222222-2222-2222-2222-222222222222"
	testRoomID      = "33333333-3333-3333-3333-333333333333"
	testSlotID      = "44444444-4444-4444-4444-444444444444"
	testTermID      = "55555555-5555-5555-5555-555555555555"
)

func testCandidate() Candidate {
	return Candidate{
		TenantID:    testTenantID,
		SectionID:   testSectionID,
		ProfessorID: testProfessorID,
		RoomID:      testRoomID,
		SlotID:      testSlotID,
	}
}

func TestRuleEngineAdmitsByDefault(t *testing.T) {
	engine := newEngineFixture(engineFixtureConfig{})

	verdict, err := engine.Evaluate(context.Background(), nil, testCandidate())
	require.NoError(t, err)
	assert.True(t, verdict.Admissible())
	assert.Empty(t, verdict.Warnings)
}

func TestRuleEngineBlockedSlotDenies(t *testing.T) {
	reason := "maintenance"
	engine := newEngineFixture(engineFixtureConfig{
		blocks: []models.BlockedSlot{{ID: "block-1", SlotID: testSlotID, RoomID: strPtr(testRoomID), Reason: &reason}},
	})

	verdict, err := engine.Evaluate(context.Background(), nil, testCandidate())
	require.NoError(t, err)
	require.False(t, verdict.Admissible())
	assert.Equal(t, "blocked_slot", verdict.Denial.Kind)
	assert.Equal(t, "block-1", verdict.Denial.RuleRef)
	assert.Contains(t, verdict.Denial.Reason, "maintenance")
}

func TestRuleEngineWildcardBlockDeniesAnyRoom(t *testing.T) {
	engine := newEngineFixture(engineFixtureConfig{
		blocks: []models.BlockedSlot{{ID: "block-1", SlotID: testSlotID}},
	})

	verdict, err := engine.Evaluate(context.Background(), nil, testCandidate())
	require.NoError(t, err)
	require.False(t, verdict.Admissible())
	assert.Equal(t, "blocked_slot", verdict.Denial.Kind)
}

func TestRuleEngineUnavailableProfessorDenies(t *testing.T) {
	engine := newEngineFixture(engineFixtureConfig{
		availability: map[string]*models.ProfessorAvailability{
			testProfessorID + "|" + testSlotID: {ID: "avail-1", ProfessorID: testProfessorID, SlotID: testSlotID, Available: false},
		},
	})

	verdict, err := engine.Evaluate(context.Background(), nil, testCandidate())
	require.NoError(t, err)
	require.False(t, verdict.Admissible())
	assert.Equal(t, "professor_availability", verdict.Denial.Kind)
	assert.Equal(t, "avail-1", verdict.Denial.RuleRef)
}

func TestRuleEngineMissingAvailabilityDefaultPolicy(t *testing.T) {
	// Default policy "available": no record, candidate passes.
	engine := newEngineFixture(engineFixtureConfig{})
	verdict, err := engine.Evaluate(context.Background(), nil, testCandidate())
	require.NoError(t, err)
	assert.True(t, verdict.Admissible())

	// Default policy "unavailable": the same candidate is denied.
	engine = newEngineFixture(engineFixtureConfig{availabilityDefault: config.AvailabilityDefaultUnavailable})
	verdict, err = engine.Evaluate(context.Background(), nil, testCandidate())
	require.NoError(t, err)
	require.False(t, verdict.Admissible())
	assert.Equal(t, "professor_availability", verdict.Denial.Kind)

	// An explicit available=true record overrides the unavailable default.
	engine = newEngineFixture(engineFixtureConfig{
		availabilityDefault: config.AvailabilityDefaultUnavailable,
		availability: map[string]*models.ProfessorAvailability{
			testProfessorID + "|" + testSlotID: {ID: "avail-1", ProfessorID: testProfessorID, SlotID: testSlotID, Available: true},
		},
	})
	verdict, err = engine.Evaluate(context.Background(), nil, testCandidate())
	require.NoError(t, err)
	assert.True(t, verdict.Admissible())
}

func TestRuleEngineMaxClassesPerDay(t *testing.T) {
	rule := models.AdminRule{
		ID:        "rule-1",
		Kind:      models.RuleKindMaxClassesPerDay,
		IsGlobal:  true,
		IsActive:  true,
		Parameter: types.JSONText(`{"max":2}`),
	}

	engine := newEngineFixture(engineFixtureConfig{rules: []models.AdminRule{rule}, planDayCount: 1})
	verdict, err := engine.Evaluate(context.Background(), nil, testCandidate())
	require.NoError(t, err)
	assert.True(t, verdict.Admissible())

	engine = newEngineFixture(engineFixtureConfig{rules: []models.AdminRule{rule}, planDayCount: 2})
	verdict, err = engine.Evaluate(context.Background(), nil, testCandidate())
	require.NoError(t, err)
	require.False(t, verdict.Admissible())
	assert.Equal(t, "rule-1", verdict.Denial.RuleRef)
	assert.Equal(t, string(models.RuleKindMaxClassesPerDay), verdict.Denial.Kind)
}

func TestRuleEngineMaxClassesCountsSessionsForDatedCandidate(t *testing.T) {
	rule := models.AdminRule{
		ID:        "rule-1",
		Kind:      models.RuleKindMaxClassesPerDay,
		IsGlobal:  true,
		IsActive:  true,
		Parameter: types.JSONText(`{"max":1}`),
	}
	engine := newEngineFixture(engineFixtureConfig{rules: []models.AdminRule{rule}, sessionCount: 1})

	cand := testCandidate()
	date := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	cand.Date = &date

	verdict, err := engine.Evaluate(context.Background(), nil, cand)
	require.NoError(t, err)
	require.False(t, verdict.Admissible())
	assert.Equal(t, "rule-1", verdict.Denial.RuleRef)
}

func TestRuleEngineTermLimit(t *testing.T) {
	rule := models.AdminRule{
		ID:        "rule-1",
		Kind:      models.RuleKindTermLimit,
		IsGlobal:  true,
		IsActive:  true,
		Parameter: types.JSONText(`{"max_per_term":1}`),
	}
	engine := newEngineFixture(engineFixtureConfig{rules: []models.AdminRule{rule}, planSectionCount: 1})

	verdict, err := engine.Evaluate(context.Background(), nil, testCandidate())
	require.NoError(t, err)
	require.False(t, verdict.Admissible())
	assert.Equal(t, string(models.RuleKindTermLimit), verdict.Denial.Kind)
}

func TestRuleEngineScopedRuleWinsOverGlobal(t *testing.T) {
	scoped := models.AdminRule{
		ID:        "rule-scoped",
		Kind:      models.RuleKindRoomClosed,
		RoomID:    strPtr(testRoomID),
		IsActive:  true,
		Parameter: types.JSONText(`{"reason":"flooded"}`),
	}
	global := models.AdminRule{
		ID:        "rule-global",
		Kind:      models.RuleKindMaxClassesPerDay,
		IsGlobal:  true,
		IsActive:  true,
		Parameter: types.JSONText(`{"max":1}`),
	}
	// Global rule listed first; the scoped one must still deny first.
	engine := newEngineFixture(engineFixtureConfig{
		rules:        []models.AdminRule{global, scoped},
		planDayCount: 5,
	})

	verdict, err := engine.Evaluate(context.Background(), nil, testCandidate())
	require.NoError(t, err)
	require.False(t, verdict.Admissible())
	assert.Equal(t, "rule-scoped", verdict.Denial.RuleRef)
}

func TestRuleEngineRepeatedEvaluationIsDeterministic(t *testing.T) {
	scoped := models.AdminRule{
		ID:        "rule-scoped",
		Kind:      models.RuleKindRoomClosed,
		RoomID:    strPtr(testRoomID),
		IsActive:  true,
		Parameter: types.JSONText(`{"reason":"flooded"}`),
	}
	global := models.AdminRule{
		ID:        "rule-global",
		Kind:      models.RuleKindMaxClassesPerDay,
		IsGlobal:  true,
		IsActive:  true,
		Parameter: types.JSONText(`{"max":1}`),
	}
	// Both rules deny the candidate; repeated evaluation must keep returning
	// the same verdict with the same first denial.
	engine := newEngineFixture(engineFixtureConfig{
		rules:        []models.AdminRule{global, scoped},
		planDayCount: 5,
	})

	for i := 0; i < 5; i++ {
		verdict, err := engine.Evaluate(context.Background(), nil, testCandidate())
		require.NoError(t, err)
		require.False(t, verdict.Admissible(), "evaluation %d", i)
		assert.Equal(t, "rule-scoped", verdict.Denial.RuleRef, "evaluation %d", i)
		assert.Equal(t, string(models.RuleKindRoomClosed), verdict.Denial.Kind, "evaluation %d", i)
	}
}

func TestRuleEngineScopedRuleForOtherRoomSkipped(t *testing.T) {
	otherRoom := "99999999-9999-9999-9999-999999999999"
	engine := newEngineFixture(engineFixtureConfig{
		rules: []models.AdminRule{{
			ID:       "rule-1",
			Kind:     models.RuleKindRoomClosed,
			RoomID:   &otherRoom,
			IsActive: true,
		}},
	})

	verdict, err := engine.Evaluate(context.Background(), nil, testCandidate())
	require.NoError(t, err)
	assert.True(t, verdict.Admissible())
}

func TestRuleEngineUnknownKindWarnsAndPasses(t *testing.T) {
	engine := newEngineFixture(engineFixtureConfig{
		rules: []models.AdminRule{{
			ID:       "rule-1",
			Kind:     models.RuleKind("holographic_projection"),
			IsGlobal: true,
			IsActive: true,
		}},
	})

	verdict, err := engine.Evaluate(context.Background(), nil, testCandidate())
	require.NoError(t, err)
	assert.True(t, verdict.Admissible())
	require.Len(t, verdict.Warnings, 1)
	assert.Contains(t, verdict.Warnings[0], "unknown rule kind")
}

func TestRuleEngineCustomRuleWarns(t *testing.T) {
	engine := newEngineFixture(engineFixtureConfig{
		rules: []models.AdminRule{{
			ID:        "rule-1",
			Kind:      models.RuleKindCustom,
			IsGlobal:  true,
			IsActive:  true,
			Parameter: types.JSONText(`{"anything":true}`),
		}},
	})

	verdict, err := engine.Evaluate(context.Background(), nil, testCandidate())
	require.NoError(t, err)
	assert.True(t, verdict.Admissible())
	require.Len(t, verdict.Warnings, 1)
	assert.Contains(t, verdict.Warnings[0], "rule-1")
}

func TestRuleEngineMalformedParamsWarnNeverPassSilently(t *testing.T) {
	engine := newEngineFixture(engineFixtureConfig{
		rules: []models.AdminRule{{
			ID:        "rule-1",
			Kind:      models.RuleKindMaxClassesPerDay,
			IsGlobal:  true,
			IsActive:  true,
			Parameter: types.JSONText(`{"max":"not-a-number"}`),
		}},
	})

	verdict, err := engine.Evaluate(context.Background(), nil, testCandidate())
	require.NoError(t, err)
	assert.True(t, verdict.Admissible())
	require.Len(t, verdict.Warnings, 1)
	assert.Contains(t, verdict.Warnings[0], "malformed parameters")
}

func TestRuleEngineProfessorKnobWarnsOnly(t *testing.T) {
	maxPerDay := 1
	engine := newEngineFixture(engineFixtureConfig{
		professors: map[string]*models.Professor{
			testProfessorID: {ID: testProfessorID, TenantID: testTenantID, DisplayName: "Dr. Vance", MaxClassesPerDay: &maxPerDay},
		},
		planDayCount: 1,
	})

	verdict, err := engine.Evaluate(context.Background(), nil, testCandidate())
	require.NoError(t, err)
	assert.True(t, verdict.Admissible())
	require.Len(t, verdict.Warnings, 1)
	assert.Contains(t, verdict.Warnings[0], "Dr. Vance")
}

// --- Fixtures ---

type engineFixtureConfig struct {
	rules               []models.AdminRule
	blocks              []models.BlockedSlot
	availability        map[string]*models.ProfessorAvailability
	planDayCount        int
	planSectionCount    int
	sessionCount        int
	slots               map[string]*models.Slot
	professors          map[string]*models.Professor
	availabilityDefault string
}

func newEngineFixture(cfg engineFixtureConfig) *RuleEngine {
	if cfg.slots == nil {
		cfg.slots = defaultSlots()
	}
	availDefault := cfg.availabilityDefault
	if availDefault == "" {
		availDefault = config.AvailabilityDefaultAvailable
	}
	return NewRuleEngine(
		ruleReaderStub{rules: cfg.rules, blocks: cfg.blocks},
		availabilityReaderStub{items: cfg.availability},
		planCounterStub{perDay: cfg.planDayCount, perSection: cfg.planSectionCount},
		sessionCounterStub{count: cfg.sessionCount},
		slotReaderStub{slots: cfg.slots},
		professorReaderStub{profs: cfg.professors},
		config.EngineConfig{AvailabilityDefault: availDefault},
		zap.NewNop(),
	)
}

func defaultSlots() map[string]*models.Slot {
	return map[string]*models.Slot{
		testSlotID: {ID: testSlotID, TenantID: testTenantID, TermID: testTermID, Day: 1, StartTime: "08:00", EndTime: "09:30"},
	}
}

func strPtr(v string) *string { return &v }

func testValidator() *validator.Validate { return validator.New() }

type ruleReaderStub struct {
	rules  []models.AdminRule
	blocks []models.BlockedSlot
}

func (s ruleReaderStub) ListActiveRules(ctx context.Context, exec sqlx.ExtContext, tenantID string) ([]models.AdminRule, error) {
	var out []models.AdminRule
	for _, rule := range s.rules {
		if rule.IsActive {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (s ruleReaderStub) FindBlocks(ctx context.Context, exec sqlx.ExtContext, tenantID, roomID, slotID string) ([]models.BlockedSlot, error) {
	var out []models.BlockedSlot
	for _, block := range s.blocks {
		if block.SlotID != slotID {
			continue
		}
		if block.RoomID != nil && *block.RoomID != roomID {
			continue
		}
		out = append(out, block)
	}
	return out, nil
}

type availabilityReaderStub struct {
	items map[string]*models.ProfessorAvailability
}

func (s availabilityReaderStub) FindAvailability(ctx context.Context, exec sqlx.ExtContext, tenantID, professorID, slotID string) (*models.ProfessorAvailability, error) {
	if avail, ok := s.items[professorID+"|"+slotID]; ok {
		return avail, nil
	}
	return nil, sql.ErrNoRows
}

type planCounterStub struct {
	perDay     int
	perSection int
}

func (s planCounterStub) CountActiveByProfessorAndDay(ctx context.Context, exec sqlx.ExtContext, tenantID, professorID string, day int) (int, error) {
	return s.perDay, nil
}

func (s planCounterStub) CountActiveBySection(ctx context.Context, exec sqlx.ExtContext, tenantID, sectionID string) (int, error) {
	return s.perSection, nil
}

type sessionCounterStub struct {
	count int
}

func (s sessionCounterStub) CountLiveByProfessorAndDate(ctx context.Context, exec sqlx.ExtContext, tenantID, professorID string, date time.Time) (int, error) {
	return s.count, nil
}

type slotReaderStub struct {
	slots map[string]*models.Slot
}

func (s slotReaderStub) FindByID(ctx context.Context, tenantID, id string) (*models.Slot, error) {
	if slot, ok := s.slots[id]; ok {
		return slot, nil
	}
	return nil, sql.ErrNoRows
}

type professorReaderStub struct {
	profs map[string]*models.Professor
}

func (s professorReaderStub) FindByID(ctx context.Context, tenantID, id string) (*models.Professor, error) {
	if prof, ok := s.profs[id]; ok {
		return prof, nil
	}
	return nil, sql.ErrNoRows
}
