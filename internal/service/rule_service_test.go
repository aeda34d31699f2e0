package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
	appErrors "github.com/Milankumar13/automated-timetable-backend/pkg/errors"
)

func TestRuleServiceCreateGlobalRule(t *testing.T) {
	svc, repo := newRuleFixture(t)

	result, err := svc.CreateRule(context.Background(), testTenantID, nil, CreateRuleRequest{
		Kind:     string(models.RuleKindMaxClassesPerDay),
		IsGlobal: true,
		Param:    json.RawMessage(`{"max":4}`),
	})
	require.NoError(t, err)
	assert.True(t, result.Rule.IsGlobal)
	assert.True(t, result.Rule.IsActive)
	assert.Empty(t, result.Warnings)
	assert.Len(t, repo.rules, 1)
}

func TestRuleServiceCreateUnscopedRuleRejected(t *testing.T) {
	svc, repo := newRuleFixture(t)

	_, err := svc.CreateRule(context.Background(), testTenantID, nil, CreateRuleRequest{
		Kind: string(models.RuleKindRoomClosed),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrScopeViolation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.rules)
}

func TestRuleServiceCreateRuleUnknownRoomRejected(t *testing.T) {
	svc, _ := newRuleFixture(t)

	unknownRoom := "99999999-9999-9999-9999-999999999999"
	_, err := svc.CreateRule(context.Background(), testTenantID, nil, CreateRuleRequest{
		Kind:   string(models.RuleKindRoomClosed),
		RoomID: &unknownRoom,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRuleServiceCreateRuleUnknownKindStoredWithWarning(t *testing.T) {
	svc, repo := newRuleFixture(t)

	result, err := svc.CreateRule(context.Background(), testTenantID, nil, CreateRuleRequest{
		Kind:     "quantum_entanglement",
		IsGlobal: true,
	})
	require.NoError(t, err, "unknown kinds are stored for forward compatibility")
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "unknown rule kind")
	assert.Len(t, repo.rules, 1)
}

func TestRuleServiceCreateRuleMalformedParamsRejected(t *testing.T) {
	svc, _ := newRuleFixture(t)

	_, err := svc.CreateRule(context.Background(), testTenantID, nil, CreateRuleRequest{
		Kind:     string(models.RuleKindMaxClassesPerDay),
		IsGlobal: true,
		Param:    json.RawMessage(`{"max":"lots"}`),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRuleServiceCreateBlockedSlot(t *testing.T) {
	svc, repo := newRuleFixture(t)

	reason := "assembly hall booked"
	block, err := svc.CreateBlockedSlot(context.Background(), testTenantID, nil, CreateBlockedSlotRequest{
		SlotID: testSlotID,
		Reason: &reason,
	})
	require.NoError(t, err)
	assert.Nil(t, block.RoomID, "omitted room blocks the slot for every room")
	assert.Len(t, repo.blocks, 1)
}

func TestRuleServiceCreateBlockedSlotUnknownSlot(t *testing.T) {
	svc, _ := newRuleFixture(t)

	_, err := svc.CreateBlockedSlot(context.Background(), testTenantID, nil, CreateBlockedSlotRequest{
		SlotID: "99999999-9999-9999-9999-999999999999",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRuleServiceUpsertAvailability(t *testing.T) {
	svc, repo := newRuleFixture(t)

	available := false
	avail, err := svc.UpsertAvailability(context.Background(), testTenantID, nil, UpsertAvailabilityRequest{
		ProfessorID: testProfessorID,
		SlotID:      testSlotID,
		Available:   &available,
	})
	require.NoError(t, err)
	assert.False(t, avail.Available)
	assert.Len(t, repo.availability, 1)

	// Upserting the same pair replaces, not duplicates.
	available = true
	avail, err = svc.UpsertAvailability(context.Background(), testTenantID, nil, UpsertAvailabilityRequest{
		ProfessorID: testProfessorID,
		SlotID:      testSlotID,
		Available:   &available,
	})
	require.NoError(t, err)
	assert.True(t, avail.Available)
	assert.Len(t, repo.availability, 1)
}

func TestRuleServiceUpsertAvailabilityRequiresFlag(t *testing.T) {
	svc, _ := newRuleFixture(t)

	_, err := svc.UpsertAvailability(context.Background(), testTenantID, nil, UpsertAvailabilityRequest{
		ProfessorID: testProfessorID,
		SlotID:      testSlotID,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

// --- Fixtures ---

func newRuleFixture(t *testing.T) (*RuleService, *ruleRepoStub) {
	repo := &ruleRepoStub{availability: make(map[string]*models.ProfessorAvailability)}
	svc := NewRuleService(
		repo,
		repo,
		roomReaderStub{items: map[string]*models.Room{
			testRoomID: {ID: testRoomID, TenantID: testTenantID},
		}},
		slotReaderStub{slots: defaultSlots()},
		professorReaderStub{profs: map[string]*models.Professor{
			testProfessorID: {ID: testProfessorID, TenantID: testTenantID},
		}},
		nil,
		testValidator(),
		zap.NewNop(),
	)
	return svc, repo
}

type ruleRepoStub struct {
	rules        []models.AdminRule
	blocks       []models.BlockedSlot
	availability map[string]*models.ProfessorAvailability
	seq          int
}

func (r *ruleRepoStub) CreateRule(ctx context.Context, rule *models.AdminRule) error {
	r.seq++
	rule.ID = fmt.Sprintf("rule-%d", r.seq)
	r.rules = append(r.rules, *rule)
	return nil
}

func (r *ruleRepoStub) ListRules(ctx context.Context, tenantID string) ([]models.AdminRule, error) {
	return r.rules, nil
}

func (r *ruleRepoStub) CreateBlockedSlot(ctx context.Context, block *models.BlockedSlot) error {
	r.seq++
	block.ID = fmt.Sprintf("block-%d", r.seq)
	r.blocks = append(r.blocks, *block)
	return nil
}

func (r *ruleRepoStub) UpsertAvailability(ctx context.Context, avail *models.ProfessorAvailability) error {
	key := avail.ProfessorID + "|" + avail.SlotID
	if existing, ok := r.availability[key]; ok {
		avail.ID = existing.ID
	} else {
		r.seq++
		avail.ID = fmt.Sprintf("avail-%d", r.seq)
	}
	copied := *avail
	r.availability[key] = &copied
	return nil
}
