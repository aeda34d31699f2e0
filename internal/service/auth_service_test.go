package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Milankumar13/automated-timetable-backend/internal/models"
	"github.com/Milankumar13/automated-timetable-backend/pkg/config"
	appErrors "github.com/Milankumar13/automated-timetable-backend/pkg/errors"
)

const testPassword = "correct-horse-battery"

func TestAuthServiceLoginSuccess(t *testing.T) {
	svc := newAuthFixture(t, testActiveUser(t))

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    "admin@university.edu",
		Password: testPassword,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.True(t, resp.ExpiresAt.After(time.Now()))

	claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, testTenantID, claims.TenantID)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	svc := newAuthFixture(t, testActiveUser(t))

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "admin@university.edu",
		Password: "not-it",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	svc := newAuthFixture(t, testActiveUser(t))

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "ghost@university.edu",
		Password: testPassword,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	user := testActiveUser(t)
	user.IsActive = false
	svc := newAuthFixture(t, user)

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "admin@university.edu",
		Password: testPassword,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterHashesPassword(t *testing.T) {
	repo := &authUserRepoStub{users: make(map[string]*models.User)}
	svc := NewAuthService(repo, testJWTConfig(), testValidator(), zap.NewNop())

	user, err := svc.Register(context.Background(), RegisterRequest{
		TenantID:    "11111111-1111-1111-1111-111111111111",
		Email:       "new@university.edu",
		Password:    testPassword,
		DisplayName: "New Admin",
	})
	require.NoError(t, err)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, testPassword, user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(testPassword)))
}

func TestAuthServiceValidateTokenRejectsForeignSignature(t *testing.T) {
	svc := newAuthFixture(t, testActiveUser(t))
	other := NewAuthService(
		&authUserRepoStub{users: make(map[string]*models.User)},
		config.JWTConfig{Secret: "a-different-secret", Expiration: time.Hour},
		testValidator(),
		zap.NewNop(),
	)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    "admin@university.edu",
		Password: testPassword,
	})
	require.NoError(t, err)

	_, err = other.ValidateToken(resp.Token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

// --- Fixtures ---

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "test-secret", Expiration: time.Hour}
}

func testActiveUser(t *testing.T) *models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           "user-1",
		TenantID:     testTenantID,
		Email:        "admin@university.edu",
		PasswordHash: string(hash),
		DisplayName:  "Admin",
		IsActive:     true,
	}
}

func newAuthFixture(t *testing.T, users ...*models.User) *AuthService {
	repo := &authUserRepoStub{users: make(map[string]*models.User)}
	for _, user := range users {
		repo.users[user.Email] = user
	}
	return NewAuthService(repo, testJWTConfig(), testValidator(), zap.NewNop())
}

type authUserRepoStub struct {
	users map[string]*models.User
	seq   int
}

func (r *authUserRepoStub) Create(ctx context.Context, user *models.User) error {
	r.seq++
	if user.ID == "" {
		user.ID = "user-new"
	}
	r.users[user.Email] = user
	return nil
}

func (r *authUserRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := r.users[email]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}
