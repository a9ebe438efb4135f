package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/agritrace-api/internal/models"
	appErrors "github.com/noah-isme/agritrace-api/pkg/errors"
)

type mockUserStore struct {
	users       map[string]*models.User
	revoked     []string
	auditLogs   []models.AuditLog
	updateCalls int
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: map[string]*models.User{}}
}

func (m *mockUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *user
	return &copy, nil
}

func (m *mockUserStore) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	out := []models.User{}
	for _, u := range m.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *mockUserStore) UpdateStatus(ctx context.Context, id string, status models.UserStatus) error {
	m.updateCalls++
	m.users[id].Status = status
	return nil
}

func (m *mockUserStore) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revoked = append(m.revoked, userID)
	return nil
}

func (m *mockUserStore) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, *log)
	return nil
}

func TestUserSetStatusDeactivateRevokesSessions(t *testing.T) {
	store := newMockUserStore()
	store.users["u1"] = &models.User{ID: "u1", Role: models.RoleFarmer, Status: models.UserStatusActive, PasswordHash: "secret"}
	svc := NewUserService(store, nil)

	admin := models.Actor{ID: "admin-1", Role: models.RoleAdmin}
	err := svc.SetStatus(context.Background(), admin, "u1", models.UserStatusInactive)
	require.NoError(t, err)

	assert.Equal(t, models.UserStatusInactive, store.users["u1"].Status)
	assert.Equal(t, []string{"u1"}, store.revoked)
	require.Len(t, store.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserDeactivate, store.auditLogs[0].Action)
}

func TestUserSetStatusIsNoOpWhenUnchanged(t *testing.T) {
	store := newMockUserStore()
	store.users["u1"] = &models.User{ID: "u1", Role: models.RoleFarmer, Status: models.UserStatusActive}
	svc := NewUserService(store, nil)

	admin := models.Actor{ID: "admin-1", Role: models.RoleAdmin}
	err := svc.SetStatus(context.Background(), admin, "u1", models.UserStatusActive)
	require.NoError(t, err)

	assert.Zero(t, store.updateCalls)
	assert.Empty(t, store.auditLogs)
}

func TestUserSetStatusRejectsNonAdmin(t *testing.T) {
	store := newMockUserStore()
	store.users["u1"] = &models.User{ID: "u1", Role: models.RoleFarmer, Status: models.UserStatusActive}
	svc := NewUserService(store, nil)

	err := svc.SetStatus(context.Background(), models.Actor{ID: "u2", Role: models.RoleRetailer}, "u1", models.UserStatusInactive)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestUserSetStatusRejectsOtherStates(t *testing.T) {
	store := newMockUserStore()
	store.users["u1"] = &models.User{ID: "u1", Role: models.RoleFarmer, Status: models.UserStatusActive}
	svc := NewUserService(store, nil)

	admin := models.Actor{ID: "admin-1", Role: models.RoleAdmin}
	err := svc.SetStatus(context.Background(), admin, "u1", models.UserStatus("banned"))
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestUserListStripsPasswordHash(t *testing.T) {
	store := newMockUserStore()
	store.users["u1"] = &models.User{ID: "u1", Role: models.RoleFarmer, Status: models.UserStatusActive, PasswordHash: "secret"}
	svc := NewUserService(store, nil)

	users, pagination, err := svc.List(context.Background(), models.UserFilter{})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Empty(t, users[0].PasswordHash)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
}
