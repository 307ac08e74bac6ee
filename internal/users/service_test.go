package users

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/brightpath-care/brightpath/internal/authz"
	"github.com/brightpath-care/brightpath/internal/shared"
)

type mockRepo struct {
	accounts map[uuid.UUID]*Account
	hashes   map[uuid.UUID]string

	listErr   error
	createErr error
	grantErr  error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		accounts: make(map[uuid.UUID]*Account),
		hashes:   make(map[uuid.UUID]string),
	}
}

func (m *mockRepo) ListAccounts(_ context.Context, _ ListFilter) ([]Account, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var out []Account
	for _, account := range m.accounts {
		out = append(out, *account)
	}
	return out, len(out), nil
}

func (m *mockRepo) GetAccount(_ context.Context, id uuid.UUID) (*Account, error) {
	account, ok := m.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return account, nil
}

func (m *mockRepo) CreateAccount(_ context.Context, account Account, passwordHash string) error {
	if m.createErr != nil {
		return m.createErr
	}
	copied := account
	m.accounts[account.ID] = &copied
	m.hashes[account.ID] = passwordHash
	return nil
}

func (m *mockRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	account, ok := m.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	account.IsActive = active
	return nil
}

func (m *mockRepo) GrantRole(_ context.Context, id uuid.UUID, role authz.Role) error {
	if m.grantErr != nil {
		return m.grantErr
	}
	account, ok := m.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	for _, existing := range account.Roles {
		if existing == role {
			return shared.ErrDuplicate
		}
	}
	account.Roles = append(account.Roles, role)
	return nil
}

func (m *mockRepo) RevokeRole(_ context.Context, id uuid.UUID, role authz.Role) error {
	account, ok := m.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	for i, existing := range account.Roles {
		if existing == role {
			account.Roles = append(account.Roles[:i], account.Roles[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound
}

type mockEnqueuer struct {
	calls int
	err   error
}

func (m *mockEnqueuer) EnqueueRoleBackfill(_ context.Context) error {
	if m.err != nil {
		return m.err
	}
	m.calls++
	return nil
}

func TestCreateAccountHashesPassword(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil, nil, nil)

	account, err := svc.CreateAccount(context.Background(), uuid.New(), NewAccount{
		Email:    " Dana@Example.org ",
		FullName: "Dana Field",
		Password: "correct horse",
		Roles:    []authz.Role{authz.RoleCounselor, authz.RoleCounselor},
	})
	require.NoError(t, err)

	assert.Equal(t, "dana@example.org", account.Email)
	assert.Equal(t, []authz.Role{authz.RoleCounselor}, account.Roles)
	assert.True(t, account.IsActive)

	hash := repo.hashes[account.ID]
	require.NotEmpty(t, hash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct horse")))
}

func TestCreateAccountWithoutPassword(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil, nil, nil)

	account, err := svc.CreateAccount(context.Background(), uuid.New(), NewAccount{Email: "sso@example.org"})
	require.NoError(t, err)
	assert.Empty(t, repo.hashes[account.ID])
}

func TestCreateAccountRequiresEmail(t *testing.T) {
	svc := NewService(newMockRepo(), nil, nil, nil)

	_, err := svc.CreateAccount(context.Background(), uuid.New(), NewAccount{FullName: "No Email"})
	assert.Error(t, err)
}

func TestGrantRoleDuplicate(t *testing.T) {
	repo := newMockRepo()
	id := uuid.New()
	repo.accounts[id] = &Account{ID: id, Roles: []authz.Role{authz.RoleAdmin}}
	svc := NewService(repo, nil, nil, nil)

	err := svc.GrantRole(context.Background(), uuid.New(), id, authz.RoleAdmin)
	assert.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestRevokeRoleRemovesAssignment(t *testing.T) {
	repo := newMockRepo()
	id := uuid.New()
	repo.accounts[id] = &Account{ID: id, Roles: []authz.Role{authz.RoleAdmin, authz.RoleCounselor}}
	svc := NewService(repo, nil, nil, nil)

	require.NoError(t, svc.RevokeRole(context.Background(), uuid.New(), id, authz.RoleAdmin))
	assert.Equal(t, []authz.Role{authz.RoleCounselor}, repo.accounts[id].Roles)
}

func TestSetActiveTogglesFlag(t *testing.T) {
	repo := newMockRepo()
	id := uuid.New()
	repo.accounts[id] = &Account{ID: id, IsActive: true}
	svc := NewService(repo, nil, nil, nil)

	require.NoError(t, svc.SetActive(context.Background(), uuid.New(), id, false))
	assert.False(t, repo.accounts[id].IsActive)
}

func TestTriggerRoleBackfill(t *testing.T) {
	enqueuer := &mockEnqueuer{}
	svc := NewService(newMockRepo(), nil, enqueuer, nil)

	require.NoError(t, svc.TriggerRoleBackfill(context.Background(), uuid.New()))
	assert.Equal(t, 1, enqueuer.calls)
}

func TestTriggerRoleBackfillWithoutQueue(t *testing.T) {
	svc := NewService(newMockRepo(), nil, nil, nil)

	assert.Error(t, svc.TriggerRoleBackfill(context.Background(), uuid.New()))
}

func TestTriggerRoleBackfillEnqueueError(t *testing.T) {
	enqueuer := &mockEnqueuer{err: errors.New("queue down")}
	svc := NewService(newMockRepo(), nil, enqueuer, nil)

	assert.Error(t, svc.TriggerRoleBackfill(context.Background(), uuid.New()))
}

func TestNeedsRepair(t *testing.T) {
	legacy := authz.RoleCounselor
	assert.True(t, Account{LegacyRole: &legacy}.NeedsRepair())
	assert.False(t, Account{LegacyRole: &legacy, Roles: []authz.Role{authz.RoleCounselor}}.NeedsRepair())
	assert.False(t, Account{}.NeedsRepair())
}
