package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type insertAttempt struct {
	id   uuid.UUID
	role Role
}

type mockRepository struct {
	principals        map[uuid.UUID]*Principal
	assignments       map[uuid.UUID][]Role
	counselorProfiles map[uuid.UUID]bool

	inserts []insertAttempt

	// Error injection
	getPrincipalError error
	listError         error
	insertError       error
	profileError      error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		principals:        make(map[uuid.UUID]*Principal),
		assignments:       make(map[uuid.UUID][]Role),
		counselorProfiles: make(map[uuid.UUID]bool),
	}
}

func (m *mockRepository) GetPrincipal(ctx context.Context, id uuid.UUID) (*Principal, error) {
	if m.getPrincipalError != nil {
		return nil, m.getPrincipalError
	}
	p, ok := m.principals[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *mockRepository) ListRoleAssignments(ctx context.Context, id uuid.UUID) ([]Role, error) {
	if m.listError != nil {
		return nil, m.listError
	}
	return append([]Role(nil), m.assignments[id]...), nil
}

func (m *mockRepository) InsertRoleAssignment(ctx context.Context, id uuid.UUID, role Role) error {
	m.inserts = append(m.inserts, insertAttempt{id: id, role: role})
	if m.insertError != nil {
		return m.insertError
	}
	for _, existing := range m.assignments[id] {
		if existing == role {
			return ErrDuplicateAssignment
		}
	}
	m.assignments[id] = append(m.assignments[id], role)
	return nil
}

func (m *mockRepository) HasCounselorProfile(ctx context.Context, id uuid.UUID) (bool, error) {
	if m.profileError != nil {
		return false, m.profileError
	}
	return m.counselorProfiles[id], nil
}

func rolePtr(role Role) *Role { return &role }

func addPrincipal(repo *mockRepository, legacy *Role) uuid.UUID {
	id := uuid.New()
	repo.principals[id] = &Principal{
		ID:         id,
		Email:      id.String()[:8] + "@portal.test",
		FullName:   "Test Person",
		IsActive:   true,
		LegacyRole: legacy,
	}
	return id
}

func TestResolveUsesAssignmentRows(t *testing.T) {
	repo := newMockRepository()
	id := addPrincipal(repo, rolePtr(RoleAdmin))
	repo.assignments[id] = []Role{RoleCounselee, RoleAdmin}

	user, err := NewResolver(repo, nil).Resolve(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, []Role{RoleAdmin, RoleCounselee}, user.Roles.Roles())
	// The legacy column is ignored once assignment rows exist, so no
	// repair insert happens.
	assert.Empty(t, repo.inserts)
}

func TestResolveLegacyFallbackRepairsAssignment(t *testing.T) {
	repo := newMockRepository()
	id := addPrincipal(repo, rolePtr(RoleAdmin))

	user, err := NewResolver(repo, nil).Resolve(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, []Role{RoleAdmin}, user.Roles.Roles())
	require.Len(t, repo.inserts, 1)
	assert.Equal(t, insertAttempt{id: id, role: RoleAdmin}, repo.inserts[0])
}

func TestResolveCounselorProfileImpliesRole(t *testing.T) {
	repo := newMockRepository()
	id := addPrincipal(repo, nil)
	repo.assignments[id] = []Role{RoleCounselee}
	repo.counselorProfiles[id] = true

	user, err := NewResolver(repo, nil).Resolve(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, []Role{RoleCounselee, RoleCounselor}, user.Roles.Roles())
	require.Len(t, repo.inserts, 1)
	assert.Equal(t, RoleCounselor, repo.inserts[0].role)
}

func TestResolveCounselorProfileWithExplicitRow(t *testing.T) {
	repo := newMockRepository()
	id := addPrincipal(repo, nil)
	repo.assignments[id] = []Role{RoleCounselor}
	repo.counselorProfiles[id] = true

	user, err := NewResolver(repo, nil).Resolve(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, []Role{RoleCounselor}, user.Roles.Roles())
	assert.Empty(t, repo.inserts, "no repair needed when the row exists")
}

func TestResolveIdempotent(t *testing.T) {
	repo := newMockRepository()
	id := addPrincipal(repo, rolePtr(RoleCounselee))
	repo.counselorProfiles[id] = true
	resolver := NewResolver(repo, nil)

	first, err := resolver.Resolve(context.Background(), id)
	require.NoError(t, err)
	second, err := resolver.Resolve(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, first.Roles.Roles(), second.Roles.Roles())
	assert.Equal(t, []Role{RoleCounselee, RoleCounselor}, second.Roles.Roles())
	// First call repairs both rows; the second sees the assignment rows
	// as authoritative and attempts nothing further.
	assert.Len(t, repo.inserts, 2)
}

func TestResolveRepairFailureSwallowed(t *testing.T) {
	repo := newMockRepository()
	id := addPrincipal(repo, rolePtr(RoleAdmin))
	repo.insertError = errors.New("connection reset")

	user, err := NewResolver(repo, nil).Resolve(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []Role{RoleAdmin}, user.Roles.Roles())
}

func TestResolveEmptyRoleSet(t *testing.T) {
	repo := newMockRepository()
	id := addPrincipal(repo, nil)

	user, err := NewResolver(repo, nil).Resolve(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, user.Roles.Roles())
	assert.Empty(t, repo.inserts)
}

func TestResolveProfileNotFound(t *testing.T) {
	repo := newMockRepository()

	user, err := NewResolver(repo, nil).Resolve(context.Background(), uuid.New())
	assert.Nil(t, user)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestResolveStoreFailurePropagates(t *testing.T) {
	repo := newMockRepository()
	id := addPrincipal(repo, nil)
	repo.listError = errors.New("pg down")

	_, err := NewResolver(repo, nil).Resolve(context.Background(), id)
	assert.EqualError(t, err, "pg down")

	repo.listError = nil
	repo.profileError = errors.New("pg down again")
	_, err = NewResolver(repo, nil).Resolve(context.Background(), id)
	assert.EqualError(t, err, "pg down again")
}

func TestResolveReturnsPrincipalAttributes(t *testing.T) {
	repo := newMockRepository()
	id := uuid.New()
	repo.principals[id] = &Principal{
		ID:       id,
		Email:    "jane@portal.test",
		FullName: "Jane Doe",
		IsActive: false,
		Metadata: map[string]any{"created_via": "webhook"},
	}
	repo.assignments[id] = []Role{RoleCounselee}

	user, err := NewResolver(repo, nil).Resolve(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "jane@portal.test", user.Email)
	assert.Equal(t, "Jane Doe", user.FullName)
	assert.False(t, user.IsActive)
	assert.Equal(t, "webhook", user.Metadata["created_via"])
}
