package counselors

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-care/brightpath/internal/authz"
	"github.com/brightpath-care/brightpath/internal/shared"
)

type mockRepo struct {
	profiles map[uuid.UUID]*ProfileSummary

	createErr error
	updateErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{profiles: make(map[uuid.UUID]*ProfileSummary)}
}

func (m *mockRepo) ListProfiles(_ context.Context) ([]ProfileSummary, error) {
	var out []ProfileSummary
	for _, profile := range m.profiles {
		out = append(out, *profile)
	}
	return out, nil
}

func (m *mockRepo) GetProfileByUser(_ context.Context, userID uuid.UUID) (*ProfileSummary, error) {
	profile, ok := m.profiles[userID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return profile, nil
}

func (m *mockRepo) CreateProfile(_ context.Context, profile Profile) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.profiles[profile.UserID]; ok {
		return shared.ErrDuplicate
	}
	m.profiles[profile.UserID] = &ProfileSummary{Profile: profile}
	return nil
}

func (m *mockRepo) UpdateProfile(_ context.Context, userID uuid.UUID, input ProfileInput) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	profile, ok := m.profiles[userID]
	if !ok {
		return shared.ErrNotFound
	}
	profile.Specialties = input.Specialties
	profile.Bio = input.Bio
	profile.MaxCounselees = input.MaxCounselees
	profile.IsAcceptingNew = input.IsAcceptingNew
	return nil
}

type mockGranter struct {
	grants    []authz.Role
	insertErr error
}

func (g *mockGranter) InsertRoleAssignment(_ context.Context, _ uuid.UUID, role authz.Role) error {
	if g.insertErr != nil {
		return g.insertErr
	}
	g.grants = append(g.grants, role)
	return nil
}

func TestCreateProfileGrantsCounselorRole(t *testing.T) {
	repo := newMockRepo()
	granter := &mockGranter{}
	svc := NewService(repo, granter, nil, nil)
	userID := uuid.New()

	profile, err := svc.CreateProfile(context.Background(), uuid.New(), userID, ProfileInput{
		Specialties:    []string{"grief", "family"},
		MaxCounselees:  8,
		IsAcceptingNew: true,
	})
	require.NoError(t, err)
	assert.Equal(t, userID, profile.UserID)
	assert.Equal(t, []authz.Role{authz.RoleCounselor}, granter.grants)
}

func TestCreateProfileDuplicateGrantIgnored(t *testing.T) {
	repo := newMockRepo()
	granter := &mockGranter{insertErr: authz.ErrDuplicateAssignment}
	svc := NewService(repo, granter, nil, nil)

	_, err := svc.CreateProfile(context.Background(), uuid.New(), uuid.New(), ProfileInput{MaxCounselees: 5})
	assert.NoError(t, err)
}

func TestCreateProfileRejectsZeroCapacity(t *testing.T) {
	svc := NewService(newMockRepo(), &mockGranter{}, nil, nil)

	_, err := svc.CreateProfile(context.Background(), uuid.New(), uuid.New(), ProfileInput{MaxCounselees: 0})
	assert.Error(t, err)
}

func TestCreateProfileDuplicateProfile(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, &mockGranter{}, nil, nil)
	userID := uuid.New()

	_, err := svc.CreateProfile(context.Background(), uuid.New(), userID, ProfileInput{MaxCounselees: 5})
	require.NoError(t, err)

	_, err = svc.CreateProfile(context.Background(), uuid.New(), userID, ProfileInput{MaxCounselees: 5})
	assert.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestCreateProfileGrantFailurePropagates(t *testing.T) {
	repo := newMockRepo()
	granter := &mockGranter{insertErr: errors.New("insert failed")}
	svc := NewService(repo, granter, nil, nil)

	_, err := svc.CreateProfile(context.Background(), uuid.New(), uuid.New(), ProfileInput{MaxCounselees: 5})
	assert.Error(t, err)
}

func TestUpdateProfile(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, &mockGranter{}, nil, nil)
	userID := uuid.New()

	_, err := svc.CreateProfile(context.Background(), uuid.New(), userID, ProfileInput{MaxCounselees: 5, IsAcceptingNew: true})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateProfile(context.Background(), userID, userID, ProfileInput{
		Bio:            "Updated",
		MaxCounselees:  3,
		IsAcceptingNew: false,
	}))
	profile := repo.profiles[userID]
	assert.Equal(t, "Updated", profile.Bio)
	assert.Equal(t, 3, profile.MaxCounselees)
	assert.False(t, profile.IsAcceptingNew)
}

func TestUpdateProfileMissing(t *testing.T) {
	svc := NewService(newMockRepo(), &mockGranter{}, nil, nil)

	err := svc.UpdateProfile(context.Background(), uuid.New(), uuid.New(), ProfileInput{MaxCounselees: 5})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestHasCapacity(t *testing.T) {
	summary := ProfileSummary{
		Profile:          Profile{MaxCounselees: 2, IsAcceptingNew: true},
		ActiveCounselees: 1,
	}
	assert.True(t, summary.HasCapacity())

	summary.ActiveCounselees = 2
	assert.False(t, summary.HasCapacity())

	summary.ActiveCounselees = 0
	summary.IsAcceptingNew = false
	assert.False(t, summary.HasCapacity())
}
