package counselees

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/brightpath-care/brightpath/internal/counselors"
	"github.com/brightpath-care/brightpath/internal/intake"
	"github.com/brightpath-care/brightpath/internal/shared"
)

type mockRepo struct {
	profiles map[uuid.UUID]*Summary
	accounts []NewAccountRecord

	assignErr error
	createErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{profiles: make(map[uuid.UUID]*Summary)}
}

func (m *mockRepo) ListProfiles(_ context.Context, filter ListFilter) ([]Summary, int, error) {
	var out []Summary
	for _, summary := range m.profiles {
		if filter.CounselorID != nil {
			if summary.AssignedCounselorID == nil || *summary.AssignedCounselorID != *filter.CounselorID {
				continue
			}
		}
		if filter.Status != "" && summary.AssignmentStatus != filter.Status {
			continue
		}
		out = append(out, *summary)
	}
	return out, len(out), nil
}

func (m *mockRepo) GetProfileByUser(_ context.Context, userID uuid.UUID) (*Summary, error) {
	summary, ok := m.profiles[userID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return summary, nil
}

func (m *mockRepo) CreateProfile(_ context.Context, profile Profile) error {
	if _, ok := m.profiles[profile.UserID]; ok {
		return shared.ErrDuplicate
	}
	m.profiles[profile.UserID] = &Summary{Profile: profile}
	return nil
}

func (m *mockRepo) AssignCounselor(_ context.Context, counseleeUserID, counselorUserID uuid.UUID) error {
	if m.assignErr != nil {
		return m.assignErr
	}
	summary, ok := m.profiles[counseleeUserID]
	if !ok {
		return shared.ErrNotFound
	}
	id := counselorUserID
	summary.AssignedCounselorID = &id
	summary.AssignmentStatus = StatusActive
	return nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, counseleeUserID uuid.UUID, status AssignmentStatus) error {
	summary, ok := m.profiles[counseleeUserID]
	if !ok {
		return shared.ErrNotFound
	}
	summary.AssignmentStatus = status
	return nil
}

func (m *mockRepo) CreateAccountWithProfile(_ context.Context, record NewAccountRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.accounts = append(m.accounts, record)
	m.profiles[record.UserID] = &Summary{Profile: record.Profile, Email: record.Email, FullName: record.FullName}
	return nil
}

type mockDirectory struct {
	profiles map[uuid.UUID]*counselors.ProfileSummary
}

func (m *mockDirectory) GetProfileByUser(_ context.Context, userID uuid.UUID) (*counselors.ProfileSummary, error) {
	profile, ok := m.profiles[userID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return profile, nil
}

type mockSubmissions struct {
	subs map[uuid.UUID]*intake.Submission
}

func (m *mockSubmissions) GetSubmission(_ context.Context, id uuid.UUID) (*intake.Submission, error) {
	sub, ok := m.subs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return sub, nil
}

func counselorWith(active, max int, accepting bool) (*mockDirectory, uuid.UUID) {
	id := uuid.New()
	return &mockDirectory{profiles: map[uuid.UUID]*counselors.ProfileSummary{
		id: {
			Profile:          counselors.Profile{UserID: id, MaxCounselees: max, IsAcceptingNew: accepting},
			ActiveCounselees: active,
		},
	}}, id
}

func TestAssignCounselor(t *testing.T) {
	repo := newMockRepo()
	counseleeID := uuid.New()
	repo.profiles[counseleeID] = &Summary{Profile: Profile{UserID: counseleeID, AssignmentStatus: StatusPending}}
	directory, counselorID := counselorWith(1, 5, true)
	svc := NewService(repo, directory, nil, nil, nil)

	require.NoError(t, svc.AssignCounselor(context.Background(), uuid.New(), counseleeID, counselorID))
	summary := repo.profiles[counseleeID]
	assert.Equal(t, counselorID, *summary.AssignedCounselorID)
	assert.Equal(t, StatusActive, summary.AssignmentStatus)
}

func TestAssignCounselorNotAccepting(t *testing.T) {
	repo := newMockRepo()
	counseleeID := uuid.New()
	repo.profiles[counseleeID] = &Summary{Profile: Profile{UserID: counseleeID}}
	directory, counselorID := counselorWith(0, 5, false)
	svc := NewService(repo, directory, nil, nil, nil)

	err := svc.AssignCounselor(context.Background(), uuid.New(), counseleeID, counselorID)
	assert.ErrorIs(t, err, ErrCounselorNotAccepting)
}

func TestAssignCounselorAtCapacity(t *testing.T) {
	repo := newMockRepo()
	counseleeID := uuid.New()
	repo.profiles[counseleeID] = &Summary{Profile: Profile{UserID: counseleeID}}
	directory, counselorID := counselorWith(5, 5, true)
	svc := NewService(repo, directory, nil, nil, nil)

	err := svc.AssignCounselor(context.Background(), uuid.New(), counseleeID, counselorID)
	assert.ErrorIs(t, err, ErrCounselorAtCapacity)
}

func TestAssignCounselorWithoutProfile(t *testing.T) {
	repo := newMockRepo()
	counseleeID := uuid.New()
	repo.profiles[counseleeID] = &Summary{Profile: Profile{UserID: counseleeID}}
	svc := NewService(repo, &mockDirectory{profiles: map[uuid.UUID]*counselors.ProfileSummary{}}, nil, nil, nil)

	err := svc.AssignCounselor(context.Background(), uuid.New(), counseleeID, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateStatus(t *testing.T) {
	repo := newMockRepo()
	counseleeID := uuid.New()
	repo.profiles[counseleeID] = &Summary{Profile: Profile{UserID: counseleeID, AssignmentStatus: StatusActive}}
	svc := NewService(repo, nil, nil, nil, nil)

	require.NoError(t, svc.UpdateStatus(context.Background(), uuid.New(), counseleeID, StatusCompleted))
	assert.Equal(t, StatusCompleted, repo.profiles[counseleeID].AssignmentStatus)
}

func TestParseAssignmentStatus(t *testing.T) {
	for _, valid := range []string{"pending", "active", "completed", "archived"} {
		status, err := ParseAssignmentStatus(valid)
		require.NoError(t, err)
		assert.Equal(t, AssignmentStatus(valid), status)
	}
	_, err := ParseAssignmentStatus("paused")
	assert.Error(t, err)
}

func TestGenerateAccount(t *testing.T) {
	repo := newMockRepo()
	directory, counselorID := counselorWith(0, 5, true)
	submissionID := uuid.New()
	submissions := &mockSubmissions{subs: map[uuid.UUID]*intake.Submission{
		submissionID: {ID: submissionID, SubmissionID: "sub-42"},
	}}
	svc := NewService(repo, directory, submissions, nil, nil)

	account, err := svc.GenerateAccount(context.Background(), counselorID, GenerateAccountInput{
		IntakeSubmissionID: submissionID,
		Email:              " New@Example.org ",
		FullName:           "New Counselee",
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.org", account.Email)
	assert.NotEmpty(t, account.Password)

	require.Len(t, repo.accounts, 1)
	record := repo.accounts[0]
	assert.Equal(t, submissionID, *record.Profile.IntakeSubmissionID)
	assert.Equal(t, counselorID, *record.Profile.AssignedCounselorID)
	assert.Equal(t, StatusActive, record.Profile.AssignmentStatus)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(account.Password)))
}

func TestGenerateAccountUnknownSubmission(t *testing.T) {
	repo := newMockRepo()
	directory, counselorID := counselorWith(0, 5, true)
	svc := NewService(repo, directory, &mockSubmissions{subs: map[uuid.UUID]*intake.Submission{}}, nil, nil)

	_, err := svc.GenerateAccount(context.Background(), counselorID, GenerateAccountInput{
		IntakeSubmissionID: uuid.New(),
		Email:              "new@example.org",
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Empty(t, repo.accounts)
}

func TestGenerateAccountAtCapacity(t *testing.T) {
	repo := newMockRepo()
	directory, counselorID := counselorWith(5, 5, true)
	submissionID := uuid.New()
	submissions := &mockSubmissions{subs: map[uuid.UUID]*intake.Submission{
		submissionID: {ID: submissionID},
	}}
	svc := NewService(repo, directory, submissions, nil, nil)

	_, err := svc.GenerateAccount(context.Background(), counselorID, GenerateAccountInput{
		IntakeSubmissionID: submissionID,
		Email:              "new@example.org",
	})
	assert.ErrorIs(t, err, ErrCounselorAtCapacity)
}

func TestGenerateAccountRequiresEmail(t *testing.T) {
	svc := NewService(newMockRepo(), nil, &mockSubmissions{}, nil, nil)

	_, err := svc.GenerateAccount(context.Background(), uuid.New(), GenerateAccountInput{IntakeSubmissionID: uuid.New()})
	assert.Error(t, err)
}

func TestListCounseleesFiltersByCounselor(t *testing.T) {
	repo := newMockRepo()
	counselorID := uuid.New()
	mine := uuid.New()
	other := uuid.New()
	repo.profiles[mine] = &Summary{Profile: Profile{UserID: mine, AssignedCounselorID: &counselorID, AssignmentStatus: StatusActive}}
	otherCounselor := uuid.New()
	repo.profiles[other] = &Summary{Profile: Profile{UserID: other, AssignedCounselorID: &otherCounselor, AssignmentStatus: StatusActive}}
	svc := NewService(repo, nil, nil, nil, nil)

	summaries, pagination, err := svc.ListCounselees(context.Background(), ListFilter{CounselorID: &counselorID})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, mine, summaries[0].UserID)
	assert.Equal(t, 1, pagination.Total)
}
