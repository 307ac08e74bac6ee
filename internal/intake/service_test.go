package intake

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-care/brightpath/internal/authz"
	"github.com/brightpath-care/brightpath/internal/shared"
)

type mockRepo struct {
	subs      map[string]Submission
	createErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{subs: make(map[string]Submission)}
}

func (m *mockRepo) CreateSubmission(_ context.Context, sub Submission) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.subs[sub.SubmissionID]; ok {
		return shared.ErrDuplicate
	}
	m.subs[sub.SubmissionID] = sub
	return nil
}

func (m *mockRepo) ListSubmissions(_ context.Context, _ ListFilter) ([]Submission, int, error) {
	var out []Submission
	for _, sub := range m.subs {
		out = append(out, sub)
	}
	return out, len(out), nil
}

func (m *mockRepo) GetSubmission(_ context.Context, id uuid.UUID) (*Submission, error) {
	for _, sub := range m.subs {
		if sub.ID == id {
			return &sub, nil
		}
	}
	return nil, shared.ErrNotFound
}

type mockDedup struct {
	seen     map[string]struct{}
	checkErr error
}

func newMockDedup() *mockDedup {
	return &mockDedup{seen: make(map[string]struct{})}
}

func (m *mockDedup) CheckAndInsert(_ context.Context, key, source string) error {
	if m.checkErr != nil {
		return m.checkErr
	}
	composite := source + ":" + key
	if _, ok := m.seen[composite]; ok {
		return shared.ErrDuplicateDelivery
	}
	m.seen[composite] = struct{}{}
	return nil
}

type mockNotify struct {
	notified []uuid.UUID
	err      error
}

func (m *mockNotify) EnqueueIntakeNotification(_ context.Context, id uuid.UUID, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.notified = append(m.notified, id)
	return nil
}

func TestIngestStoresAndNotifies(t *testing.T) {
	repo := newMockRepo()
	notify := &mockNotify{}
	svc := NewService(repo, newMockDedup(), notify, nil)

	sub, duplicate, err := svc.Ingest(context.Background(), IncomingSubmission{
		FormID:       "form-9",
		SubmissionID: "sub-42",
		Payload:      map[string]any{"submissionID": "sub-42"},
	})
	require.NoError(t, err)
	assert.False(t, duplicate)
	assert.Contains(t, repo.subs, "sub-42")
	assert.Equal(t, []uuid.UUID{sub.ID}, notify.notified)
}

func TestIngestDuplicateDeliveryAcknowledged(t *testing.T) {
	repo := newMockRepo()
	dedup := newMockDedup()
	notify := &mockNotify{}
	svc := NewService(repo, dedup, notify, nil)

	_, duplicate, err := svc.Ingest(context.Background(), IncomingSubmission{SubmissionID: "sub-42"})
	require.NoError(t, err)
	require.False(t, duplicate)

	_, duplicate, err = svc.Ingest(context.Background(), IncomingSubmission{SubmissionID: "sub-42"})
	require.NoError(t, err)
	assert.True(t, duplicate)
	assert.Len(t, repo.subs, 1)
	assert.Len(t, notify.notified, 1)
}

func TestIngestUniqueHitTreatedAsDuplicate(t *testing.T) {
	repo := newMockRepo()
	repo.subs["sub-42"] = Submission{ID: uuid.New(), SubmissionID: "sub-42"}
	svc := NewService(repo, newMockDedup(), nil, nil)

	_, duplicate, err := svc.Ingest(context.Background(), IncomingSubmission{SubmissionID: "sub-42"})
	require.NoError(t, err)
	assert.True(t, duplicate)
}

func TestIngestNotifyFailureDoesNotFailDelivery(t *testing.T) {
	svc := NewService(newMockRepo(), newMockDedup(), &mockNotify{err: errors.New("queue down")}, nil)

	_, duplicate, err := svc.Ingest(context.Background(), IncomingSubmission{SubmissionID: "sub-42"})
	assert.NoError(t, err)
	assert.False(t, duplicate)
}

func TestIngestStoreErrorPropagates(t *testing.T) {
	repo := newMockRepo()
	repo.createErr = errors.New("db down")
	svc := NewService(repo, newMockDedup(), nil, nil)

	_, _, err := svc.Ingest(context.Background(), IncomingSubmission{SubmissionID: "sub-42"})
	assert.Error(t, err)
}

func newWebhookRouter(svc *Service, secret string) chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, svc, nil, nil, authz.Middleware{}, secret)
	router := chi.NewRouter()
	router.Route("/hooks", handler.MountWebhookRoutes)
	return router
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	svc := NewService(newMockRepo(), newMockDedup(), nil, nil)
	router := newWebhookRouter(svc, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/hooks/intake/wrong", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestWebhookAcceptsDelivery(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, newMockDedup(), nil, nil)
	router := newWebhookRouter(svc, "s3cret")

	body := `{"formID":"form-9","submissionID":"sub-42"}`
	req := httptest.NewRequest(http.MethodPost, "/hooks/intake?secret=s3cret", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"received"`)
	assert.Contains(t, repo.subs, "sub-42")
}

func TestWebhookDuplicateStillAcknowledged(t *testing.T) {
	svc := NewService(newMockRepo(), newMockDedup(), nil, nil)
	router := newWebhookRouter(svc, "s3cret")

	body := `{"submissionID":"sub-42"}`
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/hooks/intake", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(SecretHeader, "s3cret")
		res := httptest.NewRecorder()
		router.ServeHTTP(res, req)
		require.Equal(t, http.StatusOK, res.Code)
		if i == 1 {
			assert.Contains(t, res.Body.String(), `"duplicate"`)
		}
	}
}

func TestWebhookRejectsUnparseableBody(t *testing.T) {
	svc := NewService(newMockRepo(), newMockDedup(), nil, nil)
	router := newWebhookRouter(svc, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/hooks/intake?secret=s3cret", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusBadRequest, res.Code)
}
