package interview

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/financebro/backend/config"
	"github.com/financebro/backend/internal/middleware"
	"github.com/financebro/backend/internal/models"
)

// fakeStore keeps sessions and feedback in memory. DeleteFeedback removes
// both rows together or neither, matching the transactional repository.
type fakeStore struct {
	mu        sync.Mutex
	sessions  map[uuid.UUID]*models.InterviewSession
	feedback  map[uuid.UUID]models.FeedbackPayload
	deleteErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[uuid.UUID]*models.InterviewSession),
		feedback: make(map[uuid.UUID]models.FeedbackPayload),
	}
}

func (f *fakeStore) CreateSession(_ context.Context, s *models.InterviewSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeStore) GetSessionForUser(_ context.Context, id, userID uuid.UUID) (*models.InterviewSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.UserID != userID {
		return nil, ErrSessionNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeStore) ListSessions(_ context.Context, userID uuid.UUID) ([]models.InterviewSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.InterviewSession
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkInProgress(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		s.Status = models.StatusInProgress
	}
	return nil
}

func (f *fakeStore) CompleteSession(_ context.Context, sessionID uuid.UUID, payload models.FeedbackPayload) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedback[sessionID] = payload
	if s, ok := f.sessions[sessionID]; ok {
		s.Status = models.StatusCompleted
	}
	return uuid.New(), nil
}

func (f *fakeStore) GetFeedback(_ context.Context, sessionID, _ uuid.UUID) (*models.InterviewFeedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.feedback[sessionID]; !ok {
		return nil, ErrFeedbackNotFound
	}
	return &models.InterviewFeedback{SessionID: sessionID}, nil
}

func (f *fakeStore) ListFeedbackForUser(_ context.Context, _ uuid.UUID) ([]FeedbackSummary, error) {
	return nil, nil
}

func (f *fakeStore) DeleteFeedback(_ context.Context, sessionID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	s, ok := f.sessions[sessionID]
	if !ok || s.UserID != userID {
		return ErrSessionNotFound
	}
	delete(f.feedback, sessionID)
	delete(f.sessions, sessionID)
	return nil
}

func (f *fakeStore) counts() (sessions, feedback int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions), len(f.feedback)
}

func newTestRouter(store *fakeStore, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := NewService(store, nil, nil, nil, config.InterviewConfig{}, nil)
	h := NewHandler(svc, nil)
	r := gin.New()
	rg := r.Group("/", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
	})
	h.RegisterRoutes(rg)
	return r
}

func seedSessionWithFeedback(store *fakeStore, userID uuid.UUID) uuid.UUID {
	id := uuid.New()
	store.sessions[id] = &models.InterviewSession{
		ID: id, UserID: userID, Title: "VP mock", Status: models.StatusCompleted,
	}
	store.feedback[id] = models.FeedbackPayload{General: "solid"}
	return id
}

func TestDeleteInterviewIdempotent(t *testing.T) {
	userID := uuid.New()
	store := newFakeStore()
	sessionID := seedSessionWithFeedback(store, userID)
	router := newTestRouter(store, userID)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/interviews/"+sessionID.String(), nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	sessions, feedback := store.counts()
	assert.Zero(t, sessions, "session row must be gone after delete")
	assert.Zero(t, feedback, "feedback row must be gone after delete")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/interviews/"+sessionID.String(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code, "second delete must report not found")
}

func TestDeleteInterviewScopedToOwner(t *testing.T) {
	owner := uuid.New()
	store := newFakeStore()
	sessionID := seedSessionWithFeedback(store, owner)
	router := newTestRouter(store, uuid.New()) // different caller

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/interviews/"+sessionID.String(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	sessions, feedback := store.counts()
	assert.Equal(t, 1, sessions, "another user's delete must not touch the session")
	assert.Equal(t, 1, feedback)
}

func TestDeleteInterviewFailureLeavesNoPartialState(t *testing.T) {
	userID := uuid.New()
	store := newFakeStore()
	sessionID := seedSessionWithFeedback(store, userID)
	store.deleteErr = errors.New("connection reset")
	router := newTestRouter(store, userID)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/interviews/"+sessionID.String(), nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	sessions, feedback := store.counts()
	assert.Equal(t, 1, sessions)
	assert.Equal(t, 1, feedback)
}
