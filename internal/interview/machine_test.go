package interview

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/financebro/backend/internal/models"
)

type fakeCompleter struct {
	mu         sync.Mutex
	calls      int
	err        error
	feedbackID uuid.UUID
	lastAsked  int
}

func (f *fakeCompleter) CompleteSession(_ context.Context, _ uuid.UUID, payload models.FeedbackPayload) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastAsked = len(payload.PerQuestion)
	if f.err != nil {
		return uuid.Nil, f.err
	}
	return f.feedbackID, nil
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordedEvent struct {
	event   string
	payload interface{}
}

type recordingSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingSink) SessionEvent(_ uuid.UUID, event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{event: event, payload: payload})
}

func (r *recordingSink) find(event string) (recordedEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.event == event {
			return e, true
		}
	}
	return recordedEvent{}, false
}

func testSession(durationMinutes int) *models.InterviewSession {
	return &models.InterviewSession{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		Title:           "M&A Analyst Interview",
		Company:         "Goldman Sachs",
		Role:            "Analyst",
		DurationMinutes: durationMinutes,
		Status:          models.StatusScheduled,
	}
}

// runningMachine builds a machine, walks it to running through the real
// transitions, then revokes the live tickers so tests can drive tick and
// advanceQuestion deterministically.
func runningMachine(t *testing.T, durationMinutes int, completer Completer, sink EventSink) *Machine {
	t.Helper()
	m := NewMachine(testSession(durationMinutes), NewStaticQuestionSource().Questions(nil), completer, NewBandScorer(70, 90, nil), sink, MachineConfig{}, nil)
	require.NoError(t, m.StartConnecting())
	require.NoError(t, m.Connected())
	m.Shutdown()
	return m
}

func TestMachineLifecycleTransitions(t *testing.T) {
	m := NewMachine(testSession(20), nil, &fakeCompleter{}, NewBandScorer(70, 90, nil), nil, MachineConfig{}, nil)
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, 20*60, m.TimeRemaining())

	require.NoError(t, m.StartConnecting())
	assert.Equal(t, StateConnecting, m.State())

	// connected is only valid from connecting
	require.NoError(t, m.Connected())
	defer m.Shutdown()
	assert.Equal(t, StateRunning, m.State())
	assert.ErrorIs(t, m.Connected(), ErrInvalidTransition)
	assert.ErrorIs(t, m.StartConnecting(), ErrInvalidTransition)
}

func TestMachineFailAllowsRetry(t *testing.T) {
	m := NewMachine(testSession(20), nil, &fakeCompleter{}, NewBandScorer(70, 90, nil), nil, MachineConfig{}, nil)
	require.NoError(t, m.StartConnecting())
	m.Fail(errors.New("provision timeout"))
	assert.Equal(t, StateError, m.State())
	assert.Equal(t, "provision timeout", m.Snapshot().Error)

	// error state is retryable
	require.NoError(t, m.StartConnecting())
	assert.Equal(t, StateConnecting, m.State())
	assert.Empty(t, m.Snapshot().Error)
}

func TestCountdownTicksDownAndExpires(t *testing.T) {
	completer := &fakeCompleter{feedbackID: uuid.New()}
	m := runningMachine(t, 1, completer, nil)

	for i := 0; i < 59; i++ {
		assert.False(t, m.tick())
	}
	assert.Equal(t, 1, m.TimeRemaining())
	assert.True(t, m.tick(), "60th tick should expire the countdown")
	assert.Equal(t, 0, m.TimeRemaining())

	require.NoError(t, m.End(context.Background(), EndOriginAuto))
	assert.Equal(t, StateCompleted, m.State())
	assert.Equal(t, 1, completer.callCount())
}

func TestFullLengthCountdownExpiresExactlyOnce(t *testing.T) {
	completer := &fakeCompleter{feedbackID: uuid.New()}
	m := runningMachine(t, 20, completer, nil)

	expiries := 0
	for i := 0; i < 1200; i++ {
		if m.tick() {
			expiries++
		}
	}
	assert.Equal(t, 1, expiries, "a 20-minute session expires on exactly one tick")
	assert.Equal(t, 0, m.TimeRemaining())

	require.NoError(t, m.End(context.Background(), EndOriginAuto))
	assert.Equal(t, StateCompleted, m.State())
	assert.Equal(t, 1, completer.callCount())
}

func TestQuestionAdvanceMarksAskedAndClampsAtLast(t *testing.T) {
	m := runningMachine(t, 20, &fakeCompleter{feedbackID: uuid.New()}, nil)

	total := len(m.Snapshot().Questions)
	require.Equal(t, 5, total)

	// advance well past the end of the list
	for i := 0; i < total+3; i++ {
		m.advanceQuestion()
	}

	snap := m.Snapshot()
	assert.Equal(t, total-1, snap.QuestionIndex, "pointer stays on the last question")
	for _, q := range snap.Questions {
		assert.True(t, q.Asked, "question %s should be marked asked", q.ID)
	}
}

func TestAskedNeverFlipsBack(t *testing.T) {
	m := runningMachine(t, 20, &fakeCompleter{feedbackID: uuid.New()}, nil)
	m.advanceQuestion()
	m.advanceQuestion()

	before := m.Snapshot().Questions
	m.advanceQuestion()
	after := m.Snapshot().Questions
	for i := range before {
		if before[i].Asked {
			assert.True(t, after[i].Asked)
		}
	}
}

func TestEndIsIdempotentUnderRace(t *testing.T) {
	completer := &fakeCompleter{feedbackID: uuid.New()}
	m := runningMachine(t, 20, completer, nil)

	var wg sync.WaitGroup
	origins := []EndOrigin{EndOriginManual, EndOriginAuto, EndOriginAgent}
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(origin EndOrigin) {
			defer wg.Done()
			assert.NoError(t, m.End(context.Background(), origin))
		}(origins[i%len(origins)])
	}
	wg.Wait()

	assert.Equal(t, 1, completer.callCount(), "exactly one completion attempt must reach the store")
	assert.Equal(t, StateCompleted, m.State())
}

func TestEndFailureRevertsGuardAndAllowsRetry(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("db down")}
	sink := &recordingSink{}
	m := runningMachine(t, 20, completer, sink)

	err := m.End(context.Background(), EndOriginManual)
	require.Error(t, err)
	assert.Equal(t, StateRunning, m.State(), "failed completion returns the session to running")
	assert.Equal(t, 1, completer.callCount())

	_, failed := sink.find("session_end_failed")
	assert.True(t, failed)

	// retry succeeds once the store recovers
	completer.mu.Lock()
	completer.err = nil
	completer.feedbackID = uuid.New()
	completer.mu.Unlock()

	require.NoError(t, m.End(context.Background(), EndOriginManual))
	assert.Equal(t, StateCompleted, m.State())
	assert.Equal(t, 2, completer.callCount())
}

func TestEndAdoptsConcurrentCompletion(t *testing.T) {
	completer := &fakeCompleter{err: ErrAlreadyCompleted}
	m := runningMachine(t, 20, completer, nil)

	require.NoError(t, m.End(context.Background(), EndOriginAgent))
	assert.Equal(t, StateCompleted, m.State())
	assert.Equal(t, 1, completer.callCount())
}

func TestEndRejectsNonRunningStates(t *testing.T) {
	m := NewMachine(testSession(20), nil, &fakeCompleter{}, NewBandScorer(70, 90, nil), nil, MachineConfig{}, nil)
	assert.ErrorIs(t, m.End(context.Background(), EndOriginManual), ErrNotRunning)

	require.NoError(t, m.StartConnecting())
	assert.ErrorIs(t, m.End(context.Background(), EndOriginManual), ErrNotRunning)
}

func TestCompletedEventCarriesRedirect(t *testing.T) {
	feedbackID := uuid.New()
	completer := &fakeCompleter{feedbackID: feedbackID}
	sink := &recordingSink{}
	m := runningMachine(t, 20, completer, sink)
	sessionID := m.Snapshot().SessionID

	require.NoError(t, m.End(context.Background(), EndOriginManual))

	event, ok := sink.find("session_completed")
	require.True(t, ok)
	payload, ok := event.payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, feedbackID, payload["feedback_id"])
	assert.Equal(t, "/interview/feedback/"+sessionID.String(), payload["redirect"])

	snap := m.Snapshot()
	require.NotNil(t, snap.FeedbackID)
	assert.Equal(t, feedbackID, *snap.FeedbackID)
}

func TestShortSessionEndToEnd(t *testing.T) {
	completer := &fakeCompleter{feedbackID: uuid.New()}
	m := runningMachine(t, 1, completer, nil)

	// 60 seconds at a 30s question interval: two advances, then expiry.
	for second := 1; second <= 60; second++ {
		if second%30 == 0 {
			m.advanceQuestion()
		}
		expired := m.tick()
		if second < 60 {
			assert.False(t, expired)
		} else {
			assert.True(t, expired)
		}
	}

	require.NoError(t, m.End(context.Background(), EndOriginAuto))
	assert.Equal(t, StateCompleted, m.State())
	assert.Equal(t, 2, completer.lastAsked, "two questions reached asked in one minute")
}

func TestTicksIgnoredAfterCompletion(t *testing.T) {
	completer := &fakeCompleter{feedbackID: uuid.New()}
	m := runningMachine(t, 1, completer, nil)
	require.NoError(t, m.End(context.Background(), EndOriginManual))

	remaining := m.TimeRemaining()
	assert.False(t, m.tick())
	assert.Equal(t, remaining, m.TimeRemaining())
	m.advanceQuestion()
	assert.Equal(t, 0, m.Snapshot().QuestionIndex)
}
