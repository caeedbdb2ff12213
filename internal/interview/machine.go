package interview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/financebro/backend/internal/models"
)

// State is the lifecycle state of a live interview session.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateRunning    State = "running"
	StateEnding     State = "ending"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// EndOrigin records what triggered a completion attempt.
type EndOrigin string

const (
	EndOriginAuto   EndOrigin = "auto"   // countdown reached zero
	EndOriginManual EndOrigin = "manual" // explicit user action
	EndOriginAgent  EndOrigin = "agent"  // interview_complete signal from the agent
)

var (
	// ErrNotRunning is returned by End when the session is not in a state
	// that can be completed.
	ErrNotRunning = errors.New("interview session is not running")
	// ErrInvalidTransition is returned on out-of-order lifecycle calls.
	ErrInvalidTransition = errors.New("invalid session state transition")
)

// Completer persists the completion: one transactional write covering the
// session status flip and the feedback insert.
type Completer interface {
	CompleteSession(ctx context.Context, sessionID uuid.UUID, payload models.FeedbackPayload) (uuid.UUID, error)
}

// EventSink receives machine events for the realtime channel.
type EventSink interface {
	SessionEvent(sessionID uuid.UUID, event string, payload interface{})
}

type noopSink struct{}

func (noopSink) SessionEvent(uuid.UUID, string, interface{}) {}

// MachineConfig holds pacing settings for one machine.
type MachineConfig struct {
	QuestionInterval time.Duration // interval between question advances
	CompleteTimeout  time.Duration // cap on the completion write
}

// FeedbackPath returns the report route for a completed session.
func FeedbackPath(sessionID uuid.UUID) string {
	return "/interview/feedback/" + sessionID.String()
}

// Machine drives one interview session through
// idle -> connecting -> running -> ending -> completed (error reachable from
// connecting and running). It owns its two scheduled tasks - the one-second
// countdown and the question-advance ticker - and keeps their cancellation
// handles in its own fields so that entering a terminal state revokes both
// synchronously before any further mutation is possible. Completion is
// guarded: no matter how many triggers race (double click, auto timeout,
// agent signal), at most one attempt reaches the completer.
type Machine struct {
	mu            sync.Mutex
	session       *models.InterviewSession
	state         State
	lastErr       error
	timeRemaining int
	questions     []models.Question
	questionIndex int
	completing    bool
	feedbackID    uuid.UUID

	cancelCountdown context.CancelFunc
	cancelAdvance   context.CancelFunc

	completer Completer
	scorer    Scorer
	events    EventSink
	cfg       MachineConfig
	logger    *zap.Logger
}

// NewMachine creates an idle machine for a session.
func NewMachine(session *models.InterviewSession, questions []models.Question, completer Completer, scorer Scorer, events EventSink, cfg MachineConfig, logger *zap.Logger) *Machine {
	if events == nil {
		events = noopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QuestionInterval <= 0 {
		cfg.QuestionInterval = 30 * time.Second
	}
	return &Machine{
		session:       session,
		state:         StateIdle,
		timeRemaining: session.DurationMinutes * 60,
		questions:     questions,
		completer:     completer,
		scorer:        scorer,
		events:        events,
		cfg:           cfg,
		logger:        logger,
	}
}

// StartConnecting moves idle (or error, for retry) to connecting.
func (m *Machine) StartConnecting() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle && m.state != StateError {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, m.state)
	}
	m.state = StateConnecting
	m.lastErr = nil
	return nil
}

// Fail records a provisioning or connection error. Reachable from connecting
// and running; the user retries manually.
func (m *Machine) Fail(err error) {
	m.mu.Lock()
	if m.state != StateConnecting && m.state != StateRunning {
		m.mu.Unlock()
		return
	}
	m.stopTimersLocked()
	m.state = StateError
	m.lastErr = err
	sessionID := m.session.ID
	m.mu.Unlock()
	m.events.SessionEvent(sessionID, "session_error", map[string]string{"error": err.Error()})
}

// Connected confirms the media room connection and moves connecting to
// running, starting the countdown and question-advance tasks.
func (m *Machine) Connected() error {
	m.mu.Lock()
	if m.state != StateConnecting {
		m.mu.Unlock()
		return fmt.Errorf("%w: connected from %s", ErrInvalidTransition, m.state)
	}
	m.state = StateRunning
	m.startTimersLocked()
	sessionID := m.session.ID
	remaining := m.timeRemaining
	m.mu.Unlock()
	m.events.SessionEvent(sessionID, "session_running", map[string]int{"time_remaining": remaining})
	return nil
}

func (m *Machine) startTimersLocked() {
	countdownCtx, cancelCountdown := context.WithCancel(context.Background())
	m.cancelCountdown = cancelCountdown
	go m.runCountdown(countdownCtx)

	advanceCtx, cancelAdvance := context.WithCancel(context.Background())
	m.cancelAdvance = cancelAdvance
	go m.runQuestionAdvance(advanceCtx)
}

func (m *Machine) stopTimersLocked() {
	if m.cancelCountdown != nil {
		m.cancelCountdown()
		m.cancelCountdown = nil
	}
	if m.cancelAdvance != nil {
		m.cancelAdvance()
		m.cancelAdvance = nil
	}
}

func (m *Machine) runCountdown(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.tick() {
				if err := m.End(context.Background(), EndOriginAuto); err != nil {
					m.logger.Error("auto completion failed", zap.Error(err), zap.String("session_id", m.session.ID.String()))
				}
				return
			}
		}
	}
}

// tick advances the countdown by one second and reports whether it expired.
func (m *Machine) tick() bool {
	m.mu.Lock()
	if m.state != StateRunning || m.completing {
		m.mu.Unlock()
		return false
	}
	if m.timeRemaining > 0 {
		m.timeRemaining--
	}
	remaining := m.timeRemaining
	sessionID := m.session.ID
	m.mu.Unlock()
	m.events.SessionEvent(sessionID, "time_remaining", map[string]int{"seconds": remaining})
	return remaining == 0
}

func (m *Machine) runQuestionAdvance(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.QuestionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.advanceQuestion()
		}
	}
}

// advanceQuestion marks the current question asked and moves the pointer
// forward, stopping at the last question. Asked never flips back to false.
func (m *Machine) advanceQuestion() {
	m.mu.Lock()
	if m.state != StateRunning || m.completing || m.questionIndex >= len(m.questions) {
		m.mu.Unlock()
		return
	}
	m.questions[m.questionIndex].Asked = true
	asked := m.questions[m.questionIndex]
	if m.questionIndex < len(m.questions)-1 {
		m.questionIndex++
	}
	index := m.questionIndex
	sessionID := m.session.ID
	m.mu.Unlock()
	m.events.SessionEvent(sessionID, "question_asked", map[string]interface{}{
		"question": asked,
		"index":    index,
	})
}

// End runs the completion protocol. Idempotent: concurrent and repeated
// invocations (double click, auto timeout racing a manual end, the agent
// signal) result in exactly one completion write. The guard flag is
// checked-and-set under the lock after both timers have been revoked, before
// any asynchronous work begins.
func (m *Machine) End(ctx context.Context, origin EndOrigin) error {
	m.mu.Lock()
	if m.completing || m.state == StateCompleted {
		m.mu.Unlock()
		return nil
	}
	if m.state != StateRunning {
		m.mu.Unlock()
		return ErrNotRunning
	}
	m.stopTimersLocked()
	m.completing = true
	m.state = StateEnding
	session := m.session
	asked := make([]models.Question, 0, len(m.questions))
	for _, q := range m.questions {
		if q.Asked {
			asked = append(asked, q)
		}
	}
	m.mu.Unlock()

	m.events.SessionEvent(session.ID, "session_ending", map[string]string{"origin": string(origin)})

	payload := m.scorer.Synthesize(session, asked)

	completeCtx := ctx
	if m.cfg.CompleteTimeout > 0 {
		var cancel context.CancelFunc
		completeCtx, cancel = context.WithTimeout(ctx, m.cfg.CompleteTimeout)
		defer cancel()
	}
	feedbackID, err := m.completer.CompleteSession(completeCtx, session.ID, payload)
	if err != nil {
		if errors.Is(err, ErrAlreadyCompleted) {
			// Another writer finalized the row first; adopt the outcome.
			m.mu.Lock()
			m.state = StateCompleted
			m.mu.Unlock()
			return nil
		}
		// Revert the guard so the user can retry; timers stay revoked.
		m.mu.Lock()
		m.completing = false
		m.state = StateRunning
		m.lastErr = err
		m.mu.Unlock()
		m.events.SessionEvent(session.ID, "session_end_failed", map[string]string{"error": err.Error()})
		return fmt.Errorf("complete session: %w", err)
	}

	m.mu.Lock()
	m.state = StateCompleted
	m.feedbackID = feedbackID
	m.mu.Unlock()
	m.events.SessionEvent(session.ID, "session_completed", map[string]interface{}{
		"feedback_id": feedbackID,
		"redirect":    FeedbackPath(session.ID),
		"origin":      string(origin),
	})
	m.logger.Info("interview session completed",
		zap.String("session_id", session.ID.String()),
		zap.String("feedback_id", feedbackID.String()),
		zap.String("origin", string(origin)))
	return nil
}

// Shutdown revokes outstanding tasks on teardown (navigation away, server
// stop) without completing the session.
func (m *Machine) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimersLocked()
}

// Snapshot is a point-in-time view of a machine for API responses.
type Snapshot struct {
	SessionID     uuid.UUID         `json:"session_id"`
	State         State             `json:"state"`
	TimeRemaining int               `json:"time_remaining"`
	Questions     []models.Question `json:"questions"`
	QuestionIndex int               `json:"question_index"`
	FeedbackID    *uuid.UUID        `json:"feedback_id,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// Snapshot returns the machine's current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Snapshot{
		SessionID:     m.session.ID,
		State:         m.state,
		TimeRemaining: m.timeRemaining,
		Questions:     append([]models.Question(nil), m.questions...),
		QuestionIndex: m.questionIndex,
	}
	if m.feedbackID != uuid.Nil {
		id := m.feedbackID
		snap.FeedbackID = &id
	}
	if m.lastErr != nil {
		snap.Error = m.lastErr.Error()
	}
	return snap
}

// State returns the current lifecycle state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// TimeRemaining returns the countdown value in seconds.
func (m *Machine) TimeRemaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeRemaining
}
