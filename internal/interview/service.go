package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/financebro/backend/config"
	"github.com/financebro/backend/internal/models"
	"github.com/financebro/backend/internal/provision"
	"github.com/financebro/backend/pkg/queue"
	"github.com/financebro/backend/pkg/storage"
)

// ErrNoTranscript is returned when a session has no archived transcript.
var ErrNoTranscript = errors.New("no transcript for session")

// ErrNoActiveMachine is returned for lifecycle calls against a session that
// has no live machine on this instance.
var ErrNoActiveMachine = errors.New("no active machine for session")

// Provisioner acquires room credentials and dispatches the coach agent.
type Provisioner interface {
	Provision(ctx context.Context, req provision.Request) (*provision.Result, error)
}

// Enqueuer is the slice of the job queue the service needs.
type Enqueuer interface {
	EnqueueTranscriptArchive(ctx context.Context, payload queue.TranscriptArchivePayload) error
}

// SessionStore is the persistence surface the service depends on.
// *Repository is the production implementation.
type SessionStore interface {
	Completer
	CreateSession(ctx context.Context, s *models.InterviewSession) error
	GetSessionForUser(ctx context.Context, id, userID uuid.UUID) (*models.InterviewSession, error)
	ListSessions(ctx context.Context, userID uuid.UUID) ([]models.InterviewSession, error)
	MarkInProgress(ctx context.Context, id uuid.UUID) error
	GetFeedback(ctx context.Context, sessionID, userID uuid.UUID) (*models.InterviewFeedback, error)
	ListFeedbackForUser(ctx context.Context, userID uuid.UUID) ([]FeedbackSummary, error)
	DeleteFeedback(ctx context.Context, sessionID, userID uuid.UUID) error
}

// Service orchestrates interview sessions: persistence through the
// repository, room provisioning, and one in-memory machine per live session.
type Service struct {
	repo        SessionStore
	provisioner Provisioner
	questions   QuestionSource
	scorer      Scorer
	events      EventSink
	enqueuer    Enqueuer
	storage     *storage.S3
	cfg         config.InterviewConfig
	logger      *zap.Logger

	mu       sync.Mutex
	machines map[uuid.UUID]*Machine
}

// NewService wires the interview service.
func NewService(repo SessionStore, provisioner Provisioner, questions QuestionSource, scorer Scorer, cfg config.InterviewConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:        repo,
		provisioner: provisioner,
		questions:   questions,
		scorer:      scorer,
		events:      noopSink{},
		cfg:         cfg,
		logger:      logger,
		machines:    make(map[uuid.UUID]*Machine),
	}
}

// SetEventSink routes machine events to the realtime layer. Call before
// serving traffic.
func (s *Service) SetEventSink(events EventSink) {
	if events == nil {
		events = noopSink{}
	}
	s.events = events
}

// SetEnqueuer attaches the background job queue. Optional; without it
// transcripts are dropped with a warning.
func (s *Service) SetEnqueuer(enqueuer Enqueuer) {
	s.enqueuer = enqueuer
}

// SetStorage attaches object storage for transcript downloads. Optional.
func (s *Service) SetStorage(store *storage.S3) {
	s.storage = store
}

// CreateInterviewInput holds the fields for a new scheduled session.
type CreateInterviewInput struct {
	Title           string
	Company         string
	Role            string
	DurationMinutes int
}

// CreateInterview persists a scheduled session.
func (s *Service) CreateInterview(ctx context.Context, userID uuid.UUID, in CreateInterviewInput) (*models.InterviewSession, error) {
	if in.DurationMinutes <= 0 {
		in.DurationMinutes = s.cfg.DefaultDurationMin
	}
	session := &models.InterviewSession{
		UserID:          userID,
		Title:           in.Title,
		Company:         in.Company,
		Role:            in.Role,
		DurationMinutes: in.DurationMinutes,
		Status:          models.StatusScheduled,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// GetInterview returns one session scoped to its owner.
func (s *Service) GetInterview(ctx context.Context, userID, sessionID uuid.UUID) (*models.InterviewSession, error) {
	return s.repo.GetSessionForUser(ctx, sessionID, userID)
}

// ListInterviews returns the caller's sessions, newest first.
func (s *Service) ListInterviews(ctx context.Context, userID uuid.UUID) ([]models.InterviewSession, error) {
	return s.repo.ListSessions(ctx, userID)
}

// StartResult is what the client needs to join the room.
type StartResult struct {
	Provision *provision.Result `json:"provision"`
	Machine   Snapshot          `json:"machine"`
}

// Start provisions the media room for a session and moves its machine to
// connecting. Retry after a failure goes through the same path.
func (s *Service) Start(ctx context.Context, userID, sessionID uuid.UUID, userName string) (*StartResult, error) {
	session, err := s.repo.GetSessionForUser(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.StatusCompleted {
		return nil, ErrAlreadyCompleted
	}

	machine := s.machineFor(session)
	if err := machine.StartConnecting(); err != nil {
		return nil, err
	}

	provCtx := ctx
	if s.cfg.ProvisionTimeoutSec > 0 {
		var cancel context.CancelFunc
		provCtx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.ProvisionTimeoutSec)*time.Second)
		defer cancel()
	}
	result, err := s.provisioner.Provision(provCtx, provision.Request{
		SessionID: session.ID.String(),
		Persona:   session.Role,
		UserName:  userName,
	})
	if err != nil {
		machine.Fail(err)
		return nil, fmt.Errorf("provision session: %w", err)
	}
	return &StartResult{Provision: result, Machine: machine.Snapshot()}, nil
}

// Connected confirms the client joined the room: the session flips to
// in_progress and the machine starts its countdown and question pacing.
func (s *Service) Connected(ctx context.Context, userID, sessionID uuid.UUID) (Snapshot, error) {
	session, err := s.repo.GetSessionForUser(ctx, sessionID, userID)
	if err != nil {
		return Snapshot{}, err
	}
	machine, ok := s.lookup(session.ID)
	if !ok {
		return Snapshot{}, ErrNoActiveMachine
	}
	if err := s.repo.MarkInProgress(ctx, session.ID); err != nil {
		return Snapshot{}, err
	}
	if err := machine.Connected(); err != nil {
		return Snapshot{}, err
	}
	return machine.Snapshot(), nil
}

// End completes a session on behalf of its owner.
func (s *Service) End(ctx context.Context, userID, sessionID uuid.UUID) (Snapshot, error) {
	session, err := s.repo.GetSessionForUser(ctx, sessionID, userID)
	if err != nil {
		return Snapshot{}, err
	}
	machine, ok := s.lookup(session.ID)
	if !ok {
		return Snapshot{}, ErrNoActiveMachine
	}
	if err := machine.End(ctx, EndOriginManual); err != nil {
		return machine.Snapshot(), err
	}
	return machine.Snapshot(), nil
}

// HandleAgentComplete processes the agent's interview_complete signal:
// archive the conversation log, then run the completion protocol through the
// same guard as every other end trigger.
func (s *Service) HandleAgentComplete(ctx context.Context, sessionID uuid.UUID, conversationLog json.RawMessage) error {
	if len(conversationLog) > 0 {
		if s.enqueuer != nil {
			if err := s.enqueuer.EnqueueTranscriptArchive(ctx, queue.TranscriptArchivePayload{
				SessionID:       sessionID,
				ConversationLog: conversationLog,
			}); err != nil {
				s.logger.Warn("transcript enqueue failed", zap.Error(err), zap.String("session_id", sessionID.String()))
			}
		} else {
			s.logger.Warn("no job queue attached, dropping transcript", zap.String("session_id", sessionID.String()))
		}
	}
	machine, ok := s.lookup(sessionID)
	if !ok {
		return ErrNoActiveMachine
	}
	return machine.End(ctx, EndOriginAgent)
}

// Status returns the machine snapshot for a session the caller owns.
func (s *Service) Status(ctx context.Context, userID, sessionID uuid.UUID) (Snapshot, error) {
	session, err := s.repo.GetSessionForUser(ctx, sessionID, userID)
	if err != nil {
		return Snapshot{}, err
	}
	machine, ok := s.lookup(session.ID)
	if !ok {
		return Snapshot{}, ErrNoActiveMachine
	}
	return machine.Snapshot(), nil
}

// TranscriptURL returns a presigned download URL for a session's archived
// conversation log.
func (s *Service) TranscriptURL(ctx context.Context, userID, sessionID uuid.UUID) (string, error) {
	session, err := s.repo.GetSessionForUser(ctx, sessionID, userID)
	if err != nil {
		return "", err
	}
	if s.storage == nil || session.TranscriptKey == nil || *session.TranscriptKey == "" {
		return "", ErrNoTranscript
	}
	return s.storage.GeneratePresignedDownloadURL(ctx, s.storage.TranscriptsBucket(), *session.TranscriptKey, s.storage.PresignExpire())
}

// GetFeedback returns the feedback report for a session the caller owns.
func (s *Service) GetFeedback(ctx context.Context, userID, sessionID uuid.UUID) (*models.InterviewFeedback, error) {
	return s.repo.GetFeedback(ctx, sessionID, userID)
}

// ListFeedback returns feedback summaries for the caller's sessions.
func (s *Service) ListFeedback(ctx context.Context, userID uuid.UUID) ([]FeedbackSummary, error) {
	return s.repo.ListFeedbackForUser(ctx, userID)
}

// DeleteInterview removes a session and its feedback in one transaction and
// drops the in-memory machine.
func (s *Service) DeleteInterview(ctx context.Context, userID, sessionID uuid.UUID) error {
	session, err := s.repo.GetSessionForUser(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteFeedback(ctx, sessionID, userID); err != nil {
		return err
	}
	if s.storage != nil && session.TranscriptKey != nil && *session.TranscriptKey != "" {
		if err := s.storage.DeleteObject(ctx, s.storage.TranscriptsBucket(), *session.TranscriptKey); err != nil {
			s.logger.Warn("transcript object delete failed", zap.Error(err), zap.String("session_id", sessionID.String()))
		}
	}
	s.mu.Lock()
	if machine, ok := s.machines[sessionID]; ok {
		machine.Shutdown()
		delete(s.machines, sessionID)
	}
	s.mu.Unlock()
	return nil
}

// Shutdown revokes the timers of every live machine.
func (s *Service) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, machine := range s.machines {
		machine.Shutdown()
	}
}

func (s *Service) machineFor(session *models.InterviewSession) *Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if machine, ok := s.machines[session.ID]; ok {
		return machine
	}
	machine := NewMachine(session, s.questions.Questions(session), s.repo, s.scorer, s.events, MachineConfig{
		QuestionInterval: time.Duration(s.cfg.QuestionIntervalSec) * time.Second,
		CompleteTimeout:  time.Duration(s.cfg.CompleteTimeoutSec) * time.Second,
	}, s.logger)
	s.machines[session.ID] = machine
	return machine
}

func (s *Service) lookup(sessionID uuid.UUID) (*Machine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	machine, ok := s.machines[sessionID]
	return machine, ok
}
