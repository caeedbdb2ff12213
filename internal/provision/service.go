package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	lkauth "github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"go.uber.org/zap"

	"github.com/financebro/backend/config"
)

// ErrNotConfigured is returned by operations that require real LiveKit
// credentials when the service is running in stub mode.
var ErrNotConfigured = errors.New("livekit not configured")

const roomPrefix = "interview-"

// Credential is a short-lived access credential for a media room.
type Credential struct {
	URL       string    `json:"url"`
	Token     string    `json:"token"`
	Identity  string    `json:"identity"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Request describes a provisioning call. SessionID is caller-supplied or
// generated when absent; it must be stable for one interview attempt.
type Request struct {
	SessionID string `json:"sessionId"`
	Persona   string `json:"persona"`
	Locale    string `json:"locale"`
	UserName  string `json:"userName"`
}

// Result is the provisioning outcome. When Stub is true no real credential is
// present and callers must not attempt a room connection.
type Result struct {
	SessionID       string      `json:"sessionId"`
	RoomName        string      `json:"roomName"`
	Credential      *Credential `json:"credential,omitempty"`
	Persona         string      `json:"persona,omitempty"`
	Locale          string      `json:"locale,omitempty"`
	Stub            bool        `json:"stub,omitempty"`
	AgentDispatched bool        `json:"agentDispatched,omitempty"`
	AgentName       string      `json:"agentName,omitempty"`
}

// Dispatcher requests that a named agent participant join a room.
type Dispatcher interface {
	Dispatch(ctx context.Context, roomName, agentName, metadata string) error
}

type lkDispatcher struct {
	client *lksdk.AgentDispatchClient
}

func (d *lkDispatcher) Dispatch(ctx context.Context, roomName, agentName, metadata string) error {
	_, err := d.client.CreateDispatch(ctx, &livekit.CreateAgentDispatchRequest{
		Room:      roomName,
		AgentName: agentName,
		Metadata:  metadata,
	})
	return err
}

// Service provisions media-room access for interview sessions.
type Service struct {
	cfg        config.LiveKitConfig
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewService creates a provisioning service. When cfg carries real LiveKit
// credentials an agent dispatch client is built against its REST endpoint;
// otherwise the service answers in stub mode.
func NewService(cfg config.LiveKitConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{cfg: cfg, logger: logger}
	if cfg.Configured() {
		s.dispatcher = &lkDispatcher{
			client: lksdk.NewAgentDispatchServiceClient(cfg.RESTEndpoint(), cfg.APIKey, cfg.APISecret),
		}
	}
	return s
}

// SetDispatcher overrides the agent dispatcher (used in tests).
func (s *Service) SetDispatcher(d Dispatcher) { s.dispatcher = d }

// Configured reports whether the service can issue real credentials.
func (s *Service) Configured() bool { return s.cfg.Configured() }

// Provision issues a room credential for one interview attempt and requests
// agent dispatch into the room. Dispatch failure is non-fatal and only
// logged; the human side of the session proceeds without the agent.
func (s *Service) Provision(ctx context.Context, req Request) (*Result, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	roomName := roomPrefix + sessionID

	if !s.cfg.Configured() {
		s.logger.Warn("livekit unconfigured, returning stub session", zap.String("session_id", sessionID))
		return &Result{
			SessionID: sessionID,
			RoomName:  roomName,
			Persona:   req.Persona,
			Locale:    req.Locale,
			Stub:      true,
		}, nil
	}

	identity := "financebro-viewer-" + uuid.New().String()
	cred, err := s.issueToken(roomName, identity, req.UserName)
	if err != nil {
		return nil, fmt.Errorf("issue room token: %w", err)
	}

	result := &Result{
		SessionID:  sessionID,
		RoomName:   roomName,
		Credential: cred,
		Persona:    req.Persona,
		Locale:     req.Locale,
		AgentName:  s.cfg.AgentName,
	}

	if s.dispatcher != nil && s.cfg.AgentName != "" {
		metadata, _ := json.Marshal(map[string]string{
			"sessionId": sessionID,
			"persona":   req.Persona,
			"locale":    req.Locale,
		})
		if err := s.dispatcher.Dispatch(ctx, roomName, s.cfg.AgentName, string(metadata)); err != nil {
			s.logger.Warn("agent dispatch failed",
				zap.Error(err),
				zap.String("room", roomName),
				zap.String("agent", s.cfg.AgentName))
		} else {
			result.AgentDispatched = true
		}
	}
	return result, nil
}

// Token issues a bare room token for GET /token. Returns ErrNotConfigured in
// stub mode.
func (s *Service) Token(room, username string) (*Credential, error) {
	if !s.cfg.Configured() {
		return nil, ErrNotConfigured
	}
	identity := username
	if identity == "" {
		identity = "financebro-viewer-" + uuid.New().String()
	}
	return s.issueToken(room, identity, username)
}

func (s *Service) issueToken(roomName, identity, name string) (*Credential, error) {
	ttl := time.Duration(s.cfg.TokenTTLSec) * time.Second
	if ttl < time.Minute {
		ttl = time.Hour
	}

	grant := &lkauth.VideoGrant{
		RoomJoin: true,
		Room:     roomName,
	}
	grant.SetCanPublish(true)
	grant.SetCanSubscribe(true)
	grant.SetCanPublishData(true)

	at := lkauth.NewAccessToken(s.cfg.APIKey, s.cfg.APISecret)
	at.SetVideoGrant(grant).
		SetIdentity(identity).
		SetValidFor(ttl)
	if name != "" {
		at.SetName(name)
	}

	token, err := at.ToJWT()
	if err != nil {
		return nil, err
	}
	return &Credential{
		URL:       s.cfg.URL,
		Token:     token,
		Identity:  identity,
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}
