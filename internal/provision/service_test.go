package provision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/financebro/backend/config"
)

type fakeDispatcher struct {
	calls    int
	err      error
	room     string
	agent    string
	metadata string
}

func (f *fakeDispatcher) Dispatch(_ context.Context, roomName, agentName, metadata string) error {
	f.calls++
	f.room = roomName
	f.agent = agentName
	f.metadata = metadata
	return f.err
}

func configuredLiveKit() config.LiveKitConfig {
	return config.LiveKitConfig{
		URL:         "wss://financebro.livekit.cloud",
		APIKey:      "APIkey123",
		APISecret:   "secret456",
		AgentName:   "finance-coach",
		TokenTTLSec: 3600,
	}
}

func TestProvisionStubModeWithoutCredentials(t *testing.T) {
	svc := NewService(config.LiveKitConfig{}, nil)
	require.False(t, svc.Configured())

	result, err := svc.Provision(context.Background(), Request{SessionID: "abc", Persona: "M&A Analyst"})
	require.NoError(t, err)
	assert.True(t, result.Stub)
	assert.Equal(t, "abc", result.SessionID)
	assert.Equal(t, "interview-abc", result.RoomName)
	assert.Equal(t, "M&A Analyst", result.Persona)
	assert.Nil(t, result.Credential)
	assert.False(t, result.AgentDispatched)
}

func TestProvisionGeneratesSessionIDWhenAbsent(t *testing.T) {
	svc := NewService(config.LiveKitConfig{}, nil)
	result, err := svc.Provision(context.Background(), Request{})
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionID)
	assert.Equal(t, "interview-"+result.SessionID, result.RoomName)
}

func TestProvisionIssuesCredentialAndDispatchesAgent(t *testing.T) {
	svc := NewService(configuredLiveKit(), nil)
	dispatcher := &fakeDispatcher{}
	svc.SetDispatcher(dispatcher)

	result, err := svc.Provision(context.Background(), Request{SessionID: "s1", Persona: "Analyst", Locale: "en", UserName: "Sam"})
	require.NoError(t, err)

	assert.False(t, result.Stub)
	require.NotNil(t, result.Credential)
	assert.Equal(t, "wss://financebro.livekit.cloud", result.Credential.URL)
	assert.NotEmpty(t, result.Credential.Token)
	assert.Contains(t, result.Credential.Identity, "financebro-viewer-")

	assert.True(t, result.AgentDispatched)
	assert.Equal(t, "finance-coach", result.AgentName)
	assert.Equal(t, 1, dispatcher.calls)
	assert.Equal(t, "interview-s1", dispatcher.room)
	assert.Equal(t, "finance-coach", dispatcher.agent)
	assert.Contains(t, dispatcher.metadata, `"sessionId":"s1"`)
}

func TestProvisionSurvivesDispatchFailure(t *testing.T) {
	svc := NewService(configuredLiveKit(), nil)
	svc.SetDispatcher(&fakeDispatcher{err: errors.New("agent service down")})

	result, err := svc.Provision(context.Background(), Request{SessionID: "s2"})
	require.NoError(t, err, "dispatch failure must not fail provisioning")
	require.NotNil(t, result.Credential)
	assert.False(t, result.AgentDispatched)
}

func TestTokenRequiresConfiguration(t *testing.T) {
	svc := NewService(config.LiveKitConfig{}, nil)
	_, err := svc.Token("interview-s3", "sam")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestTokenUsesProvidedIdentity(t *testing.T) {
	svc := NewService(configuredLiveKit(), nil)
	cred, err := svc.Token("interview-s3", "sam")
	require.NoError(t, err)
	assert.Equal(t, "sam", cred.Identity)
	assert.NotEmpty(t, cred.Token)
	assert.False(t, cred.ExpiresAt.IsZero())
}
