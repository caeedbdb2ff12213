package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30, cfg.Interview.QuestionIntervalSec)
	assert.Equal(t, 20, cfg.Interview.DefaultDurationMin)
	assert.Equal(t, 70.0, cfg.Interview.ScoreBandMin)
	assert.Equal(t, 90.0, cfg.Interview.ScoreBandMax)
	assert.Equal(t, "finance-coach", cfg.LiveKit.AgentName)
	assert.False(t, cfg.LiveKit.Configured())
}

func TestLoadRejectsInvertedScoreBand(t *testing.T) {
	t.Setenv("INTERVIEW_SCORE_BAND_MIN", "95")
	t.Setenv("INTERVIEW_SCORE_BAND_MAX", "60")
	_, err := Load()
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "app", Password: "pw", DBName: "financebro", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:pw@db:5432/financebro?sslmode=disable", c.DSN())

	c.URL = "postgres://elsewhere/other"
	assert.Equal(t, "postgres://elsewhere/other", c.DSN())
}

func TestLiveKitRESTEndpointDerivation(t *testing.T) {
	tests := []struct {
		name string
		cfg  LiveKitConfig
		want string
	}{
		{"explicit rest url", LiveKitConfig{URL: "wss://x.livekit.cloud", RESTURL: "https://api.example.com"}, "https://api.example.com"},
		{"derived from wss", LiveKitConfig{URL: "wss://x.livekit.cloud"}, "https://x.livekit.cloud"},
		{"derived from ws", LiveKitConfig{URL: "ws://localhost:7880"}, "http://localhost:7880"},
		{"passthrough", LiveKitConfig{URL: "https://already-http"}, "https://already-http"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.RESTEndpoint())
		})
	}
}
