package realtime

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// loopbackBus is an in-process stand-in for Redis pub/sub: publishing
// invokes the session's subscriber handler synchronously, the way a live
// subscription on the same instance would.
type loopbackBus struct {
	mu       sync.Mutex
	handlers map[uuid.UUID]func(event string, payload []byte)
}

func newLoopbackBus() *loopbackBus {
	return &loopbackBus{handlers: make(map[uuid.UUID]func(event string, payload []byte))}
}

func (b *loopbackBus) PublishSessionEvent(sessionID uuid.UUID, event string, payload []byte) error {
	b.mu.Lock()
	handler := b.handlers[sessionID]
	b.mu.Unlock()
	if handler != nil {
		handler(event, payload)
	}
	return nil
}

func (b *loopbackBus) SubscribeSession(sessionID uuid.UUID, handler func(event string, payload []byte)) (func(), error) {
	b.mu.Lock()
	b.handlers[sessionID] = handler
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.handlers, sessionID)
		b.mu.Unlock()
	}, nil
}

func testClient(hub *Hub, sessionID uuid.UUID) *Client {
	return &Client{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		hub:       hub,
		send:      make(chan WSMessage, 16),
	}
}

func TestSessionEventDeliveredOnceWithRedis(t *testing.T) {
	bus := newLoopbackBus()
	hub := NewHub(zap.NewNop(), bus, bus)
	sessionID := uuid.New()

	client := testClient(hub, sessionID)
	hub.Register(client)
	defer hub.Unregister(client)

	hub.SessionEvent(sessionID, "time_remaining", map[string]int{"seconds": 30})

	require.Len(t, client.send, 1, "event must reach a local client exactly once")
	msg := <-client.send
	assert.Equal(t, "time_remaining", msg.Event)
}

func TestSessionEventFallsBackWithoutRedis(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	sessionID := uuid.New()

	client := testClient(hub, sessionID)
	hub.Register(client)
	defer hub.Unregister(client)

	hub.SessionEvent(sessionID, "session_running", nil)

	require.Len(t, client.send, 1)
	assert.Equal(t, "session_running", (<-client.send).Event)
}

func TestUnregisterCancelsSubscription(t *testing.T) {
	bus := newLoopbackBus()
	hub := NewHub(zap.NewNop(), bus, bus)
	sessionID := uuid.New()

	client := testClient(hub, sessionID)
	hub.Register(client)
	hub.Unregister(client)

	bus.mu.Lock()
	_, subscribed := bus.handlers[sessionID]
	bus.mu.Unlock()
	assert.False(t, subscribed, "last client leaving must cancel the session subscription")
}
