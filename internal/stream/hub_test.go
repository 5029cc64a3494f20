package stream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smukkama/sentinel-server/internal/connection"
	"github.com/smukkama/sentinel-server/internal/protocol"
)

type fakeSender struct {
	frames chan []byte
	closed chan struct{}
	accept bool
}

func newFakeSender(buffer int) *fakeSender {
	return &fakeSender{
		frames: make(chan []byte, buffer),
		closed: make(chan struct{}),
		accept: true,
	}
}

func (f *fakeSender) Send(msg []byte) bool {
	if !f.accept {
		return false
	}
	select {
	case f.frames <- msg:
		return true
	default:
		return false
	}
}

func (f *fakeSender) Close() { close(f.closed) }

func startHub(t *testing.T, maxConns int) *Hub {
	hub := NewHub(connection.NewManager(maxConns), zap.NewNop(), time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func waitFrame(t *testing.T, s *fakeSender) protocol.Frame {
	t.Helper()
	select {
	case data := <-s.frames:
		var f protocol.Frame
		require.NoError(t, json.Unmarshal(data, &f))
		return f
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return protocol.Frame{}
	}
}

func TestHub_PublishOnlyToOwner(t *testing.T) {
	hub := startHub(t, 10)

	alice, bob := uuid.New(), uuid.New()
	aliceConn := newFakeSender(4)
	bobConn := newFakeSender(4)

	require.NoError(t, hub.Register("c1", alice.String(), "", aliceConn))
	require.NoError(t, hub.Register("c2", bob.String(), "", bobConn))

	hub.Publish(alice, protocol.FrameAlert, map[string]string{"title": "Critical Heart Rate"})

	frame := waitFrame(t, aliceConn)
	assert.Equal(t, protocol.FrameAlert, frame.Type)
	assert.Equal(t, map[string]any{"title": "Critical Heart Rate"}, frame.Payload)

	// a later frame for bob proves alice's frame was never queued for him
	hub.Publish(bob, protocol.FrameSystemReading, "ok")
	frame = waitFrame(t, bobConn)
	assert.Equal(t, protocol.FrameSystemReading, frame.Type)
	assert.Len(t, bobConn.frames, 0)
}

func TestHub_RegisterMaxConnections(t *testing.T) {
	hub := startHub(t, 1)

	require.NoError(t, hub.Register("c1", "user", "", newFakeSender(1)))
	err := hub.Register("c2", "user", "", newFakeSender(1))
	assert.ErrorIs(t, err, connection.ErrMaxConnectionsReached)
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := startHub(t, 10)

	user := uuid.New()
	slow := newFakeSender(1)
	slow.accept = false
	require.NoError(t, hub.Register("slow", user.String(), "", slow))

	hub.Publish(user, protocol.FrameHealthReading, "x")

	select {
	case <-slow.closed:
	case <-time.After(time.Second):
		t.Fatal("slow client was not dropped")
	}
	assert.Eventually(t, func() bool { return hub.Stats().TotalConnections == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_UnregisterAndShutdown(t *testing.T) {
	hub := NewHub(connection.NewManager(10), zap.NewNop(), time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	a, b := newFakeSender(1), newFakeSender(1)
	require.NoError(t, hub.Register("a", "user", "", a))
	require.NoError(t, hub.Register("b", "user", "", b))

	hub.Unregister("a")
	select {
	case <-a.closed:
	case <-time.After(time.Second):
		t.Fatal("unregistered client was not closed")
	}

	cancel()
	<-stopped
	select {
	case <-b.closed:
	default:
		t.Fatal("remaining client was not closed on shutdown")
	}

	assert.ErrorIs(t, hub.Register("c", "user", "", newFakeSender(1)), ErrHubStopped)
}
