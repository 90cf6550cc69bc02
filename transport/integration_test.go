//go:build integration

package transport

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startNATSContainer(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "nats:latest",
		ExposedPorts: []string{"4222/tcp"},
		WaitingFor:   wait.ForListeningPort("4222/tcp"),
	}

	natsContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := natsContainer.Host(ctx)
	require.NoError(t, err)

	port, err := natsContainer.MappedPort(ctx, "4222")
	require.NoError(t, err)

	natsURL := fmt.Sprintf("nats://%s:%s", host, port.Port())

	// Give the server a moment to be fully ready
	time.Sleep(100 * time.Millisecond)

	return natsContainer, natsURL
}

type recordingSink struct {
	mu       sync.Mutex
	received []string
	notify   chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{notify: make(chan struct{}, 16)}
}

func (s *recordingSink) OnMessage(topic string, _ []byte) {
	s.mu.Lock()
	s.received = append(s.received, topic)
	s.mu.Unlock()
	s.notify <- struct{}{}
}

func (s *recordingSink) topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

func TestIntegration_SubscribeWildcardDelivery(t *testing.T) {
	ctx := context.Background()

	natsContainer, natsURL := startNATSContainer(ctx, t)
	defer natsContainer.Terminate(ctx)

	conn, err := NewConn(natsURL)
	require.NoError(t, err)
	require.NoError(t, conn.Connect(ctx))
	defer conn.Close(ctx)

	assert.True(t, conn.IsConnected())

	sink := newRecordingSink()
	require.NoError(t, conn.Subscribe("devices/+/#", sink))

	require.NoError(t, conn.Publish("devices/switch/bedroom/config", []byte(`{"command_topic":"t"}`)))
	require.NoError(t, conn.Publish("devices/switch/bedroom/state", []byte(`ON`)))

	// Both the config announcement and its sibling state topic match the
	// wildcard; filtering is the subscriber's job.
	for i := 0; i < 2; i++ {
		select {
		case <-sink.notify:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	}

	assert.ElementsMatch(t,
		[]string{"devices/switch/bedroom/config", "devices/switch/bedroom/state"},
		sink.topics())
}

func TestIntegration_UnsubscribeStopsDelivery(t *testing.T) {
	ctx := context.Background()

	natsContainer, natsURL := startNATSContainer(ctx, t)
	defer natsContainer.Terminate(ctx)

	conn, err := NewConn(natsURL)
	require.NoError(t, err)
	require.NoError(t, conn.Connect(ctx))
	defer conn.Close(ctx)

	sink := newRecordingSink()
	require.NoError(t, conn.Subscribe("devices/+/#", sink))
	require.NoError(t, conn.Unsubscribe("devices/+/#", sink))

	require.NoError(t, conn.Publish("devices/switch/bedroom/config", []byte(`{}`)))

	select {
	case <-sink.notify:
		t.Fatal("received delivery after unsubscribe")
	case <-time.After(500 * time.Millisecond):
	}
}
