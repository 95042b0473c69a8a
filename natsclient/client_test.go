package natsclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionStatus_String(t *testing.T) {
	tests := []struct {
		status ConnectionStatus
		want   string
	}{
		{StatusDisconnected, "disconnected"},
		{StatusConnecting, "connecting"},
		{StatusConnected, "connected"},
		{StatusReconnecting, "reconnecting"},
		{ConnectionStatus(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestNewClient_Defaults(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", client.URL())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.False(t, client.IsHealthy())
}

func TestNewClient_EmptyURL(t *testing.T) {
	_, err := NewClient("")
	require.Error(t, err)
}

func TestNewClient_Options(t *testing.T) {
	client, err := NewClient("nats://localhost:4222",
		WithClientName("feed-test"),
		WithConnectTimeout(2*time.Second),
		WithReconnectWait(time.Second),
		WithMaxReconnects(5),
		WithToken("tok"),
	)
	require.NoError(t, err)
	assert.Equal(t, "feed-test", client.clientName)
	assert.Equal(t, 2*time.Second, client.timeout)
	assert.Equal(t, time.Second, client.reconnectWait)
	assert.Equal(t, 5, client.maxReconnects)
	assert.Equal(t, "tok", client.token)
}

func TestNewClient_InvalidOption(t *testing.T) {
	_, err := NewClient("nats://localhost:4222", WithConnectTimeout(-time.Second))
	require.Error(t, err)

	_, err = NewClient("nats://localhost:4222", WithReconnectWait(0))
	require.Error(t, err)
}

func TestJetStream_NotConnected(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	_, err = client.JetStream()
	assert.ErrorIs(t, err, ErrNotConnected)
}
