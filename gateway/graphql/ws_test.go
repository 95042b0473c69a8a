package graphql

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialSubscription(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/graphql"
	dialer := websocket.Dialer{Subprotocols: []string{"graphql-ws"}}
	conn, _, err := dialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

// waitForSubscribers polls the health endpoint until the broadcast hub
// reports the expected number of active streams
func waitForSubscribers(t *testing.T, baseURL string, want int) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(baseURL + "/health")
		require.NoError(t, err)

		var health struct {
			Subscribers int `json:"subscribers"`
		}
		err = json.NewDecoder(resp.Body).Decode(&health)
		resp.Body.Close()
		require.NoError(t, err)

		if health.Subscribers == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("hub never reached %d subscribers", want)
}

func TestSubscriptionStreamOverWebsocket(t *testing.T) {
	srv, gw := newTestServer(t)
	seedFeed(t, gw)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialSubscription(t, ts)

	require.NoError(t, conn.WriteJSON(wsMessage{Type: wsConnectionInit}))
	var ack wsMessage
	require.NoError(t, conn.ReadJSON(&ack))
	require.Equal(t, wsConnectionAck, ack.Type)

	startPayload, err := json.Marshal(graphqlRequest{
		Query: `subscription { latestPost { id caption author { handle } } }`,
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(wsMessage{ID: "1", Type: wsStart, Payload: startPayload}))

	waitForSubscribers(t, ts.URL, 1)

	// Create a post over plain HTTP on the same server
	body, err := json.Marshal(graphqlRequest{
		Query: `mutation { addPost(caption: "live", permalink: "https://example.com/live", author_id: "u1") { id } }`,
	})
	require.NoError(t, err)
	httpResp, err := http.Post(ts.URL+"/graphql", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	var created testGQLResponse
	require.NoError(t, json.NewDecoder(httpResp.Body).Decode(&created))
	httpResp.Body.Close()
	require.Empty(t, created.Errors)
	createdID := created.Data["addPost"].(map[string]any)["id"].(string)

	// The announced post arrives on the stream, author embedded
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, wsData, msg.Type)
	require.Equal(t, "1", msg.ID)

	var event testGQLResponse
	require.NoError(t, json.Unmarshal(msg.Payload, &event))
	require.Empty(t, event.Errors)
	post := event.Data["latestPost"].(map[string]any)
	assert.Equal(t, createdID, post["id"])
	assert.Equal(t, "live", post["caption"])
	assert.Equal(t, "@ann", post["author"].(map[string]any)["handle"])

	// Stopping the stream releases the hub subscription
	require.NoError(t, conn.WriteJSON(wsMessage{ID: "1", Type: wsStop}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, wsComplete, msg.Type)
	waitForSubscribers(t, ts.URL, 0)
}

func TestSubscriptionRejectsNonSubscriptionOperation(t *testing.T) {
	srv, gw := newTestServer(t)
	seedFeed(t, gw)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialSubscription(t, ts)

	require.NoError(t, conn.WriteJSON(wsMessage{Type: wsConnectionInit}))
	var ack wsMessage
	require.NoError(t, conn.ReadJSON(&ack))
	require.Equal(t, wsConnectionAck, ack.Type)

	startPayload, err := json.Marshal(graphqlRequest{Query: `{ posts { id } }`})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(wsMessage{ID: "1", Type: wsStart, Payload: startPayload}))

	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, wsError, msg.Type)
	assert.Equal(t, "1", msg.ID)
}

func TestSubscriptionRejectsUnknownField(t *testing.T) {
	srv, _ := newTestServer(t)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialSubscription(t, ts)

	require.NoError(t, conn.WriteJSON(wsMessage{Type: wsConnectionInit}))
	var ack wsMessage
	require.NoError(t, conn.ReadJSON(&ack))
	require.Equal(t, wsConnectionAck, ack.Type)

	startPayload, err := json.Marshal(graphqlRequest{Query: `subscription { latestPost { id } other: latestPost { id } }`})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(wsMessage{ID: "x", Type: wsStart, Payload: startPayload}))

	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, wsError, msg.Type)
}

func TestSubscriptionTerminateReleasesStreams(t *testing.T) {
	srv, gw := newTestServer(t)
	seedFeed(t, gw)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialSubscription(t, ts)

	require.NoError(t, conn.WriteJSON(wsMessage{Type: wsConnectionInit}))
	var ack wsMessage
	require.NoError(t, conn.ReadJSON(&ack))
	require.Equal(t, wsConnectionAck, ack.Type)

	startPayload, err := json.Marshal(graphqlRequest{Query: `subscription { latestPost { id } }`})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(wsMessage{ID: "1", Type: wsStart, Payload: startPayload}))
	waitForSubscribers(t, ts.URL, 1)

	require.NoError(t, conn.WriteJSON(wsMessage{Type: wsConnectionTerminate}))
	waitForSubscribers(t, ts.URL, 0)
}
