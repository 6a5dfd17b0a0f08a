package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/genmarket/internal/domain"
)

type memBus struct {
	mu        sync.Mutex
	appended  [][]byte
	published [][]byte
	sub       chan []byte
}

func (b *memBus) Publish(_ context.Context, _ string, p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, p)
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return b.sub, nil
}

func (b *memBus) StreamAppend(_ context.Context, _ string, p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.appended = append(b.appended, p)
	return nil
}

func (b *memBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func startHub(t *testing.T, bus domain.SignalBus) (*Hub, *websocket.Conn) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(bus, Info{Network: "studionet", ChainID: 61999, Contract: "0xabc"}, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		cancel()
		srv.Close()
	})
	return hub, conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) (string, map[string]any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)

	var env struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	return env.Type, env.Payload
}

func TestHubLocalBroadcast(t *testing.T) {
	hub, conn := startHub(t, nil)

	typ, hello := readEnvelope(t, conn)
	assert.Equal(t, "hello", typ)
	assert.Equal(t, "studionet", hello["network"])
	assert.Equal(t, "0xabc", hello["contract"])

	hub.PublishTx(context.Background(), domain.TxEvent{Function: "place_bet", Hash: "0x01", Contract: "0xabc"})

	typ, payload := readEnvelope(t, conn)
	assert.Equal(t, "tx_submitted", typ)
	assert.Equal(t, "place_bet", payload["function"])
	assert.Equal(t, "0x01", payload["hash"])
}

func TestHubRelaysThroughBus(t *testing.T) {
	bus := &memBus{sub: make(chan []byte, 1)}
	hub, conn := startHub(t, bus)
	readEnvelope(t, conn)

	hub.PublishTx(context.Background(), domain.TxEvent{Function: "resolve_market", Hash: "0x02"})

	bus.mu.Lock()
	require.Len(t, bus.published, 1)
	require.Len(t, bus.appended, 1)
	assert.Equal(t, bus.published[0], bus.appended[0])
	msg := bus.published[0]
	bus.mu.Unlock()

	// Only messages coming back from the channel reach clients.
	bus.sub <- msg
	typ, payload := readEnvelope(t, conn)
	assert.Equal(t, "tx_submitted", typ)
	assert.Equal(t, "resolve_market", payload["function"])
}

func TestHubStoppedDoesNotBlockHandlers(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(nil, Info{Network: "studionet"}, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(stopped)
	}()

	returned := make(chan struct{}, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWS(w, r)
		returned <- struct{}{}
	}))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	// Connected before shutdown: the hub closes the feed and the reader
	// exits without a live Run loop to unregister with.
	live, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer live.Close()
	readEnvelope(t, live)
	<-returned

	cancel()
	<-stopped
	require.NoError(t, live.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = live.ReadMessage()
	assert.Error(t, err)

	// Connected after shutdown: the handler gives up instead of blocking.
	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer late.Close()
	select {
	case <-returned:
	case <-time.After(5 * time.Second):
		t.Fatal("HandleWS blocked after the hub stopped")
	}
	require.NoError(t, late.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = late.ReadMessage()
	assert.Error(t, err)
	assert.Zero(t, hub.clientCount())
}

func TestClientContractFilter(t *testing.T) {
	c := &client{}
	assert.True(t, c.wants("0xAbC"))

	c.handleSubscription(subscribeMsg{Action: "subscribe", Contract: "0xabc"})
	assert.True(t, c.wants("0xABC"))
	assert.False(t, c.wants("0xdef"))
	assert.True(t, c.wants(""))

	c.handleSubscription(subscribeMsg{Action: "unsubscribe"})
	assert.True(t, c.wants("0xdef"))
}

func TestEventContract(t *testing.T) {
	assert.Equal(t, "0xabc", eventContract([]byte(`{"type":"tx_submitted","payload":{"contract":"0xabc"}}`)))
	assert.Empty(t, eventContract([]byte(`not json`)))
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:5173"})

	r := httptest.NewRequest("GET", "/ws", nil)
	assert.True(t, check(r))
	r.Header.Set("Origin", "http://localhost:5173")
	assert.True(t, check(r))
	r.Header.Set("Origin", "http://evil.example")
	assert.False(t, check(r))
}
