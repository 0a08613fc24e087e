package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSProvider_RequestResponse(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		for {
			var req wsRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			_ = conn.WriteJSON(map[string]any{"id": req.ID, "result": []string{"1ExampleAddress"}})
		}
	}))
	defer srv.Close()

	p := NewWSProvider(wsURL(srv), "", zap.NewNop())
	defer p.Close()
	require.NoError(t, p.Connect(context.Background()))

	raw, err := p.Request(context.Background(), methodAccounts, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `["1ExampleAddress"]`, string(raw))
}

func TestWSProvider_ReconnectsAfterDrop(t *testing.T) {
	var dials atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		if dials.Add(1) == 1 {
			// Drop the first connection without a close handshake.
			conn.Close()
			return
		}
		for {
			var req wsRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			_ = conn.WriteJSON(map[string]any{"id": req.ID, "result": []string{"1ExampleAddress"}})
		}
	}))
	defer srv.Close()

	p := NewWSProvider(wsURL(srv), "", zap.NewNop())
	p.reconnectDelay = 20 * time.Millisecond
	defer p.Close()
	require.NoError(t, p.Connect(context.Background()))

	require.Eventually(t, func() bool {
		return dials.Load() >= 2 && p.IsConnected()
	}, 2*time.Second, 10*time.Millisecond, "provider must re-dial after the signer drops the socket")

	raw, err := p.Request(context.Background(), methodAccounts, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `["1ExampleAddress"]`, string(raw))
}

func TestWSProvider_NoReconnectAfterClose(t *testing.T) {
	var dials atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		dials.Add(1)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	p := NewWSProvider(wsURL(srv), "", zap.NewNop())
	p.reconnectDelay = 20 * time.Millisecond
	require.NoError(t, p.Connect(context.Background()))
	require.NoError(t, p.Close())

	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 1, dials.Load(), "Close must stop the reconnect loop")
	assert.False(t, p.IsConnected())
}

func TestWSProvider_SendsBearerToken(t *testing.T) {
	auth := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	p := NewWSProvider(wsURL(srv), "signer-token", zap.NewNop())
	defer p.Close()
	require.NoError(t, p.Connect(context.Background()))

	assert.Equal(t, "Bearer signer-token", <-auth)
}

func TestWSProvider_DispatchesEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ready := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		ready <- conn
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	p := NewWSProvider(wsURL(srv), "", zap.NewNop())
	defer p.Close()

	got := make(chan string, 1)
	p.Subscribe(EventAccountsChanged, func(payload json.RawMessage) {
		got <- string(payload)
	})
	require.NoError(t, p.Connect(context.Background()))

	conn := <-ready
	require.NoError(t, conn.WriteJSON(map[string]any{
		"event": EventAccountsChanged,
		"data":  []string{"1NewAddress"},
	}))

	select {
	case payload := <-got:
		assert.JSONEq(t, `["1NewAddress"]`, payload)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not dispatched")
	}
}
