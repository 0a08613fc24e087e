package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wsRequest is the frame sent to the remote signer.
type wsRequest struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// wsMessage is a frame from the remote signer: either a response correlated
// by id, or an unsolicited event push.
type wsMessage struct {
	ID     int64           `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *wsError        `json:"error,omitempty"`
	Event  string          `json:"event,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type wsError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type wsPending struct {
	result json.RawMessage
	err    error
	done   chan struct{}
}

const defaultReconnectDelay = 5 * time.Second

// WSProvider implements Provider over a WebSocket connection to a remote
// signer daemon. Responses are correlated to requests by id; event frames
// are fanned out to subscribed handlers. A dropped or unreachable socket
// is re-dialed on a fixed delay until Close.
type WSProvider struct {
	url    string
	token  string
	logger *zap.Logger

	reconnectDelay time.Duration

	conn        *websocket.Conn
	connMu      sync.Mutex
	connected   bool
	connectedMu sync.RWMutex

	sequence int64

	pending   map[int64]*wsPending
	pendingMu sync.Mutex

	handlers   map[string]EventHandler
	handlersMu sync.RWMutex

	done chan struct{}
}

// NewWSProvider creates an unconnected WSProvider for url. token, when
// non-empty, is sent as a bearer credential on the dial.
func NewWSProvider(url, token string, logger *zap.Logger) *WSProvider {
	return &WSProvider{
		url:            url,
		token:          token,
		logger:         logger,
		reconnectDelay: defaultReconnectDelay,
		pending:        make(map[int64]*wsPending),
		handlers:       make(map[string]EventHandler),
		done:           make(chan struct{}),
	}
}

// Connect dials the signer and starts the read loop. On a failed dial a
// reconnect is scheduled, so the signer coming up later is recovered
// without another Connect call.
func (p *WSProvider) Connect(ctx context.Context) error {
	select {
	case <-p.done:
		return errors.New("provider closed")
	default:
	}
	p.logger.Info("signer.connecting", zap.String("url", p.url))

	var header http.Header
	if p.token != "" {
		header = http.Header{"Authorization": []string{"Bearer " + p.token}}
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, p.url, header)
	if err != nil {
		p.scheduleReconnect()
		return fmt.Errorf("dial signer: %w", err)
	}

	p.connMu.Lock()
	p.conn = conn
	p.connMu.Unlock()
	p.setConnected(true)
	p.logger.Info("signer.connected")

	go p.readLoop(conn)
	return nil
}

// Close shuts the connection down and fails all pending requests.
func (p *WSProvider) Close() error {
	close(p.done)
	p.setConnected(false)

	p.connMu.Lock()
	conn := p.conn
	p.connMu.Unlock()

	p.failPending(errors.New("provider closed"))
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// IsConnected reports whether the socket is up.
func (p *WSProvider) IsConnected() bool {
	p.connectedMu.RLock()
	defer p.connectedMu.RUnlock()
	return p.connected
}

func (p *WSProvider) setConnected(connected bool) {
	p.connectedMu.Lock()
	defer p.connectedMu.Unlock()
	p.connected = connected
}

// Request sends method with params and blocks until the correlated response
// arrives, ctx expires, or the connection drops.
func (p *WSProvider) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !p.IsConnected() {
		return nil, errors.New("signer not connected")
	}

	id := atomic.AddInt64(&p.sequence, 1)
	pend := &wsPending{done: make(chan struct{})}

	p.pendingMu.Lock()
	p.pending[id] = pend
	p.pendingMu.Unlock()

	defer func() {
		p.pendingMu.Lock()
		delete(p.pending, id)
		p.pendingMu.Unlock()
	}()

	frame := wsRequest{ID: id, Method: method, Params: params}
	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	p.logger.Debug("signer.request",
		zap.String("method", method),
		zap.Int64("id", id))

	p.connMu.Lock()
	conn := p.conn
	var writeErr error
	if conn == nil {
		writeErr = errors.New("signer not connected")
	} else {
		writeErr = conn.WriteMessage(websocket.TextMessage, data)
	}
	p.connMu.Unlock()
	if writeErr != nil {
		return nil, fmt.Errorf("send request: %w", writeErr)
	}

	select {
	case <-pend.done:
		return pend.result, pend.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return nil, errors.New("provider closed")
	}
}

// Subscribe registers h for event, replacing any previous handler.
func (p *WSProvider) Subscribe(event string, h EventHandler) {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()
	p.handlers[event] = h
}

// Unsubscribe removes the handler for event.
func (p *WSProvider) Unsubscribe(event string) {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()
	delete(p.handlers, event)
}

func (p *WSProvider) readLoop(conn *websocket.Conn) {
	defer func() {
		p.setConnected(false)
		p.failPending(errors.New("signer connection lost"))
		p.logger.Info("signer.read_loop_exited")
	}()

	for {
		select {
		case <-p.done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.logger.Info("signer.closed_normally")
				return
			}
			p.logger.Error("signer.read_failed", zap.Error(err))
			p.scheduleReconnect()
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			p.logger.Error("signer.decode_failed", zap.Error(err))
			continue
		}

		if msg.Event != "" {
			p.dispatchEvent(msg.Event, msg.Data)
			continue
		}
		p.resolve(&msg)
	}
}

// scheduleReconnect re-dials after reconnectDelay unless the provider has
// been closed. A failed dial schedules the next attempt through Connect.
func (p *WSProvider) scheduleReconnect() {
	select {
	case <-p.done:
		return
	default:
	}
	p.logger.Info("signer.reconnect_scheduled", zap.Duration("delay", p.reconnectDelay))

	time.AfterFunc(p.reconnectDelay, func() {
		select {
		case <-p.done:
			return
		default:
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.Connect(ctx); err != nil {
			p.logger.Error("signer.reconnect_failed", zap.Error(err))
		}
	})
}

func (p *WSProvider) resolve(msg *wsMessage) {
	p.pendingMu.Lock()
	pend, ok := p.pending[msg.ID]
	if ok {
		delete(p.pending, msg.ID)
	}
	p.pendingMu.Unlock()
	if !ok {
		p.logger.Debug("signer.orphan_response", zap.Int64("id", msg.ID))
		return
	}

	if msg.Error != nil {
		pend.err = fmt.Errorf("signer error %d: %s", msg.Error.Code, msg.Error.Message)
	} else {
		pend.result = msg.Result
	}
	close(pend.done)
}

func (p *WSProvider) dispatchEvent(event string, data json.RawMessage) {
	p.handlersMu.RLock()
	h := p.handlers[event]
	p.handlersMu.RUnlock()
	if h == nil {
		return
	}
	h(data)
}

func (p *WSProvider) failPending(err error) {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	for id, pend := range p.pending {
		pend.err = err
		close(pend.done)
		delete(p.pending, id)
	}
}
