package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// websocketConn is an interface to mimic gorilla/websocket methods we use.
// Needed only to simplify transport tests.
type websocketConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

type websocketTransportOptions struct {
	pingInterval time.Duration
	writeTimeout time.Duration
}

// websocketTransport is a wrapper over the websocket connection implementing
// hub.Conn.
type websocketTransport struct {
	mu        sync.Mutex
	id        string
	conn      websocketConn
	closed    bool
	closeCh   chan struct{}
	opts      websocketTransportOptions
	pingTimer *time.Timer
}

func newWebsocketTransport(conn websocketConn, opts websocketTransportOptions) *websocketTransport {
	t := &websocketTransport{
		id:      uuid.NewString(),
		conn:    conn,
		closeCh: make(chan struct{}),
		opts:    opts,
	}
	if opts.pingInterval > 0 {
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(2 * opts.pingInterval))
		})
		_ = conn.SetReadDeadline(time.Now().Add(2 * opts.pingInterval))
		t.addPing()
	}
	return t
}

func (t *websocketTransport) ping() {
	select {
	case <-t.closeCh:
		return
	default:
		deadline := time.Now().Add(t.opts.pingInterval / 2)
		if err := t.conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
			log.Debug().Err(err).Str("conn", t.id).Msg("error writing ping")
			_ = t.Close("write ping error")
			return
		}
		t.addPing()
	}
}

func (t *websocketTransport) addPing() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.pingTimer = time.AfterFunc(t.opts.pingInterval, t.ping)
	t.mu.Unlock()
}

// ID implements hub.Conn.
func (t *websocketTransport) ID() string { return t.id }

// Send implements hub.Conn.
func (t *websocketTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errTransportClosed
	}
	if t.opts.writeTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.opts.writeTimeout))
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Close implements hub.Conn.
func (t *websocketTransport) Close(reason string) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.closeCh)
	if t.pingTimer != nil {
		t.pingTimer.Stop()
	}
	t.mu.Unlock()
	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	return t.conn.Close()
}
