package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/palaverhq/palaver/internal/dispatch"
	"github.com/palaverhq/palaver/internal/hub"
	"github.com/palaverhq/palaver/internal/registry"
	"github.com/palaverhq/palaver/internal/wire"
)

type fakeWebsocketConn struct {
	mu       sync.Mutex
	messages [][]byte
	controls []int
	closed   bool
}

func (c *fakeWebsocketConn) ReadMessage() (int, []byte, error) {
	select {}
}

func (c *fakeWebsocketConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, data)
	return nil
}

func (c *fakeWebsocketConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controls = append(c.controls, messageType)
	return nil
}

func (c *fakeWebsocketConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeWebsocketConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeWebsocketConn) SetPongHandler(func(string) error) {}

func (c *fakeWebsocketConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeWebsocketConn) numControls(messageType int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.controls {
		if t == messageType {
			n++
		}
	}
	return n
}

func TestTransportSend(t *testing.T) {
	conn := &fakeWebsocketConn{}
	transport := newWebsocketTransport(conn, websocketTransportOptions{writeTimeout: time.Second})
	require.NotEmpty(t, transport.ID())
	require.NoError(t, transport.Send([]byte("hello")))
	require.Equal(t, [][]byte{[]byte("hello")}, conn.messages)
}

func TestTransportClose(t *testing.T) {
	conn := &fakeWebsocketConn{}
	transport := newWebsocketTransport(conn, websocketTransportOptions{})
	require.NoError(t, transport.Close("test"))
	require.True(t, conn.closed)
	require.Equal(t, 1, conn.numControls(websocket.CloseMessage))

	// closing twice is a no-op, sending after close fails.
	require.NoError(t, transport.Close("again"))
	require.Equal(t, 1, conn.numControls(websocket.CloseMessage))
	require.Equal(t, errTransportClosed, transport.Send([]byte("late")))
}

func TestTransportPing(t *testing.T) {
	conn := &fakeWebsocketConn{}
	transport := newWebsocketTransport(conn, websocketTransportOptions{pingInterval: 5 * time.Millisecond})
	defer func() { _ = transport.Close("test done") }()

	require.Eventually(t, func() bool {
		return conn.numControls(websocket.PingMessage) >= 2
	}, time.Second, time.Millisecond)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	reg := registry.New(registry.Config{})
	proc := dispatch.New(reg, hub.New(0))
	srv := New(Config{PingInterval: time.Minute}, proc)
	ts := httptest.NewServer(http.HandlerFunc(srv.handleWebsocket))
	t.Cleanup(ts.Close)
	return ts
}

func dialTestServer(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wire.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := wire.Decode(data)
	require.NoError(t, err)
	return msg
}

func TestWebsocketPingPong(t *testing.T) {
	ts := newTestServer(t)
	conn := dialTestServer(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`["req","ping",{"message":"hello"}]`)))
	require.Equal(t, wire.PongResponse{Message: "hello"}, readMessage(t, conn))
}

func TestWebsocketChatFlow(t *testing.T) {
	ts := newTestServer(t)
	bill := dialTestServer(t, ts)
	carol := dialTestServer(t, ts)

	require.NoError(t, bill.WriteMessage(websocket.TextMessage, []byte(`["req","new",{"memberName":"Bill"}]`)))
	created := readMessage(t, bill).(wire.JoinResponse)
	require.NotNil(t, created.Memberid)

	data, err := wire.Encode(wire.JoinRequest{Chatid: created.Chatid, MemberName: "Carol"})
	require.NoError(t, err)
	require.NoError(t, carol.WriteMessage(websocket.TextMessage, data))
	joined := readMessage(t, carol).(wire.JoinResponse)
	require.Equal(t, []string{"Bill"}, joined.OtherMembers)

	// Bill sees Carol's join without her member id.
	seen := readMessage(t, bill).(wire.JoinResponse)
	require.Nil(t, seen.Memberid)

	data, err = wire.Encode(wire.SendRequest{Memberid: *created.Memberid, Message: "hi"})
	require.NoError(t, err)
	require.NoError(t, bill.WriteMessage(websocket.TextMessage, data))
	want := wire.ReceiveResponse{Chatid: created.Chatid, MemberName: "Bill", Message: "hi"}
	require.Equal(t, want, readMessage(t, bill))
	require.Equal(t, want, readMessage(t, carol))
}

func TestWebsocketDisconnectCleansUp(t *testing.T) {
	ts := newTestServer(t)
	bill := dialTestServer(t, ts)
	carol := dialTestServer(t, ts)

	require.NoError(t, bill.WriteMessage(websocket.TextMessage, []byte(`["req","new",{"memberName":"Bill"}]`)))
	created := readMessage(t, bill).(wire.JoinResponse)

	data, err := wire.Encode(wire.JoinRequest{Chatid: created.Chatid, MemberName: "Carol"})
	require.NoError(t, err)
	require.NoError(t, carol.WriteMessage(websocket.TextMessage, data))
	_ = readMessage(t, carol)
	_ = readMessage(t, bill)

	// with no grace period Bill's membership dies with the connection and
	// Carol sees the leave.
	require.NoError(t, bill.Close())
	require.Equal(t, wire.LeaveResponse{Chatid: created.Chatid, MemberName: "Bill"}, readMessage(t, carol))
}

func TestHealthEndpoint(t *testing.T) {
	reg := registry.New(registry.Config{})
	proc := dispatch.New(reg, hub.New(0))
	srv := New(Config{Port: 8000}, proc)

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
