package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testConn struct {
	id     string
	sent   [][]byte
	closed bool
}

func (c *testConn) ID() string { return c.id }

func (c *testConn) Send(data []byte) error {
	c.sent = append(c.sent, data)
	return nil
}

func (c *testConn) Close(string) error {
	c.closed = true
	return nil
}

func TestAssociateAndBroadcast(t *testing.T) {
	h := New(0)
	c1 := &testConn{id: "conn1"}
	c2 := &testConn{id: "conn2"}
	c3 := &testConn{id: "conn3"}
	h.Add(c1)
	h.Add(c2)
	h.Add(c3)
	h.Associate("conn1", "c1", "m1")
	h.Associate("conn2", "c1", "m2")
	h.Associate("conn3", "c2", "m3")

	h.Broadcast("c1", []byte("hello"), "")
	require.Len(t, c1.sent, 1)
	require.Len(t, c2.sent, 1)
	require.Empty(t, c3.sent)

	// exclusion keeps the origin out of the fan-out set.
	h.Broadcast("c1", []byte("again"), "conn1")
	require.Len(t, c1.sent, 1)
	require.Len(t, c2.sent, 2)
}

func TestOneConnectionManyChats(t *testing.T) {
	h := New(0)
	c := &testConn{id: "conn1"}
	h.Add(c)
	h.Associate("conn1", "c1", "m1")
	h.Associate("conn1", "c2", "m2")

	h.Broadcast("c1", []byte("x"), "")
	h.Broadcast("c2", []byte("y"), "")
	require.Len(t, c.sent, 2)
}

func TestDisownKeepsChatWhileOtherMembersRemain(t *testing.T) {
	h := New(0)
	c := &testConn{id: "conn1"}
	h.Add(c)
	// two memberships of the same connection in one chat.
	h.Associate("conn1", "c1", "m1")
	h.Associate("conn1", "c1", "m2")

	h.Disown("m1")
	require.Equal(t, 1, h.NumChatConns("c1"))
	h.Disown("m2")
	require.Equal(t, 0, h.NumChatConns("c1"))
}

func TestDropConnectionImmediate(t *testing.T) {
	h := New(0)
	c := &testConn{id: "conn1"}
	h.Add(c)
	h.Associate("conn1", "c1", "m1")
	h.Associate("conn1", "c2", "m2")

	doomed := h.DropConnection("conn1")
	require.ElementsMatch(t, []string{"m1", "m2"}, doomed)
	require.Equal(t, 0, h.NumConns())
	require.Equal(t, 0, h.NumChatConns("c1"))
}

func TestDeathRowSweep(t *testing.T) {
	h := New(time.Minute)
	c := &testConn{id: "conn1"}
	h.Add(c)
	h.Associate("conn1", "c1", "m1")

	doomed := h.DropConnection("conn1")
	require.Empty(t, doomed)
	require.True(t, h.OnDeathRow("m1"))

	// not yet due.
	require.Empty(t, h.Sweep(time.Now()))
	require.True(t, h.OnDeathRow("m1"))

	expired := h.Sweep(time.Now().Add(2 * time.Minute))
	require.Equal(t, []string{"m1"}, expired)
	require.False(t, h.OnDeathRow("m1"))
}

func TestReclaimFromDeathRow(t *testing.T) {
	h := New(time.Minute)
	old := &testConn{id: "old"}
	h.Add(old)
	h.Associate("old", "c1", "m1")
	h.DropConnection("old")
	require.True(t, h.OnDeathRow("m1"))

	fresh := &testConn{id: "fresh"}
	h.Add(fresh)
	require.True(t, h.Reclaim("fresh", "m1"))
	require.False(t, h.OnDeathRow("m1"))

	owner, ok := h.Owner("m1")
	require.True(t, ok)
	require.Equal(t, "fresh", owner.ID())

	// reclaimed membership participates in broadcasts again.
	h.Broadcast("c1", []byte("hello"), "")
	require.Len(t, fresh.sent, 1)

	// nothing left on death row to sweep.
	require.Empty(t, h.Sweep(time.Now().Add(2*time.Minute)))
}

func TestReclaimNotOnDeathRow(t *testing.T) {
	h := New(time.Minute)
	require.False(t, h.Reclaim("conn1", "m1"))
}

func TestShutdownClosesConnections(t *testing.T) {
	h := New(0)
	c1 := &testConn{id: "conn1"}
	c2 := &testConn{id: "conn2"}
	h.Add(c1)
	h.Add(c2)
	h.Shutdown("bye")
	require.True(t, c1.closed)
	require.True(t, c2.closed)
}

func TestAssociateMovesOwnership(t *testing.T) {
	h := New(0)
	old := &testConn{id: "old"}
	fresh := &testConn{id: "fresh"}
	h.Add(old)
	h.Add(fresh)
	h.Associate("old", "c1", "m1")

	// the member reappears on a fresh connection while the old one is still
	// registered; ownership must follow.
	h.Associate("fresh", "c1", "m1")
	owner, ok := h.Owner("m1")
	require.True(t, ok)
	require.Equal(t, "fresh", owner.ID())

	// the old connection's death must not take the member with it.
	doomed := h.DropConnection("old")
	require.Empty(t, doomed)
	h.Broadcast("c1", []byte("hello"), "")
	require.Len(t, fresh.sent, 1)
	require.Empty(t, old.sent)
}

func TestAssociateMovesOwnershipWithGracePeriod(t *testing.T) {
	h := New(time.Minute)
	old := &testConn{id: "old"}
	fresh := &testConn{id: "fresh"}
	h.Add(old)
	h.Add(fresh)
	h.Associate("old", "c1", "m1")
	h.Associate("fresh", "c1", "m1")

	h.DropConnection("old")
	require.False(t, h.OnDeathRow("m1"))
	require.Empty(t, h.Sweep(time.Now().Add(2*time.Minute)))

	owner, ok := h.Owner("m1")
	require.True(t, ok)
	require.Equal(t, "fresh", owner.ID())
}

func TestAssociateMoveKeepsOldConnOtherMembers(t *testing.T) {
	h := New(0)
	old := &testConn{id: "old"}
	fresh := &testConn{id: "fresh"}
	h.Add(old)
	h.Add(fresh)
	h.Associate("old", "c1", "m1")
	h.Associate("old", "c1", "m2")

	// only m1 moves; the old connection still owns m2 in the same chat and
	// stays in the fan-out set.
	h.Associate("fresh", "c1", "m1")
	h.Broadcast("c1", []byte("hello"), "")
	require.Len(t, old.sent, 1)
	require.Len(t, fresh.sent, 1)

	doomed := h.DropConnection("old")
	require.Equal(t, []string{"m2"}, doomed)
}
