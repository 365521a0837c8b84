// Package hub tracks which chats each live connection participates in and
// fans responses out to exactly the connections that must see them. It also
// implements the disconnect grace period ("death row"): members of a vanished
// connection are kept registered for a while so a quick reconnect does not
// collide with its own name.
package hub

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/palaverhq/palaver/internal/metrics"
)

// Conn is one live client connection as the hub sees it.
type Conn interface {
	// ID returns the unique connection id.
	ID() string
	// Send writes one encoded message to the connection. Fire-and-forget:
	// the hub does not await acknowledgement.
	Send(data []byte) error
	// Close closes the connection with a reason.
	Close(reason string) error
}

type deathRowEntry struct {
	chatID   string
	deadline time.Time
}

// Hub manages connection registries. All indexes live behind one mutex and
// can only be updated in lockstep through the methods below.
type Hub struct {
	mu sync.RWMutex

	// match connection id with actual connection.
	conns map[string]Conn

	// chat id -> connection ids participating in it.
	chatConns map[string]map[string]struct{}

	// connection id -> chat ids it participates in.
	connChats map[string]map[string]struct{}

	// member id -> owning connection id.
	memberConn map[string]string

	// member id -> chat id the member lives in.
	memberChat map[string]string

	// connection id -> member ids it owns.
	connMembers map[string]map[string]struct{}

	// members awaiting cleanup after their connection vanished.
	deathRow map[string]deathRowEntry

	gracePeriod time.Duration
}

// New initializes a Hub. gracePeriod of zero disables death row: members of
// a lost connection are reaped immediately.
func New(gracePeriod time.Duration) *Hub {
	return &Hub{
		conns:       make(map[string]Conn),
		chatConns:   make(map[string]map[string]struct{}),
		connChats:   make(map[string]map[string]struct{}),
		memberConn:  make(map[string]string),
		memberChat:  make(map[string]string),
		connMembers: make(map[string]map[string]struct{}),
		deathRow:    make(map[string]deathRowEntry),
		gracePeriod: gracePeriod,
	}
}

// Add registers a connection.
func (h *Hub) Add(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID()] = c
	metrics.ConnectionsGauge.Inc()
}

// Associate records that connID owns memberID inside chatID. Called after a
// successful create, join or reclaim.
func (h *Hub) Associate(connID, chatID, memberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.associate(connID, chatID, memberID)
}

func (h *Hub) associate(connID, chatID, memberID string) {
	// Ownership moves with the member: a reconnect probe arrives on a fresh
	// connection while the half-open old one may still be registered. The old
	// connection must not drag the member down with it later.
	if prev, ok := h.memberConn[memberID]; ok && prev != connID {
		h.strip(prev, memberID)
	}
	if _, ok := h.chatConns[chatID]; !ok {
		h.chatConns[chatID] = make(map[string]struct{})
	}
	h.chatConns[chatID][connID] = struct{}{}
	if _, ok := h.connChats[connID]; !ok {
		h.connChats[connID] = make(map[string]struct{})
	}
	h.connChats[connID][chatID] = struct{}{}
	h.memberConn[memberID] = connID
	h.memberChat[memberID] = chatID
	if _, ok := h.connMembers[connID]; !ok {
		h.connMembers[connID] = make(map[string]struct{})
	}
	h.connMembers[connID][memberID] = struct{}{}
}

// Disown removes a member association after the member left its chat. The
// owning connection stays associated with the chat while it owns other
// members in it.
func (h *Hub) Disown(memberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.deathRow, memberID)
	chatID := h.memberChat[memberID]
	delete(h.memberChat, memberID)
	connID, ok := h.memberConn[memberID]
	if !ok {
		return
	}
	delete(h.memberConn, memberID)
	delete(h.connMembers[connID], memberID)
	if h.connOwnsMemberIn(connID, chatID) {
		return
	}
	delete(h.connChats[connID], chatID)
	if chat, ok := h.chatConns[chatID]; ok {
		delete(chat, connID)
		if len(chat) == 0 {
			delete(h.chatConns, chatID)
		}
	}
}

// strip removes memberID from a previous owner's indexes. The previous
// connection keeps its chat association while it owns other members there.
func (h *Hub) strip(connID, memberID string) {
	delete(h.connMembers[connID], memberID)
	chatID := h.memberChat[memberID]
	if h.connOwnsMemberIn(connID, chatID) {
		return
	}
	delete(h.connChats[connID], chatID)
	if chat, ok := h.chatConns[chatID]; ok {
		delete(chat, connID)
		if len(chat) == 0 {
			delete(h.chatConns, chatID)
		}
	}
}

func (h *Hub) connOwnsMemberIn(connID, chatID string) bool {
	for memberID := range h.connMembers[connID] {
		if h.memberChat[memberID] == chatID {
			return true
		}
	}
	return false
}

// Owner returns the connection owning memberID, or false when the member is
// unowned (on death row or unknown).
func (h *Hub) Owner(memberID string) (Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	connID, ok := h.memberConn[memberID]
	if !ok {
		return nil, false
	}
	c, ok := h.conns[connID]
	return c, ok
}

// OnDeathRow reports whether memberID awaits cleanup.
func (h *Hub) OnDeathRow(memberID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.deathRow[memberID]
	return ok
}

// Reclaim moves a death-row member onto a live connection. Returns false if
// the member is not on death row.
func (h *Hub) Reclaim(connID, memberID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	entry, ok := h.deathRow[memberID]
	if !ok {
		return false
	}
	delete(h.deathRow, memberID)
	h.associate(connID, entry.chatID, memberID)
	metrics.DeathRowSpared.Inc()
	log.Debug().Str("member", memberID).Str("conn", connID).Msg("member reclaimed from death row")
	return true
}

// DropConnection removes a connection from the hub. With no grace period
// configured it returns the member ids the caller must immediately remove
// from the registry; otherwise the members move to death row and a later
// Sweep returns them.
func (h *Hub) DropConnection(connID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connID]; ok {
		delete(h.conns, connID)
		metrics.ConnectionsGauge.Dec()
	}

	var doomed []string
	deadline := time.Now().Add(h.gracePeriod)
	for memberID := range h.connMembers[connID] {
		if h.memberConn[memberID] != connID {
			// the member moved to another connection since.
			continue
		}
		chatID := h.memberChat[memberID]
		delete(h.memberConn, memberID)
		if h.gracePeriod > 0 {
			h.deathRow[memberID] = deathRowEntry{chatID: chatID, deadline: deadline}
		} else {
			delete(h.memberChat, memberID)
			doomed = append(doomed, memberID)
		}
	}
	delete(h.connMembers, connID)

	for chatID := range h.connChats[connID] {
		if chat, ok := h.chatConns[chatID]; ok {
			delete(chat, connID)
			if len(chat) == 0 {
				delete(h.chatConns, chatID)
			}
		}
	}
	delete(h.connChats, connID)
	return doomed
}

// Sweep removes expired death-row entries and returns their member ids. The
// caller removes them from the registry and broadcasts the leaves.
func (h *Hub) Sweep(now time.Time) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var expired []string
	for memberID, entry := range h.deathRow {
		if now.Before(entry.deadline) {
			continue
		}
		delete(h.deathRow, memberID)
		delete(h.memberChat, memberID)
		expired = append(expired, memberID)
		metrics.DeathRowSwept.Inc()
	}
	return expired
}

// Broadcast sends data to every connection associated with chatID, except
// the excluded connection id (empty string excludes nobody).
func (h *Hub) Broadcast(chatID string, data []byte, excludeConnID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for connID := range h.chatConns[chatID] {
		if connID == excludeConnID {
			continue
		}
		c, ok := h.conns[connID]
		if !ok {
			continue
		}
		if err := c.Send(data); err != nil {
			log.Error().Err(err).Str("conn", connID).Str("chat", chatID).Msg("error sending to connection")
			continue
		}
		metrics.FanoutTotal.Inc()
	}
}

// NumConns returns the number of registered connections.
func (h *Hub) NumConns() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// NumChatConns returns the number of connections associated with chatID.
func (h *Hub) NumChatConns(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.chatConns[chatID])
}

// Shutdown closes all connections.
func (h *Hub) Shutdown(reason string) {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c Conn) {
			defer wg.Done()
			_ = c.Close(reason)
		}(c)
	}
	wg.Wait()
}
