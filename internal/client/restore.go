// Package client contains the client side of the relay protocol: the
// connection wrapper, the reconnection controller that replays persisted
// memberships after a restart, and a thin terminal application.
package client

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/palaverhq/palaver/internal/store"
	"github.com/palaverhq/palaver/internal/wire"
)

// maxNameSuffixes caps the trailing-dot collision retries. After three
// suffixed attempts the controller gives up on the old chat and creates a
// brand-new one under the original name.
const maxNameSuffixes = 3

// PendingOperation tracks the single in-flight create/join request so its
// eventual response can be matched to intent: the protocol carries no
// correlation id.
type PendingOperation int

const (
	// PendingNone means no create/join request is in flight.
	PendingNone PendingOperation = iota
	// PendingJoinExisting means an existing chat awaits a new local member.
	PendingJoinExisting
	// PendingNewChat means a new chat awaits its first member.
	PendingNewChat
)

// RestoreState is the finite restore sequence. Done is also the steady state
// once no restore is pending.
type RestoreState interface{ restoreState() }

// Start is the initial state before the persisted model is read.
type Start struct{}

// ReadRecords reads each persisted chat record in turn, destructively: a
// record is deleted from the store once read.
type ReadRecords struct {
	Remaining   []store.ChatKey
	Accumulated []store.ChatRecord
}

// ReconnectRooms replays the accumulated chats one at a time. Waiting is the
// chat whose request is in flight; the controller never has two requests
// outstanding because responses can only be correlated by send order.
type ReconnectRooms struct {
	Waiting   *attempt
	Remaining []store.ChatRecord
}

// Done is the terminal state.
type Done struct{}

func (Start) restoreState()          {}
func (ReadRecords) restoreState()    {}
func (ReconnectRooms) restoreState() {}
func (Done) restoreState()           {}

type attemptPhase int

const (
	// phaseProbe reuses the persisted member id via an empty chat send.
	phaseProbe attemptPhase = iota
	// phaseJoin joins the chat fresh by display name.
	phaseJoin
	// phaseRejoin asks the server to recreate the chat under its old id.
	phaseRejoin
	// phaseCreate creates a brand-new chat after the suffix cap.
	phaseCreate
)

// attempt is one chat's restore in progress.
type attempt struct {
	record   store.ChatRecord
	memberID string
	name     string // original display name, without suffixes
	phase    attemptPhase
	suffixes int
}

func (a *attempt) currentName() string {
	return a.name + strings.Repeat(".", a.suffixes)
}

// Controller drives the restore sequence: one store read or one request per
// step, advancing only when the previous step's response has arrived.
type Controller struct {
	store    store.Store
	send     func(wire.Message) error
	state    RestoreState
	restored func(store.ChatRecord)
}

// NewController creates a Controller in the Start state. restored is called
// for every successfully restored chat with its updated record; it may be
// nil.
func NewController(st store.Store, send func(wire.Message) error, restored func(store.ChatRecord)) *Controller {
	return &Controller{store: st, send: send, state: Start{}, restored: restored}
}

// State returns the current restore state.
func (c *Controller) State() RestoreState { return c.state }

// Restoring reports whether a restore is still in progress. While true,
// incoming server messages must be offered to HandleResponse before any
// normal processing.
func (c *Controller) Restoring() bool {
	_, done := c.state.(Done)
	return !done
}

// Run advances the state machine until it is Done or a request is in flight.
// Call it once after startup and the controller takes over from there.
func (c *Controller) Run() {
	for c.step() {
	}
}

// step performs one transition. Returns false when the controller must wait
// for a response or is done.
func (c *Controller) step() bool {
	switch state := c.state.(type) {
	case Start:
		model, err := c.store.LoadModel()
		if err != nil {
			if err != store.ErrNotFound {
				log.Warn().Err(err).Msg("error loading persisted model, nothing restored")
			}
			c.state = Done{}
			return false
		}
		c.state = ReadRecords{Remaining: model.ChatKeys}
		return true
	case ReadRecords:
		if len(state.Remaining) == 0 {
			c.state = ReconnectRooms{Remaining: state.Accumulated}
			return true
		}
		key := state.Remaining[0]
		state.Remaining = state.Remaining[1:]
		record, err := c.store.LoadChat(key)
		if err == nil {
			// persisted order is last-join-first; reverse to original
			// join order before replay.
			reverseMembers(record.Members)
			state.Accumulated = append(state.Accumulated, record)
		} else if err != store.ErrNotFound {
			log.Warn().Err(err).Str("chat", key.Chatid).Msg("error reading chat record")
		}
		// restore is one-shot: drop the record now that it is read.
		if err := c.store.DeleteChat(key); err != nil {
			log.Warn().Err(err).Str("chat", key.Chatid).Msg("error deleting chat record")
		}
		c.state = state
		return true
	case ReconnectRooms:
		if state.Waiting != nil {
			return false
		}
		if len(state.Remaining) == 0 {
			c.state = Done{}
			return false
		}
		record := state.Remaining[0]
		state.Remaining = state.Remaining[1:]
		if len(record.Members) == 0 {
			c.state = state
			return true
		}
		first := record.Members[0]
		state.Waiting = &attempt{record: record, memberID: first.ID, name: first.Name}
		c.state = state
		// zero-effect probe: an empty send either proves the member id is
		// still valid or reports UnknownMemberidError.
		c.sendOrAbandon(wire.SendRequest{Memberid: first.ID, Message: ""})
		return false
	default:
		return false
	}
}

func (c *Controller) sendOrAbandon(msg wire.Message) {
	if err := c.send(msg); err != nil {
		log.Warn().Err(err).Msg("error sending restore request")
		c.abandon("send failed")
	}
}

// abandon gives up on the waiting chat and advances to the next one.
func (c *Controller) abandon(reason string) {
	if state, ok := c.state.(ReconnectRooms); ok && state.Waiting != nil {
		log.Warn().
			Str("chat", state.Waiting.record.Chatid).
			Str("reason", reason).
			Msg("abandoning chat restore")
		state.Waiting = nil
		c.state = state
	}
	c.Run()
}

// succeed stores the restored membership and advances.
func (c *Controller) succeed(chatID, memberID, memberName string) {
	state := c.state.(ReconnectRooms)
	record := state.Waiting.record
	record.Chatid = chatID
	record.Members = []store.MemberPair{{ID: memberID, Name: memberName}}
	key := store.ChatKey{ServerAddress: record.ServerAddress, Chatid: chatID}
	if err := c.store.SaveChat(key, record); err != nil {
		log.Warn().Err(err).Str("chat", chatID).Msg("error saving restored chat record")
	}
	log.Info().Str("chat", chatID).Str("member", memberID).Msg("chat membership restored")
	if c.restored != nil {
		c.restored(record)
	}
	state.Waiting = nil
	c.state = state
	c.Run()
}

// HandleResponse offers an incoming server message to the controller.
// Returns true when the message was consumed by the restore in progress;
// false routes it to normal handling.
func (c *Controller) HandleResponse(msg wire.Message) bool {
	state, ok := c.state.(ReconnectRooms)
	if !ok || state.Waiting == nil {
		return false
	}
	waiting := state.Waiting

	switch rsp := msg.(type) {
	case wire.ReceiveResponse:
		if waiting.phase != phaseProbe || rsp.Chatid != waiting.record.Chatid {
			return false
		}
		c.succeed(rsp.Chatid, waiting.memberID, waiting.name)
		return true
	case wire.JoinResponse:
		if rsp.Memberid == nil {
			// someone else's join broadcast, not addressed to us.
			return false
		}
		switch waiting.phase {
		case phaseJoin, phaseRejoin:
			if rsp.Chatid != waiting.record.Chatid {
				return false
			}
		case phaseCreate:
			// brand-new chat, its id is fresh by definition.
		default:
			return false
		}
		c.succeed(rsp.Chatid, *rsp.Memberid, rsp.MemberName)
		return true
	case wire.ErrorResponse:
		c.handleError(waiting, rsp)
		return true
	default:
		return false
	}
}

// handleError applies the fallback ladder: probe -> join -> suffixed join
// (up to the cap) -> rejoin-recreate or brand-new chat.
func (c *Controller) handleError(waiting *attempt, rsp wire.ErrorResponse) {
	switch {
	case waiting.phase == phaseProbe && rsp.Kind.Tag == wire.KindUnknownMemberidError:
		waiting.phase = phaseJoin
		waiting.suffixes = 0
		c.sendOrAbandon(wire.JoinRequest{Chatid: waiting.record.Chatid, MemberName: waiting.currentName()})
	case waiting.phase == phaseJoin && rsp.Kind.Tag == wire.KindMemberExistsError:
		if waiting.suffixes < maxNameSuffixes {
			waiting.suffixes++
			c.sendOrAbandon(wire.JoinRequest{Chatid: waiting.record.Chatid, MemberName: waiting.currentName()})
			return
		}
		// suffix cap reached: give up on the old chat, create a new one
		// under the original name.
		waiting.phase = phaseCreate
		if waiting.record.IsPublic {
			c.sendOrAbandon(wire.NewPublicRequest{MemberName: waiting.name, ChatName: waiting.record.ChatName})
			return
		}
		c.sendOrAbandon(wire.NewRequest{MemberName: waiting.name})
	case waiting.phase == phaseJoin && rsp.Kind.Tag == wire.KindUnknownChatidError:
		// chat is gone: ask the server to recreate it under its old id.
		waiting.phase = phaseRejoin
		c.sendOrAbandon(wire.RejoinRequest{
			Memberid:   waiting.memberID,
			Chatid:     waiting.record.Chatid,
			MemberName: waiting.name,
			IsPublic:   waiting.record.IsPublic,
		})
	default:
		c.abandon(rsp.Kind.Tag)
	}
}

func reverseMembers(members []store.MemberPair) {
	for i, j := 0, len(members)-1; i < j; i, j = i+1, j-1 {
		members[i], members[j] = members[j], members[i]
	}
}
