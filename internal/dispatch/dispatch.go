// Package dispatch applies incoming requests to the session registry and
// routes the resulting responses through the hub. It is the single point
// where registry failures become wire error responses.
package dispatch

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/palaverhq/palaver/internal/hub"
	"github.com/palaverhq/palaver/internal/metrics"
	"github.com/palaverhq/palaver/internal/registry"
	"github.com/palaverhq/palaver/internal/wire"
)

// Processor serializes all registry mutations behind one mutex: requests
// from any number of connections, disconnect cleanup and death-row sweeps
// are linearized so id allocation and membership updates cannot race.
type Processor struct {
	mu  sync.Mutex
	reg *registry.Registry
	hub *hub.Hub
}

// New creates a Processor over the given registry and hub.
func New(reg *registry.Registry, h *hub.Hub) *Processor {
	return &Processor{reg: reg, hub: h}
}

// Hub returns the processor's hub.
func (p *Processor) Hub() *hub.Hub { return p.hub }

// Handle decodes one incoming frame from connection c and applies it.
// Every outcome, including decode failures, is answered on c or broadcast
// through the hub; Handle itself never fails.
func (p *Processor) Handle(c hub.Conn, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	msg, err := wire.Decode(data)
	if err != nil {
		if unknown, ok := err.(*wire.UnknownMessageError); ok {
			p.sendError(c, wire.UnknownRequestKind(unknown.Name), unknown.Error())
			return
		}
		p.sendError(c, wire.JsonDecodeKind(string(data), err.Error()), "cannot decode message")
		return
	}

	metrics.RequestsTotal.WithLabelValues(msg.MessageName()).Inc()

	switch req := msg.(type) {
	case wire.PingRequest:
		p.send(c, wire.PongResponse{Message: req.Message})
	case wire.NewRequest:
		p.handleNew(c, req.MemberName, false, "")
	case wire.NewPublicRequest:
		p.handleNew(c, req.MemberName, true, req.ChatName)
	case wire.JoinRequest:
		p.handleJoin(c, req.Chatid, req.MemberName, "")
	case wire.RejoinRequest:
		p.handleRejoin(c, req)
	case wire.SendRequest:
		p.handleSend(c, req)
	case wire.LeaveRequest:
		p.handleLeave(c, req.Memberid)
	case wire.GetPublicChatsRequest:
		p.send(c, wire.GetPublicChatsResponse{Chats: p.reg.PublicChats()})
	default:
		// a response-shaped message fed in as a request.
		p.sendError(c, wire.UnknownRequestKind(msg.MessageName()),
			fmt.Sprintf("%q is not a request", msg.MessageName()))
	}
	p.syncGauges()
}

func (p *Processor) handleNew(c hub.Conn, memberName string, public bool, chatName string) {
	chatID, memberID, err := p.reg.CreateChat(memberName, public, chatName, "")
	if err != nil {
		p.sendRegistryError(c, err, "", "", memberName, chatName)
		return
	}
	p.hub.Associate(c.ID(), chatID, memberID)
	p.send(c, wire.JoinResponse{
		Chatid:       chatID,
		Memberid:     &memberID,
		MemberName:   memberName,
		OtherMembers: []string{},
		IsPublic:     public,
	})
}

// handleJoin joins chatID and answers the joining connection with its member
// id while the rest of the chat receives the anonymized variant.
func (p *Processor) handleJoin(c hub.Conn, chatID, memberName string, method wire.RejoinMethod) {
	memberID, others, err := p.reg.JoinChat(chatID, memberName)
	if err != nil {
		p.sendRegistryError(c, err, chatID, "", memberName, "")
		return
	}
	chat, _ := p.reg.Chat(chatID)
	rsp := wire.JoinResponse{
		Chatid:       chatID,
		Memberid:     nil,
		MemberName:   memberName,
		OtherMembers: others,
		IsPublic:     chat.Public,
	}
	if data, err := wire.Encode(rsp); err == nil {
		p.hub.Broadcast(chatID, data, c.ID())
	}
	p.hub.Associate(c.ID(), chatID, memberID)
	rsp.Memberid = &memberID
	rsp.RejoinMethod = method
	p.send(c, rsp)
}

// handleRejoin resumes a previous membership: keep the member id when it is
// still registered, otherwise join the chat fresh, otherwise recreate the
// chat under its previous id.
func (p *Processor) handleRejoin(c hub.Conn, req wire.RejoinRequest) {
	if member, ok := p.reg.Member(req.Memberid); ok && member.ChatID == req.Chatid {
		if !p.hub.Reclaim(c.ID(), req.Memberid) {
			// member was still owned (by this or a previous connection);
			// ownership follows the requester.
			p.hub.Associate(c.ID(), req.Chatid, req.Memberid)
		}
		chat, _ := p.reg.Chat(req.Chatid)
		others := p.othersOf(req.Chatid, member.Name)
		memberID := req.Memberid
		p.send(c, wire.JoinResponse{
			Chatid:       req.Chatid,
			Memberid:     &memberID,
			MemberName:   member.Name,
			OtherMembers: others,
			IsPublic:     chat.Public,
			RejoinMethod: wire.RejoinNeverLeft,
		})
		return
	}
	if _, ok := p.reg.Chat(req.Chatid); ok {
		p.handleJoin(c, req.Chatid, req.MemberName, wire.RejoinExisting)
		return
	}
	// Trusted recreate path: the chat keeps its previous id. The wire
	// catalog carries no chat name on rejoin, so a recreated public chat is
	// named after its creator.
	chatName := ""
	if req.IsPublic {
		chatName = req.MemberName
	}
	chatID, memberID, err := p.reg.CreateChat(req.MemberName, req.IsPublic, chatName, req.Chatid)
	if err != nil {
		p.sendRegistryError(c, err, req.Chatid, "", req.MemberName, chatName)
		return
	}
	p.hub.Associate(c.ID(), chatID, memberID)
	p.send(c, wire.JoinResponse{
		Chatid:       chatID,
		Memberid:     &memberID,
		MemberName:   req.MemberName,
		OtherMembers: []string{},
		IsPublic:     req.IsPublic,
		RejoinMethod: wire.RejoinNew,
	})
}

func (p *Processor) handleSend(c hub.Conn, req wire.SendRequest) {
	chatID, memberName, text, err := p.reg.Send(req.Memberid, req.Message)
	if err != nil {
		// send is also the reconnect probe, so the member id goes into the
		// error details.
		p.sendRegistryError(c, err, "", req.Memberid, "", "")
		return
	}
	// The sender may arrive on a fresh connection (reconnect probe); make
	// sure the membership follows it before fanning out.
	if !p.hub.Reclaim(c.ID(), req.Memberid) {
		if owner, ok := p.hub.Owner(req.Memberid); !ok || owner.ID() != c.ID() {
			p.hub.Associate(c.ID(), chatID, req.Memberid)
		}
	}
	metrics.MessagesTotal.Inc()
	rsp := wire.ReceiveResponse{Chatid: chatID, MemberName: memberName, Message: text}
	if data, err := wire.Encode(rsp); err == nil {
		p.hub.Broadcast(chatID, data, "")
	}
}

func (p *Processor) handleLeave(c hub.Conn, memberID string) {
	chatID, memberName, err := p.reg.Leave(memberID)
	if err != nil {
		p.sendRegistryError(c, err, "", memberID, "", "")
		return
	}
	rsp := wire.LeaveResponse{Chatid: chatID, MemberName: memberName}
	// broadcast before disowning so the leaver gets its own leave echo.
	if data, err := wire.Encode(rsp); err == nil {
		p.hub.Broadcast(chatID, data, "")
	}
	p.hub.Disown(memberID)
}

func (p *Processor) othersOf(chatID, selfName string) []string {
	names := p.reg.MemberNames(chatID)
	others := make([]string, 0, len(names))
	for _, name := range names {
		if name == selfName {
			continue
		}
		others = append(others, name)
	}
	return others
}

// Disconnect handles a lost connection: every member the connection owned
// either goes to death row or leaves immediately, with leave broadcasts.
func (p *Processor) Disconnect(connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	doomed := p.hub.DropConnection(connID)
	p.reapMembers(doomed)
	p.syncGauges()
}

// SweepDeathRow removes members whose disconnect grace period expired.
func (p *Processor) SweepDeathRow(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	expired := p.hub.Sweep(now)
	p.reapMembers(expired)
	p.syncGauges()
}

func (p *Processor) reapMembers(memberIDs []string) {
	for _, memberID := range memberIDs {
		chatID, memberName, err := p.reg.Leave(memberID)
		if err != nil {
			continue
		}
		log.Debug().Str("member", memberID).Str("chat", chatID).Msg("member reaped after disconnect")
		rsp := wire.LeaveResponse{Chatid: chatID, MemberName: memberName}
		if data, err := wire.Encode(rsp); err == nil {
			p.hub.Broadcast(chatID, data, "")
		}
		p.hub.Disown(memberID)
	}
}

func (p *Processor) send(c hub.Conn, msg wire.Message) {
	data, err := wire.Encode(msg)
	if err != nil {
		log.Error().Err(err).Str("message", msg.MessageName()).Msg("error encoding response")
		return
	}
	if err := c.Send(data); err != nil {
		log.Error().Err(err).Str("conn", c.ID()).Msg("error sending response")
	}
}

func (p *Processor) sendError(c hub.Conn, kind wire.ErrorKind, message string) {
	metrics.ErrorsTotal.WithLabelValues(kind.Tag).Inc()
	p.send(c, wire.ErrorResponse{Kind: kind, Message: message})
}

// sendRegistryError translates a registry sentinel into its wire error kind.
func (p *Processor) sendRegistryError(c hub.Conn, err error, chatID, memberID, memberName, chatName string) {
	var kind wire.ErrorKind
	switch err {
	case registry.ErrUnknownChat:
		kind = wire.UnknownChatidKind(chatID)
	case registry.ErrUnknownMember:
		kind = wire.UnknownMemberidKind(memberID)
	case registry.ErrMemberExists:
		kind = wire.MemberExistsKind(chatID, memberName)
	case registry.ErrTooManyChats:
		kind = wire.TooManyGamesKind()
	case registry.ErrTooManyPublicChats:
		kind = wire.TooManyPublicGamesKind()
	case registry.ErrInvalidChatName:
		kind = wire.InvalidPublicGameNameKind()
	case registry.ErrChatNameExists:
		kind = wire.PublicChatNameExistsKind(chatName)
	default:
		kind = wire.UnknownRequestKind(err.Error())
	}
	p.sendError(c, kind, err.Error())
}

func (p *Processor) syncGauges() {
	metrics.ChatsGauge.Set(float64(p.reg.NumChats()))
	metrics.PublicChatsGauge.Set(float64(p.reg.NumPublicChats()))
	metrics.MembersGauge.Set(float64(p.reg.NumMembers()))
}
