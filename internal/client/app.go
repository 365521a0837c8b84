package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/palaverhq/palaver/internal/store"
	"github.com/palaverhq/palaver/internal/wire"
)

// Options configures the terminal client.
type Options struct {
	// ServerURL is the relay websocket endpoint.
	ServerURL string
	// MemberName is the default display name for new memberships.
	MemberName string
	// Store persists the client model and chat records across restarts.
	Store store.Store
	// In and Out are the terminal streams.
	In  io.Reader
	Out io.Writer
}

// App is a thin terminal client: it restores persisted memberships on
// startup, then relays stdin lines to the current chat.
type App struct {
	opts    Options
	conn    *Conn
	model   store.Model
	chats   map[store.ChatKey]store.ChatRecord
	current *store.ChatKey
	pending PendingOperation
}

// NewApp creates a terminal client.
func NewApp(opts Options) *App {
	return &App{opts: opts, chats: make(map[store.ChatKey]store.ChatRecord)}
}

// Run connects, replays persisted memberships and serves the terminal until
// ctx is canceled or input ends.
func (a *App) Run(ctx context.Context) error {
	model, err := a.opts.Store.LoadModel()
	if err == nil {
		a.model = model
	} else {
		a.model = store.Model{MemberName: a.opts.MemberName, ServerAddress: a.opts.ServerURL}
	}
	if a.model.MemberName == "" {
		a.model.MemberName = a.opts.MemberName
	}
	a.model.ServerAddress = a.opts.ServerURL

	conn, err := Dial(ctx, a.opts.ServerURL)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", a.opts.ServerURL, err)
	}
	a.conn = conn
	defer func() { _ = conn.Close() }()

	controller := NewController(a.opts.Store, conn.Send, a.onRestored)
	controller.Run()

	// The reader and scanner goroutines only pump their channels; all App
	// state is touched from the select loop below, one event at a time.
	incoming := make(chan wire.Message)
	readErr := make(chan error, 1)
	go func() {
		for {
			msg, err := conn.Read()
			if err != nil {
				readErr <- err
				return
			}
			incoming <- msg
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(a.opts.In)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return fmt.Errorf("connection lost: %w", err)
		case msg := <-incoming:
			if controller.Restoring() && controller.HandleResponse(msg) {
				continue
			}
			a.handle(msg)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			a.input(strings.TrimSpace(line))
		}
	}
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.opts.Out, format+"\n", args...)
}

func (a *App) input(line string) {
	if line == "" {
		return
	}
	if !strings.HasPrefix(line, "/") {
		a.say(line)
		return
	}
	fields := strings.Fields(line)
	switch fields[0] {
	case "/new":
		name := a.model.MemberName
		if len(fields) > 1 {
			name = fields[1]
		}
		a.pending = PendingNewChat
		a.request(wire.NewRequest{MemberName: name})
	case "/public":
		if len(fields) < 3 {
			a.printf("usage: /public MEMBER_NAME CHAT_NAME")
			return
		}
		a.pending = PendingNewChat
		a.request(wire.NewPublicRequest{MemberName: fields[1], ChatName: strings.Join(fields[2:], " ")})
	case "/join":
		if len(fields) < 2 {
			a.printf("usage: /join CHAT_ID [MEMBER_NAME]")
			return
		}
		name := a.model.MemberName
		if len(fields) > 2 {
			name = fields[2]
		}
		a.pending = PendingJoinExisting
		a.request(wire.JoinRequest{Chatid: fields[1], MemberName: name})
	case "/leave":
		record, ok := a.currentRecord()
		if !ok || len(record.Members) == 0 {
			a.printf("not in a chat")
			return
		}
		a.request(wire.LeaveRequest{Memberid: record.Members[0].ID})
	case "/chats":
		a.request(wire.GetPublicChatsRequest{})
	case "/ping":
		a.request(wire.PingRequest{Message: strings.TrimPrefix(line, "/ping ")})
	default:
		a.printf("unknown command %s", fields[0])
	}
}

func (a *App) say(text string) {
	record, ok := a.currentRecord()
	if !ok || len(record.Members) == 0 {
		a.printf("not in a chat, /new or /join first")
		return
	}
	a.request(wire.SendRequest{Memberid: record.Members[0].ID, Message: text})
}

func (a *App) request(msg wire.Message) {
	if err := a.conn.Send(msg); err != nil {
		a.printf("send error: %v", err)
		a.pending = PendingNone
	}
}

func (a *App) currentRecord() (store.ChatRecord, bool) {
	if a.current == nil {
		return store.ChatRecord{}, false
	}
	record, ok := a.chats[*a.current]
	return record, ok
}

func (a *App) handle(msg wire.Message) {
	switch rsp := msg.(type) {
	case wire.JoinResponse:
		if rsp.Memberid == nil {
			a.printf("* %s joined %s", rsp.MemberName, rsp.Chatid)
			return
		}
		a.completeJoin(rsp)
	case wire.ReceiveResponse:
		a.printf("[%s] %s: %s", rsp.Chatid, rsp.MemberName, rsp.Message)
	case wire.LeaveResponse:
		a.handleLeave(rsp)
	case wire.PongResponse:
		a.printf("pong: %s", rsp.Message)
	case wire.GetPublicChatsResponse:
		if len(rsp.Chats) == 0 {
			a.printf("no public chats")
			return
		}
		for _, chat := range rsp.Chats {
			a.printf("%s (by %s, %d members)", chat.ChatName, chat.MemberName, chat.MemberCount)
		}
	case wire.ErrorResponse:
		a.printf("error (%s): %s", rsp.Kind.Tag, rsp.Message)
		a.pending = PendingNone
	default:
		log.Debug().Str("message", msg.MessageName()).Msg("unhandled message")
	}
}

// completeJoin matches a member-addressed join response to the pending
// create/join intent and persists the new membership.
func (a *App) completeJoin(rsp wire.JoinResponse) {
	key := store.ChatKey{ServerAddress: a.model.ServerAddress, Chatid: rsp.Chatid}
	record := store.ChatRecord{
		ChatName:      rsp.Chatid,
		Members:       []store.MemberPair{{ID: *rsp.Memberid, Name: rsp.MemberName}},
		ServerAddress: a.model.ServerAddress,
		Chatid:        rsp.Chatid,
		IsPublic:      rsp.IsPublic,
	}
	a.rememberChat(key, record)
	a.current = &key
	a.model.CurrentChat = &key
	a.saveModel()
	switch {
	case a.pending == PendingNewChat:
		a.printf("created %s", rsp.Chatid)
	case len(rsp.OtherMembers) == 0:
		a.printf("joined %s (alone)", rsp.Chatid)
	default:
		a.printf("joined %s with %s", rsp.Chatid, strings.Join(rsp.OtherMembers, ", "))
	}
	a.pending = PendingNone
}

func (a *App) handleLeave(rsp wire.LeaveResponse) {
	key := store.ChatKey{ServerAddress: a.model.ServerAddress, Chatid: rsp.Chatid}
	record, ok := a.chats[key]
	if ok && len(record.Members) > 0 && record.Members[0].Name == rsp.MemberName {
		// our own leave echo.
		delete(a.chats, key)
		_ = a.opts.Store.DeleteChat(key)
		a.forgetKey(key)
		if a.current != nil && *a.current == key {
			a.current = nil
			a.model.CurrentChat = nil
		}
		a.saveModel()
		a.printf("left %s", rsp.Chatid)
		return
	}
	a.printf("* %s left %s", rsp.MemberName, rsp.Chatid)
}

func (a *App) onRestored(record store.ChatRecord) {
	key := store.ChatKey{ServerAddress: record.ServerAddress, Chatid: record.Chatid}
	a.rememberChat(key, record)
	if a.current == nil {
		a.current = &key
	}
	a.saveModel()
	a.printf("restored chat %s as %s", record.Chatid, record.Members[0].Name)
}

func (a *App) rememberChat(key store.ChatKey, record store.ChatRecord) {
	a.chats[key] = record
	if err := a.opts.Store.SaveChat(key, record); err != nil {
		log.Warn().Err(err).Str("chat", key.Chatid).Msg("error saving chat record")
	}
	for _, existing := range a.model.ChatKeys {
		if existing == key {
			return
		}
	}
	a.model.ChatKeys = append(a.model.ChatKeys, key)
}

func (a *App) forgetKey(key store.ChatKey) {
	for i, existing := range a.model.ChatKeys {
		if existing == key {
			a.model.ChatKeys = append(a.model.ChatKeys[:i], a.model.ChatKeys[i+1:]...)
			return
		}
	}
}

func (a *App) saveModel() {
	a.model.Page = "chat"
	if err := a.opts.Store.SaveModel(a.model); err != nil {
		log.Warn().Err(err).Msg("error saving model")
	}
}
