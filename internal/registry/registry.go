// Package registry holds the authoritative in-memory state of the relay:
// chats, members and the public directory. All operations are synchronous
// state transitions returning explicit results; the registry does no I/O and
// no locking, serialization is the caller's job.
package registry

import (
	"strconv"

	"github.com/palaverhq/palaver/internal/wire"
)

// Config contains registry limits.
type Config struct {
	// MaxChats limits the number of simultaneously live chats.
	MaxChats int
	// MaxPublicChats limits the number of simultaneously live public chats.
	MaxPublicChats int
}

// DefaultMaxChats and DefaultMaxPublicChats are applied when the
// corresponding Config value is zero.
const (
	DefaultMaxChats       = 100
	DefaultMaxPublicChats = 20
)

// Member is one participant identity inside exactly one chat.
type Member struct {
	ID     string
	Name   string
	ChatID string
}

// Chat is one live chat. memberIDs is ordered most-recently-joined first.
type Chat struct {
	ID          string
	Name        string
	Public      bool
	CreatorName string

	memberIDs []string
}

// Registry is the session/membership store. It maintains every index needed
// by the operations internally so the lockstep-update invariant cannot be
// broken from outside.
type Registry struct {
	config Config

	chats   map[string]*Chat
	members map[string]*Member

	// publicIDs keeps directory order (creation order), publicNames guards
	// name uniqueness among public chats.
	publicIDs   []string
	publicNames map[string]string

	chatSeq   uint64
	memberSeq uint64
}

// New creates an empty Registry.
func New(config Config) *Registry {
	if config.MaxChats == 0 {
		config.MaxChats = DefaultMaxChats
	}
	if config.MaxPublicChats == 0 {
		config.MaxPublicChats = DefaultMaxPublicChats
	}
	return &Registry{
		config:      config,
		chats:       make(map[string]*Chat),
		members:     make(map[string]*Member),
		publicNames: make(map[string]string),
	}
}

// Ids are monotonic and never reused within a process lifetime, even after
// the chat or member is gone.
func (r *Registry) nextChatID() string {
	r.chatSeq++
	return "c" + strconv.FormatUint(r.chatSeq, 10)
}

func (r *Registry) nextMemberID() string {
	r.memberSeq++
	return "m" + strconv.FormatUint(r.memberSeq, 10)
}

// CreateChat creates a chat with its creator as sole member. chatName is
// used only for public chats. desiredChatID is trusted input from the rejoin
// recreate path; when empty a fresh id is allocated.
func (r *Registry) CreateChat(memberName string, public bool, chatName string, desiredChatID string) (chatID, memberID string, err error) {
	if public {
		if len(r.publicIDs) >= r.config.MaxPublicChats {
			return "", "", ErrTooManyPublicChats
		}
		if chatName == "" {
			return "", "", ErrInvalidChatName
		}
		if _, ok := r.publicNames[chatName]; ok {
			return "", "", ErrChatNameExists
		}
	} else {
		if len(r.chats) >= r.config.MaxChats {
			return "", "", ErrTooManyChats
		}
		chatName = ""
	}

	chatID = desiredChatID
	if chatID == "" {
		chatID = r.nextChatID()
	} else if _, ok := r.chats[chatID]; ok {
		// a desired id must never clobber a live chat.
		return "", "", ErrChatExists
	}
	memberID = r.nextMemberID()

	chat := &Chat{
		ID:          chatID,
		Name:        chatName,
		Public:      public,
		CreatorName: memberName,
		memberIDs:   []string{memberID},
	}
	r.chats[chatID] = chat
	r.members[memberID] = &Member{ID: memberID, Name: memberName, ChatID: chatID}
	if public {
		r.publicIDs = append(r.publicIDs, chatID)
		r.publicNames[chatName] = chatID
	}
	return chatID, memberID, nil
}

// JoinChat adds a member to an existing chat. Name collision checks are
// case-sensitive exact matches. Returns the new member id and the display
// names of the other members, most-recently-joined first.
func (r *Registry) JoinChat(chatID, memberName string) (memberID string, otherMembers []string, err error) {
	chat, ok := r.chats[chatID]
	if !ok {
		return "", nil, ErrUnknownChat
	}
	for _, id := range chat.memberIDs {
		if r.members[id].Name == memberName {
			return "", nil, ErrMemberExists
		}
	}
	otherMembers = make([]string, 0, len(chat.memberIDs))
	for _, id := range chat.memberIDs {
		otherMembers = append(otherMembers, r.members[id].Name)
	}
	memberID = r.nextMemberID()
	chat.memberIDs = append([]string{memberID}, chat.memberIDs...)
	r.members[memberID] = &Member{ID: memberID, Name: memberName, ChatID: chatID}
	return memberID, otherMembers, nil
}

// Leave removes a member from its chat. Emptying the chat deletes it, and
// its directory entry if public. Returns what the leave broadcast needs.
func (r *Registry) Leave(memberID string) (chatID, memberName string, err error) {
	member, ok := r.members[memberID]
	if !ok {
		return "", "", ErrUnknownMember
	}
	chat := r.chats[member.ChatID]
	delete(r.members, memberID)
	for i, id := range chat.memberIDs {
		if id == memberID {
			chat.memberIDs = append(chat.memberIDs[:i], chat.memberIDs[i+1:]...)
			break
		}
	}
	if len(chat.memberIDs) == 0 {
		delete(r.chats, chat.ID)
		if chat.Public {
			delete(r.publicNames, chat.Name)
			for i, id := range r.publicIDs {
				if id == chat.ID {
					r.publicIDs = append(r.publicIDs[:i], r.publicIDs[i+1:]...)
					break
				}
			}
		}
	}
	return member.ChatID, member.Name, nil
}

// Send resolves a message send to its broadcast parameters. Pure lookup,
// messages are not stored.
func (r *Registry) Send(memberID, text string) (chatID, memberName, message string, err error) {
	member, ok := r.members[memberID]
	if !ok {
		return "", "", "", ErrUnknownMember
	}
	return member.ChatID, member.Name, text, nil
}

// PublicChats returns the public directory with live member counts, in
// creation order.
func (r *Registry) PublicChats() []wire.PublicChat {
	chats := make([]wire.PublicChat, 0, len(r.publicIDs))
	for _, id := range r.publicIDs {
		chat := r.chats[id]
		chats = append(chats, wire.PublicChat{
			MemberName:  chat.CreatorName,
			ChatName:    chat.Name,
			MemberCount: len(chat.memberIDs),
		})
	}
	return chats
}

// Member returns the member with the given id, or false.
func (r *Registry) Member(memberID string) (Member, bool) {
	member, ok := r.members[memberID]
	if !ok {
		return Member{}, false
	}
	return *member, true
}

// Chat returns the chat with the given id, or false.
func (r *Registry) Chat(chatID string) (Chat, bool) {
	chat, ok := r.chats[chatID]
	if !ok {
		return Chat{}, false
	}
	return *chat, true
}

// MemberNames returns the display names of a chat's members, most-recently-
// joined first.
func (r *Registry) MemberNames(chatID string) []string {
	chat, ok := r.chats[chatID]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(chat.memberIDs))
	for _, id := range chat.memberIDs {
		names = append(names, r.members[id].Name)
	}
	return names
}

// NumChats returns the number of live chats.
func (r *Registry) NumChats() int { return len(r.chats) }

// NumPublicChats returns the number of live public chats.
func (r *Registry) NumPublicChats() int { return len(r.publicIDs) }

// NumMembers returns the number of live members across all chats.
func (r *Registry) NumMembers() int { return len(r.members) }
