package registry

import "errors"

// Errors exposed across the registry boundary. Operations return these as
// values, never panic; the dispatcher translates them into wire error
// responses.
var (
	// ErrUnknownChat is returned when a chat id matches no live chat.
	ErrUnknownChat = errors.New("unknown chat id")
	// ErrUnknownMember is returned when a member id matches no live member.
	ErrUnknownMember = errors.New("unknown member id")
	// ErrMemberExists is returned on a display name collision inside a chat.
	ErrMemberExists = errors.New("member name already used in chat")
	// ErrTooManyChats is returned when the chat limit is reached.
	ErrTooManyChats = errors.New("too many chats")
	// ErrTooManyPublicChats is returned when the public chat limit is reached.
	ErrTooManyPublicChats = errors.New("too many public chats")
	// ErrInvalidChatName is returned for an empty public chat name.
	ErrInvalidChatName = errors.New("invalid public chat name")
	// ErrChatNameExists is returned for a duplicate public chat name.
	ErrChatNameExists = errors.New("public chat name already exists")
	// ErrChatExists is returned when a requested chat id is already live.
	ErrChatExists = errors.New("chat id already exists")
)
