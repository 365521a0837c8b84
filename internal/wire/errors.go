package wire

import "fmt"

// Error kind tags as they appear on the wire. The names are part of the
// protocol and must not be renamed.
const (
	KindJsonDecodeError            = "JsonDecodeError"
	KindPublicChatNameExistsError  = "PublicChatNameExistsError"
	KindUnknownChatidError         = "UnknownChatidError"
	KindMemberExistsError          = "MemberExistsError"
	KindUnknownMemberidError       = "UnknownMemberidError"
	KindTooManyGamesError          = "TooManyGamesError"
	KindTooManyPublicGamesError    = "TooManyPublicGamesError"
	KindInvalidPublicGameNameError = "InvalidPublicGameNameError"
	KindUnknownRequestError        = "UnknownRequestError"
)

// ErrorKind is the tagged payload of an ErrorResponse. Tag selects the kind,
// the remaining fields carry kind-specific details and are omitted when empty.
type ErrorKind struct {
	Tag string `json:"tag"`

	MessageText   string `json:"messageText,omitempty"`
	DecodingError string `json:"decodingError,omitempty"`
	ChatName      string `json:"chatName,omitempty"`
	Chatid        string `json:"chatid,omitempty"`
	MemberName    string `json:"memberName,omitempty"`
	Memberid      string `json:"memberid,omitempty"`
	Request       string `json:"request,omitempty"`
}

// JsonDecodeKind reports a message that could not be decoded.
func JsonDecodeKind(messageText string, decodingError string) ErrorKind {
	return ErrorKind{Tag: KindJsonDecodeError, MessageText: messageText, DecodingError: decodingError}
}

// PublicChatNameExistsKind reports a duplicate public chat name.
func PublicChatNameExistsKind(chatName string) ErrorKind {
	return ErrorKind{Tag: KindPublicChatNameExistsError, ChatName: chatName}
}

// UnknownChatidKind reports a reference to a chat that does not exist.
func UnknownChatidKind(chatid string) ErrorKind {
	return ErrorKind{Tag: KindUnknownChatidError, Chatid: chatid}
}

// MemberExistsKind reports a member name collision inside a chat.
func MemberExistsKind(chatid, memberName string) ErrorKind {
	return ErrorKind{Tag: KindMemberExistsError, Chatid: chatid, MemberName: memberName}
}

// UnknownMemberidKind reports a reference to a member that does not exist.
func UnknownMemberidKind(memberid string) ErrorKind {
	return ErrorKind{Tag: KindUnknownMemberidError, Memberid: memberid}
}

// TooManyGamesKind reports the chat limit being reached.
func TooManyGamesKind() ErrorKind {
	return ErrorKind{Tag: KindTooManyGamesError}
}

// TooManyPublicGamesKind reports the public chat limit being reached.
func TooManyPublicGamesKind() ErrorKind {
	return ErrorKind{Tag: KindTooManyPublicGamesError}
}

// InvalidPublicGameNameKind reports an empty public chat name.
func InvalidPublicGameNameKind() ErrorKind {
	return ErrorKind{Tag: KindInvalidPublicGameNameError}
}

// UnknownRequestKind reports a request the server does not understand.
func UnknownRequestKind(request string) ErrorKind {
	return ErrorKind{Tag: KindUnknownRequestError, Request: request}
}

// UnknownMessageError is returned by Decode when the (direction, name) pair
// matches no catalog entry.
type UnknownMessageError struct {
	Direction Direction
	Name      string
}

func (e *UnknownMessageError) Error() string {
	if e.Direction == DirResponse {
		return fmt.Sprintf("unknown response: %s", e.Name)
	}
	return fmt.Sprintf("unknown request: %s", e.Name)
}

// DecodeError is returned by Decode when the envelope itself or one of the
// message fields cannot be decoded.
type DecodeError struct {
	Field  string
	Reason error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("decoding field %q: %v", e.Field, e.Reason)
	}
	return fmt.Sprintf("decoding message: %v", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Reason }
