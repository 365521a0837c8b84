// Package wire implements the textual message envelope exchanged between
// clients and the relay. Every logical message is one JSON array of three
// elements: direction tag ("req" or "rsp"), message name, and a flat object
// of named fields.
package wire

// Direction tags a message as client request or server response.
type Direction string

const (
	// DirRequest marks messages sent from client to server.
	DirRequest Direction = "req"
	// DirResponse marks messages sent from server to client.
	DirResponse Direction = "rsp"
)

// RejoinMethod reports how a rejoin request was satisfied.
type RejoinMethod string

const (
	// RejoinNeverLeft means the member id was still registered, nothing changed.
	RejoinNeverLeft RejoinMethod = "never-left"
	// RejoinExisting means the chat existed and the member was joined fresh.
	RejoinExisting RejoinMethod = "existing"
	// RejoinNew means the chat was recreated with its previous id.
	RejoinNew RejoinMethod = "new"
)

// Message is a single decoded protocol message.
type Message interface {
	MessageName() string
	MessageDirection() Direction
}

// PingRequest asks the server to echo Message back in a PongResponse.
type PingRequest struct {
	Message string `json:"message"`
}

// PongResponse is the reply to a PingRequest.
type PongResponse struct {
	Message string `json:"message"`
}

// NewRequest creates a private chat with the sender as sole member.
type NewRequest struct {
	MemberName string `json:"memberName"`
}

// NewPublicRequest creates a chat advertised in the public directory.
type NewPublicRequest struct {
	MemberName string `json:"memberName"`
	ChatName   string `json:"chatName"`
}

// JoinRequest joins an existing chat by id.
type JoinRequest struct {
	Chatid     string `json:"chatid"`
	MemberName string `json:"memberName"`
}

// RejoinRequest resumes a previous membership. The server first tries the
// member id, then a fresh join by name, and finally recreates the chat
// keeping its old id.
type RejoinRequest struct {
	Memberid   string `json:"memberid"`
	Chatid     string `json:"chatid"`
	MemberName string `json:"memberName"`
	IsPublic   bool   `json:"isPublic"`
}

// JoinResponse is broadcast to a chat when a member joins. Memberid is set
// only on the copy delivered to the joining connection, nil everywhere else.
type JoinResponse struct {
	Chatid       string       `json:"chatid"`
	Memberid     *string      `json:"memberid"`
	MemberName   string       `json:"memberName"`
	OtherMembers []string     `json:"otherMembers"`
	IsPublic     bool         `json:"isPublic"`
	RejoinMethod RejoinMethod `json:"rejoinMethod,omitempty"`
}

// SendRequest relays a text message to the sender's chat.
type SendRequest struct {
	Memberid string `json:"memberid"`
	Message  string `json:"message"`
}

// ReceiveResponse carries one relayed chat message.
type ReceiveResponse struct {
	Chatid     string `json:"chatid"`
	MemberName string `json:"memberName"`
	Message    string `json:"message"`
}

// LeaveRequest removes the member from its chat.
type LeaveRequest struct {
	Memberid string `json:"memberid"`
}

// LeaveResponse is broadcast to a chat when a member leaves.
type LeaveResponse struct {
	Chatid     string `json:"chatid"`
	MemberName string `json:"memberName"`
}

// GetPublicChatsRequest asks for the public chat directory.
type GetPublicChatsRequest struct{}

// PublicChat is one public directory entry.
type PublicChat struct {
	MemberName  string `json:"memberName"`
	ChatName    string `json:"chatName"`
	MemberCount int    `json:"memberCount"`
}

// GetPublicChatsResponse lists the public chat directory.
type GetPublicChatsResponse struct {
	Chats []PublicChat `json:"chats"`
}

// ErrorResponse reports a failed request.
type ErrorResponse struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (PingRequest) MessageName() string            { return "ping" }
func (PongResponse) MessageName() string           { return "pong" }
func (NewRequest) MessageName() string             { return "new" }
func (NewPublicRequest) MessageName() string       { return "newPublic" }
func (JoinRequest) MessageName() string            { return "join" }
func (RejoinRequest) MessageName() string          { return "rejoin" }
func (JoinResponse) MessageName() string           { return "join" }
func (SendRequest) MessageName() string            { return "send" }
func (ReceiveResponse) MessageName() string        { return "receive" }
func (LeaveRequest) MessageName() string           { return "leave" }
func (LeaveResponse) MessageName() string          { return "leave" }
func (GetPublicChatsRequest) MessageName() string  { return "getPublicChats" }
func (GetPublicChatsResponse) MessageName() string { return "getPublicChats" }
func (ErrorResponse) MessageName() string          { return "error" }

func (PingRequest) MessageDirection() Direction            { return DirRequest }
func (PongResponse) MessageDirection() Direction           { return DirResponse }
func (NewRequest) MessageDirection() Direction             { return DirRequest }
func (NewPublicRequest) MessageDirection() Direction       { return DirRequest }
func (JoinRequest) MessageDirection() Direction            { return DirRequest }
func (RejoinRequest) MessageDirection() Direction          { return DirRequest }
func (JoinResponse) MessageDirection() Direction           { return DirResponse }
func (SendRequest) MessageDirection() Direction            { return DirRequest }
func (ReceiveResponse) MessageDirection() Direction        { return DirResponse }
func (LeaveRequest) MessageDirection() Direction           { return DirRequest }
func (LeaveResponse) MessageDirection() Direction          { return DirResponse }
func (GetPublicChatsRequest) MessageDirection() Direction  { return DirRequest }
func (GetPublicChatsResponse) MessageDirection() Direction { return DirResponse }
func (ErrorResponse) MessageDirection() Direction          { return DirResponse }
