// Package store defines the persistence boundary for client state. The relay
// specifies only the record shapes; the mechanism behind the interface is up
// to the implementation.
package store

import (
	"encoding/json"
	"errors"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ChatKey identifies a chat independent of which connection reaches it. A
// client may hold memberships on different servers at the same time, so the
// server address is part of the key.
type ChatKey struct {
	ServerAddress string `json:"serverAddress"`
	Chatid        string `json:"chatid"`
}

// MemberPair is one persisted (id, name) membership.
type MemberPair struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChatRecord is the persisted state of one known chat. Members are stored
// most-recently-joined first, matching the server's internal order.
type ChatRecord struct {
	ChatName      string          `json:"chatName"`
	Members       []MemberPair    `json:"members"`
	ServerAddress string          `json:"serverAddress"`
	Chatid        string          `json:"chatid"`
	IsPublic      bool            `json:"isPublic"`
	Settings      json.RawMessage `json:"settings,omitempty"` // opaque transcript settings
}

// Model is the persisted top-level client state.
type Model struct {
	Page          string    `json:"page"`
	ChatKeys      []ChatKey `json:"chatKeys"`
	CurrentChat   *ChatKey  `json:"currentChat,omitempty"`
	MemberName    string    `json:"memberName"`
	ServerAddress string    `json:"serverAddress"`
}

// Store is a backend holding the client model and its per-chat records.
type Store interface {
	LoadModel() (Model, error)
	SaveModel(Model) error
	LoadChat(ChatKey) (ChatRecord, error)
	SaveChat(ChatKey, ChatRecord) error
	DeleteChat(ChatKey) error
}
