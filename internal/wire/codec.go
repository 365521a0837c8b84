package wire

import (
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
)

// Encode converts a message into its wire envelope [direction, name, fields].
// Encoding is total over the catalog: every message value has exactly one
// name and field set.
func Encode(m Message) ([]byte, error) {
	return json.Marshal([3]any{m.MessageDirection(), m.MessageName(), m})
}

// decoderEntry binds one (direction, name) pair to its field decoder. The
// table is plain data so adding a message touches exactly one place.
type decoderEntry struct {
	dir    Direction
	name   string
	decode func(fields []byte) (Message, error)
}

func decodeInto[M Message](fields []byte) (Message, error) {
	var m M
	if err := json.Unmarshal(fields, &m); err != nil {
		return nil, fieldError(err)
	}
	return m, nil
}

var decoderTable = []decoderEntry{
	{DirRequest, "ping", decodeInto[PingRequest]},
	{DirRequest, "new", decodeInto[NewRequest]},
	{DirRequest, "newPublic", decodeInto[NewPublicRequest]},
	{DirRequest, "join", decodeInto[JoinRequest]},
	{DirRequest, "rejoin", decodeInto[RejoinRequest]},
	{DirRequest, "send", decodeInto[SendRequest]},
	{DirRequest, "leave", decodeInto[LeaveRequest]},
	{DirRequest, "getPublicChats", decodeInto[GetPublicChatsRequest]},
	{DirResponse, "pong", decodeInto[PongResponse]},
	{DirResponse, "join", decodeInto[JoinResponse]},
	{DirResponse, "receive", decodeInto[ReceiveResponse]},
	{DirResponse, "leave", decodeInto[LeaveResponse]},
	{DirResponse, "getPublicChats", decodeInto[GetPublicChatsResponse]},
	{DirResponse, "error", decodeInto[ErrorResponse]},
}

type decoderKey struct {
	dir  Direction
	name string
}

var decoders = func() map[decoderKey]func([]byte) (Message, error) {
	m := make(map[decoderKey]func([]byte) (Message, error), len(decoderTable))
	for _, e := range decoderTable {
		m[decoderKey{e.dir, e.name}] = e.decode
	}
	return m
}()

// Decode parses a wire envelope into a message. All failures are explicit
// error values: a malformed envelope or field yields *DecodeError, an
// unrecognized (direction, name) pair yields *UnknownMessageError.
func Decode(data []byte) (Message, error) {
	if !gjson.ValidBytes(data) {
		return nil, &DecodeError{Reason: errors.New("invalid JSON")}
	}
	env := gjson.ParseBytes(data)
	if !env.IsArray() {
		return nil, &DecodeError{Reason: errors.New("envelope is not an array")}
	}
	parts := env.Array()
	if len(parts) != 3 {
		return nil, &DecodeError{Reason: errors.New("envelope must have 3 elements")}
	}
	dir := Direction(parts[0].String())
	if dir != DirRequest && dir != DirResponse {
		return nil, &DecodeError{Field: "direction", Reason: errors.New("must be \"req\" or \"rsp\"")}
	}
	name := parts[1].String()
	if name == "" {
		return nil, &DecodeError{Field: "name", Reason: errors.New("empty message name")}
	}
	if !parts[2].IsObject() {
		return nil, &DecodeError{Field: "fields", Reason: errors.New("fields must be an object")}
	}
	decode, ok := decoders[decoderKey{dir, name}]
	if !ok {
		return nil, &UnknownMessageError{Direction: dir, Name: name}
	}
	return decode([]byte(parts[2].Raw))
}

func fieldError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &DecodeError{Field: typeErr.Field, Reason: err}
	}
	return &DecodeError{Reason: err}
}
