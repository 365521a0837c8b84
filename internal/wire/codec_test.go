package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeEnvelopeShape(t *testing.T) {
	data, err := Encode(JoinRequest{Chatid: "c1", MemberName: "Bill"})
	require.NoError(t, err)
	require.JSONEq(t, `["req","join",{"chatid":"c1","memberName":"Bill"}]`, string(data))
}

func TestRoundTripAllVariants(t *testing.T) {
	memberID := "m7"
	messages := []Message{
		PingRequest{Message: "hello"},
		PongResponse{Message: "hello"},
		NewRequest{MemberName: "Bill"},
		NewPublicRequest{MemberName: "Bill", ChatName: "lobby"},
		JoinRequest{Chatid: "c1", MemberName: "Carol"},
		RejoinRequest{Memberid: "m1", Chatid: "c1", MemberName: "Bill", IsPublic: true},
		JoinResponse{Chatid: "c1", Memberid: &memberID, MemberName: "Carol", OtherMembers: []string{"Bill"}, IsPublic: false, RejoinMethod: RejoinExisting},
		JoinResponse{Chatid: "c1", Memberid: nil, MemberName: "Carol", OtherMembers: []string{}},
		SendRequest{Memberid: "m1", Message: "hi"},
		ReceiveResponse{Chatid: "c1", MemberName: "Bill", Message: "hi"},
		LeaveRequest{Memberid: "m1"},
		LeaveResponse{Chatid: "c1", MemberName: "Bill"},
		GetPublicChatsRequest{},
		GetPublicChatsResponse{Chats: []PublicChat{{MemberName: "Bill", ChatName: "lobby", MemberCount: 2}}},
		ErrorResponse{Kind: MemberExistsKind("c1", "Bill"), Message: "member name already used in chat"},
	}
	for _, msg := range messages {
		data, err := Encode(msg)
		require.NoError(t, err, "encoding %s", msg.MessageName())
		decoded, err := Decode(data)
		require.NoError(t, err, "decoding %s", msg.MessageName())
		require.Equal(t, msg, decoded)
	}
}

func TestDecodeUnknownName(t *testing.T) {
	_, err := Decode([]byte(`["req","frobnicate",{}]`))
	var unknown *UnknownMessageError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "frobnicate", unknown.Name)
	require.Equal(t, "unknown request: frobnicate", unknown.Error())

	_, err = Decode([]byte(`["rsp","frobnicate",{}]`))
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "unknown response: frobnicate", unknown.Error())
}

func TestDecodeBadEnvelope(t *testing.T) {
	cases := []string{
		`not json`,
		`{"a":1}`,
		`["req","join"]`,
		`["zzz","join",{}]`,
		`["req","",{}]`,
		`["req","join",42]`,
	}
	for _, in := range cases {
		_, err := Decode([]byte(in))
		var decodeErr *DecodeError
		require.ErrorAs(t, err, &decodeErr, "input %q", in)
	}
}

func TestDecodeBadFieldNamesField(t *testing.T) {
	_, err := Decode([]byte(`["req","join",{"chatid":123,"memberName":"Bill"}]`))
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	require.Equal(t, "chatid", decodeErr.Field)
	require.Contains(t, decodeErr.Error(), "chatid")
}

func TestDecodeDirectionMatters(t *testing.T) {
	// "send" exists only as a request.
	_, err := Decode([]byte(`["rsp","send",{"memberid":"m1","message":"hi"}]`))
	var unknown *UnknownMessageError
	require.ErrorAs(t, err, &unknown)
}
