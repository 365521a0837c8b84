package registry

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateChatPrivate(t *testing.T) {
	reg := New(Config{})
	chatID, memberID, err := reg.CreateChat("Bill", false, "", "")
	require.NoError(t, err)
	require.NotEmpty(t, chatID)
	require.NotEmpty(t, memberID)
	require.Equal(t, 1, reg.NumChats())
	require.Equal(t, 0, reg.NumPublicChats())
	require.Equal(t, 1, reg.NumMembers())

	member, ok := reg.Member(memberID)
	require.True(t, ok)
	require.Equal(t, "Bill", member.Name)
	require.Equal(t, chatID, member.ChatID)
}

func TestCreateChatPublic(t *testing.T) {
	reg := New(Config{})
	chatID, _, err := reg.CreateChat("Bill", true, "lobby", "")
	require.NoError(t, err)

	chats := reg.PublicChats()
	require.Len(t, chats, 1)
	require.Equal(t, "lobby", chats[0].ChatName)
	require.Equal(t, "Bill", chats[0].MemberName)
	require.Equal(t, 1, chats[0].MemberCount)

	chat, ok := reg.Chat(chatID)
	require.True(t, ok)
	require.True(t, chat.Public)
}

func TestCreateChatPublicEmptyName(t *testing.T) {
	reg := New(Config{})
	_, _, err := reg.CreateChat("Bill", true, "", "")
	require.ErrorIs(t, err, ErrInvalidChatName)
}

func TestCreateChatPublicDuplicateName(t *testing.T) {
	reg := New(Config{})
	_, _, err := reg.CreateChat("Bill", true, "lobby", "")
	require.NoError(t, err)
	_, _, err = reg.CreateChat("Carol", true, "lobby", "")
	require.ErrorIs(t, err, ErrChatNameExists)
	// same name for a private chat is fine, names only matter publicly.
	_, _, err = reg.CreateChat("Carol", false, "lobby", "")
	require.NoError(t, err)
}

func TestPublicChatCap(t *testing.T) {
	reg := New(Config{MaxChats: 100, MaxPublicChats: 20})
	for i := 0; i < 20; i++ {
		_, _, err := reg.CreateChat("Bill", true, fmt.Sprintf("chat-%d", i), "")
		require.NoError(t, err)
	}
	_, _, err := reg.CreateChat("Bill", true, "one-too-many", "")
	require.ErrorIs(t, err, ErrTooManyPublicChats)
	// a private chat still fits under the overall cap.
	_, _, err = reg.CreateChat("Bill", false, "", "")
	require.NoError(t, err)
}

func TestChatCap(t *testing.T) {
	reg := New(Config{MaxChats: 3, MaxPublicChats: 2})
	for i := 0; i < 3; i++ {
		_, _, err := reg.CreateChat("Bill", false, "", "")
		require.NoError(t, err)
	}
	_, _, err := reg.CreateChat("Bill", false, "", "")
	require.ErrorIs(t, err, ErrTooManyChats)
	// the overall cap binds private creates; public chats have their own.
	_, _, err = reg.CreateChat("Bill", true, "lobby", "")
	require.NoError(t, err)
}

func TestJoinChat(t *testing.T) {
	reg := New(Config{})
	chatID, _, err := reg.CreateChat("Bill", false, "", "")
	require.NoError(t, err)

	memberID, others, err := reg.JoinChat(chatID, "Carol")
	require.NoError(t, err)
	require.NotEmpty(t, memberID)
	require.Equal(t, []string{"Bill"}, others)

	// most-recently-joined first.
	_, others, err = reg.JoinChat(chatID, "Dave")
	require.NoError(t, err)
	require.Equal(t, []string{"Carol", "Bill"}, others)
	require.Equal(t, []string{"Dave", "Carol", "Bill"}, reg.MemberNames(chatID))
}

func TestJoinChatNameCollision(t *testing.T) {
	reg := New(Config{})
	chatID, _, err := reg.CreateChat("Bill", false, "", "")
	require.NoError(t, err)
	_, _, err = reg.JoinChat(chatID, "Bill")
	require.ErrorIs(t, err, ErrMemberExists)
	// case-sensitive exact match only.
	_, _, err = reg.JoinChat(chatID, "bill")
	require.NoError(t, err)
}

func TestJoinUnknownChat(t *testing.T) {
	reg := New(Config{})
	_, _, err := reg.JoinChat("nonexistent", "Bill")
	require.ErrorIs(t, err, ErrUnknownChat)
}

func TestLeaveDeletesEmptyChat(t *testing.T) {
	reg := New(Config{})
	chatID, billID, err := reg.CreateChat("Bill", true, "lobby", "")
	require.NoError(t, err)
	carolID, _, err := reg.JoinChat(chatID, "Carol")
	require.NoError(t, err)

	leftChat, leftName, err := reg.Leave(billID)
	require.NoError(t, err)
	require.Equal(t, chatID, leftChat)
	require.Equal(t, "Bill", leftName)
	// chat still alive with Carol, directory entry stays.
	require.Equal(t, 1, reg.NumChats())
	require.Len(t, reg.PublicChats(), 1)
	require.Equal(t, 1, reg.PublicChats()[0].MemberCount)

	_, _, err = reg.Leave(carolID)
	require.NoError(t, err)
	require.Equal(t, 0, reg.NumChats())
	require.Empty(t, reg.PublicChats())
	_, ok := reg.Chat(chatID)
	require.False(t, ok)
}

func TestLeaveUnknownMember(t *testing.T) {
	reg := New(Config{})
	_, _, err := reg.Leave("m999")
	require.ErrorIs(t, err, ErrUnknownMember)
}

func TestSend(t *testing.T) {
	reg := New(Config{})
	chatID, memberID, err := reg.CreateChat("Bill", false, "", "")
	require.NoError(t, err)

	gotChat, gotName, gotText, err := reg.Send(memberID, "hello")
	require.NoError(t, err)
	require.Equal(t, chatID, gotChat)
	require.Equal(t, "Bill", gotName)
	require.Equal(t, "hello", gotText)
	// send does not mutate state.
	require.Equal(t, 1, reg.NumMembers())

	_, _, _, err = reg.Send("m999", "hello")
	require.ErrorIs(t, err, ErrUnknownMember)
}

func TestIDsNeverReused(t *testing.T) {
	reg := New(Config{})
	chat1, member1, err := reg.CreateChat("Bill", false, "", "")
	require.NoError(t, err)
	chat2, member2, err := reg.CreateChat("Bill", false, "", "")
	require.NoError(t, err)
	_, _, err = reg.Leave(member1)
	require.NoError(t, err)
	chat3, member3, err := reg.CreateChat("Bill", false, "", "")
	require.NoError(t, err)

	require.NotEqual(t, chat1, chat3)
	require.NotEqual(t, chat2, chat3)
	require.NotEqual(t, member1, member3)
	require.NotEqual(t, member2, member3)
}

func TestCreateChatDesiredID(t *testing.T) {
	reg := New(Config{})
	chatID, _, err := reg.CreateChat("Bill", false, "", "c42")
	require.NoError(t, err)
	require.Equal(t, "c42", chatID)

	// a desired id colliding with a live chat is refused, not clobbered.
	_, _, err = reg.CreateChat("Carol", false, "", "c42")
	require.ErrorIs(t, err, ErrChatExists)
	members := reg.MemberNames("c42")
	require.Equal(t, []string{"Bill"}, members)
}
