package main

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/chatsocket/internal/chatsocket"
	"github.com/omochice/chatsocket/internal/transport/transporttest"
	"github.com/omochice/chatsocket/pkg/protocol"
)

func newTestApp(t *testing.T) (*app, *transporttest.Dialer) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	dialer := &transporttest.Dialer{}
	a := &app{
		ctx:       context.Background(),
		manager:   chatsocket.New(dialer.Dial, chatsocket.WithLogger(logger)),
		commands:  newCommands(),
		serverURL: "ws://localhost:8080/ws",
	}
	return a, dialer
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"send u2 hello", []string{"send", "u2", "hello"}},
		{`send u2 "hello there"`, []string{"send", "u2", "hello there"}},
		{`send u2 'it''s'`, []string{"send", "u2", "its"}},
		{`send u2 a\ b`, []string{"send", "u2", "a b"}},
		{`list ""`, []string{"list", ""}},
		{"  \t ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, splitArgs(tt.input))
		})
	}
}

func TestExecute_EmitsActions(t *testing.T) {
	tests := []struct {
		input string
		event protocol.Event
		data  protocol.Payload
	}{
		{`send u2 "hi there"`, protocol.EventSendMessage, protocol.SendMessagePayload("u2", protocol.Message{Text: "hi there"})},
		{"send u2 hi there", protocol.EventSendMessage, protocol.SendMessagePayload("u2", protocol.Message{Text: "hi there"})},
		{"link u2 https://example.com look", protocol.EventSendMessage, protocol.SendMessagePayload("u2", protocol.Message{Text: "look", Link: "https://example.com"})},
		{"media u2 cat.png", protocol.EventSendMessage, protocol.SendMessagePayload("u2", protocol.Message{Media: "cat.png"})},
		{"join u2", protocol.EventJoinChat, protocol.ReceiverPayload("u2")},
		{"leave u2", protocol.EventLeaveChat, protocol.ReceiverPayload("u2")},
		{"typing u2 on", protocol.EventTypingAlert, protocol.TypingPayload("u2", true)},
		{"TYPING u2 OFF", protocol.EventTypingAlert, protocol.TypingPayload("u2", false)},
		{"delete m1", protocol.EventDeleteMessage, protocol.DeleteMessagePayload("m1")},
		{"history u2", protocol.EventChatMessage, protocol.HistoryQueryPayload("u2", "")},
		{"history u2 lunch plans", protocol.EventChatMessage, protocol.HistoryQueryPayload("u2", "lunch plans")},
		{"list", protocol.EventGetChatList, protocol.ChatListQueryPayload("")},
		{"list bo", protocol.EventGetChatList, protocol.ChatListQueryPayload("bo")},
		{"online u2", protocol.EventCheckOnlineStatus, protocol.ReceiverPayload("u2")},
		{"bye", protocol.EventDisconnectUser, nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			a, dialer := newTestApp(t)
			a.manager.Configure(a.ctx, a.serverURL, "u1")

			assert.Empty(t, a.commands.execute(a, tt.input))

			emits := dialer.Last().Emits()
			require.Len(t, emits, 1)
			assert.Equal(t, tt.event, emits[0].Event)
			assert.Equal(t, tt.data, emits[0].Data)
		})
	}
}

func TestExecute_UsageAndUnknown(t *testing.T) {
	a, dialer := newTestApp(t)
	a.manager.Configure(a.ctx, a.serverURL, "u1")

	assert.Equal(t, "usage: send <user> <text>", a.commands.execute(a, "send u2"))
	assert.Equal(t, "usage: typing <user> on|off", a.commands.execute(a, "typing u2 maybe"))
	assert.Contains(t, a.commands.execute(a, "shout hi"), "unknown command")
	assert.Empty(t, a.commands.execute(a, ""))
	assert.Empty(t, dialer.Last().Emits())
}

func TestExecute_LoginLogoutStatus(t *testing.T) {
	a, dialer := newTestApp(t)

	assert.Contains(t, a.commands.execute(a, "status"), "idle")

	a.commands.execute(a, "login alice")
	require.NotNil(t, dialer.Last())
	assert.Equal(t, "alice", dialer.Last().Options.Header.Get(protocol.HeaderToken))
	assert.Contains(t, a.commands.execute(a, "status"), `connected as "alice"`)

	assert.Equal(t, "disconnected", a.commands.execute(a, "logout"))
	assert.Equal(t, chatsocket.StateClosed, a.manager.State())
}

func TestExecute_Messages(t *testing.T) {
	a, dialer := newTestApp(t)
	a.manager.Configure(a.ctx, a.serverURL, "u1")

	assert.Equal(t, "no messages", a.commands.execute(a, "messages"))

	dialer.Last().Deliver(protocol.EventReceiveMessage, protocol.Payload{
		"messageId": "m1",
		"senderId":  "u2",
		"message":   map[string]any{"text": "hi", "link": "https://example.com"},
	})
	assert.Equal(t, "m1  u2: hi <https://example.com>", a.commands.execute(a, "messages"))
}

func TestExecute_HelpAndQuit(t *testing.T) {
	a, _ := newTestApp(t)

	help := a.commands.execute(a, "help")
	for _, name := range []string{"send", "typing", "history", "quit"} {
		assert.Contains(t, help, name)
	}

	a.commands.execute(a, "quit")
	assert.True(t, a.quit)
}

func TestFormatEvent(t *testing.T) {
	got := formatEvent("typingAlert", protocol.Payload{"senderId": "u2", "type": "user_typing"})
	assert.Equal(t, `<typingAlert> {"senderId":"u2","type":"user_typing"}`, got)
}

func TestPrintEvents_CoversEverySlot(t *testing.T) {
	a, dialer := newTestApp(t)
	var out bytes.Buffer
	printEvents(a.manager, &out)
	a.manager.Configure(a.ctx, a.serverURL, "u1")

	for _, event := range protocol.InboundEvents() {
		dialer.Last().Deliver(event, protocol.Payload{"userId": "u2"})
	}

	for _, slot := range chatsocket.Slots() {
		assert.Contains(t, out.String(), "<"+slot.String()+">")
	}
}
