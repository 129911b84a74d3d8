// Package protocol defines the wire contract shared by the chat adapter, its
// transports and the relay server: event names, payload shapes and frame codecs.
package protocol

// Event is the literal name of a socket event on the wire.
type Event string

// Outbound events, emitted by the client.
const (
	EventSendMessage       Event = "send_message"
	EventJoinChat          Event = "joinchat"
	EventLeaveChat         Event = "leave_chat"
	EventTypingAlert       Event = "typing_alert"
	EventDeleteMessage     Event = "delete_message"
	EventChatMessage       Event = "chat_message"
	EventGetChatList       Event = "get_chatlist"
	EventCheckOnlineStatus Event = "check_online_status"
	EventDisconnectUser    Event = "disconnect_user"
)

// Inbound events, emitted by the server. EventTypingAlert is used in both
// directions.
const (
	EventReceiveMessage        Event = "receive_message"
	EventHandshakeSuccess      Event = "handshake_success"
	EventRetrieveMessage       Event = "retrieve_message"
	EventMessageSent           Event = "message_sent"
	EventChatList              Event = "chatlist"
	EventMessageUpdate         Event = "message_update"
	EventMessageUpdateReceiver Event = "message_update_receiver"
	EventLeave                 Event = "leave"
	EventOnlineStatus          Event = "online_status"
	EventChatStatus            Event = "chat_status"
	EventErrorNotify           Event = "error_notify"
)

// InboundEvents returns the fixed set of events a client subscribes to.
func InboundEvents() []Event {
	return []Event{
		EventReceiveMessage,
		EventHandshakeSuccess,
		EventRetrieveMessage,
		EventMessageSent,
		EventChatList,
		EventMessageUpdate,
		EventMessageUpdateReceiver,
		EventTypingAlert,
		EventLeave,
		EventOnlineStatus,
		EventChatStatus,
		EventErrorNotify,
	}
}

// String returns the wire name.
func (e Event) String() string {
	return string(e)
}

// Handshake headers carrying the user identity. A client sets both to the
// same value; a server reads token first and falls back to the bearer token.
const (
	HeaderToken         = "token"
	HeaderAuthorization = "Authorization"
)

// TypingState is the named typing indicator state carried in the "type" field
// of a typing_alert payload.
type TypingState string

const (
	TypingStarted TypingState = "user_typing"
	TypingStopped TypingState = "typing_stopped"
)

// TypingStateOf maps a boolean typing flag to its wire state.
func TypingStateOf(isTyping bool) TypingState {
	if isTyping {
		return TypingStarted
	}
	return TypingStopped
}
