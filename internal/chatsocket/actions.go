package chatsocket

import (
	"github.com/sirupsen/logrus"

	"github.com/omochice/chatsocket/pkg/protocol"
)

// SendMessage emits send_message. Nothing is buffered locally: the message
// shows up in Messages only if the server echoes it back.
func (m *Manager) SendMessage(receiverID string, msg protocol.Message) {
	m.emit(protocol.EventSendMessage, protocol.SendMessagePayload(receiverID, msg))
}

// JoinConversation emits joinchat.
func (m *Manager) JoinConversation(receiverID string) {
	m.emit(protocol.EventJoinChat, protocol.ReceiverPayload(receiverID))
}

// LeaveConversation emits leave_chat.
func (m *Manager) LeaveConversation(receiverID string) {
	m.emit(protocol.EventLeaveChat, protocol.ReceiverPayload(receiverID))
}

// UpdateTypingAlert emits typing_alert with the user_typing or
// typing_stopped state.
func (m *Manager) UpdateTypingAlert(receiverID string, isTyping bool) {
	m.emit(protocol.EventTypingAlert, protocol.TypingPayload(receiverID, isTyping))
}

// DeleteMessage emits delete_message.
func (m *Manager) DeleteMessage(messageID string) {
	m.emit(protocol.EventDeleteMessage, protocol.DeleteMessagePayload(messageID))
}

// RetrieveMessages emits the history query. An empty keyword means no filter.
func (m *Manager) RetrieveMessages(receiverID, keyword string) {
	m.emit(protocol.EventChatMessage, protocol.HistoryQueryPayload(receiverID, keyword))
}

// GetConversationList emits get_chatlist. An empty keyword means no filter.
func (m *Manager) GetConversationList(keyword string) {
	m.emit(protocol.EventGetChatList, protocol.ChatListQueryPayload(keyword))
}

// CheckOnlineStatus emits check_online_status.
func (m *Manager) CheckOnlineStatus(receiverID string) {
	m.emit(protocol.EventCheckOnlineStatus, protocol.ReceiverPayload(receiverID))
}

// DisconnectUser emits disconnect_user without closing the connection.
func (m *Manager) DisconnectUser() {
	m.emit(protocol.EventDisconnectUser, nil)
}

func (m *Manager) emit(event protocol.Event, data protocol.Payload) {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		m.logger.WithField("event", event).Debug("not connected, action ignored")
		return
	}
	if err := conn.Emit(event, data); err != nil {
		m.logger.WithFields(logrus.Fields{
			"event": event,
		}).WithError(err).Warn("emit failed")
	}
}
