package chatsocket

import (
	"sync"

	"github.com/omochice/chatsocket/pkg/protocol"
)

// Callback receives the payload of an inbound event, unchanged.
type Callback func(protocol.Payload)

// Slot names a place in the callback registry.
type Slot int

const (
	SlotMessageReceived Slot = iota
	SlotHandshakeSuccess
	SlotRetrieveMessages
	SlotMessageSent
	SlotChatList
	SlotMessageUpdate
	SlotMessageUpdateReceiver
	SlotTypingAlert
	SlotLeave
	SlotDisconnect
	SlotCheckOnlineStatus
	SlotChatStatus
	SlotErrorNotify

	slotCount
)

var slotNames = [slotCount]string{
	SlotMessageReceived:       "messageReceived",
	SlotHandshakeSuccess:      "handshakeSuccess",
	SlotRetrieveMessages:      "retrieveMessages",
	SlotMessageSent:           "messageSent",
	SlotChatList:              "chatList",
	SlotMessageUpdate:         "messageUpdate",
	SlotMessageUpdateReceiver: "messageUpdateReceiver",
	SlotTypingAlert:           "typingAlert",
	SlotLeave:                 "onLeave",
	SlotDisconnect:            "onDisconnect",
	SlotCheckOnlineStatus:     "onCheckOnlineStatus",
	SlotChatStatus:            "chatStatus",
	SlotErrorNotify:           "errorNotify",
}

// Slots returns every callback slot in declaration order.
func Slots() []Slot {
	out := make([]Slot, slotCount)
	for i := range out {
		out[i] = Slot(i)
	}
	return out
}

// String returns the slot name.
func (s Slot) String() string {
	if s < 0 || s >= slotCount {
		return "unknown"
	}
	return slotNames[s]
}

// routes maps each inbound event to the slots it is dispatched to.
// A counterpart leaving reaches both onLeave and onDisconnect.
var routes = map[protocol.Event][]Slot{
	protocol.EventReceiveMessage:        {SlotMessageReceived},
	protocol.EventHandshakeSuccess:      {SlotHandshakeSuccess},
	protocol.EventRetrieveMessage:       {SlotRetrieveMessages},
	protocol.EventMessageSent:           {SlotMessageSent},
	protocol.EventChatList:              {SlotChatList},
	protocol.EventMessageUpdate:         {SlotMessageUpdate},
	protocol.EventMessageUpdateReceiver: {SlotMessageUpdateReceiver},
	protocol.EventTypingAlert:           {SlotTypingAlert},
	protocol.EventLeave:                 {SlotLeave, SlotDisconnect},
	protocol.EventOnlineStatus:          {SlotCheckOnlineStatus},
	protocol.EventChatStatus:            {SlotChatStatus},
	protocol.EventErrorNotify:           {SlotErrorNotify},
}

// registry holds at most one callback per slot.
type registry struct {
	mu    sync.RWMutex
	slots [slotCount]Callback
}

func (r *registry) set(s Slot, cb Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[s] = cb
}

func (r *registry) get(s Slot) Callback {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.slots[s]
}

// SetCallback replaces the callback in slot. A nil cb clears it.
func (m *Manager) SetCallback(slot Slot, cb Callback) {
	if slot < 0 || slot >= slotCount {
		return
	}
	m.callbacks.set(slot, cb)
}

// OnMessageReceived sets the callback for receive_message.
func (m *Manager) OnMessageReceived(cb Callback) { m.SetCallback(SlotMessageReceived, cb) }

// OnHandshakeSuccess sets the callback for handshake_success.
func (m *Manager) OnHandshakeSuccess(cb Callback) { m.SetCallback(SlotHandshakeSuccess, cb) }

// OnRetrieveMessages sets the callback for retrieve_message.
func (m *Manager) OnRetrieveMessages(cb Callback) { m.SetCallback(SlotRetrieveMessages, cb) }

// OnMessageSent sets the callback for message_sent.
func (m *Manager) OnMessageSent(cb Callback) { m.SetCallback(SlotMessageSent, cb) }

// OnChatList sets the callback for chatlist.
func (m *Manager) OnChatList(cb Callback) { m.SetCallback(SlotChatList, cb) }

// OnMessageUpdate sets the callback for message_update.
func (m *Manager) OnMessageUpdate(cb Callback) { m.SetCallback(SlotMessageUpdate, cb) }

// OnMessageUpdateReceiver sets the callback for message_update_receiver.
func (m *Manager) OnMessageUpdateReceiver(cb Callback) { m.SetCallback(SlotMessageUpdateReceiver, cb) }

// OnTypingAlert sets the callback for typing_alert.
func (m *Manager) OnTypingAlert(cb Callback) { m.SetCallback(SlotTypingAlert, cb) }

// OnLeave sets the callback for leave.
func (m *Manager) OnLeave(cb Callback) { m.SetCallback(SlotLeave, cb) }

// OnDisconnect sets the second callback for leave.
func (m *Manager) OnDisconnect(cb Callback) { m.SetCallback(SlotDisconnect, cb) }

// OnCheckOnlineStatus sets the callback for online_status.
func (m *Manager) OnCheckOnlineStatus(cb Callback) { m.SetCallback(SlotCheckOnlineStatus, cb) }

// OnChatStatus sets the callback for chat_status.
func (m *Manager) OnChatStatus(cb Callback) { m.SetCallback(SlotChatStatus, cb) }

// OnErrorNotify sets the callback for error_notify.
func (m *Manager) OnErrorNotify(cb Callback) { m.SetCallback(SlotErrorNotify, cb) }
