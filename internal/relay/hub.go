package relay

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/omochice/chatsocket/pkg/protocol"
)

// Chat status values carried by chat_status.
const (
	StatusJoined  = "joined"
	StatusLeft    = "left"
	StatusDeleted = "deleted"
)

var (
	errMissingReceiver = errors.New("receiverId is required")
	errMissingMessage  = errors.New("message is required")
	errMissingID       = errors.New("messageId is required")
	errNotOwner        = errors.New("message not found or not owned by sender")
	errUnknownEvent    = errors.New("unknown event")
)

// Hub routes events between the sessions of all connected users and keeps
// their joins and message history.
type Hub struct {
	logger logrus.FieldLogger
	now    func() time.Time
	newID  func() string

	mu       sync.RWMutex
	sessions map[string]map[*Session]struct{}
	joined   map[string]map[string]struct{}
	history  history
}

// NewHub creates an empty Hub.
func NewHub(logger logrus.FieldLogger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
		sessions: make(map[string]map[*Session]struct{}),
		joined:   make(map[string]map[string]struct{}),
	}
}

// Register adds a session and greets it with handshake_success.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[s.UserID] == nil {
		h.sessions[s.UserID] = make(map[*Session]struct{})
	}
	h.sessions[s.UserID][s] = struct{}{}

	s.queue(h.logger, protocol.Frame{
		Event: protocol.EventHandshakeSuccess,
		Data:  protocol.Payload{"userId": s.UserID},
	})
	h.logger.WithFields(logrus.Fields{
		"session": s.ID,
		"user":    s.UserID,
		"remote":  s.Conn.RemoteAddr(),
	}).Info("session registered")
}

// Unregister removes a session. When the user's last online session goes
// away, joined counterparts are told the user left.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.sessions[s.UserID]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.sessions, s.UserID)
	}

	if !s.offline && !h.onlineLocked(s.UserID) {
		h.announceLeaveLocked(s.UserID)
	}
	h.logger.WithFields(logrus.Fields{
		"session": s.ID,
		"user":    s.UserID,
	}).Info("session unregistered")
}

// ClientCount returns the number of connected sessions.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.sessions {
		n += len(set)
	}
	return n
}

// Online reports whether userID has a session that has not announced
// disconnect_user.
func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.onlineLocked(userID)
}

// CloseAll closes every session's connection.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.sessions {
		for s := range set {
			_ = s.Conn.Close()
		}
	}
}

// Handle processes one inbound frame from s.
func (h *Hub) Handle(s *Session, f protocol.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	log := h.logger.WithFields(logrus.Fields{
		"user":  s.UserID,
		"event": f.Event,
	})
	log.Debug("frame received")

	var err error
	switch f.Event {
	case protocol.EventSendMessage:
		err = h.sendMessage(s, f.Data)
	case protocol.EventJoinChat:
		err = h.join(s, f.Data)
	case protocol.EventLeaveChat:
		err = h.leave(s, f.Data)
	case protocol.EventTypingAlert:
		err = h.typing(s, f.Data)
	case protocol.EventDeleteMessage:
		err = h.deleteMessage(s, f.Data)
	case protocol.EventChatMessage:
		err = h.retrieve(s, f.Data)
	case protocol.EventGetChatList:
		h.chatList(s, f.Data)
	case protocol.EventCheckOnlineStatus:
		err = h.onlineStatus(s, f.Data)
	case protocol.EventDisconnectUser:
		h.disconnectUser(s)
	default:
		err = errUnknownEvent
	}

	if err != nil {
		log.WithError(err).Warn("rejecting frame")
		h.notifyErrorLocked(s, f.Event, err)
	}
}

// Reject reports a frame that could not be decoded back to its sender.
func (h *Hub) Reject(s *Session, err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.logger.WithError(err).WithField("user", s.UserID).Warn("malformed frame")
	h.notifyErrorLocked(s, "", err)
}

func (h *Hub) sendMessage(s *Session, data protocol.Payload) error {
	receiver := data.String("receiverId")
	if receiver == "" {
		return errMissingReceiver
	}
	body := data.Map("message")
	if body == nil {
		return errMissingMessage
	}

	rec := Record{
		MessageID:  h.newID(),
		SenderID:   s.UserID,
		ReceiverID: receiver,
		Message:    protocol.MessageFromPayload(body),
		CreatedAt:  h.now(),
	}
	h.history.add(rec)

	h.deliverLocked(receiver, protocol.EventReceiveMessage, rec.Payload())
	s.queue(h.logger, protocol.Frame{Event: protocol.EventMessageSent, Data: rec.Payload()})
	return nil
}

func (h *Hub) join(s *Session, data protocol.Payload) error {
	receiver := data.String("receiverId")
	if receiver == "" {
		return errMissingReceiver
	}
	if h.joined[s.UserID] == nil {
		h.joined[s.UserID] = make(map[string]struct{})
	}
	h.joined[s.UserID][receiver] = struct{}{}

	s.queue(h.logger, protocol.Frame{
		Event: protocol.EventChatStatus,
		Data: protocol.Payload{
			"receiverId": receiver,
			"status":     StatusJoined,
			"online":     h.onlineLocked(receiver),
		},
	})
	return nil
}

func (h *Hub) leave(s *Session, data protocol.Payload) error {
	receiver := data.String("receiverId")
	if receiver == "" {
		return errMissingReceiver
	}
	delete(h.joined[s.UserID], receiver)

	h.deliverLocked(receiver, protocol.EventLeave, protocol.Payload{"userId": s.UserID})
	s.queue(h.logger, protocol.Frame{
		Event: protocol.EventChatStatus,
		Data: protocol.Payload{
			"receiverId": receiver,
			"status":     StatusLeft,
			"online":     h.onlineLocked(receiver),
		},
	})
	return nil
}

func (h *Hub) typing(s *Session, data protocol.Payload) error {
	receiver := data.String("receiverId")
	if receiver == "" {
		return errMissingReceiver
	}
	state := data.String("type")
	if state == "" {
		state = string(protocol.TypingStopped)
	}
	h.deliverLocked(receiver, protocol.EventTypingAlert, protocol.Payload{
		"senderId": s.UserID,
		"type":     state,
	})
	return nil
}

func (h *Hub) deleteMessage(s *Session, data protocol.Payload) error {
	id := data.String("messageId")
	if id == "" {
		return errMissingID
	}
	rec, ok := h.history.remove(id, s.UserID)
	if !ok {
		return errNotOwner
	}

	update := protocol.Payload{"messageId": rec.MessageID, "status": StatusDeleted}
	s.queue(h.logger, protocol.Frame{Event: protocol.EventMessageUpdate, Data: update})
	h.deliverLocked(rec.ReceiverID, protocol.EventMessageUpdateReceiver, update.Clone())
	return nil
}

func (h *Hub) retrieve(s *Session, data protocol.Payload) error {
	receiver := data.String("receiverId")
	if receiver == "" {
		return errMissingReceiver
	}
	records := h.history.conversation(s.UserID, receiver, data.String("keyword"))

	list := make([]any, 0, len(records))
	for _, r := range records {
		list = append(list, r.Payload())
	}
	s.queue(h.logger, protocol.Frame{
		Event: protocol.EventRetrieveMessage,
		Data:  protocol.Payload{"receiverId": receiver, "data": list},
	})
	return nil
}

func (h *Hub) chatList(s *Session, data protocol.Payload) {
	keyword := strings.ToLower(data.String("keyword"))

	seen := make(map[string]struct{})
	list := make([]any, 0)
	add := func(userID string, last *Record) {
		if _, dup := seen[userID]; dup {
			return
		}
		seen[userID] = struct{}{}
		if keyword != "" && !strings.Contains(strings.ToLower(userID), keyword) {
			return
		}
		entry := protocol.Payload{
			"userId": userID,
			"online": h.onlineLocked(userID),
		}
		if last != nil {
			entry["lastMessage"] = last.Payload()
		}
		list = append(list, entry)
	}

	for _, r := range h.history.latest(s.UserID) {
		add(r.counterpart(s.UserID), &r)
	}

	// Joined conversations without messages yet come last, by id.
	var pending []string
	for userID := range h.joined[s.UserID] {
		pending = append(pending, userID)
	}
	sort.Strings(pending)
	for _, userID := range pending {
		add(userID, nil)
	}

	s.queue(h.logger, protocol.Frame{
		Event: protocol.EventChatList,
		Data:  protocol.Payload{"data": list},
	})
}

func (h *Hub) onlineStatus(s *Session, data protocol.Payload) error {
	receiver := data.String("receiverId")
	if receiver == "" {
		return errMissingReceiver
	}
	s.queue(h.logger, protocol.Frame{
		Event: protocol.EventOnlineStatus,
		Data: protocol.Payload{
			"userId": receiver,
			"online": h.onlineLocked(receiver),
		},
	})
	return nil
}

func (h *Hub) disconnectUser(s *Session) {
	if s.offline {
		return
	}
	s.offline = true
	if h.onlineLocked(s.UserID) {
		return
	}
	h.announceLeaveLocked(s.UserID)
}

// announceLeaveLocked tells every counterpart userID joined that it left,
// and forgets those joins.
func (h *Hub) announceLeaveLocked(userID string) {
	for counterpart := range h.joined[userID] {
		h.deliverLocked(counterpart, protocol.EventLeave, protocol.Payload{"userId": userID})
	}
	delete(h.joined, userID)
}

func (h *Hub) onlineLocked(userID string) bool {
	for s := range h.sessions[userID] {
		if !s.offline {
			return true
		}
	}
	return false
}

// deliverLocked queues a frame for every session of userID.
func (h *Hub) deliverLocked(userID string, event protocol.Event, data protocol.Payload) {
	for s := range h.sessions[userID] {
		s.queue(h.logger, protocol.Frame{Event: event, Data: data})
	}
}

func (h *Hub) notifyErrorLocked(s *Session, event protocol.Event, err error) {
	s.queue(h.logger, protocol.Frame{
		Event: protocol.EventErrorNotify,
		Data: protocol.Payload{
			"event":   string(event),
			"message": err.Error(),
		},
	})
}
