package relay

import (
	"sort"
	"strings"
	"time"

	"github.com/omochice/chatsocket/pkg/protocol"
)

// Record is one stored chat message.
type Record struct {
	MessageID  string
	SenderID   string
	ReceiverID string
	Message    protocol.Message
	CreatedAt  time.Time
}

// Payload returns the wire form used by receive_message, message_sent and
// retrieve_message.
func (r Record) Payload() protocol.Payload {
	return protocol.Payload{
		"messageId":  r.MessageID,
		"senderId":   r.SenderID,
		"receiverId": r.ReceiverID,
		"message":    r.Message.Object(),
		"createdAt":  r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// counterpart returns the other participant as seen by userID.
func (r Record) counterpart(userID string) string {
	if r.SenderID == userID {
		return r.ReceiverID
	}
	return r.SenderID
}

func (r Record) between(a, b string) bool {
	return (r.SenderID == a && r.ReceiverID == b) || (r.SenderID == b && r.ReceiverID == a)
}

// history is an append-only message log with deletion. Not safe for
// concurrent use; the Hub guards it.
type history struct {
	records []Record
}

func (h *history) add(r Record) {
	h.records = append(h.records, r)
}

// conversation returns the messages exchanged by a and b, oldest first. A
// non-empty keyword keeps only messages whose text contains it, ignoring case.
func (h *history) conversation(a, b, keyword string) []Record {
	keyword = strings.ToLower(keyword)
	var out []Record
	for _, r := range h.records {
		if !r.between(a, b) {
			continue
		}
		if keyword != "" && !strings.Contains(strings.ToLower(r.Message.Text), keyword) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// remove deletes the message if senderID sent it.
func (h *history) remove(messageID, senderID string) (Record, bool) {
	for i, r := range h.records {
		if r.MessageID != messageID {
			continue
		}
		if r.SenderID != senderID {
			return Record{}, false
		}
		h.records = append(h.records[:i], h.records[i+1:]...)
		return r, true
	}
	return Record{}, false
}

// latest returns the newest message per counterpart of userID, newest
// conversation first.
func (h *history) latest(userID string) []Record {
	last := make(map[string]Record)
	for _, r := range h.records {
		if r.SenderID != userID && r.ReceiverID != userID {
			continue
		}
		last[r.counterpart(userID)] = r
	}

	out := make([]Record, 0, len(last))
	for _, r := range last {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].counterpart(userID) < out[j].counterpart(userID)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
