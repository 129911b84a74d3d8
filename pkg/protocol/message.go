package protocol

// Payload is an opaque event body. Inbound payloads are passed through
// unchanged; outbound payloads are built with the helpers below.
type Payload map[string]any

// String returns the string stored under key, or "" when absent or not a string.
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Map returns the object stored under key as a Payload, or nil.
func (p Payload) Map(key string) Payload {
	switch v := p[key].(type) {
	case Payload:
		return v
	case map[string]any:
		return Payload(v)
	default:
		return nil
	}
}

// Clone returns a shallow copy.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Message is the content of a chat message. Link and Media are optional.
type Message struct {
	Text  string
	Link  string
	Media string
}

// Object converts the Message to its wire object, omitting empty optional fields.
func (m Message) Object() map[string]any {
	out := map[string]any{"text": m.Text}
	if m.Link != "" {
		out["link"] = m.Link
	}
	if m.Media != "" {
		out["media"] = m.Media
	}
	return out
}

// MessageFromPayload reads a Message back out of a wire object.
func MessageFromPayload(p Payload) Message {
	return Message{
		Text:  p.String("text"),
		Link:  p.String("link"),
		Media: p.String("media"),
	}
}

// SendMessagePayload builds the send_message body.
func SendMessagePayload(receiverID string, msg Message) Payload {
	return Payload{
		"receiverId": receiverID,
		"message":    msg.Object(),
	}
}

// ReceiverPayload builds the body shared by joinchat, leave_chat and
// check_online_status.
func ReceiverPayload(receiverID string) Payload {
	return Payload{"receiverId": receiverID}
}

// TypingPayload builds the typing_alert body.
func TypingPayload(receiverID string, isTyping bool) Payload {
	return Payload{
		"receiverId": receiverID,
		"type":       string(TypingStateOf(isTyping)),
	}
}

// DeleteMessagePayload builds the delete_message body.
func DeleteMessagePayload(messageID string) Payload {
	return Payload{"messageId": messageID}
}

// HistoryQueryPayload builds the chat_message body. An empty keyword means
// no filter and is left out.
func HistoryQueryPayload(receiverID, keyword string) Payload {
	p := Payload{"receiverId": receiverID}
	if keyword != "" {
		p["keyword"] = keyword
	}
	return p
}

// ChatListQueryPayload builds the get_chatlist body.
func ChatListQueryPayload(keyword string) Payload {
	p := Payload{}
	if keyword != "" {
		p["keyword"] = keyword
	}
	return p
}
