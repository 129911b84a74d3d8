package protocol_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/chatsocket/pkg/protocol"
)

func codecs() []protocol.Codec {
	return []protocol.Codec{protocol.JSONCodec{}, protocol.ProtoCodec{}}
}

func TestCodec_EncodeDecode(t *testing.T) {
	tests := []struct {
		name  string
		frame protocol.Frame
	}{
		{
			name:  "send message with nested object",
			frame: protocol.Frame{Event: protocol.EventSendMessage, Data: protocol.SendMessagePayload("u2", protocol.Message{Text: "hi", Link: "l"})},
		},
		{
			name:  "no payload",
			frame: protocol.Frame{Event: protocol.EventDisconnectUser},
		},
		{
			name:  "empty payload",
			frame: protocol.Frame{Event: protocol.EventGetChatList, Data: protocol.Payload{}},
		},
		{
			name: "history with list and numbers",
			frame: protocol.Frame{Event: protocol.EventRetrieveMessage, Data: protocol.Payload{
				"data": []any{
					map[string]any{"messageId": "m1", "seq": 1.0},
					map[string]any{"messageId": "m2", "seq": 2.0, "read": true},
				},
			}},
		},
	}

	for _, codec := range codecs() {
		for _, tt := range tests {
			t.Run(codec.Name()+"/"+tt.name, func(t *testing.T) {
				data, err := codec.Encode(tt.frame)
				require.NoError(t, err)
				require.NotEmpty(t, data)

				got, err := codec.Decode(data)
				require.NoError(t, err)
				assert.Equal(t, tt.frame.Event, got.Event)
				if tt.frame.Data == nil {
					assert.Nil(t, got.Data)
					return
				}
				assert.Equal(t, normalizeForCompare(tt.frame.Data), normalizeForCompare(got.Data))
			})
		}
	}
}

// normalizeForCompare re-types nested maps so fixtures written with
// protocol.Payload and decoded map[string]any compare equal.
func normalizeForCompare(v any) any {
	switch val := v.(type) {
	case protocol.Payload:
		return normalizeForCompare(map[string]any(val))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeForCompare(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeForCompare(item)
		}
		return out
	default:
		return v
	}
}

func TestCodec_EncodeRejectsMissingEvent(t *testing.T) {
	for _, codec := range codecs() {
		t.Run(codec.Name(), func(t *testing.T) {
			_, err := codec.Encode(protocol.Frame{Data: protocol.Payload{"a": "b"}})
			assert.True(t, errors.Is(err, protocol.ErrInvalidFrame))
		})
	}
}

func TestJSONCodec_Decode(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    protocol.Frame
		wantErr error
	}{
		{
			name: "object data",
			data: `{"event":"receive_message","data":{"senderId":"u2","message":{"text":"hi"}}}`,
			want: protocol.Frame{Event: protocol.EventReceiveMessage, Data: protocol.Payload{
				"senderId": "u2",
				"message":  map[string]any{"text": "hi"},
			}},
		},
		{
			name: "null data",
			data: `{"event":"handshake_success","data":null}`,
			want: protocol.Frame{Event: protocol.EventHandshakeSuccess},
		},
		{
			name:    "missing event",
			data:    `{"data":{}}`,
			wantErr: protocol.ErrInvalidFrame,
		},
		{
			name:    "array data",
			data:    `{"event":"chatlist","data":[1,2]}`,
			wantErr: protocol.ErrInvalidFrame,
		},
		{
			name:    "not json",
			data:    `nope`,
			wantErr: errors.New("any"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := protocol.JSONCodec{}.Decode([]byte(tt.data))
			if tt.wantErr != nil {
				require.Error(t, err)
				if errors.Is(tt.wantErr, protocol.ErrInvalidFrame) {
					assert.ErrorIs(t, err, protocol.ErrInvalidFrame)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJSONCodec_EncodeShape(t *testing.T) {
	data, err := protocol.JSONCodec{}.Encode(protocol.Frame{
		Event: protocol.EventTypingAlert,
		Data:  protocol.TypingPayload("u2", true),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"typing_alert","data":{"receiverId":"u2","type":"user_typing"}}`, string(data))

	data, err = protocol.JSONCodec{}.Encode(protocol.Frame{Event: protocol.EventDisconnectUser})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"disconnect_user"}`, string(data))
}

func TestProtoCodec_DecodeGarbage(t *testing.T) {
	_, err := protocol.ProtoCodec{}.Decode([]byte{0xff, 0xff, 0xff})
	assert.Error(t, err)
}

func TestCodecByName(t *testing.T) {
	tests := []struct {
		name       string
		wantBinary bool
		wantErr    bool
	}{
		{name: "json"},
		{name: ""},
		{name: "protobuf", wantBinary: true},
		{name: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec, err := protocol.CodecByName(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBinary, codec.Binary())
		})
	}
}
