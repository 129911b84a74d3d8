package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestFrame_toProto(t *testing.T) {
	f := Frame{
		Event: EventRetrieveMessage,
		Data: Payload{
			"data": []Payload{
				{"messageId": "m1", "message": Payload{"text": "hi"}},
			},
			"tags": []string{"a", "b"},
		},
	}

	got, err := f.toProto()
	require.NoError(t, err)

	assert.Equal(t, "retrieve_message", got.Fields["event"].GetStringValue())
	data := got.Fields["data"].GetStructValue()
	require.NotNil(t, data)

	list := data.Fields["data"].GetListValue()
	require.NotNil(t, list)
	require.Len(t, list.Values, 1)
	record := list.Values[0].GetStructValue()
	assert.Equal(t, "m1", record.Fields["messageId"].GetStringValue())
	assert.Equal(t, "hi", record.Fields["message"].GetStructValue().Fields["text"].GetStringValue())
	assert.Len(t, data.Fields["tags"].GetListValue().Values, 2)
}

func TestFrameFromProto(t *testing.T) {
	tests := []struct {
		name    string
		fields  map[string]any
		want    Frame
		wantErr bool
	}{
		{
			name:   "with data",
			fields: map[string]any{"event": "leave", "data": map[string]any{"userId": "u2"}},
			want:   Frame{Event: EventLeave, Data: Payload{"userId": "u2"}},
		},
		{
			name:   "without data",
			fields: map[string]any{"event": "disconnect_user"},
			want:   Frame{Event: EventDisconnectUser},
		},
		{
			name:    "missing event",
			fields:  map[string]any{"data": map[string]any{}},
			wantErr: true,
		},
		{
			name:    "scalar data",
			fields:  map[string]any{"event": "leave", "data": "u2"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := structpb.NewStruct(tt.fields)
			require.NoError(t, err)

			got, err := frameFromProto(s)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFrame)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
