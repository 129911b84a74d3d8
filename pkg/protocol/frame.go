package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrInvalidFrame is returned when a frame has no event name or its data is
// not an object.
var ErrInvalidFrame = errors.New("invalid frame")

// Frame is a single named event with its payload. Data is nil for events
// without a body, such as disconnect_user.
type Frame struct {
	Event Event
	Data  Payload
}

// Codec converts frames to and from their on-wire bytes.
type Codec interface {
	// Name identifies the codec in configuration.
	Name() string

	// Binary reports whether frames travel as binary (true) or text (false)
	// WebSocket messages.
	Binary() bool

	Encode(f Frame) ([]byte, error)
	Decode(data []byte) (Frame, error)
}

// Codec names accepted by CodecByName.
const (
	CodecJSON     = "json"
	CodecProtobuf = "protobuf"
)

// CodecByName returns the codec registered under name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case CodecJSON, "":
		return JSONCodec{}, nil
	case CodecProtobuf:
		return ProtoCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// JSONCodec encodes frames as {"event": "...", "data": {...}} text messages.
type JSONCodec struct{}

func (JSONCodec) Name() string { return CodecJSON }
func (JSONCodec) Binary() bool { return false }

// Encode encodes the frame as a JSON object.
func (JSONCodec) Encode(f Frame) ([]byte, error) {
	if f.Event == "" {
		return nil, fmt.Errorf("failed to encode frame: %w", ErrInvalidFrame)
	}
	obj := map[string]any{"event": string(f.Event)}
	if f.Data != nil {
		obj["data"] = f.Data
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return data, nil
}

// Decode decodes a JSON object into a frame.
func (JSONCodec) Decode(data []byte) (Frame, error) {
	var raw struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Frame{}, fmt.Errorf("failed to decode frame: %w", err)
	}
	if raw.Event == "" {
		return Frame{}, fmt.Errorf("failed to decode frame: missing event: %w", ErrInvalidFrame)
	}

	f := Frame{Event: Event(raw.Event)}
	body := bytes.TrimSpace(raw.Data)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return f, nil
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return Frame{}, fmt.Errorf("failed to decode frame %q data: %w", raw.Event, ErrInvalidFrame)
	}
	f.Data = Payload(payload)
	return f, nil
}

// ProtoCodec encodes frames as a protobuf google.protobuf.Struct with the
// fields "event" and "data", sent as binary messages.
type ProtoCodec struct{}

func (ProtoCodec) Name() string { return CodecProtobuf }
func (ProtoCodec) Binary() bool { return true }

// Encode encodes the frame using protobuf.
func (ProtoCodec) Encode(f Frame) ([]byte, error) {
	if f.Event == "" {
		return nil, fmt.Errorf("failed to encode frame: %w", ErrInvalidFrame)
	}
	pbFrame, err := f.toProto()
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	data, err := proto.Marshal(pbFrame)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return data, nil
}

// Decode decodes protobuf bytes into a frame.
func (ProtoCodec) Decode(data []byte) (Frame, error) {
	pbFrame := &structpb.Struct{}
	if err := proto.Unmarshal(data, pbFrame); err != nil {
		return Frame{}, fmt.Errorf("failed to decode frame: %w", err)
	}
	return frameFromProto(pbFrame)
}

// toProto converts the Frame to a protobuf Struct.
// Payload values are normalized first since structpb only accepts plain maps
// and slices.
func (f Frame) toProto() (*structpb.Struct, error) {
	fields := map[string]any{"event": string(f.Event)}
	if f.Data != nil {
		fields["data"] = normalize(f.Data)
	}
	return structpb.NewStruct(fields)
}

// frameFromProto populates a Frame from a protobuf Struct.
func frameFromProto(s *structpb.Struct) (Frame, error) {
	fields := s.AsMap()
	event, _ := fields["event"].(string)
	if event == "" {
		return Frame{}, fmt.Errorf("failed to decode frame: missing event: %w", ErrInvalidFrame)
	}

	f := Frame{Event: Event(event)}
	switch data := fields["data"].(type) {
	case nil:
	case map[string]any:
		f.Data = Payload(data)
	default:
		return Frame{}, fmt.Errorf("failed to decode frame %q data: %w", event, ErrInvalidFrame)
	}
	return f, nil
}

func normalize(v any) any {
	switch val := v.(type) {
	case Payload:
		return normalize(map[string]any(val))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case []Payload:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	default:
		return v
	}
}
