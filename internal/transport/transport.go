// Package transport defines the contract between the chat adapter and the
// persistent, ordered, bidirectional named-event channel beneath it.
package transport

import (
	"errors"
	"net/http"
	"time"

	"github.com/omochice/chatsocket/pkg/protocol"
)

// Errors
var (
	ErrClosed           = errors.New("transport closed")
	ErrAlreadyConnected = errors.New("transport already connected")
	ErrSendBufferFull   = errors.New("send buffer full")
)

// Handler receives the payload of one inbound event.
type Handler func(protocol.Payload)

// Transport is a named-event channel to a chat server.
//
// Implementations deliver inbound events to handlers one at a time, in the
// order they arrive on the connection.
type Transport interface {
	// Connect starts establishing the connection and returns without waiting
	// for it. Reconnection after a drop is the transport's own business.
	Connect() error

	// Disconnect closes the connection for good. Frames already emitted are
	// flushed on a best-effort basis first.
	Disconnect() error

	// Emit sends a named event. It never waits for a server acknowledgement.
	Emit(event protocol.Event, data protocol.Payload) error

	// On subscribes h to event, replacing any previous subscription.
	On(event protocol.Event, h Handler)
}

// Options configures a transport connection.
type Options struct {
	URL    string
	Header http.Header
	Codec  protocol.Codec

	DialTimeout        time.Duration
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
	FlushTimeout       time.Duration
	SendBuffer         int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Codec:              protocol.JSONCodec{},
		DialTimeout:        10 * time.Second,
		ReconnectBaseDelay: 1 * time.Second,
		ReconnectMaxDelay:  30 * time.Second,
		FlushTimeout:       2 * time.Second,
		SendBuffer:         256,
	}
}

// DialFunc creates an unconnected transport for opts.
type DialFunc func(opts Options) Transport
