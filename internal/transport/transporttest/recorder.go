// Package transporttest provides an in-memory transport for tests of the
// layers above a real socket.
package transporttest

import (
	"sync"

	"github.com/omochice/chatsocket/internal/transport"
	"github.com/omochice/chatsocket/pkg/protocol"
)

// Call kinds recorded in Recorder.Calls.
const (
	CallConnect    = "connect"
	CallDisconnect = "disconnect"
	CallEmit       = "emit"
)

// Call is one recorded interaction with the transport.
type Call struct {
	Kind  string
	Event protocol.Event
	Data  protocol.Payload
}

// Recorder is a transport.Transport that records every call and lets the
// test deliver inbound events by hand.
type Recorder struct {
	Options transport.Options

	// EmitErr, when set, is returned by Emit. The emit is still recorded.
	EmitErr error

	mu       sync.Mutex
	calls    []Call
	handlers map[protocol.Event]transport.Handler
}

// Compile-time check that Recorder implements transport.Transport
var _ transport.Transport = (*Recorder)(nil)

// NewRecorder creates a Recorder for opts.
func NewRecorder(opts transport.Options) *Recorder {
	return &Recorder{
		Options:  opts,
		handlers: make(map[protocol.Event]transport.Handler),
	}
}

func (r *Recorder) Connect() error {
	r.record(Call{Kind: CallConnect})
	return nil
}

func (r *Recorder) Disconnect() error {
	r.record(Call{Kind: CallDisconnect})
	return nil
}

func (r *Recorder) Emit(event protocol.Event, data protocol.Payload) error {
	r.record(Call{Kind: CallEmit, Event: event, Data: data})
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.EmitErr
}

func (r *Recorder) On(event protocol.Event, h transport.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[event] = h
}

// Deliver invokes the subscription for event synchronously, as a transport
// read loop would. It reports whether a subscription existed.
func (r *Recorder) Deliver(event protocol.Event, data protocol.Payload) bool {
	r.mu.Lock()
	h := r.handlers[event]
	r.mu.Unlock()

	if h == nil {
		return false
	}
	h(data)
	return true
}

// SetEmitErr sets the error returned by later Emit calls.
func (r *Recorder) SetEmitErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.EmitErr = err
}

// Subscribed returns the events that have a subscription.
func (r *Recorder) Subscribed() []protocol.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := make([]protocol.Event, 0, len(r.handlers))
	for e := range r.handlers {
		events = append(events, e)
	}
	return events
}

// Calls returns a copy of every recorded call in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Emits returns only the recorded emits.
func (r *Recorder) Emits() []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Kind == CallEmit {
			out = append(out, c)
		}
	}
	return out
}

// Count returns how many calls of kind were recorded.
func (r *Recorder) Count(kind string) int {
	n := 0
	for _, c := range r.Calls() {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

// Dialer hands out Recorders and remembers each one it created.
type Dialer struct {
	mu        sync.Mutex
	recorders []*Recorder
}

// Dial satisfies transport.DialFunc.
func (d *Dialer) Dial(opts transport.Options) transport.Transport {
	r := NewRecorder(opts)
	d.mu.Lock()
	d.recorders = append(d.recorders, r)
	d.mu.Unlock()
	return r
}

// Recorders returns every Recorder created so far.
func (d *Dialer) Recorders() []*Recorder {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Recorder, len(d.recorders))
	copy(out, d.recorders)
	return out
}

// Last returns the most recently created Recorder, or nil.
func (d *Dialer) Last() *Recorder {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.recorders) == 0 {
		return nil
	}
	return d.recorders[len(d.recorders)-1]
}
