// Package chatsocket implements the Connection Manager: it owns the single
// transport connection of one user, fans inbound events out to one callback
// per event kind, buffers received messages and exposes the outbound chat
// actions.
//
// No public operation returns an error. Actions without a connection are
// no-ops, and server-side problems arrive through OnErrorNotify.
package chatsocket

import (
	"context"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/omochice/chatsocket/internal/transport"
	"github.com/omochice/chatsocket/pkg/protocol"
)

// State is the lifecycle state of a Manager.
type State int

const (
	// StateIdle means no user identity has been supplied yet.
	StateIdle State = iota

	// StateConnected means a transport connection has been opened. Events are
	// only deliverable once handshake_success has fired.
	StateConnected

	// StateClosed means the last connection was torn down.
	StateClosed
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default is the logrus standard logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithCodec sets the frame codec handed to the transport.
func WithCodec(codec protocol.Codec) Option {
	return func(m *Manager) {
		m.codec = codec
	}
}

// WithTransportOptions lets the caller adjust transport options (timeouts,
// buffer sizes) before each dial. URL and headers are always set by the Manager.
func WithTransportOptions(fn func(*transport.Options)) Option {
	return func(m *Manager) {
		m.tune = fn
	}
}

// Manager is the Connection Manager for one user.
type Manager struct {
	dial      transport.DialFunc
	codec     protocol.Codec
	tune      func(*transport.Options)
	logger    logrus.FieldLogger
	callbacks registry

	// lifecycle serializes Configure and Teardown, including the transport
	// calls they make.
	lifecycle sync.Mutex

	mu        sync.Mutex
	state     State
	address   string
	userID    string
	conn      transport.Transport
	gen       uint64
	buffer    []protocol.Payload
	stopWatch func()
}

// New creates a Manager that opens connections through dial.
func New(dial transport.DialFunc, opts ...Option) *Manager {
	m := &Manager{
		dial:   dial,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Configure sets the server address and user identity.
//
// When either differs from the current pair, an open connection is torn down
// (disconnect_user, then transport disconnect). When userID is non-empty a new
// connection with an empty message buffer is opened. The connection is also
// torn down once ctx is done. Calling Configure with the pair already in use
// while connected does nothing.
func (m *Manager) Configure(ctx context.Context, serverAddress, userID string) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	if m.conn != nil && m.address == serverAddress && m.userID == userID {
		m.mu.Unlock()
		return
	}
	old := m.detachLocked()
	m.address = serverAddress
	m.userID = userID
	m.mu.Unlock()

	if old != nil {
		m.closeTransport(old)
	}

	if userID == "" {
		m.logger.WithFields(logrus.Fields{
			"server": serverAddress,
		}).Debug("no user identity, staying disconnected")
		return
	}

	m.open(ctx, serverAddress, userID)
}

// Teardown closes the current connection, if any: disconnect_user is emitted
// (failure ignored), then the transport is disconnected.
func (m *Manager) Teardown() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	old := m.detachLocked()
	m.mu.Unlock()

	if old != nil {
		m.closeTransport(old)
	}
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connected reports whether a connection is open.
func (m *Manager) Connected() bool {
	return m.State() == StateConnected
}

// UserID returns the identity of the current or last connection.
func (m *Manager) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID
}

// ServerAddress returns the address of the current or last connection.
func (m *Manager) ServerAddress() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.address
}

// Messages returns a snapshot of the messages received on the current
// connection, in arrival order.
func (m *Manager) Messages() []protocol.Payload {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]protocol.Payload, len(m.buffer))
	copy(out, m.buffer)
	return out
}

func (m *Manager) open(ctx context.Context, serverAddress, userID string) {
	opts := transport.DefaultOptions()
	if m.tune != nil {
		m.tune(&opts)
	}
	if m.codec != nil {
		opts.Codec = m.codec
	}
	opts.URL = serverAddress
	opts.Header = credentialHeader(userID)

	conn := m.dial(opts)

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.conn = conn
	m.buffer = nil
	m.state = StateConnected
	for _, event := range protocol.InboundEvents() {
		conn.On(event, m.subscription(gen, event))
	}
	m.stopWatch = m.watch(ctx, gen)
	m.mu.Unlock()

	log := m.logger.WithFields(logrus.Fields{
		"server": serverAddress,
		"user":   userID,
	})
	if err := conn.Connect(); err != nil {
		log.WithError(err).Warn("transport connect failed")
		return
	}
	log.Info("connection opened")
}

// detachLocked forgets the current connection and returns it. m.mu must be held.
func (m *Manager) detachLocked() transport.Transport {
	conn := m.conn
	if conn == nil {
		return nil
	}
	m.conn = nil
	m.state = StateClosed
	if m.stopWatch != nil {
		m.stopWatch()
		m.stopWatch = nil
	}
	return conn
}

// closeTransport notifies the server and then disconnects. Notification
// failure never prevents the disconnect.
func (m *Manager) closeTransport(conn transport.Transport) {
	if err := conn.Emit(protocol.EventDisconnectUser, nil); err != nil {
		m.logger.WithError(err).Debug("disconnect_user notification failed")
	}
	if err := conn.Disconnect(); err != nil {
		m.logger.WithError(err).Debug("transport disconnect failed")
	}
	m.logger.Info("connection closed")
}

// watch tears the connection of generation gen down once ctx is done. The
// returned func stops watching.
func (m *Manager) watch(ctx context.Context, gen uint64) func() {
	if ctx == nil || ctx.Done() == nil {
		return nil
	}
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			m.teardownGeneration(gen)
		case <-stop:
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(stop) }) }
}

func (m *Manager) teardownGeneration(gen uint64) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	old := m.detachLocked()
	m.mu.Unlock()

	if old != nil {
		m.closeTransport(old)
	}
}

// subscription returns the transport handler for event on connection gen.
// Events from a connection that has since been replaced are ignored.
func (m *Manager) subscription(gen uint64, event protocol.Event) transport.Handler {
	slots := routes[event]
	return func(data protocol.Payload) {
		m.mu.Lock()
		if m.gen != gen || m.conn == nil {
			m.mu.Unlock()
			return
		}
		if event == protocol.EventReceiveMessage {
			m.buffer = append(m.buffer, data)
		}
		m.mu.Unlock()

		for _, slot := range slots {
			m.invoke(slot, event, data)
		}
	}
}

func (m *Manager) invoke(slot Slot, event protocol.Event, data protocol.Payload) {
	cb := m.callbacks.get(slot)
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.WithFields(logrus.Fields{
				"event": event,
				"slot":  slot.String(),
				"panic": r,
			}).Error("callback panicked")
		}
	}()
	cb(data)
}

func credentialHeader(userID string) http.Header {
	h := http.Header{}
	h.Set(protocol.HeaderToken, userID)
	h.Set(protocol.HeaderAuthorization, "Bearer "+userID)
	return h
}
