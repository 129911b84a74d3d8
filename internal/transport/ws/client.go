// Package ws implements transport.Transport over WebSocket with gobwas/ws.
//
// A Client dials in the background and keeps redialing with exponential
// backoff until Disconnect. Emitted frames wait in a bounded queue while the
// socket is down and are written in order once it is up. Inbound frames are
// decoded and handed to subscribers by a single reader, so handlers see events
// in arrival order.
package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/sirupsen/logrus"

	"github.com/omochice/chatsocket/internal/transport"
	"github.com/omochice/chatsocket/pkg/protocol"
)

var errConnectionLost = errors.New("connection lost")

// Compile-time check that Client implements transport.Transport
var _ transport.Transport = (*Client)(nil)

// Client is a WebSocket transport to one chat server.
type Client struct {
	opts   transport.Options
	codec  protocol.Codec
	logger logrus.FieldLogger

	handlersMu sync.RWMutex
	handlers   map[protocol.Event]transport.Handler

	queue    chan []byte
	done     chan struct{}
	finished chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.Mutex
	started bool
	closed  bool
	current *conn
}

// New creates an unconnected Client. Zero values in opts fall back to
// transport.DefaultOptions.
func New(opts transport.Options, logger logrus.FieldLogger) *Client {
	opts = withDefaults(opts)
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		opts:     opts,
		codec:    opts.Codec,
		logger:   logger.WithField("server", opts.URL),
		handlers: make(map[protocol.Event]transport.Handler),
		queue:    make(chan []byte, opts.SendBuffer),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Dial returns a transport.DialFunc that creates Clients logging to logger.
func Dial(logger logrus.FieldLogger) transport.DialFunc {
	return func(opts transport.Options) transport.Transport {
		return New(opts, logger)
	}
}

func withDefaults(opts transport.Options) transport.Options {
	def := transport.DefaultOptions()
	if opts.Codec == nil {
		opts.Codec = def.Codec
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = def.DialTimeout
	}
	if opts.ReconnectBaseDelay <= 0 {
		opts.ReconnectBaseDelay = def.ReconnectBaseDelay
	}
	if opts.ReconnectMaxDelay < opts.ReconnectBaseDelay {
		opts.ReconnectMaxDelay = max(def.ReconnectMaxDelay, opts.ReconnectBaseDelay)
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = def.FlushTimeout
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = def.SendBuffer
	}
	return opts
}

// Connect starts dialing in the background and returns immediately.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return transport.ErrClosed
	}
	if c.started {
		return transport.ErrAlreadyConnected
	}
	c.started = true

	go c.run()
	return nil
}

// Disconnect stops reconnecting, flushes queued frames for up to
// FlushTimeout, sends a close frame and closes the socket. It does not wait
// for a handler that is still running. Calling it again is a no-op.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	c.mu.Unlock()

	close(c.done)
	if !started {
		c.cancel()
		return nil
	}

	timer := time.NewTimer(c.opts.FlushTimeout)
	defer timer.Stop()
	select {
	case <-c.finished:
	case <-timer.C:
		c.logger.Warn("flush timed out, closing socket")
		c.cancel()
		<-c.finished
	}
	c.cancel()
	return nil
}

// Emit encodes the frame and queues it for sending. Frames emitted before the
// socket is up are sent once it is.
func (c *Client) Emit(event protocol.Event, data protocol.Payload) error {
	frame, err := c.codec.Encode(protocol.Frame{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("failed to emit %s: %w", event, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return transport.ErrClosed
	}
	select {
	case c.queue <- frame:
		return nil
	default:
		return fmt.Errorf("failed to emit %s: %w", event, transport.ErrSendBufferFull)
	}
}

// On subscribes h to event, replacing any previous subscription.
func (c *Client) On(event protocol.Event, h transport.Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	if h == nil {
		delete(c.handlers, event)
		return
	}
	c.handlers[event] = h
}

// Connected reports whether the socket is currently up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

func (c *Client) closing() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) run() {
	defer close(c.finished)

	delay := c.opts.ReconnectBaseDelay
	var pending []byte
	for {
		if c.closing() && pending == nil && len(c.queue) == 0 {
			return
		}

		cn, err := c.dial()
		if err != nil {
			if c.ctx.Err() != nil || c.closing() {
				c.logger.WithError(err).Debug("giving up dial, transport closed")
				return
			}
			c.logger.WithError(err).WithField("retry_in", delay).Warn("dial failed")
			if !c.sleep(delay) {
				return
			}
			delay = nextDelay(delay, c.opts.ReconnectMaxDelay)
			continue
		}

		delay = c.opts.ReconnectBaseDelay
		c.logger.WithField("remote", cn.RemoteAddr()).Info("connected")

		pending, err = c.serve(cn, pending)
		if err == nil {
			return
		}
		c.logger.WithError(err).WithField("retry_in", delay).Warn("connection lost, reconnecting")
		if !c.sleep(delay) {
			return
		}
		delay = nextDelay(delay, c.opts.ReconnectMaxDelay)
	}
}

func (c *Client) dial() (*conn, error) {
	dialer := ws.Dialer{
		Timeout: c.opts.DialTimeout,
		Header:  ws.HandshakeHeaderHTTP(c.opts.Header),
	}
	raw, br, _, err := dialer.Dial(c.ctx, c.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", c.opts.URL, err)
	}
	return newConn(raw, br, c.codec.Binary()), nil
}

// serve runs one connection until it drops or the transport is closed.
// pending, if any, is written before anything still queued. A frame whose
// write failed is returned so the next connection can resend it.
func (c *Client) serve(cn *conn, pending []byte) ([]byte, error) {
	c.mu.Lock()
	c.current = cn
	c.mu.Unlock()

	stop := context.AfterFunc(c.ctx, func() { cn.raw.Close() })
	defer func() {
		stop()
		c.mu.Lock()
		c.current = nil
		c.mu.Unlock()
	}()

	readDone := make(chan error, 1)
	go func() { readDone <- c.readLoop(cn) }()

	if pending != nil {
		if err := cn.Write(pending); err != nil {
			cn.raw.Close()
			return pending, fmt.Errorf("failed to resend frame: %w", err)
		}
	}

	for {
		select {
		case <-c.done:
			c.flush(cn)
			return nil, nil
		case err := <-readDone:
			cn.raw.Close()
			return nil, fmt.Errorf("%w: %w", errConnectionLost, err)
		case frame := <-c.queue:
			if err := cn.Write(frame); err != nil {
				cn.raw.Close()
				return frame, fmt.Errorf("failed to write frame: %w", err)
			}
		}
	}
}

// flush writes whatever is still queued and closes the connection. Writes are
// bounded by FlushTimeout.
func (c *Client) flush(cn *conn) {
	_ = cn.raw.SetWriteDeadline(time.Now().Add(c.opts.FlushTimeout))
	for {
		select {
		case frame := <-c.queue:
			if err := cn.Write(frame); err != nil {
				c.logger.WithError(err).WithField("dropped", len(c.queue)+1).Warn("flush failed")
				cn.raw.Close()
				return
			}
		default:
			if err := cn.Close(); err != nil {
				c.logger.WithError(err).Debug("close failed")
			}
			c.logger.Info("disconnected")
			return
		}
	}
}

func (c *Client) readLoop(cn *conn) error {
	for {
		data, err := cn.Read()
		if err != nil {
			return err
		}

		frame, err := c.codec.Decode(data)
		if err != nil {
			c.logger.WithError(err).Warn("dropping undecodable frame")
			continue
		}

		c.handlersMu.RLock()
		h := c.handlers[frame.Event]
		c.handlersMu.RUnlock()

		if h == nil {
			c.logger.WithField("event", frame.Event).Debug("no subscriber for event")
			continue
		}
		h(frame.Data)
	}
}

func (c *Client) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-c.done:
		return false
	case <-c.ctx.Done():
		return false
	}
}

func nextDelay(d, limit time.Duration) time.Duration {
	d *= 2
	if d > limit {
		return limit
	}
	return d
}
