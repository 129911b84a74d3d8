package relay

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/omochice/chatsocket/pkg/protocol"
)

const outgoingBuffer = 64

// Session is one connected client of a user. A user may hold several.
type Session struct {
	ID     string
	UserID string
	Conn   Conn

	outgoing chan protocol.Frame
	binary   atomic.Bool

	// offline is set by disconnect_user. Guarded by Hub.mu.
	offline bool
}

// NewSession creates a Session for an authenticated connection.
func NewSession(id, userID string, conn Conn) *Session {
	return &Session{
		ID:       id,
		UserID:   userID,
		Conn:     conn,
		outgoing: make(chan protocol.Frame, outgoingBuffer),
	}
}

// Outgoing returns the frames queued for this session.
func (s *Session) Outgoing() <-chan protocol.Frame {
	return s.outgoing
}

// codec follows the framing of the last message the client sent. Clients
// start out on JSON.
func (s *Session) codec() protocol.Codec {
	if s.binary.Load() {
		return protocol.ProtoCodec{}
	}
	return protocol.JSONCodec{}
}

// decode records the framing of an inbound message and decodes it.
func (s *Session) decode(data []byte, binary bool) (protocol.Frame, error) {
	s.binary.Store(binary)
	return s.codec().Decode(data)
}

// queue hands f to the writer without blocking. Callers hold Hub.mu, which
// keeps queue and close of outgoing from racing.
func (s *Session) queue(logger logrus.FieldLogger, f protocol.Frame) {
	select {
	case s.outgoing <- f:
	default:
		logger.WithFields(logrus.Fields{
			"session": s.ID,
			"user":    s.UserID,
			"event":   f.Event,
		}).Warn("session queue full, dropping frame")
	}
}

// writeLoop encodes and writes queued frames until outgoing is closed.
func (s *Session) writeLoop(logger logrus.FieldLogger) {
	for f := range s.outgoing {
		codec := s.codec()
		data, err := codec.Encode(f)
		if err != nil {
			logger.WithError(err).WithField("event", f.Event).Error("failed to encode frame")
			continue
		}
		if err := s.Conn.Write(data, codec.Binary()); err != nil {
			logger.WithError(err).WithField("session", s.ID).Debug("failed to write to client")
			return
		}
	}
}
