package relay

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gobwas/ws"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/omochice/chatsocket/pkg/protocol"
)

// DefaultPath is the WebSocket endpoint path.
const DefaultPath = "/ws"

// Option configures a Server.
type Option func(*Server)

// WithPath sets the WebSocket endpoint path.
func WithPath(path string) Option {
	return func(s *Server) {
		if path != "" {
			s.path = path
		}
	}
}

// Server accepts WebSocket connections and hands their frames to a Hub.
type Server struct {
	logger logrus.FieldLogger
	hub    *Hub
	path   string

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	stopped  bool
	wg       sync.WaitGroup
}

// New creates a Server with an empty Hub.
func New(logger logrus.FieldLogger, opts ...Option) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Server{
		logger: logger,
		hub:    NewHub(logger),
		path:   DefaultPath,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hub returns the server's hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP handler serving the WebSocket endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleWebSocket)
	return mux
}

// Start listens on address and serves until Stop is called.
func (s *Server) Start(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		listener.Close()
		return nil
	}
	s.listener = listener
	s.server = &http.Server{Handler: s.Handler()}
	srv := s.server
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"address": listener.Addr().String(),
		"path":    s.path,
	}).Info("relay server started")

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop closes the listener and every session, then waits for session
// goroutines to finish.
func (s *Server) Stop() {
	s.mu.Lock()
	s.stopped = true
	srv := s.server
	s.mu.Unlock()

	if srv != nil {
		srv.Close()
	}
	s.hub.CloseAll()
	s.wg.Wait()
	s.logger.Info("relay server stopped")
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// ClientCount returns the number of connected sessions.
func (s *Server) ClientCount() int {
	return s.hub.ClientCount()
}

// Online reports whether userID is online.
func (s *Server) Online(userID string) bool {
	return s.hub.Online(userID)
}

// Identity extracts the user id from the handshake headers: the token header
// first, then a bearer Authorization header.
func Identity(h http.Header) string {
	if token := strings.TrimSpace(h.Get(protocol.HeaderToken)); token != "" {
		return token
	}
	auth := h.Get(protocol.HeaderAuthorization)
	if rest, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(rest)
	}
	return ""
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := Identity(r.Header)
	if userID == "" {
		s.logger.WithField("remote", r.RemoteAddr).Warn("rejecting connection without identity")
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	raw, brw, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.WithError(err).WithField("remote", r.RemoteAddr).Warn("failed to upgrade connection")
		return
	}

	var conn Conn
	if brw != nil {
		conn = newWSConn(raw, brw.Reader)
	} else {
		conn = newWSConn(raw, nil)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go s.serveSession(NewSession(uuid.NewString(), userID, conn))
}

// serveSession reads frames until the connection ends. A writer goroutine
// drains the session's queue.
func (s *Server) serveSession(sess *Session) {
	defer s.wg.Done()

	log := s.logger.WithFields(logrus.Fields{
		"session": sess.ID,
		"user":    sess.UserID,
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		sess.writeLoop(log)
	}()

	s.hub.Register(sess)
	s.mu.Lock()
	if s.stopped {
		sess.Conn.Close()
	}
	s.mu.Unlock()
	defer func() {
		s.hub.Unregister(sess)
		close(sess.outgoing)
		<-writerDone
		sess.Conn.Close()
	}()

	for {
		data, binary, err := sess.Conn.Read()
		if err != nil {
			log.WithError(err).Debug("session read ended")
			return
		}
		f, err := sess.decode(data, binary)
		if err != nil {
			s.hub.Reject(sess, err)
			continue
		}
		s.hub.Handle(sess, f)
	}
}
