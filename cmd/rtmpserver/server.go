package main

import (
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/torresjeff/rtmpcore/config"
	"github.com/torresjeff/rtmpcore/rand"
	"github.com/torresjeff/rtmpcore/relay"
	"go.uber.org/zap"
)

// Server accepts RTMP connections and runs one session per connection.
type Server struct {
	Config      config.Server
	Logger      *zap.Logger
	Broadcaster *relay.Broadcaster

	mu       sync.Mutex
	listener net.Listener
	conns    map[*conn]struct{}
	closed   bool
}

// Listen opens the listener on Config.Addr. If no address was configured, ":1935" is used.
func (s *Server) Listen() error {
	if s.Config.Addr == "" {
		s.Config.Addr = ":" + config.DefaultPort
	}

	tcpAddress, err := net.ResolveTCPAddr("tcp", s.Config.Addr)
	if err != nil {
		return errors.Wrap(err, "resolving tcp address")
	}
	listener, err := net.ListenTCP("tcp", tcpAddress)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", s.Config.Addr)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.Logger.Info("listening", zap.String("addr", listener.Addr().String()))
	return nil
}

// Serve accepts connections until Close is called.
func (s *Server) Serve() error {
	for {
		netConn, err := s.listener.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				s.Logger.Warn("error accepting incoming connection", zap.Error(err))
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return errors.Wrap(err, "accepting connection")
		}
		s.Logger.Info("accepted incoming connection", zap.String("remote", netConn.RemoteAddr().String()))
		go s.serveConn(netConn)
	}
}

func (s *Server) serveConn(netConn net.Conn) {
	id, err := rand.GenerateID()
	if err != nil {
		s.Logger.Error("generating connection id", zap.Error(err))
		netConn.Close()
		return
	}
	c, err := newConn(s, netConn, id)
	if err != nil {
		s.Logger.Error("creating session", zap.Error(err))
		netConn.Close()
		return
	}
	if !s.track(c) {
		c.close()
		return
	}
	defer s.untrack(c)

	c.logger.Info("starting session", zap.String("session", c.session.ID()))
	if err := c.serve(); err != nil {
		c.logger.Info("session ended with an error", zap.Error(err))
	} else {
		c.logger.Info("session ended")
	}
}

func (s *Server) track(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if s.conns == nil {
		s.conns = make(map[*conn]struct{})
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops accepting connections and closes the open ones.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.listener != nil {
		s.listener.Close()
	}
	for c := range s.conns {
		c.close()
	}
}
