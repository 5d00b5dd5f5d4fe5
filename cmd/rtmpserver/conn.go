package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/pkg/errors"
	rtmp "github.com/torresjeff/rtmpcore"
	"github.com/torresjeff/rtmpcore/config"
	"github.com/torresjeff/rtmpcore/video"
	"go.uber.org/zap"
)

// outgoingQueueSize is the number of packets queued for a connection before it is considered too slow and closed.
const outgoingQueueSize = 1024

var errSlowConsumer = errors.New("client isn't reading fast enough")

// conn runs a ServerSession over a network connection. The read loop is the only goroutine feeding the session, but
// the broadcaster sends media to it from the publishers' goroutines, so the session is guarded by mu. mu is never held
// while calling into the broadcaster.
type conn struct {
	id       int64
	server   *Server
	netConn  net.Conn
	logger   *zap.Logger
	outgoing chan []byte
	done     chan struct{}
	once     sync.Once

	mu      sync.Mutex
	session *rtmp.ServerSession

	// relay stream names by message stream id, only used by the read loop
	streams map[uint32]string
}

func newConn(s *Server, netConn net.Conn, id int64) (*conn, error) {
	logger := s.Logger.With(zap.Int64("conn", id))
	session, err := rtmp.NewServerSession(rtmp.ServerConfig{
		FlashMediaServerVersion: s.Config.FlashMediaServerVersion,
		Capabilities:            config.Capabilities,
		ChunkSize:               s.Config.ChunkSize,
		WindowAckSize:           s.Config.WindowAckSize,
		PeerBandwidth:           s.Config.PeerBandwidth,
		Logger:                  logger,
	})
	if err != nil {
		return nil, err
	}
	return &conn{
		id:       id,
		server:   s,
		netConn:  netConn,
		logger:   logger.With(zap.String("session", session.ID())),
		outgoing: make(chan []byte, outgoingQueueSize),
		done:     make(chan struct{}),
		session:  session,
		streams:  make(map[uint32]string),
	}, nil
}

func (c *conn) serve() error {
	defer c.cleanup()
	go c.writeLoop()

	buf := make([]byte, config.BuffioSize)
	for {
		n, err := c.netConn.Read(buf)
		if n > 0 {
			events, handleErr := c.do(func(s *rtmp.ServerSession) ([]rtmp.Result, error) {
				return s.HandleInput(buf[:n])
			})
			if handleErr != nil {
				return handleErr
			}
			if handleErr = c.handleEvents(events); handleErr != nil {
				return handleErr
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.Wrap(err, "reading from connection")
		}
	}
}

// do runs f on the session and queues the packets it returns before anything else can be sent. The remaining
// events are returned.
func (c *conn) do(f func(s *rtmp.ServerSession) ([]rtmp.Result, error)) ([]rtmp.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	results, err := f(c.session)
	if err != nil {
		return nil, err
	}

	var events []rtmp.Result
	for _, r := range results {
		if packet, ok := r.(rtmp.OutboundPacket); ok {
			if err := c.enqueue(packet); err != nil {
				return nil, err
			}
			continue
		}
		events = append(events, r)
	}
	return events, nil
}

// enqueue must be called with mu held, so packets are queued in the order they were serialized.
func (c *conn) enqueue(packet rtmp.OutboundPacket) error {
	select {
	case c.outgoing <- packet.Bytes:
		return nil
	default:
		return errSlowConsumer
	}
}

func (c *conn) writeLoop() {
	w := bufio.NewWriterSize(c.netConn, config.BuffioSize)
	for {
		select {
		case b := <-c.outgoing:
			if _, err := w.Write(b); err != nil {
				c.logger.Debug("write failed", zap.Error(err))
				c.close()
				return
			}
			if len(c.outgoing) > 0 {
				continue
			}
			if err := w.Flush(); err != nil {
				c.logger.Debug("flush failed", zap.Error(err))
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		c.netConn.Close()
	})
}

// cleanup closes the session and takes its streams out of the relay.
func (c *conn) cleanup() {
	c.close()
	c.mu.Lock()
	events := c.session.Close()
	c.mu.Unlock()
	if err := c.handleEvents(events); err != nil {
		c.logger.Debug("cleaning up", zap.Error(err))
	}
}

// owner identifies a stream of this connection in the relay.
func (c *conn) owner(streamID uint32) string {
	return fmt.Sprintf("%s:%d", c.session.ID(), streamID)
}

// streamName is the name a stream is published under. Query parameters some encoders append to the stream key are
// dropped.
func streamName(app string, streamKey string) string {
	if i := strings.IndexByte(streamKey, '?'); i >= 0 {
		streamKey = streamKey[:i]
	}
	return app + "/" + streamKey
}

func (c *conn) appAllowed(app string) bool {
	if len(c.server.Config.Apps) == 0 {
		return true
	}
	for _, allowed := range c.server.Config.Apps {
		if allowed == app {
			return true
		}
	}
	return false
}

func (c *conn) accept(requestID uint32) error {
	_, err := c.do(func(s *rtmp.ServerSession) ([]rtmp.Result, error) {
		return s.AcceptRequest(requestID)
	})
	return err
}

func (c *conn) reject(requestID uint32, description string) error {
	_, err := c.do(func(s *rtmp.ServerSession) ([]rtmp.Result, error) {
		return s.RejectRequest(requestID, description)
	})
	return err
}

func (c *conn) handleEvents(events []rtmp.Result) error {
	broadcaster := c.server.Broadcaster
	for _, event := range events {
		switch ev := event.(type) {
		case rtmp.ConnectionRequested:
			if !c.appAllowed(ev.AppName) {
				if err := c.reject(ev.RequestID, fmt.Sprintf("application %q doesn't exist", ev.AppName)); err != nil {
					return err
				}
				continue
			}
			if err := c.accept(ev.RequestID); err != nil {
				return err
			}

		case rtmp.PublishRequested:
			name := streamName(ev.AppName, ev.StreamKey)
			if err := broadcaster.RegisterPublisher(name, c.owner(ev.StreamID)); err != nil {
				c.logger.Info("refusing publish", zap.String("stream", name), zap.Error(err))
				if err := c.reject(ev.RequestID, name+" is already being published"); err != nil {
					return err
				}
				continue
			}
			c.streams[ev.StreamID] = name
			if err := c.accept(ev.RequestID); err != nil {
				return err
			}

		case rtmp.PlayRequested:
			name := streamName(ev.AppName, ev.StreamKey)
			if !broadcaster.StreamExists(name) {
				if err := c.reject(ev.RequestID, name+" isn't being published"); err != nil {
					return err
				}
				continue
			}
			if err := c.accept(ev.RequestID); err != nil {
				return err
			}
			c.streams[ev.StreamID] = name
			sub := &player{conn: c, streamID: ev.StreamID}
			if err := broadcaster.RegisterSubscriber(name, sub); err != nil {
				// The publisher went away in the meantime
				c.logger.Info("stream is gone", zap.String("stream", name), zap.Error(err))
				sub.SendEndOfStream()
			}

		case rtmp.MediaReceived:
			name := c.streams[ev.StreamID]
			var err error
			if ev.Type == rtmp.MediaVideo {
				err = broadcaster.BroadcastVideo(name, ev.Data, ev.Timestamp)
			} else {
				err = broadcaster.BroadcastAudio(name, ev.Data, ev.Timestamp)
			}
			if err != nil {
				c.logger.Debug("dropping media", zap.String("stream", name), zap.Error(err))
			}

		case rtmp.MetadataChanged:
			name := c.streams[ev.StreamID]
			if err := broadcaster.BroadcastMetadata(name, ev.Metadata); err != nil {
				c.logger.Debug("dropping metadata", zap.String("stream", name), zap.Error(err))
			}

		case rtmp.PublishFinished:
			name := c.streams[ev.StreamID]
			delete(c.streams, ev.StreamID)
			if err := broadcaster.DestroyPublisher(name, c.owner(ev.StreamID)); err != nil {
				c.logger.Debug("destroying publisher", zap.String("stream", name), zap.Error(err))
			}

		case rtmp.PlayFinished:
			name := c.streams[ev.StreamID]
			delete(c.streams, ev.StreamID)
			broadcaster.DestroySubscriber(name, c.owner(ev.StreamID))

		case rtmp.UnhandledCommand:
			c.logger.Debug("unhandled command", zap.String("name", ev.Command.Name))
		case rtmp.UnhandledMessage:
			c.logger.Debug("unhandled message", zap.Uint8("type", uint8(ev.Message.Type)))
		}
	}
	return nil
}

// player relays a stream to a message stream of a connection.
type player struct {
	conn     *conn
	streamID uint32
	// skipping is set once a frame was skipped, every frame up to the next key frame is skipped too
	skipping bool
}

func (p *player) ID() string {
	return p.conn.owner(p.streamID)
}

func (p *player) send(f func(s *rtmp.ServerSession) (rtmp.OutboundPacket, error)) {
	_, err := p.conn.do(func(s *rtmp.ServerSession) ([]rtmp.Result, error) {
		packet, err := f(s)
		if err != nil {
			return nil, err
		}
		return []rtmp.Result{packet}, nil
	})
	if err == errSlowConsumer {
		p.conn.logger.Warn("closing slow player", zap.Uint32("stream", p.streamID))
		p.conn.close()
		return
	}
	if err != nil {
		p.conn.logger.Debug("sending to player", zap.Uint32("stream", p.streamID), zap.Error(err))
	}
}

func (p *player) SendMetadata(metadata *rtmp.StreamMetadata) {
	p.send(func(s *rtmp.ServerSession) (rtmp.OutboundPacket, error) {
		return s.SendMetadata(p.streamID, metadata)
	})
}

func (p *player) SendAudio(data []byte, timestamp uint32) {
	p.send(func(s *rtmp.ServerSession) (rtmp.OutboundPacket, error) {
		return s.SendAudioData(p.streamID, data, timestamp)
	})
}

// SendVideo skips frames other than key frames while the player is falling behind.
func (p *player) SendVideo(data []byte, timestamp uint32) {
	if video.IsKeyFrame(data) {
		p.skipping = false
	} else if p.skipping || len(p.conn.outgoing) > outgoingQueueSize/2 {
		p.skipping = true
		return
	}
	p.send(func(s *rtmp.ServerSession) (rtmp.OutboundPacket, error) {
		return s.SendVideoData(p.streamID, data, timestamp)
	})
}

func (p *player) SendEndOfStream() {
	_, err := p.conn.do(func(s *rtmp.ServerSession) ([]rtmp.Result, error) {
		return s.FinishPlaying(p.streamID)
	})
	if err != nil {
		p.conn.logger.Debug("finishing playback", zap.Uint32("stream", p.streamID), zap.Error(err))
	}
}
