package main

import (
	"bufio"
	"io"
	"net"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	rtmp "github.com/torresjeff/rtmpcore"
	"github.com/torresjeff/rtmpcore/audio"
	"github.com/torresjeff/rtmpcore/config"
	"github.com/torresjeff/rtmpcore/video"
	"go.uber.org/zap"
)

var (
	ErrInvalidScheme = errors.New("invalid scheme in URL")
	ErrInvalidPath   = errors.New("URL path must hold an application and a stream key")
	ErrRejected      = errors.New("rejected by the server")
)

// target is what an rtmp://host[:port]/app/streamKey URL points to.
type target struct {
	Addr      string
	App       string
	StreamKey string
	TcURL     string
}

func parseURL(raw string) (target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return target{}, errors.Wrap(err, "parsing URL")
	}
	if u.Scheme != "rtmp" || u.Host == "" {
		return target{}, errors.Wrapf(ErrInvalidScheme, "got %q", raw)
	}
	if u.Port() == "" {
		u.Host += ":" + config.DefaultPort
	}

	path := strings.Split(strings.Trim(u.Path, "/"), "/")
	// At the very least we need an app and a stream key
	if len(path) < 2 || path[0] == "" {
		return target{}, errors.Wrapf(ErrInvalidPath, "got %q", u.Path)
	}
	elements := len(path)
	// Everything but the last part of the path is the app name
	app := strings.Join(path[:elements-1], "/")
	streamKey := path[elements-1]
	if u.RawQuery != "" {
		streamKey += "?" + u.RawQuery
	}

	return target{
		Addr:      u.Host,
		App:       app,
		StreamKey: streamKey,
		TcURL:     "rtmp://" + u.Host + "/" + app,
	}, nil
}

type stats struct {
	VideoFrames   int
	KeyFrames     int
	AudioFrames   int
	Bytes         int
	LastTimestamp uint32
	Metadata      *rtmp.StreamMetadata
}

// player plays one stream over conn until the server ends it.
type player struct {
	conn      net.Conn
	w         *bufio.Writer
	session   *rtmp.ClientSession
	logger    *zap.Logger
	target    target
	connected bool
	stats     stats
}

func newPlayer(conn net.Conn, t target, logger *zap.Logger) (*player, []rtmp.Result, error) {
	cfg := rtmp.DefaultClientConfig()
	cfg.TcURL = t.TcURL
	cfg.Logger = logger
	session, start, err := rtmp.NewClientSession(cfg)
	if err != nil {
		return nil, nil, err
	}
	return &player{
		conn:    conn,
		w:       bufio.NewWriterSize(conn, config.BuffioSize),
		session: session,
		logger:  logger.With(zap.String("session", session.ID())),
		target:  t,
	}, start, nil
}

func (p *player) write(results []rtmp.Result, err error) error {
	if err != nil {
		return err
	}
	for _, r := range results {
		if packet, ok := r.(rtmp.OutboundPacket); ok {
			if _, err := p.w.Write(packet.Bytes); err != nil {
				return errors.Wrap(err, "writing to server")
			}
		}
	}
	return errors.Wrap(p.w.Flush(), "writing to server")
}

// run plays the stream and returns what was received once the server ends it.
func (p *player) run(start []rtmp.Result) (stats, error) {
	if err := p.write(start, nil); err != nil {
		return p.stats, err
	}

	buf := make([]byte, config.BuffioSize)
	for {
		n, err := p.conn.Read(buf)
		if n > 0 {
			results, handleErr := p.session.HandleInput(buf[:n])
			if handleErr = p.write(results, handleErr); handleErr != nil {
				return p.stats, handleErr
			}
			if !p.connected && p.session.State() == rtmp.StateAwaitingConnect {
				p.connected = true
				p.logger.Info("connecting", zap.String("app", p.target.App))
				if handleErr = p.write(p.session.RequestConnection(p.target.App)); handleErr != nil {
					return p.stats, handleErr
				}
			}
			done, handleErr := p.handleEvents(results)
			if handleErr != nil || done {
				return p.stats, handleErr
			}
		}
		if err != nil {
			if err == io.EOF {
				return p.stats, errors.Wrap(io.ErrUnexpectedEOF, "server closed the connection")
			}
			return p.stats, errors.Wrap(err, "reading from server")
		}
	}
}

func (p *player) handleEvents(results []rtmp.Result) (bool, error) {
	for _, r := range results {
		switch ev := r.(type) {
		case rtmp.ConnectionAccepted:
			if err := p.write(p.session.RequestStreamCreation()); err != nil {
				return false, err
			}
		case rtmp.StreamCreated:
			p.logger.Info("requesting playback", zap.String("streamKey", p.target.StreamKey))
			if err := p.write(p.session.RequestPlayback(p.target.StreamKey)); err != nil {
				return false, err
			}
		case rtmp.ConnectionRejected:
			return false, errors.Wrapf(ErrRejected, "connect: %s %s", ev.Code, ev.Description)
		case rtmp.RequestRejected:
			return false, errors.Wrapf(ErrRejected, "%s: %s %s", ev.Command, ev.Code, ev.Description)
		case rtmp.PlaybackAccepted:
			p.logger.Info("playing", zap.String("streamKey", ev.StreamKey), zap.Uint32("stream", ev.StreamID))
		case rtmp.MetadataReceived:
			p.stats.Metadata = ev.Metadata
			p.logger.Info("metadata received",
				zap.Float64("width", ev.Metadata.Width),
				zap.Float64("height", ev.Metadata.Height),
				zap.Float64("framerate", ev.Metadata.FrameRate),
				zap.String("encoder", ev.Metadata.Encoder))
		case rtmp.MediaReceived:
			p.stats.Bytes += len(ev.Data)
			p.stats.LastTimestamp = ev.Timestamp
			if ev.Type == rtmp.MediaAudio {
				if p.stats.AudioFrames == 0 {
					p.logAudioHeader(ev.Data)
				}
				p.stats.AudioFrames++
				continue
			}
			if p.stats.VideoFrames == 0 {
				p.logVideoHeader(ev.Data)
			}
			p.stats.VideoFrames++
			if video.IsKeyFrame(ev.Data) {
				p.stats.KeyFrames++
			}
		case rtmp.StreamEnded:
			p.logger.Info("stream ended", zap.Uint32("stream", ev.StreamID))
			return true, nil
		}
	}
	return false, nil
}

func (p *player) logAudioHeader(data []byte) {
	h, err := audio.ParseHeader(data)
	if err != nil {
		p.logger.Warn("unreadable audio tag", zap.Error(err))
		return
	}
	p.logger.Info("audio", zap.Stringer("format", h.Format), zap.Uint8("sampleRate", uint8(h.SampleRate)), zap.Uint8("channels", uint8(h.Channels)))
}

func (p *player) logVideoHeader(data []byte) {
	h, err := video.ParseHeader(data)
	if err != nil {
		p.logger.Warn("unreadable video tag", zap.Error(err))
		return
	}
	p.logger.Info("video", zap.Stringer("codec", h.Codec))
}
