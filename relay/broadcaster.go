package relay

import (
	rtmp "github.com/torresjeff/rtmpcore"
	"github.com/torresjeff/rtmpcore/audio"
	"github.com/torresjeff/rtmpcore/video"
	"go.uber.org/zap"
)

// Broadcaster relays what publishers send to the subscribers of their stream.
type Broadcaster struct {
	registry *Registry
	logger   *zap.Logger
}

func NewBroadcaster(registry *Registry, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		registry: registry,
		logger:   logger,
	}
}

func (b *Broadcaster) RegisterPublisher(name string, sessionID string) error {
	return b.registry.RegisterPublisher(name, sessionID)
}

// DestroyPublisher removes the stream and tells every subscriber it ended.
func (b *Broadcaster) DestroyPublisher(name string, sessionID string) error {
	subscribers, err := b.registry.removePublisher(name, sessionID)
	if err != nil {
		return err
	}
	for _, sub := range subscribers {
		sub.SendEndOfStream()
	}
	return nil
}

// RegisterSubscriber adds sub to the stream. The stream's metadata and sequence headers are sent to it right away.
func (b *Broadcaster) RegisterSubscriber(name string, sub Subscriber) error {
	return b.registry.addSubscriber(name, sub)
}

func (b *Broadcaster) DestroySubscriber(name string, sessionID string) {
	b.registry.removeSubscriber(name, sessionID)
}

func (b *Broadcaster) StreamExists(name string) bool {
	return b.registry.StreamExists(name)
}

func (b *Broadcaster) BroadcastMetadata(name string, metadata *rtmp.StreamMetadata) error {
	err := b.registry.update(name, func(s *stream) {
		s.metadata = metadata
	})
	if err != nil {
		b.logger.Warn("metadata for unknown stream", zap.String("stream", name))
		return err
	}
	return b.registry.forEach(name, func(sub Subscriber) {
		sub.SendMetadata(metadata)
	})
}

func (b *Broadcaster) BroadcastAudio(name string, data []byte, timestamp uint32) error {
	if audio.IsSequenceHeader(data) {
		err := b.registry.update(name, func(s *stream) {
			s.aacSequenceHeader = data
		})
		if err != nil {
			b.logger.Warn("audio for unknown stream", zap.String("stream", name))
			return err
		}
	}
	return b.registry.forEach(name, func(sub Subscriber) {
		sub.SendAudio(data, timestamp)
	})
}

func (b *Broadcaster) BroadcastVideo(name string, data []byte, timestamp uint32) error {
	if video.IsSequenceHeader(data) {
		err := b.registry.update(name, func(s *stream) {
			s.avcSequenceHeader = data
		})
		if err != nil {
			b.logger.Warn("video for unknown stream", zap.String("stream", name))
			return err
		}
	}
	return b.registry.forEach(name, func(sub Subscriber) {
		sub.SendVideo(data, timestamp)
	})
}
