// Package relay keeps track of the streams published to a host and fans their media out to the sessions playing
// them.
package relay

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	rtmp "github.com/torresjeff/rtmpcore"
	"go.uber.org/zap"
)

var (
	ErrStreamNotFound = errors.New("stream not found")
	ErrStreamExists   = errors.New("stream is already being published")
)

// A Subscriber gets sent the audio, video and metadata that flow in the stream it subscribed to. Subscribers are
// called with the registry locked, they must not call back into it.
type Subscriber interface {
	ID() string
	SendMetadata(metadata *rtmp.StreamMetadata)
	SendAudio(data []byte, timestamp uint32)
	SendVideo(data []byte, timestamp uint32)
	SendEndOfStream()
}

type stream struct {
	publisherID string
	subscribers []Subscriber
	metadata    *rtmp.StreamMetadata
	// Players can't decode anything before these, so the last ones sent are replayed to every new subscriber.
	avcSequenceHeader []byte
	aacSequenceHeader []byte
}

// Registry is an in-memory map of stream names to their publisher and subscribers.
type Registry struct {
	mu      sync.RWMutex
	streams map[string]*stream
	logger  *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		streams: make(map[string]*stream),
		logger:  logger,
	}
}

func (r *Registry) RegisterPublisher(name string, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, exists := r.streams[name]; exists {
		return errors.Wrapf(ErrStreamExists, "%s is published by %s", name, s.publisherID)
	}
	// Assume there will be a small amount of subscribers
	r.streams[name] = &stream{publisherID: sessionID, subscribers: make([]Subscriber, 0, 5)}
	r.logger.Debug("registered publisher", zap.String("stream", name), zap.String("session", sessionID))
	return nil
}

// removePublisher deletes the stream published by sessionID and returns the subscribers it had.
func (r *Registry) removePublisher(name string, sessionID string) ([]Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, exists := r.streams[name]
	if !exists || s.publisherID != sessionID {
		return nil, errors.Wrapf(ErrStreamNotFound, "%s published by %s", name, sessionID)
	}
	delete(r.streams, name)
	r.logger.Debug("destroyed publisher", zap.String("stream", name), zap.Int("subscribers", len(s.subscribers)))
	return s.subscribers, nil
}

// addSubscriber registers sub and replays the cached metadata and sequence headers to it while the registry is
// locked, so no media can reach sub before them.
func (r *Registry) addSubscriber(name string, sub Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, exists := r.streams[name]
	if !exists {
		return errors.Wrap(ErrStreamNotFound, name)
	}
	s.subscribers = append(s.subscribers, sub)

	if s.metadata != nil {
		sub.SendMetadata(s.metadata)
	}
	if s.avcSequenceHeader != nil {
		sub.SendVideo(s.avcSequenceHeader, 0)
	}
	if s.aacSequenceHeader != nil {
		sub.SendAudio(s.aacSequenceHeader, 0)
	}
	r.logger.Debug("registered subscriber", zap.String("stream", name), zap.String("session", sub.ID()))
	return nil
}

func (r *Registry) removeSubscriber(name string, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, exists := r.streams[name]
	if !exists {
		return
	}
	last := len(s.subscribers) - 1
	for i, sub := range s.subscribers {
		if sub.ID() == sessionID {
			// Swap with the last subscriber to avoid shifting the rest
			s.subscribers[i] = s.subscribers[last]
			s.subscribers[last] = nil
			s.subscribers = s.subscribers[:last]
			return
		}
	}
}

// forEach calls f for every subscriber of name with the registry read locked.
func (r *Registry) forEach(name string, f func(Subscriber)) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, exists := r.streams[name]
	if !exists {
		return errors.Wrap(ErrStreamNotFound, name)
	}
	for _, sub := range s.subscribers {
		f(sub)
	}
	return nil
}

// update changes the cached state of a stream.
func (r *Registry) update(name string, f func(*stream)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, exists := r.streams[name]
	if !exists {
		return errors.Wrap(ErrStreamNotFound, name)
	}
	f(s)
	return nil
}

func (r *Registry) StreamExists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.streams[name]
	return exists
}

// Streams returns the names of every stream being published, sorted.
func (r *Registry) Streams() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.streams))
	for name := range r.streams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) NumberOfSubscribers(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, exists := r.streams[name]; exists {
		return len(s.subscribers)
	}
	return 0
}
