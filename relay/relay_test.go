package relay

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/pkg/errors"
	rtmp "github.com/torresjeff/rtmpcore"
)

type recordingSubscriber struct {
	id       string
	received []string
}

func (s *recordingSubscriber) ID() string {
	return s.id
}

func (s *recordingSubscriber) SendMetadata(metadata *rtmp.StreamMetadata) {
	s.received = append(s.received, fmt.Sprintf("metadata %vx%v", metadata.Width, metadata.Height))
}

func (s *recordingSubscriber) SendAudio(data []byte, timestamp uint32) {
	s.received = append(s.received, fmt.Sprintf("audio %x@%d", data, timestamp))
}

func (s *recordingSubscriber) SendVideo(data []byte, timestamp uint32) {
	s.received = append(s.received, fmt.Sprintf("video %x@%d", data, timestamp))
}

func (s *recordingSubscriber) SendEndOfStream() {
	s.received = append(s.received, "end")
}

var (
	avcSequenceHeader = []byte{0x17, 0x00, 0x01}
	avcKeyFrame       = []byte{0x17, 0x01, 0x02}
	avcInterFrame     = []byte{0x27, 0x01, 0x03}
	aacSequenceHeader = []byte{0xAF, 0x00, 0x12}
	aacFrame          = []byte{0xAF, 0x01, 0x21}
)

func newBroadcaster() *Broadcaster {
	return NewBroadcaster(NewRegistry(nil), nil)
}

func TestRegisterPublisher(t *testing.T) {
	b := newBroadcaster()
	if err := b.RegisterPublisher("live/mystream", "a"); err != nil {
		t.Fatalf("expected no error, but got %v", err)
	}
	if err := b.RegisterPublisher("live/mystream", "b"); errors.Cause(err) != ErrStreamExists {
		t.Errorf("expected error to be %v, but got %v", ErrStreamExists, err)
	}
	if !b.StreamExists("live/mystream") {
		t.Errorf("expected live/mystream to exist")
	}

	if err := b.DestroyPublisher("live/mystream", "b"); errors.Cause(err) != ErrStreamNotFound {
		t.Errorf("expected only the publisher to destroy its stream, but got %v", err)
	}
	if err := b.DestroyPublisher("live/mystream", "a"); err != nil {
		t.Errorf("expected no error, but got %v", err)
	}
	if b.StreamExists("live/mystream") {
		t.Errorf("expected live/mystream not to exist")
	}
	if err := b.RegisterPublisher("live/mystream", "b"); err != nil {
		t.Errorf("expected the stream to be published again, but got %v", err)
	}
}

func TestRegisterSubscriberToUnknownStream(t *testing.T) {
	b := newBroadcaster()
	err := b.RegisterSubscriber("live/missing", &recordingSubscriber{id: "a"})
	if errors.Cause(err) != ErrStreamNotFound {
		t.Errorf("expected error to be %v, but got %v", ErrStreamNotFound, err)
	}
}

func TestBroadcast(t *testing.T) {
	b := newBroadcaster()
	if err := b.RegisterPublisher("live/mystream", "publisher"); err != nil {
		t.Fatalf("expected no error, but got %v", err)
	}

	// Nobody is watching yet
	if err := b.BroadcastMetadata("live/mystream", &rtmp.StreamMetadata{Width: 1280, Height: 720}); err != nil {
		t.Errorf("expected no error, but got %v", err)
	}
	steps := []struct {
		video     bool
		data      []byte
		timestamp uint32
	}{
		{true, avcSequenceHeader, 0},
		{false, aacSequenceHeader, 0},
		{true, avcKeyFrame, 0},
		{false, aacFrame, 23},
	}
	for _, step := range steps {
		var err error
		if step.video {
			err = b.BroadcastVideo("live/mystream", step.data, step.timestamp)
		} else {
			err = b.BroadcastAudio("live/mystream", step.data, step.timestamp)
		}
		if err != nil {
			t.Errorf("expected no error, but got %v", err)
		}
	}

	first := &recordingSubscriber{id: "first"}
	if err := b.RegisterSubscriber("live/mystream", first); err != nil {
		t.Fatalf("expected no error, but got %v", err)
	}
	expected := []string{"metadata 1280x720", "video 170001@0", "audio af0012@0"}
	if !reflect.DeepEqual(first.received, expected) {
		t.Errorf("expected cached headers %v, but got %v", expected, first.received)
	}

	second := &recordingSubscriber{id: "second"}
	if err := b.RegisterSubscriber("live/mystream", second); err != nil {
		t.Fatalf("expected no error, but got %v", err)
	}
	first.received, second.received = nil, nil

	if err := b.BroadcastVideo("live/mystream", avcInterFrame, 33); err != nil {
		t.Errorf("expected no error, but got %v", err)
	}
	b.DestroySubscriber("live/mystream", "first")
	if err := b.BroadcastAudio("live/mystream", aacFrame, 46); err != nil {
		t.Errorf("expected no error, but got %v", err)
	}
	if err := b.DestroyPublisher("live/mystream", "publisher"); err != nil {
		t.Errorf("expected no error, but got %v", err)
	}

	if expected := []string{"video 270103@33"}; !reflect.DeepEqual(first.received, expected) {
		t.Errorf("expected first subscriber to get %v, but got %v", expected, first.received)
	}
	if expected := []string{"video 270103@33", "audio af0121@46", "end"}; !reflect.DeepEqual(second.received, expected) {
		t.Errorf("expected second subscriber to get %v, but got %v", expected, second.received)
	}
}

func TestBroadcastToUnknownStream(t *testing.T) {
	b := newBroadcaster()
	tests := []struct {
		name      string
		broadcast func() error
	}{
		{"metadata", func() error { return b.BroadcastMetadata("live/missing", &rtmp.StreamMetadata{}) }},
		{"audio", func() error { return b.BroadcastAudio("live/missing", aacFrame, 0) }},
		{"audio sequence header", func() error { return b.BroadcastAudio("live/missing", aacSequenceHeader, 0) }},
		{"video", func() error { return b.BroadcastVideo("live/missing", avcKeyFrame, 0) }},
		{"video sequence header", func() error { return b.BroadcastVideo("live/missing", avcSequenceHeader, 0) }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if err := test.broadcast(); errors.Cause(err) != ErrStreamNotFound {
				t.Errorf("expected error to be %v, but got %v", ErrStreamNotFound, err)
			}
		})
	}
}

func TestRegistryBookkeeping(t *testing.T) {
	r := NewRegistry(nil)
	for _, name := range []string{"live/b", "live/a"} {
		if err := r.RegisterPublisher(name, name); err != nil {
			t.Fatalf("expected no error, but got %v", err)
		}
	}
	if streams := r.Streams(); !reflect.DeepEqual(streams, []string{"live/a", "live/b"}) {
		t.Errorf("expected streams to be [live/a live/b], but got %v", streams)
	}

	for _, id := range []string{"x", "y", "z"} {
		if err := r.addSubscriber("live/a", &recordingSubscriber{id: id}); err != nil {
			t.Fatalf("expected no error, but got %v", err)
		}
	}
	r.removeSubscriber("live/a", "x")
	r.removeSubscriber("live/a", "unknown")
	r.removeSubscriber("live/missing", "y")
	if n := r.NumberOfSubscribers("live/a"); n != 2 {
		t.Errorf("expected 2 subscribers, but got %d", n)
	}

	var ids []string
	if err := r.forEach("live/a", func(sub Subscriber) { ids = append(ids, sub.ID()) }); err != nil {
		t.Fatalf("expected no error, but got %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"z", "y"}) {
		t.Errorf("expected subscribers to be [z y], but got %v", ids)
	}
}
