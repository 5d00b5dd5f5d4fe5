package main

import (
	"net"
	"testing"
	"time"

	"github.com/pkg/errors"
	rtmp "github.com/torresjeff/rtmpcore"
	"go.uber.org/zap"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		url      string
		expected target
	}{
		{"rtmp://localhost/live/mystream", target{Addr: "localhost:1935", App: "live", StreamKey: "mystream", TcURL: "rtmp://localhost:1935/live"}},
		{"rtmp://example.com:1940/live/mystream/", target{Addr: "example.com:1940", App: "live", StreamKey: "mystream", TcURL: "rtmp://example.com:1940/live"}},
		{"rtmp://localhost/app/instance/key?token=abc", target{Addr: "localhost:1935", App: "app/instance", StreamKey: "key?token=abc", TcURL: "rtmp://localhost:1935/app/instance"}},
	}
	for _, test := range tests {
		t.Run(test.url, func(t *testing.T) {
			got, err := parseURL(test.url)
			if err != nil {
				t.Fatalf("expected no error, but got %v", err)
			}
			if got != test.expected {
				t.Errorf("expected target to be %+v, but got %+v", test.expected, got)
			}
		})
	}

	invalid := []struct {
		url string
		err error
	}{
		{"http://localhost/live/mystream", ErrInvalidScheme},
		{"localhost/live/mystream", ErrInvalidScheme},
		{"rtmp://localhost/mystream", ErrInvalidPath},
		{"rtmp://localhost/", ErrInvalidPath},
	}
	for _, test := range invalid {
		t.Run(test.url, func(t *testing.T) {
			if _, err := parseURL(test.url); errors.Cause(err) != test.err {
				t.Errorf("expected error to be %v, but got %v", test.err, err)
			}
		})
	}
}

// fakeServer answers one player on conn. onPlay is called once playback of the stream named "mystream" was accepted,
// any other stream is rejected.
func fakeServer(conn net.Conn, onPlay func(s *rtmp.ServerSession, streamID uint32) ([]rtmp.Result, error)) <-chan error {
	errs := make(chan error, 1)
	out := make(chan []byte, 1024)
	go func() {
		for b := range out {
			if _, err := conn.Write(b); err != nil {
				return
			}
		}
	}()

	go func() {
		defer close(out)
		errs <- func() error {
			session, err := rtmp.NewServerSession(rtmp.DefaultServerConfig())
			if err != nil {
				return err
			}
			send := func(results []rtmp.Result, err error) ([]rtmp.Result, error) {
				if err != nil {
					return nil, err
				}
				var events []rtmp.Result
				for _, r := range results {
					if packet, ok := r.(rtmp.OutboundPacket); ok {
						out <- packet.Bytes
						continue
					}
					events = append(events, r)
				}
				return events, nil
			}

			buf := make([]byte, 4096)
			for {
				n, err := conn.Read(buf)
				if err != nil {
					// The player hung up
					return nil
				}
				events, err := send(session.HandleInput(buf[:n]))
				if err != nil {
					return err
				}
				for _, event := range events {
					switch ev := event.(type) {
					case rtmp.ConnectionRequested:
						_, err = send(session.AcceptRequest(ev.RequestID))
					case rtmp.PlayRequested:
						if ev.StreamKey != "mystream" {
							_, err = send(session.RejectRequest(ev.RequestID, "not found"))
							break
						}
						if _, err = send(session.AcceptRequest(ev.RequestID)); err == nil {
							_, err = send(onPlay(session, ev.StreamID))
						}
					}
					if err != nil {
						return err
					}
				}
			}
		}()
	}()
	return errs
}

type playResult struct {
	stats stats
	err   error
}

func play(t *testing.T, url string, onPlay func(s *rtmp.ServerSession, streamID uint32) ([]rtmp.Result, error)) playResult {
	t.Helper()
	target, err := parseURL(url)
	if err != nil {
		t.Fatalf("expected no error, but got %v", err)
	}
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()
	serverErrs := fakeServer(serverSide, onPlay)

	p, start, err := newPlayer(clientSide, target, zap.NewNop())
	if err != nil {
		t.Fatalf("expected no error, but got %v", err)
	}
	done := make(chan playResult, 1)
	go func() {
		s, err := p.run(start)
		done <- playResult{stats: s, err: err}
	}()

	var result playResult
	select {
	case result = <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for the player")
	}

	clientSide.Close()
	select {
	case err := <-serverErrs:
		if err != nil {
			t.Errorf("expected no error from the server, but got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for the server")
	}
	return result
}

func TestPlayerPlaysUntilStreamEnds(t *testing.T) {
	result := play(t, "rtmp://localhost/live/mystream", func(s *rtmp.ServerSession, streamID uint32) ([]rtmp.Result, error) {
		var results []rtmp.Result
		packets := []func() (rtmp.OutboundPacket, error){
			func() (rtmp.OutboundPacket, error) {
				return s.SendMetadata(streamID, &rtmp.StreamMetadata{Width: 1920, Height: 1080})
			},
			func() (rtmp.OutboundPacket, error) { return s.SendVideoData(streamID, []byte{0x17, 0x00, 0x01}, 0) },
			func() (rtmp.OutboundPacket, error) { return s.SendAudioData(streamID, []byte{0xAF, 0x00, 0x12}, 0) },
			func() (rtmp.OutboundPacket, error) { return s.SendVideoData(streamID, []byte{0x17, 0x01, 0x02}, 33) },
			func() (rtmp.OutboundPacket, error) { return s.SendVideoData(streamID, []byte{0x27, 0x01, 0x03}, 66) },
			func() (rtmp.OutboundPacket, error) { return s.SendAudioData(streamID, []byte{0xAF, 0x01, 0x04}, 70) },
		}
		for _, packet := range packets {
			p, err := packet()
			if err != nil {
				return nil, err
			}
			results = append(results, p)
		}
		finished, err := s.FinishPlaying(streamID)
		if err != nil {
			return nil, err
		}
		return append(results, finished...), nil
	})

	if result.err != nil {
		t.Fatalf("expected no error, but got %v", result.err)
	}
	expected := stats{VideoFrames: 3, KeyFrames: 2, AudioFrames: 2, Bytes: 15, LastTimestamp: 70}
	got := result.stats
	got.Metadata = nil
	if got != expected {
		t.Errorf("expected stats to be %+v, but got %+v", expected, got)
	}
	if result.stats.Metadata == nil || result.stats.Metadata.Width != 1920 {
		t.Errorf("expected metadata to be received, but got %+v", result.stats.Metadata)
	}
}

func TestPlayerStopsWhenRejected(t *testing.T) {
	result := play(t, "rtmp://localhost/live/missing", func(s *rtmp.ServerSession, streamID uint32) ([]rtmp.Result, error) {
		return nil, nil
	})
	if errors.Cause(result.err) != ErrRejected {
		t.Errorf("expected error to be %v, but got %v", ErrRejected, result.err)
	}
}
