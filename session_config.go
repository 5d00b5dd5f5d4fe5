package rtmp

import (
	"github.com/pkg/errors"
	"github.com/torresjeff/rtmpcore/chunk"
	"github.com/torresjeff/rtmpcore/config"
	"go.uber.org/zap"
)

type ServerConfig struct {
	FlashMediaServerVersion string
	Capabilities            float64
	// ChunkSize is announced to the client as soon as the handshake completes.
	ChunkSize     uint32
	WindowAckSize uint32
	PeerBandwidth uint32
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		FlashMediaServerVersion: config.FlashMediaServerVersion,
		Capabilities:            config.Capabilities,
		ChunkSize:               config.DefaultChunkSize,
		WindowAckSize:           config.DefaultClientWindowSize,
		PeerBandwidth:           config.DefaultClientWindowSize,
	}
}

type ClientConfig struct {
	FlashVersion string
	// TcURL is sent with the connect request, ie. rtmp://localhost:1935/live.
	TcURL string
	// PlaybackBufferLength is the buffer length in milliseconds announced before requesting playback.
	PlaybackBufferLength uint32
	WindowAckSize        uint32
	ChunkSize            uint32
	Logger               *zap.Logger
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		FlashVersion:         config.DefaultFlashVersion,
		PlaybackBufferLength: config.DefaultPlaybackBufferLength,
		WindowAckSize:        config.DefaultClientWindowSize,
		ChunkSize:            config.DefaultChunkSize,
	}
}

func checkChunkSize(size uint32) error {
	if size == 0 || size > chunk.MaxChunkSizeLimit {
		return errors.Wrapf(chunk.ErrInvalidChunkSize, "got %d", size)
	}
	return nil
}

func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
