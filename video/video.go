// Package video describes the FLV video tag header that starts every RTMP video message payload.
package video

import (
	"fmt"

	"github.com/pkg/errors"
)

// As defined in the FLV spec: https://www.adobe.com/content/dam/acom/en/devnet/flv/video_file_format_spec_v10_1.pdf

type FrameType uint8

const (
	KeyFrame             FrameType = 1
	InterFrame           FrameType = 2
	DisposableInterFrame FrameType = 3
	GeneratedKeyFrame    FrameType = 4
	// Video info/command frame
	CommandFrame FrameType = 5
)

type Codec uint8

const (
	SorensonH263    Codec = 2
	ScreenVideo     Codec = 3
	VP6             Codec = 4
	VP6AlphaChannel Codec = 5
	ScreenVideoV2   Codec = 6
	H264            Codec = 7
)

func (c Codec) String() string {
	switch c {
	case SorensonH263:
		return "Sorenson H.263"
	case ScreenVideo:
		return "Screen video"
	case VP6:
		return "On2 VP6"
	case VP6AlphaChannel:
		return "On2 VP6 with alpha channel"
	case ScreenVideoV2:
		return "Screen video version 2"
	case H264:
		return "AVC"
	}
	return fmt.Sprintf("Codec(%d)", uint8(c))
}

type AVCPacketType uint8

const (
	AVCSequenceHeader AVCPacketType = 0
	AVCNALU           AVCPacketType = 1
	AVCEndOfSequence  AVCPacketType = 2
)

var ErrShortPayload = errors.New("video payload is too short to hold a tag header")

type Header struct {
	FrameType FrameType
	Codec     Codec
	// AVCPacketType is only meaningful when Codec is H264.
	AVCPacketType AVCPacketType
}

// ParseHeader decodes the tag header at the start of a video message payload.
func ParseHeader(payload []byte) (Header, error) {
	if len(payload) < 1 {
		return Header{}, ErrShortPayload
	}
	h := Header{
		FrameType: FrameType(payload[0] >> 4),
		Codec:     Codec(payload[0] & 0x0F),
	}
	if h.Codec == H264 {
		if len(payload) < 2 {
			return Header{}, errors.Wrap(ErrShortPayload, "missing AVC packet type")
		}
		h.AVCPacketType = AVCPacketType(payload[1])
	}
	return h, nil
}

// IsSequenceHeader reports whether payload carries an AVC sequence header (the decoder configuration record).
func IsSequenceHeader(payload []byte) bool {
	h, err := ParseHeader(payload)
	return err == nil && h.Codec == H264 && h.AVCPacketType == AVCSequenceHeader
}

// IsKeyFrame reports whether payload holds a key frame. Sequence headers count as key frames.
func IsKeyFrame(payload []byte) bool {
	h, err := ParseHeader(payload)
	return err == nil && (h.FrameType == KeyFrame || h.FrameType == GeneratedKeyFrame)
}
