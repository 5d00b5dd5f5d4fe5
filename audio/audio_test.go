package audio

import (
	"testing"

	"github.com/pkg/errors"
)

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name     string
		payload  []byte
		expected Header
	}{
		{"aac sequence header", []byte{0xAF, 0x00, 0x12, 0x10}, Header{AAC, Rate44KHz, Size16Bit, Stereo, AACSequenceHeader}},
		{"aac raw", []byte{0xAF, 0x01, 0x21}, Header{AAC, Rate44KHz, Size16Bit, Stereo, AACRaw}},
		{"mp3 mono", []byte{0x2A, 0xFF}, Header{MP3, Rate22KHz, Size16Bit, Mono, 0}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			h, err := ParseHeader(test.payload)
			if err != nil {
				t.Fatalf("expected no error, but got %v", err)
			}
			if h != test.expected {
				t.Errorf("expected header to be %+v, but got %+v", test.expected, h)
			}
		})
	}
}

func TestParseHeaderShortPayload(t *testing.T) {
	for _, payload := range [][]byte{{}, {0xAF}} {
		if _, err := ParseHeader(payload); errors.Cause(err) != ErrShortPayload {
			t.Errorf("expected error to be %v, but got %v", ErrShortPayload, err)
		}
	}
}

func TestIsSequenceHeader(t *testing.T) {
	if !IsSequenceHeader([]byte{0xAF, 0x00}) {
		t.Errorf("expected AAC packet type 0 to be a sequence header")
	}
	if IsSequenceHeader([]byte{0xAF, 0x01}) {
		t.Errorf("expected AAC raw frame not to be a sequence header")
	}
	if IsSequenceHeader([]byte{0x2F, 0x00}) {
		t.Errorf("expected MP3 frame not to be a sequence header")
	}
}

func TestFormatString(t *testing.T) {
	tests := []struct {
		format   Format
		expected string
	}{
		{AAC, "AAC"},
		{MP3, "MP3"},
		{G711AlawLogPCM, "G.711 A-law"},
		{Format(12), "Format(12)"},
	}
	for _, test := range tests {
		if got := test.format.String(); got != test.expected {
			t.Errorf("expected format to be %s, but got %s", test.expected, got)
		}
	}
}
