package amf0

import (
	"encoding/binary"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// Encode returns the AMF0 representation of v.
func Encode(v interface{}) ([]byte, error) {
	return appendValue(make([]byte, 0, Size(v)), v)
}

// EncodeAll encodes each value in order and concatenates the results, which is how command and data message
// payloads are laid out.
func EncodeAll(values ...interface{}) ([]byte, error) {
	var size uint64
	for _, v := range values {
		size += Size(v)
	}
	buf := make([]byte, 0, size)
	var err error
	for i, v := range values {
		if buf, err = appendValue(buf, v); err != nil {
			return nil, errors.WithMessagef(err, "encoding value %d", i)
		}
	}
	return buf, nil
}

func appendValue(buf []byte, v interface{}) ([]byte, error) {
	switch v := v.(type) {
	case float64:
		return appendNumber(buf, v), nil
	case float32:
		return appendNumber(buf, float64(v)), nil
	case int:
		return appendNumber(buf, float64(v)), nil
	case int32:
		return appendNumber(buf, float64(v)), nil
	case int64:
		return appendNumber(buf, float64(v)), nil
	case uint:
		return appendNumber(buf, float64(v)), nil
	case uint8:
		return appendNumber(buf, float64(v)), nil
	case uint16:
		return appendNumber(buf, float64(v)), nil
	case uint32:
		return appendNumber(buf, float64(v)), nil
	case uint64:
		return appendNumber(buf, float64(v)), nil
	case bool:
		return appendBoolean(buf, v), nil
	case string:
		return appendString(buf, v), nil
	case map[string]interface{}:
		buf = append(buf, TypeObject)
		return appendProperties(buf, v)
	case nil:
		return append(buf, TypeNull), nil
	case Undefined:
		return append(buf, TypeUndefined), nil
	case ECMAArray:
		buf = append(buf, TypeECMAArray)
		buf = appendUint32(buf, uint32(len(v)))
		return appendProperties(buf, v)
	case []interface{}:
		buf = append(buf, TypeStrictArray)
		buf = appendUint32(buf, uint32(len(v)))
		var err error
		for _, item := range v {
			if buf, err = appendValue(buf, item); err != nil {
				return nil, err
			}
		}
		return buf, nil
	case time.Time:
		return appendDate(buf, v), nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedType, "cannot encode type %T", v)
	}
}

// appendProperties writes the key/value pairs of an object followed by the object end marker.
// Keys are sorted so the same object always encodes to the same bytes.
func appendProperties(buf []byte, m map[string]interface{}) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var err error
	for _, key := range keys {
		// keys don't carry the string type marker
		buf = appendUint16(buf, uint16(len(key)))
		buf = append(buf, key...)
		if buf, err = appendValue(buf, m[key]); err != nil {
			return nil, errors.WithMessagef(err, "encoding property %q", key)
		}
	}
	return append(buf, 0x00, 0x00, TypeObjectEnd), nil
}

func appendDate(buf []byte, t time.Time) []byte {
	milliseconds := t.UnixNano() / int64(time.Millisecond)
	buf = append(buf, TypeDate)
	buf = appendUint64(buf, math.Float64bits(float64(milliseconds)))
	// time zone, which should stay 0
	return append(buf, 0x00, 0x00)
}

func appendString(buf []byte, s string) []byte {
	if len(s) < 65535 {
		buf = append(buf, TypeString)
		buf = appendUint16(buf, uint16(len(s)))
	} else {
		buf = append(buf, TypeLongString)
		buf = appendUint32(buf, uint32(len(s)))
	}
	return append(buf, s...)
}

func appendBoolean(buf []byte, b bool) []byte {
	if b {
		return append(buf, TypeBoolean, 1)
	}
	return append(buf, TypeBoolean, 0)
}

func appendNumber(buf []byte, number float64) []byte {
	buf = append(buf, TypeNumber)
	return appendUint64(buf, math.Float64bits(number))
}

func appendUint16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func appendUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}
