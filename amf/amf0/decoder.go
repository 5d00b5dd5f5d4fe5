package amf0

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/pkg/errors"
)

// MaxNestingDepth is how deep objects and arrays may be nested inside each other when decoding.
const MaxNestingDepth = 64

// Decode decodes the first value in b and returns it along with the number of bytes it spanned.
// Numbers are always returned as float64. See the package documentation for the other types.
func Decode(b []byte) (interface{}, int, error) {
	return decode(b, 0)
}

func decode(b []byte, depth int) (interface{}, int, error) {
	if len(b) < 1 {
		return nil, 0, ErrUnexpectedEnd
	}

	switch b[0] {
	case TypeObject, TypeTypedObject, TypeECMAArray, TypeStrictArray:
		if depth >= MaxNestingDepth {
			return nil, 0, errors.Wrapf(ErrUnsupportedType, "values nested deeper than %d levels", MaxNestingDepth)
		}
	}

	switch b[0] {
	case TypeNumber:
		if len(b) < 9 {
			return nil, 0, ErrUnexpectedEnd
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b[1:9])), 9, nil
	case TypeBoolean:
		if len(b) < 2 {
			return nil, 0, ErrUnexpectedEnd
		}
		return b[1] != 0, 2, nil
	case TypeString:
		s, n, err := decodeShortString(b[1:])
		return s, n + 1, err
	case TypeLongString:
		if len(b) < 5 {
			return nil, 0, ErrUnexpectedEnd
		}
		length := uint64(binary.BigEndian.Uint32(b[1:5]))
		if uint64(len(b)-5) < length {
			return nil, 0, ErrUnexpectedEnd
		}
		return string(b[5 : 5+length]), 5 + int(length), nil
	case TypeObject:
		m, n, err := decodeProperties(b[1:], depth+1)
		return m, n + 1, err
	case TypeTypedObject:
		// The class name is dropped, the properties are returned as a regular object
		_, nameLength, err := decodeShortString(b[1:])
		if err != nil {
			return nil, 0, err
		}
		m, n, err := decodeProperties(b[1+nameLength:], depth+1)
		return m, 1 + nameLength + n, err
	case TypeNull:
		return nil, 1, nil
	case TypeUndefined:
		return Undefined{}, 1, nil
	case TypeECMAArray:
		if len(b) < 5 {
			return nil, 0, ErrUnexpectedEnd
		}
		// The associative count is only a hint, the array ends with an object end marker like an object does
		m, n, err := decodeProperties(b[5:], depth+1)
		return ECMAArray(m), n + 5, err
	case TypeStrictArray:
		if len(b) < 5 {
			return nil, 0, ErrUnexpectedEnd
		}
		count := binary.BigEndian.Uint32(b[1:5])
		pos := 5
		var values []interface{}
		for i := uint32(0); i < count; i++ {
			v, n, err := decode(b[pos:], depth+1)
			if err != nil {
				return nil, 0, errors.WithMessagef(err, "decoding strict array element %d", i)
			}
			values = append(values, v)
			pos += n
		}
		if values == nil {
			values = []interface{}{}
		}
		return values, pos, nil
	case TypeDate:
		if len(b) < 11 {
			return nil, 0, ErrUnexpectedEnd
		}
		milliseconds := int64(math.Float64frombits(binary.BigEndian.Uint64(b[1:9])))
		return time.Unix(0, milliseconds*int64(time.Millisecond)), 11, nil
	default:
		return nil, 0, errors.Wrapf(ErrUnsupportedType, "cannot decode type with marker 0x%02x", b[0])
	}
}

// DecodeAll decodes every value in b.
func DecodeAll(b []byte) ([]interface{}, error) {
	var values []interface{}
	for pos := 0; pos < len(b); {
		v, n, err := Decode(b[pos:])
		if err != nil {
			return nil, errors.WithMessagef(err, "decoding value at offset %d", pos)
		}
		values = append(values, v)
		pos += n
	}
	return values, nil
}

func decodeShortString(b []byte) (string, int, error) {
	if len(b) < 2 {
		return "", 0, ErrUnexpectedEnd
	}
	length := int(binary.BigEndian.Uint16(b))
	if len(b)-2 < length {
		return "", 0, ErrUnexpectedEnd
	}
	return string(b[2 : 2+length]), 2 + length, nil
}

func isEndOfObject(b []byte) bool {
	return len(b) >= 3 && b[0] == 0x00 && b[1] == 0x00 && b[2] == TypeObjectEnd
}

// decodeProperties decodes key/value pairs until the object end marker and returns how many bytes were read,
// end marker included.
func decodeProperties(b []byte, depth int) (map[string]interface{}, int, error) {
	m := make(map[string]interface{})
	pos := 0
	for {
		if isEndOfObject(b[pos:]) {
			return m, pos + 3, nil
		}
		key, n, err := decodeShortString(b[pos:])
		if err != nil {
			return nil, 0, err
		}
		pos += n
		val, n, err := decode(b[pos:], depth)
		if err != nil {
			return nil, 0, errors.WithMessagef(err, "decoding property %q", key)
		}
		m[key] = val
		pos += n
	}
}

// Size returns the number of bytes the value v has in its AMF0 representation, or 0 if v can't be encoded.
// Eg: a value v of "test" will return 7 (3 bytes for the header, 4 bytes for the string)
func Size(v interface{}) uint64 {
	switch v := v.(type) {
	case float64, float32, int, int32, int64, uint, uint8, uint16, uint32, uint64:
		return 9
	case bool:
		return 2
	case string:
		length := uint64(len(v))
		if length < 65535 {
			return 3 + length
		}
		return 5 + length
	case map[string]interface{}:
		return 1 + propertiesSize(v)
	case nil, Undefined:
		return 1
	case ECMAArray:
		return 5 + propertiesSize(v)
	case []interface{}:
		size := uint64(5)
		for _, item := range v {
			size += Size(item)
		}
		return size
	case time.Time:
		return 11
	default:
		return 0
	}
}

func propertiesSize(m map[string]interface{}) uint64 {
	var size uint64
	for k, val := range m {
		size += 2 + uint64(len(k))
		size += Size(val)
	}
	// object end marker
	return size + 3
}
