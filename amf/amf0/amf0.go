// Package amf0 encodes and decodes Action Message Format 0 values, the encoding used by RTMP command and data messages.
//
// Values map to Go types as follows:
//
//	Number       float64 (any Go integer kind is accepted when encoding)
//	Boolean      bool
//	String       string (long strings are used automatically for strings of 65535 bytes or more)
//	Object       map[string]interface{}
//	Null         nil
//	Undefined    Undefined
//	ECMA Array   ECMAArray
//	Strict Array []interface{}
//	Date         time.Time
package amf0

import "github.com/pkg/errors"

type ECMAArray map[string]interface{}

// Undefined is the AMF0 undefined value.
type Undefined struct{}

const (
	TypeNumber      byte = 0x00
	TypeBoolean     byte = 0x01
	TypeString      byte = 0x02
	TypeObject      byte = 0x03
	TypeMovieClip   byte = 0x04 // reserved, not supported
	TypeNull        byte = 0x05
	TypeUndefined   byte = 0x06
	TypeReference   byte = 0x07
	TypeECMAArray   byte = 0x08
	TypeObjectEnd   byte = 0x09
	TypeStrictArray byte = 0x0A
	TypeDate        byte = 0x0B
	TypeLongString  byte = 0x0C
	TypeUnsupported byte = 0x0D
	TypeRecordSet   byte = 0x0E // reserved, not supported
	TypeXMLDocument byte = 0x0F
	TypeTypedObject byte = 0x10
)

var (
	ErrUnexpectedEnd   = errors.New("amf0: unexpected end of data")
	ErrUnsupportedType = errors.New("amf0: unsupported type")
)
