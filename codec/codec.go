// Package codec implements format-prefixed serialization: encoded values
// carry a single leading format byte, so stored blobs stay self-describing
// and backends can change their preferred format without migrations.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Format identifies a serialization format.
type Format uint8

// Serialization formats.
const (
	AUTO    Format = 0
	RAW     Format = 1
	CBOR    Format = 67 // C
	JSON    Format = 74 // J
	MsgPack Format = 77 // M
)

// DefaultFormat is used when serializing with AUTO.
var DefaultFormat = JSON

var (
	ErrNoMoreSpace   = errors.New("codec: no more space left after reading format")
	ErrUnknownFormat = errors.New("codec: format is unknown")
	ErrIsRaw         = errors.New("codec: given data is in raw format")
)

func (f Format) String() string {
	switch f {
	case AUTO:
		return "auto"
	case RAW:
		return "raw"
	case CBOR:
		return "cbor"
	case JSON:
		return "json"
	case MsgPack:
		return "msgpack"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(f))
	}
}

// ParseFormat returns the format with the given name, as used in
// configuration values.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "", "auto":
		return AUTO, nil
	case "raw":
		return RAW, nil
	case "cbor":
		return CBOR, nil
	case "json":
		return JSON, nil
	case "msgpack":
		return MsgPack, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Dump serializes t into a format-prefixed blob. With AUTO, []byte values are
// dumped as RAW and everything else with the default format.
func Dump(t interface{}, format Format) ([]byte, error) {
	if format == AUTO {
		if _, ok := t.([]byte); ok {
			format = RAW
		} else {
			format = DefaultFormat
		}
	}

	var data []byte
	var err error
	switch format {
	case RAW:
		raw, ok := t.([]byte)
		if !ok {
			return nil, fmt.Errorf("codec: cannot dump %T as raw", t)
		}
		data = raw
	case CBOR:
		data, err = cbor.Marshal(t)
	case JSON:
		data, err = json.Marshal(t)
	case MsgPack:
		data, err = msgpack.Marshal(t)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, uint8(format))
	}
	if err != nil {
		return nil, err
	}

	blob := make([]byte, 0, len(data)+1)
	blob = append(blob, uint8(format))
	return append(blob, data...), nil
}

// Load deserializes a format-prefixed blob into t and returns the detected
// format. RAW blobs cannot be loaded into a value, use Raw instead.
func Load(data []byte, t interface{}) (Format, error) {
	if len(data) < 2 {
		return 0, ErrNoMoreSpace
	}

	format := Format(data[0])
	return format, LoadAsFormat(data[1:], format, t)
}

// LoadAsFormat deserializes data, which carries no format prefix, into t.
func LoadAsFormat(data []byte, format Format, t interface{}) error {
	switch format {
	case RAW:
		return ErrIsRaw
	case CBOR:
		return cbor.Unmarshal(data, t)
	case JSON:
		return json.Unmarshal(data, t)
	case MsgPack:
		return msgpack.Unmarshal(data, t)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownFormat, uint8(format))
	}
}

// Raw returns the payload of a format-prefixed blob in RAW format.
func Raw(data []byte) ([]byte, error) {
	if len(data) < 1 {
		return nil, ErrNoMoreSpace
	}
	if Format(data[0]) != RAW {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, uint8(data[0]))
	}
	return data[1:], nil
}
