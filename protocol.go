package mrjob

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is a single key/value pair flowing through a step. Key and value
// types are owned by the active protocol; the harness only relies on key
// equality (for grouping) and on encoded bytes (for secondary sort).
type Record struct {
	Key   any
	Value any
}

// Protocol converts between raw encoded lines and decoded key/value pairs.
// Decode and Encode must be inverses with respect to the record's logical
// value, though not necessarily byte-identical.
type Protocol interface {
	Decode(line []byte) (key, value any, err error)
	Encode(key, value any) ([]byte, error)
}

// groupKey renders a decoded key in a canonical form so that logically equal
// keys land in the same reduce group regardless of which worker emitted them.
func groupKey(key any) (string, error) {
	b, err := json.Marshal(key)
	if err != nil {
		return "", fmt.Errorf("ungroupable key %v: %v", key, err)
	}
	return string(b), nil
}

// JSONProtocol encodes records as tab-separated JSON key and JSON value.
type JSONProtocol struct{}

func (JSONProtocol) Decode(line []byte) (any, any, error) {
	rawKey, rawValue, found := bytes.Cut(line, []byte{'\t'})
	if !found {
		return nil, nil, fmt.Errorf("no tab separator in JSON record")
	}

	var key, value any
	if err := json.Unmarshal(rawKey, &key); err != nil {
		return nil, nil, fmt.Errorf("bad JSON key: %v", err)
	}
	if err := json.Unmarshal(rawValue, &value); err != nil {
		return nil, nil, fmt.Errorf("bad JSON value: %v", err)
	}
	return key, value, nil
}

func (JSONProtocol) Encode(key, value any) ([]byte, error) {
	rawKey, err := json.Marshal(key)
	if err != nil {
		return nil, err
	}
	rawValue, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	line := make([]byte, 0, len(rawKey)+len(rawValue)+1)
	line = append(line, rawKey...)
	line = append(line, '\t')
	line = append(line, rawValue...)
	return line, nil
}

// JSONValueProtocol encodes only the value as JSON; keys are discarded on
// encode and read back as nil.
type JSONValueProtocol struct{}

func (JSONValueProtocol) Decode(line []byte) (any, any, error) {
	var value any
	if err := json.Unmarshal(line, &value); err != nil {
		return nil, nil, fmt.Errorf("bad JSON value: %v", err)
	}
	return nil, value, nil
}

func (JSONValueProtocol) Encode(key, value any) ([]byte, error) {
	return json.Marshal(value)
}

// TextProtocol encodes records as tab-separated plain-text key and value.
// A line without a tab decodes to the whole line as key and an empty value.
type TextProtocol struct{}

func (TextProtocol) Decode(line []byte) (any, any, error) {
	rawKey, rawValue, _ := bytes.Cut(line, []byte{'\t'})
	return string(rawKey), string(rawValue), nil
}

func (TextProtocol) Encode(key, value any) ([]byte, error) {
	return []byte(fmt.Sprintf("%s\t%s", toText(key), toText(value))), nil
}

// TextValueProtocol reads each line as a string value with a nil key.
type TextValueProtocol struct{}

func (TextValueProtocol) Decode(line []byte) (any, any, error) {
	return nil, string(line), nil
}

func (TextValueProtocol) Encode(key, value any) ([]byte, error) {
	return []byte(toText(value)), nil
}

// RawValueProtocol passes each line through as an uninterpreted byte value.
type RawValueProtocol struct{}

func (RawValueProtocol) Decode(line []byte) (any, any, error) {
	value := make([]byte, len(line))
	copy(value, line)
	return nil, value, nil
}

func (RawValueProtocol) Encode(key, value any) ([]byte, error) {
	if b, ok := value.([]byte); ok {
		return b, nil
	}
	return []byte(toText(value)), nil
}

func toText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
