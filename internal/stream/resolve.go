package stream

import (
	"bytes"
	"encoding/json"

	"github.com/buger/jsonparser"
)

var jsonNull = json.RawMessage("null")

// Resolve returns the value carried by a record's result field in canonical
// compact form. A string whose content is itself JSON text is decoded once
// more; any other string resolves to itself. A missing result resolves to
// null. Resolve never fails.
//
// Object members keep their document order and strings are written without
// HTML escaping, so the canonical form doubles as the serialized text of the
// value.
func Resolve(raw json.RawMessage) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return jsonNull
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if inner := bytes.TrimSpace([]byte(s)); len(inner) > 0 && json.Valid(inner) {
				return canonical(inner)
			}
		}
	}
	return canonical(raw)
}

// Serialize returns the text form of a resolved value.
func Serialize(v json.RawMessage) string {
	if len(v) == 0 {
		return string(jsonNull)
	}
	return string(v)
}

// Kind reports the JSON type of a resolved value.
func Kind(v json.RawMessage) jsonparser.ValueType {
	_, t, _, err := jsonparser.Get(v)
	if err != nil {
		return jsonparser.Unknown
	}
	return t
}

// lookupString returns the string member key of an object value.
func lookupString(v json.RawMessage, key string) (string, bool) {
	val, t, _, err := jsonparser.Get(v, key)
	if err != nil || t != jsonparser.String {
		return "", false
	}
	return parseString(val), true
}

// lookupNumber returns the numeric member key of an object value, or 0 when
// it is missing or not a number.
func lookupNumber(v json.RawMessage, key string) float64 {
	val, t, _, err := jsonparser.Get(v, key)
	if err != nil || t != jsonparser.Number {
		return 0
	}
	f, err := jsonparser.ParseFloat(val)
	if err != nil {
		return 0
	}
	return f
}

// objectStrings returns the string members of an object value in document
// order. ok is false when v is not an object.
func objectStrings(v json.RawMessage) (values []string, ok bool) {
	if Kind(v) != jsonparser.Object {
		return nil, false
	}
	values = []string{}
	_ = jsonparser.ObjectEach(v, func(_ []byte, val []byte, t jsonparser.ValueType, _ int) error {
		if t != jsonparser.String {
			return nil
		}
		values = append(values, parseString(val))
		return nil
	})
	return values, true
}

// Member is one object member of a resolved value.
type Member struct {
	Key   string
	Value json.RawMessage
}

// Members returns the members of an object value in document order, or nil
// when v is not an object.
func Members(v json.RawMessage) []Member {
	if Kind(v) != jsonparser.Object {
		return nil
	}
	var out []Member
	_ = jsonparser.ObjectEach(v, func(key []byte, val []byte, t jsonparser.ValueType, _ int) error {
		out = append(out, Member{Key: string(key), Value: appendValue(nil, val, t)})
		return nil
	})
	return out
}

// quote encodes s as a JSON string.
func quote(s string) json.RawMessage {
	return appendString(nil, s)
}

// canonical re-encodes data compactly in document order. Repeated object
// keys are all kept; lookups through jsonparser see the first occurrence.
func canonical(data []byte) json.RawMessage {
	val, t, _, err := jsonparser.Get(data)
	if err != nil {
		return json.RawMessage(data)
	}
	return appendValue(nil, val, t)
}

func appendValue(dst []byte, val []byte, t jsonparser.ValueType) []byte {
	switch t {
	case jsonparser.String:
		return appendString(dst, parseString(val))

	case jsonparser.Object:
		dst = append(dst, '{')
		first := true
		_ = jsonparser.ObjectEach(val, func(key []byte, v []byte, vt jsonparser.ValueType, _ int) error {
			if !first {
				dst = append(dst, ',')
			}
			first = false
			dst = appendString(dst, string(key))
			dst = append(dst, ':')
			dst = appendValue(dst, v, vt)
			return nil
		})
		return append(dst, '}')

	case jsonparser.Array:
		dst = append(dst, '[')
		first := true
		_, _ = jsonparser.ArrayEach(val, func(v []byte, vt jsonparser.ValueType, _ int, _ error) {
			if !first {
				dst = append(dst, ',')
			}
			first = false
			dst = appendValue(dst, v, vt)
		})
		return append(dst, ']')

	default:
		return append(dst, val...)
	}
}

// parseString unescapes the body of a JSON string. jsonparser rejects lone
// surrogates; encoding/json maps them to U+FFFD.
func parseString(val []byte) string {
	if s, err := jsonparser.ParseString(val); err == nil {
		return s
	}
	var s string
	quoted := append(append([]byte{'"'}, val...), '"')
	if err := json.Unmarshal(quoted, &s); err != nil {
		return string(val)
	}
	return s
}

func appendString(dst []byte, s string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return append(dst, bytes.TrimRight(buf.Bytes(), "\n")...)
}
