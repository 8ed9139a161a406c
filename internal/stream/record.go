// Package stream turns the evaluation server's chunked NDJSON response into
// incrementally queryable review state.
//
// Data flows strictly forward: Framer -> Decoder -> Classify -> Reduce.
// Everything before the Accumulator is a pure transformation; the Framer's
// pending buffer is the only state retained between chunks.
package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kaptinlin/jsonrepair"
)

// Record is one decoded line of the response body.
type Record struct {
	Label  string          `json:"label"`
	Type   string          `json:"type,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Line-level decode failures. All of them cause the line to be skipped.
var (
	ErrEmptyLine = errors.New("empty line")
	ErrNotObject = errors.New("record is not a JSON object")
	ErrNoLabel   = errors.New("record has no string label")
)

// Decoder parses framed lines into Records.
type Decoder struct {
	// Lenient runs lines that fail to parse through jsonrepair before giving
	// up on them. Off by default: a malformed line is normally skipped.
	Lenient bool
}

// Decode parses one framed line. A non-nil error means the line is skipped;
// it never affects the lines around it.
func (d Decoder) Decode(line string) (Record, error) {
	data := bytes.TrimSpace([]byte(line))
	if len(data) == 0 {
		return Record{}, ErrEmptyLine
	}

	fields, err := d.unmarshal(data)
	if err != nil {
		return Record{}, err
	}
	if fields == nil {
		return Record{}, ErrNotObject
	}

	var rec Record
	rawLabel, ok := fields["label"]
	if !ok || !isString(rawLabel) || json.Unmarshal(rawLabel, &rec.Label) != nil {
		return Record{}, ErrNoLabel
	}
	if rawType, ok := fields["type"]; ok {
		// A non-string type is treated as absent.
		if isString(rawType) {
			_ = json.Unmarshal(rawType, &rec.Type)
		}
	}
	rec.Result = fields["result"]

	return rec, nil
}

func (d Decoder) unmarshal(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	err := json.Unmarshal(data, &fields)
	if err == nil {
		return fields, nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return nil, ErrNotObject
	}

	var syntaxErr *json.SyntaxError
	if !d.Lenient || !errors.As(err, &syntaxErr) {
		return nil, fmt.Errorf("parse line: %w", err)
	}

	fixed, repairErr := jsonrepair.JSONRepair(string(data))
	if repairErr != nil {
		return nil, fmt.Errorf("repair line: %w", repairErr)
	}
	fields = nil
	if err := json.Unmarshal([]byte(fixed), &fields); err != nil {
		if errors.As(err, &typeErr) {
			return nil, ErrNotObject
		}
		return nil, fmt.Errorf("parse repaired line: %w", err)
	}
	return fields, nil
}

func isString(raw json.RawMessage) bool {
	return len(raw) > 0 && raw[0] == '"'
}
