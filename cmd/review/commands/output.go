package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/goccy/go-yaml"
	"github.com/itchyny/gojq"
)

// Output formats accepted by --output.
const (
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatTable = "table"
)

// writeResult encodes v as JSON or YAML, optionally filtered by a jq query.
// Every query result is written in turn.
func writeResult(w io.Writer, v any, format, query string) error {
	if query == "" {
		return encode(w, v, format)
	}

	q, err := gojq.Parse(query)
	if err != nil {
		return fmt.Errorf("invalid jq expression %q: %w", query, err)
	}
	input, err := generic(v)
	if err != nil {
		return err
	}
	iter := q.Run(input)
	for {
		out, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, ok := out.(error); ok {
			return fmt.Errorf("jq error: %w", err)
		}
		if err := encode(w, out, format); err != nil {
			return err
		}
	}
}

func encode(w io.Writer, v any, format string) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	case FormatYAML:
		// Going through JSON keeps raw members as mappings in document order.
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		out, err := yaml.JSONToYAML(data)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// generic converts v to the plain maps, slices and scalars jq works on.
// Object keys in query results come out sorted.
func generic(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	var out any
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}
