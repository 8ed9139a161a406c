package stream

import (
	"errors"
	"testing"
)

func TestDecodeRecord(t *testing.T) {
	rec, err := Decoder{}.Decode(`  {"label":"比較AIの意見","type":"text","result":{"a":1}}  `)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Label != "比較AIの意見" {
		t.Errorf("label = %q", rec.Label)
	}
	if rec.Type != "text" {
		t.Errorf("type = %q, want %q", rec.Type, "text")
	}
	if string(rec.Result) != `{"a":1}` {
		t.Errorf("result = %s", rec.Result)
	}
}

func TestDecodeSkips(t *testing.T) {
	tests := []struct {
		name string
		line string
		want error
	}{
		{"empty", "", ErrEmptyLine},
		{"whitespace", " \t\r", ErrEmptyLine},
		{"array", `[1,2]`, ErrNotObject},
		{"scalar", `"text"`, ErrNotObject},
		{"null", `null`, ErrNotObject},
		{"no label", `{"result":"x"}`, ErrNoLabel},
		{"numeric label", `{"label":3,"result":"x"}`, ErrNoLabel},
		{"null label", `{"label":null}`, ErrNoLabel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decoder{}.Decode(tt.line)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := (Decoder{}).Decode(`{"label":"x",`); err == nil {
		t.Error("expected error for truncated line")
	}
	if _, err := (Decoder{}).Decode(`not json`); err == nil {
		t.Error("expected error for plain text")
	}
}

func TestDecodeNonStringTypeIgnored(t *testing.T) {
	rec, err := Decoder{}.Decode(`{"label":"x","type":5,"result":"y"}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Type != "" {
		t.Errorf("type = %q, want empty", rec.Type)
	}
}

func TestDecodeMissingResult(t *testing.T) {
	rec, err := Decoder{}.Decode(`{"label":"x"}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Result != nil {
		t.Errorf("result = %s, want nil", rec.Result)
	}
}

func TestDecodeLenientRepairsLine(t *testing.T) {
	line := `{"label":"x","result":"y",}`

	if _, err := (Decoder{}).Decode(line); err == nil {
		t.Fatal("strict decoder accepted a trailing comma")
	}

	rec, err := Decoder{Lenient: true}.Decode(line)
	if err != nil {
		t.Fatalf("lenient decode: %v", err)
	}
	if rec.Label != "x" || string(rec.Result) != `"y"` {
		t.Errorf("record = %+v", rec)
	}
}
