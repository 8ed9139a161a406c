package stream

import (
	"reflect"
	"testing"
)

func feedAll(f *Framer, chunks ...string) []string {
	var lines []string
	for _, c := range chunks {
		lines = append(lines, f.Feed([]byte(c))...)
	}
	return lines
}

func TestFramerSplitsLines(t *testing.T) {
	f := NewFramer()

	got := f.Feed([]byte("a\nb\nc"))
	if want := []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("lines = %q, want %q", got, want)
	}
	if f.Pending() != 1 {
		t.Errorf("pending = %d, want 1", f.Pending())
	}

	got = f.Feed([]byte("\n"))
	if want := []string{"c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("lines = %q, want %q", got, want)
	}
}

func TestFramerLineSplitAcrossChunks(t *testing.T) {
	f := NewFramer()
	got := feedAll(f, `{"lab`, `el":"x"`, "}\n{", `"label":"y"}`, "\n")
	want := []string{`{"label":"x"}`, `{"label":"y"}`}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("lines = %q, want %q", got, want)
	}
}

func TestFramerMultiByteSplit(t *testing.T) {
	text := "話速エージェント\n"
	f := NewFramer()

	var got []string
	for i := 0; i < len(text); i++ {
		got = append(got, f.Feed([]byte{text[i]})...)
	}

	if want := []string{"話速エージェント"}; !reflect.DeepEqual(got, want) {
		t.Errorf("lines = %q, want %q", got, want)
	}
}

func TestFramerDropsUnterminatedTail(t *testing.T) {
	f := NewFramer()
	f.Feed([]byte("x\n{\"label\":\"y\"}"))

	if got := f.Finish(); got != nil {
		t.Errorf("finish = %q, want nil", got)
	}
	if f.Pending() != 0 {
		t.Errorf("pending after finish = %d, want 0", f.Pending())
	}
}

func TestFramerFlushTrailing(t *testing.T) {
	f := NewFramer()
	f.FlushTrailing = true
	f.Feed([]byte("x\n{\"label\":\"y\"}"))

	got := f.Finish()
	if want := []string{`{"label":"y"}`}; !reflect.DeepEqual(got, want) {
		t.Errorf("finish = %q, want %q", got, want)
	}
}

func TestFramerFlushTrailingBlank(t *testing.T) {
	f := NewFramer()
	f.FlushTrailing = true
	f.Feed([]byte("x\n  "))

	if got := f.Finish(); got != nil {
		t.Errorf("finish = %q, want nil", got)
	}
}

func TestFramerStripsLeadingBOM(t *testing.T) {
	f := NewFramer()
	got := feedAll(f, "\xef", "\xbb\xbfa\n", "\xef\xbb\xbfb\n")

	// Only the BOM at the start of the stream is dropped.
	want := []string{"a", "\ufeffb"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("lines = %q, want %q", got, want)
	}
}

func TestFramerReplacesInvalidBytes(t *testing.T) {
	f := NewFramer()
	got := f.Feed([]byte("a\xffb\n"))
	if want := []string{"a\ufffdb"}; !reflect.DeepEqual(got, want) {
		t.Errorf("lines = %q, want %q", got, want)
	}
}

func TestFramerReset(t *testing.T) {
	f := NewFramer()
	f.Feed([]byte("partial\xe3\x81"))
	f.Reset()

	got := f.Feed([]byte("next\n"))
	if want := []string{"next"}; !reflect.DeepEqual(got, want) {
		t.Errorf("lines = %q, want %q", got, want)
	}
}
