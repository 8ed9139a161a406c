package stream

import (
	"bytes"
	"errors"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Framer reassembles newline-terminated lines from arbitrarily chunked bytes.
//
// Bytes are decoded as UTF-8 with a streaming decoder, so a multi-byte
// character split across two chunks is held back until its remaining bytes
// arrive. Invalid sequences decode to U+FFFD and a byte order mark at the
// start of the stream is stripped.
type Framer struct {
	// FlushTrailing makes Finish emit the unterminated tail as a final line.
	// By default the tail is discarded.
	FlushTrailing bool

	dec     transform.Transformer
	started bool   // first rune seen
	carry   []byte // undecoded bytes of a rune split by a chunk boundary
	pending []byte // decoded text after the last line separator
}

var bom = []byte("\uFEFF")

// NewFramer returns a Framer ready for the first chunk of a stream.
func NewFramer() *Framer {
	return &Framer{dec: unicode.UTF8.NewDecoder()}
}

// Feed appends a chunk and returns the lines it completed, in arrival order.
// Returned lines do not include the separator.
func (f *Framer) Feed(chunk []byte) []string {
	src := chunk
	if len(f.carry) > 0 {
		src = append(f.carry, chunk...)
		f.carry = nil
	}

	text, rest := f.decode(src, false)
	if len(rest) > 0 {
		f.carry = bytes.Clone(rest)
	}
	if !f.started && len(text) > 0 {
		text = bytes.TrimPrefix(text, bom)
		f.started = true
	}
	f.pending = append(f.pending, text...)

	return f.split()
}

// Finish ends the stream. Without FlushTrailing the pending tail is dropped
// and no line is returned. The Framer is reset either way.
func (f *Framer) Finish() []string {
	defer f.Reset()

	if !f.FlushTrailing {
		return nil
	}

	tail, _ := f.decode(f.carry, true)
	line := append(f.pending, tail...)
	if len(bytes.TrimSpace(line)) == 0 {
		return nil
	}
	return []string{string(line)}
}

// Pending returns the number of buffered bytes not yet emitted as a line.
func (f *Framer) Pending() int {
	return len(f.pending) + len(f.carry)
}

// Reset discards buffered data and decoder state.
func (f *Framer) Reset() {
	f.started = false
	f.carry = nil
	f.pending = nil
	f.dec.Reset()
}

func (f *Framer) split() []string {
	var lines []string
	for {
		i := bytes.IndexByte(f.pending, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(f.pending[:i]))
		f.pending = f.pending[i+1:]
	}
	if len(lines) > 0 {
		// Drop the reference to the consumed prefix.
		f.pending = bytes.Clone(f.pending)
	}
	return lines
}

// decode runs src through the UTF-8 decoder. rest holds the trailing bytes of
// an incomplete rune when atEOF is false.
func (f *Framer) decode(src []byte, atEOF bool) (out, rest []byte) {
	if len(src) == 0 {
		return nil, nil
	}

	// Each invalid byte expands to a three byte replacement character.
	dst := make([]byte, 3*len(src)+4)
	for {
		nDst, nSrc, err := f.dec.Transform(dst, src, atEOF)
		out = append(out, dst[:nDst]...)
		src = src[nSrc:]

		if errors.Is(err, transform.ErrShortDst) && (nDst > 0 || nSrc > 0) {
			continue
		}
		return out, src
	}
}
