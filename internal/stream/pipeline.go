package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// DefaultChunkSize is the read size used by Consume.
const DefaultChunkSize = 32 * 1024

// ErrTransport is returned by Consume when the byte stream fails or is
// aborted. The state returned alongside it is still valid.
var ErrTransport = errors.New("stream transport failed")

// Options configures a Pipeline.
type Options struct {
	// FlushTrailing parses an unterminated final line at end of stream
	// instead of dropping it.
	FlushTrailing bool

	// Lenient repairs malformed lines with jsonrepair before skipping them.
	Lenient bool

	// ChunkSize is the read buffer size for Consume. Zero means
	// DefaultChunkSize.
	ChunkSize int

	// OnUpdate, if set, is called after every applied record with the update
	// and the resulting state.
	OnUpdate func(Update, State)

	Logger *slog.Logger
}

// Stats counts what a Pipeline has seen.
type Stats struct {
	Lines   int `json:"lines"`
	Records int `json:"records"`
	Skipped int `json:"skipped"`
}

// Pipeline runs framing, decoding, classification and accumulation for one
// stream. It is not safe for concurrent use; a stream has one consumer.
type Pipeline struct {
	framer   *Framer
	decoder  Decoder
	acc      Accumulator
	onUpdate func(Update, State)
	logger   *slog.Logger
	stats    Stats
}

// NewPipeline returns a Pipeline for a new stream.
func NewPipeline(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	framer := NewFramer()
	framer.FlushTrailing = opts.FlushTrailing

	return &Pipeline{
		framer:   framer,
		decoder:  Decoder{Lenient: opts.Lenient},
		onUpdate: opts.OnUpdate,
		logger:   logger.With("component", "stream"),
	}
}

// Feed processes one chunk and returns the updates it produced, in order.
func (p *Pipeline) Feed(chunk []byte) []Update {
	return p.process(p.framer.Feed(chunk))
}

// Finish processes end of stream.
func (p *Pipeline) Finish() []Update {
	if n := p.framer.Pending(); n > 0 && !p.framer.FlushTrailing {
		p.logger.Debug("drop unterminated line", "bytes", n)
	}
	return p.process(p.framer.Finish())
}

// Abort drops the pending partial line after a transport failure.
func (p *Pipeline) Abort() {
	if n := p.framer.Pending(); n > 0 {
		p.logger.Debug("drop unterminated line", "bytes", n)
	}
	p.framer.Reset()
}

// Snapshot returns the state accumulated so far.
func (p *Pipeline) Snapshot() State {
	return p.acc.Snapshot()
}

// Stats returns line and record counters.
func (p *Pipeline) Stats() Stats {
	return p.stats
}

func (p *Pipeline) process(lines []string) []Update {
	var updates []Update
	for _, line := range lines {
		p.stats.Lines++

		rec, err := p.decoder.Decode(line)
		if err != nil {
			if !errors.Is(err, ErrEmptyLine) {
				p.stats.Skipped++
				p.logger.Debug("skip line", "reason", err, "bytes", len(line))
			}
			continue
		}

		name, u := classify(rec)
		p.acc.Apply(u)
		p.stats.Records++
		p.logger.Debug("record", "label", rec.Label, "rule", name)

		updates = append(updates, u)
		if p.onUpdate != nil {
			p.onUpdate(u, p.acc.Snapshot())
		}
	}
	return updates
}

// Consume reads r to the end, one chunk at a time, and returns the final
// state. A read error or a cancelled ctx stops processing after the last
// complete line; the partial line is dropped and the error wraps
// ErrTransport. The returned state is valid in every case.
func Consume(ctx context.Context, r io.Reader, opts Options) (State, error) {
	size := opts.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	p := NewPipeline(opts)
	buf := make([]byte, size)

	for {
		if err := ctx.Err(); err != nil {
			p.Abort()
			return p.Snapshot(), fmt.Errorf("%w: %w", ErrTransport, err)
		}

		n, err := r.Read(buf)
		if n > 0 {
			p.Feed(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			p.Finish()
			st := p.Stats()
			p.logger.Info("stream complete", "records", st.Records, "skipped", st.Skipped)
			return p.Snapshot(), nil
		}
		if err != nil {
			p.Abort()
			p.logger.Warn("stream failed", "error", err, "records", p.stats.Records)
			return p.Snapshot(), fmt.Errorf("%w: %w", ErrTransport, err)
		}
	}
}

// Event is delivered by Stream: one per applied record, then a final event
// with Done set.
type Event struct {
	Update Update
	State  State
	Err    error
	Done   bool
}

// Stream runs Consume on its own goroutine and delivers events on the
// returned channel, which is closed after the Done event. The channel is
// unbuffered, so the reader pulls the next chunk only after the consumer has
// taken the previous record. opts.OnUpdate is replaced.
func Stream(ctx context.Context, r io.Reader, opts Options) <-chan Event {
	ch := make(chan Event)
	go func() {
		defer close(ch)

		send := func(ev Event) {
			select {
			case ch <- ev:
			case <-ctx.Done():
			}
		}
		opts.OnUpdate = func(u Update, s State) {
			send(Event{Update: u, State: s})
		}

		state, err := Consume(ctx, r, opts)
		send(Event{State: state, Err: err, Done: true})
	}()
	return ch
}
