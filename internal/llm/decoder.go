package llm

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	dataPrefix = "data: "
	sentinel   = "[DONE]"
)

// ErrTruncated is reported when the body ends before the [DONE] sentinel
// and the decoder was asked to require it.
var ErrTruncated = errors.New("stream ended before [DONE]")

// FragmentSource yields raw response text in arrival order.
// Next returns io.EOF at a clean end; any other error is terminal.
type FragmentSource interface {
	Next() (string, error)
	Close() error
}

// DecoderStats summarises what a decoder has seen so far
type DecoderStats struct {
	Frames        int  // data: lines processed, sentinel included
	SkippedFrames int  // data: lines that did not parse into a delta
	SawDone       bool // the [DONE] sentinel was received
}

// DecoderOption configures a Decoder
type DecoderOption func(*Decoder)

// WithRequireDone makes a body that ends without [DONE] produce an error
// event wrapping ErrTruncated instead of a silent end.
func WithRequireDone(require bool) DecoderOption {
	return func(d *Decoder) { d.requireDone = require }
}

// WithDecoderLogger sets the logger used for skipped frames
func WithDecoderLogger(logger zerolog.Logger) DecoderOption {
	return func(d *Decoder) { d.logger = logger }
}

// Decoder turns the raw fragments of a server-sent-event response into
// reasoning and content delta events. It pulls from its source only when
// no complete line is buffered.
type Decoder struct {
	src         FragmentSource
	requireDone bool
	logger      zerolog.Logger

	buf     []byte
	pending []Event
	done    bool
	stats   DecoderStats
}

// NewDecoder creates a decoder reading from src
func NewDecoder(src FragmentSource, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		src:    src,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Next returns the next event, or io.EOF once the stream has ended.
// An EventError is always the last event.
func (d *Decoder) Next() (Event, error) {
	for {
		if len(d.pending) > 0 {
			ev := d.pending[0]
			d.pending = d.pending[1:]
			return ev, nil
		}
		if d.done {
			return Event{}, io.EOF
		}

		if line, ok := d.nextLine(); ok {
			d.handleLine(line)
			continue
		}

		fragment, err := d.src.Next()
		if err != nil {
			d.finish(err)
			continue
		}
		d.buf = append(d.buf, fragment...)
	}
}

// Stats returns counters for the frames decoded so far
func (d *Decoder) Stats() DecoderStats {
	return d.stats
}

// Close releases the underlying source
func (d *Decoder) Close() error {
	return d.src.Close()
}

// nextLine removes and returns the first complete line in the buffer
func (d *Decoder) nextLine() (string, bool) {
	i := bytes.IndexByte(d.buf, '\n')
	if i < 0 {
		return "", false
	}
	line := string(d.buf[:i+1])
	d.buf = d.buf[i+1:]
	return line, true
}

func (d *Decoder) handleLine(line string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, dataPrefix) {
		// blank keep-alives, ": comments", event:/id:/retry: fields
		return
	}
	d.stats.Frames++

	payload := strings.TrimSpace(line[len(dataPrefix):])
	if payload == sentinel {
		d.stats.SawDone = true
		d.done = true
		d.buf = nil
		return
	}

	if !gjson.Valid(payload) {
		d.skip("invalid json", payload)
		return
	}

	delta := gjson.Get(payload, "choices.0.delta")
	if !delta.IsObject() {
		if msg := gjson.Get(payload, "error.message"); msg.Exists() {
			d.stats.SkippedFrames++
			d.logger.Warn().Str("provider_error", msg.String()).Msg("Skipping in-stream provider error")
			return
		}
		d.skip("missing delta", payload)
		return
	}

	if r := delta.Get("reasoning"); r.Type == gjson.String && r.Str != "" {
		d.pending = append(d.pending, ReasoningDelta(r.Str))
	}
	if c := delta.Get("content"); c.Type == gjson.String && c.Str != "" {
		d.pending = append(d.pending, ContentDelta(c.Str))
	}
}

func (d *Decoder) skip(reason, payload string) {
	d.stats.SkippedFrames++
	d.logger.Debug().Str("reason", reason).Str("payload", payload).Msg("Skipping frame")
}

// finish ends the stream after the source stops
func (d *Decoder) finish(err error) {
	if !errors.Is(err, io.EOF) {
		// Buffered bytes are not trusted after a transport failure.
		d.buf = nil
		d.done = true
		d.pending = append(d.pending, ErrorEvent(err))
		return
	}

	// A final line without a terminator is still a line.
	if len(d.buf) > 0 {
		line := string(d.buf)
		d.buf = nil
		d.handleLine(line)
	}
	if d.done {
		return
	}
	d.done = true

	if d.requireDone && !d.stats.SawDone {
		d.pending = append(d.pending, ErrorEvent(ErrTruncated))
	}
}
