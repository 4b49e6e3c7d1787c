package answer

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const readChunkSize = 4 * 1024

var (
	recordSeparator = []byte("\n\n")
	dataPrefix      = []byte("data: ")
)

// ErrMissingAnswer marks a payload that decoded but carried no answer field.
var ErrMissingAnswer = errors.New("answer field missing")

// AnswerEvent is one decoded partial answer. AnswerText is cumulative: it
// replaces whatever was displayed before.
type AnswerEvent struct {
	AnswerText string `json:"answer"`
	IsFinal    bool   `json:"finished"`
}

// EventStream yields answer events until io.EOF.
type EventStream interface {
	Recv() (AnswerEvent, error)
}

// record is the payload carried after the "data: " prefix.
type record struct {
	Answer   *string `json:"answer"`
	Finished bool    `json:"finished"`
}

func (r record) event() (AnswerEvent, error) {
	if r.Answer == nil {
		return AnswerEvent{}, ErrMissingAnswer
	}
	return AnswerEvent{AnswerText: *r.Answer, IsFinal: r.Finished}, nil
}

// Decoder turns a chunked "data: <json>\n\n" byte stream into answer events.
// It is forward-only and bound to a single exchange.
type Decoder struct {
	r       io.Reader
	buf     []byte
	chunk   []byte
	pending []AnswerEvent
	err     error
	dropped int
}

// NewDecoder reads records from r. A nil reader is allowed when the decoder
// is only driven through Feed.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Feed appends a raw fragment and returns the events completed by it. An
// incomplete trailing record stays buffered for the next fragment.
func (d *Decoder) Feed(fragment []byte) []AnswerEvent {
	d.buf = append(d.buf, fragment...)

	var events []AnswerEvent
	consumed := 0
	for {
		idx := bytes.Index(d.buf[consumed:], recordSeparator)
		if idx < 0 {
			break
		}
		rec := d.buf[consumed : consumed+idx]
		consumed += idx + len(recordSeparator)

		if ev, ok := d.decodeRecord(rec); ok {
			events = append(events, ev)
		}
	}

	if consumed > 0 {
		d.buf = append(d.buf[:0], d.buf[consumed:]...)
	}
	return events
}

// Recv returns the next event, reading from the underlying stream as
// needed. It returns io.EOF once the stream ends; leftover partial input is
// discarded at that point.
func (d *Decoder) Recv() (AnswerEvent, error) {
	for {
		if len(d.pending) > 0 {
			ev := d.pending[0]
			d.pending = d.pending[1:]
			return ev, nil
		}
		if d.err != nil {
			return AnswerEvent{}, d.err
		}
		if d.r == nil {
			d.finish(io.EOF)
			continue
		}

		if d.chunk == nil {
			d.chunk = make([]byte, readChunkSize)
		}
		n, err := d.r.Read(d.chunk)
		if n > 0 {
			d.pending = append(d.pending, d.Feed(d.chunk[:n])...)
		}
		if err != nil {
			d.finish(err)
		}
	}
}

// Dropped reports how many records were discarded as malformed.
func (d *Decoder) Dropped() int {
	return d.dropped
}

// Buffered reports how many bytes of an incomplete record are held.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

func (d *Decoder) finish(err error) {
	if len(d.buf) > 0 {
		log.Debug().Str("component", "answer").Int("bytes", len(d.buf)).Msg("discarding incomplete trailing record")
		d.buf = nil
	}
	if errors.Is(err, io.EOF) {
		d.err = io.EOF
		return
	}
	d.err = errors.Wrap(err, "read answer stream")
}

func (d *Decoder) decodeRecord(rec []byte) (AnswerEvent, bool) {
	if !bytes.HasPrefix(rec, dataPrefix) {
		if len(bytes.TrimSpace(rec)) > 0 {
			log.Debug().Str("component", "answer").Str("record", preview(rec)).Msg("skipping non-data record")
		}
		return AnswerEvent{}, false
	}

	var payload record
	err := json.Unmarshal(rec[len(dataPrefix):], &payload)
	var ev AnswerEvent
	if err == nil {
		ev, err = payload.event()
	}
	if err != nil {
		d.dropped++
		log.Warn().Err(err).Str("component", "answer").Str("record", preview(rec)).Msg("dropping malformed stream record")
		return AnswerEvent{}, false
	}
	return ev, true
}

func preview(rec []byte) string {
	const limit = 120
	if len(rec) > limit {
		return string(rec[:limit]) + "..."
	}
	return string(rec)
}

// SingleShot adapts a plain JSON answer body into a one-event stream.
type SingleShot struct {
	r    io.Reader
	done bool
}

// NewSingleShot wraps a body of the form {"answer": "..."}.
func NewSingleShot(r io.Reader) *SingleShot {
	return &SingleShot{r: r}
}

// Recv yields the whole answer as a final event, then io.EOF.
func (s *SingleShot) Recv() (AnswerEvent, error) {
	if s.done {
		return AnswerEvent{}, io.EOF
	}
	s.done = true

	var payload record
	if err := json.NewDecoder(s.r).Decode(&payload); err != nil {
		return AnswerEvent{}, errors.Wrap(err, "decode answer body")
	}
	ev, err := payload.event()
	if err != nil {
		return AnswerEvent{}, err
	}
	ev.IsFinal = true
	return ev, nil
}
