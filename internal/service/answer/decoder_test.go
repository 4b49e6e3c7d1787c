package answer

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

const twoRecordPayload = "data: {\"answer\":\"Hi\",\"finished\":false}\n\n" +
	"data: {\"answer\":\"Hi there\",\"finished\":true}\n\n"

var twoRecordEvents = []AnswerEvent{
	{AnswerText: "Hi", IsFinal: false},
	{AnswerText: "Hi there", IsFinal: true},
}

func drain(t *testing.T, d EventStream) ([]AnswerEvent, error) {
	t.Helper()
	var events []AnswerEvent
	for {
		ev, err := d.Recv()
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

func TestFeedTwoRecords(t *testing.T) {
	d := NewDecoder(nil)

	var events []AnswerEvent
	events = append(events, d.Feed([]byte("data: {\"answer\":\"Hi\",\"finished\":false}\n\n"))...)
	events = append(events, d.Feed([]byte("data: {\"answer\":\"Hi there\",\"finished\":true}\n\n"))...)

	require.Equal(t, twoRecordEvents, events)
	require.Zero(t, d.Buffered())
}

func TestFeedSplitAtEveryBoundary(t *testing.T) {
	payload := []byte(twoRecordPayload)
	for i := 0; i <= len(payload); i++ {
		for j := i; j <= len(payload); j++ {
			d := NewDecoder(nil)
			var events []AnswerEvent
			events = append(events, d.Feed(payload[:i])...)
			events = append(events, d.Feed(payload[i:j])...)
			events = append(events, d.Feed(payload[j:])...)
			require.Equal(t, twoRecordEvents, events, "split at %d/%d", i, j)
		}
	}
}

func TestFeedRetainsIncompleteRecord(t *testing.T) {
	d := NewDecoder(nil)

	events := d.Feed([]byte("data: {\"answer\":\"Hel"))
	require.Empty(t, events)
	require.Positive(t, d.Buffered())

	events = d.Feed([]byte("lo\"}\n"))
	require.Empty(t, events)

	events = d.Feed([]byte("\n"))
	require.Equal(t, []AnswerEvent{{AnswerText: "Hello"}}, events)
}

func TestFeedDropsMalformedRecord(t *testing.T) {
	d := NewDecoder(nil)

	events := d.Feed([]byte("data: not-json\n\n" + "data: {\"answer\":\"done\",\"finished\":true}\n\n"))

	require.Equal(t, []AnswerEvent{{AnswerText: "done", IsFinal: true}}, events)
	require.Equal(t, 1, d.Dropped())
}

func TestFeedDropsRecordWithoutAnswer(t *testing.T) {
	d := NewDecoder(nil)

	events := d.Feed([]byte("data: {\"finished\":true}\n\ndata: null\n\n"))

	require.Empty(t, events)
	require.Equal(t, 2, d.Dropped())
}

func TestFeedSkipsNonDataRecords(t *testing.T) {
	d := NewDecoder(nil)

	events := d.Feed([]byte(": keep-alive\n\nevent: ping\n\ndata: {\"answer\":\"ok\"}\n\n"))

	require.Equal(t, []AnswerEvent{{AnswerText: "ok"}}, events)
	require.Zero(t, d.Dropped())
}

func TestFeedIgnoresExtraFields(t *testing.T) {
	d := NewDecoder(nil)

	events := d.Feed([]byte(`data: {"question":"q","answer":"a","sources":[],"finished":false}` + "\n\n"))

	require.Equal(t, []AnswerEvent{{AnswerText: "a"}}, events)
}

func TestRecvOneByteReader(t *testing.T) {
	d := NewDecoder(iotest.OneByteReader(strings.NewReader(twoRecordPayload)))

	events, err := drain(t, d)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, twoRecordEvents, events)
}

func TestRecvDiscardsTrailingPartialRecord(t *testing.T) {
	d := NewDecoder(strings.NewReader("data: {\"answer\":\"Hi\"}\n\ndata: {\"answer\":\"Hi th"))

	events, err := drain(t, d)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, []AnswerEvent{{AnswerText: "Hi"}}, events)
	require.Zero(t, d.Buffered())
}

func TestRecvIsNotRestartable(t *testing.T) {
	d := NewDecoder(strings.NewReader(twoRecordPayload))

	_, err := drain(t, d)
	require.ErrorIs(t, err, io.EOF)

	_, err = d.Recv()
	require.ErrorIs(t, err, io.EOF)
}

func TestRecvReadErrorAfterEvents(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(
		strings.NewReader("data: {\"answer\":\"partial\"}\n\n"),
		iotest.ErrReader(boom),
	)
	d := NewDecoder(r)

	events, err := drain(t, d)
	require.ErrorIs(t, err, boom)
	require.Equal(t, []AnswerEvent{{AnswerText: "partial"}}, events)
}

func TestRecvDataErrReader(t *testing.T) {
	d := NewDecoder(iotest.DataErrReader(strings.NewReader(twoRecordPayload)))

	events, err := drain(t, d)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, twoRecordEvents, events)
}

func TestSingleShot(t *testing.T) {
	s := NewSingleShot(strings.NewReader(`{"question":"q","answer":"whole answer","sources":[]}`))

	events, err := drain(t, s)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, []AnswerEvent{{AnswerText: "whole answer", IsFinal: true}}, events)
}

func TestSingleShotMalformed(t *testing.T) {
	_, err := NewSingleShot(strings.NewReader("<html>")).Recv()
	require.Error(t, err)
	require.NotErrorIs(t, err, io.EOF)

	_, err = NewSingleShot(strings.NewReader(`{"status":"error"}`)).Recv()
	require.ErrorIs(t, err, ErrMissingAnswer)
}
