package stream_test

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	// Packages
	log "github.com/charmbracelet/log"
	aitemplate "github.com/mutablelogic/go-aitemplate"
	schema "github.com/mutablelogic/go-aitemplate/pkg/schema"
	stream "github.com/mutablelogic/go-aitemplate/pkg/stream"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

///////////////////////////////////////////////////////////////////////////////
// HELPERS

// transport counts calls to Close
type transport struct {
	io.Reader
	closer io.Closer
	closes atomic.Int32
}

func newTransport(body string) *transport {
	return &transport{Reader: strings.NewReader(body)}
}

// newPipeTransport returns a transport which blocks until written to
func newPipeTransport() (*transport, *io.PipeWriter) {
	r, w := io.Pipe()
	return &transport{Reader: r, closer: r}, w
}

func (t *transport) Close() error {
	t.closes.Add(1)
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

type failingReader struct {
	body string
	err  error
	done bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.done {
		r.done = true
		return copy(p, r.body), nil
	}
	return 0, r.err
}

type observer struct {
	sync.Mutex
	events   []string
	dropped  []string
	outcomes []stream.Outcome
}

func (o *observer) Event(name string) {
	o.Lock()
	defer o.Unlock()
	o.events = append(o.events, name)
}

func (o *observer) Dropped(name string) {
	o.Lock()
	defer o.Unlock()
	o.dropped = append(o.dropped, name)
}

func (o *observer) Finished(outcome stream.Outcome, _ time.Duration) {
	o.Lock()
	defer o.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func frame(event, data string) string {
	return "event: " + event + "\ndata: " + data + "\n\n"
}

func collect(t *testing.T, s *stream.Session) ([]schema.StreamEvent, error) {
	t.Helper()
	var events []schema.StreamEvent
	for event, err := range s.Events() {
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
	return events, nil
}

///////////////////////////////////////////////////////////////////////////////
// TESTS

func Test_session_001(t *testing.T) {
	assert := assert.New(t)

	// Events are delivered in wire order
	body := frame("token", `{"token":"A"}`) +
		frame("tool_call", `{"toolName":"clock","input":"","output":"12:00","durationMs":3}`) +
		frame("token", `{"token":"B"}`) +
		frame("done", "done")
	rc := newTransport(body)
	s := stream.NewSession(rc)

	events, err := collect(t, s)
	assert.NoError(err)
	if assert.Len(events, 4) {
		assert.Equal(schema.Token{Text: "A"}, events[0])
		assert.IsType(schema.ToolCall{}, events[1])
		assert.Equal(schema.Token{Text: "B"}, events[2])
		assert.Equal(schema.Done{}, events[3])
	}
	assert.Equal(stream.OutcomeDone, s.Outcome())
	assert.NoError(s.Err())
	assert.Equal(int32(1), rc.closes.Load())
}

func Test_session_002(t *testing.T) {
	assert := assert.New(t)

	// Plain text token frames fall back to the raw data
	s := stream.NewSession(newTransport(frame("token", "hello") + frame("done", "done")))
	event, err := s.Next()
	assert.NoError(err)
	assert.Equal(schema.Token{Text: "hello"}, event)
}

func Test_session_003(t *testing.T) {
	assert := assert.New(t)

	// A malformed structured frame is dropped and the stream continues
	obs := new(observer)
	var logs bytes.Buffer
	logger := log.NewWithOptions(&logs, log.Options{Level: log.DebugLevel})
	body := frame("tool_call", "{not json") +
		frame("heartbeat", "1") +
		frame("token", `{"token":"ok"}`) +
		frame("done", "done")
	s := stream.NewSession(newTransport(body), stream.WithObserver(obs), stream.WithLogger(logger))

	events, err := collect(t, s)
	assert.NoError(err)
	assert.Equal([]schema.StreamEvent{schema.Token{Text: "ok"}, schema.Done{}}, events)
	assert.Equal([]string{"tool_call", "heartbeat"}, obs.dropped)
	assert.Equal([]string{"token", "done"}, obs.events)
	assert.Equal([]stream.Outcome{stream.OutcomeDone}, obs.outcomes)
	assert.Contains(logs.String(), "drop frame")
}

func Test_session_004(t *testing.T) {
	assert := assert.New(t)

	// Nothing is delivered after done, and the transport is closed once
	rc := newTransport(frame("done", "done") + frame("token", `{"token":"late"}`) + "garbage\n\n")
	s := stream.NewSession(rc)

	event, err := s.Next()
	assert.NoError(err)
	assert.Equal(schema.Done{}, event)
	for range 3 {
		event, err = s.Next()
		assert.Nil(event)
		assert.ErrorIs(err, io.EOF)
	}
	s.Cancel()
	assert.Equal(stream.OutcomeDone, s.Outcome())
	assert.Equal(int32(1), rc.closes.Load())
}

func Test_session_005(t *testing.T) {
	assert := assert.New(t)

	// Cancel cuts off buffered events
	body := frame("token", `{"token":"1"}`) + frame("token", `{"token":"2"}`) + frame("done", "done")
	rc := newTransport(body)
	s := stream.NewSession(rc)

	event, err := s.Next()
	assert.NoError(err)
	assert.Equal(schema.Token{Text: "1"}, event)

	s.Cancel()
	s.Cancel()
	event, err = s.Next()
	assert.Nil(event)
	assert.ErrorIs(err, io.EOF)
	assert.Equal(stream.OutcomeCancelled, s.Outcome())
	assert.NoError(s.Err())
	assert.Equal(int32(1), rc.closes.Load())
}

func Test_session_006(t *testing.T) {
	assert := assert.New(t)

	// Cancel from another goroutine unblocks a pending read
	rc, w := newPipeTransport()
	defer w.Close()
	s := stream.NewSession(rc)

	go func() {
		w.Write([]byte(frame("token", `{"token":"first"}`)))
	}()
	event, err := s.Next()
	assert.NoError(err)
	assert.Equal(schema.Token{Text: "first"}, event)

	result := make(chan error, 1)
	go func() {
		_, err := s.Next()
		result <- err
	}()
	time.Sleep(20 * time.Millisecond)
	s.Cancel()

	select {
	case err := <-result:
		assert.ErrorIs(err, io.EOF)
	case <-time.After(time.Second):
		t.Fatal("Next did not return after Cancel")
	}
	assert.Equal(stream.OutcomeCancelled, s.Outcome())
	assert.Equal(int32(1), rc.closes.Load())
}

func Test_session_007(t *testing.T) {
	assert := assert.New(t)

	// A server error is delivered, ends the session and is distinct from a fault
	rc := newTransport(frame("token", `{"token":"x"}`) + frame("error", "boom") + frame("done", "done"))
	s := stream.NewSession(rc)

	events, err := collect(t, s)
	assert.NoError(err)
	assert.Equal([]schema.StreamEvent{schema.Token{Text: "x"}, schema.Error{Message: "boom"}}, events)
	assert.Equal(stream.OutcomeServerError, s.Outcome())

	var serverErr *stream.ServerError
	if assert.ErrorAs(s.Err(), &serverErr) {
		assert.Equal("boom", serverErr.Message)
	}
	assert.False(errors.Is(s.Err(), aitemplate.ErrTransport))
	assert.Equal(int32(1), rc.closes.Load())
}

func Test_session_008(t *testing.T) {
	assert := assert.New(t)

	// A read failure is a transport fault, returned on every later call
	reset := errors.New("connection reset by peer")
	reader := &failingReader{body: frame("token", `{"token":"A"}`), err: reset}
	rc := &transport{Reader: reader}
	s := stream.NewSession(rc)

	event, err := s.Next()
	assert.NoError(err)
	assert.Equal(schema.Token{Text: "A"}, event)

	event, err = s.Next()
	assert.Nil(event)
	assert.ErrorIs(err, aitemplate.ErrTransport)
	assert.ErrorIs(err, reset)
	assert.False(errors.Is(err, io.EOF))

	_, again := s.Next()
	assert.Equal(err, again)
	assert.Equal(stream.OutcomeTransportFault, s.Outcome())
	assert.Equal(err, s.Err())
	assert.Equal(int32(1), rc.closes.Load())
}

func Test_session_009(t *testing.T) {
	assert := assert.New(t)

	// A stream ending without done is a transport fault
	s := stream.NewSession(newTransport(frame("token", `{"token":"A"}`)))
	events, err := collect(t, s)
	assert.Len(events, 1)
	assert.ErrorIs(err, aitemplate.ErrTransport)
	assert.ErrorIs(err, io.ErrUnexpectedEOF)
	assert.Equal(stream.OutcomeTransportFault, s.Outcome())
}

func Test_session_010(t *testing.T) {
	assert := assert.New(t)

	// Idle timeout ends the session with a fault wrapping ErrTimeout
	rc, w := newPipeTransport()
	defer w.Close()
	s := stream.NewSession(rc, stream.WithIdleTimeout(100*time.Millisecond))

	go func() {
		w.Write([]byte(frame("token", `{"token":"A"}`)))
	}()
	event, err := s.Next()
	assert.NoError(err)
	assert.Equal(schema.Token{Text: "A"}, event)

	start := time.Now()
	_, err = s.Next()
	assert.ErrorIs(err, aitemplate.ErrTransport)
	assert.ErrorIs(err, aitemplate.ErrTimeout)
	assert.Less(time.Since(start), time.Second)
	assert.Equal(stream.OutcomeTransportFault, s.Outcome())
	assert.Equal(int32(1), rc.closes.Load())
}

func Test_session_011(t *testing.T) {
	assert := assert.New(t)

	// Cancelling the context cancels the session
	ctx, cancel := context.WithCancel(context.Background())
	rc, w := newPipeTransport()
	defer w.Close()
	s := stream.NewSession(rc, stream.WithContext(ctx))

	time.AfterFunc(20*time.Millisecond, cancel)
	_, err := s.Next()
	assert.ErrorIs(err, io.EOF)
	assert.Equal(stream.OutcomeCancelled, s.Outcome())
	assert.Equal(int32(1), rc.closes.Load())
}

func Test_session_012(t *testing.T) {
	assert := assert.New(t)

	// A callback error stops the session and is returned
	stop := errors.New("stop")
	rc := newTransport(frame("token", `{"token":"1"}`) + frame("token", `{"token":"2"}`) + frame("done", "done"))
	s := stream.NewSession(rc)

	var seen []schema.StreamEvent
	err := s.Run(func(event schema.StreamEvent) error {
		seen = append(seen, event)
		return stop
	})
	assert.ErrorIs(err, stop)
	assert.Len(seen, 1)
	assert.Equal(stream.OutcomeCancelled, s.Outcome())

	// Run returns nil for a stream ending in done
	s = stream.NewSession(newTransport(frame("token", `{"token":"1"}`) + frame("done", "done")))
	var turn stream.Turn
	assert.NoError(s.Run(func(event schema.StreamEvent) error {
		turn.Apply(event)
		return nil
	}))
	assert.Equal("1", turn.Content())
	assert.True(turn.Done())
}

func Test_session_013(t *testing.T) {
	assert := assert.New(t)

	// Breaking out of the iterator cancels the session
	rc := newTransport(frame("token", `{"token":"1"}`) + frame("token", `{"token":"2"}`) + frame("done", "done"))
	s := stream.NewSession(rc)
	for range s.Events() {
		break
	}
	assert.Equal(stream.OutcomeCancelled, s.Outcome())
	assert.Equal(int32(1), rc.closes.Load())
}

func Test_session_014(t *testing.T) {
	require := require.New(t)

	// Concurrent sessions see only their own events
	const n = 8
	var wg sync.WaitGroup
	results := make([]string, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var body strings.Builder
			for j := range 50 {
				body.WriteString(frame("token", `{"token":"`+string(rune('a'+i))+`"}`))
				if j%10 == 0 {
					body.WriteString(frame("tool_call", "{broken"))
				}
			}
			body.WriteString(frame("done", "done"))

			var turn stream.Turn
			s := stream.NewSession(newTransport(body.String()))
			for event, err := range s.Events() {
				if err != nil {
					return
				}
				turn.Apply(event)
			}
			results[i] = turn.Content()
		}(i)
	}
	wg.Wait()
	for i := range n {
		require.Equal(strings.Repeat(string(rune('a'+i)), 50), results[i])
	}
}

func Test_session_015(t *testing.T) {
	assert := assert.New(t)

	// Tool progress followed by the answer, then done
	body := "event: tool_call_progress\n" +
		`data: {"toolName":"search","input":"q","output":"","durationMs":0}` + "\n\n" +
		"event: tool_call_progress\n" +
		`data: {"toolName":"search","input":"q","output":"result","durationMs":120}` + "\n\n" +
		"event: token\n" +
		`data: {"token":"The answer is "}` + "\n\n" +
		"event: token\n" +
		`data: {"token":"42."}` + "\n\n" +
		"event: done\n" +
		"data: ok\n\n"
	s := stream.NewSession(newTransport(body))

	var turn stream.Turn
	events, err := collect(t, s)
	assert.NoError(err)
	if assert.Len(events, 5) {
		first, ok := events[0].(schema.ToolCallProgress)
		if assert.True(ok) {
			assert.Equal("search", first.Info.ToolName)
			assert.Equal("q", first.Info.Input)
			assert.Empty(first.Info.Output)
			if assert.NotNil(first.Info.DurationMs) {
				assert.Equal(int64(0), *first.Info.DurationMs)
			}
		}
		second, ok := events[1].(schema.ToolCallProgress)
		if assert.True(ok) {
			assert.Equal("result", second.Info.Output)
			assert.Equal(120*time.Millisecond, second.Info.Duration())
		}
		assert.Equal(schema.Token{Text: "The answer is "}, events[2])
		assert.Equal(schema.Token{Text: "42."}, events[3])
		assert.Equal(schema.Done{}, events[4])
	}
	for _, event := range events {
		turn.Apply(event)
	}
	assert.Equal("The answer is 42.", turn.Content())
	assert.Len(turn.ToolCalls(), 1)
	assert.Equal(stream.OutcomeDone, s.Outcome())
}

func Test_session_016(t *testing.T) {
	assert := assert.New(t)

	// A malformed tool call is not fatal, and done data is not inspected
	s := stream.NewSession(newTransport(frame("tool_call", "not-json") + frame("done", "x")))
	events, err := collect(t, s)
	assert.NoError(err)
	assert.Equal([]schema.StreamEvent{schema.Done{}}, events)
	assert.NoError(s.Err())
}

func Test_session_017(t *testing.T) {
	assert := assert.New(t)

	// Time spent by the consumer between reads does not count as idle
	rc, w := newPipeTransport()
	defer w.Close()
	s := stream.NewSession(rc, stream.WithIdleTimeout(100*time.Millisecond))

	go func() {
		w.Write([]byte(frame("token", `{"token":"a"}`)))
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte(frame("token", `{"token":"b"}`)))
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte(frame("done", "ok")))
	}()

	event, err := s.Next()
	assert.NoError(err)
	assert.Equal(schema.Token{Text: "a"}, event)

	time.Sleep(300 * time.Millisecond)

	event, err = s.Next()
	assert.NoError(err)
	assert.Equal(schema.Token{Text: "b"}, event)
	event, err = s.Next()
	assert.NoError(err)
	assert.Equal(schema.Done{}, event)
	assert.Equal(stream.OutcomeDone, s.Outcome())
	assert.NoError(s.Err())
}

func Test_session_018(t *testing.T) {
	assert := assert.New(t)

	// A line over the configured limit is a transport fault
	body := frame("token", `{"token":"ok"}`) + frame("token", strings.Repeat("x", 256)) + frame("done", "ok")
	rc := newTransport(body)
	s := stream.NewSession(rc, stream.WithMaxLineSize(128))

	events, err := collect(t, s)
	assert.Equal([]schema.StreamEvent{schema.Token{Text: "ok"}}, events)
	assert.ErrorIs(err, aitemplate.ErrTransport)
	assert.ErrorIs(err, bufio.ErrTooLong)
	assert.Equal(stream.OutcomeTransportFault, s.Outcome())
	assert.Equal(int32(1), rc.closes.Load())

	// The same stream fits within the default limit
	s = stream.NewSession(newTransport(body))
	events, err = collect(t, s)
	assert.NoError(err)
	assert.Len(events, 3)
}

func Test_session_019(t *testing.T) {
	assert := assert.New(t)

	// Null payloads for structured events are dropped, not delivered empty
	var obs observer
	body := frame("tool_call", "null") + frame("tool_call_progress", "null") + frame("skill_apply", "null") + frame("done", "ok")
	s := stream.NewSession(newTransport(body), stream.WithObserver(&obs))

	events, err := collect(t, s)
	assert.NoError(err)
	assert.Equal([]schema.StreamEvent{schema.Done{}}, events)
	assert.Equal([]string{"tool_call", "tool_call_progress", "skill_apply"}, obs.dropped)
	assert.Equal(stream.OutcomeDone, s.Outcome())
}
