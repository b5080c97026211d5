package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	// Packages
	log "github.com/charmbracelet/log"
	aitemplate "github.com/mutablelogic/go-aitemplate"
	schema "github.com/mutablelogic/go-aitemplate/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Session consumes one chat stream. It is driven by a single consumer
// through Next, Events or Run; Cancel may be called from any goroutine.
type Session struct {
	rc       io.ReadCloser
	dec      *Decoder
	logger   *log.Logger
	observer Observer
	idle     time.Duration
	maxLine  int
	timer    *time.Timer
	timedOut atomic.Bool
	ctx      context.Context
	start    time.Time

	mu        sync.Mutex
	stop      func() bool
	outcome   Outcome
	err       error
	closeOnce sync.Once
}

// SessionOpt configures a session
type SessionOpt func(*Session)

// Observer receives session activity, for metrics
type Observer interface {
	// Event is called for each event handed to the consumer
	Event(name string)

	// Dropped is called for each frame that could not be decoded
	Dropped(name string)

	// Finished is called once when the session becomes terminal
	Finished(outcome Outcome, elapsed time.Duration)
}

// ServerError is the error reported by the backend in an error event
type ServerError struct {
	Message string
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewSession returns a session reading frames from rc. The session owns rc
// and closes it exactly once, when the session becomes terminal.
func NewSession(rc io.ReadCloser, opts ...SessionOpt) *Session {
	s := &Session{
		rc:    rc,
		start: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	// The idle timer only runs while a read is blocked, so a slow consumer
	// does not count against it
	var r io.Reader = rc
	if s.idle > 0 {
		s.timer = time.AfterFunc(s.idle, func() {
			s.timedOut.Store(true)
			s.close()
		})
		s.timer.Stop()
		r = &idleReader{r: rc, timer: s.timer, idle: s.idle}
	}
	s.dec = NewDecoderSize(r, s.maxLine)

	// Cancel is called from the context goroutine, which may run at once
	if s.ctx != nil {
		s.mu.Lock()
		s.stop = context.AfterFunc(s.ctx, s.Cancel)
		s.mu.Unlock()
	}
	return s
}

// WithLogger sets a logger for dropped frames and session outcomes
func WithLogger(logger *log.Logger) SessionOpt {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithObserver sets an observer for session activity
func WithObserver(observer Observer) SessionOpt {
	return func(s *Session) {
		s.observer = observer
	}
}

// WithIdleTimeout ends the session with a transport fault when a read of
// the transport waits longer than d for bytes. Time the consumer spends
// between calls to Next is not counted. Zero disables the timeout.
func WithIdleTimeout(d time.Duration) SessionOpt {
	return func(s *Session) {
		s.idle = d
	}
}

// WithMaxLineSize sets the longest accepted line in bytes. A longer line
// ends the session with a transport fault wrapping bufio.ErrTooLong. Zero
// uses MaxLineSize.
func WithMaxLineSize(n int) SessionOpt {
	return func(s *Session) {
		s.maxLine = n
	}
}

// WithContext cancels the session when ctx is done
func WithContext(ctx context.Context) SessionOpt {
	return func(s *Session) {
		s.ctx = ctx
	}
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Next returns the next event in wire order. After a Done or Error event,
// or after Cancel, it returns io.EOF. A transport fault returns an error
// wrapping aitemplate.ErrTransport, on this and every later call.
func (s *Session) Next() (schema.StreamEvent, error) {
	for {
		if err := s.terminalErr(); err != nil {
			return nil, err
		}

		frame, err := s.dec.Next()
		if err != nil {
			s.fault(err)
			return nil, s.terminalErr()
		}

		event, err := Parse(frame)
		if err != nil {
			s.debug("drop frame", "event", frame.Event, "error", err)
			if s.observer != nil {
				s.observer.Dropped(frame.Event)
			}
			continue
		}

		if s.deliver(event) {
			return event, nil
		}
	}
}

// Events returns an iterator over the events. A transport fault is yielded
// as the final pair. Breaking out of the loop cancels the session.
func (s *Session) Events() iter.Seq2[schema.StreamEvent, error] {
	return func(yield func(schema.StreamEvent, error) bool) {
		for {
			event, err := s.Next()
			if errors.Is(err, io.EOF) {
				return
			} else if err != nil {
				yield(nil, err)
				return
			}
			if !yield(event, nil) {
				s.Cancel()
				return
			}
		}
	}
}

// Run calls fn for each event until the session is terminal. If fn returns
// an error the session is cancelled and the error returned. A transport
// fault is returned as an error; a server reported error is delivered to fn
// as a schema.Error event and is available from Err.
func (s *Session) Run(fn func(schema.StreamEvent) error) error {
	for event, err := range s.Events() {
		if err != nil {
			return err
		}
		if err := fn(event); err != nil {
			s.Cancel()
			return err
		}
	}
	return nil
}

// Cancel closes the transport and ends the session. It is a no-op once the
// session is terminal. Once Cancel returns on the consuming goroutine no
// further events are delivered; when called from another goroutine, an
// event already being returned by a concurrent Next may still arrive.
func (s *Session) Cancel() {
	if s.finish(OutcomeCancelled, nil) {
		s.debug("stream cancelled")
	}
}

// Outcome returns how the session ended, or OutcomeOpen
func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Err returns a *ServerError when the backend reported an error, the
// transport error on a fault, and nil otherwise
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (e *ServerError) Error() string {
	return "server error: " + e.Message
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// deliver marks the session terminal for Done and Error events, and returns
// false if the session was already terminal.
func (s *Session) deliver(event schema.StreamEvent) bool {
	switch e := event.(type) {
	case schema.Done:
		if !s.finish(OutcomeDone, nil) {
			return false
		}
	case schema.Error:
		if !s.finish(OutcomeServerError, &ServerError{Message: e.Message}) {
			return false
		}
	default:
		s.mu.Lock()
		open := s.outcome == OutcomeOpen
		s.mu.Unlock()
		if !open {
			return false
		}
	}
	if s.observer != nil {
		s.observer.Event(event.Event())
	}
	return true
}

// fault ends the session with a transport fault, unless it already ended.
// A read failing because the context is done is a cancellation.
func (s *Session) fault(err error) {
	if s.ctx != nil && s.ctx.Err() != nil {
		s.Cancel()
		return
	}
	switch {
	case s.timedOut.Load():
		err = fmt.Errorf("%w: %w: no data for %v", aitemplate.ErrTransport, aitemplate.ErrTimeout, s.idle)
	case errors.Is(err, io.EOF):
		err = fmt.Errorf("%w: %w: stream ended before done", aitemplate.ErrTransport, io.ErrUnexpectedEOF)
	default:
		err = fmt.Errorf("%w: %w", aitemplate.ErrTransport, err)
	}
	if s.finish(OutcomeTransportFault, err) {
		s.warn("stream fault", "error", err)
	}
}

// finish records the terminal outcome and closes the transport. It returns
// false if the session was already terminal.
func (s *Session) finish(outcome Outcome, err error) bool {
	s.mu.Lock()
	if s.outcome != OutcomeOpen {
		s.mu.Unlock()
		return false
	}
	s.outcome, s.err = outcome, err
	stop := s.stop
	s.mu.Unlock()

	s.close()
	if s.timer != nil {
		s.timer.Stop()
	}
	if stop != nil {
		stop()
	}
	if s.observer != nil {
		s.observer.Finished(outcome, time.Since(s.start))
	}
	return true
}

// terminalErr returns io.EOF once the session ended cleanly, the stored
// error after a transport fault, and nil while open
func (s *Session) terminalErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.outcome {
	case OutcomeOpen:
		return nil
	case OutcomeTransportFault:
		return s.err
	default:
		return io.EOF
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		if err := s.rc.Close(); err != nil {
			s.debug("close transport", "error", err)
		}
	})
}

func (s *Session) debug(msg string, keyvals ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, keyvals...)
	}
}

func (s *Session) warn(msg string, keyvals ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, keyvals...)
	}
}

///////////////////////////////////////////////////////////////////////////////
// IDLE READER

type idleReader struct {
	r     io.Reader
	timer *time.Timer
	idle  time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	r.timer.Reset(r.idle)
	defer r.timer.Stop()
	return r.r.Read(p)
}
