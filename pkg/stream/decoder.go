package stream

import (
	"bufio"
	"io"
	"strings"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Frame is one dispatched (event, data) pair of the line protocol.
type Frame struct {
	Event string
	Data  string
}

// Decoder splits an event stream into frames. An "event:" line sets the
// event name, a "data:" line replaces the data, and a blank line dispatches
// the frame if the data is not empty. All other lines are ignored.
type Decoder struct {
	scanner *bufio.Scanner
	event   string
	data    string
}

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	fieldEvent = "event:"
	fieldData  = "data:"

	// Default longest accepted line, tool outputs can be large
	MaxLineSize = 4 << 20
)

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func NewDecoder(r io.Reader) *Decoder {
	return NewDecoderSize(r, MaxLineSize)
}

// NewDecoderSize returns a decoder which fails with bufio.ErrTooLong on a
// line longer than max bytes. A max of zero or less uses MaxLineSize.
func NewDecoderSize(r io.Reader, max int) *Decoder {
	if max <= 0 {
		max = MaxLineSize
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(64<<10, max)), max)
	return &Decoder{scanner: scanner}
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Next returns the next dispatched frame. It returns io.EOF when the input
// ends; a pending frame without its terminating blank line is discarded.
func (d *Decoder) Next() (Frame, error) {
	for d.scanner.Scan() {
		// ScanLines drops a trailing carriage return
		line := d.scanner.Text()
		switch {
		case strings.HasPrefix(line, fieldEvent):
			d.event = strings.TrimSpace(line[len(fieldEvent):])
		case strings.HasPrefix(line, fieldData):
			d.data = strings.TrimSpace(line[len(fieldData):])
		case line == "" && d.data != "":
			frame := Frame{Event: d.event, Data: d.data}
			d.event, d.data = "", ""
			return frame, nil
		}
	}
	if err := d.scanner.Err(); err != nil {
		return Frame{}, err
	}
	return Frame{}, io.EOF
}
