package httphandler

import (
	"fmt"
	"net/http"
	"strings"

	// Packages
	client "github.com/mutablelogic/go-client"
	stream "github.com/mutablelogic/go-aitemplate/pkg/stream"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// frameWriter writes event stream frames, flushing after each one
type frameWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// newFrameWriter sets the event stream headers. It returns nil if the
// response cannot be flushed.
func newFrameWriter(w http.ResponseWriter) *frameWriter {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil
	}
	w.Header().Set("Content-Type", client.ContentTypeTextStream)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &frameWriter{w: w, flusher: flusher}
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Write sends one frame. Data is sent on a single line, with any newlines
// replaced by spaces. A frame without an event name has no event line.
func (f *frameWriter) Write(frame stream.Frame) error {
	data := strings.ReplaceAll(strings.ReplaceAll(frame.Data, "\r", ""), "\n", " ")
	var err error
	if frame.Event != "" {
		_, err = fmt.Fprintf(f.w, "event: %s\ndata: %s\n\n", frame.Event, data)
	} else {
		_, err = fmt.Fprintf(f.w, "data: %s\n\n", data)
	}
	if err != nil {
		return err
	}
	f.flusher.Flush()
	return nil
}
