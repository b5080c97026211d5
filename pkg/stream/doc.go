/*
Package stream consumes the chat backend's event stream.

A Decoder splits the text/event-stream body into frames, Parse maps each
frame to a typed schema.StreamEvent, and a Session hands the events to a
single consumer in wire order until a done or error event, a transport
fault, or cancellation:

	session := stream.NewSession(resp.Body, stream.WithIdleTimeout(time.Minute))
	var turn stream.Turn
	for event, err := range session.Events() {
		if err != nil {
			return err
		}
		turn.Apply(event)
	}

Frames which cannot be decoded are dropped and the stream continues.
*/
package stream
