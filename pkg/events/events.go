// Package events fans job and chat state changes out to subscribed
// server-sent-event streams. Each hub owns its subscriber set; frames
// are written and flushed inside the hub lock so every subscriber
// observes init followed by updates in broadcast order.
package events

import (
	"encoding/json"
	"fmt"
	"io"
)

// Event types used on both streams.
const (
	EventInit     = "init"
	EventNew      = "new"
	EventUpdate   = "update"
	EventComplete = "complete"
)

// Sink is a destination for server-sent event frames, typically an
// HTTP response writer that supports flushing.
type Sink interface {
	io.Writer
	Flush()
}

// writeFrame marshals data and writes one SSE frame to the sink.
func writeFrame(s Sink, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	s.Flush()
	return nil
}
