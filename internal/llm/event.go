package llm

// EventType tags a streamed event
type EventType string

const (
	EventReasoningDelta EventType = "reasoning_delta"
	EventContentDelta   EventType = "content_delta"
	EventError          EventType = "error"
)

// Event is one item of a decoded response stream.
// End of stream is signalled by io.EOF, not by an event.
type Event struct {
	Type EventType
	// Text is the delta fragment, verbatim, or the error message
	Text string
	// Err is set for EventError
	Err error
}

// ReasoningDelta returns a reasoning fragment event
func ReasoningDelta(text string) Event {
	return Event{Type: EventReasoningDelta, Text: text}
}

// ContentDelta returns an answer fragment event
func ContentDelta(text string) Event {
	return Event{Type: EventContentDelta, Text: text}
}

// ErrorEvent returns the terminal error event for err
func ErrorEvent(err error) Event {
	return Event{Type: EventError, Text: err.Error(), Err: err}
}
