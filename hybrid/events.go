package hybrid

import "github.com/sweetpotato0/ai-tutor/websearch"

// EventType labels the typed events a turn emits.
type EventType string

const (
	EventChunk   EventType = "chunk"
	EventSources EventType = "sources"
	EventDone    EventType = "done"
	EventError   EventType = "error"
)

// PDFSource is one attributed textbook hit.
type PDFSource struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Score    float32           `json:"score"`
}

// Sources summarizes everything the answer was grounded on.
type Sources struct {
	PDFSources []PDFSource        `json:"pdf_sources"`
	WebSources []websearch.Result `json:"web_sources"`
	RouteUsed  string             `json:"route_used"`
}

// Event is one frame of a streamed turn. A successful turn emits
// zero or more chunk events, exactly one sources event, then done.
// A failed turn terminates with a single error event instead.
type Event struct {
	Type    EventType `json:"type"`
	Content string    `json:"content,omitempty"`
	Sources *Sources  `json:"sources,omitempty"`
	Message string    `json:"message,omitempty"`
}

func chunkEvent(content string) *Event {
	return &Event{Type: EventChunk, Content: content}
}

func sourcesEvent(s *Sources) *Event {
	return &Event{Type: EventSources, Sources: s}
}

func doneEvent() *Event {
	return &Event{Type: EventDone}
}

func errorEvent(msg string) *Event {
	return &Event{Type: EventError, Message: msg}
}
