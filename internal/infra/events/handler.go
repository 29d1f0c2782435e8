package events

// Handler consumes events of the types it declares.
type Handler interface {
	Handles() []string
	// Handle must tolerate redelivery of the same event.
	Handle(event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc struct {
	eventTypes []string
	fn         func(Event) error
}

// NewHandlerFunc creates a handler for the given event types.
func NewHandlerFunc(eventTypes []string, fn func(Event) error) *HandlerFunc {
	return &HandlerFunc{
		eventTypes: eventTypes,
		fn:         fn,
	}
}

// Handles returns the event types this handler accepts.
func (h *HandlerFunc) Handles() []string {
	return h.eventTypes
}

// Handle calls the wrapped function.
func (h *HandlerFunc) Handle(event Event) error {
	return h.fn(event)
}
