package eventbus

import "time"

// EventRequestCreated is published once for every newly stored notification
// request. Payload keys: id, status, message.
const EventRequestCreated = "notification_request.created"

// Event represents an application event published to the bus.
type Event struct {
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload"`
}

// Listener is a function that handles an event.
type Listener func(Event)

// RequestCreatedPayload builds the payload for EventRequestCreated.
func RequestCreatedPayload(id, status, message string) map[string]string {
	return map[string]string{
		"id":      id,
		"status":  status,
		"message": message,
	}
}
