// Package push defines the multicast delivery contract used by the dispatch
// engine and its Firebase Cloud Messaging (HTTP v1) implementation.
package push

import "context"

// MaxMulticastTokens is the largest token list one SendMulticast call accepts.
const MaxMulticastTokens = 500

// MulticastMessage is one payload addressed to many device tokens.
type MulticastMessage struct {
	Tokens []string
	Title  string
	Body   string
	Data   map[string]string
}

// SendResponse is the outcome of delivering to a single token.
type SendResponse struct {
	Token     string
	Success   bool
	MessageID string
	// ErrorCode is one of the Code* constants when Success is false.
	ErrorCode string
	// Err carries transport diagnostics for logging; it is never persisted.
	Err error
}

// BatchResponse is the result of a multicast send. Responses is aligned
// index-by-index with MulticastMessage.Tokens, and SuccessCount/FailureCount
// equal the number of successful/failed entries.
type BatchResponse struct {
	SuccessCount int
	FailureCount int
	Responses    []SendResponse
}

// Gateway delivers a message to many tokens, attempting each independently.
// A non-nil error means the call itself could not be performed; per-token
// failures are reported in the BatchResponse instead.
type Gateway interface {
	// Name returns the gateway identifier (e.g. "fcm").
	Name() string
	// SendMulticast delivers msg to every token in msg.Tokens.
	SendMulticast(ctx context.Context, msg *MulticastMessage) (*BatchResponse, error)
}
