package foanalytics

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ============================================================================
// Message Envelope
// ============================================================================

// Message is the envelope exchanged in both directions over the realtime
// connection: a type discriminator, an ISO-8601 production timestamp, and an
// opaque type-specific payload.
type Message struct {
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Handler consumes a delivered Message. Handlers run on the connection's
// read goroutine; a panicking handler is recovered and logged without
// affecting other handlers or the connection.
type Handler func(Message)

// Wildcard subscribes a handler to every delivered message type.
const Wildcard = "*"

// Reserved heartbeat types. Pings are produced by the client; the server's
// pong reply is swallowed and never reaches application handlers.
const (
	TypePing = "ping"
	TypePong = "pong"
)

// Synthetic lifecycle types, delivered through Subscribe exactly like
// server messages.
const (
	EventConnectionOpen   = "connection.open"
	EventConnectionClosed = "connection.closed"
	EventConnectionError  = "connection.error"
	EventConnectionFailed = "connection.failed"
)

// FO Analytics event namespace.
const (
	EventDocumentUploaded            = "document.uploaded"
	EventDocumentProcessingStarted   = "document.processing.started"
	EventDocumentProcessingCompleted = "document.processing.completed"
	EventDocumentProcessingFailed    = "document.processing.failed"
	EventAnalysisCompleted           = "analysis.completed"
	EventPortfolioUpdated            = "portfolio.updated"
)

// ============================================================================
// Frame parsing
// ============================================================================

var errMissingType = errors.New("frame missing type")

// parseFrame decodes an inbound frame into a Message. A frame that is not
// valid JSON or carries no type is rejected. A missing timestamp is stamped
// with the receive time and a missing data object is normalized to an empty
// one, so every dispatched message has all three fields populated.
func parseFrame(raw []byte, received time.Time) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("decode frame: %w", err)
	}
	if msg.Type == "" {
		return Message{}, errMissingType
	}
	if msg.Timestamp == "" {
		msg.Timestamp = received.UTC().Format(time.RFC3339)
	}
	if msg.Data == nil {
		msg.Data = map[string]any{}
	}
	return msg, nil
}

// newMessage builds a client-produced envelope (pings and synthetic
// lifecycle events) with a fresh timestamp.
func newMessage(typ string, data map[string]any, produced time.Time) Message {
	if data == nil {
		data = map[string]any{}
	}
	return Message{
		Type:      typ,
		Timestamp: produced.UTC().Format(time.RFC3339),
		Data:      data,
	}
}
