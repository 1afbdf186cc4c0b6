package whatsapp

import (
	"encoding/json"
	"fmt"

	"zapdesk/internal/domain"
)

// ParseResultType discriminates the outcome of an envelope parse.
type ParseResultType string

const (
	// ParseSuccess carries a normalized MessageReceivedEvent.
	ParseSuccess ParseResultType = "success"
	// ParseError means the envelope was recognized but the message inside it
	// could not be parsed; SenderPhone is preserved for a fallback reply.
	ParseError ParseResultType = "error"
	// ParseUnsupported means the payload is not a message delivery (status
	// callbacks, unrecognized shapes). It is ignorable, not an error.
	ParseUnsupported ParseResultType = "unsupported"
)

// ParseResult is the closed result union of ParseWebhook.
type ParseResult struct {
	Type        ParseResultType
	Event       *domain.MessageReceivedEvent // success only
	Reason      string                       // error and unsupported
	SenderPhone string                       // error only, may be empty
}

const (
	reasonInvalidStructure = "invalid webhook structure"
	reasonNotAMessage      = "not a message payload"
)

// ParseWebhook validates the outer webhook envelope and produces a normalized
// event for the first message it contains. Unrecognized envelope shapes are
// deliberately fail-open: they yield Unsupported so third-party payload
// changes never crash ingestion.
//
// Each webhook delivery is designed to carry exactly one message; any
// additional entries in the messages array are ignored after the first.
func ParseWebhook(body []byte) ParseResult {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return ParseResult{Type: ParseUnsupported, Reason: reasonInvalidStructure}
	}
	return ParsePayload(&payload)
}

// ParsePayload is ParseWebhook over an already-decoded payload.
func ParsePayload(payload *WebhookPayload) ParseResult {
	if payload == nil || payload.Object != "whatsapp_business_account" {
		return ParseResult{Type: ParseUnsupported, Reason: reasonInvalidStructure}
	}
	if len(payload.Entry) == 0 || len(payload.Entry[0].Changes) == 0 {
		return ParseResult{Type: ParseUnsupported, Reason: reasonInvalidStructure}
	}

	value := &payload.Entry[0].Changes[0].Value
	if value.MessagingProduct != "whatsapp" {
		return ParseResult{Type: ParseUnsupported, Reason: reasonInvalidStructure}
	}
	if len(value.Messages) == 0 {
		// Delivery-status callbacks arrive without a messages array.
		return ParseResult{Type: ParseUnsupported, Reason: reasonNotAMessage}
	}

	raw := &value.Messages[0]
	parsed := ParseInboundMessage(raw)
	if parsed == nil {
		return ParseResult{
			Type:        ParseError,
			Reason:      fmt.Sprintf("unsupported message type: %s", raw.Type),
			SenderPhone: raw.From,
		}
	}

	var senderName string
	if len(value.Contacts) > 0 {
		senderName = value.Contacts[0].Profile.Name
	}

	return ParseResult{
		Type: ParseSuccess,
		Event: &domain.MessageReceivedEvent{
			MessageID:       parsed.ID,
			MessageType:     parsed.Type,
			Text:            parsed.Text,
			Timestamp:       parsed.Timestamp,
			SenderName:      senderName,
			SenderPhone:     parsed.From,
			ReceiverPhone:   value.Metadata.DisplayPhoneNumber,
			State:           domain.StatePending,
			MediaID:         parsed.MediaID,
			MimeType:        parsed.MimeType,
			SHA256:          parsed.SHA256,
			Filename:        parsed.Filename,
			InteractiveID:   parsed.InteractiveID,
			InteractiveType: parsed.InteractiveType,
		},
	}
}
