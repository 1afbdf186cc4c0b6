package domain

import "context"

// Messenger sends outbound messages. Implementations never return an error:
// every failure is captured in the SendResult so a single bad send cannot
// abort a batch.
type Messenger interface {
	Send(ctx context.Context, msg OutboundMessage) SendResult
	// SendBatch sends sequentially, preserving order, with per-item failure
	// isolation.
	SendBatch(ctx context.Context, msgs []OutboundMessage) []SendResult
}
