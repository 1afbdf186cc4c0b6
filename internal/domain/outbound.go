package domain

import "time"

// OutboundType identifies the kind of an outbound message.
type OutboundType string

const (
	OutboundText     OutboundType = "text"
	OutboundButtons  OutboundType = "buttons"
	OutboundList     OutboundType = "list"
	OutboundImage    OutboundType = "image"
	OutboundVideo    OutboundType = "video"
	OutboundAudio    OutboundType = "audio"
	OutboundDocument OutboundType = "document"
)

// Recipient addresses an outbound message. Name is optional and only used for
// logging.
type Recipient struct {
	Phone string
	Name  string
}

// Button is one reply button. WhatsApp allows at most 3 per message, titles
// capped at 20 characters.
type Button struct {
	ID    string
	Title string
}

// ListRow is one selectable row in a list message. Title is capped at 24
// characters, Description at 72.
type ListRow struct {
	ID          string
	Title       string
	Description string
}

// ListSection groups rows in a list message. WhatsApp allows at most 10
// sections of 10 rows each.
type ListSection struct {
	Title string
	Rows  []ListRow
}

// OutboundMessage is the closed union of sendable message variants,
// discriminated by Type. Only the fields of the selected variant are
// meaningful.
type OutboundMessage struct {
	Type OutboundType
	To   Recipient

	// Text variant.
	Text       string
	PreviewURL bool

	// Interactive variants (buttons and list).
	Body       string
	Footer     string
	Buttons    []Button
	ButtonText string // list only: label of the button that opens the list
	Sections   []ListSection

	// Media variants.
	MediaID  string
	Caption  string // not audio
	Filename string // document only
}

// TextMessage builds a plain text message.
func TextMessage(to Recipient, text string) OutboundMessage {
	return OutboundMessage{Type: OutboundText, To: to, Text: text}
}

// SendResult reports the outcome of one attempted send. The dispatcher never
// returns errors to its caller; every failure is captured here.
type SendResult struct {
	Success   bool
	MessageID string // platform-assigned id, on success
	Err       string // on failure
	Timestamp time.Time
}
