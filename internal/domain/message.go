package domain

// MessageType identifies the kind of an inbound WhatsApp message.
type MessageType string

const (
	MessageTypeText        MessageType = "text"
	MessageTypeImage       MessageType = "image"
	MessageTypeVideo       MessageType = "video"
	MessageTypeAudio       MessageType = "audio"
	MessageTypeDocument    MessageType = "document"
	MessageTypeButton      MessageType = "button"
	MessageTypeInteractive MessageType = "interactive"
)

// InteractiveType discriminates interactive reply variants.
type InteractiveType string

const (
	InteractiveListReply   InteractiveType = "list_reply"
	InteractiveButtonReply InteractiveType = "button_reply"
)

// ProcessState tracks the lifecycle of a received message. The webhook parser
// only ever assigns StatePending; the remaining states are reserved for async
// processing tracking.
type ProcessState string

const (
	StatePending    ProcessState = "PENDING"
	StateProcessing ProcessState = "PROCESSING"
	StateCompleted  ProcessState = "COMPLETED"
	StateError      ProcessState = "ERROR"
)

// InboundMessage is a parsed inbound WhatsApp message. The set of variants is
// closed and discriminated by Type. Text is the unified text field: body for
// text messages, caption for media, button or list title for interactive
// replies, always empty for audio. Text is never absent, only possibly "".
type InboundMessage struct {
	ID        string
	From      string
	Timestamp string
	Type      MessageType
	Text      string

	// Media fields, set for image/video/audio/document.
	MediaID  string
	MimeType string
	SHA256   string
	Filename string // document only

	// Interactive fields, set for button/interactive.
	InteractiveID   string
	InteractiveType InteractiveType // interactive only
	Description     string          // list_reply only
}

// HasMedia reports whether the message carries a media attachment.
func (m *InboundMessage) HasMedia() bool {
	switch m.Type {
	case MessageTypeImage, MessageTypeVideo, MessageTypeAudio, MessageTypeDocument:
		return true
	}
	return false
}

// IsInteractive reports whether the message is a button or list reply.
func (m *InboundMessage) IsInteractive() bool {
	return m.Type == MessageTypeButton || m.Type == MessageTypeInteractive
}

// MessageReceivedEvent is the flattened projection of one inbound message plus
// its webhook envelope metadata. It is produced once per webhook delivery and
// consumed exactly once by the processor.
type MessageReceivedEvent struct {
	MessageID     string
	MessageType   MessageType
	Text          string
	Timestamp     string
	SenderName    string // optional, from the contact profile
	SenderPhone   string
	ReceiverPhone string
	State         ProcessState

	// Mirrored media fields (empty for non-media messages).
	MediaID  string
	MimeType string
	SHA256   string
	Filename string

	// Mirrored interactive fields (empty for non-interactive messages).
	InteractiveID   string
	InteractiveType InteractiveType
}
