// Package whatsapp implements the WhatsApp Business Cloud API boundary:
// parsing inbound webhook deliveries into domain events and dispatching
// outbound messages through the Graph API send endpoint.
package whatsapp

// WebhookPayload is the JSON envelope WhatsApp delivers to the webhook
// endpoint.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

type ChangeValue struct {
	MessagingProduct string       `json:"messaging_product"`
	Metadata         Metadata     `json:"metadata"`
	Contacts         []Contact    `json:"contacts,omitempty"`
	Messages         []RawMessage `json:"messages,omitempty"`
	Statuses         []any        `json:"statuses,omitempty"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	WaID    string  `json:"wa_id,omitempty"`
	Profile Profile `json:"profile"`
}

type Profile struct {
	Name string `json:"name,omitempty"`
}

// RawMessage is one message as delivered on the wire. Exactly one of the
// type-specific sub-objects is populated, matching Type.
type RawMessage struct {
	ID          string          `json:"id"`
	From        string          `json:"from"`
	Timestamp   string          `json:"timestamp"`
	Type        string          `json:"type"`
	Text        *RawText        `json:"text,omitempty"`
	Image       *RawMedia       `json:"image,omitempty"`
	Video       *RawMedia       `json:"video,omitempty"`
	Audio       *RawMedia       `json:"audio,omitempty"`
	Document    *RawMedia       `json:"document,omitempty"`
	Button      *RawButton      `json:"button,omitempty"`
	Interactive *RawInteractive `json:"interactive,omitempty"`
}

type RawText struct {
	Body string `json:"body"`
}

// RawMedia covers image, video, audio, and document attachments. Caption is
// absent for audio, Filename only set for documents.
type RawMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type RawButton struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

type RawInteractive struct {
	Type        string    `json:"type"`
	ListReply   *RawReply `json:"list_reply,omitempty"`
	ButtonReply *RawReply `json:"button_reply,omitempty"`
}

type RawReply struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}
