package whatsapp

import "zapdesk/internal/domain"

// ParseInboundMessage normalizes one raw webhook message into a typed
// InboundMessage, extracting the unified text field per variant. It returns
// nil when a required field is missing or the type is unrecognized. The
// function is pure: same input, same output, no side effects.
func ParseInboundMessage(raw *RawMessage) *domain.InboundMessage {
	if raw == nil || raw.ID == "" || raw.From == "" || raw.Timestamp == "" || raw.Type == "" {
		return nil
	}

	base := domain.InboundMessage{
		ID:        raw.ID,
		From:      raw.From,
		Timestamp: raw.Timestamp,
	}

	switch raw.Type {
	case "text":
		base.Type = domain.MessageTypeText
		if raw.Text != nil {
			base.Text = raw.Text.Body
		}
		return &base

	case "image":
		if raw.Image == nil || raw.Image.ID == "" {
			return nil
		}
		base.Type = domain.MessageTypeImage
		fillMedia(&base, raw.Image)
		return &base

	case "video":
		if raw.Video == nil || raw.Video.ID == "" {
			return nil
		}
		base.Type = domain.MessageTypeVideo
		fillMedia(&base, raw.Video)
		return &base

	case "audio":
		if raw.Audio == nil || raw.Audio.ID == "" {
			return nil
		}
		base.Type = domain.MessageTypeAudio
		fillMedia(&base, raw.Audio)
		base.Text = "" // audio never carries text
		return &base

	case "document":
		if raw.Document == nil || raw.Document.ID == "" {
			return nil
		}
		base.Type = domain.MessageTypeDocument
		fillMedia(&base, raw.Document)
		base.Filename = raw.Document.Filename
		return &base

	case "button":
		if raw.Button == nil || raw.Button.Payload == "" || raw.Button.Text == "" {
			return nil
		}
		base.Type = domain.MessageTypeButton
		base.Text = raw.Button.Text
		base.InteractiveID = raw.Button.Payload
		return &base

	case "interactive":
		return parseInteractive(&base, raw.Interactive)

	default:
		// Unknown message type.
		return nil
	}
}

func fillMedia(msg *domain.InboundMessage, media *RawMedia) {
	msg.Text = media.Caption
	msg.MediaID = media.ID
	msg.MimeType = media.MimeType
	msg.SHA256 = media.SHA256
}

func parseInteractive(base *domain.InboundMessage, in *RawInteractive) *domain.InboundMessage {
	if in == nil {
		return nil
	}
	base.Type = domain.MessageTypeInteractive

	switch in.Type {
	case "list_reply":
		reply := in.ListReply
		if reply == nil || reply.ID == "" || reply.Title == "" {
			return nil
		}
		base.Text = reply.Title
		base.InteractiveID = reply.ID
		base.InteractiveType = domain.InteractiveListReply
		base.Description = reply.Description
		return base

	case "button_reply":
		reply := in.ButtonReply
		if reply == nil || reply.ID == "" || reply.Title == "" {
			return nil
		}
		base.Text = reply.Title
		base.InteractiveID = reply.ID
		base.InteractiveType = domain.InteractiveButtonReply
		return base

	default:
		return nil
	}
}
