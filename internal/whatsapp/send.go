package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"zapdesk/internal/domain"
	"zapdesk/internal/metrics"
)

const defaultAPIBase = "https://graph.facebook.com/v21.0"

// DefaultSendDelay is the pause inserted between batch sends. WhatsApp caps
// throughput per second; 50ms keeps us at 20 msg/s, well under the ceiling.
const DefaultSendDelay = 50 * time.Millisecond

// SenderConfig configures a Sender.
type SenderConfig struct {
	AccessToken   string
	PhoneNumberID string
	APIBase       string        // override for tests; defaults to the Graph API
	SendDelay     time.Duration // inter-message delay in batches; defaults to DefaultSendDelay
	Logger        *slog.Logger
}

// Sender dispatches outbound messages through the WhatsApp Cloud API. It
// implements domain.Messenger: failures never surface as errors, only as
// failed SendResults.
type Sender struct {
	apiURL      string
	accessToken string
	sendDelay   time.Duration
	logger      *slog.Logger
	client      *http.Client
}

func NewSender(cfg SenderConfig) *Sender {
	base := cfg.APIBase
	if base == "" {
		base = defaultAPIBase
	}
	delay := cfg.SendDelay
	if delay <= 0 {
		delay = DefaultSendDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		apiURL:      fmt.Sprintf("%s/%s/messages", base, cfg.PhoneNumberID),
		accessToken: cfg.AccessToken,
		sendDelay:   delay,
		logger:      logger.With("component", "whatsapp-sender"),
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

// apiResponse is the subset of the send endpoint response we read back.
type apiResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Send delivers one message. All failures, from payload construction to a
// non-2xx status, are captured in the result.
func (s *Sender) Send(ctx context.Context, msg domain.OutboundMessage) domain.SendResult {
	log := s.logger.With("to", msg.To.Phone, "type", string(msg.Type))
	start := time.Now()

	result := s.send(ctx, msg, log)

	metrics.SendLatency.Observe(time.Since(start).Seconds())
	if result.Success {
		metrics.SendsTotal.Inc()
		log.Info("message sent", "message_id", result.MessageID)
	} else {
		metrics.SendFailures.Inc()
		log.Error("send failed", "err", result.Err)
	}
	return result
}

func (s *Sender) send(ctx context.Context, msg domain.OutboundMessage, log *slog.Logger) domain.SendResult {
	payload, err := buildPayload(msg)
	if err != nil {
		return failure(err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return failure(fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return failure(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.accessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return failure(fmt.Errorf("send: %w", err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error("whatsapp API error", "status", resp.StatusCode, "body", string(respBody))
		return failure(fmt.Errorf("whatsapp API %d: %s", resp.StatusCode, string(respBody)))
	}

	var parsed apiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return failure(fmt.Errorf("decode response: %w", err))
	}

	var messageID string
	if len(parsed.Messages) > 0 {
		messageID = parsed.Messages[0].ID
	}

	return domain.SendResult{Success: true, MessageID: messageID, Timestamp: time.Now()}
}

func failure(err error) domain.SendResult {
	return domain.SendResult{Err: err.Error(), Timestamp: time.Now()}
}

// SendBatch sends sequentially in order. The API offers no batch endpoint, so
// messages go one at a time with an inter-message delay to respect the rate
// ceiling. One message's failure never aborts the rest. Cancelling the
// context stops the batch between items; results up to that point are
// returned.
func (s *Sender) SendBatch(ctx context.Context, msgs []domain.OutboundMessage) []domain.SendResult {
	results := make([]domain.SendResult, 0, len(msgs))

	for i, msg := range msgs {
		results = append(results, s.Send(ctx, msg))

		if len(msgs) > 1 && i < len(msgs)-1 {
			select {
			case <-ctx.Done():
				return results
			case <-time.After(s.sendDelay):
			}
		}
	}

	return results
}

// wirePayload is the Cloud API request body.
// https://developers.facebook.com/docs/whatsapp/cloud-api/reference/messages
type wirePayload struct {
	MessagingProduct string           `json:"messaging_product"`
	RecipientType    string           `json:"recipient_type,omitempty"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             *wireText        `json:"text,omitempty"`
	Interactive      *wireInteractive `json:"interactive,omitempty"`
	Image            *wireMedia       `json:"image,omitempty"`
	Video            *wireMedia       `json:"video,omitempty"`
	Audio            *wireMedia       `json:"audio,omitempty"`
	Document         *wireMedia       `json:"document,omitempty"`
}

type wireText struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

type wireInteractive struct {
	Type   string    `json:"type"`
	Body   wireBody  `json:"body"`
	Footer *wireBody `json:"footer,omitempty"`
	Action any       `json:"action"`
}

type wireBody struct {
	Text string `json:"text"`
}

type wireMedia struct {
	ID       string `json:"id"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type wireReplyButton struct {
	Type  string        `json:"type"`
	Reply wireButtonRef `json:"reply"`
}

type wireButtonRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type wireSection struct {
	Title string        `json:"title,omitempty"`
	Rows  []wireListRow `json:"rows"`
}

type wireListRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

func buildPayload(msg domain.OutboundMessage) (*wirePayload, error) {
	base := &wirePayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               msg.To.Phone,
	}

	switch msg.Type {
	case domain.OutboundText:
		base.Type = "text"
		base.Text = &wireText{Body: msg.Text, PreviewURL: msg.PreviewURL}

	case domain.OutboundButtons:
		base.Type = "interactive"
		buttons := make([]wireReplyButton, 0, len(msg.Buttons))
		for _, b := range msg.Buttons {
			buttons = append(buttons, wireReplyButton{
				Type:  "reply",
				Reply: wireButtonRef{ID: b.ID, Title: b.Title},
			})
		}
		base.Interactive = &wireInteractive{
			Type:   "button",
			Body:   wireBody{Text: msg.Body},
			Footer: footer(msg.Footer),
			Action: map[string]any{"buttons": buttons},
		}

	case domain.OutboundList:
		base.Type = "interactive"
		sections := make([]wireSection, 0, len(msg.Sections))
		for _, sec := range msg.Sections {
			rows := make([]wireListRow, 0, len(sec.Rows))
			for _, row := range sec.Rows {
				rows = append(rows, wireListRow(row))
			}
			sections = append(sections, wireSection{Title: sec.Title, Rows: rows})
		}
		base.Interactive = &wireInteractive{
			Type:   "list",
			Body:   wireBody{Text: msg.Body},
			Footer: footer(msg.Footer),
			Action: map[string]any{"button": msg.ButtonText, "sections": sections},
		}

	case domain.OutboundImage:
		base.Type = "image"
		base.Image = &wireMedia{ID: msg.MediaID, Caption: msg.Caption}

	case domain.OutboundVideo:
		base.Type = "video"
		base.Video = &wireMedia{ID: msg.MediaID, Caption: msg.Caption}

	case domain.OutboundAudio:
		base.Type = "audio"
		base.Audio = &wireMedia{ID: msg.MediaID}

	case domain.OutboundDocument:
		base.Type = "document"
		base.Document = &wireMedia{ID: msg.MediaID, Caption: msg.Caption, Filename: msg.Filename}

	default:
		return nil, fmt.Errorf("unsupported message type: %s", msg.Type)
	}

	return base, nil
}

func footer(text string) *wireBody {
	if text == "" {
		return nil
	}
	return &wireBody{Text: text}
}
