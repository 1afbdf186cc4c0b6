package whatsapp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapdesk/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAPI captures request bodies and serves scripted responses.
type fakeAPI struct {
	mu       sync.Mutex
	requests []map[string]any
	status   func(n int) int // response status for the n-th call (1-based)
}

func (f *fakeAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(body, &decoded))

		f.mu.Lock()
		f.requests = append(f.requests, decoded)
		n := len(f.requests)
		f.mu.Unlock()

		status := http.StatusOK
		if f.status != nil {
			status = f.status(n)
		}
		w.WriteHeader(status)
		if status < 300 {
			io.WriteString(w, `{"messages": [{"id": "wamid.sent"}]}`)
		} else {
			io.WriteString(w, `{"error": {"message": "boom"}}`)
		}
	}
}

func newTestSender(t *testing.T, api *fakeAPI, delay time.Duration) *Sender {
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	return NewSender(SenderConfig{
		AccessToken:   "test-token",
		PhoneNumberID: "pn-1",
		APIBase:       srv.URL,
		SendDelay:     delay,
		Logger:        testLogger(),
	})
}

func TestSend_TextSuccess(t *testing.T) {
	api := &fakeAPI{}
	sender := newTestSender(t, api, 0)

	result := sender.Send(context.Background(), domain.OutboundMessage{
		Type:       domain.OutboundText,
		To:         domain.Recipient{Phone: "5562999990000"},
		Text:       "olá",
		PreviewURL: true,
	})

	assert.True(t, result.Success)
	assert.Equal(t, "wamid.sent", result.MessageID)
	assert.Empty(t, result.Err)
	assert.False(t, result.Timestamp.IsZero())

	require.Len(t, api.requests, 1)
	req := api.requests[0]
	assert.Equal(t, "whatsapp", req["messaging_product"])
	assert.Equal(t, "individual", req["recipient_type"])
	assert.Equal(t, "5562999990000", req["to"])
	assert.Equal(t, "text", req["type"])
	text := req["text"].(map[string]any)
	assert.Equal(t, "olá", text["body"])
	assert.Equal(t, true, text["preview_url"])
}

func TestSend_APIErrorCapturedInResult(t *testing.T) {
	api := &fakeAPI{status: func(int) int { return http.StatusUnauthorized }}
	sender := newTestSender(t, api, 0)

	result := sender.Send(context.Background(), domain.TextMessage(domain.Recipient{Phone: "1"}, "oi"))

	assert.False(t, result.Success)
	assert.Contains(t, result.Err, "401")
	assert.Empty(t, result.MessageID)
}

func TestSend_TransportErrorCapturedInResult(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	srv.Close() // connection refused from here on

	sender := NewSender(SenderConfig{
		AccessToken:   "test-token",
		PhoneNumberID: "pn-1",
		APIBase:       srv.URL,
		Logger:        testLogger(),
	})

	result := sender.Send(context.Background(), domain.TextMessage(domain.Recipient{Phone: "1"}, "oi"))
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Err)
}

func TestSend_ButtonsPayload(t *testing.T) {
	api := &fakeAPI{}
	sender := newTestSender(t, api, 0)

	sender.Send(context.Background(), domain.OutboundMessage{
		Type:   domain.OutboundButtons,
		To:     domain.Recipient{Phone: "1"},
		Body:   "Escolha uma opção",
		Footer: "Atendimento",
		Buttons: []domain.Button{
			{ID: "yes", Title: "Sim"},
			{ID: "no", Title: "Não"},
		},
	})

	require.Len(t, api.requests, 1)
	req := api.requests[0]
	assert.Equal(t, "interactive", req["type"])

	interactive := req["interactive"].(map[string]any)
	assert.Equal(t, "button", interactive["type"])
	assert.Equal(t, "Escolha uma opção", interactive["body"].(map[string]any)["text"])
	assert.Equal(t, "Atendimento", interactive["footer"].(map[string]any)["text"])

	buttons := interactive["action"].(map[string]any)["buttons"].([]any)
	require.Len(t, buttons, 2)
	first := buttons[0].(map[string]any)
	assert.Equal(t, "reply", first["type"])
	assert.Equal(t, "yes", first["reply"].(map[string]any)["id"])
	assert.Equal(t, "Sim", first["reply"].(map[string]any)["title"])
}

func TestSend_ListPayload(t *testing.T) {
	api := &fakeAPI{}
	sender := newTestSender(t, api, 0)

	sender.Send(context.Background(), domain.OutboundMessage{
		Type:       domain.OutboundList,
		To:         domain.Recipient{Phone: "1"},
		Body:       "Nossos serviços",
		ButtonText: "Ver opções",
		Sections: []domain.ListSection{
			{Title: "Planos", Rows: []domain.ListRow{
				{ID: "basic", Title: "Básico", Description: "R$ 50/mês"},
			}},
		},
	})

	require.Len(t, api.requests, 1)
	interactive := api.requests[0]["interactive"].(map[string]any)
	assert.Equal(t, "list", interactive["type"])
	_, hasFooter := interactive["footer"]
	assert.False(t, hasFooter, "empty footer is omitted")

	action := interactive["action"].(map[string]any)
	assert.Equal(t, "Ver opções", action["button"])
	sections := action["sections"].([]any)
	require.Len(t, sections, 1)
	rows := sections[0].(map[string]any)["rows"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "Básico", rows[0].(map[string]any)["title"])
}

func TestSend_MediaPayloads(t *testing.T) {
	tests := []struct {
		name string
		msg  domain.OutboundMessage
		key  string
		want map[string]any
	}{
		{
			name: "image with caption",
			msg:  domain.OutboundMessage{Type: domain.OutboundImage, To: domain.Recipient{Phone: "1"}, MediaID: "m1", Caption: "foto"},
			key:  "image",
			want: map[string]any{"id": "m1", "caption": "foto"},
		},
		{
			name: "video with caption",
			msg:  domain.OutboundMessage{Type: domain.OutboundVideo, To: domain.Recipient{Phone: "1"}, MediaID: "m2", Caption: "vídeo"},
			key:  "video",
			want: map[string]any{"id": "m2", "caption": "vídeo"},
		},
		{
			name: "audio has id only",
			msg:  domain.OutboundMessage{Type: domain.OutboundAudio, To: domain.Recipient{Phone: "1"}, MediaID: "m3", Caption: "ignored"},
			key:  "audio",
			want: map[string]any{"id": "m3"},
		},
		{
			name: "document with filename",
			msg:  domain.OutboundMessage{Type: domain.OutboundDocument, To: domain.Recipient{Phone: "1"}, MediaID: "m4", Caption: "contrato", Filename: "contrato.pdf"},
			key:  "document",
			want: map[string]any{"id": "m4", "caption": "contrato", "filename": "contrato.pdf"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{}
			sender := newTestSender(t, api, 0)

			result := sender.Send(context.Background(), tt.msg)
			assert.True(t, result.Success)

			require.Len(t, api.requests, 1)
			req := api.requests[0]
			assert.Equal(t, tt.key, req["type"])
			assert.Equal(t, tt.want, req[tt.key])
		})
	}
}

func TestSendBatch_OrderAndPacing(t *testing.T) {
	api := &fakeAPI{}
	delay := 50 * time.Millisecond
	sender := newTestSender(t, api, delay)

	msgs := []domain.OutboundMessage{
		domain.TextMessage(domain.Recipient{Phone: "1"}, "um"),
		domain.TextMessage(domain.Recipient{Phone: "2"}, "dois"),
		domain.TextMessage(domain.Recipient{Phone: "3"}, "três"),
	}

	start := time.Now()
	results := sender.SendBatch(context.Background(), msgs)
	elapsed := time.Since(start)

	require.Len(t, results, 3)
	for _, result := range results {
		assert.True(t, result.Success)
	}
	assert.GreaterOrEqual(t, elapsed, 2*delay, "N messages must be paced by (N-1) delays")

	require.Len(t, api.requests, 3)
	assert.Equal(t, "1", api.requests[0]["to"])
	assert.Equal(t, "2", api.requests[1]["to"])
	assert.Equal(t, "3", api.requests[2]["to"])
}

func TestSendBatch_FailureIsolation(t *testing.T) {
	api := &fakeAPI{status: func(n int) int {
		if n == 2 {
			return http.StatusInternalServerError
		}
		return http.StatusOK
	}}
	sender := newTestSender(t, api, time.Millisecond)

	results := sender.SendBatch(context.Background(), []domain.OutboundMessage{
		domain.TextMessage(domain.Recipient{Phone: "1"}, "a"),
		domain.TextMessage(domain.Recipient{Phone: "2"}, "b"),
		domain.TextMessage(domain.Recipient{Phone: "3"}, "c"),
	})

	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.True(t, results[2].Success, "a failed send must not abort subsequent sends")
}

func TestSendBatch_SingleMessageSkipsDelay(t *testing.T) {
	api := &fakeAPI{}
	sender := newTestSender(t, api, 200*time.Millisecond)

	start := time.Now()
	results := sender.SendBatch(context.Background(), []domain.OutboundMessage{
		domain.TextMessage(domain.Recipient{Phone: "1"}, "só uma"),
	})

	require.Len(t, results, 1)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestSendBatch_ContextCancellation(t *testing.T) {
	api := &fakeAPI{}
	sender := newTestSender(t, api, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	results := sender.SendBatch(ctx, []domain.OutboundMessage{
		domain.TextMessage(domain.Recipient{Phone: "1"}, "a"),
		domain.TextMessage(domain.Recipient{Phone: "2"}, "b"),
		domain.TextMessage(domain.Recipient{Phone: "3"}, "c"),
	})

	assert.Less(t, len(results), 3, "cancellation stops the batch between items")
}
