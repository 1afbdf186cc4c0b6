package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"zapdesk/internal/domain"
)

func testServerLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingMessenger struct {
	mu    sync.Mutex
	sends []domain.OutboundMessage
}

func (m *recordingMessenger) Send(ctx context.Context, msg domain.OutboundMessage) domain.SendResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, msg)
	return domain.SendResult{Success: true, Timestamp: time.Now()}
}

func (m *recordingMessenger) SendBatch(ctx context.Context, msgs []domain.OutboundMessage) []domain.SendResult {
	results := make([]domain.SendResult, 0, len(msgs))
	for _, msg := range msgs {
		results = append(results, m.Send(ctx, msg))
	}
	return results
}

type recordingProcessor struct {
	mu     sync.Mutex
	events []*domain.MessageReceivedEvent
}

func (p *recordingProcessor) ProcessMessage(ctx context.Context, event *domain.MessageReceivedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func newTestServer(appSecret string) (*Server, *recordingMessenger, *recordingProcessor) {
	messenger := &recordingMessenger{}
	processor := &recordingProcessor{}
	srv := New(Config{
		Port:        0,
		WebhookPath: "/",
		VerifyToken: "top-secret",
		AppSecret:   appSecret,
		Messenger:   messenger,
		Processor:   processor,
		Logger:      testServerLogger(),
	})
	return srv, messenger, processor
}

func textWebhook(t *testing.T, msgType string) []byte {
	t.Helper()
	payload := map[string]any{
		"object": "whatsapp_business_account",
		"entry": []any{map[string]any{
			"id": "entry-1",
			"changes": []any{map[string]any{
				"field": "messages",
				"value": map[string]any{
					"messaging_product": "whatsapp",
					"metadata":          map[string]any{"display_phone_number": "5562111112222", "phone_number_id": "pn-1"},
					"contacts":          []any{map[string]any{"profile": map[string]any{"name": "Maria"}}},
					"messages": []any{map[string]any{
						"id":        "wamid.abc",
						"from":      "5562999990000",
						"timestamp": "1700000000",
						"type":      msgType,
						"text":      map[string]any{"body": "oi"},
					}},
				},
			}},
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestVerification_Success(t *testing.T) {
	srv, _, _ := newTestServer("")

	req := httptest.NewRequest(http.MethodGet, "/?hub.mode=subscribe&hub.verify_token=top-secret&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "12345" {
		t.Errorf("expected challenge echoed, got %q", rec.Body.String())
	}
}

func TestVerification_WrongToken(t *testing.T) {
	srv, _, _ := newTestServer("")

	req := httptest.NewRequest(http.MethodGet, "/?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestVerification_WrongMode(t *testing.T) {
	srv, _, _ := newTestServer("")

	req := httptest.NewRequest(http.MethodGet, "/?hub.mode=unsubscribe&hub.verify_token=top-secret", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestWebhook_TextMessageAccepted(t *testing.T) {
	srv, _, processor := newTestServer("")

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(textWebhook(t, "text")))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if len(processor.events) != 1 {
		t.Fatalf("expected 1 processed event, got %d", len(processor.events))
	}
	event := processor.events[0]
	if event.MessageID != "wamid.abc" || event.Text != "oi" || event.State != domain.StatePending {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestWebhook_MalformedMessageGets400AndFallback(t *testing.T) {
	srv, messenger, processor := newTestServer("")

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(textWebhook(t, "sticker")))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON error body: %v", err)
	}
	if body["error"] == "" {
		t.Error("expected an error reason in the response")
	}

	if len(processor.events) != 0 {
		t.Error("malformed messages must not reach the processor")
	}
	if len(messenger.sends) != 1 {
		t.Fatalf("expected 1 fallback send, got %d", len(messenger.sends))
	}
	if messenger.sends[0].To.Phone != "5562999990000" {
		t.Errorf("fallback must target the original sender, got %s", messenger.sends[0].To.Phone)
	}
}

func TestWebhook_StatusCallbackIgnored(t *testing.T) {
	srv, messenger, processor := newTestServer("")

	body := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "e", "changes": [{"field": "messages", "value": {
			"messaging_product": "whatsapp",
			"metadata": {"display_phone_number": "1", "phone_number_id": "pn"},
			"statuses": [{"id": "wamid.abc", "status": "read"}]
		}}]}]
	}`)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status callbacks must still be acknowledged, got %d", rec.Code)
	}
	if len(processor.events) != 0 || len(messenger.sends) != 0 {
		t.Error("status callbacks must be ignored")
	}
}

func TestWebhook_UnrecognizedShapeIsFailOpen(t *testing.T) {
	srv, _, _ := newTestServer("")

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{"object": "something_else"}`)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Errorf("unrecognized payloads are acknowledged, not rejected; got %d", rec.Code)
	}
}

func TestWebhook_SignatureRequired(t *testing.T) {
	srv, _, processor := newTestServer("app-secret")
	body := textWebhook(t, "text")

	// Missing signature.
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without signature, got %d", rec.Code)
	}

	// Valid signature.
	mac := hmac.New(sha256.New, []byte("app-secret"))
	mac.Write(body)
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	req = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sig)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 with valid signature, got %d", rec.Code)
	}
	if len(processor.events) != 1 {
		t.Error("signed payload should be processed")
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"content":"hello"}`)
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write(body)
	valid := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	if !verifySignature(body, "secret", valid) {
		t.Error("valid signature should verify")
	}
	if verifySignature(body, "secret", "sha256=deadbeef") {
		t.Error("invalid signature should not verify")
	}
	if verifySignature(body, "secret", "") {
		t.Error("empty signature should not verify")
	}
	if verifySignature(body, "other", valid) {
		t.Error("signature from another secret should not verify")
	}
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer("")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
