// Package server exposes the webhook ingestion HTTP surface: the Meta
// verification challenge, the message webhook, health, and metrics.
package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"time"

	"zapdesk/internal/archive"
	"zapdesk/internal/domain"
	"zapdesk/internal/metrics"
	"zapdesk/internal/whatsapp"
)

const fallbackText = "Não foi possível processar sua mensagem. Por favor, tente novamente."

// Processor consumes one parsed event per webhook delivery.
type Processor interface {
	ProcessMessage(ctx context.Context, event *domain.MessageReceivedEvent)
}

// Config wires the server.
type Config struct {
	Port        int
	WebhookPath string // defaults to "/"
	VerifyToken string // pre-shared secret for the GET verification challenge
	AppSecret   string // enables X-Hub-Signature-256 verification when set
	Messenger   domain.Messenger
	Processor   Processor
	Archiver    *archive.Archiver
	Logger      *slog.Logger
}

// Server is the webhook HTTP server.
type Server struct {
	cfg    Config
	logger *slog.Logger
	mux    *http.ServeMux
	server *http.Server
}

func New(cfg Config) *Server {
	if cfg.WebhookPath == "" {
		cfg.WebhookPath = "/"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		logger: logger.With("component", "server"),
		mux:    http.NewServeMux(),
	}

	s.mux.HandleFunc("GET "+cfg.WebhookPath, s.handleVerification)
	s.mux.HandleFunc("POST "+cfg.WebhookPath, s.handleWebhook)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /metrics", metrics.Collector.Handler())

	return s
}

// Handler exposes the mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("webhook server starting", "port", s.cfg.Port, "path", s.cfg.WebhookPath)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	}
}

// handleVerification answers the Meta webhook verification challenge: exact
// match of the pre-shared token echoes the challenge back.
func (s *Server) handleVerification(rw http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == s.cfg.VerifyToken {
		s.logger.Info("webhook verified")
		rw.WriteHeader(http.StatusOK)
		fmt.Fprint(rw, html.EscapeString(challenge))
		return
	}

	s.logger.Warn("webhook verification failed", "mode", mode)
	http.Error(rw, "Forbidden", http.StatusForbidden)
}

// handleWebhook ingests one webhook delivery. The delivery is processed to
// completion before responding: 202 once dispatch was attempted (including
// internal processing failures, which are only logged; a non-2xx would
// trigger platform redelivery storms), 400 only when the message inside a
// recognized envelope is malformed.
func (s *Server) handleWebhook(rw http.ResponseWriter, r *http.Request) {
	metrics.WebhooksTotal.Inc()
	metrics.InflightWebhooks.Inc()
	defer metrics.InflightWebhooks.Dec()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB max
	if err != nil {
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if s.cfg.AppSecret != "" {
		sig := r.Header.Get("X-Hub-Signature-256")
		if !verifySignature(body, s.cfg.AppSecret, sig) {
			s.logger.Warn("invalid webhook signature")
			http.Error(rw, "Forbidden", http.StatusForbidden)
			return
		}
	}

	s.cfg.Archiver.Save(body)

	result := whatsapp.ParseWebhook(body)
	switch result.Type {
	case whatsapp.ParseSuccess:
		event := result.Event
		s.logger.Info("message received",
			"message_id", event.MessageID,
			"type", string(event.MessageType),
			"from", event.SenderPhone,
			"sender_name", event.SenderName,
		)
		s.cfg.Processor.ProcessMessage(r.Context(), event)

	case whatsapp.ParseError:
		metrics.WebhooksMalformed.Inc()
		s.logger.Error("failed to parse message from webhook", "reason", result.Reason)
		// Best-effort fallback notice to the original sender.
		if result.SenderPhone != "" {
			s.cfg.Messenger.Send(r.Context(), domain.TextMessage(
				domain.Recipient{Phone: result.SenderPhone}, fallbackText))
		}
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(rw).Encode(map[string]string{"error": result.Reason})
		return

	case whatsapp.ParseUnsupported:
		metrics.WebhooksUnsupported.Inc()
		s.logger.Info("ignored webhook payload", "reason", result.Reason)
	}

	rw.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleHealth(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(map[string]string{"status": "ok"})
}

// verifySignature checks the X-Hub-Signature-256 header.
func verifySignature(body []byte, secret, signature string) bool {
	if len(signature) < 7 || signature[:7] != "sha256=" {
		return false
	}
	expected := signature[7:]

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(computed))
}
