// Package process routes normalized inbound events to business behavior:
// staff senders get the aggregated conversation history back, client senders
// get an acknowledgment while every staff phone is notified and the message
// is persisted.
package process

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"zapdesk/internal/domain"
	"zapdesk/internal/metrics"
)

const (
	ackText           = "✅ Recebemos sua mensagem e em breve entraremos em contato com você."
	historyHeader     = "*Histórico de mensagens recebidas:*\n\n"
	historyEmpty      = "Nenhuma mensagem de cliente foi recebida até o momento."
	noNamePlaceholder = "Pessoa sem nome registrado"
	defaultClientName = "Cliente sem nome"

	timestampLayout = "02/01/2006 15:04"
)

// Processor is the message router.
type Processor struct {
	messenger domain.Messenger
	clients   domain.ClientStore
	messages  domain.MessageStore
	managers  domain.ManagerStore
	logger    *slog.Logger
}

// Config wires the processor's collaborators.
type Config struct {
	Messenger domain.Messenger
	Clients   domain.ClientStore
	Messages  domain.MessageStore
	Managers  domain.ManagerStore
	Logger    *slog.Logger
}

func New(cfg Config) *Processor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		messenger: cfg.Messenger,
		clients:   cfg.Clients,
		messages:  cfg.Messages,
		managers:  cfg.Managers,
		logger:    logger.With("component", "processor"),
	}
}

// ProcessMessage routes one received event. It never propagates failures:
// the webhook must be acknowledged to the platform regardless of what happens
// here, so every error is logged and swallowed.
func (p *Processor) ProcessMessage(ctx context.Context, event *domain.MessageReceivedEvent) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("message processing panicked", "panic", r, "message_id", event.MessageID)
		}
	}()

	log := p.logger.With("message_id", event.MessageID, "from", event.SenderPhone)

	managers, err := p.managers.ListManagers(ctx)
	if err != nil {
		log.Error("manager lookup failed", "err", err)
		return
	}

	metrics.MessagesProcessed.Inc()

	for _, m := range managers {
		if m.Phone == event.SenderPhone {
			p.sendHistory(ctx, m, log)
			return
		}
	}

	p.handleClientMessage(ctx, event, managers, log)
}

// sendHistory aggregates every client's conversation history into one text
// block and sends it to the requesting staff member.
func (p *Processor) sendHistory(ctx context.Context, manager domain.Manager, log *slog.Logger) {
	body, err := p.buildHistory(ctx)
	if err != nil {
		log.Error("history aggregation failed", "err", err)
		return
	}

	result := p.messenger.Send(ctx, domain.TextMessage(
		domain.Recipient{Phone: manager.Phone, Name: manager.Name}, body))
	if !result.Success {
		log.Error("history send failed", "to", manager.Phone, "err", result.Err)
	}
}

func (p *Processor) buildHistory(ctx context.Context) (string, error) {
	clients, err := p.clients.ListAll(ctx)
	if err != nil {
		return "", fmt.Errorf("list clients: %w", err)
	}
	if len(clients) == 0 {
		return historyHeader + historyEmpty, nil
	}

	sections := make([]string, 0, len(clients))
	for _, client := range clients {
		msgs, err := p.messages.ListByClient(ctx, client.ID)
		if err != nil {
			return "", fmt.Errorf("list messages for %s: %w", client.Phone, err)
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "*%s* - %s", client.Name, client.Phone)
		for _, msg := range msgs {
			fmt.Fprintf(&sb, "\n*%s*\n%s", msg.CreatedAt.Format(timestampLayout), msg.Text)
		}
		sections = append(sections, sb.String())
	}

	return historyHeader + strings.Join(sections, "\n\n"), nil
}

// handleClientMessage acknowledges the sender, fans the notification out to
// every staff phone, and persists the message. The acknowledgment is
// attempted first but its failure blocks neither the fan-out nor the write.
func (p *Processor) handleClientMessage(ctx context.Context, event *domain.MessageReceivedEvent, managers []domain.Manager, log *slog.Logger) {
	ack := p.messenger.Send(ctx, domain.TextMessage(
		domain.Recipient{Phone: event.SenderPhone, Name: event.SenderName}, ackText))
	if !ack.Success {
		log.Error("acknowledgment send failed", "err", ack.Err)
	}

	p.notifyManagers(ctx, event, managers, log)

	if err := p.persist(ctx, event); err != nil {
		log.Error("message persistence failed", "err", err)
	}
}

// notifyManagers sends the notification to all staff phones concurrently.
// Every send settles independently: one manager's failure never blocks the
// others.
func (p *Processor) notifyManagers(ctx context.Context, event *domain.MessageReceivedEvent, managers []domain.Manager, log *slog.Logger) {
	senderName := event.SenderName
	if senderName == "" {
		senderName = noNamePlaceholder
	}
	text := fmt.Sprintf("*%s* - %s\n*Enviou:*\n%s", senderName, event.SenderPhone, event.Text)

	var wg sync.WaitGroup
	for _, manager := range managers {
		wg.Add(1)
		go func(m domain.Manager) {
			defer wg.Done()
			result := p.messenger.Send(ctx, domain.TextMessage(
				domain.Recipient{Phone: m.Phone, Name: m.Name}, text))
			if !result.Success {
				log.Error("manager notification failed", "to", m.Phone, "err", result.Err)
			}
		}(manager)
	}
	wg.Wait()
}

func (p *Processor) persist(ctx context.Context, event *domain.MessageReceivedEvent) error {
	name := event.SenderName
	if name == "" {
		name = defaultClientName
	}

	client, err := p.clients.GetOrCreate(ctx, name, event.SenderPhone)
	if err != nil {
		return fmt.Errorf("get or create client: %w", err)
	}
	if err := p.messages.Append(ctx, client.ID, event.Text); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}
