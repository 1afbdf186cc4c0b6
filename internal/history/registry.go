// Package history keeps client conversation history in process memory for
// database-less runs. Capacity is bounded: when full, the oldest tracked
// client (or the client's oldest message) is evicted.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"zapdesk/internal/domain"
)

const (
	// MaxClients bounds how many clients are tracked at once.
	MaxClients = 1000
	// MaxMessagesPerClient bounds each client's retained history.
	MaxMessagesPerClient = 100
)

type clientRecord struct {
	client   domain.Client
	messages []domain.StoredMessage // oldest first; reversed on read
}

// Registry is an in-memory, mutex-guarded implementation of
// domain.ClientStore, domain.MessageStore, and domain.ManagerStore. A single
// writer at a time preserves the bounded-eviction invariant even when webhook
// deliveries are processed concurrently.
type Registry struct {
	mu       sync.Mutex
	clients  []*clientRecord // insertion order; index 0 is the oldest
	managers []domain.Manager
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) GetOrCreate(ctx context.Context, name, phone string) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec := r.findByPhone(phone); rec != nil {
		if name != "" {
			rec.client.Name = name
			rec.client.UpdatedAt = time.Now().UTC()
		}
		c := rec.client
		return &c, nil
	}

	if len(r.clients) >= MaxClients {
		r.clients = r.clients[1:]
	}

	now := time.Now().UTC()
	rec := &clientRecord{client: domain.Client{
		ID:        uuid.NewString(),
		Name:      name,
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	r.clients = append(r.clients, rec)

	c := rec.client
	return &c, nil
}

func (r *Registry) ListAll(ctx context.Context) ([]domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Client, 0, len(r.clients))
	for _, rec := range r.clients {
		out = append(out, rec.client)
	}
	return out, nil
}

func (r *Registry) Append(ctx context.Context, clientID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.clients {
		if rec.client.ID != clientID {
			continue
		}
		if len(rec.messages) >= MaxMessagesPerClient {
			rec.messages = rec.messages[1:]
		}
		rec.messages = append(rec.messages, domain.StoredMessage{
			ID:        uuid.NewString(),
			ClientID:  clientID,
			Text:      text,
			CreatedAt: time.Now().UTC(),
		})
		return nil
	}

	// Unknown client id: the record was evicted between lookup and append.
	return nil
}

// ListByClient returns the client's messages newest first.
func (r *Registry) ListByClient(ctx context.Context, clientID string) ([]domain.StoredMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.clients {
		if rec.client.ID != clientID {
			continue
		}
		out := make([]domain.StoredMessage, 0, len(rec.messages))
		for i := len(rec.messages) - 1; i >= 0; i-- {
			out = append(out, rec.messages[i])
		}
		return out, nil
	}
	return nil, nil
}

func (r *Registry) ListManagers(ctx context.Context) ([]domain.Manager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Manager, len(r.managers))
	copy(out, r.managers)
	return out, nil
}

func (r *Registry) AddManager(ctx context.Context, name, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.managers {
		if m.Phone == phone {
			return nil
		}
	}

	now := time.Now().UTC()
	r.managers = append(r.managers, domain.Manager{
		ID:        uuid.NewString(),
		Name:      name,
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return nil
}

func (r *Registry) findByPhone(phone string) *clientRecord {
	for _, rec := range r.clients {
		if rec.client.Phone == phone {
			return rec
		}
	}
	return nil
}
