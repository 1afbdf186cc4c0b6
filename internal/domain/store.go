package domain

import (
	"context"
	"time"
)

// Client is an external customer identified by phone.
type Client struct {
	ID        string
	Name      string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Manager is a staff member authorized to receive notifications and request
// conversation history.
type Manager struct {
	ID        string
	Name      string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StoredMessage is one persisted client message.
type StoredMessage struct {
	ID        string
	ClientID  string
	Text      string
	CreatedAt time.Time
}

// ClientStore persists clients.
type ClientStore interface {
	// GetOrCreate returns the client matching name and phone, creating it if
	// absent.
	GetOrCreate(ctx context.Context, name, phone string) (*Client, error)
	ListAll(ctx context.Context) ([]Client, error)
}

// MessageStore persists client conversation history.
type MessageStore interface {
	Append(ctx context.Context, clientID, text string) error
	// ListByClient returns the client's messages ordered newest first.
	ListByClient(ctx context.Context, clientID string) ([]StoredMessage, error)
}

// ManagerStore holds staff membership.
type ManagerStore interface {
	ListManagers(ctx context.Context) ([]Manager, error)
	// AddManager registers a staff phone, idempotent by phone.
	AddManager(ctx context.Context, name, phone string) error
}
