package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// KeyValueStore is a string-keyed persistence slot, the server-side analog of
// browser local storage. GetItem returns ErrNotFound for a missing key and
// RemoveItem of a missing key is not an error.
type KeyValueStore interface {
	GetItem(ctx context.Context, key string) (string, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// DeploymentStore keeps the history of successful deployments.
type DeploymentStore interface {
	Save(ctx context.Context, rec DeploymentRecord) error
	Latest(ctx context.Context, network string) (DeploymentRecord, error)
	List(ctx context.Context, opts ListOpts) ([]DeploymentRecord, error)
}

// TxEvent is published after a write transaction is submitted.
type TxEvent struct {
	Function string    `json:"function"`
	Hash     string    `json:"hash"`
	Sender   string    `json:"sender"`
	Contract string    `json:"contract"`
	At       time.Time `json:"at"`
}

// TxEventPublisher fans out TxEvents (e.g. to websocket clients).
type TxEventPublisher interface {
	PublishTx(ctx context.Context, ev TxEvent)
}

// AuditQuery filters the audit log. EventPrefix matches event names such as
// "deploy." and TxHash matches the transaction an entry refers to.
type AuditQuery struct {
	ListOpts
	EventPrefix string
	TxHash      string
}

// AuditEntry is one row of the audit log.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore is an append-only log of submitted transactions and deployment
// outcomes.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, q AuditQuery) ([]AuditEntry, error)
}
