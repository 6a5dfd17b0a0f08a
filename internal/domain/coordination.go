package domain

import (
	"context"
	"time"
)

// Coordination primitives shared by every process pointed at the same
// Redis: the deploy lock, the API rate limit and the tx event feed.

// LockManager hands out expiring exclusive locks. Acquire fails with
// ErrLockHeld when another holder has the key.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// DeployLockKey is the lock taken around a deployment to network.
func DeployLockKey(network string) string {
	return "deploy:" + network
}

// RateLimiter counts requests per key in a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// ClientRateKey is the rate limit bucket of one API client.
func ClientRateKey(clientIP string) string {
	return "api:" + clientIP
}

// SignalBus carries TxEvents: pub/sub for live delivery and a capped stream
// for catch-up reads.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	// StreamRead returns up to count entries after lastID ("0" reads from
	// the start).
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// StreamMessage is one stream entry. ID doubles as the read cursor.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// Channel and stream names of the tx event feed.
const (
	TxChannel = "ch:tx"
	TxStream  = "stream:tx"
)
