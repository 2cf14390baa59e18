// Package persistence implements the processed-message ledger.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ticket_triage/core/port/out"

	"github.com/redis/go-redis/v9"
)

// DefaultLedgerKeyPrefix namespaces ledger keys in Redis.
const DefaultLedgerKeyPrefix = "triage:processed:"

// RedisLedger records processed message ids as expiring Redis keys.
type RedisLedger struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ out.ProcessedLedger = (*RedisLedger)(nil)

// NewRedisLedger creates a ledger. A zero ttl keeps entries forever.
func NewRedisLedger(client *redis.Client, prefix string, ttl time.Duration) *RedisLedger {
	if prefix == "" {
		prefix = DefaultLedgerKeyPrefix
	}
	return &RedisLedger{client: client, prefix: prefix, ttl: ttl}
}

// Seen reports whether id has been recorded.
func (l *RedisLedger) Seen(ctx context.Context, id string) (bool, error) {
	n, err := l.client.Exists(ctx, l.prefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("ledger lookup: %w", err)
	}
	return n > 0, nil
}

// Record stores id. Recording an id twice keeps the first timestamp.
func (l *RedisLedger) Record(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("ledger: empty message id")
	}
	stamp := time.Now().UTC().Format(time.RFC3339)
	if err := l.client.SetNX(ctx, l.prefix+id, stamp, l.ttl).Err(); err != nil {
		return fmt.Errorf("ledger record: %w", err)
	}
	return nil
}

// MemoryLedger is a process-local ledger for runs without Redis. Entries
// do not survive a restart. Expired entries are swept on every Record, so
// the map holds at most one ttl worth of answered messages.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

var _ out.ProcessedLedger = (*MemoryLedger)(nil)

// NewMemoryLedger creates an empty ledger. A zero ttl keeps entries forever.
func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	return &MemoryLedger{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Seen reports whether id has been recorded and has not expired.
func (l *MemoryLedger) Seen(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	at, ok := l.entries[id]
	if !ok {
		return false, nil
	}
	if l.ttl > 0 && l.now().Sub(at) >= l.ttl {
		delete(l.entries, id)
		return false, nil
	}
	return true, nil
}

// Record stores id and drops every expired entry.
func (l *MemoryLedger) Record(_ context.Context, id string) error {
	if id == "" {
		return errors.New("ledger: empty message id")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)
	if _, ok := l.entries[id]; !ok {
		l.entries[id] = now
	}
	return nil
}

func (l *MemoryLedger) sweep(now time.Time) {
	if l.ttl <= 0 {
		return
	}
	for id, at := range l.entries {
		if now.Sub(at) >= l.ttl {
			delete(l.entries, id)
		}
	}
}

// Len returns the number of stored entries, expired ones included.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
