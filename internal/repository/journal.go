package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tickeyhellman/internal/entity"
)

// JournalRepository is the append-only audit trail, returned in append order.
type JournalRepository interface {
	Append(ctx context.Context, entry entity.LogEntry) error
	List(ctx context.Context) ([]entity.LogEntry, error)
}

type memJournal struct {
	mu      sync.RWMutex
	entries []entity.LogEntry
}

func NewMemoryJournalRepository() JournalRepository {
	return &memJournal{}
}

func (that *memJournal) Append(_ context.Context, entry entity.LogEntry) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.entries = append(that.entries, entry)

	return nil
}

func (that *memJournal) List(_ context.Context) ([]entity.LogEntry, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	entries := make([]entity.LogEntry, len(that.entries))
	copy(entries, that.entries)

	return entries, nil
}

type dbJournal struct {
	client *redis.Client
	key    string
}

// NewRedisJournalRepository keeps the journal in the list "journal:<namespace>".
func NewRedisJournalRepository(client *redis.Client, namespace string) JournalRepository {
	return &dbJournal{
		client: client,
		key:    "journal:" + namespace,
	}
}

func (that *dbJournal) Append(ctx context.Context, entry entity.LogEntry) error {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("could not marshal log entry: %w", err)
	}

	if err = that.client.RPush(ctx, that.key, entryJSON).Err(); err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}

	return nil
}

func (that *dbJournal) List(ctx context.Context) ([]entity.LogEntry, error) {
	response, err := that.client.LRange(ctx, that.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}

	entries := make([]entity.LogEntry, 0, len(response))
	for _, raw := range response {
		var entry entity.LogEntry
		if err = json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal log entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
