// Package store provides storage backends for ReplyPipe conversation state.
//
// It includes an in-memory store (the default), SQLite, PostgreSQL and Redis backends.
// All backends hold the active task descriptor and the ordered reminder list of each
// conversation, keyed by chat ID.
package store

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/ReplyPipe/internal/models"
)

// Error variables returned by every backend.
var (
	ErrReminderLimit    = errors.New("maximum number of reminders reached")
	ErrReminderNotFound = errors.New("reminder not found")
)

// ConversationStore holds per-conversation task descriptors and reminders.
// Callers serialize mutations of a single conversation with a KeyedMutex.
type ConversationStore interface {
	// GetTask returns the active task, or the zero Task when none is set.
	GetTask(ctx context.Context, chatID string) (models.Task, error)
	// SetTask overwrites the active task. Setting the zero Task clears it.
	SetTask(ctx context.Context, chatID string, task models.Task) error
	// ClearTask removes the active task.
	ClearTask(ctx context.Context, chatID string) error
	// ListReminders returns reminders in creation order.
	ListReminders(ctx context.Context, chatID string) ([]models.Reminder, error)
	// AddReminder appends a reminder, failing with ErrReminderLimit when the conversation
	// already holds models.MaxReminders entries.
	AddReminder(ctx context.Context, chatID string, r models.Reminder) error
	// RemoveReminder removes the reminder at the 0-based index and returns it, failing
	// with ErrReminderNotFound when the index is out of range.
	RemoveReminder(ctx context.Context, chatID string, index int) (models.Reminder, error)
	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string // database connection string or Redis URL
}

// Option defines a configuration option for store implementations.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithRedisURL sets the Redis connection URL.
func WithRedisURL(url string) Option {
	return func(o *Opts) {
		o.DSN = url
	}
}

// DetectDSNType returns "postgres" for PostgreSQL connection strings and "sqlite3" otherwise.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	// key=value DSNs such as "host=localhost user=postgres"
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "user=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// InMemoryStore keeps conversation state in process memory. State is lost on restart.
type InMemoryStore struct {
	mu        sync.RWMutex
	tasks     map[string]models.Task
	reminders map[string][]models.Reminder
	inbound   map[string]*DedupRecord
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		tasks:     make(map[string]models.Task),
		reminders: make(map[string][]models.Reminder),
		inbound:   make(map[string]*DedupRecord),
	}
}

// Compile-time checks that InMemoryStore implements the store interfaces.
var (
	_ ConversationStore = (*InMemoryStore)(nil)
	_ DedupRepo         = (*InMemoryStore)(nil)
)

func (s *InMemoryStore) GetTask(ctx context.Context, chatID string) (models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tasks[chatID], nil
}

func (s *InMemoryStore) SetTask(ctx context.Context, chatID string, task models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task.IsNone() {
		delete(s.tasks, chatID)
		return nil
	}
	s.tasks[chatID] = task
	return nil
}

func (s *InMemoryStore) ClearTask(ctx context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, chatID)
	return nil
}

func (s *InMemoryStore) ListReminders(ctx context.Context, chatID string) ([]models.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := s.reminders[chatID]
	out := make([]models.Reminder, len(items))
	copy(out, items)
	return out, nil
}

func (s *InMemoryStore) AddReminder(ctx context.Context, chatID string, r models.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reminders[chatID]) >= models.MaxReminders {
		return ErrReminderLimit
	}
	s.reminders[chatID] = append(s.reminders[chatID], r)
	slog.Debug("InMemoryStore.AddReminder", "chatID", chatID, "count", len(s.reminders[chatID]))
	return nil
}

func (s *InMemoryStore) RemoveReminder(ctx context.Context, chatID string, index int) (models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.reminders[chatID]
	if index < 0 || index >= len(items) {
		return models.Reminder{}, ErrReminderNotFound
	}
	removed := items[index]
	rest := make([]models.Reminder, 0, len(items)-1)
	rest = append(rest, items[:index]...)
	rest = append(rest, items[index+1:]...)
	if len(rest) == 0 {
		delete(s.reminders, chatID)
	} else {
		s.reminders[chatID] = rest
	}
	return removed, nil
}

func (s *InMemoryStore) IsDuplicate(ctx context.Context, messageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.inbound[messageID]
	return ok, nil
}

func (s *InMemoryStore) RecordInbound(ctx context.Context, messageID, chatID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inbound[messageID]; ok {
		return false, nil
	}
	s.inbound[messageID] = &DedupRecord{MessageID: messageID, ChatID: chatID, ReceivedAt: time.Now()}
	return true, nil
}

func (s *InMemoryStore) MarkProcessed(ctx context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.inbound[messageID]; ok {
		now := time.Now()
		rec.ProcessedAt = &now
	}
	return nil
}

// PruneInbound drops dedup records received before the cutoff and returns how many were removed.
func (s *InMemoryStore) PruneInbound(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, rec := range s.inbound {
		if rec.ReceivedAt.Before(before) {
			delete(s.inbound, id)
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
