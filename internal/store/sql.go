package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/ReplyPipe/internal/models"
)

// sqlStore implements ConversationStore and DedupRepo over database/sql. The SQLite and
// PostgreSQL stores embed it and differ only in connection setup and placeholder style.
type sqlStore struct {
	db       *sql.DB
	name     string // used in log messages, e.g. "SQLiteStore"
	numbered bool   // use $1, $2... placeholders instead of ?
}

// q rewrites ? placeholders to $n when the dialect needs numbered placeholders.
func (s *sqlStore) q(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) GetTask(ctx context.Context, chatID string) (models.Task, error) {
	var t models.Task
	var kind string
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT kind, step, duration FROM conversation_tasks WHERE chat_id = ?`), chatID,
	).Scan(&kind, &t.Step, &t.Duration)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, nil
	}
	if err != nil {
		slog.Error(s.name+".GetTask failed", "error", err, "chatID", chatID)
		return models.Task{}, fmt.Errorf("failed to get task for %s: %w", chatID, err)
	}
	t.Kind = models.TaskKind(kind)
	return t, nil
}

func (s *sqlStore) SetTask(ctx context.Context, chatID string, task models.Task) error {
	if task.IsNone() {
		return s.ClearTask(ctx, chatID)
	}
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO conversation_tasks (chat_id, kind, step, duration, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (chat_id) DO UPDATE SET kind = excluded.kind, step = excluded.step, duration = excluded.duration, updated_at = excluded.updated_at`),
		chatID, string(task.Kind), task.Step, task.Duration, time.Now().UTC(),
	)
	if err != nil {
		slog.Error(s.name+".SetTask failed", "error", err, "chatID", chatID, "task", task.Kind)
		return fmt.Errorf("failed to set task for %s: %w", chatID, err)
	}
	slog.Debug(s.name+".SetTask succeeded", "chatID", chatID, "task", task.Kind, "step", task.Step)
	return nil
}

func (s *sqlStore) ClearTask(ctx context.Context, chatID string) error {
	if _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM conversation_tasks WHERE chat_id = ?`), chatID); err != nil {
		slog.Error(s.name+".ClearTask failed", "error", err, "chatID", chatID)
		return fmt.Errorf("failed to clear task for %s: %w", chatID, err)
	}
	return nil
}

func (s *sqlStore) ListReminders(ctx context.Context, chatID string) ([]models.Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT id, duration, fire_at, description, created_at FROM reminders WHERE chat_id = ? ORDER BY seq ASC`), chatID)
	if err != nil {
		slog.Error(s.name+".ListReminders query failed", "error", err, "chatID", chatID)
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	var items []models.Reminder
	for rows.Next() {
		var r models.Reminder
		if err := rows.Scan(&r.ID, &r.Duration, &r.FireAt, &r.Description, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reminder row: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reminder rows: %w", err)
	}
	return items, nil
}

func (s *sqlStore) AddReminder(ctx context.Context, chatID string, r models.Reminder) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM reminders WHERE chat_id = ?`), chatID).Scan(&count); err != nil {
		return fmt.Errorf("failed to count reminders: %w", err)
	}
	if count >= models.MaxReminders {
		return ErrReminderLimit
	}
	_, err = tx.ExecContext(ctx,
		s.q(`INSERT INTO reminders (id, chat_id, duration, fire_at, description, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		r.ID, chatID, r.Duration, r.FireAt.UTC(), r.Description, r.CreatedAt.UTC(),
	)
	if err != nil {
		slog.Error(s.name+".AddReminder failed", "error", err, "chatID", chatID)
		return fmt.Errorf("failed to insert reminder: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reminder: %w", err)
	}
	slog.Debug(s.name+".AddReminder succeeded", "chatID", chatID, "id", r.ID, "count", count+1)
	return nil
}

func (s *sqlStore) RemoveReminder(ctx context.Context, chatID string, index int) (models.Reminder, error) {
	items, err := s.ListReminders(ctx, chatID)
	if err != nil {
		return models.Reminder{}, err
	}
	if index < 0 || index >= len(items) {
		return models.Reminder{}, ErrReminderNotFound
	}
	removed := items[index]
	if _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM reminders WHERE id = ?`), removed.ID); err != nil {
		slog.Error(s.name+".RemoveReminder failed", "error", err, "chatID", chatID, "id", removed.ID)
		return models.Reminder{}, fmt.Errorf("failed to delete reminder: %w", err)
	}
	return removed, nil
}

func (s *sqlStore) IsDuplicate(ctx context.Context, messageID string) (bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT message_id FROM inbound_dedup WHERE message_id = ?`), messageID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("dedup check failed: %w", err)
	}
	return true, nil
}

func (s *sqlStore) RecordInbound(ctx context.Context, messageID, chatID string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO inbound_dedup (message_id, chat_id, received_at) VALUES (?, ?, ?) ON CONFLICT (message_id) DO NOTHING`),
		messageID, chatID, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("record inbound failed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("dedup rows affected check failed: %w", err)
	}
	return n > 0, nil
}

func (s *sqlStore) MarkProcessed(ctx context.Context, messageID string) error {
	_, err := s.db.ExecContext(ctx,
		s.q(`UPDATE inbound_dedup SET processed_at = ? WHERE message_id = ?`),
		time.Now().UTC(), messageID,
	)
	if err != nil {
		return fmt.Errorf("mark processed failed: %w", err)
	}
	return nil
}

func (s *sqlStore) PruneInbound(ctx context.Context, before time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, s.q(`DELETE FROM inbound_dedup WHERE received_at < ?`), before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune inbound failed: %w", err)
	}
	n, _ := result.RowsAffected()
	if n > 0 {
		slog.Info(s.name+".PruneInbound", "deleted", n)
	}
	return int(n), nil
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	slog.Debug(s.name + ".Close: closing database connection")
	return s.db.Close()
}
