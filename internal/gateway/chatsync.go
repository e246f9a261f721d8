package gateway

import (
	"context"
	"log/slog"
	"strings"

	"github.com/BTreeMap/ReplyPipe/internal/models"
)

const (
	maxMetadataKey   = 30
	maxMetadataValue = 1000
)

// MetadataRule produces a contact metadata entry. Value is evaluated at sync time.
type MetadataRule struct {
	Key   string
	Value func() string
}

// MetadataEntries evaluates rules against the contact, skipping empty pairs and pairs the
// contact already carries. Keys and values are truncated to the gateway limits.
func MetadataEntries(contact models.Contact, rules []MetadataRule) []models.MetadataEntry {
	var entries []models.MetadataEntry
	for _, rule := range rules {
		if rule.Key == "" || rule.Value == nil {
			continue
		}
		value := rule.Value()
		if value == "" || contact.HasMetadata(rule.Key, value) {
			continue
		}
		entries = append(entries, models.MetadataEntry{
			Key:   strings.TrimSpace(truncate(rule.Key, maxMetadataKey)),
			Value: strings.TrimSpace(truncate(value, maxMetadataValue)),
		})
	}
	return entries
}

// SyncMetadata writes the rule entries missing on the chat's contact.
func SyncMetadata(ctx context.Context, gw Gateway, deviceID string, chat models.Chat, rules []MetadataRule) error {
	entries := MetadataEntries(chat.Contact, rules)
	if len(entries) == 0 {
		return nil
	}
	slog.Debug("SyncMetadata: updating contact metadata", "chatID", chat.ID, "count", len(entries))
	return gw.UpdateContactMetadata(ctx, deviceID, chat.ID, entries)
}

// ApplyLabels computes the chat label set after removing and adding labels, and reports
// whether it differs from current.
func ApplyLabels(current, remove, add []string) ([]string, bool) {
	drop := make(map[string]bool, len(remove))
	for _, l := range remove {
		drop[l] = true
	}
	next := make([]string, 0, len(current)+len(add))
	have := make(map[string]bool, len(current)+len(add))
	changed := false
	for _, l := range current {
		if drop[l] {
			changed = true
			continue
		}
		if !have[l] {
			have[l] = true
			next = append(next, l)
		}
	}
	for _, l := range add {
		if l == "" || have[l] {
			continue
		}
		have[l] = true
		next = append(next, l)
		changed = true
	}
	return next, changed
}

// SyncLabels updates the chat labels when removing and adding changes the set.
func SyncLabels(ctx context.Context, gw Gateway, deviceID string, chat models.Chat, remove, add []string) error {
	next, changed := ApplyLabels(chat.Labels, remove, add)
	if !changed {
		return nil
	}
	slog.Info("SyncLabels: updating chat labels", "chatID", chat.ID, "labels", next)
	return gw.UpdateChatLabels(ctx, deviceID, chat.ID, next)
}
