// Package flow decides whether ReplyPipe answers a chat and what it answers.
//
// CanReply is the eligibility filter. Router is the per-conversation state machine that
// turns an inbound message and the active task into the next task and the replies to send.
package flow

import (
	"strings"

	"github.com/BTreeMap/ReplyPipe/internal/models"
)

// Config holds the eligibility rules for automated replies.
type Config struct {
	SkipLabels        []string // chats carrying any of these labels are skipped
	NumbersWhitelist  []string // when non-empty, only these senders get replies
	NumbersBlacklist  []string // senders that never get replies
	SkipArchivedChats bool
}

// DefaultConfig returns the rules the bot ships with.
func DefaultConfig() Config {
	return Config{
		SkipLabels:        []string{"no-bot"},
		NumbersBlacklist:  []string{"1234567890"},
		SkipArchivedChats: true,
	}
}

// CanReply reports whether the bot may auto-respond in chat. Checks run in a fixed order
// and the first decisive one wins.
func CanReply(chat models.Chat, cfg Config) bool {
	if chat.IsOwned() {
		return false
	}
	if chat.Type != models.ChatTypeDirect {
		return false
	}
	for _, label := range cfg.SkipLabels {
		if chat.HasLabel(label) {
			return false
		}
	}
	if len(cfg.NumbersWhitelist) > 0 && chat.FromNumber != "" {
		return numberListed(cfg.NumbersWhitelist, chat.FromNumber)
	}
	if len(cfg.NumbersBlacklist) > 0 && chat.FromNumber != "" && numberListed(cfg.NumbersBlacklist, chat.FromNumber) {
		return false
	}
	if cfg.SkipArchivedChats && (chat.Status == models.ChatStatusArchived || chat.WaStatus == models.ChatStatusArchived) {
		return false
	}
	if strings.TrimSpace(chat.Status) == models.ChatStatusBanned || strings.TrimSpace(chat.WaStatus) == models.ChatStatusBanned {
		return false
	}
	return true
}

// numberListed matches the sender either verbatim or without its leading "+".
func numberListed(list []string, from string) bool {
	bare := strings.TrimPrefix(from, "+")
	for _, n := range list {
		if n == from || n == bare {
			return true
		}
	}
	return false
}
