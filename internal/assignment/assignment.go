// Package assignment hands conversations off to human team members.
package assignment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/ReplyPipe/internal/gateway"
	"github.com/BTreeMap/ReplyPipe/internal/metrics"
	"github.com/BTreeMap/ReplyPipe/internal/models"
	"github.com/BTreeMap/ReplyPipe/internal/util"
)

// OnlineWindow is how recently a member must have been seen to count as online.
const OnlineWindow = 30 * time.Minute

// Config controls who may receive a handed-off chat and what changes on assignment.
type Config struct {
	Enabled    bool
	OnlyOnline bool     // require auto availability and a recent lastSeenAt
	SkipRoles  []string // roles never assigned
	Whitelist  []string // when non-empty, only these member IDs
	Blacklist  []string // member IDs never assigned

	BotLabels        []string // labels the bot puts on chats it manages
	RemoveBotLabels  bool     // drop BotLabels when a member takes over
	AssignmentLabels []string // labels added on assignment
	Metadata         []gateway.MetadataRule
}

// DefaultConfig returns the stock assignment behaviour.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		SkipRoles:        []string{models.MemberRoleAdmin},
		BotLabels:        []string{"bot"},
		RemoveBotLabels:  true,
		AssignmentLabels: []string{"from-bot"},
		Metadata: []gateway.MetadataRule{
			{Key: "bot_stop", Value: func() string { return time.Now().UTC().Format(time.RFC3339) }},
		},
	}
}

// Eligible reports whether m may be assigned a chat at time now.
func Eligible(m models.Member, cfg Config, now time.Time) bool {
	if m.Status != models.MemberStatusActive {
		return false
	}
	if contains(cfg.Blacklist, m.ID) {
		return false
	}
	if len(cfg.Whitelist) > 0 && !contains(cfg.Whitelist, m.ID) {
		return false
	}
	if cfg.OnlyOnline && (m.Availability.Mode != models.AvailabilityModeAuto || now.Sub(m.LastSeenAt) > OnlineWindow) {
		return false
	}
	if contains(cfg.SkipRoles, m.Role) {
		return false
	}
	return true
}

// SelectMember picks one eligible member uniformly at random with rnd, which must return
// a value in [0, n). It returns nil when nobody is eligible.
func SelectMember(members []models.Member, cfg Config, now time.Time, rnd func(n int) int) *models.Member {
	var eligible []models.Member
	for _, m := range members {
		if Eligible(m, cfg, now) {
			eligible = append(eligible, m)
		}
	}
	if len(eligible) == 0 {
		return nil
	}
	picked := eligible[rnd(len(eligible))]
	return &picked
}

// Assigner performs handoffs through the gateway.
type Assigner struct {
	gw  gateway.Gateway
	dir *gateway.Directory
	cfg Config
	now func() time.Time
	rnd func(int) int
}

// NewAssigner creates an Assigner reading the roster through dir.
func NewAssigner(gw gateway.Gateway, dir *gateway.Directory, cfg Config) *Assigner {
	return &Assigner{gw: gw, dir: dir, cfg: cfg, now: time.Now, rnd: util.RandomIndex}
}

// Assign hands chat to a random eligible member: labels are updated, the owner is set and
// assignment metadata is written. It returns the member, or nil when assignment is
// disabled or nobody is eligible.
func (a *Assigner) Assign(ctx context.Context, chat models.Chat) (*models.Member, error) {
	if !a.cfg.Enabled {
		slog.Debug("Assigner.Assign: member chat assignment is disabled", "chatID", chat.ID)
		metrics.Assignments.WithLabelValues("disabled").Inc()
		return nil, nil
	}

	members, err := a.dir.Members(ctx, false)
	if err != nil {
		metrics.Assignments.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("load team members: %w", err)
	}
	member := SelectMember(members, a.cfg, a.now(), a.rnd)
	if member == nil {
		slog.Warn("Assigner.Assign: no eligible team members", "chatID", chat.ID, "roster", len(members))
		metrics.Assignments.WithLabelValues("no_member").Inc()
		return nil, nil
	}

	deviceID := a.dir.DeviceID()
	var remove []string
	if a.cfg.RemoveBotLabels {
		remove = a.cfg.BotLabels
	}
	if err := gateway.SyncLabels(ctx, a.gw, deviceID, chat, remove, a.cfg.AssignmentLabels); err != nil {
		slog.Error("Assigner.Assign: failed to update labels", "chatID", chat.ID, "error", err)
	}

	slog.Info("Assigner.Assign: assigning chat", "chatID", chat.ID, "member", member.DisplayName, "email", member.Email)
	if err := a.gw.AssignChat(ctx, deviceID, chat.ID, member.ID); err != nil {
		metrics.Assignments.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("assign chat %s: %w", chat.ID, err)
	}
	metrics.Assignments.WithLabelValues("assigned").Inc()

	if err := gateway.SyncMetadata(ctx, a.gw, deviceID, chat, a.cfg.Metadata); err != nil {
		slog.Error("Assigner.Assign: failed to set metadata", "chatID", chat.ID, "error", err)
	}
	return member, nil
}

// Unassign clears the chat owner so the bot handles it again.
func (a *Assigner) Unassign(ctx context.Context, chatID string) error {
	if err := a.gw.UnassignChat(ctx, a.dir.DeviceID(), chatID); err != nil {
		return fmt.Errorf("unassign chat %s: %w", chatID, err)
	}
	return nil
}

// ConfiguredMembers returns every member ID referenced by the white and black lists.
func (c Config) ConfiguredMembers() []string {
	ids := make([]string, 0, len(c.Whitelist)+len(c.Blacklist))
	ids = append(ids, c.Whitelist...)
	return append(ids, c.Blacklist...)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
