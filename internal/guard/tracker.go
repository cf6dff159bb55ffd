package guard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/guardifyhq/guardify/internal/consts"
	"github.com/guardifyhq/guardify/internal/platform"
)

// Tracker decides whether a guarded event should produce a user-facing
// warning at all: per-chat sliding rate windows against warning storms, a
// per-(chat,user) warn cooldown, and a cached fact about the bot's own
// permissions in a chat. It never decides whether the event is guarded;
// deletions proceed regardless of what the tracker says about warnings.
type Tracker struct {
	client platform.Client
	logger *slog.Logger

	window    time.Duration
	threshold int
	cooldown  time.Duration
	permsTTL  time.Duration

	mu     sync.Mutex
	events map[int64][]time.Time
	warns  map[warnKey]time.Time
	perms  map[int64]permFact

	now func() time.Time
}

type warnKey struct {
	chatID int64
	userID int64
}

type permFact struct {
	canSend   bool
	canDelete bool
	expiresAt time.Time
}

type TrackerConfig struct {
	Window    time.Duration // sliding rate window, default 10s
	Threshold int           // warnings suppressed past this count, default 6
	Cooldown  time.Duration // per-user warn cooldown, default 60s
	PermsTTL  time.Duration // bot-permission cache lifetime, default 5m
}

func NewTracker(client platform.Client, cfg TrackerConfig, logger *slog.Logger) *Tracker {
	if cfg.Window <= 0 {
		cfg.Window = consts.DefaultRateWindow
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = consts.DefaultRateThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = consts.DefaultWarnCooldown
	}
	if cfg.PermsTTL <= 0 {
		cfg.PermsTTL = consts.DefaultBotPermsTTL
	}
	return &Tracker{
		client:    client,
		logger:    logger,
		window:    cfg.Window,
		threshold: cfg.Threshold,
		cooldown:  cfg.Cooldown,
		permsTTL:  cfg.PermsTTL,
		events:    make(map[int64][]time.Time),
		warns:     make(map[warnKey]time.Time),
		perms:     make(map[int64]permFact),
		now:       time.Now,
	}
}

// RecordEvent appends the current instant to the chat's rate window, prunes
// anything that has slid out, and returns the resulting count.
func (t *Tracker) RecordEvent(chatID int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	pruned := t.pruneLocked(chatID, now)
	pruned = append(pruned, now)
	t.events[chatID] = pruned
	return len(pruned)
}

// ShouldSuppressByRate reports whether the chat's current window already
// exceeds the threshold. Reads prune but never append.
func (t *Tracker) ShouldSuppressByRate(chatID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.pruneLocked(chatID, t.now())) > t.threshold
}

// Threshold is the warning-storm cutoff for counts returned by RecordEvent.
func (t *Tracker) Threshold() int {
	return t.threshold
}

// pruneLocked trims the chat's window to the live entries and writes the
// result back, dropping the map key entirely when nothing survives so idle
// chats do not accumulate empty slices.
func (t *Tracker) pruneLocked(chatID int64, now time.Time) []time.Time {
	cutoff := now.Add(-t.window)
	events := t.events[chatID]
	keep := events[:0]
	for _, ts := range events {
		if ts.After(cutoff) {
			keep = append(keep, ts)
		}
	}
	if len(keep) == 0 {
		delete(t.events, chatID)
		return nil
	}
	t.events[chatID] = keep
	return keep
}

// WasRecentlyWarned reports whether this user was warned in this chat within
// the cooldown. A stale timestamp is evicted as a side effect.
func (t *Tracker) WasRecentlyWarned(chatID, userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := warnKey{chatID: chatID, userID: userID}
	warnedAt, ok := t.warns[key]
	if !ok {
		return false
	}
	if t.now().Sub(warnedAt) >= t.cooldown {
		delete(t.warns, key)
		return false
	}
	return true
}

// MarkWarned records that a warning was just issued.
func (t *Tracker) MarkWarned(chatID, userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.warns[warnKey{chatID: chatID, userID: userID}] = t.now()
}

// BotPermissions returns whether the bot can send and delete messages in
// the chat, refreshed from the platform at most once per TTL. Any query
// failure fails safe to (false, false) and is cached for the same TTL so a
// broken chat does not hammer the API.
func (t *Tracker) BotPermissions(ctx context.Context, chatID int64) (canSend, canDelete bool) {
	t.mu.Lock()
	if fact, ok := t.perms[chatID]; ok && t.now().Before(fact.expiresAt) {
		t.mu.Unlock()
		return fact.canSend, fact.canDelete
	}
	t.mu.Unlock()

	fact := permFact{}
	member, err := t.client.GetChatMember(ctx, chatID, t.client.SelfID())
	if err != nil {
		t.logger.Warn("Failed to resolve own permissions, failing safe", "chatID", chatID, "error", err)
	} else if !member.Status.Absent() {
		fact.canSend = member.CanSendMessages
		fact.canDelete = member.CanDeleteMessages
	}

	t.mu.Lock()
	fact.expiresAt = t.now().Add(t.permsTTL)
	t.perms[chatID] = fact
	t.mu.Unlock()
	return fact.canSend, fact.canDelete
}
