package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/guardifyhq/guardify/internal/structs"
)

// GbanSource is the slice of the durable store the manager needs for its
// startup warm-up.
type GbanSource interface {
	GbanList(ctx context.Context) ([]structs.GbanRecord, error)
}

// Manager holds the process-wide read caches in front of the durable store.
// It is never the record of truth: a miss means the caller must go to the
// store and write the result back. Each namespace is independently locked,
// so unrelated lookups never contend.
type Manager struct {
	admins   *TTLCache[[]int64]
	settings *TTLCache[any]
	auth     *TTLCache[bool]
	gban     *TTLCache[bool]
	logger   *slog.Logger
}

func NewManager(size, gbanSize int, ttl time.Duration, logger *slog.Logger) *Manager {
	logger.Info("Cache initialized", "size", size, "gbanSize", gbanSize, "ttl", ttl)
	return &Manager{
		admins:   NewTTLCache[[]int64](size, ttl),
		settings: NewTTLCache[any](size, ttl),
		auth:     NewTTLCache[bool](size, ttl),
		gban:     NewTTLCache[bool](gbanSize, ttl),
		logger:   logger,
	}
}

// Preload warms the gban namespace from the durable store so the first
// message from a banned user after a restart is caught without a store
// round-trip. Failure leaves the cache cold; the per-lookup fallback path
// still works.
func (m *Manager) Preload(ctx context.Context, src GbanSource) error {
	records, err := src.GbanList(ctx)
	if err != nil {
		return fmt.Errorf("src.GbanList: %w", err)
	}
	for _, rec := range records {
		m.SetGban(rec.UserID, true)
	}
	m.logger.Info("Loaded gbanned users into cache", "count", len(records))
	return nil
}

func settingsKey(scopeID int64, name string) string {
	return fmt.Sprintf("%d:%s", scopeID, name)
}

func authKey(chatID, userID int64, authType structs.AuthType) string {
	return fmt.Sprintf("%d:%d:%s", chatID, userID, authType)
}

func adminsKey(chatID int64) string {
	return fmt.Sprintf("%d", chatID)
}

func gbanKey(userID int64) string {
	return fmt.Sprintf("%d", userID)
}

// GetSetting returns the cached setting value, or absent. Pure lookup.
func (m *Manager) GetSetting(scopeID int64, name string) (any, bool) {
	return m.settings.Get(settingsKey(scopeID, name))
}

func (m *Manager) SetSetting(scopeID int64, name string, value any) {
	m.settings.Set(settingsKey(scopeID, name), value)
}

func (m *Manager) GetAuth(chatID, userID int64, authType structs.AuthType) (bool, bool) {
	return m.auth.Get(authKey(chatID, userID, authType))
}

func (m *Manager) SetAuth(chatID, userID int64, authType structs.AuthType, value bool) {
	m.auth.Set(authKey(chatID, userID, authType), value)
}

func (m *Manager) GetAdmins(chatID int64) ([]int64, bool) {
	return m.admins.Get(adminsKey(chatID))
}

func (m *Manager) SetAdmins(chatID int64, admins []int64) {
	m.admins.Set(adminsKey(chatID), admins)
}

// ClearAdmins drops the admin list for a chat immediately, forcing the next
// read to refresh from the platform. Used by the admin-reload command.
func (m *Manager) ClearAdmins(chatID int64) {
	m.admins.Delete(adminsKey(chatID))
}

// GetGban returns the cached ban flag. Absent means unknown, never false:
// the caller must consult the durable store.
func (m *Manager) GetGban(userID int64) (bool, bool) {
	return m.gban.Get(gbanKey(userID))
}

func (m *Manager) SetGban(userID int64, value bool) {
	m.gban.Set(gbanKey(userID), value)
}

// ClearAll empties every namespace.
func (m *Manager) ClearAll() {
	m.admins.Purge()
	m.settings.Purge()
	m.auth.Purge()
	m.gban.Purge()
	m.logger.Info("All caches cleared")
}
