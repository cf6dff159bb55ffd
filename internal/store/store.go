// Package store is the durable source of truth behind the in-memory caches:
// per-chat guard settings, per-(chat,user) authorizations, global bans and
// admin-action logs, all persisted in Redis.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/guardifyhq/guardify/internal/consts"
	"github.com/guardifyhq/guardify/internal/structs"
)

type Store struct {
	redis  *redis.Client
	logger *slog.Logger
	now    func() time.Time
}

func New(rdb *redis.Client, logger *slog.Logger) *Store {
	return &Store{
		redis:  rdb,
		logger: logger,
		now:    time.Now,
	}
}

func settingsKey(scopeID int64) string {
	return consts.RedisSettingsKey + strconv.FormatInt(scopeID, 10)
}

func authSetKey(chatID int64, authType structs.AuthType) string {
	return fmt.Sprintf("%s%s:%d", consts.RedisAuthKey, authType, chatID)
}

// GetSetting reads one raw setting value. A missing field is not an error;
// it reports absent.
func (s *Store) GetSetting(ctx context.Context, scopeID int64, name string) (string, bool, error) {
	val, err := s.redis.HGet(ctx, settingsKey(scopeID), name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis.HGet: %w", err)
	}
	return val, true, nil
}

func (s *Store) SetSetting(ctx context.Context, scopeID int64, name, value string) error {
	if err := s.redis.HSet(ctx, settingsKey(scopeID), name, value).Err(); err != nil {
		return fmt.Errorf("redis.HSet: %w", err)
	}
	return nil
}

func (s *Store) getIntSetting(ctx context.Context, scopeID int64, name string) (int, error) {
	raw, ok, err := s.GetSetting(ctx, scopeID, name)
	if err != nil || !ok {
		return 0, err
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("strconv.Atoi: %w", err)
	}
	return val, nil
}

func (s *Store) getBoolSetting(ctx context.Context, scopeID int64, name string) (bool, error) {
	raw, ok, err := s.GetSetting(ctx, scopeID, name)
	if err != nil || !ok {
		return false, err
	}
	return raw == "1", nil
}

func boolValue(enabled bool) string {
	if enabled {
		return "1"
	}
	return "0"
}

// SetEditDelay stores the edit-guard delay in minutes. Zero disables the
// guard.
func (s *Store) SetEditDelay(ctx context.Context, chatID int64, minutes int) error {
	return s.SetSetting(ctx, chatID, consts.SettingEditDelay, strconv.Itoa(minutes))
}

// GetEditDelay returns the edit-guard delay in minutes, zero when disabled
// or unset.
func (s *Store) GetEditDelay(ctx context.Context, chatID int64) (int, error) {
	return s.getIntSetting(ctx, chatID, consts.SettingEditDelay)
}

func (s *Store) SetMediaDelay(ctx context.Context, chatID int64, minutes int) error {
	return s.SetSetting(ctx, chatID, consts.SettingMediaDelay, strconv.Itoa(minutes))
}

func (s *Store) GetMediaDelay(ctx context.Context, chatID int64) (int, error) {
	return s.getIntSetting(ctx, chatID, consts.SettingMediaDelay)
}

func (s *Store) SetSlangEnabled(ctx context.Context, chatID int64, enabled bool) error {
	return s.SetSetting(ctx, chatID, consts.SettingSlang, boolValue(enabled))
}

func (s *Store) GetSlangEnabled(ctx context.Context, chatID int64) (bool, error) {
	return s.getBoolSetting(ctx, chatID, consts.SettingSlang)
}

func (s *Store) SetPretenderEnabled(ctx context.Context, chatID int64, enabled bool) error {
	return s.SetSetting(ctx, chatID, consts.SettingPretender, boolValue(enabled))
}

func (s *Store) GetPretenderEnabled(ctx context.Context, chatID int64) (bool, error) {
	return s.getBoolSetting(ctx, chatID, consts.SettingPretender)
}

func (s *Store) SetGroupLanguage(ctx context.Context, chatID int64, lang string) error {
	return s.SetSetting(ctx, chatID, consts.SettingLanguage, lang)
}

// GetGroupLanguage returns the configured language code, empty when unset.
func (s *Store) GetGroupLanguage(ctx context.Context, chatID int64) (string, error) {
	raw, _, err := s.GetSetting(ctx, chatID, consts.SettingLanguage)
	return raw, err
}

// AddAuth grants a per-chat exemption from one guard type.
func (s *Store) AddAuth(ctx context.Context, chatID, userID int64, authType structs.AuthType) error {
	if err := s.redis.SAdd(ctx, authSetKey(chatID, authType), userID).Err(); err != nil {
		return fmt.Errorf("redis.SAdd: %w", err)
	}
	return nil
}

func (s *Store) RemoveAuth(ctx context.Context, chatID, userID int64, authType structs.AuthType) error {
	if err := s.redis.SRem(ctx, authSetKey(chatID, authType), userID).Err(); err != nil {
		return fmt.Errorf("redis.SRem: %w", err)
	}
	return nil
}

func (s *Store) IsAuthorized(ctx context.Context, chatID, userID int64, authType structs.AuthType) (bool, error) {
	ok, err := s.redis.SIsMember(ctx, authSetKey(chatID, authType), userID).Result()
	if err != nil {
		return false, fmt.Errorf("redis.SIsMember: %w", err)
	}
	return ok, nil
}

// ListAuth returns the user IDs exempted from one guard type in a chat.
func (s *Store) ListAuth(ctx context.Context, chatID int64, authType structs.AuthType) ([]int64, error) {
	members, err := s.redis.SMembers(ctx, authSetKey(chatID, authType)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis.SMembers: %w", err)
	}
	users := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			s.logger.Warn("Skipping malformed auth member", "chatID", chatID, "authType", authType, "member", m)
			continue
		}
		users = append(users, id)
	}
	return users, nil
}
