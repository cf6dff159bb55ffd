package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/guardifyhq/guardify/internal/consts"
	"github.com/guardifyhq/guardify/internal/structs"
)

func adminLogKey(chatID int64) string {
	return consts.RedisAdminLogKey + strconv.FormatInt(chatID, 10)
}

// LogAdminAction appends one entry to the chat's admin log, newest first,
// trimming the log to its retention limit.
func (s *Store) LogAdminAction(ctx context.Context, chatID, adminID int64, action string, targetUser int64) error {
	entry := structs.AdminLogEntry{
		ChatID:     chatID,
		AdminID:    adminID,
		Action:     action,
		TargetUser: targetUser,
		Timestamp:  s.now().Unix(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	key := adminLogKey(chatID)
	if err := s.redis.LPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("redis.LPush: %w", err)
	}
	if err := s.redis.LTrim(ctx, key, 0, consts.AdminLogLimit-1).Err(); err != nil {
		return fmt.Errorf("redis.LTrim: %w", err)
	}
	return nil
}

// AdminLog returns up to limit entries for a chat, newest first.
func (s *Store) AdminLog(ctx context.Context, chatID int64, limit int) ([]structs.AdminLogEntry, error) {
	raws, err := s.redis.LRange(ctx, adminLogKey(chatID), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis.LRange: %w", err)
	}
	entries := make([]structs.AdminLogEntry, 0, len(raws))
	for _, raw := range raws {
		var entry structs.AdminLogEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			s.logger.Warn("Skipping malformed admin log entry", "chatID", chatID, "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Stats are the process-wide bookkeeping counters shown by the stats
// command.
type Stats struct {
	Groups int64
	Users  int64
}

// AddActiveGroup tracks a group the bot currently moderates.
func (s *Store) AddActiveGroup(ctx context.Context, chatID int64, title string) error {
	if err := s.redis.SAdd(ctx, consts.RedisGroupsKey, chatID).Err(); err != nil {
		return fmt.Errorf("redis.SAdd: %w", err)
	}
	metaKey := consts.RedisGroupMetaKey + strconv.FormatInt(chatID, 10)
	if err := s.redis.HSet(ctx, metaKey, "title", title).Err(); err != nil {
		return fmt.Errorf("redis.HSet: %w", err)
	}
	return nil
}

func (s *Store) RemoveActiveGroup(ctx context.Context, chatID int64) error {
	if err := s.redis.SRem(ctx, consts.RedisGroupsKey, chatID).Err(); err != nil {
		return fmt.Errorf("redis.SRem: %w", err)
	}
	metaKey := consts.RedisGroupMetaKey + strconv.FormatInt(chatID, 10)
	if err := s.redis.Del(ctx, metaKey).Err(); err != nil {
		return fmt.Errorf("redis.Del: %w", err)
	}
	return nil
}

func (s *Store) AddKnownUser(ctx context.Context, userID int64) error {
	if err := s.redis.SAdd(ctx, consts.RedisUsersKey, userID).Err(); err != nil {
		return fmt.Errorf("redis.SAdd: %w", err)
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	groups, err := s.redis.SCard(ctx, consts.RedisGroupsKey).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("redis.SCard: %w", err)
	}
	users, err := s.redis.SCard(ctx, consts.RedisUsersKey).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("redis.SCard: %w", err)
	}
	return Stats{Groups: groups, Users: users}, nil
}
