package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/guardifyhq/guardify/internal/consts"
	"github.com/guardifyhq/guardify/internal/structs"
)

// AddGban records a global ban. durationMinutes of zero means permanent.
func (s *Store) AddGban(ctx context.Context, userID int64, reason string, durationMinutes int) error {
	rec := structs.GbanRecord{
		UserID:          userID,
		Reason:          reason,
		DurationMinutes: durationMinutes,
		BannedAt:        s.now().Unix(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}
	if err := s.redis.HSet(ctx, consts.RedisGbanKey, strconv.FormatInt(userID, 10), data).Err(); err != nil {
		return fmt.Errorf("redis.HSet: %w", err)
	}
	return nil
}

func (s *Store) RemoveGban(ctx context.Context, userID int64) error {
	if err := s.redis.HDel(ctx, consts.RedisGbanKey, strconv.FormatInt(userID, 10)).Err(); err != nil {
		return fmt.Errorf("redis.HDel: %w", err)
	}
	return nil
}

// IsGbanned checks the stored ban record, applying the duration expiry.
// Expired bans are removed on the spot so the store self-heals.
func (s *Store) IsGbanned(ctx context.Context, userID int64) (bool, error) {
	raw, err := s.redis.HGet(ctx, consts.RedisGbanKey, strconv.FormatInt(userID, 10)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis.HGet: %w", err)
	}

	var rec structs.GbanRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return false, fmt.Errorf("json.Unmarshal: %w", err)
	}
	if rec.Expired(s.now()) {
		if err := s.RemoveGban(ctx, userID); err != nil {
			s.logger.Warn("Failed to remove expired gban", "userID", userID, "error", err)
		}
		return false, nil
	}
	return true, nil
}

// GbanList returns every ban still in force. Expired records encountered
// along the way are removed.
func (s *Store) GbanList(ctx context.Context) ([]structs.GbanRecord, error) {
	all, err := s.redis.HGetAll(ctx, consts.RedisGbanKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis.HGetAll: %w", err)
	}

	records := make([]structs.GbanRecord, 0, len(all))
	for field, raw := range all {
		var rec structs.GbanRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			s.logger.Warn("Skipping malformed gban record", "field", field, "error", err)
			continue
		}
		if rec.Expired(s.now()) {
			if err := s.RemoveGban(ctx, rec.UserID); err != nil {
				s.logger.Warn("Failed to remove expired gban", "userID", rec.UserID, "error", err)
			}
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
