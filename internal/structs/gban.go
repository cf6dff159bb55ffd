package structs

import "time"

// GbanRecord is a global ban as persisted in the durable store. A zero
// DurationMinutes means the ban is permanent.
type GbanRecord struct {
	UserID          int64  `json:"user_id"`
	Reason          string `json:"reason,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	BannedAt        int64  `json:"banned_at"`
}

// Expired reports whether a duration-bounded ban has run out. The stored
// ban timestamp plus duration is the source of truth, never a cache entry.
func (g GbanRecord) Expired(now time.Time) bool {
	if g.DurationMinutes <= 0 {
		return false
	}
	end := time.Unix(g.BannedAt, 0).Add(time.Duration(g.DurationMinutes) * time.Minute)
	return !now.Before(end)
}

// AdminLogEntry records a moderation command executed by a chat admin.
type AdminLogEntry struct {
	ChatID     int64  `json:"chat_id"`
	AdminID    int64  `json:"admin_id"`
	Action     string `json:"action"`
	TargetUser int64  `json:"target_user,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}
