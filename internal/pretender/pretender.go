// Package pretender tracks per-(chat,user) display identities and flags
// changes between sightings, which in group-moderation practice usually
// means an impersonation attempt.
package pretender

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Identity is the display identity of a user as last seen in a chat.
type Identity struct {
	FirstName string
	Username  string
}

// Change describes one identity field that differs from the last sighting.
type Change struct {
	Field string // "name" or "username"
	Old   string
	New   string
}

// Tracker remembers the last seen identity per (chat, user). The backing
// cache is bounded and time-expiring; a user silent for longer than the TTL
// simply starts a fresh baseline.
type Tracker struct {
	seen *expirable.LRU[string, Identity]
}

func New(capacity int, ttl time.Duration) *Tracker {
	return &Tracker{
		seen: expirable.NewLRU[string, Identity](capacity, nil, ttl),
	}
}

func key(chatID, userID int64) string {
	return fmt.Sprintf("%d:%d", chatID, userID)
}

// Observe records the current identity and returns what changed since the
// previous sighting. The first sighting records silently.
func (t *Tracker) Observe(chatID, userID int64, current Identity) []Change {
	k := key(chatID, userID)
	previous, ok := t.seen.Get(k)
	t.seen.Add(k, current)
	if !ok {
		return nil
	}

	var changes []Change
	if previous.FirstName != current.FirstName {
		changes = append(changes, Change{Field: "name", Old: previous.FirstName, New: current.FirstName})
	}
	if previous.Username != current.Username {
		changes = append(changes, Change{Field: "username", Old: previous.Username, New: current.Username})
	}
	return changes
}
