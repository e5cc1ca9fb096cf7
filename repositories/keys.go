package repositories

import (
	"fmt"
	"time"
)

// Keyspace shared across the realtime layer. TTLs are enforced by the
// store itself.
const (
	QueuePrefix        = "nq:"
	NotificationPrefix = "notif:"
	CachePrefix        = "cache:"

	ActivityTTL    = time.Hour
	LocationTTL    = 300 * time.Second
	PreferencesTTL = 24 * time.Hour
)

func ActivityKey(identity string) string {
	return fmt.Sprintf("act:%s", identity)
}

func LocationKey(identity string) string {
	return fmt.Sprintf("loc:%s", identity)
}

func PreferencesKey(identity string) string {
	return fmt.Sprintf("pref:%s", identity)
}
