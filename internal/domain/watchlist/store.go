package watchlist

import (
	"context"
	"slices"
	"time"
)

// DefaultKey names the persisted record holding the watch list.
const DefaultKey = "plugin_changelog_watch"

// Store persists the ordered set of watched plugin identifiers.
type Store interface {
	List(ctx context.Context) ([]string, error)
	Contains(ctx context.Context, id string) (bool, error)
	// Toggle removes id when present and appends it otherwise, as one
	// atomic update. It reports whether id is watched afterwards.
	Toggle(ctx context.Context, id string) (bool, error)
	Close(ctx context.Context) error
}

// Config describes the high level store selection parameters.
type Config struct {
	Driver string
	Key    string
	Redis  *RedisConfig
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr       string
	Username   string
	Password   string
	DB         int
	MaxRetries int
	// ConnectTimeout bounds dialing and the startup ping.
	ConnectTimeout time.Duration
}

// toggle flips membership of id in list. Matching is exact string equality
// and order of the remaining entries is kept.
func toggle(list []string, id string) ([]string, bool) {
	if i := slices.Index(list, id); i >= 0 {
		return slices.Delete(slices.Clone(list), i, i+1), false
	}
	return append(slices.Clone(list), id), true
}

// dedupe drops repeated entries from a list read back from storage,
// keeping first occurrences.
func dedupe(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, id := range list {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
