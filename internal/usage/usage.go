// Package usage keeps per-provider daily request counters in redis so that
// counts survive restarts and are shared across replicas. It is accounting
// only: nothing here ever rejects a request.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var incrWithTTLScript = redis.NewScript(`
local c = redis.call("INCR", KEYS[1])
if c == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return c
`)

// Counters are kept for two days so "today" is always complete across
// midnight while stale windows expire on their own.
const windowTTL = 48 * time.Hour

type Counts struct {
	Requests int64 `json:"requests"`
	Failed   int64 `json:"failed"`
}

// Tracker counts chat calls per provider per UTC day. A Tracker built
// from a nil client is disabled and every method is a no-op.
type Tracker struct {
	redis *redis.Client
}

func NewTracker(rdb *redis.Client) *Tracker {
	return &Tracker{redis: rdb}
}

func (t *Tracker) Enabled() bool {
	return t != nil && t.redis != nil
}

func (t *Tracker) Record(ctx context.Context, provider string, success bool, now time.Time) error {
	if !t.Enabled() {
		return nil
	}
	ttl := int64(windowTTL.Seconds())
	if _, err := incrWithTTLScript.Run(ctx, t.redis, []string{key(provider, "requests", now)}, ttl).Result(); err != nil {
		return fmt.Errorf("usage incr: %w", err)
	}
	if !success {
		if _, err := incrWithTTLScript.Run(ctx, t.redis, []string{key(provider, "failed", now)}, ttl).Result(); err != nil {
			return fmt.Errorf("usage incr failed counter: %w", err)
		}
	}
	return nil
}

// Today returns the current UTC day's counts for each named provider.
// Providers with no traffic report zeros.
func (t *Tracker) Today(ctx context.Context, providerIDs []string, now time.Time) (map[string]Counts, error) {
	out := make(map[string]Counts, len(providerIDs))
	for _, id := range providerIDs {
		out[id] = Counts{}
	}
	if !t.Enabled() {
		return out, nil
	}
	for _, id := range providerIDs {
		requests, err := t.getCount(ctx, key(id, "requests", now))
		if err != nil {
			return nil, err
		}
		failed, err := t.getCount(ctx, key(id, "failed", now))
		if err != nil {
			return nil, err
		}
		out[id] = Counts{Requests: requests, Failed: failed}
	}
	return out, nil
}

func (t *Tracker) getCount(ctx context.Context, k string) (int64, error) {
	n, err := t.redis.Get(ctx, k).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("usage get %q: %w", k, err)
	}
	return n, nil
}

func key(provider, kind string, now time.Time) string {
	return fmt.Sprintf("unichat:usage:%s:%s:%s", provider, kind, now.UTC().Format("20060102"))
}
