package redisclient

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// FixedWindowLimiter counts requests per key in fixed windows shared by
// every api-server instance.
type FixedWindowLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

func NewFixedWindowLimiter(client *redis.Client, limit int, window time.Duration, prefix string) *FixedWindowLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "rl"
	}
	return &FixedWindowLimiter{client: client, limit: limit, window: window, prefix: prefix}
}

// Allow reports whether key is still under its limit for the current window.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	res, err := fixedWindowScript.Run(ctx, l.client, []string{l.prefix + ":" + key}, l.window.Milliseconds()).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}

	var count int64
	switch v := res.(type) {
	case int64:
		count = v
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return false, fmt.Errorf("rate limit result: %w", err)
		}
		count = n
	default:
		return false, fmt.Errorf("unexpected redis script result type %T", res)
	}

	return count <= int64(l.limit), nil
}
