package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	reportCacheTTL = 5 * time.Minute
	reportKeyBase  = "ledger:report:"
)

// ReportCache keeps rendered read-side responses in redis so repeated report
// pulls skip the aggregate queries. Entries expire after five minutes, which
// bounds how long a reader can see balances from before a posting. A nil
// cache disables caching.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewReportCache(client *redis.Client) *ReportCache {
	if client == nil {
		return nil
	}
	return &ReportCache{client: client, ttl: reportCacheTTL}
}

func (c *ReportCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return payload, true
}

func (c *ReportCache) Set(ctx context.Context, key string, payload []byte) {
	if c == nil {
		return
	}
	c.client.Set(ctx, key, payload, c.ttl)
}

// Bust drops every cached report.
func (c *ReportCache) Bust(ctx context.Context) {
	if c == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, reportKeyBase+"*", 0).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
}

func reportKey(parts ...string) string {
	return reportKeyBase + strings.Join(parts, "|")
}
