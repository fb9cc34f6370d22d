package invoices

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const reportCacheTTL = 5 * time.Minute

// ReportCache serves VAT summaries from redis and collapses concurrent
// rebuilds of the same period into a single service call.
type ReportCache struct {
	rdb   *redis.Client
	group singleflight.Group
}

func NewReportCache(rdb *redis.Client) *ReportCache {
	return &ReportCache{rdb: rdb}
}

func vatSummaryKey(req VATSummaryRequest) string {
	return fmt.Sprintf("facturio:vat-summary:%d|%s|%s",
		req.CompanyID,
		req.DateFrom.Format("2006-01-02"),
		req.DateTo.Format("2006-01-02"))
}

// VATSummary returns the cached summary for the period, rebuilding it through
// build on a miss. A nil cache or an unreachable redis degrades to a direct
// build.
func (c *ReportCache) VATSummary(ctx context.Context, req VATSummaryRequest, build func(context.Context, VATSummaryRequest) (*VATSummary, error)) (*VATSummary, error) {
	if c == nil || c.rdb == nil {
		return build(ctx, req)
	}

	key := vatSummaryKey(req)
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var summary VATSummary
		if json.Unmarshal(raw, &summary) == nil {
			return &summary, nil
		}
	}

	ch := c.group.DoChan(key, func() (any, error) {
		summary, err := build(ctx, req)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(summary); err == nil {
			c.rdb.Set(ctx, key, raw, reportCacheTTL)
		}
		return summary, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*VATSummary), nil
	}
}

// Bust drops the cached summaries for a company, called after writes that
// change invoiced amounts.
func (c *ReportCache) Bust(ctx context.Context, companyID int64) {
	if c == nil || c.rdb == nil {
		return
	}
	pattern := fmt.Sprintf("facturio:vat-summary:%d|*", companyID)
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		c.rdb.Del(ctx, iter.Val())
	}
}
