// Package usage tracks scam-checker analytics counters in the KV store.
//
// Increments are read-then-write and deliberately unlocked: concurrent
// checks can undercount, which is fine for approximate analytics. If exact
// counts ever become a requirement this needs the store's atomic increment
// instead.
package usage

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/cyberbrosec/cyberbro-web/internal/kvstore"
	"github.com/cyberbrosec/cyberbro-web/internal/log"
	"github.com/cyberbrosec/cyberbro-web/internal/scenario"
	"github.com/cyberbrosec/cyberbro-web/internal/xerrors"
)

const (
	totalKey       = "total_checks"
	dailyKeyPrefix = "checks_"
	scenarioPrefix = "scenario_"

	// daily counters are only surfaced for "today", keep a week for
	// ad-hoc inspection and let them fall out
	dailyTTL = 7 * 24 * time.Hour
)

// Counters reads and advances the scam-checker usage numbers.
type Counters struct {
	store kvstore.Store

	// now is overridable in tests (daily key depends on the date)
	now func() time.Time
}

// TopScamType is one entry of the public top-3 scenario list.
type TopScamType struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
	Label string `json:"label"`
}

// Stats is the aggregate view served by GET /api/scam-stats.
type Stats struct {
	TotalChecks  int           `json:"totalChecks"`
	TodayChecks  int           `json:"todayChecks"`
	TopScamTypes []TopScamType `json:"topScamTypes"`
	LastUpdated  time.Time     `json:"lastUpdated"`
}

// New builds Counters on the given store. A nil store is allowed: reads
// return zeroed stats and increments fail.
func New(store kvstore.Store) *Counters {
	return &Counters{store: store, now: time.Now}
}

// Record bumps the total, today's and the scenario counter for one check
// and returns the updated total and today counts.
func (c *Counters) Record(ctx context.Context, category string) (total, today int, err error) {
	if c.store == nil {
		return 0, 0, xerrors.New("usage store not configured")
	}

	total, err = c.bump(ctx, totalKey, 0)
	if err != nil {
		return 0, 0, err
	}
	today, err = c.bump(ctx, c.todayKey(), dailyTTL)
	if err != nil {
		return total, 0, err
	}
	if _, err = c.bump(ctx, scenarioPrefix+category, 0); err != nil {
		return total, today, err
	}
	return total, today, nil
}

// bump is the racy read-then-write increment. ttl applies on every write,
// so a daily counter's expiry refreshes with activity and still outlives
// the day it tracks.
func (c *Counters) bump(ctx context.Context, key string, ttl time.Duration) (int, error) {
	n, err := c.read(ctx, key)
	if err != nil {
		return 0, err
	}
	n++
	if err := c.store.Put(ctx, key, strconv.Itoa(n), ttl); err != nil {
		return 0, err
	}
	return n, nil
}

func (c *Counters) read(ctx context.Context, key string) (int, error) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return 0, xerrors.Wrapf(err, "read counter %q", key)
	}
	if !ok {
		return 0, nil
	}
	n, convErr := strconv.Atoi(raw)
	if convErr != nil {
		// treat garbage as zero rather than poisoning the endpoint
		return 0, nil
	}
	return n, nil
}

// Snapshot returns the aggregate stats. The read path never hard-fails:
// store errors and absence degrade to zeroed values with a warning log.
func (c *Counters) Snapshot(ctx context.Context) Stats {
	stats := Stats{
		TopScamTypes: []TopScamType{},
		LastUpdated:  c.now().UTC(),
	}
	if c.store == nil {
		return stats
	}
	L := log.FromContext(ctx)

	var err error
	if stats.TotalChecks, err = c.read(ctx, totalKey); err != nil {
		L.Warn(ctx, "usage stats read failed, serving zeroed stats", "error", err)
		return Stats{TopScamTypes: []TopScamType{}, LastUpdated: stats.LastUpdated}
	}
	if stats.TodayChecks, err = c.read(ctx, c.todayKey()); err != nil {
		stats.TodayChecks = 0
	}

	top := make([]TopScamType, 0, len(scenario.Categories()))
	for _, cat := range scenario.Categories() {
		n, err := c.read(ctx, scenarioPrefix+cat)
		if err != nil || n == 0 {
			continue
		}
		top = append(top, TopScamType{Type: cat, Count: n, Label: scenario.Label(cat)})
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].Count > top[j].Count })
	if len(top) > 3 {
		top = top[:3]
	}
	stats.TopScamTypes = top

	return stats
}

func (c *Counters) todayKey() string {
	return dailyKeyPrefix + c.now().UTC().Format("2006-01-02")
}
