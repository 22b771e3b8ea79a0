// Package history keeps finished research reports in Redis so they can be
// listed, fetched and exported after the request that produced them.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/researchdesk/internal/agent/core"
	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("report not found")

const (
	defaultTTL    = 7 * 24 * time.Hour
	defaultPrefix = "researchdesk:"
)

// Store persists WorkflowResults. Keys:
//
//	<prefix>report:<run_id>  JSON report with TTL
//	<prefix>reports          sorted set of run ids scored by timestamp
type Store struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

func NewStore(rdb redis.UniversalClient, ttl time.Duration, prefix string) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{rdb: rdb, ttl: ttl, prefix: prefix, now: time.Now}
}

// Conn dials Redis and checks it answers PING.
func Conn(ctx context.Context, addr, password string, db int, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: timeout,
	})
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if pong != "PONG" {
		_ = client.Close()
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}
	return client, nil
}

func (s *Store) reportKey(runID string) string { return s.prefix + "report:" + runID }
func (s *Store) indexKey() string              { return s.prefix + "reports" }

// Save stores the report and indexes it for Recent. Reports without a run id
// are rejected.
func (s *Store) Save(ctx context.Context, res core.WorkflowResult) error {
	if res.RunID == "" {
		return errors.New("report has no run id")
	}
	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	ts := res.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.reportKey(res.RunID), b, s.ttl)
		p.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(ts.UnixMilli()), Member: res.RunID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save report %s: %w", res.RunID, err)
	}
	return nil
}

// Get loads one report.
func (s *Store) Get(ctx context.Context, runID string) (core.WorkflowResult, error) {
	var res core.WorkflowResult
	b, err := s.rdb.Get(ctx, s.reportKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return res, ErrNotFound
	}
	if err != nil {
		return res, err
	}
	if err := json.Unmarshal(b, &res); err != nil {
		return res, fmt.Errorf("decode report %s: %w", runID, err)
	}
	return res, nil
}

// Recent returns up to limit reports, newest first. Index entries whose
// report has expired are pruned.
func (s *Store) Recent(ctx context.Context, limit int) ([]core.WorkflowResult, error) {
	if limit <= 0 {
		limit = 20
	}
	ids, err := s.rdb.ZRevRange(ctx, s.indexKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]core.WorkflowResult, 0, len(ids))
	var stale []any
	for _, id := range ids {
		res, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if len(stale) > 0 {
		s.rdb.ZRem(ctx, s.indexKey(), stale...)
	}
	return out, nil
}
