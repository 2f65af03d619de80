// Package presence mirrors the in-process online set into Redis so other
// portal services can ask whether a user is online. The mirror is a read-only
// projection: the realtime registry stays the single source of truth, and a
// Redis outage never affects chat delivery.
package presence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RedisMirror keeps two projections current:
//
//	<prefix>:online      set of online user ids
//	<prefix>:user:<id>   "1" with a TTL, refreshed while the user stays online
//
// Updates are coalesced: only the most recent snapshot is written, so a burst
// of joins costs one round trip.
type RedisMirror struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	log    zerolog.Logger

	latest chan []string
	apply  func(ctx context.Context, online []string) error
}

// NewRedisMirror returns a mirror writing under prefix. ttl bounds how long
// a crashed process leaves users marked online.
func NewRedisMirror(rdb *redis.Client, prefix string, ttl time.Duration) *RedisMirror {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	m := &RedisMirror{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		log:    log.With().Str("component", "presence.redis").Logger(),
		latest: make(chan []string, 1),
	}
	m.apply = m.write
	return m
}

// NewClient connects and pings Redis.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func (m *RedisMirror) onlineKey() string       { return m.prefix + ":online" }
func (m *RedisMirror) userKey(id string) string { return m.prefix + ":user:" + id }

// PresenceChanged records the newest snapshot without blocking. An older
// snapshot still waiting to be written is replaced.
func (m *RedisMirror) PresenceChanged(online []string) {
	snap := append([]string(nil), online...)
	for {
		select {
		case m.latest <- snap:
			return
		default:
		}
		select {
		case <-m.latest:
		default:
		}
	}
}

// Run writes snapshots until ctx ends. It also re-applies the last snapshot
// every ttl/2 so per-user keys of long-lived sessions do not expire. On exit
// the mirror clears what it wrote.
func (m *RedisMirror) Run(ctx context.Context) {
	refresh := time.NewTicker(m.ttl / 2)
	defer refresh.Stop()

	var last []string
	for {
		select {
		case <-ctx.Done():
			cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := m.apply(cctx, nil); err != nil {
				m.log.Warn().Err(err).Msg("clear presence")
			}
			cancel()
			return
		case snap := <-m.latest:
			last = snap
		case <-refresh.C:
			if last == nil {
				continue
			}
		}
		if err := m.apply(ctx, last); err != nil && !errors.Is(err, context.Canceled) {
			m.log.Warn().Err(err).Int("online", len(last)).Msg("mirror presence")
		}
	}
}

// write replaces the projection with online.
func (m *RedisMirror) write(ctx context.Context, online []string) error {
	prev, err := m.rdb.SMembers(ctx, m.onlineKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	keep := make(map[string]struct{}, len(online))
	for _, u := range online {
		keep[u] = struct{}{}
	}

	_, err = m.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, m.onlineKey())
		if len(online) > 0 {
			members := make([]any, len(online))
			for i, u := range online {
				members[i] = u
			}
			p.SAdd(ctx, m.onlineKey(), members...)
			p.Expire(ctx, m.onlineKey(), m.ttl)
		}
		for _, u := range online {
			p.Set(ctx, m.userKey(u), "1", m.ttl)
		}
		for _, u := range prev {
			if _, ok := keep[u]; !ok {
				p.Del(ctx, m.userKey(u))
			}
		}
		return nil
	})
	return err
}
