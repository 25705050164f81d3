package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/voyage-sync/internal/models"
	"github.com/vogiaan1904/voyage-sync/internal/querycache"
	"github.com/vogiaan1904/voyage-sync/pkg/logger"
	"github.com/vogiaan1904/voyage-sync/pkg/redis"
)

const (
	fieldData      = "data"
	fieldUpdatedAt = "updated_at"
	fieldStale     = "stale"

	scanBatch = 200

	originSep = "|"
)

// CacheRepository is a querycache.Store shared by every agent pointed at the
// same Redis. Invalidations are broadcast so peers can wake their watchers.
type CacheRepository interface {
	querycache.Store
	SubscribeInvalidations(ctx context.Context) (*InvalidationSubscription, error)
}

type redisCacheRepository struct {
	cli    *redis.Client
	prefix string
	ttl    time.Duration
	origin string
	l      logger.Logger
}

// NewRedisCacheRepository stores entries as hashes under "<prefix>:cache:".
// A zero ttl keeps entries until they are overwritten.
func NewRedisCacheRepository(cli *redis.Client, prefix string, ttl time.Duration, l logger.Logger) CacheRepository {
	return &redisCacheRepository{
		cli:    cli,
		prefix: prefix,
		ttl:    ttl,
		origin: uuid.NewString(),
		l:      l,
	}
}

func (r *redisCacheRepository) Get(ctx context.Context, key models.CacheKey) (querycache.Entry, bool, error) {
	fields, err := r.cli.HGetAll(ctx, r.entryKey(key))
	if err != nil {
		r.l.Errorf(ctx, "redisCacheRepository.Get: %v", err)
		return querycache.Entry{}, false, err
	}
	if len(fields) == 0 {
		return querycache.Entry{}, false, nil
	}

	e := querycache.Entry{
		Data:  []byte(fields[fieldData]),
		Stale: fields[fieldStale] == "1",
	}
	if ts, err := strconv.ParseInt(fields[fieldUpdatedAt], 10, 64); err == nil {
		e.UpdatedAt = time.UnixMilli(ts)
	}
	return e, true, nil
}

func (r *redisCacheRepository) Set(ctx context.Context, key models.CacheKey, e querycache.Entry) error {
	k := r.entryKey(key)
	stale := "0"
	if e.Stale {
		stale = "1"
	}

	pipe := r.cli.GetClient().TxPipeline()
	pipe.Del(ctx, k)
	pipe.HSet(ctx, k,
		fieldData, e.Data,
		fieldUpdatedAt, e.UpdatedAt.UnixMilli(),
		fieldStale, stale,
	)
	if r.ttl > 0 {
		pipe.Expire(ctx, k, r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		r.l.Errorf(ctx, "redisCacheRepository.Set: %v", err)
		return err
	}
	return nil
}

func (r *redisCacheRepository) MarkStale(ctx context.Context, prefix models.CacheKey) (int, error) {
	keys, err := r.cli.ScanAll(ctx, escapeGlob(r.entryKey(prefix))+"*", scanBatch)
	if err != nil {
		r.l.Errorf(ctx, "redisCacheRepository.MarkStale: scan: %v", err)
		return 0, err
	}

	base := r.entryKey("")
	pipe := r.cli.GetClient().Pipeline()
	var n int
	for _, k := range keys {
		if !prefix.Covers(models.CacheKey(strings.TrimPrefix(k, base))) {
			continue
		}
		pipe.HSet(ctx, k, fieldStale, "1")
		n++
	}
	if n > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			r.l.Errorf(ctx, "redisCacheRepository.MarkStale: %v", err)
			return 0, err
		}
	}

	if err := r.cli.Publish(ctx, r.channel(), r.origin+originSep+string(prefix)); err != nil {
		r.l.Warnf(ctx, "redisCacheRepository.MarkStale: publish %s: %v", prefix, err)
	}

	return n, nil
}

func (r *redisCacheRepository) Close() error {
	return nil
}

// InvalidationSubscription delivers prefixes invalidated by other agents.
// Broadcasts from this repository are skipped since its own client has
// already woken its watchers.
type InvalidationSubscription struct {
	ps      *goredis.PubSub
	updates chan models.CacheKey
	stop    chan struct{}
	done    chan struct{}
}

func (s *InvalidationSubscription) Updates() <-chan models.CacheKey {
	return s.updates
}

func (s *InvalidationSubscription) Close() error {
	close(s.stop)
	err := s.ps.Close()
	<-s.done
	return err
}

func (r *redisCacheRepository) SubscribeInvalidations(ctx context.Context) (*InvalidationSubscription, error) {
	ps := r.cli.Subscribe(ctx, r.channel())
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", r.channel(), err)
	}

	sub := &InvalidationSubscription{
		ps:      ps,
		updates: make(chan models.CacheKey, 16),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		defer close(sub.updates)
		for msg := range ps.Channel() {
			key, ok := r.decodeBroadcast(msg.Payload)
			if !ok {
				continue
			}
			select {
			case sub.updates <- key:
			case <-sub.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub, nil
}

// decodeBroadcast returns the invalidated prefix of a peer's broadcast.
func (r *redisCacheRepository) decodeBroadcast(payload string) (models.CacheKey, bool) {
	origin, prefix, ok := strings.Cut(payload, originSep)
	if !ok || origin == r.origin {
		return "", false
	}
	return models.CacheKey(prefix), true
}

func (r *redisCacheRepository) entryKey(key models.CacheKey) string {
	return r.prefix + ":cache:" + string(key)
}

func (r *redisCacheRepository) channel() string {
	return r.prefix + ":invalidations"
}

var globReplacer = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`?`, `\?`,
	`[`, `\[`,
	`]`, `\]`,
)

// escapeGlob quotes the characters SCAN MATCH treats as wildcards.
func escapeGlob(s string) string {
	return globReplacer.Replace(s)
}
