package symbol

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisIndex is an Index shared between processes through Redis. Each
// bucket is a sorted set scored by a per-scope sequence number, which keeps
// insertion order while ZADD NX gives set semantics.
type RedisIndex struct {
	client *redis.Client
	prefix string
}

// NewRedisIndex connects to Redis at url. Keys are namespaced under
// "symidx:".
func NewRedisIndex(url string) (*RedisIndex, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("Redis connection failed: %w", err)
	}

	return &RedisIndex{client: client, prefix: "symidx:"}, nil
}

// Close closes the Redis connection.
func (r *RedisIndex) Close() error {
	return r.client.Close()
}

// scopeKey length-prefixes scope so that no scope's key prefix is a
// prefix of another's ("r" and "r:x" stay apart under Clear).
func (r *RedisIndex) scopeKey(scope string) string {
	return r.prefix + strconv.Itoa(len(scope)) + ":" + scope + ":"
}

func (r *RedisIndex) bucketKey(scope, name string, role Role) string {
	return r.scopeKey(scope) + "sym:" + name + ":" + string(role)
}

// Add appends frag to the role bucket of name within scope.
func (r *RedisIndex) Add(ctx context.Context, scope, name string, role Role, frag Fragment) error {
	return r.AddAll(ctx, scope, []Addition{{Name: name, Role: role, Fragment: frag}})
}

// AddAll writes every addition in one MULTI/EXEC transaction. Sequence
// numbers are reserved up front with INCRBY, so a failed batch leaves only
// a gap in the scores.
func (r *RedisIndex) AddAll(ctx context.Context, scope string, adds []Addition) error {
	members := make([]string, len(adds))
	for i, a := range adds {
		if err := a.validate(); err != nil {
			return err
		}
		member, err := json.Marshal(a.Fragment)
		if err != nil {
			return fmt.Errorf("encode fragment: %w", err)
		}
		members[i] = string(member)
	}
	if len(adds) == 0 {
		return nil
	}

	last, err := r.client.IncrBy(ctx, r.scopeKey(scope)+"seq", int64(len(adds))).Result()
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}
	first := last - int64(len(adds)) + 1

	pipe := r.client.TxPipeline()
	for i, a := range adds {
		score := float64(first + int64(i))
		pipe.ZAddNX(ctx, r.scopeKey(scope)+"names", redis.Z{Score: score, Member: a.Name})
		pipe.ZAddNX(ctx, r.bucketKey(scope, a.Name, a.Role), redis.Z{Score: score, Member: members[i]})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add %d symbols: %w", len(adds), err)
	}
	return nil
}

// Rows returns every entry in scope ordered by first appearance.
func (r *RedisIndex) Rows(ctx context.Context, scope string) ([]Entry, error) {
	names, err := r.client.ZRange(ctx, r.scopeKey(scope)+"names", 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	if len(names) == 0 {
		return nil, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([][]*redis.StringSliceCmd, len(names))
	for i, name := range names {
		cmds[i] = make([]*redis.StringSliceCmd, len(Roles))
		for j, role := range Roles {
			cmds[i][j] = pipe.ZRange(ctx, r.bucketKey(scope, name, role), 0, -1)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("read buckets: %w", err)
	}

	entries := make([]Entry, len(names))
	for i, name := range names {
		entries[i].Name = name
		for j, role := range Roles {
			bucket := entries[i].Bucket(role)
			for _, raw := range cmds[i][j].Val() {
				var frag Fragment
				if err := json.Unmarshal([]byte(raw), &frag); err != nil {
					return nil, fmt.Errorf("decode fragment of %s: %w", name, err)
				}
				*bucket = append(*bucket, frag)
			}
		}
	}
	return entries, nil
}

// Clear removes every key belonging to scope.
func (r *RedisIndex) Clear(ctx context.Context, scope string) error {
	pattern := escapeGlob(r.scopeKey(scope)) + "*"
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// escapeGlob quotes the characters Redis treats specially in MATCH patterns.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
