// Package redisstore is a host key-value store for degrade backed by Redis.
//
// Each value is a hash holding its type name, encoding version and payload.
// Updates run under WATCH/MULTI so concurrent writers to the same key never
// interleave; journal entries are pushed to a list in the same transaction.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lazypower/degrade/internal/counter"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "degrade:"
	maxRetries    = 10
	scanCount     = 256
)

// ErrConflict is returned when an update kept losing its optimistic lock.
var ErrConflict = errors.New("too many concurrent updates")

// Config holds connection settings for the Redis store.
type Config struct {
	URL      string
	Password string
	Prefix   string
}

// Store implements counter.Keyspace on Redis.
type Store struct {
	client *redis.Client
	prefix string
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return New(client, cfg.Prefix), nil
}

// New wraps an existing client. An empty prefix uses "degrade:".
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) dataKey(key string) string { return s.prefix + "k:" + key }
func (s *Store) journalKey() string        { return s.prefix + "journal" }

// PingContext checks the connection.
func (s *Store) PingContext(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

type op struct {
	put  *counter.Entry
	del  bool
	argv []string
}

// slot reads through the watched transaction and buffers writes until commit.
type slot struct {
	ctx    context.Context
	tx     *redis.Tx
	key    string
	loaded bool
	cur    *counter.Entry
	ops    []op
}

func (sl *slot) Get() (*counter.Entry, error) {
	if sl.loaded {
		return sl.cur, nil
	}
	e, err := readEntry(sl.ctx, sl.tx, sl.key)
	if err != nil {
		return nil, err
	}
	sl.cur, sl.loaded = e, true
	return e, nil
}

func (sl *slot) Put(e counter.Entry) error {
	sl.cur, sl.loaded = &e, true
	sl.ops = append(sl.ops, op{put: &e})
	return nil
}

func (sl *slot) Delete() error {
	sl.cur, sl.loaded = nil, true
	sl.ops = append(sl.ops, op{del: true})
	return nil
}

func (sl *slot) Replicate(argv ...string) error {
	sl.ops = append(sl.ops, op{argv: argv})
	return nil
}

// readEntry loads the entry at a data key. Keys holding a plain Redis type
// rather than an entry hash are reported with a "redis/<type>" type name.
func readEntry(ctx context.Context, c redis.Cmdable, dataKey string) (*counter.Entry, error) {
	typ, err := c.Type(ctx, dataKey).Result()
	if err != nil {
		return nil, fmt.Errorf("type %s: %w", dataKey, err)
	}
	switch typ {
	case "none":
		return nil, nil
	case "hash":
	default:
		return &counter.Entry{Type: "redis/" + typ}, nil
	}

	fields, err := c.HGetAll(ctx, dataKey).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", dataKey, err)
	}
	t, ok := fields["type"]
	if !ok {
		return &counter.Entry{Type: "redis/hash"}, nil
	}
	ver, err := strconv.Atoi(fields["encver"])
	if err != nil {
		return nil, fmt.Errorf("%s: bad encoding version %q: %w", dataKey, fields["encver"], counter.ErrCorrupt)
	}
	return &counter.Entry{Type: t, Version: ver, Data: []byte(fields["data"])}, nil
}

// Update runs fn with the key watched and applies its writes in one MULTI/EXEC.
// fn is run again if another client modified the key in the meantime.
func (s *Store) Update(ctx context.Context, key string, fn func(counter.Slot) error) error {
	dk := s.dataKey(key)
	txf := func(tx *redis.Tx) error {
		sl := &slot{ctx: ctx, tx: tx, key: dk}
		if err := fn(sl); err != nil {
			return err
		}
		if len(sl.ops) == 0 {
			return nil
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, o := range sl.ops {
				switch {
				case o.put != nil:
					pipe.Del(ctx, dk)
					pipe.HSet(ctx, dk, "type", o.put.Type, "encver", o.put.Version, "data", o.put.Data)
				case o.del:
					pipe.Del(ctx, dk)
				default:
					b, err := json.Marshal(o.argv)
					if err != nil {
						return fmt.Errorf("encode journal entry: %w", err)
					}
					pipe.RPush(ctx, s.journalKey(), b)
				}
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxRetries; i++ {
		err := s.client.Watch(ctx, txf, dk)
		if err == redis.TxFailedErr {
			continue
		}
		return err
	}
	return fmt.Errorf("update %s: %w", key, ErrConflict)
}

// Scan calls fn for every stored key under the prefix. Order is unspecified.
func (s *Store) Scan(ctx context.Context, fn func(key string, e counter.Entry) error) error {
	base := s.dataKey("")
	iter := s.client.Scan(ctx, 0, base+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		dk := iter.Val()
		e, err := readEntry(ctx, s.client, dk)
		if err != nil {
			return err
		}
		if e == nil {
			continue // removed since the scan saw it
		}
		if err := fn(strings.TrimPrefix(dk, base), *e); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan keyspace: %w", err)
	}
	return nil
}

// KeyType returns the type name stored at key, or "" if the key does not exist.
func (s *Store) KeyType(ctx context.Context, key string) (string, error) {
	e, err := readEntry(ctx, s.client, s.dataKey(key))
	if err != nil || e == nil {
		return "", err
	}
	return e.Type, nil
}

// Journal returns every journaled command in append order.
func (s *Store) Journal(ctx context.Context) ([][]string, error) {
	raw, err := s.client.LRange(ctx, s.journalKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	cmds := make([][]string, 0, len(raw))
	for _, r := range raw {
		var argv []string
		if err := json.Unmarshal([]byte(r), &argv); err != nil {
			return nil, fmt.Errorf("decode journal entry: %w", err)
		}
		cmds = append(cmds, argv)
	}
	return cmds, nil
}

// ReplaceJournal atomically replaces the journal with cmds.
func (s *Store) ReplaceJournal(ctx context.Context, cmds [][]string) error {
	entries := make([]any, 0, len(cmds))
	for _, argv := range cmds {
		b, err := json.Marshal(argv)
		if err != nil {
			return fmt.Errorf("encode journal entry: %w", err)
		}
		entries = append(entries, b)
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.journalKey())
		if len(entries) > 0 {
			pipe.RPush(ctx, s.journalKey(), entries...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("rewrite journal: %w", err)
	}
	return nil
}
