package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/you/pausectl/coord"
)

const defaultPrefix = "pausectl:"

// Options configure the Redis store.
type Options struct {
	Addr           string
	SentinelAddrs  []string
	SentinelMaster string
	Username       string
	Password       string
	DB             int
	KeyPrefix      string
}

// Store implements coord.Store using a Redis SET under one well-known key.
type Store struct {
	client goredis.UniversalClient
	prefix string
}

// New creates a Redis-backed store. Supports single instance or Sentinel via
// UniversalClient.
func New(opts Options) (*Store, error) {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = defaultPrefix
	}

	client := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:      addrs(opts),
		MasterName: opts.SentinelMaster,
		Username:   opts.Username,
		Password:   opts.Password,
		DB:         opts.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Store{
		client: client,
		prefix: prefix,
	}, nil
}

func addrs(opts Options) []string {
	if len(opts.SentinelAddrs) > 0 {
		return opts.SentinelAddrs
	}
	if opts.Addr != "" {
		return []string{opts.Addr}
	}
	return []string{"127.0.0.1:6379"}
}

// Close releases the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Broadcast returns a notification subscriber backed by the same client.
func (s *Store) Broadcast() *Broadcast {
	return NewBroadcast(s.client, s.prefix)
}

// Add inserts name into the pause set and publishes the pause notification
// in the same pipeline, so both travel on one connection and the write is
// observed before the notification.
func (s *Store) Add(ctx context.Context, name string) error {
	_, err := s.client.Pipelined(ctx, func(p goredis.Pipeliner) error {
		p.SAdd(ctx, s.pausedKey(), name)
		transmit(ctx, p, s.prefix, coord.KindPause, name)
		return nil
	})
	return err
}

// Remove mirrors Add for the resume side.
func (s *Store) Remove(ctx context.Context, name string) error {
	_, err := s.client.Pipelined(ctx, func(p goredis.Pipeliner) error {
		p.SRem(ctx, s.pausedKey(), name)
		transmit(ctx, p, s.prefix, coord.KindResume, name)
		return nil
	})
	return err
}

func (s *Store) Members(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, s.pausedKey()).Result()
}

func (s *Store) Contains(ctx context.Context, name string) (bool, error) {
	return s.client.SIsMember(ctx, s.pausedKey(), name).Result()
}

// transmit queues a notification publish on an existing connection, the
// publish half of the write-and-notify pair.
func transmit(ctx context.Context, p goredis.Pipeliner, prefix string, kind coord.Kind, payload string) {
	p.Publish(ctx, channelName(prefix, kind), payload)
}

func channelName(prefix string, kind coord.Kind) string {
	return prefix + string(kind)
}

func (s *Store) pausedKey() string {
	return s.prefix + "queues:paused"
}
