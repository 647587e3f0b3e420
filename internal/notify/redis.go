package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/smazurov/loopcast/internal/version"
)

// RedisConfig configures the Redis Streams sink.
type RedisConfig struct {
	// Addr is one address or a comma-separated list for cluster and
	// sentinel setups.
	Addr         string
	Username     string
	Password     string
	DB           int
	Stream       string
	MaxLen       int64
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

// RedisSink appends notifications to a Redis stream with XADD.
type RedisSink struct {
	client redis.UniversalClient
	stream string
	maxLen int64
	logger *slog.Logger
}

// NewRedisSink creates a sink. The connection is established lazily on the
// first Send.
func NewRedisSink(cfg RedisConfig) (*RedisSink, error) {
	var addrs []string
	for _, addr := range strings.Split(cfg.Addr, ",") {
		if trimmed := strings.TrimSpace(addr); trimmed != "" {
			addrs = append(addrs, trimmed)
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("redis addr is required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		stream = "loopcast:sessions"
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = 10000
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 2 * time.Second
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        addrs,
		Username:     strings.TrimSpace(cfg.Username),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   2,
		ClientName:   version.UserAgent(),
	})

	sink := &RedisSink{
		client: client,
		stream: stream,
		maxLen: cfg.MaxLen,
		logger: cfg.Logger,
	}
	if sink.logger == nil {
		sink.logger = slog.Default()
	}
	return sink, nil
}

// Send implements Sink.
func (s *RedisSink) Send(ctx context.Context, n Notification) error {
	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: []any{
			"type", n.Type,
			"stream_key", n.StreamKey,
			"sent_at", n.SentAt.Format(time.RFC3339Nano),
			"payload", string(n.Payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}

// Ping checks connectivity. Used at startup to report an unreachable server
// early; Send keeps retrying on its own either way.
func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements Sink.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
