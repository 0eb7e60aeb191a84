package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options selects the server and logical database. Zero timeouts fall back
// to defaults.
type Options struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
	OpTimeout   time.Duration
}

const (
	defaultDialTimeout = 5 * time.Second
	defaultOpTimeout   = 3 * time.Second
)

// NewClient returns a go-redis client and checks the server answers PING.
func NewClient(opts Options) (*redis.Client, error) {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, errors.New("redis: addr is empty")
	}
	if opts.DB < 0 {
		return nil, errors.New("redis: db index must not be negative")
	}
	dial := opts.DialTimeout
	if dial <= 0 {
		dial = defaultDialTimeout
	}
	op := opts.OpTimeout
	if op <= 0 {
		op = defaultOpTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		DialTimeout:  dial,
		ReadTimeout:  op,
		WriteTimeout: op,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dial)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
