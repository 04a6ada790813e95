package redis

import (
	"context"

	redisv9 "github.com/redis/go-redis/v9"
)

// StreamClient wraps the stream commands the dead-letter queue needs.
type StreamClient struct {
	rdb *redisv9.Client
}

func NewStreamClient(rdb *redisv9.Client) *StreamClient {
	return &StreamClient{rdb: rdb}
}

type XAddArgs struct {
	Stream string
	MaxLen int64 // approximate
	Values map[string]interface{}
}

func (s *StreamClient) XAdd(ctx context.Context, args XAddArgs) (string, error) {
	options := &redisv9.XAddArgs{
		Stream: args.Stream,
		MaxLen: args.MaxLen,
		Approx: true,
		Values: args.Values,
	}
	return s.rdb.XAdd(ctx, options).Result()
}

// XRevRangeN returns the newest count entries of a stream.
func (s *StreamClient) XRevRangeN(ctx context.Context, stream string, count int64) ([]redisv9.XMessage, error) {
	return s.rdb.XRevRangeN(ctx, stream, "+", "-", count).Result()
}

func (s *StreamClient) XLen(ctx context.Context, stream string) (int64, error) {
	return s.rdb.XLen(ctx, stream).Result()
}

func (s *StreamClient) XDel(ctx context.Context, stream string, ids ...string) (int64, error) {
	return s.rdb.XDel(ctx, stream, ids...).Result()
}
