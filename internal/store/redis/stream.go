// Package redis publishes indexed-block notifications to Redis Streams.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DefaultMaxLen caps each stream; trimming is approximate.
const DefaultMaxLen = 100_000

// Publisher appends one JSON message to a stream and returns its ID.
type Publisher interface {
	PublishJSON(ctx context.Context, stream string, v any) (string, error)
}

// Stream publishes with XADD.
type Stream struct {
	client *redis.Client
	maxLen int64
}

func NewStream(url string) (*Stream, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Stream{client: client, maxLen: DefaultMaxLen}, nil
}

func (s *Stream) PublishJSON(ctx context.Context, stream string, v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal stream payload: %w", err)
	}
	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{"payload": payload},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", stream, err)
	}
	return id, nil
}

func (s *Stream) Close() error {
	return s.client.Close()
}

// InMemoryStream keeps published messages in process, for tests and runs
// without Redis.
type InMemoryStream struct {
	mu       sync.Mutex
	seq      int64
	messages map[string][][]byte
}

func NewInMemoryStream() *InMemoryStream {
	return &InMemoryStream{messages: make(map[string][][]byte)}
}

func (s *InMemoryStream) PublishJSON(ctx context.Context, stream string, v any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal stream payload: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.messages[stream] = append(s.messages[stream], payload)
	return strconv.FormatInt(s.seq, 10) + "-0", nil
}

// Messages returns the raw payloads published to stream, oldest first.
func (s *InMemoryStream) Messages(stream string) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.messages[stream]))
	copy(out, s.messages[stream])
	return out
}

func (s *InMemoryStream) Close() error {
	return nil
}
