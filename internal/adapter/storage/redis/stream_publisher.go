package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"nft-marketplace/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// StreamPublisher implements ports.EventPublisher by appending events to a
// Redis stream. Entry ids are "<seq>-0", so a redelivered event is rejected
// by Redis as not newer than the stream top and counts as published.
type StreamPublisher struct {
	client goredis.UniversalClient
	stream string
	maxLen int64
	log    zerolog.Logger
}

// NewStreamPublisher creates a publisher for stream. maxLen <= 0 disables trimming.
func NewStreamPublisher(client goredis.UniversalClient, stream string, maxLen int64, log zerolog.Logger) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen, log: log}
}

// Name implements ports.EventPublisher.
func (p *StreamPublisher) Name() string { return "redis-stream" }

// Publish XADDs event.
func (p *StreamPublisher) Publish(ctx context.Context, event domain.EventPayload) error {
	args := &goredis.XAddArgs{
		Stream: p.stream,
		ID:     StreamID(event.Seq),
		Values: event.Fields(),
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		if isStaleStreamID(err) {
			p.log.Debug().Uint64("seq", event.Seq).Str("stream", p.stream).Msg("stream: event already published")
			return nil
		}
		return fmt.Errorf("redis xadd: %w", err)
	}
	return nil
}

// StreamID is the entry id used for the event with sequence seq.
func StreamID(seq uint64) string {
	return strconv.FormatUint(seq, 10) + "-0"
}

func isStaleStreamID(err error) bool {
	return strings.Contains(err.Error(), "equal or smaller than the target stream top item")
}
