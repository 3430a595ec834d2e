package redisclient

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Sequencer hands out ticket numbers that stay unique under concurrent
// appointment creation. The tickets table carries a unique index on
// ticket_number as the backstop.
type Sequencer interface {
	NextTicketNumber(ctx context.Context) (string, error)
}

type redisTicketSequence struct {
	client *redis.Client
	key    string
}

// NewTicketSequence creates a Sequencer backed by a single Redis counter.
// INCR is atomic, so two concurrent creations can never draw the same number.
func NewTicketSequence(client *redis.Client, key string) Sequencer {
	if key == "" {
		key = "seq:ticket"
	}
	return &redisTicketSequence{
		client: client,
		key:    key,
	}
}

func (s *redisTicketSequence) NextTicketNumber(ctx context.Context) (string, error) {
	n, err := s.client.Incr(ctx, s.key).Result()
	if err != nil {
		return "", fmt.Errorf("next ticket number: %w", err)
	}
	return fmt.Sprintf("TKT-%06d", n), nil
}
