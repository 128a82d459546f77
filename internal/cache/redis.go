package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/viltskaa/prometei/config"
	"github.com/viltskaa/prometei/internal/domain"
)

// RedisCache keeps per-leg favor and ticket fetches out of the provider's
// way. Entries are short-lived; a miss simply falls through to the provider.
type RedisCache struct {
	client     *redis.Client
	favorsTTL  time.Duration
	ticketsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, favorsTTL, ticketsTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:     redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		favorsTTL:  favorsTTL,
		ticketsTTL: ticketsTTL,
	}
}

func (c *RedisCache) GetFavors(ctx context.Context, flightID string) ([]domain.Favor, error) {
	data, err := c.client.Get(ctx, favorsKey(flightID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var favors []domain.Favor
	if err := json.Unmarshal(data, &favors); err != nil {
		return nil, err
	}
	return favors, nil
}

func (c *RedisCache) SetFavors(ctx context.Context, flightID string, favors []domain.Favor) error {
	payload, err := json.Marshal(favors)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, favorsKey(flightID), payload, c.favorsTTL).Err()
}

func (c *RedisCache) GetTickets(ctx context.Context, flightID string) ([]domain.SeatTicket, error) {
	data, err := c.client.Get(ctx, ticketsKey(flightID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var tickets []domain.SeatTicket
	if err := json.Unmarshal(data, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (c *RedisCache) SetTickets(ctx context.Context, flightID string, tickets []domain.SeatTicket) error {
	payload, err := json.Marshal(tickets)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, ticketsKey(flightID), payload, c.ticketsTTL).Err()
}

func favorsKey(flightID string) string {
	return fmt.Sprintf("cache:flight:%s:favors", flightID)
}

func ticketsKey(flightID string) string {
	return fmt.Sprintf("cache:flight:%s:tickets", flightID)
}
