package redisx

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// StockProjection holds the latest known availability per variant.
type StockProjection struct {
	rdb redis.Cmdable
}

func NewStockProjection(rdb redis.Cmdable) *StockProjection {
	return &StockProjection{rdb: rdb}
}

// Processed reports whether eventID was already applied by service.
func (p *StockProjection) Processed(ctx context.Context, service, eventID string) (bool, error) {
	return Exists(ctx, p.rdb, fmt.Sprintf(KeyDedup, service, eventID))
}

// MarkProcessed records eventID once its effect is written.
func (p *StockProjection) MarkProcessed(ctx context.Context, service, eventID string) error {
	return p.rdb.Set(ctx, fmt.Sprintf(KeyDedup, service, eventID), "1", TTLDedup).Err()
}

func (p *StockProjection) SetStockLevel(ctx context.Context, variantID string, available int) error {
	return p.rdb.Set(ctx, fmt.Sprintf(KeyVariantStock, variantID), available, 0).Err()
}

func (p *StockProjection) StockLevel(ctx context.Context, variantID string) (int, bool, error) {
	s, err := p.rdb.Get(ctx, fmt.Sprintf(KeyVariantStock, variantID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}
