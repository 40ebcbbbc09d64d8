package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dumu-tech/restaurant-orders/internal/core"
	"github.com/redis/go-redis/v9"
)

const (
	// CartKeyPrefix is the prefix for cart keys in Redis
	CartKeyPrefix = "cart:"
	// DefaultCartTTL is the default TTL for carts (2 hours)
	DefaultCartTTL = 2 * time.Hour
)

// CartRepository implements core.CartRepository using Redis
type CartRepository struct {
	client *redis.Client
}

// NewCartRepository creates a new Redis cart repository
func NewCartRepository(client *redis.Client) *CartRepository {
	return &CartRepository{client: client}
}

// maxCartRetries bounds optimistic retries when a session is updated concurrently
const maxCartRetries = 10

// Get retrieves the cart of a session; an unknown or expired session has an empty cart
func (r *CartRepository) Get(ctx context.Context, sessionID string) (*core.Cart, error) {
	val, err := r.client.Get(ctx, CartKeyPrefix+sessionID).Result()
	return decodeCart(sessionID, val, err)
}

// Update applies fn to the stored cart under WATCH and writes it back in a
// MULTI, retrying when another request changed the cart in between. The
// expiry is refreshed on every write.
func (r *CartRepository) Update(ctx context.Context, sessionID string, ttl time.Duration, fn func(cart *core.Cart) error) (*core.Cart, error) {
	if ttl <= 0 {
		ttl = DefaultCartTTL
	}
	key := CartKeyPrefix + sessionID

	var updated *core.Cart
	txf := func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Result()
		cart, err := decodeCart(sessionID, val, err)
		if err != nil {
			return err
		}
		if err := fn(cart); err != nil {
			return err
		}

		data, err := json.Marshal(cart)
		if err != nil {
			return fmt.Errorf("failed to marshal cart: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		if err == nil {
			updated = cart
		}
		return err
	}

	for i := 0; i < maxCartRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("cart %s: gave up after %d concurrent updates", sessionID, maxCartRetries)
}

func decodeCart(sessionID, val string, err error) (*core.Cart, error) {
	if errors.Is(err, redis.Nil) {
		return &core.Cart{SessionID: sessionID, Items: []core.CartItem{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	var cart core.Cart
	if err := json.Unmarshal([]byte(val), &cart); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart: %w", err)
	}
	cart.SessionID = sessionID
	if cart.Items == nil {
		cart.Items = []core.CartItem{}
	}
	return &cart, nil
}

// Delete removes a cart from Redis
func (r *CartRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, CartKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}
