package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dumu-tech/restaurant-orders/internal/core"
)

// CartService manages the per-session cart
type CartService struct {
	carts  core.CartRepository
	dishes core.DishRepository
	ttl    time.Duration
}

// NewCartService creates a new cart service
func NewCartService(carts core.CartRepository, dishes core.DishRepository, ttl time.Duration) *CartService {
	return &CartService{carts: carts, dishes: dishes, ttl: ttl}
}

// Get returns the session cart, empty if none was saved
func (s *CartService) Get(ctx context.Context, sessionID string) (*core.Cart, error) {
	return s.carts.Get(ctx, sessionID)
}

// AddDish adds one unit of an available dish
func (s *CartService) AddDish(ctx context.Context, sessionID, dishID string) (*core.Cart, error) {
	dish, err := s.dishes.GetByID(ctx, dishID)
	if err != nil {
		return nil, err
	}
	if !dish.Available {
		return nil, fmt.Errorf("%w: %s is not available", core.ErrValidation, dish.Name)
	}

	return s.mutate(ctx, sessionID, func(cart *core.Cart) error {
		cart.Add(dish)
		return nil
	})
}

// RemoveDish drops a dish from the cart
func (s *CartService) RemoveDish(ctx context.Context, sessionID, dishID string) (*core.Cart, error) {
	return s.mutate(ctx, sessionID, func(cart *core.Cart) error {
		if !cart.Remove(dishID) {
			return fmt.Errorf("dish %s not in cart: %w", dishID, core.ErrNotFound)
		}
		return nil
	})
}

// SetQuantity changes a dish quantity; zero or less removes it
func (s *CartService) SetQuantity(ctx context.Context, sessionID, dishID string, quantity int) (*core.Cart, error) {
	return s.mutate(ctx, sessionID, func(cart *core.Cart) error {
		if !cart.SetQuantity(dishID, quantity) {
			return fmt.Errorf("dish %s not in cart: %w", dishID, core.ErrNotFound)
		}
		return nil
	})
}

// Clear empties the cart
func (s *CartService) Clear(ctx context.Context, sessionID string) error {
	return s.carts.Delete(ctx, sessionID)
}

func (s *CartService) mutate(ctx context.Context, sessionID string, fn func(cart *core.Cart) error) (*core.Cart, error) {
	cart, err := s.carts.Update(ctx, sessionID, s.ttl, func(cart *core.Cart) error {
		if err := fn(cart); err != nil {
			return err
		}
		return cart.Validate()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update cart: %w", err)
	}
	return cart, nil
}
