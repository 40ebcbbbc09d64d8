package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dumu-tech/restaurant-orders/internal/core"
	"github.com/dumu-tech/restaurant-orders/internal/events"
	"github.com/dumu-tech/restaurant-orders/internal/logger"
	"go.uber.org/zap"
)

// OrderService handles checkout and the admin status workflow
type OrderService struct {
	orders     core.OrderRepository
	uow        core.UnitOfWork
	carts      core.CartRepository
	audit      core.AuditLog
	aggregator *StatsAggregator
	policy     core.TransitionPolicy
	publisher  events.Publisher
	loc        *time.Location
	now        func() time.Time
	log        *zap.Logger
}

// OrderServiceConfig carries the collaborators of an OrderService.
// Audit is optional.
type OrderServiceConfig struct {
	Orders     core.OrderRepository
	UnitOfWork core.UnitOfWork
	Carts      core.CartRepository
	Audit      core.AuditLog
	Aggregator *StatsAggregator
	Policy     core.TransitionPolicy
	Publisher  events.Publisher
	Location   *time.Location
	Logger     *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(cfg OrderServiceConfig) *OrderService {
	policy := cfg.Policy
	if policy == nil {
		policy = core.AnyTransition
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	aggregator := cfg.Aggregator
	if aggregator == nil {
		aggregator = NewStatsAggregator(cfg.Logger)
	}

	return &OrderService{
		orders:     cfg.Orders,
		uow:        cfg.UnitOfWork,
		carts:      cfg.Carts,
		audit:      cfg.Audit,
		aggregator: aggregator,
		policy:     policy,
		publisher:  cfg.Publisher,
		loc:        loc,
		now:        time.Now,
		log:        logger.Component(cfg.Logger, "order_service"),
	}
}

// PlaceOrder turns the session cart into a pending order and empties the cart
func (s *OrderService) PlaceOrder(ctx context.Context, sessionID string, customer core.Customer) (*core.Order, error) {
	customer = normalizeCustomer(customer)
	if err := validateCustomer(customer); err != nil {
		return nil, err
	}

	cart, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if cart.Empty() {
		return nil, core.ErrEmptyCart
	}
	if err := cart.Validate(); err != nil {
		return nil, err
	}

	now := s.now().In(s.loc)
	items := cart.LineItems()
	order := &core.Order{
		Customer:  customer,
		Items:     items,
		Total:     core.SumSubtotals(items),
		Status:    core.OrderStatusPending,
		Date:      now.Format(core.DateLayout),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.log.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("date", order.Date),
		zap.String("total", order.Total.StringFixed(2)),
		zap.Int("items", len(order.Items)))

	// The order is stored; a stale cart is only an inconvenience.
	if err := s.carts.Delete(ctx, sessionID); err != nil {
		s.log.Warn("failed to clear cart after checkout", zap.String("session_id", sessionID), zap.Error(err))
	}

	s.publish(ctx, events.NewOrderAdded(order))

	return order, nil
}

// ChangeStatus moves an order to next and adjusts the daily statistics in the
// same transaction. The previous status is read under a row lock and the write
// is conditional on it, so concurrent admins cannot double-count a sale.
func (s *OrderService) ChangeStatus(ctx context.Context, orderID string, next core.OrderStatus) (*core.Order, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: unknown order status %q", core.ErrValidation, next)
	}

	var (
		updated    *core.Order
		previous   core.OrderStatus
		transition core.Transition
	)

	err := s.uow.Do(ctx, func(ctx context.Context, orders core.OrderRepository, stats core.StatsRepository) error {
		order, err := orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		previous = order.Status
		if previous == next {
			updated = order
			return nil
		}

		if !s.policy.Allowed(previous, next) {
			return fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, previous, next)
		}

		if err := orders.CompareAndSetStatus(ctx, orderID, previous, next); err != nil {
			return err
		}

		transition, err = s.aggregator.Apply(ctx, stats, order, previous, next)
		if err != nil {
			return err
		}

		order.Status = next
		order.UpdatedAt = s.now()
		updated = order
		return nil
	})
	if err != nil {
		if errors.Is(err, core.ErrStatsMissing) {
			s.log.Error("statistics inconsistent with orders, status change rolled back",
				zap.String("order_id", orderID), zap.String("to", string(next)), zap.Error(err))
		}
		return nil, fmt.Errorf("failed to change status of order %s: %w", orderID, err)
	}

	if previous == next {
		return updated, nil
	}

	s.log.Info("order status changed",
		zap.String("order_id", orderID),
		zap.String("from", string(previous)),
		zap.String("to", string(next)),
		zap.String("stats", string(transition)))

	s.recordAudit(ctx, updated, previous, transition)
	s.publish(ctx, events.NewOrderModified(updated, previous))

	return updated, nil
}

// GetOrder retrieves one order
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*core.Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

// ListOrders retrieves orders newest first with optional filters
func (s *OrderService) ListOrders(ctx context.Context, filter core.OrderFilter) ([]*core.Order, error) {
	return s.orders.List(ctx, filter)
}

// History returns the recorded status changes of an order, newest first
func (s *OrderService) History(ctx context.Context, orderID string, limit int64) ([]*core.StatusChange, error) {
	if s.audit == nil {
		return []*core.StatusChange{}, nil
	}
	if _, err := s.orders.GetByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.audit.History(ctx, orderID, limit)
}

func (s *OrderService) recordAudit(ctx context.Context, order *core.Order, previous core.OrderStatus, transition core.Transition) {
	if s.audit == nil {
		return
	}
	change := &core.StatusChange{
		OrderID:   order.ID,
		From:      previous,
		To:        order.Status,
		Date:      order.Date,
		Total:     order.Total,
		Counted:   transition,
		ChangedAt: s.now(),
	}
	if err := s.audit.RecordStatusChange(ctx, change); err != nil {
		s.log.Warn("failed to record status change", zap.String("order_id", order.ID), zap.Error(err))
	}
}

func (s *OrderService) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("failed to publish event", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

func normalizeCustomer(c core.Customer) core.Customer {
	return core.Customer{
		Name:    strings.TrimSpace(c.Name),
		Phone:   strings.TrimSpace(c.Phone),
		Address: strings.TrimSpace(c.Address),
		Notes:   strings.TrimSpace(c.Notes),
	}
}

func validateCustomer(c core.Customer) error {
	var missing []string
	if c.Name == "" {
		missing = append(missing, "name")
	}
	if c.Phone == "" {
		missing = append(missing, "phone")
	}
	if c.Address == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", core.ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}
