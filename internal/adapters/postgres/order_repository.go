package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dumu-tech/restaurant-orders/internal/core"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Create stores an order with its items in a transaction and assigns its ID
func (r *orderRepository) Create(ctx context.Context, order *core.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orderModel := OrderModelFromDomain(order)
		if err := tx.Create(orderModel).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		if len(order.Items) == 0 {
			return nil
		}

		items := make([]OrderItemModel, len(order.Items))
		for i, item := range order.Items {
			items[i] = OrderItemModel{
				OrderID:   order.ID,
				Position:  i,
				DishID:    item.DishID,
				Name:      item.Name,
				UnitPrice: item.UnitPrice,
				Quantity:  item.Quantity,
				Subtotal:  item.Subtotal,
			}
		}
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("failed to create order items: %w", err)
		}

		order.CreatedAt = orderModel.CreatedAt
		order.UpdatedAt = orderModel.UpdatedAt
		return nil
	})
}

// GetByID retrieves an order by its ID with all items
func (r *orderRepository) GetByID(ctx context.Context, id string) (*core.Order, error) {
	return r.get(ctx, r.db.WithContext(ctx), id)
}

// GetForUpdate retrieves an order and locks its row until the surrounding transaction ends
func (r *orderRepository) GetForUpdate(ctx context.Context, id string) (*core.Order, error) {
	return r.get(ctx, r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *orderRepository) get(ctx context.Context, query *gorm.DB, id string) (*core.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("order %s: %w", id, core.ErrNotFound)
	}

	var model OrderModel
	if err := query.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %s: %w", id, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	orders, err := r.withItems(ctx, []OrderModel{model})
	if err != nil {
		return nil, err
	}
	return orders[0], nil
}

// List retrieves orders newest first with optional status filter and limit
func (r *orderRepository) List(ctx context.Context, filter core.OrderFilter) ([]*core.Order, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC")

	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var models []OrderModel
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return r.withItems(ctx, models)
}

// CompareAndSetStatus updates the status only if it still equals from
func (r *orderRepository) CompareAndSetStatus(ctx context.Context, id string, from, to core.OrderStatus) error {
	result := r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(map[string]interface{}{
			"status":     string(to),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update order status: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&OrderModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check order: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("order %s: %w", id, core.ErrNotFound)
	}
	return fmt.Errorf("order %s is no longer %s: %w", id, from, core.ErrStatusConflict)
}

// withItems loads the items of every order in one query, preserving line order
func (r *orderRepository) withItems(ctx context.Context, models []OrderModel) ([]*core.Order, error) {
	orders := make([]*core.Order, len(models))
	if len(models) == 0 {
		return orders, nil
	}

	ids := make([]string, len(models))
	byID := make(map[string]*core.Order, len(models))
	for i := range models {
		orders[i] = models[i].ToDomain()
		ids[i] = models[i].ID
		byID[models[i].ID] = orders[i]
	}

	var items []OrderItemModel
	if err := r.db.WithContext(ctx).
		Where("order_id IN ?", ids).
		Order("order_id, position").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}

	for i := range items {
		if order, ok := byID[items[i].OrderID]; ok {
			order.Items = append(order.Items, items[i].ToDomain())
		}
	}
	return orders, nil
}
