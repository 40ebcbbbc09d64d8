package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dumu-tech/restaurant-orders/internal/core"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IncrementDay adds to the date aggregate, creating it on first use
func (r *statsRepository) IncrementDay(ctx context.Context, date string, sales decimal.Decimal, orders int) error {
	model := &DailyStatsModel{
		Date:        date,
		TotalSales:  sales,
		TotalOrders: orders,
		UpdatedAt:   time.Now(),
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "stat_date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_sales":  gorm.Expr("daily_stats.total_sales + EXCLUDED.total_sales"),
			"total_orders": gorm.Expr("daily_stats.total_orders + EXCLUDED.total_orders"),
			"updated_at":   gorm.Expr("EXCLUDED.updated_at"),
		}),
	}).Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to increment daily stats: %w", err)
	}
	return nil
}

// DecrementDay subtracts from an existing date aggregate
func (r *statsRepository) DecrementDay(ctx context.Context, date string, sales decimal.Decimal, orders int) error {
	result := r.db.WithContext(ctx).Model(&DailyStatsModel{}).
		Where("stat_date = ?", date).
		Updates(map[string]interface{}{
			"total_sales":  gorm.Expr("total_sales - ?", sales),
			"total_orders": gorm.Expr("total_orders - ?", orders),
			"updated_at":   gorm.Expr("CURRENT_TIMESTAMP"),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to decrement daily stats: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("daily stats %s: %w", date, core.ErrStatsMissing)
	}
	return nil
}

// IncrementDish adds to a dish aggregate under date and refreshes its name
func (r *statsRepository) IncrementDish(ctx context.Context, date string, sale core.DishSales) error {
	model := &DishSalesModel{
		Date:     date,
		DishID:   sale.DishID,
		Name:     sale.Name,
		Quantity: sale.Quantity,
		Total:    sale.Total,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "stat_date"}, {Name: "dish_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"name":     gorm.Expr("EXCLUDED.name"),
			"quantity": gorm.Expr("dish_sales.quantity + EXCLUDED.quantity"),
			"total":    gorm.Expr("dish_sales.total + EXCLUDED.total"),
		}),
	}).Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to increment dish sales: %w", err)
	}
	return nil
}

// DecrementDish subtracts from an existing dish aggregate under date
func (r *statsRepository) DecrementDish(ctx context.Context, date string, sale core.DishSales) error {
	result := r.db.WithContext(ctx).Model(&DishSalesModel{}).
		Where("stat_date = ? AND dish_id = ?", date, sale.DishID).
		Updates(map[string]interface{}{
			"quantity": gorm.Expr("quantity - ?", sale.Quantity),
			"total":    gorm.Expr("total - ?", sale.Total),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to decrement dish sales: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("dish sales %s/%s: %w", date, sale.DishID, core.ErrStatsMissing)
	}
	return nil
}

// GetDay retrieves the aggregate for one date
func (r *statsRepository) GetDay(ctx context.Context, date string) (*core.DailyStats, error) {
	var model DailyStatsModel
	if err := r.db.WithContext(ctx).Where("stat_date = ?", date).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("daily stats %s: %w", date, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get daily stats: %w", err)
	}
	return model.ToDomain(), nil
}

// TopDishes returns the dish aggregates of a date by quantity, highest first
func (r *statsRepository) TopDishes(ctx context.Context, date string, limit int) ([]*core.DishSales, error) {
	query := r.db.WithContext(ctx).
		Where("stat_date = ?", date).
		Order("quantity DESC, name")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []DishSalesModel
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list dish sales: %w", err)
	}

	sales := make([]*core.DishSales, len(models))
	for i := range models {
		sales[i] = models[i].ToDomain()
	}
	return sales, nil
}

// ListDays returns the aggregates between from and to inclusive, oldest first
func (r *statsRepository) ListDays(ctx context.Context, from, to string) ([]*core.DailyStats, error) {
	var models []DailyStatsModel
	if err := r.db.WithContext(ctx).
		Where("stat_date BETWEEN ? AND ?", from, to).
		Order("stat_date").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list daily stats: %w", err)
	}

	days := make([]*core.DailyStats, len(models))
	for i := range models {
		days[i] = models[i].ToDomain()
	}
	return days, nil
}
