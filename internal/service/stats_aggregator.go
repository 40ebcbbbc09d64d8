package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/dumu-tech/restaurant-orders/internal/core"
	"github.com/dumu-tech/restaurant-orders/internal/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StatsAggregator keeps the daily sales counters consistent with the set of
// completed orders using incremental adjustments only.
type StatsAggregator struct {
	log *zap.Logger
}

// NewStatsAggregator creates a new aggregator
func NewStatsAggregator(log *zap.Logger) *StatsAggregator {
	return &StatsAggregator{log: logger.Component(log, "stats_aggregator")}
}

// Apply adjusts the counters of order.Date for the transition prev -> next.
// It returns the classification it acted on. Transitions that do not cross
// the completed boundary never touch stats.
func (a *StatsAggregator) Apply(ctx context.Context, stats core.StatsRepository, order *core.Order, prev, next core.OrderStatus) (core.Transition, error) {
	transition := core.ClassifyTransition(prev, next)
	if transition == core.TransitionNone {
		return transition, nil
	}

	if order.Date == "" {
		return transition, fmt.Errorf("%w: order %s has no date", core.ErrValidation, order.ID)
	}

	sales := dishBreakdown(order)

	switch transition {
	case core.TransitionInto:
		a.log.Debug("adding completed sale",
			zap.String("order_id", order.ID), zap.String("date", order.Date), zap.String("total", order.Total.String()))

		if err := stats.IncrementDay(ctx, order.Date, order.Total, 1); err != nil {
			return transition, fmt.Errorf("failed to increment daily stats: %w", err)
		}
		for _, sale := range sales {
			if err := stats.IncrementDish(ctx, order.Date, sale); err != nil {
				return transition, fmt.Errorf("failed to increment dish %s: %w", sale.DishID, err)
			}
		}

	case core.TransitionOutOf:
		a.log.Debug("removing reverted sale",
			zap.String("order_id", order.ID), zap.String("date", order.Date), zap.String("total", order.Total.String()))

		if err := stats.DecrementDay(ctx, order.Date, order.Total, 1); err != nil {
			return transition, fmt.Errorf("failed to decrement daily stats: %w", err)
		}
		for _, sale := range sales {
			if err := stats.DecrementDish(ctx, order.Date, sale); err != nil {
				return transition, fmt.Errorf("failed to decrement dish %s: %w", sale.DishID, err)
			}
		}
	}

	return transition, nil
}

// dishBreakdown merges line items per dish, sorted by dish id so concurrent
// writers lock rows in the same order.
func dishBreakdown(order *core.Order) []core.DishSales {
	byDish := make(map[string]*core.DishSales, len(order.Items))
	for _, item := range order.Items {
		sale, ok := byDish[item.DishID]
		if !ok {
			sale = &core.DishSales{
				Date:   order.Date,
				DishID: item.DishID,
				Name:   item.Name,
				Total:  decimal.Zero,
			}
			byDish[item.DishID] = sale
		}
		sale.Quantity += item.Quantity
		sale.Total = sale.Total.Add(item.Subtotal)
	}

	sales := make([]core.DishSales, 0, len(byDish))
	for _, sale := range byDish {
		sales = append(sales, *sale)
	}
	sort.Slice(sales, func(i, j int) bool { return sales[i].DishID < sales[j].DishID })
	return sales
}
