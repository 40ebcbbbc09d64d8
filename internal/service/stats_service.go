package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dumu-tech/restaurant-orders/internal/core"
	"github.com/shopspring/decimal"
)

const (
	defaultTopDishes = 10
	maxTrendDays     = 366
)

// StatsService reads the daily sales aggregates
type StatsService struct {
	stats core.StatsRepository
	loc   *time.Location
	now   func() time.Time
}

// DaySummary is one day's aggregate with derived figures
type DaySummary struct {
	Date          string          `json:"date"`
	TotalSales    decimal.Decimal `json:"total_sales"`
	TotalOrders   int             `json:"total_orders"`
	AverageTicket decimal.Decimal `json:"average_ticket"`
}

// NewStatsService creates a new stats service
func NewStatsService(stats core.StatsRepository, loc *time.Location) *StatsService {
	if loc == nil {
		loc = time.Local
	}
	return &StatsService{stats: stats, loc: loc, now: time.Now}
}

// ResolveDate validates a YYYY-MM-DD date, defaulting to today
func (s *StatsService) ResolveDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.now().In(s.loc).Format(core.DateLayout), nil
	}
	parsed, err := time.ParseInLocation(core.DateLayout, raw, s.loc)
	if err != nil {
		return "", fmt.Errorf("%w: invalid date format, expected YYYY-MM-DD", core.ErrValidation)
	}
	return parsed.Format(core.DateLayout), nil
}

// Day returns the summary for a date; a date without sales reports zeros
func (s *StatsService) Day(ctx context.Context, date string) (*DaySummary, error) {
	date, err := s.ResolveDate(date)
	if err != nil {
		return nil, err
	}

	stats, err := s.stats.GetDay(ctx, date)
	if errors.Is(err, core.ErrNotFound) {
		stats = &core.DailyStats{Date: date, TotalSales: decimal.Zero}
	} else if err != nil {
		return nil, fmt.Errorf("failed to get stats for %s: %w", date, err)
	}

	return &DaySummary{
		Date:          stats.Date,
		TotalSales:    stats.TotalSales,
		TotalOrders:   stats.TotalOrders,
		AverageTicket: stats.AverageTicket(),
	}, nil
}

// TopDishes returns the best sellers of a date by quantity
func (s *StatsService) TopDishes(ctx context.Context, date string, limit int) ([]*core.DishSales, error) {
	date, err := s.ResolveDate(date)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultTopDishes
	}

	dishes, err := s.stats.TopDishes(ctx, date, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get dish sales for %s: %w", date, err)
	}
	return dishes, nil
}

// RevenueTrend returns the aggregates of the last days, today included, oldest first
func (s *StatsService) RevenueTrend(ctx context.Context, days int) ([]*core.DailyStats, error) {
	if days <= 0 {
		days = 30
	}
	if days > maxTrendDays {
		days = maxTrendDays
	}

	today := s.now().In(s.loc)
	from := today.AddDate(0, 0, -(days - 1)).Format(core.DateLayout)
	to := today.Format(core.DateLayout)

	trend, err := s.stats.ListDays(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get revenue trend: %w", err)
	}
	return trend, nil
}
