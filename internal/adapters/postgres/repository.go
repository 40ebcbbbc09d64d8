package postgres

import (
	"context"
	"fmt"

	"github.com/dumu-tech/restaurant-orders/internal/core"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Repository implements the dish, order and stats repositories and the unit of work using GORM over a pgx pool
type Repository struct {
	db              *gorm.DB
	dishRepository  *dishRepository
	orderRepository *orderRepository
	statsRepository *statsRepository
}

// dishRepository implements DishRepository methods
type dishRepository struct {
	*Repository
}

// orderRepository implements OrderRepository methods
type orderRepository struct {
	*Repository
}

// statsRepository implements StatsRepository methods
type statsRepository struct {
	*Repository
}

// Open builds a Repository sharing the given pgx pool
func Open(pool *pgxpool.Pool) (*Repository, error) {
	sqlDB := stdlib.OpenDBFromPool(pool)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewRepository(db), nil
}

// NewRepository creates a new Postgres repository instance over db
func NewRepository(db *gorm.DB) *Repository {
	repo := &Repository{db: db}
	repo.dishRepository = &dishRepository{Repository: repo}
	repo.orderRepository = &orderRepository{Repository: repo}
	repo.statsRepository = &statsRepository{Repository: repo}
	return repo
}

// DishRepository returns the DishRepository interface implementation
func (r *Repository) DishRepository() core.DishRepository {
	return r.dishRepository
}

// OrderRepository returns the OrderRepository interface implementation
func (r *Repository) OrderRepository() core.OrderRepository {
	return r.orderRepository
}

// StatsRepository returns the StatsRepository interface implementation
func (r *Repository) StatsRepository() core.StatsRepository {
	return r.statsRepository
}

// Do runs fn inside one database transaction; an error from fn rolls it back
func (r *Repository) Do(ctx context.Context, fn func(ctx context.Context, orders core.OrderRepository, stats core.StatsRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := NewRepository(tx)
		return fn(ctx, txRepo.orderRepository, txRepo.statsRepository)
	})
}
