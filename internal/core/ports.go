package core

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// DishRepository defines the interface for menu catalog access
type DishRepository interface {
	GetByID(ctx context.Context, id string) (*Dish, error)
	List(ctx context.Context, onlyAvailable bool) ([]*Dish, error)
	Create(ctx context.Context, dish *Dish) error
	Update(ctx context.Context, dish *Dish) error
	Delete(ctx context.Context, id string) error
}

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// GetForUpdate reads an order and, inside a unit of work, locks it until commit
	GetForUpdate(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, filter OrderFilter) ([]*Order, error)
	// CompareAndSetStatus writes to only if the stored status is still from,
	// returning ErrStatusConflict otherwise
	CompareAndSetStatus(ctx context.Context, id string, from, to OrderStatus) error
}

// StatsRepository holds the daily aggregates. Every method is an atomic
// increment-by-delta at the storage level.
type StatsRepository interface {
	// IncrementDay upserts the date record
	IncrementDay(ctx context.Context, date string, sales decimal.Decimal, orders int) error
	// DecrementDay returns ErrStatsMissing if the date record does not exist
	DecrementDay(ctx context.Context, date string, sales decimal.Decimal, orders int) error
	// IncrementDish upserts the dish record under date and refreshes its name snapshot
	IncrementDish(ctx context.Context, date string, sale DishSales) error
	// DecrementDish returns ErrStatsMissing if the dish record does not exist
	DecrementDish(ctx context.Context, date string, sale DishSales) error

	GetDay(ctx context.Context, date string) (*DailyStats, error)
	TopDishes(ctx context.Context, date string, limit int) ([]*DishSales, error)
	ListDays(ctx context.Context, from, to string) ([]*DailyStats, error)
}

// UnitOfWork runs fn with repositories bound to a single transaction.
// Returning an error from fn rolls back every write made through them.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, orders OrderRepository, stats StatsRepository) error) error
}

// CartRepository defines per-session cart storage. Update applies fn to the
// current cart and stores the result atomically with respect to concurrent
// updates of the same session; an error from fn leaves the cart untouched.
type CartRepository interface {
	Get(ctx context.Context, sessionID string) (*Cart, error)
	Update(ctx context.Context, sessionID string, ttl time.Duration, fn func(cart *Cart) error) (*Cart, error)
	Delete(ctx context.Context, sessionID string) error
}

// AuditLog records order status transitions
type AuditLog interface {
	RecordStatusChange(ctx context.Context, change *StatusChange) error
	History(ctx context.Context, orderID string, limit int64) ([]*StatusChange, error)
}

// ObjectStore stores binary files and returns their public URL
type ObjectStore interface {
	Put(ctx context.Context, path string, r io.Reader, size int64, contentType string, progress func(UploadProgress)) (string, error)
	Open(ctx context.Context, id string) (io.ReadCloser, *StoredObject, error)
}

// StoredObject describes a file held by an ObjectStore
type StoredObject struct {
	ID          string
	Path        string
	ContentType string
	Size        int64
}
