package postgres

import (
	"database/sql"
	"time"

	"github.com/dumu-tech/restaurant-orders/internal/core"
	"github.com/shopspring/decimal"
)

// Database Models (with GORM tags)

// DishModel represents the dishes table structure
type DishModel struct {
	ID          string          `gorm:"column:id;type:uuid;primaryKey"`
	Name        string          `gorm:"column:name;type:varchar(255);not null"`
	Description sql.NullString  `gorm:"column:description;type:text"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	Category    string          `gorm:"column:category;type:varchar(100);not null"`
	Available   bool            `gorm:"column:available;type:boolean;not null;default:true"`
	ImageURL    sql.NullString  `gorm:"column:image_url;type:varchar(500)"`
	CreatedAt   time.Time       `gorm:"column:created_at;type:timestamptz;not null"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;type:timestamptz;not null"`
}

func (DishModel) TableName() string {
	return "dishes"
}

// DishModelFromDomain creates DishModel from core.Dish
func DishModelFromDomain(d *core.Dish) *DishModel {
	return &DishModel{
		ID:          d.ID,
		Name:        d.Name,
		Description: nullString(d.Description),
		Price:       d.Price,
		Category:    d.Category,
		Available:   d.Available,
		ImageURL:    nullString(d.ImageURL),
		UpdatedAt:   d.UpdatedAt,
	}
}

// ToDomain converts DishModel to core.Dish
func (m *DishModel) ToDomain() *core.Dish {
	return &core.Dish{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description.String,
		Price:       m.Price,
		Category:    m.Category,
		Available:   m.Available,
		ImageURL:    m.ImageURL.String,
		UpdatedAt:   m.UpdatedAt,
	}
}

// OrderModel represents the orders table structure
type OrderModel struct {
	ID              string          `gorm:"column:id;type:uuid;primaryKey"`
	CustomerName    string          `gorm:"column:customer_name;type:varchar(255);not null"`
	CustomerPhone   string          `gorm:"column:customer_phone;type:varchar(50);not null"`
	CustomerAddress string          `gorm:"column:customer_address;type:text;not null"`
	CustomerNotes   sql.NullString  `gorm:"column:customer_notes;type:text"`
	Total           decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null"`
	Status          string          `gorm:"column:status;type:varchar(20);not null;index"`
	OrderDate       string          `gorm:"column:order_date;type:varchar(10);not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;type:timestamptz;not null"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;type:timestamptz;not null"`
}

func (OrderModel) TableName() string {
	return "orders"
}

// OrderModelFromDomain creates OrderModel from core.Order
func OrderModelFromDomain(o *core.Order) *OrderModel {
	return &OrderModel{
		ID:              o.ID,
		CustomerName:    o.Customer.Name,
		CustomerPhone:   o.Customer.Phone,
		CustomerAddress: o.Customer.Address,
		CustomerNotes:   nullString(o.Customer.Notes),
		Total:           o.Total,
		Status:          string(o.Status),
		OrderDate:       o.Date,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

// ToDomain converts OrderModel to core.Order; items are populated separately
func (m *OrderModel) ToDomain() *core.Order {
	return &core.Order{
		ID: m.ID,
		Customer: core.Customer{
			Name:    m.CustomerName,
			Phone:   m.CustomerPhone,
			Address: m.CustomerAddress,
			Notes:   m.CustomerNotes.String,
		},
		Items:     []core.LineItem{},
		Total:     m.Total,
		Status:    core.OrderStatus(m.Status),
		Date:      m.OrderDate,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// OrderItemModel represents the order_items table structure
type OrderItemModel struct {
	OrderID   string          `gorm:"column:order_id;type:uuid;primaryKey"`
	Position  int             `gorm:"column:position;primaryKey"`
	DishID    string          `gorm:"column:dish_id;type:varchar(64);not null"`
	Name      string          `gorm:"column:name;type:varchar(255);not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(10,2);not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	Subtotal  decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
}

func (OrderItemModel) TableName() string {
	return "order_items"
}

// ToDomain converts OrderItemModel to core.LineItem
func (m *OrderItemModel) ToDomain() core.LineItem {
	return core.LineItem{
		DishID:    m.DishID,
		Name:      m.Name,
		UnitPrice: m.UnitPrice,
		Quantity:  m.Quantity,
		Subtotal:  m.Subtotal,
	}
}

// DailyStatsModel represents the daily_stats table structure
type DailyStatsModel struct {
	Date        string          `gorm:"column:stat_date;type:varchar(10);primaryKey"`
	TotalSales  decimal.Decimal `gorm:"column:total_sales;type:numeric(14,2);not null"`
	TotalOrders int             `gorm:"column:total_orders;not null"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;type:timestamptz;not null"`
}

func (DailyStatsModel) TableName() string {
	return "daily_stats"
}

// ToDomain converts DailyStatsModel to core.DailyStats
func (m *DailyStatsModel) ToDomain() *core.DailyStats {
	return &core.DailyStats{
		Date:        m.Date,
		TotalSales:  m.TotalSales,
		TotalOrders: m.TotalOrders,
		UpdatedAt:   m.UpdatedAt,
	}
}

// DishSalesModel represents the dish_sales table structure
type DishSalesModel struct {
	Date     string          `gorm:"column:stat_date;type:varchar(10);primaryKey"`
	DishID   string          `gorm:"column:dish_id;type:varchar(64);primaryKey"`
	Name     string          `gorm:"column:name;type:varchar(255);not null"`
	Quantity int             `gorm:"column:quantity;not null"`
	Total    decimal.Decimal `gorm:"column:total;type:numeric(14,2);not null"`
}

func (DishSalesModel) TableName() string {
	return "dish_sales"
}

// ToDomain converts DishSalesModel to core.DishSales
func (m *DishSalesModel) ToDomain() *core.DishSales {
	return &core.DishSales{
		Date:     m.Date,
		DishID:   m.DishID,
		Name:     m.Name,
		Quantity: m.Quantity,
		Total:    m.Total,
	}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
