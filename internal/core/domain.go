package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used as the statistics partition key
const DateLayout = "2006-01-02"

// Dish represents a menu item in the catalog
type Dish struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Available   bool            `json:"available"`
	ImageURL    string          `json:"image_url,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Customer holds the contact details captured at checkout
type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Notes   string `json:"notes,omitempty"`
}

// Order represents a customer order
type Order struct {
	ID        string          `json:"id"`
	Customer  Customer        `json:"customer"`
	Items     []LineItem      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	Status    OrderStatus     `json:"status"`
	Date      string          `json:"date"` // YYYY-MM-DD at submission, statistics partition key
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// LineItem is a snapshot of a dish at the time the order was placed
type LineItem struct {
	DishID    string          `json:"dish_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// NewLineItem builds a line item and computes its subtotal
func NewLineItem(dishID, name string, unitPrice decimal.Decimal, quantity int) LineItem {
	price := unitPrice.Round(2)
	return LineItem{
		DishID:    dishID,
		Name:      name,
		UnitPrice: price,
		Quantity:  quantity,
		Subtotal:  price.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// SumSubtotals returns the order total for a set of line items
func SumSubtotals(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal)
	}
	return total
}

// OrderFilter narrows order listings
type OrderFilter struct {
	Status OrderStatus // empty means all statuses
	Limit  int
}

// Matches reports whether an order status satisfies the filter
func (f OrderFilter) Matches(status OrderStatus) bool {
	return f.Status == "" || f.Status == status
}

// DailyStats is the aggregate document for one calendar date
type DailyStats struct {
	Date        string          `json:"date"`
	TotalSales  decimal.Decimal `json:"total_sales"`
	TotalOrders int             `json:"total_orders"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// AverageTicket returns sales per completed order, zero when there are none
func (s *DailyStats) AverageTicket() decimal.Decimal {
	if s.TotalOrders == 0 {
		return decimal.Zero
	}
	return s.TotalSales.Div(decimal.NewFromInt(int64(s.TotalOrders))).Round(2)
}

// DishSales is the per-dish sub-aggregate scoped under a date
type DishSales struct {
	Date     string          `json:"date"`
	DishID   string          `json:"dish_id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Total    decimal.Decimal `json:"total"`
}

// StatusChange is an audit record of one status transition
type StatusChange struct {
	OrderID   string          `json:"order_id"`
	From      OrderStatus     `json:"from"`
	To        OrderStatus     `json:"to"`
	Date      string          `json:"date"`
	Total     decimal.Decimal `json:"total"`
	Counted   Transition      `json:"counted"`
	ChangedAt time.Time       `json:"changed_at"`
}

// UploadProgress reports bytes written for an object upload
type UploadProgress struct {
	Path             string `json:"path"`
	BytesTransferred int64  `json:"bytes_transferred"`
	TotalBytes       int64  `json:"total_bytes"`
}

// Percent returns the completed share of the upload, 0-100
func (p UploadProgress) Percent() int {
	if p.TotalBytes <= 0 {
		return 0
	}
	return int(p.BytesTransferred * 100 / p.TotalBytes)
}
