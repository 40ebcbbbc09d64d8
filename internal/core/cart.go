package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxItemQuantity caps the units of one dish in a cart or order. Order line
// quantities are stored in a 32-bit column.
const MaxItemQuantity = 999

// Cart is the transient per-session collection of selections
type Cart struct {
	SessionID string     `json:"session_id"`
	Items     []CartItem `json:"items"`
}

// CartItem represents an item in the session cart
type CartItem struct {
	DishID   string          `json:"dish_id"`
	Name     string          `json:"name"`  // Denormalized for quick display
	Price    decimal.Decimal `json:"price"` // Denormalized for quick calculation
	Quantity int             `json:"quantity"`
}

// Subtotal returns price times quantity
func (i CartItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Add puts one unit of dish in the cart, incrementing the quantity if it is already there
func (c *Cart) Add(dish *Dish) {
	for i := range c.Items {
		if c.Items[i].DishID == dish.ID {
			c.Items[i].Quantity++
			return
		}
	}
	c.Items = append(c.Items, CartItem{
		DishID:   dish.ID,
		Name:     dish.Name,
		Price:    dish.Price.Round(2),
		Quantity: 1,
	})
}

// Remove drops a dish from the cart; it reports whether anything was removed
func (c *Cart) Remove(dishID string) bool {
	for i := range c.Items {
		if c.Items[i].DishID == dishID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return true
		}
	}
	return false
}

// SetQuantity changes the quantity of a dish. Zero or less removes it.
func (c *Cart) SetQuantity(dishID string, quantity int) bool {
	if quantity <= 0 {
		return c.Remove(dishID)
	}
	for i := range c.Items {
		if c.Items[i].DishID == dishID {
			c.Items[i].Quantity = quantity
			return true
		}
	}
	return false
}

// Total sums every item subtotal
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Count returns the number of units in the cart
func (c *Cart) Count() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// Validate checks every line quantity against MaxItemQuantity
func (c *Cart) Validate() error {
	for _, item := range c.Items {
		if item.Quantity > MaxItemQuantity {
			return fmt.Errorf("%w: at most %d of %s per order", ErrValidation, MaxItemQuantity, item.Name)
		}
	}
	return nil
}

// Empty reports whether the cart has no items
func (c *Cart) Empty() bool {
	return len(c.Items) == 0
}

// Clear removes every item
func (c *Cart) Clear() {
	c.Items = []CartItem{}
}

// LineItems snapshots the cart into order line items
func (c *Cart) LineItems() []LineItem {
	items := make([]LineItem, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, NewLineItem(item.DishID, item.Name, item.Price, item.Quantity))
	}
	return items
}
