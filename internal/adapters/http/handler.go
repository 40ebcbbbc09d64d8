package http

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/dumu-tech/restaurant-orders/internal/core"
	"github.com/dumu-tech/restaurant-orders/internal/logger"
	"github.com/dumu-tech/restaurant-orders/internal/middleware"
	"github.com/dumu-tech/restaurant-orders/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Handler handles the customer-facing HTTP requests: menu, cart and checkout
type Handler struct {
	menu   MenuServiceHandler
	carts  CartServiceHandler
	orders OrderServiceHandler
	images ImageReader
	log    *zap.Logger
}

// MenuServiceHandler defines the interface for the dish catalog
type MenuServiceHandler interface {
	AvailableMenu(ctx context.Context) ([]service.MenuCategory, error)
	ListDishes(ctx context.Context) ([]*core.Dish, error)
	GetDish(ctx context.Context, id string) (*core.Dish, error)
	CreateDish(ctx context.Context, input service.DishInput) (*core.Dish, error)
	UpdateDish(ctx context.Context, id string, input service.DishInput) (*core.Dish, error)
	DeleteDish(ctx context.Context, id string) error
	UploadImage(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error)
}

// CartServiceHandler defines the interface for session carts
type CartServiceHandler interface {
	Get(ctx context.Context, sessionID string) (*core.Cart, error)
	AddDish(ctx context.Context, sessionID, dishID string) (*core.Cart, error)
	RemoveDish(ctx context.Context, sessionID, dishID string) (*core.Cart, error)
	SetQuantity(ctx context.Context, sessionID, dishID string, quantity int) (*core.Cart, error)
	Clear(ctx context.Context, sessionID string) error
}

// OrderServiceHandler defines the interface for checkout and the status workflow
type OrderServiceHandler interface {
	PlaceOrder(ctx context.Context, sessionID string, customer core.Customer) (*core.Order, error)
	ChangeStatus(ctx context.Context, orderID string, next core.OrderStatus) (*core.Order, error)
	GetOrder(ctx context.Context, orderID string) (*core.Order, error)
	ListOrders(ctx context.Context, filter core.OrderFilter) ([]*core.Order, error)
	History(ctx context.Context, orderID string, limit int64) ([]*core.StatusChange, error)
}

// ImageReader serves stored dish pictures
type ImageReader interface {
	Open(ctx context.Context, id string) (io.ReadCloser, *core.StoredObject, error)
}

// NewHandler creates a new customer HTTP handler
func NewHandler(menu MenuServiceHandler, carts CartServiceHandler, orders OrderServiceHandler, images ImageReader, log *zap.Logger) *Handler {
	return &Handler{
		menu:   menu,
		carts:  carts,
		orders: orders,
		images: images,
		log:    logger.Component(log, "http"),
	}
}

// cartResponse is the cart view with derived totals
type cartResponse struct {
	Items []core.CartItem `json:"items"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

func newCartResponse(cart *core.Cart) cartResponse {
	items := cart.Items
	if items == nil {
		items = []core.CartItem{}
	}
	return cartResponse{Items: items, Total: cart.Total(), Count: cart.Count()}
}

// GetMenu returns available dishes grouped by category
// GET /api/menu
func (h *Handler) GetMenu(c *fiber.Ctx) error {
	menu, err := h.menu.AvailableMenu(c.UserContext())
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(menu)
}

// GetCart returns the session cart
// GET /api/cart
func (h *Handler) GetCart(c *fiber.Ctx) error {
	cart, err := h.carts.Get(c.UserContext(), middleware.SessionID(c))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(newCartResponse(cart))
}

// AddCartItem adds one unit of a dish to the cart
// POST /api/cart/items
func (h *Handler) AddCartItem(c *fiber.Ctx) error {
	var req struct {
		DishID string `json:"dish_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.DishID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "dish_id is required",
		})
	}

	cart, err := h.carts.AddDish(c.UserContext(), middleware.SessionID(c), req.DishID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(newCartResponse(cart))
}

// UpdateCartItem sets the quantity of a dish in the cart
// PATCH /api/cart/items/:dishId
func (h *Handler) UpdateCartItem(c *fiber.Ctx) error {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	cart, err := h.carts.SetQuantity(c.UserContext(), middleware.SessionID(c), c.Params("dishId"), req.Quantity)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(newCartResponse(cart))
}

// RemoveCartItem drops a dish from the cart
// DELETE /api/cart/items/:dishId
func (h *Handler) RemoveCartItem(c *fiber.Ctx) error {
	cart, err := h.carts.RemoveDish(c.UserContext(), middleware.SessionID(c), c.Params("dishId"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(newCartResponse(cart))
}

// ClearCart empties the cart
// DELETE /api/cart
func (h *Handler) ClearCart(c *fiber.Ctx) error {
	if err := h.carts.Clear(c.UserContext(), middleware.SessionID(c)); err != nil {
		return h.writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// PlaceOrder submits the cart as a new order
// POST /api/orders
func (h *Handler) PlaceOrder(c *fiber.Ctx) error {
	var customer core.Customer
	if err := c.BodyParser(&customer); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	order, err := h.orders.PlaceOrder(c.UserContext(), middleware.SessionID(c), customer)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// GetImage streams a stored dish picture
// GET /images/:id
func (h *Handler) GetImage(c *fiber.Ctx) error {
	reader, object, err := h.images.Open(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.writeError(c, err)
	}

	c.Set(fiber.HeaderContentType, object.ContentType)
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	return c.SendStream(reader, int(object.Size))
}

// writeError maps domain errors to HTTP status codes
func (h *Handler) writeError(c *fiber.Ctx, err error) error {
	return writeError(c, h.log, err)
}

func writeError(c *fiber.Ctx, log *zap.Logger, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err))
		return c.Status(status).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrEmptyCart):
		return fiber.StatusBadRequest
	case errors.Is(err, core.ErrStatusConflict),
		errors.Is(err, core.ErrInvalidTransition),
		errors.Is(err, core.ErrStatsMissing):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func queryInt(c *fiber.Ctx, key string, fallback int) int {
	raw := c.Query(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
