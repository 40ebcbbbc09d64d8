package http

import (
	"bufio"
	"context"
	"fmt"
	"time"

	"github.com/dumu-tech/restaurant-orders/internal/core"
	"github.com/dumu-tech/restaurant-orders/internal/events"
	"github.com/dumu-tech/restaurant-orders/internal/logger"
	"github.com/dumu-tech/restaurant-orders/internal/service"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const heartbeatInterval = 30 * time.Second

// StatsServiceHandler defines the interface for the sales statistics reads
type StatsServiceHandler interface {
	Day(ctx context.Context, date string) (*service.DaySummary, error)
	TopDishes(ctx context.Context, date string, limit int) ([]*core.DishSales, error)
	RevenueTrend(ctx context.Context, days int) ([]*core.DailyStats, error)
	GenerateDailySalesReportPDF(ctx context.Context, date string) ([]byte, string, error)
}

// OrderFeedHandler opens live order subscriptions
type OrderFeedHandler interface {
	Subscribe(ctx context.Context, filter core.OrderFilter) (*events.Subscription, error)
}

// DashboardHandler handles the admin HTTP requests
type DashboardHandler struct {
	menu   MenuServiceHandler
	orders OrderServiceHandler
	stats  StatsServiceHandler
	feed   OrderFeedHandler
	log    *zap.Logger

	// streams bounds every SSE subscription to the server's lifetime
	streams context.Context
}

// NewDashboardHandler creates a new dashboard handler. Live order streams end
// when streams is done, which must happen before the server shuts down.
func NewDashboardHandler(streams context.Context, menu MenuServiceHandler, orders OrderServiceHandler, stats StatsServiceHandler, feed OrderFeedHandler, log *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		menu:    menu,
		orders:  orders,
		stats:   stats,
		feed:    feed,
		log:     logger.Component(log, "dashboard"),
		streams: streams,
	}
}

// GetOrders retrieves orders newest first with an optional status filter
// GET /api/admin/orders?status=pending&limit=50
func (h *DashboardHandler) GetOrders(c *fiber.Ctx) error {
	filter, err := orderFilter(c)
	if err != nil {
		return h.writeError(c, err)
	}

	orders, err := h.orders.ListOrders(c.UserContext(), filter)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(orders)
}

// GetOrder retrieves one order
// GET /api/admin/orders/:id
func (h *DashboardHandler) GetOrder(c *fiber.Ctx) error {
	order, err := h.orders.GetOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(order)
}

// UpdateOrderStatus moves an order to a new status
// PATCH /api/admin/orders/:id/status
func (h *DashboardHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	status, err := core.ParseOrderStatus(req.Status)
	if err != nil {
		return h.writeError(c, err)
	}

	order, err := h.orders.ChangeStatus(c.UserContext(), c.Params("id"), status)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(order)
}

// GetOrderHistory returns the recorded status changes of an order
// GET /api/admin/orders/:id/history?limit=50
func (h *DashboardHandler) GetOrderHistory(c *fiber.Ctx) error {
	limit := queryInt(c, "limit", 50)
	history, err := h.orders.History(c.UserContext(), c.Params("id"), int64(limit))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(history)
}

// StreamOrders pushes the order collection as Server-Sent Events: a snapshot
// first, then added/modified/removed deltas for the requested filter
// GET /api/admin/orders/stream?status=pending
func (h *DashboardHandler) StreamOrders(c *fiber.Ctx) error {
	filter, err := orderFilter(c)
	if err != nil {
		return h.writeError(c, err)
	}

	// The stream writer outlives this handler, so the subscription is bound to
	// the server lifetime rather than the request context.
	ctx, cancel := context.WithCancel(h.streams)
	sub, err := h.feed.Subscribe(ctx, filter)
	if err != nil {
		cancel()
		return h.writeError(c, err)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer sub.Close()

		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-sub.Events():
				if !ok {
					return
				}

				sseData, err := events.FormatSSE(string(event.Kind), event)
				if err != nil {
					h.log.Warn("failed to format SSE", zap.Error(err))
					continue
				}

				if _, err := w.WriteString(sseData); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}

			case <-ticker.C:
				if _, err := w.WriteString(": heartbeat\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})

	return nil
}

// GetDishes retrieves the full catalog
// GET /api/admin/dishes
func (h *DashboardHandler) GetDishes(c *fiber.Ctx) error {
	dishes, err := h.menu.ListDishes(c.UserContext())
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(dishes)
}

// CreateDish adds a dish to the catalog
// POST /api/admin/dishes
func (h *DashboardHandler) CreateDish(c *fiber.Ctx) error {
	var input service.DishInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	dish, err := h.menu.CreateDish(c.UserContext(), input)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dish)
}

// UpdateDish edits a dish
// PUT /api/admin/dishes/:id
func (h *DashboardHandler) UpdateDish(c *fiber.Ctx) error {
	var input service.DishInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	dish, err := h.menu.UpdateDish(c.UserContext(), c.Params("id"), input)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(dish)
}

// DeleteDish removes a dish
// DELETE /api/admin/dishes/:id
func (h *DashboardHandler) DeleteDish(c *fiber.Ctx) error {
	if err := h.menu.DeleteDish(c.UserContext(), c.Params("id")); err != nil {
		return h.writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UploadImage stores a dish picture from a multipart "image" field
// POST /api/admin/images
func (h *DashboardHandler) UploadImage(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "image file is required",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return h.writeError(c, fmt.Errorf("failed to open upload: %w", err))
	}
	defer file.Close()

	url, err := h.menu.UploadImage(c.UserContext(), fileHeader.Filename, file, fileHeader.Size, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"url": url,
	})
}

// GetDayStats returns one day's aggregate; a day without sales reports zeros
// GET /api/admin/stats/:date
func (h *DashboardHandler) GetDayStats(c *fiber.Ctx) error {
	summary, err := h.stats.Day(c.UserContext(), c.Params("date"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(summary)
}

// GetTopDishes returns the best sellers of a day
// GET /api/admin/stats/:date/dishes?limit=10
func (h *DashboardHandler) GetTopDishes(c *fiber.Ctx) error {
	dishes, err := h.stats.TopDishes(c.UserContext(), c.Params("date"), queryInt(c, "limit", 10))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(dishes)
}

// GetRevenueTrend retrieves the last days of aggregates
// GET /api/admin/stats?days=30
func (h *DashboardHandler) GetRevenueTrend(c *fiber.Ctx) error {
	trend, err := h.stats.RevenueTrend(c.UserContext(), queryInt(c, "days", 30))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(trend)
}

// DownloadDailyReport exports one day's sales as PDF
// GET /api/admin/reports/daily?date=2024-05-01
func (h *DashboardHandler) DownloadDailyReport(c *fiber.Ctx) error {
	pdfBytes, filename, err := h.stats.GenerateDailySalesReportPDF(c.UserContext(), c.Query("date", ""))
	if err != nil {
		return h.writeError(c, err)
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(pdfBytes)
}

func (h *DashboardHandler) writeError(c *fiber.Ctx, err error) error {
	return writeError(c, h.log, err)
}

func orderFilter(c *fiber.Ctx) (core.OrderFilter, error) {
	filter := core.OrderFilter{Limit: queryInt(c, "limit", 100)}
	if raw := c.Query("status", ""); raw != "" {
		status, err := core.ParseOrderStatus(raw)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}
	return filter, nil
}
