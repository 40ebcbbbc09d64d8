package http

import (
	"time"

	"github.com/dumu-tech/restaurant-orders/internal/middleware"
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the customer and admin endpoints on app
func RegisterRoutes(app *fiber.App, handler *Handler, dashboard *DashboardHandler, sessionTTL time.Duration) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"project": "restaurant-orders",
		})
	})

	app.Get("/images/:id", handler.GetImage)

	api := app.Group("/api")
	api.Get("/menu", handler.GetMenu)

	session := middleware.Session(sessionTTL)
	api.Get("/cart", session, handler.GetCart)
	api.Delete("/cart", session, handler.ClearCart)
	api.Post("/cart/items", session, handler.AddCartItem)
	api.Patch("/cart/items/:dishId", session, handler.UpdateCartItem)
	api.Delete("/cart/items/:dishId", session, handler.RemoveCartItem)
	api.Post("/orders", session, handler.PlaceOrder)

	admin := api.Group("/admin")
	admin.Get("/orders", dashboard.GetOrders)
	admin.Get("/orders/stream", dashboard.StreamOrders)
	admin.Get("/orders/:id", dashboard.GetOrder)
	admin.Patch("/orders/:id/status", dashboard.UpdateOrderStatus)
	admin.Get("/orders/:id/history", dashboard.GetOrderHistory)

	admin.Get("/dishes", dashboard.GetDishes)
	admin.Post("/dishes", dashboard.CreateDish)
	admin.Put("/dishes/:id", dashboard.UpdateDish)
	admin.Delete("/dishes/:id", dashboard.DeleteDish)
	admin.Post("/images", dashboard.UploadImage)

	admin.Get("/stats", dashboard.GetRevenueTrend)
	admin.Get("/stats/:date", dashboard.GetDayStats)
	admin.Get("/stats/:date/dishes", dashboard.GetTopDishes)
	admin.Get("/reports/daily", dashboard.DownloadDailyReport)
}
