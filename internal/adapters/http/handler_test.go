package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	nethttp "net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/dumu-tech/restaurant-orders/internal/core"
	"github.com/dumu-tech/restaurant-orders/internal/events"
	"github.com/dumu-tech/restaurant-orders/internal/middleware"
	"github.com/dumu-tech/restaurant-orders/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type fakeMenu struct {
	menu      []service.MenuCategory
	created   service.DishInput
	uploaded  string
	uploadCT  string
	uploadErr error
}

func (f *fakeMenu) AvailableMenu(ctx context.Context) ([]service.MenuCategory, error) {
	return f.menu, nil
}

func (f *fakeMenu) ListDishes(ctx context.Context) ([]*core.Dish, error) {
	return []*core.Dish{}, nil
}

func (f *fakeMenu) GetDish(ctx context.Context, id string) (*core.Dish, error) {
	return nil, core.ErrNotFound
}

func (f *fakeMenu) CreateDish(ctx context.Context, input service.DishInput) (*core.Dish, error) {
	f.created = input
	if input.Name == "" {
		return nil, fmt.Errorf("%w: name is required", core.ErrValidation)
	}
	return &core.Dish{ID: "d1", Name: input.Name, Price: input.Price, Category: input.Category}, nil
}

func (f *fakeMenu) UpdateDish(ctx context.Context, id string, input service.DishInput) (*core.Dish, error) {
	return nil, fmt.Errorf("dish %s: %w", id, core.ErrNotFound)
}

func (f *fakeMenu) DeleteDish(ctx context.Context, id string) error {
	return nil
}

func (f *fakeMenu) UploadImage(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploaded = filename
	f.uploadCT = contentType
	return "http://localhost/images/abc", nil
}

type fakeCarts struct {
	sessions []string
	carts    map[string]*core.Cart
}

func (f *fakeCarts) cart(sessionID string) *core.Cart {
	if f.carts == nil {
		f.carts = make(map[string]*core.Cart)
	}
	cart, ok := f.carts[sessionID]
	if !ok {
		cart = &core.Cart{SessionID: sessionID}
		f.carts[sessionID] = cart
	}
	return cart
}

func (f *fakeCarts) Get(ctx context.Context, sessionID string) (*core.Cart, error) {
	f.sessions = append(f.sessions, sessionID)
	return f.cart(sessionID), nil
}

func (f *fakeCarts) AddDish(ctx context.Context, sessionID, dishID string) (*core.Cart, error) {
	f.sessions = append(f.sessions, sessionID)
	if dishID == "missing" {
		return nil, fmt.Errorf("dish %s: %w", dishID, core.ErrNotFound)
	}
	cart := f.cart(sessionID)
	cart.Add(&core.Dish{ID: dishID, Name: "Empanada", Price: decimal.RequireFromString("3.50")})
	return cart, nil
}

func (f *fakeCarts) RemoveDish(ctx context.Context, sessionID, dishID string) (*core.Cart, error) {
	cart := f.cart(sessionID)
	if !cart.Remove(dishID) {
		return nil, fmt.Errorf("dish %s not in cart: %w", dishID, core.ErrNotFound)
	}
	return cart, nil
}

func (f *fakeCarts) SetQuantity(ctx context.Context, sessionID, dishID string, quantity int) (*core.Cart, error) {
	cart := f.cart(sessionID)
	if !cart.SetQuantity(dishID, quantity) {
		return nil, fmt.Errorf("dish %s not in cart: %w", dishID, core.ErrNotFound)
	}
	return cart, nil
}

func (f *fakeCarts) Clear(ctx context.Context, sessionID string) error {
	delete(f.carts, sessionID)
	return nil
}

type fakeOrders struct {
	customer core.Customer
	changed  core.OrderStatus
	err      error
	filter   core.OrderFilter
}

func (f *fakeOrders) PlaceOrder(ctx context.Context, sessionID string, customer core.Customer) (*core.Order, error) {
	f.customer = customer
	if f.err != nil {
		return nil, f.err
	}
	return &core.Order{ID: "o1", Customer: customer, Status: core.OrderStatusPending, Date: "2024-01-10", Total: decimal.NewFromInt(7)}, nil
}

func (f *fakeOrders) ChangeStatus(ctx context.Context, orderID string, next core.OrderStatus) (*core.Order, error) {
	f.changed = next
	if f.err != nil {
		return nil, f.err
	}
	return &core.Order{ID: orderID, Status: next}, nil
}

func (f *fakeOrders) GetOrder(ctx context.Context, orderID string) (*core.Order, error) {
	return nil, fmt.Errorf("order %s: %w", orderID, core.ErrNotFound)
}

func (f *fakeOrders) ListOrders(ctx context.Context, filter core.OrderFilter) ([]*core.Order, error) {
	f.filter = filter
	return []*core.Order{{ID: "o1", Status: core.OrderStatusPending}}, nil
}

// List lets the fake back the live feed snapshot
func (f *fakeOrders) List(ctx context.Context, filter core.OrderFilter) ([]*core.Order, error) {
	return f.ListOrders(ctx, filter)
}

func (f *fakeOrders) History(ctx context.Context, orderID string, limit int64) ([]*core.StatusChange, error) {
	return []*core.StatusChange{{OrderID: orderID, From: core.OrderStatusPending, To: core.OrderStatusCompleted}}, nil
}

type fakeStats struct{}

func (fakeStats) Day(ctx context.Context, date string) (*service.DaySummary, error) {
	if date == "bad" {
		return nil, fmt.Errorf("%w: invalid date format", core.ErrValidation)
	}
	return &service.DaySummary{Date: date, TotalSales: decimal.Zero, AverageTicket: decimal.Zero}, nil
}

func (fakeStats) TopDishes(ctx context.Context, date string, limit int) ([]*core.DishSales, error) {
	return []*core.DishSales{{Date: date, DishID: "A", Name: "Empanada", Quantity: limit}}, nil
}

func (fakeStats) RevenueTrend(ctx context.Context, days int) ([]*core.DailyStats, error) {
	return []*core.DailyStats{}, nil
}

func (fakeStats) GenerateDailySalesReportPDF(ctx context.Context, date string) ([]byte, string, error) {
	return []byte("%PDF-1.3"), "daily-sales-2024-01-10.pdf", nil
}

type fakeImages struct{}

func (fakeImages) Open(ctx context.Context, id string) (io.ReadCloser, *core.StoredObject, error) {
	if id != "abc" {
		return nil, nil, fmt.Errorf("image %s: %w", id, core.ErrNotFound)
	}
	return io.NopCloser(strings.NewReader("jpeg")), &core.StoredObject{ID: id, ContentType: "image/jpeg", Size: 4}, nil
}

type testApp struct {
	app    *fiber.App
	menu   *fakeMenu
	carts  *fakeCarts
	orders *fakeOrders

	stopStreams context.CancelFunc
}

func newTestApp() *testApp {
	ta := &testApp{menu: &fakeMenu{}, carts: &fakeCarts{}, orders: &fakeOrders{}}
	handler := NewHandler(ta.menu, ta.carts, ta.orders, fakeImages{}, nil)
	bus := events.NewBus()
	streams, stop := context.WithCancel(context.Background())
	ta.stopStreams = stop
	dashboard := NewDashboardHandler(streams, ta.menu, ta.orders, fakeStats{}, events.NewOrderFeed(bus, ta.orders), nil)

	ta.app = fiber.New()
	RegisterRoutes(ta.app, handler, dashboard, time.Hour)
	return ta
}

func (ta *testApp) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (int, []byte, map[string]string) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	respHeaders := map[string]string{
		"Content-Type":           resp.Header.Get("Content-Type"),
		"Content-Disposition":    resp.Header.Get("Content-Disposition"),
		middleware.SessionHeader: resp.Header.Get(middleware.SessionHeader),
	}
	return resp.StatusCode, data, respHeaders
}

func TestHealth(t *testing.T) {
	ta := newTestApp()
	status, _, _ := ta.do(t, "GET", "/health", nil, nil)
	if status != fiber.StatusOK {
		t.Fatalf("status = %d", status)
	}
}

func TestCartSessionIsIssuedAndReused(t *testing.T) {
	ta := newTestApp()

	status, body, headers := ta.do(t, "POST", "/api/cart/items", map[string]string{"dish_id": "A"}, nil)
	if status != fiber.StatusOK {
		t.Fatalf("status = %d body = %s", status, body)
	}
	session := headers[middleware.SessionHeader]
	if session == "" {
		t.Fatal("no session issued")
	}

	_, body, _ = ta.do(t, "GET", "/api/cart", nil, map[string]string{middleware.SessionHeader: session})
	var cart struct {
		Items []core.CartItem `json:"items"`
		Count int             `json:"count"`
	}
	if err := json.Unmarshal(body, &cart); err != nil {
		t.Fatal(err)
	}
	if cart.Count != 1 || len(cart.Items) != 1 {
		t.Errorf("cart = %s", body)
	}
}

func TestAddCartItemErrors(t *testing.T) {
	ta := newTestApp()

	if status, _, _ := ta.do(t, "POST", "/api/cart/items", map[string]string{}, nil); status != fiber.StatusBadRequest {
		t.Errorf("missing dish_id: status = %d, want 400", status)
	}
	if status, _, _ := ta.do(t, "POST", "/api/cart/items", map[string]string{"dish_id": "missing"}, nil); status != fiber.StatusNotFound {
		t.Errorf("unknown dish: status = %d, want 404", status)
	}
	if status, _, _ := ta.do(t, "DELETE", "/api/cart/items/A", nil, nil); status != fiber.StatusNotFound {
		t.Errorf("remove from empty cart: status = %d, want 404", status)
	}
}

func TestPlaceOrderEndpoint(t *testing.T) {
	ta := newTestApp()

	status, body, _ := ta.do(t, "POST", "/api/orders", core.Customer{Name: "Ana", Phone: "555", Address: "Main St"}, nil)
	if status != fiber.StatusCreated {
		t.Fatalf("status = %d body = %s", status, body)
	}
	if ta.orders.customer.Name != "Ana" {
		t.Errorf("customer = %+v", ta.orders.customer)
	}

	ta.orders.err = core.ErrEmptyCart
	status, body, _ = ta.do(t, "POST", "/api/orders", core.Customer{Name: "Ana", Phone: "555", Address: "Main St"}, nil)
	if status != fiber.StatusBadRequest {
		t.Fatalf("empty cart: status = %d body = %s", status, body)
	}
}

func TestUpdateOrderStatusEndpoint(t *testing.T) {
	ta := newTestApp()

	status, body, _ := ta.do(t, "PATCH", "/api/admin/orders/o1/status", map[string]string{"status": "completed"}, nil)
	if status != fiber.StatusOK {
		t.Fatalf("status = %d body = %s", status, body)
	}
	if ta.orders.changed != core.OrderStatusCompleted {
		t.Errorf("changed to %s", ta.orders.changed)
	}

	if status, _, _ := ta.do(t, "PATCH", "/api/admin/orders/o1/status", map[string]string{"status": "shipped"}, nil); status != fiber.StatusBadRequest {
		t.Errorf("unknown status: status = %d, want 400", status)
	}

	cases := []struct {
		err  error
		want int
	}{
		{core.ErrStatusConflict, fiber.StatusConflict},
		{core.ErrInvalidTransition, fiber.StatusConflict},
		{fmt.Errorf("wrapped: %w", core.ErrStatsMissing), fiber.StatusConflict},
		{fmt.Errorf("order x: %w", core.ErrNotFound), fiber.StatusNotFound},
		{fmt.Errorf("connection reset"), fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		ta.orders.err = tc.err
		status, body, _ := ta.do(t, "PATCH", "/api/admin/orders/o1/status", map[string]string{"status": "cancelled"}, nil)
		if status != tc.want {
			t.Errorf("%v: status = %d, want %d", tc.err, status, tc.want)
		}
		if tc.want == fiber.StatusInternalServerError && strings.Contains(string(body), "connection reset") {
			t.Error("internal error details leaked to the client")
		}
	}
}

func TestGetOrdersParsesFilter(t *testing.T) {
	ta := newTestApp()

	status, _, _ := ta.do(t, "GET", "/api/admin/orders?status=pending&limit=5", nil, nil)
	if status != fiber.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if ta.orders.filter.Status != core.OrderStatusPending || ta.orders.filter.Limit != 5 {
		t.Errorf("filter = %+v", ta.orders.filter)
	}

	if status, _, _ := ta.do(t, "GET", "/api/admin/orders?status=lost", nil, nil); status != fiber.StatusBadRequest {
		t.Errorf("bad status filter: status = %d, want 400", status)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	ta := newTestApp()
	if status, _, _ := ta.do(t, "GET", "/api/admin/orders/nope", nil, nil); status != fiber.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
}

func TestCreateDishEndpoint(t *testing.T) {
	ta := newTestApp()

	status, body, _ := ta.do(t, "POST", "/api/admin/dishes", map[string]interface{}{
		"name": "Flan", "category": "Desserts", "price": 5.5, "image_url": "http://img", "available": true,
	}, nil)
	if status != fiber.StatusCreated {
		t.Fatalf("status = %d body = %s", status, body)
	}
	if !ta.menu.created.Price.Equal(decimal.RequireFromString("5.5")) {
		t.Errorf("price = %s", ta.menu.created.Price)
	}

	if status, _, _ := ta.do(t, "POST", "/api/admin/dishes", map[string]interface{}{"price": 1}, nil); status != fiber.StatusBadRequest {
		t.Errorf("invalid dish: status = %d, want 400", status)
	}
	if status, _, _ := ta.do(t, "PUT", "/api/admin/dishes/zz", map[string]interface{}{"name": "X"}, nil); status != fiber.StatusNotFound {
		t.Errorf("update unknown: status = %d, want 404", status)
	}
}

func (ta *testApp) upload(t *testing.T, filename, contentType string, data []byte) (int, []byte) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	writer.Close()

	req := httptest.NewRequest("POST", "/api/admin/images", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, body
}

func TestUploadImageEndpoint(t *testing.T) {
	ta := newTestApp()

	status, body := ta.upload(t, "flan.jpg", "image/jpeg", []byte("jpeg-bytes"))
	if status != fiber.StatusCreated {
		t.Fatalf("status = %d body = %s", status, body)
	}
	if ta.menu.uploaded != "flan.jpg" || ta.menu.uploadCT != "image/jpeg" {
		t.Errorf("uploaded %q as %q", ta.menu.uploaded, ta.menu.uploadCT)
	}
}

func TestUploadImageStoreFailureIsHidden(t *testing.T) {
	ta := newTestApp()
	ta.menu.uploadErr = errors.New("gridfs: connection reset")

	status, body := ta.upload(t, "flan.jpg", "image/jpeg", []byte("jpeg-bytes"))
	if status != fiber.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", status)
	}
	if strings.Contains(string(body), "gridfs") {
		t.Errorf("internal error leaked: %s", body)
	}
}

func TestUploadImageRequiresFile(t *testing.T) {
	ta := newTestApp()
	if status, _, _ := ta.do(t, "POST", "/api/admin/images", map[string]string{}, nil); status != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestStatsEndpoints(t *testing.T) {
	ta := newTestApp()

	if status, _, _ := ta.do(t, "GET", "/api/admin/stats/2024-01-10", nil, nil); status != fiber.StatusOK {
		t.Errorf("day: status = %d", status)
	}
	if status, _, _ := ta.do(t, "GET", "/api/admin/stats/bad", nil, nil); status != fiber.StatusBadRequest {
		t.Errorf("bad date: status = %d, want 400", status)
	}

	_, body, _ := ta.do(t, "GET", "/api/admin/stats/2024-01-10/dishes", nil, nil)
	var dishes []core.DishSales
	if err := json.Unmarshal(body, &dishes); err != nil {
		t.Fatal(err)
	}
	if len(dishes) != 1 || dishes[0].Quantity != 10 {
		t.Errorf("dishes = %s, want default limit 10 passed through", body)
	}

	if status, _, _ := ta.do(t, "GET", "/api/admin/stats?days=7", nil, nil); status != fiber.StatusOK {
		t.Errorf("trend: status = %d", status)
	}
}

func TestDailyReportDownload(t *testing.T) {
	ta := newTestApp()

	status, body, headers := ta.do(t, "GET", "/api/admin/reports/daily?date=2024-01-10", nil, nil)
	if status != fiber.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if headers["Content-Type"] != "application/pdf" {
		t.Errorf("content type = %s", headers["Content-Type"])
	}
	if !strings.Contains(headers["Content-Disposition"], "daily-sales-2024-01-10.pdf") {
		t.Errorf("disposition = %s", headers["Content-Disposition"])
	}
	if !bytes.HasPrefix(body, []byte("%PDF")) {
		t.Error("body is not a PDF")
	}
}

func TestGetImage(t *testing.T) {
	ta := newTestApp()

	status, body, headers := ta.do(t, "GET", "/images/abc", nil, nil)
	if status != fiber.StatusOK || string(body) != "jpeg" {
		t.Fatalf("status = %d body = %q", status, body)
	}
	if headers["Content-Type"] != "image/jpeg" {
		t.Errorf("content type = %s", headers["Content-Type"])
	}
	if status, _, _ := ta.do(t, "GET", "/images/zzz", nil, nil); status != fiber.StatusNotFound {
		t.Errorf("missing image: status = %d, want 404", status)
	}
}

func TestShutdownWithOpenOrderStream(t *testing.T) {
	ta := newTestApp()
	defer ta.stopStreams()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	served := make(chan error, 1)
	go func() { served <- ta.app.Listener(ln) }()

	resp, err := nethttp.Get("http://" + ln.Addr().String() + "/api/admin/orders/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}
	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if line != "event: snapshot\n" {
		t.Fatalf("first line = %q, want the snapshot event", line)
	}

	ta.stopStreams()
	start := time.Now()
	if err := ta.app.ShutdownWithTimeout(5 * time.Second); err != nil {
		t.Fatalf("shutdown with an open stream: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("shutdown took %s", elapsed)
	}

	select {
	case err := <-served:
		if err != nil {
			t.Errorf("listener: %v", err)
		}
	case <-time.After(time.Second):
		t.Error("listener did not return after shutdown")
	}
}
