package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/dumu-tech/restaurant-orders/internal/core"
	"github.com/dumu-tech/restaurant-orders/internal/events"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory order, stats and dish store. Do serializes units of
// work and restores the previous state when fn fails.
type memStore struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	seq    int
	orders map[string]*core.Order
	days   map[string]*core.DailyStats
	dishes map[string]map[string]*core.DishSales

	// failAfterIncrements makes the nth IncrementDish call fail when > 0
	failAfterIncrements int
	incrementCalls      int
}

func newMemStore() *memStore {
	return &memStore{
		orders: make(map[string]*core.Order),
		days:   make(map[string]*core.DailyStats),
		dishes: make(map[string]map[string]*core.DishSales),
	}
}

func copyOrder(o *core.Order) *core.Order {
	c := *o
	c.Items = append([]core.LineItem(nil), o.Items...)
	return &c
}

type memSnapshot struct {
	orders map[string]*core.Order
	days   map[string]core.DailyStats
	dishes map[string]map[string]core.DishSales
}

func (m *memStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := memSnapshot{
		orders: make(map[string]*core.Order, len(m.orders)),
		days:   make(map[string]core.DailyStats, len(m.days)),
		dishes: make(map[string]map[string]core.DishSales, len(m.dishes)),
	}
	for id, o := range m.orders {
		snap.orders[id] = copyOrder(o)
	}
	for date, d := range m.days {
		snap.days[date] = *d
	}
	for date, byDish := range m.dishes {
		inner := make(map[string]core.DishSales, len(byDish))
		for id, s := range byDish {
			inner[id] = *s
		}
		snap.dishes[date] = inner
	}
	return snap
}

func (m *memStore) restore(snap memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.orders = snap.orders
	m.days = make(map[string]*core.DailyStats, len(snap.days))
	for date, d := range snap.days {
		d := d
		m.days[date] = &d
	}
	m.dishes = make(map[string]map[string]*core.DishSales, len(snap.dishes))
	for date, byDish := range snap.dishes {
		inner := make(map[string]*core.DishSales, len(byDish))
		for id, s := range byDish {
			s := s
			inner[id] = &s
		}
		m.dishes[date] = inner
	}
}

// UnitOfWork

func (m *memStore) Do(ctx context.Context, fn func(ctx context.Context, orders core.OrderRepository, stats core.StatsRepository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(ctx, m, m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// OrderRepository

func (m *memStore) Create(ctx context.Context, order *core.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	if order.ID == "" {
		order.ID = fmt.Sprintf("order-%03d", m.seq)
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Date(2024, 5, 1, 12, 0, m.seq, 0, time.UTC)
	}
	m.orders[order.ID] = copyOrder(order)
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (*core.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, core.ErrNotFound)
	}
	return copyOrder(o), nil
}

func (m *memStore) GetForUpdate(ctx context.Context, id string) (*core.Order, error) {
	return m.GetByID(ctx, id)
}

func (m *memStore) List(ctx context.Context, filter core.OrderFilter) ([]*core.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	orders := make([]*core.Order, 0, len(m.orders))
	for _, o := range m.orders {
		if filter.Matches(o.Status) {
			orders = append(orders, copyOrder(o))
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	if filter.Limit > 0 && len(orders) > filter.Limit {
		orders = orders[:filter.Limit]
	}
	return orders, nil
}

func (m *memStore) CompareAndSetStatus(ctx context.Context, id string, from, to core.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return fmt.Errorf("order %s: %w", id, core.ErrNotFound)
	}
	if o.Status != from {
		return fmt.Errorf("order %s: %w", id, core.ErrStatusConflict)
	}
	o.Status = to
	return nil
}

// setStatus bypasses the workflow, simulating a write from another admin
func (m *memStore) setStatus(id string, status core.OrderStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[id].Status = status
}

// StatsRepository

func (m *memStore) IncrementDay(ctx context.Context, date string, sales decimal.Decimal, orders int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	day, ok := m.days[date]
	if !ok {
		day = &core.DailyStats{Date: date, TotalSales: decimal.Zero}
		m.days[date] = day
	}
	day.TotalSales = day.TotalSales.Add(sales)
	day.TotalOrders += orders
	return nil
}

func (m *memStore) DecrementDay(ctx context.Context, date string, sales decimal.Decimal, orders int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	day, ok := m.days[date]
	if !ok {
		return fmt.Errorf("daily stats %s: %w", date, core.ErrStatsMissing)
	}
	day.TotalSales = day.TotalSales.Sub(sales)
	day.TotalOrders -= orders
	return nil
}

func (m *memStore) IncrementDish(ctx context.Context, date string, sale core.DishSales) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.incrementCalls++
	if m.failAfterIncrements > 0 && m.incrementCalls >= m.failAfterIncrements {
		return errors.New("dish write failed")
	}

	byDish, ok := m.dishes[date]
	if !ok {
		byDish = make(map[string]*core.DishSales)
		m.dishes[date] = byDish
	}
	current, ok := byDish[sale.DishID]
	if !ok {
		current = &core.DishSales{Date: date, DishID: sale.DishID, Total: decimal.Zero}
		byDish[sale.DishID] = current
	}
	current.Name = sale.Name
	current.Quantity += sale.Quantity
	current.Total = current.Total.Add(sale.Total)
	return nil
}

func (m *memStore) DecrementDish(ctx context.Context, date string, sale core.DishSales) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.dishes[date][sale.DishID]
	if !ok {
		return fmt.Errorf("dish sales %s/%s: %w", date, sale.DishID, core.ErrStatsMissing)
	}
	current.Quantity -= sale.Quantity
	current.Total = current.Total.Sub(sale.Total)
	return nil
}

func (m *memStore) GetDay(ctx context.Context, date string) (*core.DailyStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	day, ok := m.days[date]
	if !ok {
		return nil, fmt.Errorf("daily stats %s: %w", date, core.ErrNotFound)
	}
	c := *day
	return &c, nil
}

func (m *memStore) TopDishes(ctx context.Context, date string, limit int) ([]*core.DishSales, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sales := make([]*core.DishSales, 0)
	for _, s := range m.dishes[date] {
		c := *s
		sales = append(sales, &c)
	}
	sort.Slice(sales, func(i, j int) bool {
		if sales[i].Quantity != sales[j].Quantity {
			return sales[i].Quantity > sales[j].Quantity
		}
		return sales[i].Name < sales[j].Name
	})
	if limit > 0 && len(sales) > limit {
		sales = sales[:limit]
	}
	return sales, nil
}

func (m *memStore) ListDays(ctx context.Context, from, to string) ([]*core.DailyStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	days := make([]*core.DailyStats, 0)
	for date, d := range m.days {
		if date >= from && date <= to {
			c := *d
			days = append(days, &c)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days, nil
}

func (m *memStore) day(date string) core.DailyStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.days[date]; ok {
		return *d
	}
	return core.DailyStats{Date: date, TotalSales: decimal.Zero}
}

func (m *memStore) dish(date, dishID string) (core.DishSales, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.dishes[date][dishID]
	if !ok {
		return core.DishSales{}, false
	}
	return *s, true
}

// memDishes implements core.DishRepository

type memDishes struct {
	mu     sync.Mutex
	seq    int
	dishes map[string]*core.Dish
}

func newMemDishes(dishes ...*core.Dish) *memDishes {
	m := &memDishes{dishes: make(map[string]*core.Dish)}
	for _, d := range dishes {
		m.dishes[d.ID] = d
	}
	return m
}

func (m *memDishes) GetByID(ctx context.Context, id string) (*core.Dish, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.dishes[id]
	if !ok {
		return nil, fmt.Errorf("dish %s: %w", id, core.ErrNotFound)
	}
	c := *d
	return &c, nil
}

func (m *memDishes) List(ctx context.Context, onlyAvailable bool) ([]*core.Dish, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dishes := make([]*core.Dish, 0, len(m.dishes))
	for _, d := range m.dishes {
		if onlyAvailable && !d.Available {
			continue
		}
		c := *d
		dishes = append(dishes, &c)
	}
	sort.Slice(dishes, func(i, j int) bool { return dishes[i].ID < dishes[j].ID })
	return dishes, nil
}

func (m *memDishes) Create(ctx context.Context, dish *core.Dish) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	dish.ID = fmt.Sprintf("dish-%03d", m.seq)
	c := *dish
	m.dishes[dish.ID] = &c
	return nil
}

func (m *memDishes) Update(ctx context.Context, dish *core.Dish) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.dishes[dish.ID]; !ok {
		return fmt.Errorf("dish %s: %w", dish.ID, core.ErrNotFound)
	}
	c := *dish
	m.dishes[dish.ID] = &c
	return nil
}

func (m *memDishes) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.dishes[id]; !ok {
		return fmt.Errorf("dish %s: %w", id, core.ErrNotFound)
	}
	delete(m.dishes, id)
	return nil
}

// memCarts implements core.CartRepository

type memCarts struct {
	mu        sync.Mutex
	carts     map[string]core.Cart
	lastTTL   time.Duration
	deleteErr error
}

func newMemCarts() *memCarts {
	return &memCarts{carts: make(map[string]core.Cart)}
}

func (m *memCarts) Get(ctx context.Context, sessionID string) (*core.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.carts[sessionID]
	if !ok {
		return &core.Cart{SessionID: sessionID, Items: []core.CartItem{}}, nil
	}
	cart.Items = append([]core.CartItem(nil), cart.Items...)
	return &cart, nil
}

// Save seeds a cart directly
func (m *memCarts) Save(ctx context.Context, cart *core.Cart, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *cart
	c.Items = append([]core.CartItem(nil), cart.Items...)
	m.carts[cart.SessionID] = c
	m.lastTTL = ttl
	return nil
}

func (m *memCarts) Update(ctx context.Context, sessionID string, ttl time.Duration, fn func(cart *core.Cart) error) (*core.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart := core.Cart{SessionID: sessionID, Items: []core.CartItem{}}
	if stored, ok := m.carts[sessionID]; ok {
		cart = stored
		cart.Items = append([]core.CartItem(nil), stored.Items...)
	}
	if err := fn(&cart); err != nil {
		return nil, err
	}
	m.carts[sessionID] = cart
	m.lastTTL = ttl

	out := cart
	out.Items = append([]core.CartItem(nil), cart.Items...)
	return &out, nil
}

func (m *memCarts) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.carts, sessionID)
	return nil
}

// memAudit implements core.AuditLog

type memAudit struct {
	mu      sync.Mutex
	changes []*core.StatusChange
}

func (m *memAudit) RecordStatusChange(ctx context.Context, change *core.StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *change
	m.changes = append(m.changes, &c)
	return nil
}

func (m *memAudit) History(ctx context.Context, orderID string, limit int64) ([]*core.StatusChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := make([]*core.StatusChange, 0)
	for i := len(m.changes) - 1; i >= 0; i-- {
		if m.changes[i].OrderID == orderID {
			history = append(history, m.changes[i])
		}
	}
	if limit > 0 && int64(len(history)) > limit {
		history = history[:limit]
	}
	return history, nil
}

// recordingPublisher implements events.Publisher

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) published() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

// memObjects implements core.ObjectStore

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	paths   []string
}

func newMemObjects() *memObjects {
	return &memObjects{objects: make(map[string][]byte)}
}

func (m *memObjects) Put(ctx context.Context, path string, r io.Reader, size int64, contentType string, progress func(core.UploadProgress)) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if progress != nil {
		progress(core.UploadProgress{Path: path, BytesTransferred: 0, TotalBytes: size})
		progress(core.UploadProgress{Path: path, BytesTransferred: int64(len(data)), TotalBytes: size})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = data
	m.paths = append(m.paths, path)
	return "https://cdn.test/" + path, nil
}

func (m *memObjects) Open(ctx context.Context, id string) (io.ReadCloser, *core.StoredObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[id]
	if !ok {
		return nil, nil, fmt.Errorf("image %s: %w", id, core.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), &core.StoredObject{ID: id, Path: id, Size: int64(len(data))}, nil
}

// helpers

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testOrder(id, date string, status core.OrderStatus, items ...core.LineItem) *core.Order {
	return &core.Order{
		ID:       id,
		Customer: core.Customer{Name: "Ana", Phone: "555-0100", Address: "Main St 1"},
		Items:    items,
		Total:    core.SumSubtotals(items),
		Status:   status,
		Date:     date,
	}
}
