package application

import (
	"context"
	"fulfillment/internal/service/order/domain"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

type memCustomers struct {
	customers map[int64]*domain.Customer
	calls     int
}

func (m *memCustomers) FindByID(_ context.Context, id int64) (*domain.Customer, error) {
	m.calls++
	c, ok := m.customers[id]
	if !ok {
		return nil, domain.ErrCustomerNotFound
	}
	return c, nil
}

type memOrders struct {
	mu         sync.Mutex
	pending    []*domain.Order
	items      map[int64][]domain.OrderItem
	itemErrs   map[int64]error
	saveErrs   map[int64]error
	updateErrs map[int64]error
	pendingErr error

	saved  map[int64]*domain.Order
	states map[int64]domain.State
	calls  int
}

func newMemOrders() *memOrders {
	return &memOrders{
		items:      map[int64][]domain.OrderItem{},
		itemErrs:   map[int64]error{},
		saveErrs:   map[int64]error{},
		updateErrs: map[int64]error{},
		saved:      map[int64]*domain.Order{},
		states:     map[int64]domain.State{},
	}
}

func (m *memOrders) FindPending(_ context.Context, _ int64) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.pendingErr != nil {
		return nil, m.pendingErr
	}
	return m.pending, nil
}

func (m *memOrders) FindItems(_ context.Context, orderID int64) ([]domain.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := m.itemErrs[orderID]; err != nil {
		return nil, err
	}
	return m.items[orderID], nil
}

func (m *memOrders) Save(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := m.saveErrs[order.ID]; err != nil {
		return err
	}
	m.saved[order.ID] = order
	m.states[order.ID] = order.State
	return nil
}

func (m *memOrders) UpdateState(_ context.Context, orderID int64, state domain.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := m.updateErrs[orderID]; err != nil {
		return err
	}
	m.states[orderID] = state
	return nil
}

func (m *memOrders) stateOf(orderID int64) domain.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[orderID]
}

type memProducts struct {
	products map[int64]*domain.Product
}

func (m *memProducts) FindByID(_ context.Context, id int64) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}

// memInventory 是线程安全的内存库存。
// raceTaken 模拟“检查之后被别的订单抢走”：第一次 DecrementIfSufficient 之前把该商品库存清零。
type memInventory struct {
	mu        sync.Mutex
	stock     map[int64]int
	lookupErr map[int64]error
	raceTaken map[int64]bool
	calls     int
}

func newMemInventory(stock map[int64]int) *memInventory {
	return &memInventory{stock: stock, lookupErr: map[int64]error{}, raceTaken: map[int64]bool{}}
}

func (m *memInventory) GetStockQuantity(_ context.Context, productID int64) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := m.lookupErr[productID]; err != nil {
		return 0, false, err
	}
	q, ok := m.stock[productID]
	return q, ok, nil
}

func (m *memInventory) DecrementStock(_ context.Context, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.stock[productID] -= quantity
	return nil
}

func (m *memInventory) DecrementIfSufficient(_ context.Context, productID int64, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.raceTaken[productID] {
		m.stock[productID] = 0
		delete(m.raceTaken, productID)
	}
	q, ok := m.stock[productID]
	if !ok || q < quantity {
		return false, nil
	}
	m.stock[productID] = q - quantity
	return true, nil
}

func (m *memInventory) IncrementStock(_ context.Context, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.stock[productID] += quantity
	return nil
}

func (m *memInventory) stockOf(productID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[productID]
}

type mockAuditLog struct {
	mock.Mock
}

func (m *mockAuditLog) AppendLog(ctx context.Context, orderID int64, message string, at time.Time) error {
	args := m.Called(ctx, orderID, message, at)
	return args.Error(0)
}

type mockProducer struct {
	mock.Mock
}

func (m *mockProducer) Produce(ctx context.Context, event *domain.CustomerOrdersProcessingRequested) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
