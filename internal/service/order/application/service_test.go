package application

import (
	"context"
	"errors"
	"fulfillment/internal/service/order/domain"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

var now = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	customers *memCustomers
	orders    *memOrders
	products  *memProducts
	inventory *memInventory
	audit     *mockAuditLog
}

func newFixture(customer *domain.Customer) *fixture {
	return &fixture{
		customers: &memCustomers{customers: map[int64]*domain.Customer{customer.ID: customer}},
		orders:    newMemOrders(),
		products: &memProducts{products: map[int64]*domain.Product{
			100: {ID: 100, Name: "Laptop", Category: "Electronics", Price: decimal.NewFromInt(3000)},
			200: {ID: 200, Name: "Mouse", Category: "Electronics", Price: decimal.NewFromInt(100)},
		}},
		inventory: newMemInventory(map[int64]int{100: 50, 200: 50}),
		audit:     new(mockAuditLog),
	}
}

func (f *fixture) addOrder(id int64, items ...domain.OrderItem) {
	f.orders.pending = append(f.orders.pending, &domain.Order{ID: id, CustomerID: 1, OrderDate: now, State: domain.StatePending})
	for i := range items {
		items[i].OrderID = id
	}
	f.orders.items[id] = items
}

func (f *fixture) service(opts ...Option) *FulfillmentService {
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	return NewFulfillmentService(f.customers, f.orders, f.products, f.inventory, f.audit, noop.NewTracerProvider().Tracer("test"), opts...)
}

func item(productID int64, quantity int, unitPrice int64) domain.OrderItem {
	return domain.OrderItem{ProductID: productID, Quantity: quantity, UnitPrice: decimal.NewFromInt(unitPrice)}
}

func registeredYearsAgo(years int) time.Time {
	return time.Date(now.Year()-years, time.January, 15, 0, 0, 0, 0, time.UTC)
}

func TestProcessCustomerOrders_VIPLongTermLargeOrder(t *testing.T) {
	f := newFixture(&domain.Customer{ID: 1, IsVIP: true, RegistrationDate: registeredYearsAgo(10)})
	f.addOrder(10, item(100, 5, 3000))
	f.audit.On("AppendLog", mock.Anything, int64(10), "Order completed with 25% discount. Total price: 11250", now).Return(nil).Once()

	resp, err := f.service().ProcessCustomerOrders(context.Background(), &ProcessCustomerOrdersRequest{CustomerID: 1})
	require.NoError(t, err)
	require.Len(t, resp.Orders, 1)

	order := resp.Orders[0]
	assert.True(t, decimal.NewFromInt(15000).Equal(order.TotalAmount))
	assert.Equal(t, 25, order.DiscountPercent)
	assert.True(t, decimal.NewFromInt(3750).Equal(order.DiscountAmount))
	assert.True(t, decimal.NewFromInt(11250).Equal(order.FinalAmount))
	assert.Equal(t, domain.StateReady, order.State)
	assert.Equal(t, OutcomeReady, resp.Outcomes[0].Outcome)

	assert.Equal(t, 45, f.inventory.stockOf(100))
	assert.Equal(t, domain.StateReady, f.orders.stateOf(10))
	assert.Equal(t, domain.StateProcessed, f.orders.saved[10].State)
	assert.NotEmpty(t, resp.RunID)
	f.audit.AssertExpectations(t)
}

func TestProcessCustomerOrders_NewCustomerSmallOrder(t *testing.T) {
	f := newFixture(&domain.Customer{ID: 1, RegistrationDate: registeredYearsAgo(0)})
	f.addOrder(11, item(200, 2, 100))
	f.audit.On("AppendLog", mock.Anything, int64(11), "Order completed with 0% discount. Total price: 200", now).Return(nil)

	resp, err := f.service().ProcessCustomerOrders(context.Background(), &ProcessCustomerOrdersRequest{CustomerID: 1})
	require.NoError(t, err)
	require.Len(t, resp.Orders, 1)

	assert.Equal(t, 0, resp.Orders[0].DiscountPercent)
	assert.True(t, decimal.NewFromInt(200).Equal(resp.Orders[0].FinalAmount))
	require.NotNil(t, resp.Orders[0].Items[0].Product)
	assert.Equal(t, "Mouse", resp.Orders[0].Items[0].Product.Name)
	f.audit.AssertExpectations(t)
}

func TestProcessCustomerOrders_MidTermMediumOrder(t *testing.T) {
	f := newFixture(&domain.Customer{ID: 1, RegistrationDate: registeredYearsAgo(2)})
	f.addOrder(12, item(100, 3, 3000))
	f.audit.On("AppendLog", mock.Anything, int64(12), mock.Anything, now).Return(nil)

	resp, err := f.service().ProcessCustomerOrders(context.Background(), &ProcessCustomerOrdersRequest{CustomerID: 1})
	require.NoError(t, err)
	require.Len(t, resp.Orders, 1)

	assert.Equal(t, 12, resp.Orders[0].DiscountPercent)
	assert.True(t, decimal.NewFromInt(7920).Equal(resp.Orders[0].FinalAmount))
}

func TestProcessCustomerOrders_AsOfDrivesLoyalty(t *testing.T) {
	f := newFixture(&domain.Customer{ID: 1, RegistrationDate: registeredYearsAgo(0)})
	f.addOrder(13, item(200, 2, 100))
	f.audit.On("AppendLog", mock.Anything, int64(13), mock.Anything, now).Return(nil)

	asOf := now.AddDate(5, 0, 0)
	resp, err := f.service().ProcessCustomerOrders(context.Background(), &ProcessCustomerOrdersRequest{CustomerID: 1, AsOf: asOf})
	require.NoError(t, err)
	require.Len(t, resp.Orders, 1)
	assert.Equal(t, 5, resp.Orders[0].DiscountPercent)
}

func TestProcessCustomerOrders_InsufficientStockPutsOnHold(t *testing.T) {
	f := newFixture(&domain.Customer{ID: 1, RegistrationDate: registeredYearsAgo(0)})
	f.inventory.stock[100] = 5
	f.addOrder(14, item(100, 10, 10))
	f.audit.On("AppendLog", mock.Anything, int64(14), "Order on hold. Some items are not on stock.", now).Return(nil).Once()

	resp, err := f.service().ProcessCustomerOrders(context.Background(), &ProcessCustomerOrdersRequest{CustomerID: 1})
	require.NoError(t, err)
	require.Len(t, resp.Orders, 1)

	assert.Equal(t, domain.StateOnHold, resp.Orders[0].State)
	assert.Equal(t, OutcomeOnHold, resp.Outcomes[0].Outcome)
	assert.Equal(t, 5, f.inventory.stockOf(100))
	assert.Equal(t, domain.StateOnHold, f.orders.stateOf(14))
	f.audit.AssertExpectations(t)
}

func TestProcessCustomerOrders_MissingInventoryRecordPutsOnHold(t *testing.T) {
	f := newFixture(&domain.Customer{ID: 1, RegistrationDate: registeredYearsAgo(0)})
	delete(f.inventory.stock, 200)
	f.addOrder(15, item(100, 1, 10), item(200, 1, 10))
	f.audit.On("AppendLog", mock.Anything, int64(15), "Order on hold. Some items are not on stock.", now).Return(nil)

	resp, err := f.service().ProcessCustomerOrders(context.Background(), &ProcessCustomerOrdersRequest{CustomerID: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.StateOnHold, resp.Orders[0].State)
	// 库存不足时不扣减任何一行
	assert.Equal(t, 50, f.inventory.stockOf(100))
}

func TestProcessCustomerOrders_InvalidCustomerID(t *testing.T) {
	for _, id := range []int64{0, -1} {
		f := newFixture(&domain.Customer{ID: 1})
		_, err := f.service().ProcessCustomerOrders(context.Background(), &ProcessCustomerOrdersRequest{CustomerID: id})

		assert.ErrorIs(t, err, domain.ErrInvalidCustomerID)
		assert.Zero(t, f.customers.calls)
		assert.Zero(t, f.orders.calls)
		assert.Zero(t, f.inventory.calls)
		f.audit.AssertNotCalled(t, "AppendLog", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestProcessCustomerOrders_EmptyOrderIsReady(t *testing.T) {
	f := newFixture(&domain.Customer{ID: 1, IsVIP: true, RegistrationDate: registeredYearsAgo(10)})
	f.addOrder(16)
	f.audit.On("AppendLog", mock.Anything, int64(16), mock.Anything, now).Return(nil)

	resp, err := f.service().ProcessCustomerOrders(context.Background(), &ProcessCustomerOrdersRequest{CustomerID: 1})
	require.NoError(t, err)
	require.Len(t, resp.Orders, 1)

	order := resp.Orders[0]
	assert.True(t, order.TotalAmount.IsZero())
	assert.True(t, order.DiscountAmount.IsZero())
	// VIP 和忠诚度折扣仍然适用，只是金额为 0
	assert.Equal(t, 15, order.DiscountPercent)
	assert.Equal(t, domain.StateReady, order.State)
}

func TestProcessCustomerOrders_CustomerNotFound(t *testing.T) {
	f := newFixture(&domain.Customer{ID: 1})
	_, err := f.service().ProcessCustomerOrders(context.Background(), &ProcessCustomerOrdersRequest{CustomerID: 2})

	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
	assert.Zero(t, f.orders.calls)
}

func TestProcessCustomerOrders_PendingLookupFails(t *testing.T) {
	f := newFixture(&domain.Customer{ID: 1})
	f.orders.pendingErr = &domain.StoreError{Op: "find pending orders", Err: errors.New("connection refused")}

	_, err := f.service().ProcessCustomerOrders(context.Background(), &ProcessCustomerOrdersRequest{CustomerID: 1})
	assert.ErrorIs(t, err, domain.ErrStore)
}

func TestProcessCustomerOrders_NoPendingOrders(t *testing.T) {
	f := newFixture(&domain.Customer{ID: 1})

	resp, err := f.service().ProcessCustomerOrders(context.Background(), &ProcessCustomerOrdersRequest{CustomerID: 1})
	require.NoError(t, err)
	assert.Empty(t, resp.Orders)
	assert.Empty(t, resp.Outcomes)
}

func TestProcessCustomerOrders_ItemLoadFailureIsolatesOrder(t *testing.T) {
	f := newFixture(&domain.Customer{ID: 1, RegistrationDate: registeredYearsAgo(0)})
	f.addOrder(20, item(100, 1, 10))
	f.addOrder(21, item(200, 1, 10))
	f.orders.itemErrs[20] = &domain.StoreError{Op: "find order items", Err: errors.New("timeout")}
	f.audit.On("AppendLog", mock.Anything, int64(21), mock.Anything, now).Return(nil).Once()

	resp, err := f.service(WithWorkers(2)).ProcessCustomerOrders(context.Background(), &ProcessCustomerOrdersRequest{CustomerID: 1})
	require.NoError(t, err)

	require.Len(t, resp.Outcomes, 2)
	assert.Equal(t, OutcomeFailed, resp.Outcomes[0].Outcome)
	assert.Contains(t, resp.Outcomes[0].Reason, "load order items")
	assert.Equal(t, OutcomeReady, resp.Outcomes[1].Outcome)

	require.Len(t, resp.Orders, 1)
	assert.Equal(t, int64(21), resp.Orders[0].ID)
	_, saved := f.orders.saved[20]
	assert.False(t, saved)
	f.audit.AssertExpectations(t)
}

func TestProcessCustomerOrders_SaveFailureSkipsInventory(t *testing.T) {
	f := newFixture(&domain.Customer{ID: 1, RegistrationDate: registeredYearsAgo(0)})
	f.addOrder(22, item(100, 1, 10))
	f.orders.saveErrs[22] = &domain.StoreError{Op: "save order", Err: errors.New("deadlock")}

	resp, err := f.service().ProcessCustomerOrders(context.Background(), &ProcessCustomerOrdersRequest{CustomerID: 1})
	require.NoError(t, err)

	assert.Empty(t, resp.Orders)
	assert.Equal(t, OutcomeFailed, resp.Outcomes[0].Outcome)
	assert.Zero(t, f.inventory.calls)
	f.audit.AssertNotCalled(t, "AppendLog", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessCustomerOrders_StockLookupFailureSkipsItem(t *testing.T) {
	f := newFixture(&domain.Customer{ID: 1, RegistrationDate: registeredYearsAgo(0)})
	f.inventory.lookupErr[200] = errors.New("redis: connection pool timeout")
	f.addOrder(23, item(100, 1, 10), item(200, 1, 10))
	f.audit.On("AppendLog", mock.Anything, int64(23), mock.Anything, now).Return(nil)

	resp, err := f.service(WithAtomicStock(false)).ProcessCustomerOrders(context.Background(), &ProcessCustomerOrdersRequest{CustomerID: 1})
	require.NoError(t, err)
	require.Len(t, resp.Orders, 1)

	assert.Equal(t, domain.StateReady, resp.Orders[0].State)
	require.Len(t, resp.Outcomes[0].Warnings, 1)
	assert.Contains(t, resp.Outcomes[0].Warnings[0], "product 200")
	assert.Equal(t, 49, f.inventory.stockOf(100))
	assert.Equal(t, 49, f.inventory.stockOf(200))
}

func TestProcessCustomerOrders_LostRaceCompensates(t *testing.T) {
	f := newFixture(&domain.Customer{ID: 1, RegistrationDate: registeredYearsAgo(0)})
	f.inventory.raceTaken[200] = true
	f.addOrder(24, item(100, 3, 10), item(200, 1, 10))
	f.audit.On("AppendLog", mock.Anything, int64(24), "Order on hold. Some items are not on stock.", now).Return(nil)

	resp, err := f.service().ProcessCustomerOrders(context.Background(), &ProcessCustomerOrdersRequest{CustomerID: 1})
	require.NoError(t, err)
	require.Len(t, resp.Orders, 1)

	assert.Equal(t, domain.StateOnHold, resp.Orders[0].State)
	assert.Equal(t, 50, f.inventory.stockOf(100), "first line must be restored")
	assert.NotEmpty(t, resp.Outcomes[0].Warnings)
}

func TestProcessCustomerOrders_FinalStateFailureRestoresStock(t *testing.T) {
	f := newFixture(&domain.Customer{ID: 1, RegistrationDate: registeredYearsAgo(0)})
	f.addOrder(25, item(100, 4, 10))
	f.orders.updateErrs[25] = &domain.StoreError{Op: "update order state", Err: errors.New("read-only")}

	resp, err := f.service().ProcessCustomerOrders(context.Background(), &ProcessCustomerOrdersRequest{CustomerID: 1})
	require.NoError(t, err)

	assert.Empty(t, resp.Orders)
	assert.Equal(t, OutcomeFailed, resp.Outcomes[0].Outcome)
	assert.Equal(t, 50, f.inventory.stockOf(100))
}

func TestProcessCustomerOrders_FinalStateFailureRestoresStockUnconditional(t *testing.T) {
	f := newFixture(&domain.Customer{ID: 1, RegistrationDate: registeredYearsAgo(0)})
	f.addOrder(27, item(100, 4, 10), item(200, 2, 10))
	f.orders.updateErrs[27] = &domain.StoreError{Op: "update order state", Err: errors.New("read-only")}

	resp, err := f.service(WithAtomicStock(false)).ProcessCustomerOrders(context.Background(), &ProcessCustomerOrdersRequest{CustomerID: 1})
	require.NoError(t, err)

	assert.Empty(t, resp.Orders)
	assert.Equal(t, OutcomeFailed, resp.Outcomes[0].Outcome)
	assert.Equal(t, 50, f.inventory.stockOf(100))
	assert.Equal(t, 50, f.inventory.stockOf(200))
}

func TestProcessCustomerOrders_AuditFailureIsWarning(t *testing.T) {
	f := newFixture(&domain.Customer{ID: 1, RegistrationDate: registeredYearsAgo(0)})
	f.addOrder(26, item(100, 1, 10))
	f.audit.On("AppendLog", mock.Anything, int64(26), mock.Anything, now).Return(errors.New("kafka unavailable"))

	resp, err := f.service().ProcessCustomerOrders(context.Background(), &ProcessCustomerOrdersRequest{CustomerID: 1})
	require.NoError(t, err)
	require.Len(t, resp.Orders, 1)

	assert.Equal(t, OutcomeReady, resp.Outcomes[0].Outcome)
	assert.Contains(t, resp.Outcomes[0].Warnings[0], "audit log")
}

func TestProcessCustomerOrders_SharedStockAcrossOrders(t *testing.T) {
	f := newFixture(&domain.Customer{ID: 1, RegistrationDate: registeredYearsAgo(0)})
	f.inventory.stock[100] = 5
	f.addOrder(30, item(100, 3, 10))
	f.addOrder(31, item(100, 3, 10))
	f.audit.On("AppendLog", mock.Anything, mock.Anything, mock.Anything, now).Return(nil)

	resp, err := f.service(WithWorkers(4)).ProcessCustomerOrders(context.Background(), &ProcessCustomerOrdersRequest{CustomerID: 1})
	require.NoError(t, err)
	require.Len(t, resp.Orders, 2)

	var ready, onHold int
	for _, o := range resp.Orders {
		switch o.State {
		case domain.StateReady:
			ready++
		case domain.StateOnHold:
			onHold++
		}
	}
	assert.Equal(t, 1, ready)
	assert.Equal(t, 1, onHold)
	assert.Equal(t, 2, f.inventory.stockOf(100))
	// 结果顺序与待处理订单一致
	assert.Equal(t, int64(30), resp.Outcomes[0].OrderID)
	assert.Equal(t, int64(31), resp.Outcomes[1].OrderID)
}

func TestProcessCustomerOrders_InputSnapshotsUntouched(t *testing.T) {
	f := newFixture(&domain.Customer{ID: 1, RegistrationDate: registeredYearsAgo(0)})
	f.addOrder(32, item(100, 1, 10))
	f.audit.On("AppendLog", mock.Anything, int64(32), mock.Anything, now).Return(nil)
	input := f.orders.pending[0]

	_, err := f.service().ProcessCustomerOrders(context.Background(), &ProcessCustomerOrdersRequest{CustomerID: 1})
	require.NoError(t, err)

	assert.Equal(t, domain.StatePending, input.State)
	assert.Empty(t, input.Items)
}

type recordingLocker struct {
	locked, unlocked []int64
	err              error
}

func (l *recordingLocker) Lock(_ context.Context, customerID int64) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.locked = append(l.locked, customerID)
	return func() { l.unlocked = append(l.unlocked, customerID) }, nil
}

func TestProcessCustomerOrders_LocksCustomer(t *testing.T) {
	f := newFixture(&domain.Customer{ID: 1})
	locker := &recordingLocker{}

	_, err := f.service(WithLocker(locker)).ProcessCustomerOrders(context.Background(), &ProcessCustomerOrdersRequest{CustomerID: 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, locker.locked)
	assert.Equal(t, []int64{1}, locker.unlocked)

	locker.err = errors.New("zk: session expired")
	_, err = f.service(WithLocker(locker)).ProcessCustomerOrders(context.Background(), &ProcessCustomerOrdersRequest{CustomerID: 1})
	assert.Error(t, err)
}

func TestProcessCustomerOrders_RecordsMetrics(t *testing.T) {
	f := newFixture(&domain.Customer{ID: 1, RegistrationDate: registeredYearsAgo(0)})
	f.inventory.stock[200] = 0
	f.addOrder(40, item(100, 1, 10))
	f.addOrder(41, item(200, 1, 10))
	f.audit.On("AppendLog", mock.Anything, mock.Anything, mock.Anything, now).Return(nil)

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	_, err := f.service(WithMetrics(m)).ProcessCustomerOrders(context.Background(), &ProcessCustomerOrdersRequest{CustomerID: 1})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.orders.WithLabelValues(string(OutcomeReady))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orders.WithLabelValues(string(OutcomeOnHold))))
}

func TestRequestProcessing(t *testing.T) {
	f := newFixture(&domain.Customer{ID: 1})
	producer := new(mockProducer)
	producer.On("Produce", mock.Anything, mock.MatchedBy(func(e *domain.CustomerOrdersProcessingRequested) bool {
		return e.CustomerID == 7 && e.AsOf.Equal(now) && e.EventID != ""
	})).Return(nil).Once()

	resp, err := f.service(WithProducer(producer)).RequestProcessing(context.Background(), 7, now)
	require.NoError(t, err)
	assert.Equal(t, int64(7), resp.CustomerID)
	assert.NotEmpty(t, resp.EventID)
	producer.AssertExpectations(t)
}

func TestRequestProcessing_Errors(t *testing.T) {
	f := newFixture(&domain.Customer{ID: 1})

	_, err := f.service().RequestProcessing(context.Background(), 7, now)
	assert.ErrorIs(t, err, ErrAsyncProcessingDisabled)

	producer := new(mockProducer)
	_, err = f.service(WithProducer(producer)).RequestProcessing(context.Background(), 0, now)
	assert.ErrorIs(t, err, domain.ErrInvalidCustomerID)

	producer.On("Produce", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	_, err = f.service(WithProducer(producer)).RequestProcessing(context.Background(), 7, now)
	assert.Error(t, err)
}
