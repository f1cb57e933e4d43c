package infrastructure

import (
	"context"
	"errors"
	"fulfillment/internal/service/order/domain"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestGormCustomerRepository_FindByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormCustomerRepository(db)
	registered := time.Date(2014, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT \\* FROM `customers` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "is_vip", "registration_date"}).
			AddRow(1, "Joe Doe", "joe.doe@example.com", true, registered))

	customer, err := repo.FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Joe Doe", customer.Name)
	assert.True(t, customer.IsVIP)
	assert.Equal(t, 2014, customer.RegistrationYear())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormCustomerRepository_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT \\* FROM `customers`").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := NewGormCustomerRepository(db).FindByID(context.Background(), 9)
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
}

func TestGormCustomerRepository_StoreError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT \\* FROM `customers`").WillReturnError(errors.New("connection refused"))

	_, err := NewGormCustomerRepository(db).FindByID(context.Background(), 9)
	assert.ErrorIs(t, err, domain.ErrStore)
	assert.NotErrorIs(t, err, domain.ErrCustomerNotFound)
}

func TestGormOrderRepository_FindPending(t *testing.T) {
	db, mock := newMockDB(t)
	orderDate := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT \\* FROM `orders` WHERE customer_id = \\? AND status = \\? ORDER BY id").
		WithArgs(int64(1), "Pending").
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "order_date", "total_amount", "discount_percent", "discount_amount", "final_amount", "status"}).
			AddRow(10, 1, orderDate, "150.00", nil, nil, nil, "Pending").
			AddRow(11, 1, orderDate, "99.50", 5, "4.98", "94.52", "Pending"))

	orders, err := NewGormOrderRepository(db).FindPending(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, int64(10), orders[0].ID)
	assert.Equal(t, domain.StatePending, orders[0].State)
	assert.Zero(t, orders[0].DiscountPercent)
	assert.True(t, orders[0].DiscountAmount.IsZero())
	assert.True(t, decimal.RequireFromString("150").Equal(orders[0].TotalAmount))
	assert.Equal(t, 5, orders[1].DiscountPercent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOrderRepository_FindPendingEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT \\* FROM `orders`").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	orders, err := NewGormOrderRepository(db).FindPending(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestGormOrderRepository_FindItems(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT \\* FROM `order_items` WHERE order_id = \\? ORDER BY id").
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "quantity", "unit_price"}).
			AddRow(100, 10, 1, 5, "3000.00"))

	items, err := NewGormOrderRepository(db).FindItems(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
	assert.True(t, decimal.NewFromInt(3000).Equal(items[0].UnitPrice))
	assert.Nil(t, items[0].Product)
}

func TestGormOrderRepository_Save(t *testing.T) {
	db, mock := newMockDB(t)
	order := (&domain.Order{ID: 10}).WithPricing(domain.Pricing{
		TotalAmount:     decimal.NewFromInt(15000),
		DiscountPercent: 25,
		DiscountAmount:  decimal.NewFromInt(3750),
		FinalAmount:     decimal.NewFromInt(11250),
	})

	// GORM 按列名排序生成 SET 子句
	mock.ExpectExec("UPDATE `orders` SET `discount_amount`=\\?,`discount_percent`=\\?,`final_amount`=\\?,`status`=\\?,`total_amount`=\\? WHERE id = \\?").
		WithArgs(sqlmock.AnyArg(), 25, sqlmock.AnyArg(), "Processed", sqlmock.AnyArg(), int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewGormOrderRepository(db).Save(context.Background(), order))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOrderRepository_SaveKeepsFourDecimalPlaces(t *testing.T) {
	db, mock := newMockDB(t)
	order := (&domain.Order{ID: 11}).WithPricing(domain.Pricing{
		TotalAmount:     decimal.RequireFromString("0.25"),
		DiscountPercent: 10,
		DiscountAmount:  decimal.RequireFromString("0.025"),
		FinalAmount:     decimal.RequireFromString("0.225"),
	})

	mock.ExpectExec("UPDATE `orders` SET").
		WithArgs("0.025", 10, "0.225", "Processed", "0.25", int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewGormOrderRepository(db).Save(context.Background(), order))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderModel_PricingColumnsHoldFourDecimals(t *testing.T) {
	s, err := schema.Parse(&OrderModel{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	for _, column := range []string{"discount_amount", "final_amount"} {
		field := s.LookUpField(column)
		require.NotNil(t, field, column)
		assert.Equal(t, "decimal(14,4)", field.TagSettings["TYPE"], column)
	}
}

func TestGormOrderRepository_SaveNoRows(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("UPDATE `orders`").WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewGormOrderRepository(db).Save(context.Background(), &domain.Order{ID: 404})
	assert.ErrorIs(t, err, domain.ErrOrderNotUpdated)
}

func TestGormOrderRepository_UpdateState(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("UPDATE `orders` SET `status`=\\? WHERE id = \\?").
		WithArgs("OnHold", int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewGormOrderRepository(db).UpdateState(context.Background(), 10, domain.StateOnHold))

	mock.ExpectExec("UPDATE `orders`").WillReturnError(errors.New("lock wait timeout"))
	err := NewGormOrderRepository(db).UpdateState(context.Background(), 10, domain.StateReady)
	assert.ErrorIs(t, err, domain.ErrStore)
}

func TestGormProductRepository_FindByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormProductRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `products` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "price"}).AddRow(1, "Laptop", "Electronics", "3000.00"))
	product, err := repo.FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Laptop", product.Name)

	mock.ExpectQuery("SELECT \\* FROM `products`").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = repo.FindByID(context.Background(), 2)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}
