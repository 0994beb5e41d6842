package repository_test

import (
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"go.uber.org/goleak"
	"golang.org/x/text/currency"

	"github.com/nikolayk812/ordercore/internal/domain"
	"github.com/nikolayk812/ordercore/internal/port"
	"github.com/nikolayk812/ordercore/internal/repository"
)

type orderRepositorySuite struct {
	suite.Suite

	pool      *pgxpool.Pool
	repo      port.OrderRepository
	products  port.ProductRepository
	container testcontainers.Container
}

// entry point to run the tests in the suite
func TestOrderRepositorySuite(t *testing.T) {
	// Verifies no leaks after all tests in the suite run.
	defer goleak.VerifyNone(t)

	suite.Run(t, new(orderRepositorySuite))
}

// before all tests in the suite
func (suite *orderRepositorySuite) SetupSuite() {
	ctx := suite.T().Context()

	var (
		connStr string
		err     error
	)

	suite.container, connStr, err = startPostgres(ctx)
	suite.NoError(err)

	suite.pool, err = repository.NewPool(ctx, connStr)
	suite.NoError(err)

	suite.repo = repository.NewOrder(suite.pool)
	suite.products = repository.NewProduct(suite.pool)
}

// after all tests in the suite
func (suite *orderRepositorySuite) TearDownSuite() {
	ctx := suite.T().Context()

	if suite.pool != nil {
		suite.pool.Close()
	}
	if suite.container != nil {
		suite.NoError(suite.container.Terminate(ctx))
	}
}

func (suite *orderRepositorySuite) TestInsertGetOrder() {
	t := suite.T()
	ctx := t.Context()

	order := suite.fakeOrder(2)

	orderID, err := suite.repo.InsertOrder(ctx, order)
	require.NoError(t, err)

	actual, err := suite.repo.GetOrder(ctx, orderID)
	require.NoError(t, err)

	order.ID = orderID
	assertOrder(t, order, actual)
}

func (suite *orderRepositorySuite) TestInsertOrderNoItems() {
	t := suite.T()

	order := suite.fakeOrder(1)
	order.Items = nil

	_, err := suite.repo.InsertOrder(t.Context(), order)
	assert.Error(t, err)
}

func (suite *orderRepositorySuite) TestGetOrderNotFound() {
	t := suite.T()

	_, err := suite.repo.GetOrder(t.Context(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func (suite *orderRepositorySuite) TestUpdateStatus() {
	t := suite.T()
	ctx := t.Context()

	orderID, err := suite.repo.InsertOrder(ctx, suite.fakeOrder(1))
	require.NoError(t, err)

	now := time.Now().UTC()
	err = suite.repo.UpdateStatus(ctx, orderID, domain.OrderStatusPending, domain.OrderStatusConfirmed, now)
	require.NoError(t, err)

	actual, err := suite.repo.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, actual.Status)
	require.NotNil(t, actual.ConfirmedAt)
	assert.WithinDuration(t, now, *actual.ConfirmedAt, time.Second)
}

func (suite *orderRepositorySuite) TestUpdateStatusStaleFrom() {
	t := suite.T()
	ctx := t.Context()

	orderID, err := suite.repo.InsertOrder(ctx, suite.fakeOrder(1))
	require.NoError(t, err)

	// the order is pending, a transition conditioned on confirmed must lose
	err = suite.repo.UpdateStatus(ctx, orderID, domain.OrderStatusConfirmed, domain.OrderStatusProcessing, time.Now().UTC())
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
}

func (suite *orderRepositorySuite) TestUpdateStatusNotFound() {
	t := suite.T()

	err := suite.repo.UpdateStatus(t.Context(), uuid.New(), domain.OrderStatusPending, domain.OrderStatusConfirmed, time.Now().UTC())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// Two workers try the same pending->confirmed edge; the conditional update
// lets exactly one through.
func (suite *orderRepositorySuite) TestUpdateStatusConcurrent() {
	t := suite.T()
	ctx := t.Context()

	orderID, err := suite.repo.InsertOrder(ctx, suite.fakeOrder(1))
	require.NoError(t, err)

	const workers = 2

	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = suite.repo.UpdateStatus(ctx, orderID,
				domain.OrderStatusPending, domain.OrderStatusConfirmed, time.Now().UTC())
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		require.ErrorIs(t, err, domain.ErrConcurrencyConflict)
		lost++
	}

	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)
}

func (suite *orderRepositorySuite) TestStatusHistory() {
	t := suite.T()
	ctx := t.Context()

	orderID, err := suite.repo.InsertOrder(ctx, suite.fakeOrder(1))
	require.NoError(t, err)

	entries := []domain.OrderStatusHistory{
		{OrderID: orderID, Status: domain.OrderStatusPending, Note: "order created", Actor: "user-1"},
		{OrderID: orderID, Status: domain.OrderStatusConfirmed, Note: "payment received", Actor: "system"},
	}
	for _, entry := range entries {
		require.NoError(t, suite.repo.InsertStatusHistory(ctx, entry))
	}

	actual, err := suite.repo.GetStatusHistory(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, actual, 2)

	for i, entry := range entries {
		assert.Equal(t, entry.Status, actual[i].Status)
		assert.Equal(t, entry.Note, actual[i].Note)
		assert.Equal(t, entry.Actor, actual[i].Actor)
	}
}

func (suite *orderRepositorySuite) TestReplaceItems() {
	t := suite.T()
	ctx := t.Context()

	order := suite.fakeOrder(2)

	orderID, err := suite.repo.InsertOrder(ctx, order)
	require.NoError(t, err)

	require.NoError(t, suite.repo.DeleteItems(ctx, orderID))

	newItems := []domain.OrderItem{suite.fakeOrderItem(3)}
	require.NoError(t, suite.repo.InsertItems(ctx, orderID, newItems))

	totals, err := domain.ComputeOrderTotals(newItems, decimal.Zero)
	require.NoError(t, err)
	require.NoError(t, suite.repo.UpdateTotals(ctx, orderID, totals))

	actual, err := suite.repo.GetOrder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, actual.Items, 1)
	assert.Equal(t, newItems[0].ProductID, actual.Items[0].ProductID)
	assert.True(t, totals.TotalAmount.Amount.Equal(actual.TotalAmount.Amount))
}

func (suite *orderRepositorySuite) TestDeleteOrder() {
	t := suite.T()
	ctx := t.Context()

	orderID, err := suite.repo.InsertOrder(ctx, suite.fakeOrder(1))
	require.NoError(t, err)

	require.NoError(t, suite.repo.InsertStatusHistory(ctx, domain.OrderStatusHistory{
		OrderID: orderID,
		Status:  domain.OrderStatusPending,
	}))

	require.NoError(t, suite.repo.DeleteOrder(ctx, orderID))

	_, err = suite.repo.GetOrder(ctx, orderID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = suite.repo.DeleteOrder(ctx, orderID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// fakeOrder persists the products its items refer to, so foreign keys hold.
func (suite *orderRepositorySuite) fakeOrder(itemCount int) domain.Order {
	items := make([]domain.OrderItem, 0, itemCount)
	for i := 0; i < itemCount; i++ {
		items = append(items, suite.fakeOrderItem(int32(i+1)))
	}

	totals, err := domain.ComputeOrderTotals(items, decimal.Zero)
	suite.NoError(err)

	return domain.Order{
		UserID:          gofakeit.UUID(),
		Status:          domain.OrderStatusPending,
		ShippingAddress: gofakeit.Address().Address,
		Subtotal:        totals.Subtotal,
		ShippingCost:    totals.ShippingCost,
		TaxAmount:       totals.TaxAmount,
		DiscountAmount:  totals.DiscountAmount,
		TotalAmount:     totals.TotalAmount,
		Items:           items,
	}
}

func (suite *orderRepositorySuite) fakeOrderItem(qty int32) domain.OrderItem {
	ctx := suite.T().Context()

	product := fakeProduct(100)

	productID, err := suite.products.InsertProduct(ctx, product)
	suite.NoError(err)

	return domain.OrderItem{
		ProductID:   productID,
		Quantity:    qty,
		UnitPrice:   product.Price,
		ProductName: product.Name,
		ProductSKU:  product.SKU,
	}
}

func assertOrder(t *testing.T, expected, actual domain.Order) {
	t.Helper()

	comparer := cmp.Comparer(func(x, y currency.Unit) bool {
		return x.String() == y.String()
	})

	decimalComparer := cmp.Comparer(func(x, y decimal.Decimal) bool {
		return x.Equal(y)
	})

	opts := cmp.Options{
		cmpopts.IgnoreFields(domain.Order{}, "CreatedAt", "UpdatedAt"),
		cmpopts.IgnoreFields(domain.OrderItem{}, "CreatedAt"),
		cmpopts.EquateEmpty(),
	}

	diff := cmp.Diff(expected, actual, comparer, decimalComparer, opts)
	assert.Empty(t, diff)
}
