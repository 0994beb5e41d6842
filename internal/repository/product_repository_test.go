package repository_test

import (
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"go.uber.org/goleak"

	"github.com/nikolayk812/ordercore/internal/domain"
	"github.com/nikolayk812/ordercore/internal/port"
	"github.com/nikolayk812/ordercore/internal/repository"
)

type productRepositorySuite struct {
	suite.Suite

	pool      *pgxpool.Pool
	repo      port.ProductRepository
	container testcontainers.Container
}

// entry point to run the tests in the suite
func TestProductRepositorySuite(t *testing.T) {
	// Verifies no leaks after all tests in the suite run.
	defer goleak.VerifyNone(t)

	suite.Run(t, new(productRepositorySuite))
}

// before all tests in the suite
func (suite *productRepositorySuite) SetupSuite() {
	ctx := suite.T().Context()

	var (
		connStr string
		err     error
	)

	suite.container, connStr, err = startPostgres(ctx)
	suite.NoError(err)

	suite.pool, err = repository.NewPool(ctx, connStr)
	suite.NoError(err)

	suite.repo = repository.NewProduct(suite.pool)
}

// after all tests in the suite
func (suite *productRepositorySuite) TearDownSuite() {
	ctx := suite.T().Context()

	if suite.pool != nil {
		suite.pool.Close()
	}
	if suite.container != nil {
		suite.NoError(suite.container.Terminate(ctx))
	}
}

func (suite *productRepositorySuite) TestInsertGetProduct() {
	t := suite.T()
	ctx := t.Context()

	product := fakeProduct(10)

	productID, err := suite.repo.InsertProduct(ctx, product)
	require.NoError(t, err)

	actual, err := suite.repo.GetProduct(ctx, productID)
	require.NoError(t, err)

	assert.Equal(t, product.Name, actual.Name)
	assert.Equal(t, product.SKU, actual.SKU)
	assert.Equal(t, product.StockQuantity, actual.StockQuantity)
	assert.True(t, product.Price.Amount.Equal(actual.Price.Amount))
	assert.Equal(t, product.Price.Currency.String(), actual.Price.Currency.String())
}

func (suite *productRepositorySuite) TestGetProductNotFound() {
	t := suite.T()

	_, err := suite.repo.GetProduct(t.Context(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func (suite *productRepositorySuite) TestReserve() {
	inactive := fakeProduct(10)
	inactive.IsActive = false

	tests := []struct {
		name         string
		product      domain.Product
		qty          int32
		wantStockErr bool
		wantSentinel error
	}{
		{
			name:    "reserve within stock: ok",
			product: fakeProduct(10),
			qty:     4,
		},
		{
			name:    "reserve exactly all stock: ok",
			product: fakeProduct(5),
			qty:     5,
		},
		{
			name:         "reserve more than stock: insufficient",
			product:      fakeProduct(3),
			qty:          4,
			wantStockErr: true,
		},
		{
			name:         "reserve inactive product: rejected",
			product:      inactive,
			qty:          1,
			wantSentinel: domain.ErrProductInactive,
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			t := suite.T()
			ctx := t.Context()

			productID, err := suite.repo.InsertProduct(ctx, tt.product)
			require.NoError(t, err)

			err = suite.repo.Reserve(ctx, productID, tt.qty)

			switch {
			case tt.wantStockErr:
				var stockErr domain.InsufficientStockError
				require.ErrorAs(t, err, &stockErr)
				assert.Equal(t, tt.qty, stockErr.Requested)
				assert.Equal(t, tt.product.StockQuantity, stockErr.Available)

			case tt.wantSentinel != nil:
				assert.ErrorIs(t, err, tt.wantSentinel)

			default:
				require.NoError(t, err)

				actual, err := suite.repo.GetProduct(ctx, productID)
				require.NoError(t, err)
				assert.Equal(t, tt.product.StockQuantity-tt.qty, actual.StockQuantity)
			}
		})
	}
}

func (suite *productRepositorySuite) TestReserveNotFound() {
	t := suite.T()

	err := suite.repo.Reserve(t.Context(), uuid.New(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func (suite *productRepositorySuite) TestRelease() {
	t := suite.T()
	ctx := t.Context()

	productID, err := suite.repo.InsertProduct(ctx, fakeProduct(10))
	require.NoError(t, err)

	require.NoError(t, suite.repo.Reserve(ctx, productID, 7))
	require.NoError(t, suite.repo.Release(ctx, productID, 7))

	actual, err := suite.repo.GetProduct(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, int32(10), actual.StockQuantity)
}

// Two buyers race for the last units: only one reservation may win and
// stock must never go negative.
func (suite *productRepositorySuite) TestReserveConcurrent() {
	t := suite.T()
	ctx := t.Context()

	productID, err := suite.repo.InsertProduct(ctx, fakeProduct(10))
	require.NoError(t, err)

	const buyers = 2

	errs := make([]error, buyers)

	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = suite.repo.Reserve(ctx, productID, 6)
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		var stockErr domain.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		lost++
	}

	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)

	actual, err := suite.repo.GetProduct(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, int32(4), actual.StockQuantity)
}

func fakeProduct(stock int32) domain.Product {
	return domain.Product{
		Name: gofakeit.ProductName(),
		SKU:  gofakeit.UUID(),
		Price: domain.Money{
			Amount:   decimal.NewFromFloat(gofakeit.Price(1, 90)).Round(2),
			Currency: domain.DefaultCurrency,
		},
		StockQuantity: stock,
		IsActive:      true,
	}
}
