package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youssefhesham2000/Catalog-Service/internal/domain"
	"github.com/youssefhesham2000/Catalog-Service/pkg/breaker"
	"github.com/youssefhesham2000/Catalog-Service/pkg/database"
	"github.com/youssefhesham2000/Catalog-Service/pkg/logger"
)

var variantColumns = []string{"variant_id", "product_id", "attributes", "image_url"}

func newRepo(t *testing.T) (*VariantOptionRepository, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	log := logger.New("repo-test", "error")
	repo := NewVariantOptionRepository(mock, 5*time.Second, breaker.DefaultConfig("catalog-variants"), log)
	return repo, mock
}

func strPtr(s string) *string { return &s }

func TestListByProductIDs_GroupsByProduct(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("SELECT variant_id, product_id, attributes, image_url").
		WithArgs([]string{"prod-1", "prod-2"}).
		WillReturnRows(pgxmock.NewRows(variantColumns).
			AddRow("var-1", "prod-1", []byte(`{"color":"red","size":"S"}`), strPtr("http://img/1.jpg")).
			AddRow("var-2", "prod-1", []byte(`{"color":"red","size":"M"}`), strPtr("http://img/2.jpg")).
			AddRow("var-3", "prod-2", []byte(`{"color":"blue"}`), (*string)(nil)),
		)

	options, err := repo.ListByProductIDs(context.Background(), []string{"prod-1", "prod-2"})
	require.NoError(t, err)

	require.Len(t, options, 2)
	require.Len(t, options["prod-1"], 2)
	assert.Equal(t, domain.VariantOption{
		VariantID:  "var-1",
		Attributes: map[string]string{"color": "red", "size": "S"},
		ImageURL:   "http://img/1.jpg",
	}, options["prod-1"][0])

	require.Len(t, options["prod-2"], 1)
	assert.Empty(t, options["prod-2"][0].ImageURL)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByProductIDs_EmptyInputSkipsPool(t *testing.T) {
	repo, mock := newRepo(t)

	options, err := repo.ListByProductIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, options)

	// No query expectation was registered; the pool must not have been hit.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByProductIDs_MissingProductsAbsentFromMap(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("SELECT variant_id, product_id").
		WithArgs([]string{"prod-1", "prod-gone"}).
		WillReturnRows(pgxmock.NewRows(variantColumns).
			AddRow("var-1", "prod-1", []byte(`{}`), (*string)(nil)),
		)

	options, err := repo.ListByProductIDs(context.Background(), []string{"prod-1", "prod-gone"})
	require.NoError(t, err)

	assert.Contains(t, options, "prod-1")
	assert.NotContains(t, options, "prod-gone")
}

func TestListByProductIDs_QueryError(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("SELECT variant_id, product_id").
		WithArgs([]string{"prod-1"}).
		WillReturnError(errors.New("connection refused"))

	_, err := repo.ListByProductIDs(context.Background(), []string{"prod-1"})
	assert.Error(t, err)
}

func TestListByProductIDs_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	cfg := breaker.Config{
		Name:         "catalog-variants-test",
		MaxRequests:  1,
		Interval:     10 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  3,
	}
	repo := NewVariantOptionRepository(mock, time.Second, cfg, logger.New("repo-test", "error"))

	for i := 0; i < 3; i++ {
		mock.ExpectQuery("SELECT variant_id").
			WithArgs([]string{"p"}).
			WillReturnError(errors.New("connection refused"))
		_, err := repo.ListByProductIDs(context.Background(), []string{"p"})
		require.Error(t, err)
	}

	// Volume threshold reached with a 100% failure rate: the breaker is now
	// open and rejects without touching the pool.
	_, err = repo.ListByProductIDs(context.Background(), []string{"p"})
	require.Error(t, err)
	assert.True(t, breaker.IsOpen(err))
}
