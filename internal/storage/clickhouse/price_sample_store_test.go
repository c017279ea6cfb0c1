package clickhouse

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uniswap-lp-lab/internal/domain"
	"uniswap-lp-lab/internal/storage"
)

func TestPriceSampleStore_InsertBulkAndGetAll(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceSampleStore(conn)

	require.NoError(t, store.InsertBulk(ctx, []domain.PriceSample{
		{Timestamp: 2000, Price: big.NewInt(2_500_000_000)},
		{Timestamp: 1000, Price: big.NewInt(3_000_000_000)},
	}))

	samples, err := store.GetAll(ctx)
	require.NoError(t, err)

	require.Len(t, samples, 2)
	assert.Equal(t, int64(1000), samples[0].Timestamp)
	assert.Zero(t, samples[0].Price.Cmp(big.NewInt(3_000_000_000)))
	assert.Equal(t, int64(2000), samples[1].Timestamp)
}

func TestPriceSampleStore_GetByTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceSampleStore(conn)

	require.NoError(t, store.InsertBulk(ctx, []domain.PriceSample{
		{Timestamp: 1000, Price: big.NewInt(1)},
		{Timestamp: 2000, Price: big.NewInt(2)},
		{Timestamp: 3000, Price: big.NewInt(3)},
	}))

	samples, err := store.GetByTimeRange(ctx, 1000, 2000)
	require.NoError(t, err)

	require.Len(t, samples, 2)
	assert.Equal(t, int64(1000), samples[0].Timestamp)
	assert.Equal(t, int64(2000), samples[1].Timestamp)
}

func TestPriceSampleStore_DuplicateTimestamp(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceSampleStore(conn)

	require.NoError(t, store.InsertBulk(ctx, []domain.PriceSample{
		{Timestamp: 1000, Price: big.NewInt(1)},
	}))

	// Against existing rows
	err := store.InsertBulk(ctx, []domain.PriceSample{
		{Timestamp: 1000, Price: big.NewInt(2)},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Within one batch
	err = store.InsertBulk(ctx, []domain.PriceSample{
		{Timestamp: 2000, Price: big.NewInt(2)},
		{Timestamp: 2000, Price: big.NewInt(3)},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestPriceSampleStore_LargePriceRoundTrip(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceSampleStore(conn)

	// A 1e18-scaled price far beyond uint64 range.
	huge, ok := new(big.Int).SetString("3000000000000000000000000000", 10)
	require.True(t, ok)

	require.NoError(t, store.InsertBulk(ctx, []domain.PriceSample{
		{Timestamp: 1000, Price: huge},
	}))

	samples, err := store.GetAll(ctx)
	require.NoError(t, err)

	require.Len(t, samples, 1)
	assert.Zero(t, huge.Cmp(samples[0].Price))
}

func TestPriceSampleStore_NilPrice(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceSampleStore(conn)

	err := store.InsertBulk(ctx, []domain.PriceSample{{Timestamp: 1000}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
