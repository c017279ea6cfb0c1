package postgres

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uniswap-lp-lab/internal/domain"
	"uniswap-lp-lab/internal/storage"
)

func testLog(txHash common.Hash, logIndex int, timestamp int64) *domain.EventLog {
	return &domain.EventLog{
		Address: common.HexToAddress("0xC36442b4a4522E871399CD717aBDD847Ab11FE88"),
		Topics: []common.Hash{
			common.HexToHash("0x3067048beee31b25b2f1681f88dac838c8bba36af25bfb2b7cf7473a5847e35f"),
			common.HexToHash("0x00000000000000000000000000000000000000000000000000000000000003e9"),
		},
		Data:      []byte{0x01, 0x02, 0x03},
		Timestamp: timestamp,
		TxHash:    txHash,
		LogIndex:  logIndex,
	}
}

func TestEventLogStore_InsertAndGetByTxHash(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEventLogStore(pool)

	txHash := common.HexToHash("0xaa00000000000000000000000000000000000000000000000000000000000001")
	require.NoError(t, store.Insert(ctx, testLog(txHash, 7, 1000)))
	require.NoError(t, store.Insert(ctx, testLog(txHash, 2, 1000)))

	logs, err := store.GetByTxHash(ctx, txHash)
	require.NoError(t, err)

	require.Len(t, logs, 2)
	assert.Equal(t, 2, logs[0].LogIndex)
	assert.Equal(t, 7, logs[1].LogIndex)
	assert.Equal(t, txHash, logs[0].TxHash)
	assert.Len(t, logs[0].Topics, 2)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, logs[0].Data)
	assert.Equal(t, int64(1000), logs[0].Timestamp)
}

func TestEventLogStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEventLogStore(pool)

	l := testLog(common.Hash{0xa1}, 0, 1000)
	require.NoError(t, store.Insert(ctx, l))

	err := store.Insert(ctx, l)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestEventLogStore_InsertBulkAtomic(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEventLogStore(pool)

	require.NoError(t, store.Insert(ctx, testLog(common.Hash{0xa1}, 0, 1000)))

	// Batch with a duplicate must not store anything
	err := store.InsertBulk(ctx, []*domain.EventLog{
		testLog(common.Hash{0xb1}, 0, 2000),
		testLog(common.Hash{0xa1}, 0, 1000),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	logs, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestEventLogStore_GetByTimeRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEventLogStore(pool)

	require.NoError(t, store.InsertBulk(ctx, []*domain.EventLog{
		testLog(common.Hash{0xa1}, 0, 1000),
		testLog(common.Hash{0xb1}, 0, 2000),
		testLog(common.Hash{0xc1}, 0, 3000),
	}))

	logs, err := store.GetByTimeRange(ctx, 1000, 2000)
	require.NoError(t, err)

	require.Len(t, logs, 2)
	assert.Equal(t, int64(1000), logs[0].Timestamp)
	assert.Equal(t, int64(2000), logs[1].Timestamp)
}

func TestEventLogStore_GetAllOrdering(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEventLogStore(pool)

	require.NoError(t, store.InsertBulk(ctx, []*domain.EventLog{
		testLog(common.Hash{0xb1}, 1, 2000),
		testLog(common.Hash{0xb1}, 0, 2000),
		testLog(common.Hash{0xa1}, 0, 1000),
	}))

	logs, err := store.GetAll(ctx)
	require.NoError(t, err)

	require.Len(t, logs, 3)
	assert.Equal(t, common.Hash{0xa1}, logs[0].TxHash)
	assert.Equal(t, 0, logs[1].LogIndex)
	assert.Equal(t, 1, logs[2].LogIndex)
}

func TestEventLogStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEventLogStore(pool)

	err := store.Insert(ctx, &domain.EventLog{TxHash: common.Hash{0xa1}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
