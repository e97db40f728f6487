package wait

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type stubReceipts struct {
	misses  int
	receipt *types.Receipt
	err     error
}

func (s *stubReceipts) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if s.misses > 0 {
		s.misses--
		return nil, ethereum.NotFound
	}
	return s.receipt, s.err
}

func TestForReceipt(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("found after misses", func(t *testing.T) {
		client := &stubReceipts{misses: 2, receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, GasUsed: 21000}}
		r, err := ForReceiptOK(ctx, client, common.Hash{1})
		require.NoError(t, err)
		require.Equal(t, uint64(21000), r.GasUsed)
	})

	t.Run("failed status", func(t *testing.T) {
		client := &stubReceipts{receipt: &types.Receipt{Status: types.ReceiptStatusFailed}}
		r, err := ForReceiptOK(ctx, client, common.Hash{2})
		require.ErrorIs(t, err, ErrReceiptStatus)
		require.NotNil(t, r)

		r, err = ForReceiptMaybe(ctx, client, common.Hash{2}, types.ReceiptStatusSuccessful, true)
		require.NoError(t, err)
		require.Equal(t, types.ReceiptStatusFailed, r.Status)
	})

	t.Run("rpc error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := ForReceiptOK(ctx, &stubReceipts{err: boom}, common.Hash{3})
		require.ErrorIs(t, err, boom)
	})
}

func TestForTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := For(ctx, 10*time.Millisecond, func() (bool, error) { return false, nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
