package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrReceiptStatus is returned when a receipt was found with an unexpected status.
var ErrReceiptStatus = errors.New("unexpected receipt status")

type ReceiptClient interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// For calls cb every rate until it returns true, an error, or ctx is done.
func For(ctx context.Context, rate time.Duration, cb func() (bool, error)) error {
	tick := time.NewTicker(rate)
	defer tick.Stop()

	for {
		done, err := cb()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}

// ForReceiptOK waits for a successful receipt.
func ForReceiptOK(ctx context.Context, client ReceiptClient, hash common.Hash) (*types.Receipt, error) {
	return ForReceiptMaybe(ctx, client, hash, types.ReceiptStatusSuccessful, false)
}

// ForReceiptMaybe polls for the receipt of hash. Unless ignoreStatus is set, a receipt with a
// status other than the given one is returned together with an ErrReceiptStatus error.
func ForReceiptMaybe(ctx context.Context, client ReceiptClient, hash common.Hash, status uint64, ignoreStatus bool) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := For(ctx, 100*time.Millisecond, func() (bool, error) {
		r, err := client.TransactionReceipt(ctx, hash)
		if errors.Is(err, ethereum.NotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to get receipt: %w", err)
		}
		receipt = r
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("waiting for receipt of %s: %w", hash, err)
	}
	if !ignoreStatus && receipt.Status != status {
		return receipt, fmt.Errorf("%w: tx %s has status %d, expected %d", ErrReceiptStatus, hash, receipt.Status, status)
	}
	return receipt, nil
}
