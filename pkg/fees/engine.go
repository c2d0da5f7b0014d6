// Package fees implements the protocol fee boundary. Fee computation is
// basis-point based; collection moves the fee from the sender into the
// configured collector account through the custody vault.
package fees

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/chainsafe/settlement-switch/pkg/custody"
)

// Engine computes and collects protocol fees. Both methods are synchronous
// and side-effecting exactly once per call.
type Engine interface {
	CalculateFee(amount *big.Int) *big.Int
	CollectFee(ctx context.Context, from common.Address, token, chain string, fee *big.Int) error
}

// BpsEngine charges a flat basis-point rate on the transfer amount.
type BpsEngine struct {
	rate      decimal.Decimal
	collector common.Address
	vault     custody.Vault
}

// NewBpsEngine creates a fee engine charging feeBps hundredths of a percent.
func NewBpsEngine(feeBps int64, collector common.Address, vault custody.Vault) *BpsEngine {
	return &BpsEngine{
		rate:      decimal.New(feeBps, -4),
		collector: collector,
		vault:     vault,
	}
}

// CalculateFee returns the fee owed on amount, truncated toward zero.
func (e *BpsEngine) CalculateFee(amount *big.Int) *big.Int {
	fee := decimal.NewFromBigInt(amount, 0).Mul(e.rate).Truncate(0)
	return fee.BigInt()
}

// CollectFee debits the fee from the payer and credits the collector. The
// whole move fails or succeeds atomically via the vault.
func (e *BpsEngine) CollectFee(ctx context.Context, from common.Address, token, chain string, fee *big.Int) error {
	if fee.Sign() == 0 {
		return nil
	}
	if err := e.vault.TransferFrom(ctx, from, token, chain, fee); err != nil {
		return fmt.Errorf("collect fee: %w", err)
	}
	if err := e.vault.Release(ctx, e.collector, token, chain, fee); err != nil {
		return fmt.Errorf("credit collector: %w", err)
	}
	return nil
}

var _ Engine = (*BpsEngine)(nil)
