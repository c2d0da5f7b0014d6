// Package custody implements the fund custody boundary of the settlement
// switch: an atomic move-semantics token primitive that either debits the
// sender in full or fails without effect.
package custody

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var ErrInsufficientFunds = errors.New("insufficient funds")

// Vault is the custody primitive consumed by the settlement switch. Both
// operations are all-or-nothing; partial application is never observable.
type Vault interface {
	// TransferFrom debits the holder and credits switch custody.
	TransferFrom(ctx context.Context, from common.Address, token, chain string, amount *big.Int) error
	// Release debits switch custody and credits the holder. Used for
	// administrative refunds.
	Release(ctx context.Context, to common.Address, token, chain string, amount *big.Int) error
	// BalanceOf returns the holder's balance for a token on a chain.
	BalanceOf(holder common.Address, token, chain string) *big.Int
	// CustodyBalance returns the amount currently held in switch custody.
	CustodyBalance(token, chain string) *big.Int
}

type assetKey struct {
	token string
	chain string
}

type holderKey struct {
	holder common.Address
	asset  assetKey
}

// MemoryVault is a mutex-guarded in-memory Vault.
type MemoryVault struct {
	mu       sync.Mutex
	balances map[holderKey]*big.Int
	custody  map[assetKey]*big.Int
}

// NewMemoryVault creates an empty in-memory vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{
		balances: make(map[holderKey]*big.Int),
		custody:  make(map[assetKey]*big.Int),
	}
}

// Mint credits a holder balance. Intended for bootstrap and tests.
func (v *MemoryVault) Mint(holder common.Address, token, chain string, amount *big.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	key := holderKey{holder: holder, asset: assetKey{token: token, chain: chain}}
	v.balances[key] = new(big.Int).Add(v.balance(key), amount)
}

func (v *MemoryVault) balance(key holderKey) *big.Int {
	if b, ok := v.balances[key]; ok {
		return b
	}
	return big.NewInt(0)
}

func (v *MemoryVault) custodyOf(key assetKey) *big.Int {
	if b, ok := v.custody[key]; ok {
		return b
	}
	return big.NewInt(0)
}

// TransferFrom moves amount from the holder into switch custody.
func (v *MemoryVault) TransferFrom(_ context.Context, from common.Address, token, chain string, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	asset := assetKey{token: token, chain: chain}
	key := holderKey{holder: from, asset: asset}

	bal := v.balance(key)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("debit %s %s on %s: %w", amount, token, chain, ErrInsufficientFunds)
	}

	v.balances[key] = new(big.Int).Sub(bal, amount)
	v.custody[asset] = new(big.Int).Add(v.custodyOf(asset), amount)
	return nil
}

// Release moves amount from switch custody back to a holder.
func (v *MemoryVault) Release(_ context.Context, to common.Address, token, chain string, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	asset := assetKey{token: token, chain: chain}
	held := v.custodyOf(asset)
	if held.Cmp(amount) < 0 {
		return fmt.Errorf("release %s %s on %s: %w", amount, token, chain, ErrInsufficientFunds)
	}

	key := holderKey{holder: to, asset: asset}
	v.custody[asset] = new(big.Int).Sub(held, amount)
	v.balances[key] = new(big.Int).Add(v.balance(key), amount)
	return nil
}

// BalanceOf returns the holder's balance for a token on a chain.
func (v *MemoryVault) BalanceOf(holder common.Address, token, chain string) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.balance(holderKey{holder: holder, asset: assetKey{token: token, chain: chain}}))
}

// CustodyBalance returns the amount held in switch custody for a token.
func (v *MemoryVault) CustodyBalance(token, chain string) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.custodyOf(assetKey{token: token, chain: chain}))
}

var _ Vault = (*MemoryVault)(nil)
