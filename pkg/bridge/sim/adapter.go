// Package sim provides a configurable bridge adapter simulator. It prices
// routes from a static table, tracks its own liquidity pools, and can resolve
// transfers synchronously or hold them pending for later resolution.
package sim

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/chainsafe/settlement-switch/pkg/bridge"
)

// Config sets the simulator's pricing and bounds.
type Config struct {
	Name            string
	FeeBps          int64
	GasCostWei      *big.Int
	TimeMinutes     int64
	SuccessRate     int64 // 0-100
	Congestion      int64 // 0-100
	MinAmount       *big.Int
	MaxAmount       *big.Int
	DeferResolution bool
}

type routeKey struct {
	tokenIn  string
	tokenOut string
	srcChain string
	dstChain string
}

// Adapter simulates one bridge protocol.
type Adapter struct {
	mu        sync.Mutex
	cfg       Config
	active    bool
	healthy   bool
	pools     map[routeKey]*big.Int
	transfers map[string]*bridge.Transfer
	execErr   error // injected failure for the next ExecuteBridge
	now       func() time.Time
}

// Option configures the simulator.
type Option func(*Adapter)

// WithClock injects a time source.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// New creates an active, healthy simulator with no liquidity.
func New(cfg Config, opts ...Option) *Adapter {
	a := &Adapter{
		cfg:       cfg,
		active:    true,
		healthy:   true,
		pools:     make(map[routeKey]*big.Int),
		transfers: make(map[string]*bridge.Transfer),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// AddLiquidity funds a route's pool, implicitly declaring the route supported.
func (a *Adapter) AddLiquidity(tokenIn, tokenOut, srcChain, dstChain string, amount *big.Int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := routeKey{tokenIn, tokenOut, srcChain, dstChain}
	if pool, ok := a.pools[key]; ok {
		a.pools[key] = new(big.Int).Add(pool, amount)
		return
	}
	a.pools[key] = new(big.Int).Set(amount)
}

// SetActive toggles the simulated protocol's active flag.
func (a *Adapter) SetActive(active bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = active
}

// SetHealthy toggles the self-reported health.
func (a *Adapter) SetHealthy(healthy bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.healthy = healthy
}

// FailNextExecute injects an error for the next ExecuteBridge call.
func (a *Adapter) FailNextExecute(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.execErr = err
}

// Name returns the configured adapter identifier.
func (a *Adapter) Name() string { return a.cfg.Name }

// SupportsRoute reports whether a liquidity pool exists for the route.
func (a *Adapter) SupportsRoute(tokenIn, tokenOut, srcChain, dstChain string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.pools[routeKey{tokenIn, tokenOut, srcChain, dstChain}]
	return ok
}

// GetRouteMetrics quotes the route against the current pool.
func (a *Adapter) GetRouteMetrics(_ context.Context, tokenIn, tokenOut string, amount *big.Int, srcChain, dstChain string) (*bridge.RouteMetrics, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	pool, ok := a.pools[routeKey{tokenIn, tokenOut, srcChain, dstChain}]
	if !ok {
		return nil, bridge.ErrUnsupportedRoute
	}

	fee := new(big.Int).Mul(amount, big.NewInt(a.cfg.FeeBps))
	fee.Div(fee, big.NewInt(10000))
	total := new(big.Int).Add(a.cfg.GasCostWei, fee)

	return &bridge.RouteMetrics{
		EstimatedGasCost:     new(big.Int).Set(a.cfg.GasCostWei),
		ProtocolFee:          fee,
		TotalCostWei:         total,
		EstimatedTimeMinutes: a.cfg.TimeMinutes,
		AvailableLiquidity:   new(big.Int).Set(pool),
		SuccessRate:          a.cfg.SuccessRate,
		CongestionLevel:      a.cfg.Congestion,
	}, nil
}

// ExecuteBridge debits the route's pool and records a transfer. Resolution is
// synchronous unless DeferResolution is set, in which case the transfer stays
// pending until ResolveTransfer is called.
func (a *Adapter) ExecuteBridge(_ context.Context, route *bridge.Route, recipient string, _ []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.execErr != nil {
		err := a.execErr
		a.execErr = nil
		return "", err
	}
	if !a.active {
		return "", bridge.ErrBridgeInactive
	}
	if a.cfg.MinAmount != nil && route.AmountIn.Cmp(a.cfg.MinAmount) < 0 {
		return "", bridge.ErrAmountBelowMinimum
	}
	if a.cfg.MaxAmount != nil && route.AmountIn.Cmp(a.cfg.MaxAmount) > 0 {
		return "", bridge.ErrAmountAboveMaximum
	}

	key := routeKey{route.TokenIn, route.TokenOut, route.SrcChain, route.DstChain}
	pool, ok := a.pools[key]
	if !ok {
		return "", bridge.ErrUnsupportedRoute
	}
	if pool.Cmp(route.AmountIn) < 0 {
		return "", bridge.ErrInsufficientLiquidity
	}
	a.pools[key] = new(big.Int).Sub(pool, route.AmountIn)

	id := uuid.NewString()
	now := a.now()
	t := &bridge.Transfer{
		ID:          id,
		Recipient:   common.HexToAddress(recipient),
		Route:       route,
		Status:      bridge.TransferStatusPending,
		InitiatedAt: now,
	}
	if !a.cfg.DeferResolution {
		t.Status = bridge.TransferStatusCompleted
		t.CompletedAt = now
	}
	a.transfers[id] = t
	return id, nil
}

// ResolveTransfer resolves a deferred transfer to a terminal state. A failed
// resolution returns the leg's amount to the pool.
func (a *Adapter) ResolveTransfer(id string, success bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	t, ok := a.transfers[id]
	if !ok {
		return bridge.ErrTransferNotFound
	}
	if t.Status != bridge.TransferStatusPending {
		return fmt.Errorf("transfer %s already resolved", id)
	}
	if success {
		t.Status = bridge.TransferStatusCompleted
	} else {
		t.Status = bridge.TransferStatusFailed
		key := routeKey{t.Route.TokenIn, t.Route.TokenOut, t.Route.SrcChain, t.Route.DstChain}
		if pool, ok := a.pools[key]; ok {
			a.pools[key] = new(big.Int).Add(pool, t.Route.AmountIn)
		}
	}
	t.CompletedAt = a.now()
	return nil
}

// GetTransfer returns the simulator's view of a transfer.
func (a *Adapter) GetTransfer(_ context.Context, id string) (*bridge.Transfer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.transfers[id]
	if !ok {
		return nil, bridge.ErrTransferNotFound
	}
	cp := *t
	return &cp, nil
}

// EstimateGas returns the configured gas cost.
func (a *Adapter) EstimateGas(_ context.Context, _ *bridge.Route) (*big.Int, error) {
	return new(big.Int).Set(a.cfg.GasCostWei), nil
}

// GetAvailableLiquidity returns the pool remaining for a route.
func (a *Adapter) GetAvailableLiquidity(_ context.Context, tokenIn, tokenOut, srcChain, dstChain string) (*big.Int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	pool, ok := a.pools[routeKey{tokenIn, tokenOut, srcChain, dstChain}]
	if !ok {
		return nil, bridge.ErrUnsupportedRoute
	}
	return new(big.Int).Set(pool), nil
}

// GetSuccessRate returns the configured success rate.
func (a *Adapter) GetSuccessRate(_ context.Context, _, _ string) (int64, error) {
	return a.cfg.SuccessRate, nil
}

// IsHealthy is the simulator's self-reported health.
func (a *Adapter) IsHealthy(_ context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.healthy
}

// GetTransferLimits returns the configured [min, max] bounds.
func (a *Adapter) GetTransferLimits(_, _ string) (*big.Int, *big.Int) {
	return a.cfg.MinAmount, a.cfg.MaxAmount
}

var _ bridge.Adapter = (*Adapter)(nil)
