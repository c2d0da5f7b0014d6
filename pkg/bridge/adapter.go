package bridge

import (
	"context"
	"errors"
	"math/big"
)

// Adapter boundary errors. Adapters must return these (possibly wrapped) so
// the orchestrator can classify failures without knowing protocol internals.
var (
	ErrUnsupportedRoute      = errors.New("route not supported by adapter")
	ErrInsufficientLiquidity = errors.New("insufficient adapter liquidity")
	ErrBridgeInactive        = errors.New("bridge adapter inactive")
	ErrAmountBelowMinimum    = errors.New("amount below adapter minimum")
	ErrAmountAboveMaximum    = errors.New("amount above adapter maximum")
	ErrTransferNotFound      = errors.New("transfer not found")
)

// Adapter is the capability every bridge-protocol implementation satisfies.
// The registry, calculator and settlement switch consume only this interface,
// never protocol internals.
type Adapter interface {
	// Name returns the stable adapter identifier. No side effects.
	Name() string

	// SupportsRoute is a pure predicate. It must agree with GetRouteMetrics:
	// when it returns false, GetRouteMetrics must fail with ErrUnsupportedRoute
	// for the same parameters.
	SupportsRoute(tokenIn, tokenOut, srcChain, dstChain string) bool

	// GetRouteMetrics quotes a route against current liquidity, never a
	// cached snapshot.
	GetRouteMetrics(ctx context.Context, tokenIn, tokenOut string, amount *big.Int, srcChain, dstChain string) (*RouteMetrics, error)

	// ExecuteBridge takes custody intent for route.AmountIn and initiates the
	// transfer, returning a newly generated transfer identifier. It must
	// reject when the bridge is inactive, the amount is outside the adapter's
	// bounds, or liquidity is insufficient. Resolution may be synchronous or
	// deferred; a deferred transfer stays pending until the adapter resolves it.
	ExecuteBridge(ctx context.Context, route *Route, recipient string, authData []byte) (string, error)

	// GetTransfer returns the adapter's view of a previously initiated transfer.
	GetTransfer(ctx context.Context, id string) (*Transfer, error)

	// EstimateGas returns the execution gas cost for the route in wei.
	EstimateGas(ctx context.Context, route *Route) (*big.Int, error)

	// GetAvailableLiquidity returns the liquidity currently available for the
	// token pair on the chain pair.
	GetAvailableLiquidity(ctx context.Context, tokenIn, tokenOut, srcChain, dstChain string) (*big.Int, error)

	// GetSuccessRate returns the adapter's historical success rate, 0-100.
	GetSuccessRate(ctx context.Context, srcChain, dstChain string) (int64, error)

	// IsHealthy is the adapter's self-reported health.
	IsHealthy(ctx context.Context) bool

	// GetTransferLimits returns the adapter's [min, max] transfer bounds.
	GetTransferLimits(tokenIn, srcChain string) (min, max *big.Int)
}
