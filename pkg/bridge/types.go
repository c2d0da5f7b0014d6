package bridge

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TransferStatus represents the current state of a settled transfer.
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusConfirmed TransferStatus = "confirmed"
	TransferStatusCompleted TransferStatus = "completed"
	TransferStatusFailed    TransferStatus = "failed"
	TransferStatusRefunded  TransferStatus = "refunded"
)

// RoutingMode is the optimization objective used when ranking routes.
type RoutingMode string

const (
	ModeCheapest RoutingMode = "cheapest"
	ModeFastest  RoutingMode = "fastest"
	ModeBalanced RoutingMode = "balanced"
)

// Valid reports whether the mode is one of the known objectives.
func (m RoutingMode) Valid() bool {
	switch m {
	case ModeCheapest, ModeFastest, ModeBalanced:
		return true
	}
	return false
}

// RouteMetrics is a point-in-time quote for a route through one adapter.
// Recomputed on every query; stores persist only the gas cost alongside
// the flattened route.
type RouteMetrics struct {
	EstimatedGasCost     *big.Int
	ProtocolFee          *big.Int
	TotalCostWei         *big.Int
	EstimatedTimeMinutes int64
	AvailableLiquidity   *big.Int
	SuccessRate          int64 // 0-100
	CongestionLevel      int64 // 0-100
}

// Route is a fully priced transfer plan through one adapter. Routes are
// immutable once returned; callers must re-quote after Deadline passes.
type Route struct {
	AdapterName string
	TokenIn     string
	TokenOut    string
	AmountIn    *big.Int
	AmountOut   *big.Int
	SrcChain    string
	DstChain    string
	Metrics     RouteMetrics
	AdapterData []byte
	Deadline    time.Time
}

// Expired reports whether the route's deadline has passed at the given time.
func (r *Route) Expired(now time.Time) bool {
	return !now.Before(r.Deadline)
}

// MultiPathRoute splits one logical transfer across several routes.
// Invariant: len(Amounts) == len(Routes) and the amounts sum to the total
// requested amount exactly.
type MultiPathRoute struct {
	Routes      []*Route
	Amounts     []*big.Int
	TotalAmount *big.Int
}

// Transfer is one ledger entry for one executed route leg. Records are
// append-only; status transitions are the only mutation.
type Transfer struct {
	ID                string
	AdapterTransferID string // identifier the adapter returned on acceptance
	Sender            common.Address
	Recipient         common.Address
	Route             *Route
	Status            TransferStatus
	InitiatedAt       time.Time
	CompletedAt       time.Time // zero until a terminal status is reached
}

// BridgeInfo is the registry's bookkeeping record for one adapter.
// Owned exclusively by the registry; mutated only through registry calls.
type BridgeInfo struct {
	Name            string
	DisplayName     string
	Enabled         bool
	Healthy         bool
	RegisteredAt    time.Time
	LastHealthCheck time.Time
	TotalTransfers  int64
	TotalFailures   int64
	TotalVolume     *big.Int
}

// PerformanceMetrics tracks exponentially smoothed per-adapter statistics.
type PerformanceMetrics struct {
	AvgGasCost        *big.Int
	AvgCompletionTime time.Duration
	SuccessRateBps    int64 // basis points, 10000 = 100%
	ReliabilityScore  int64 // 0-100, derived
}

// UserLimits tracks per-user rate limiting and daily volume accounting.
// The daily counter resets lazily on the next write after a full day.
type UserLimits struct {
	DailyTransferred *big.Int
	DayStart         time.Time
	LastTransferAt   time.Time
	TransferCount    int64
	Whitelisted      bool
}
