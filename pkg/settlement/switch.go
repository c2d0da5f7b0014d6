// Package settlement implements the settlement switch: the public entry
// point that validates transfer requests, selects routes, enforces rate and
// daily limits, executes single and multi-path transfers through bridge
// adapters, and maintains the transfer ledger.
package settlement

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainsafe/settlement-switch/internal/metrics"
	"github.com/chainsafe/settlement-switch/pkg/bridge"
	"github.com/chainsafe/settlement-switch/pkg/custody"
	"github.com/chainsafe/settlement-switch/pkg/eventbus"
	"github.com/chainsafe/settlement-switch/pkg/fees"
	"github.com/chainsafe/settlement-switch/pkg/router"
)

// Ledger is the narrow persistence interface the switch writes transfers
// through. Defined here to keep the switch decoupled from the store
// implementation.
type Ledger interface {
	Append(ctx context.Context, t *bridge.Transfer) error
	Confirm(ctx context.Context, id, adapterTransferID string) error
	UpdateStatus(ctx context.Context, id string, status bridge.TransferStatus, completedAt time.Time) error
	Get(ctx context.Context, id string) (*bridge.Transfer, error)
	History(ctx context.Context, sender common.Address, limit int) ([]*bridge.Transfer, error)
}

// RouteFinder is the calculator surface the switch consults.
type RouteFinder interface {
	BestRoute(ctx context.Context, req router.Request) (*bridge.Route, error)
	TopRoutes(ctx context.Context, req router.Request, maxRoutes int) ([]*bridge.Route, error)
}

// AdapterRegistry is the registry surface the switch needs: adapter lookup,
// lifecycle pass-throughs and performance bookkeeping.
type AdapterRegistry interface {
	Adapter(name string) (bridge.Adapter, bool)
	RegisterBridge(ctx context.Context, adapter bridge.Adapter, chains, tokens []string) error
	EnableBridge(ctx context.Context, name string) error
	DisableBridge(ctx context.Context, name, reason string) error
	UpdatePerformanceMetrics(name string, gasCost *big.Int, completionTime time.Duration, success bool, volume *big.Int) error
}

// Config controls switch-level policy.
type Config struct {
	CacheTTL            time.Duration
	MinTransferInterval time.Duration
	DailyLimit          *big.Int
	MaxSplitLegs        int
}

// Option configures switch settings.
type Option func(*Switch)

// WithClock injects a time source. Used by tests for deterministic behavior.
func WithClock(now func() time.Time) Option {
	return func(s *Switch) { s.now = now }
}

// Switch orchestrates route selection and transfer settlement. It exclusively
// owns the route cache, the per-user limits, and the transfer ledger.
type Switch struct {
	cfg      Config
	registry AdapterRegistry
	finder   RouteFinder
	ledger   Ledger
	vault    custody.Vault
	fees     fees.Engine
	topo     *Topology
	bus      eventbus.Bus
	logger   *zap.Logger
	now      func() time.Time

	cache  *routeCache
	limits *limitTracker

	pauseMu sync.RWMutex
	paused  bool
}

// New creates a settlement switch.
func New(
	cfg Config,
	reg AdapterRegistry,
	finder RouteFinder,
	ledger Ledger,
	vault custody.Vault,
	feeEngine fees.Engine,
	topo *Topology,
	bus eventbus.Bus,
	logger *zap.Logger,
	opts ...Option,
) *Switch {
	s := &Switch{
		cfg:      cfg,
		registry: reg,
		finder:   finder,
		ledger:   ledger,
		vault:    vault,
		fees:     feeEngine,
		topo:     topo,
		bus:      bus,
		logger:   logger,
		now:      time.Now,
		cache:    newRouteCache(cfg.CacheTTL),
		limits:   newLimitTracker(cfg.DailyLimit, cfg.MinTransferInterval),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// FindOptimalRoute returns the best route for the request, consulting the
// route cache before delegating to the calculator.
func (s *Switch) FindOptimalRoute(ctx context.Context, req router.Request) (*bridge.Route, error) {
	routes, err := s.findRoutes(ctx, req, 1)
	if err != nil {
		return nil, err
	}
	return routes[0], nil
}

// FindMultipleRoutes returns up to maxRoutes candidates ranked by preference.
func (s *Switch) FindMultipleRoutes(ctx context.Context, req router.Request, maxRoutes int) ([]*bridge.Route, error) {
	return s.findRoutes(ctx, req, maxRoutes)
}

func (s *Switch) findRoutes(ctx context.Context, req router.Request, maxRoutes int) ([]*bridge.Route, error) {
	key := cacheKey(req, maxRoutes)
	now := s.now()

	if routes, ok := s.cache.get(key, now); ok {
		metrics.RouteCacheHits.WithLabelValues("hit").Inc()
		s.bus.Publish(ctx, bridge.RouteCalculated{Route: routes[0], Mode: req.Mode, CacheHit: true})
		return routes, nil
	}
	metrics.RouteCacheHits.WithLabelValues("miss").Inc()

	routes, err := s.finder.TopRoutes(ctx, req, maxRoutes)
	if err != nil {
		return nil, err
	}

	s.cache.put(key, routes, now)
	s.bus.Publish(ctx, bridge.RouteCalculated{Route: routes[0], Mode: req.Mode, CacheHit: false})
	s.bus.Publish(ctx, bridge.RouteCacheUpdated{Key: key, TTL: s.cache.currentTTL()})
	return routes, nil
}

// FindMultiPathRoute splits the requested total across up to MaxSplitLegs
// ranked routes. The split divides the remaining amount evenly across the
// remaining legs, capped by each leg's available liquidity; the last leg
// receives the exact remainder so the amounts always sum to the total.
func (s *Switch) FindMultiPathRoute(ctx context.Context, req router.Request) (*bridge.MultiPathRoute, error) {
	// Candidates only need liquidity for an even share, not the full total.
	legFloor := new(big.Int).Div(req.Amount, big.NewInt(int64(s.cfg.MaxSplitLegs)))
	if legFloor.Sign() == 0 {
		legFloor = big.NewInt(1)
	}
	candReq := req
	candReq.MinLiquidity = legFloor

	candidates, err := s.finder.TopRoutes(ctx, candReq, s.cfg.MaxSplitLegs)
	if err != nil {
		return nil, err
	}

	remaining := new(big.Int).Set(req.Amount)
	routes := make([]*bridge.Route, 0, len(candidates))
	amounts := make([]*big.Int, 0, len(candidates))

	for i, cand := range candidates {
		if remaining.Sign() == 0 {
			break
		}
		legsLeft := int64(len(candidates) - i)
		alloc := new(big.Int).Div(remaining, big.NewInt(legsLeft))
		if i == len(candidates)-1 {
			alloc = new(big.Int).Set(remaining)
		}
		if alloc.Cmp(cand.Metrics.AvailableLiquidity) > 0 {
			alloc = new(big.Int).Set(cand.Metrics.AvailableLiquidity)
		}
		if alloc.Sign() == 0 {
			continue
		}

		leg, err := s.requoteLeg(ctx, cand, alloc)
		if err != nil {
			continue
		}
		routes = append(routes, leg)
		amounts = append(amounts, alloc)
		remaining.Sub(remaining, alloc)
	}

	if remaining.Sign() > 0 || len(routes) == 0 {
		return nil, router.ErrRouteNotFound
	}

	metrics.MultiPathLegs.Observe(float64(len(routes)))
	return &bridge.MultiPathRoute{
		Routes:      routes,
		Amounts:     amounts,
		TotalAmount: new(big.Int).Set(req.Amount),
	}, nil
}

// requoteLeg re-prices a candidate route for its allocated amount.
func (s *Switch) requoteLeg(ctx context.Context, cand *bridge.Route, alloc *big.Int) (*bridge.Route, error) {
	adapter, ok := s.registry.Adapter(cand.AdapterName)
	if !ok {
		return nil, ErrAdapterNotRegistered
	}
	m, err := adapter.GetRouteMetrics(ctx, cand.TokenIn, cand.TokenOut, alloc, cand.SrcChain, cand.DstChain)
	if err != nil {
		return nil, err
	}
	amountOut := new(big.Int).Sub(alloc, m.ProtocolFee)
	if amountOut.Sign() <= 0 {
		return nil, ErrInvalidRoute
	}
	return &bridge.Route{
		AdapterName: cand.AdapterName,
		TokenIn:     cand.TokenIn,
		TokenOut:    cand.TokenOut,
		AmountIn:    new(big.Int).Set(alloc),
		AmountOut:   amountOut,
		SrcChain:    cand.SrcChain,
		DstChain:    cand.DstChain,
		Metrics:     *m,
		Deadline:    cand.Deadline,
	}, nil
}

// ExecuteBridge settles one route. Validation order: pause, blacklist,
// amounts, recipient, rate limit, daily cap, route expiry. Custody debit, fee
// collection and the pending ledger entry all commit before control passes to
// adapter code.
func (s *Switch) ExecuteBridge(ctx context.Context, sender common.Address, route *bridge.Route, recipient common.Address, authData []byte) (*bridge.Transfer, error) {
	if err := s.validateExecution(sender, route, recipient); err != nil {
		return nil, err
	}

	adapter, ok := s.registry.Adapter(route.AdapterName)
	if !ok {
		return nil, ErrAdapterNotRegistered
	}

	// Per-user critical section around the limits read-check-write.
	userLock := s.limits.lockUser(sender)
	userLock.Lock()
	defer userLock.Unlock()

	now := s.now()
	if err := s.limits.reserve(sender, route.AmountIn, now); err != nil {
		metrics.RejectedTransfers.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}

	return s.executeLeg(ctx, adapter, sender, route, recipient, authData, now)
}

// ExecuteMultiPathBridge settles every leg of a multi-path route. The total
// amount is validated once; legs execute independently and a later leg's
// failure never rolls back an earlier leg.
func (s *Switch) ExecuteMultiPathBridge(ctx context.Context, sender common.Address, mp *bridge.MultiPathRoute, recipient common.Address, authData []byte) ([]*bridge.Transfer, error) {
	if mp == nil || len(mp.Routes) == 0 || len(mp.Routes) != len(mp.Amounts) {
		return nil, ErrInvalidRoute
	}
	sum := big.NewInt(0)
	for _, a := range mp.Amounts {
		sum.Add(sum, a)
	}
	if sum.Cmp(mp.TotalAmount) != 0 {
		return nil, ErrInvalidRoute
	}

	first := mp.Routes[0]
	combined := *first
	combined.AmountIn = mp.TotalAmount
	if err := s.validateExecution(sender, &combined, recipient); err != nil {
		return nil, err
	}
	for _, r := range mp.Routes {
		if _, ok := s.registry.Adapter(r.AdapterName); !ok {
			return nil, ErrAdapterNotRegistered
		}
	}

	userLock := s.limits.lockUser(sender)
	userLock.Lock()
	defer userLock.Unlock()

	now := s.now()
	if err := s.limits.reserve(sender, mp.TotalAmount, now); err != nil {
		metrics.RejectedTransfers.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}

	transfers := make([]*bridge.Transfer, 0, len(mp.Routes))
	ids := make([]string, 0, len(mp.Routes))
	failed := 0

	for i, route := range mp.Routes {
		adapter, _ := s.registry.Adapter(route.AdapterName)

		leg := *route
		leg.AmountIn = mp.Amounts[i]

		t, err := s.executeLeg(ctx, adapter, sender, &leg, recipient, authData, now)
		if err != nil {
			failed++
			s.logger.Warn("multi-path leg failed",
				zap.String("adapter", route.AdapterName),
				zap.Int("leg", i),
				zap.Error(err),
			)
			if t == nil {
				continue
			}
		}
		transfers = append(transfers, t)
		ids = append(ids, t.ID)
	}

	s.bus.Publish(ctx, bridge.MultiPathTransferInitiated{
		TransferIDs: ids,
		Sender:      sender,
		TotalAmount: mp.TotalAmount,
		Legs:        len(mp.Routes),
	})

	if failed > 0 {
		return transfers, fmt.Errorf("%w: %d of %d legs", ErrMultiPathExecutionFailed, failed, len(mp.Routes))
	}
	return transfers, nil
}

// BridgeWithAutoRoute finds the optimal route and executes it in one call.
func (s *Switch) BridgeWithAutoRoute(ctx context.Context, sender common.Address, req router.Request, recipient common.Address, authData []byte) (*bridge.Transfer, error) {
	route, err := s.FindOptimalRoute(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.ExecuteBridge(ctx, sender, route, recipient, authData)
}

// validateExecution runs every pre-custody check that does not touch the
// per-user limit state.
func (s *Switch) validateExecution(sender common.Address, route *bridge.Route, recipient common.Address) error {
	if s.Paused() {
		metrics.RejectedTransfers.WithLabelValues("paused").Inc()
		return ErrPaused
	}
	if s.limits.isBlacklisted(sender) {
		metrics.RejectedTransfers.WithLabelValues("blacklisted").Inc()
		return ErrBlacklisted
	}
	if route == nil || route.AmountIn == nil || route.AmountIn.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if recipient == (common.Address{}) {
		return ErrInvalidRecipient
	}
	if route.AmountOut == nil || route.AmountOut.Sign() <= 0 {
		return ErrInvalidRoute
	}
	if route.Expired(s.now()) {
		return ErrRouteExpired
	}
	return nil
}

// executeLeg settles one route leg. Callers must have validated the request
// and reserved the user's limits. Custody and the pending ledger entry are
// committed before the adapter is invoked; an adapter failure after that
// point is recorded as a FAILED transfer, never silently discarded.
func (s *Switch) executeLeg(ctx context.Context, adapter bridge.Adapter, sender common.Address, route *bridge.Route, recipient common.Address, authData []byte, now time.Time) (*bridge.Transfer, error) {
	if err := s.vault.TransferFrom(ctx, sender, route.TokenIn, route.SrcChain, route.AmountIn); err != nil {
		metrics.RejectedTransfers.WithLabelValues("custody").Inc()
		return nil, fmt.Errorf("take custody: %w", err)
	}

	fee := s.fees.CalculateFee(route.AmountIn)
	if err := s.fees.CollectFee(ctx, sender, route.TokenIn, route.SrcChain, fee); err != nil {
		// Principal returns to the sender; nothing else has committed yet.
		if relErr := s.vault.Release(ctx, sender, route.TokenIn, route.SrcChain, route.AmountIn); relErr != nil {
			s.logger.Error("custody release after fee failure", zap.Error(relErr))
		}
		return nil, err
	}

	t := &bridge.Transfer{
		ID:          uuid.NewString(),
		Sender:      sender,
		Recipient:   recipient,
		Route:       route,
		Status:      bridge.TransferStatusPending,
		InitiatedAt: now,
	}
	if err := s.ledger.Append(ctx, t); err != nil {
		return nil, fmt.Errorf("append ledger: %w", err)
	}

	metrics.TransfersTotal.WithLabelValues(route.AdapterName, string(bridge.TransferStatusPending)).Inc()
	metrics.TransferAmount.WithLabelValues(route.AdapterName, route.TokenIn).
		Observe(amountEther(route.AmountIn))

	s.bus.Publish(ctx, bridge.TransferInitiated{
		TransferID: t.ID,
		Sender:     sender,
		Recipient:  recipient,
		Adapter:    route.AdapterName,
		Amount:     route.AmountIn,
	})

	s.logger.Info("transfer initiated",
		zap.String("transfer_id", t.ID),
		zap.String("adapter", route.AdapterName),
		zap.String("amount", route.AmountIn.String()),
	)

	// Effects are committed; only now does control pass to adapter code.
	adapterID, err := adapter.ExecuteBridge(ctx, route, recipient.Hex(), authData)
	if err != nil {
		s.finalize(ctx, t, bridge.TransferStatusFailed, s.now())
		return t, fmt.Errorf("adapter %s: %w", route.AdapterName, err)
	}

	t.AdapterTransferID = adapterID
	t.Status = bridge.TransferStatusConfirmed
	if err := s.ledger.Confirm(ctx, t.ID, adapterID); err != nil {
		s.logger.Error("confirm ledger entry", zap.String("transfer_id", t.ID), zap.Error(err))
	}

	// The adapter may have resolved synchronously.
	if at, err := adapter.GetTransfer(ctx, adapterID); err == nil && isTerminal(at.Status) {
		s.finalize(ctx, t, at.Status, s.now())
	}
	return t, nil
}

// SyncTransferStatus polls the adapter for a pending or confirmed transfer
// and applies its terminal resolution. Expiry and resolution become visible
// only on access; the switch runs no background poller.
func (s *Switch) SyncTransferStatus(ctx context.Context, id string) (*bridge.Transfer, error) {
	t, err := s.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if isTerminal(t.Status) || t.AdapterTransferID == "" {
		return t, nil
	}

	adapter, ok := s.registry.Adapter(t.Route.AdapterName)
	if !ok {
		return t, nil
	}
	at, err := adapter.GetTransfer(ctx, t.AdapterTransferID)
	if err != nil {
		return t, nil
	}
	if isTerminal(at.Status) {
		s.finalize(ctx, t, at.Status, s.now())
	}
	return t, nil
}

// finalize applies a terminal status to the ledger, feeds the registry's
// performance metrics and publishes the terminal event.
func (s *Switch) finalize(ctx context.Context, t *bridge.Transfer, status bridge.TransferStatus, now time.Time) {
	t.Status = status
	t.CompletedAt = now

	if err := s.ledger.UpdateStatus(ctx, t.ID, status, now); err != nil {
		s.logger.Error("update ledger status", zap.String("transfer_id", t.ID), zap.Error(err))
	}

	success := status == bridge.TransferStatusCompleted
	if err := s.registry.UpdatePerformanceMetrics(
		t.Route.AdapterName,
		t.Route.Metrics.EstimatedGasCost,
		now.Sub(t.InitiatedAt),
		success,
		t.Route.AmountIn,
	); err != nil {
		s.logger.Warn("update performance metrics", zap.Error(err))
	}

	metrics.TransfersTotal.WithLabelValues(t.Route.AdapterName, string(status)).Inc()

	if success {
		s.bus.Publish(ctx, bridge.TransferCompleted{
			TransferID:  t.ID,
			Adapter:     t.Route.AdapterName,
			CompletedAt: now,
		})
	} else {
		s.bus.Publish(ctx, bridge.TransferFailed{
			TransferID: t.ID,
			Adapter:    t.Route.AdapterName,
			Reason:     "adapter resolution",
		})
	}
}

// Transfer returns one ledger entry.
func (s *Switch) Transfer(ctx context.Context, id string) (*bridge.Transfer, error) {
	return s.ledger.Get(ctx, id)
}

// History returns a sender's transfers, newest first.
func (s *Switch) History(ctx context.Context, sender common.Address, limit int) ([]*bridge.Transfer, error) {
	return s.ledger.History(ctx, sender, limit)
}

// UserLimits returns a snapshot of a user's limit accounting.
func (s *Switch) UserLimits(user common.Address) bridge.UserLimits {
	return s.limits.snapshot(user)
}

// Paused reports whether execution-class operations are rejected.
func (s *Switch) Paused() bool {
	s.pauseMu.RLock()
	defer s.pauseMu.RUnlock()
	return s.paused
}

func isTerminal(status bridge.TransferStatus) bool {
	switch status {
	case bridge.TransferStatusCompleted, bridge.TransferStatusFailed, bridge.TransferStatusRefunded:
		return true
	}
	return false
}

func rejectReason(err error) string {
	switch err {
	case ErrTransferTooFrequent:
		return "rate_limit"
	case ErrDailyLimitExceeded:
		return "daily_limit"
	default:
		return "validation"
	}
}

// amountEther converts a wei amount to ether units for histogram observation.
func amountEther(wei *big.Int) float64 {
	return decimal.NewFromBigInt(wei, -18).InexactFloat64()
}
