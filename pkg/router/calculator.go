// Package router scores candidate routes across registered bridge adapters.
// The calculator owns no persistent state; every query is a pure function of
// the registry's live adapter set and the request parameters.
package router

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/settlement-switch/internal/metrics"
	"github.com/chainsafe/settlement-switch/pkg/bridge"
)

var (
	ErrRouteNotFound     = errors.New("no qualifying route found")
	ErrChainNotSupported = errors.New("chain not supported")
	ErrTokenNotSupported = errors.New("token not supported")
	ErrInvalidMode       = errors.New("invalid routing mode")
)

// MaxRoutesCap is the hard system ceiling on routes returned by TopRoutes.
const MaxRoutesCap = 10

// RegistryView is the narrow registry surface the calculator consumes.
type RegistryView interface {
	CandidateBridges(srcChain, dstChain string) []bridge.Adapter
}

// Topology answers which chains and tokens the switch is configured for.
// Checked before any adapter call so unsupported requests fail fast.
type Topology interface {
	ChainSupported(chainID string) bool
	TokenSupported(chainID, token string) bool
}

// Request is one route query. MinLiquidity, when set, replaces Amount as the
// liquidity floor a candidate must clear; multi-path splitting uses it to
// admit adapters that can cover a share of the total but not all of it.
type Request struct {
	TokenIn      string
	TokenOut     string
	Amount       *big.Int
	SrcChain     string
	DstChain     string
	Mode         bridge.RoutingMode
	MinLiquidity *big.Int
}

// Option configures calculator settings.
type Option func(*Calculator)

// WithClock injects a time source for deadline stamping.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) { c.now = now }
}

// Calculator enumerates enabled, healthy adapters and ranks the surviving
// candidates according to the requested routing mode.
type Calculator struct {
	registry             RegistryView
	topology             Topology
	timePenaltyPerMinute *big.Int
	routeDeadline        time.Duration
	logger               *zap.Logger
	now                  func() time.Time
}

// New creates a calculator. timePenaltyPerMinute is the balanced-mode cost of
// one minute of estimated completion time, in wei.
func New(reg RegistryView, topo Topology, timePenaltyPerMinute *big.Int, routeDeadline time.Duration, logger *zap.Logger, opts ...Option) *Calculator {
	c := &Calculator{
		registry:             reg,
		topology:             topo,
		timePenaltyPerMinute: timePenaltyPerMinute,
		routeDeadline:        routeDeadline,
		logger:               logger,
		now:                  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// BestRoute returns the minimum-score route for the request.
func (c *Calculator) BestRoute(ctx context.Context, req Request) (*bridge.Route, error) {
	routes, err := c.TopRoutes(ctx, req, 1)
	if err != nil {
		return nil, err
	}
	return routes[0], nil
}

// TopRoutes returns up to maxRoutes candidates ranked ascending by score.
func (c *Calculator) TopRoutes(ctx context.Context, req Request, maxRoutes int) ([]*bridge.Route, error) {
	if err := c.validate(req); err != nil {
		metrics.RoutesCalculated.WithLabelValues(string(req.Mode), "rejected").Inc()
		return nil, err
	}
	if maxRoutes <= 0 || maxRoutes > MaxRoutesCap {
		maxRoutes = MaxRoutesCap
	}

	candidates := c.collect(ctx, req)
	if len(candidates) == 0 {
		metrics.RoutesCalculated.WithLabelValues(string(req.Mode), "not_found").Inc()
		return nil, ErrRouteNotFound
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return c.less(req.Mode, candidates[i], candidates[j])
	})

	if len(candidates) > maxRoutes {
		candidates = candidates[:maxRoutes]
	}
	metrics.RoutesCalculated.WithLabelValues(string(req.Mode), "ok").Inc()
	return candidates, nil
}

func (c *Calculator) validate(req Request) error {
	if !req.Mode.Valid() {
		return ErrInvalidMode
	}
	if !c.topology.ChainSupported(req.SrcChain) || !c.topology.ChainSupported(req.DstChain) {
		return ErrChainNotSupported
	}
	if !c.topology.TokenSupported(req.SrcChain, req.TokenIn) || !c.topology.TokenSupported(req.DstChain, req.TokenOut) {
		return ErrTokenNotSupported
	}
	return nil
}

// collect quotes every enabled, healthy adapter that supports the route and
// has the liquidity to cover it.
func (c *Calculator) collect(ctx context.Context, req Request) []*bridge.Route {
	adapters := c.registry.CandidateBridges(req.SrcChain, req.DstChain)

	floor := req.Amount
	if req.MinLiquidity != nil {
		floor = req.MinLiquidity
	}

	routes := make([]*bridge.Route, 0, len(adapters))
	for _, adapter := range adapters {
		if !adapter.SupportsRoute(req.TokenIn, req.TokenOut, req.SrcChain, req.DstChain) {
			continue
		}

		liquidity, err := adapter.GetAvailableLiquidity(ctx, req.TokenIn, req.TokenOut, req.SrcChain, req.DstChain)
		if err != nil || liquidity.Cmp(floor) < 0 {
			continue
		}

		m, err := adapter.GetRouteMetrics(ctx, req.TokenIn, req.TokenOut, req.Amount, req.SrcChain, req.DstChain)
		if err != nil {
			c.logger.Debug("adapter quote failed",
				zap.String("adapter", adapter.Name()),
				zap.Error(err),
			)
			continue
		}

		amountOut := new(big.Int).Sub(req.Amount, m.ProtocolFee)
		if amountOut.Sign() <= 0 {
			continue
		}

		routes = append(routes, &bridge.Route{
			AdapterName: adapter.Name(),
			TokenIn:     req.TokenIn,
			TokenOut:    req.TokenOut,
			AmountIn:    new(big.Int).Set(req.Amount),
			AmountOut:   amountOut,
			SrcChain:    req.SrcChain,
			DstChain:    req.DstChain,
			Metrics:     *m,
			Deadline:    c.now().Add(c.routeDeadline),
		})
	}
	return routes
}

// less orders candidates ascending by mode score. Fastest mode breaks time
// ties by lower total cost.
func (c *Calculator) less(mode bridge.RoutingMode, a, b *bridge.Route) bool {
	switch mode {
	case bridge.ModeFastest:
		if a.Metrics.EstimatedTimeMinutes != b.Metrics.EstimatedTimeMinutes {
			return a.Metrics.EstimatedTimeMinutes < b.Metrics.EstimatedTimeMinutes
		}
		return a.Metrics.TotalCostWei.Cmp(b.Metrics.TotalCostWei) < 0
	case bridge.ModeBalanced:
		return c.balancedScore(a).Cmp(c.balancedScore(b)) < 0
	default: // ModeCheapest
		return a.Metrics.TotalCostWei.Cmp(b.Metrics.TotalCostWei) < 0
	}
}

func (c *Calculator) balancedScore(r *bridge.Route) *big.Int {
	penalty := new(big.Int).Mul(c.timePenaltyPerMinute, big.NewInt(r.Metrics.EstimatedTimeMinutes))
	return penalty.Add(penalty, r.Metrics.TotalCostWei)
}
