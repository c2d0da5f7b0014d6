// Package registry owns the set of registered bridge adapters, their
// enable/health state and their per-adapter performance metrics.
package registry

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainsafe/settlement-switch/internal/metrics"
	"github.com/chainsafe/settlement-switch/pkg/bridge"
	"github.com/chainsafe/settlement-switch/pkg/eventbus"
)

var (
	ErrBridgeAlreadyRegistered = errors.New("bridge already registered")
	ErrBridgeNotRegistered     = errors.New("bridge not registered")
	ErrInvalidBridgeAdapter    = errors.New("invalid bridge adapter")
	ErrHealthCheckThrottled    = errors.New("health check rate limited")
)

// Volume thresholds for the reliability score, in wei.
var (
	highVolumeThreshold = mustWei("10000000000000000000000") // 10,000 ether
	lowVolumeThreshold  = mustWei("1000000000000000000")     // 1 ether
)

// fastCompletionCutoff is the average completion time below which an adapter
// earns the speed bonus.
const fastCompletionCutoff = 10 * time.Minute

func mustWei(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Config controls health evaluation and auto-disable behavior.
type Config struct {
	HealthCheckInterval time.Duration
	FailureThresholdBps int64
	MinVolumeForHealth  int64
	AutoDisable         bool
}

// Option configures registry settings using the functional options pattern.
type Option func(*Registry)

// WithClock injects a time source. Used by tests for deterministic behavior.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

type entry struct {
	adapter bridge.Adapter
	info    *bridge.BridgeInfo
	perf    *bridge.PerformanceMetrics
	chains  []string
	tokens  []string
}

// Registry is the mutex-guarded adapter directory. It exclusively owns the
// BridgeInfo and PerformanceMetrics records it hands out copies of.
type Registry struct {
	mu      sync.RWMutex
	cfg     Config
	entries map[string]*entry
	order   []string // registration order, for deterministic iteration

	bus    eventbus.Bus
	logger *zap.Logger
	now    func() time.Time
}

// New creates an empty registry.
func New(cfg Config, bus eventbus.Bus, logger *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		cfg:     cfg,
		entries: make(map[string]*entry),
		bus:     bus,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// RegisterBridge adds an adapter with its supported chains and tokens. The
// adapter is probed through Name() to validate it implements the capability;
// it starts enabled, healthy and at a 100% success rate.
func (r *Registry) RegisterBridge(ctx context.Context, adapter bridge.Adapter, chains, tokens []string) error {
	if adapter == nil {
		return ErrInvalidBridgeAdapter
	}
	name := adapter.Name()
	if name == "" {
		return ErrInvalidBridgeAdapter
	}

	r.mu.Lock()
	if _, exists := r.entries[name]; exists {
		r.mu.Unlock()
		return ErrBridgeAlreadyRegistered
	}

	now := r.now()
	r.entries[name] = &entry{
		adapter: adapter,
		info: &bridge.BridgeInfo{
			Name:         name,
			DisplayName:  name,
			Enabled:      true,
			Healthy:      true,
			RegisteredAt: now,
			TotalVolume:  big.NewInt(0),
		},
		perf: &bridge.PerformanceMetrics{
			AvgGasCost:       big.NewInt(0),
			SuccessRateBps:   10000,
			ReliabilityScore: 100,
		},
		chains: append([]string(nil), chains...),
		tokens: append([]string(nil), tokens...),
	}
	r.order = append(r.order, name)
	count := len(r.entries)
	r.mu.Unlock()

	metrics.RegisteredAdapters.Set(float64(count))
	metrics.AdapterHealthy.WithLabelValues(name).Set(1)

	r.logger.Info("bridge registered",
		zap.String("adapter", name),
		zap.Strings("chains", chains),
	)
	r.bus.Publish(ctx, bridge.AdapterRegistered{Adapter: name, Chains: chains})
	return nil
}

// DeregisterBridge removes an adapter entirely.
func (r *Registry) DeregisterBridge(ctx context.Context, name, reason string) error {
	r.mu.Lock()
	if _, exists := r.entries[name]; !exists {
		r.mu.Unlock()
		return ErrBridgeNotRegistered
	}
	delete(r.entries, name)
	// Swap-with-last removal keeps the order slice compact.
	for i, n := range r.order {
		if n == name {
			r.order[i] = r.order[len(r.order)-1]
			r.order = r.order[:len(r.order)-1]
			break
		}
	}
	count := len(r.entries)
	r.mu.Unlock()

	metrics.RegisteredAdapters.Set(float64(count))

	r.logger.Info("bridge deregistered",
		zap.String("adapter", name),
		zap.String("reason", reason),
	)
	r.bus.Publish(ctx, bridge.AdapterStatusChanged{Adapter: name, Enabled: false, Healthy: false, Reason: reason})
	return nil
}

// EnableBridge marks an adapter enabled. Idempotent.
func (r *Registry) EnableBridge(ctx context.Context, name string) error {
	return r.setEnabled(ctx, name, true, "enabled by admin")
}

// DisableBridge marks an adapter disabled with an audit reason. Idempotent.
func (r *Registry) DisableBridge(ctx context.Context, name, reason string) error {
	return r.setEnabled(ctx, name, false, reason)
}

func (r *Registry) setEnabled(ctx context.Context, name string, enabled bool, reason string) error {
	r.mu.Lock()
	e, exists := r.entries[name]
	if !exists {
		r.mu.Unlock()
		return ErrBridgeNotRegistered
	}
	if e.info.Enabled == enabled {
		r.mu.Unlock()
		return nil
	}
	e.info.Enabled = enabled
	healthy := e.info.Healthy
	r.mu.Unlock()

	r.logger.Info("bridge status changed",
		zap.String("adapter", name),
		zap.Bool("enabled", enabled),
		zap.String("reason", reason),
	)
	r.bus.Publish(ctx, bridge.AdapterStatusChanged{Adapter: name, Enabled: enabled, Healthy: healthy, Reason: reason})
	return nil
}

// PerformHealthCheck re-evaluates an adapter's health state. Checks are rate
// limited to once per configured interval per adapter. Health is the
// conjunction of the adapter's self report, the observed failure rate staying
// under the threshold once minimum volume is reached, and the smoothed
// success rate staying above the complementary floor. With AutoDisable set,
// an enabled adapter that degrades is disabled as a side effect.
func (r *Registry) PerformHealthCheck(ctx context.Context, name string) (bool, error) {
	r.mu.Lock()
	e, exists := r.entries[name]
	if !exists {
		r.mu.Unlock()
		return false, ErrBridgeNotRegistered
	}

	now := r.now()
	if !e.info.LastHealthCheck.IsZero() && now.Sub(e.info.LastHealthCheck) < r.cfg.HealthCheckInterval {
		r.mu.Unlock()
		return false, ErrHealthCheckThrottled
	}
	e.info.LastHealthCheck = now
	adapter := e.adapter
	r.mu.Unlock()

	// Self report happens outside the lock; adapters may do real work here.
	selfHealthy := adapter.IsHealthy(ctx)

	r.mu.Lock()
	e, exists = r.entries[name]
	if !exists {
		r.mu.Unlock()
		return false, ErrBridgeNotRegistered
	}

	healthy := selfHealthy
	if e.info.TotalTransfers >= r.cfg.MinVolumeForHealth {
		failureBps := int64(0)
		if e.info.TotalTransfers > 0 {
			failureBps = e.info.TotalFailures * 10000 / e.info.TotalTransfers
		}
		if failureBps > r.cfg.FailureThresholdBps {
			healthy = false
		}
	}
	if e.perf.SuccessRateBps < 10000-r.cfg.FailureThresholdBps {
		healthy = false
	}

	wasHealthy := e.info.Healthy
	e.info.Healthy = healthy

	autoDisabled := false
	if !healthy && e.info.Enabled && r.cfg.AutoDisable {
		e.info.Enabled = false
		autoDisabled = true
	}
	enabled := e.info.Enabled
	r.mu.Unlock()

	gauge := 0.0
	if healthy {
		gauge = 1
	}
	metrics.AdapterHealthy.WithLabelValues(name).Set(gauge)

	if healthy != wasHealthy || autoDisabled {
		reason := "health check"
		if autoDisabled {
			reason = "auto-disabled after failed health check"
		}
		r.logger.Warn("bridge health changed",
			zap.String("adapter", name),
			zap.Bool("healthy", healthy),
			zap.Bool("enabled", enabled),
		)
		r.bus.Publish(ctx, bridge.AdapterStatusChanged{Adapter: name, Enabled: enabled, Healthy: healthy, Reason: reason})
	}
	return healthy, nil
}

// UpdatePerformanceMetrics records a terminal transfer outcome for an
// adapter: cumulative counters, a 90/10 exponential moving average for gas
// cost and completion time, and the recomputed success and reliability scores.
func (r *Registry) UpdatePerformanceMetrics(name string, gasCost *big.Int, completionTime time.Duration, success bool, volume *big.Int) error {
	// Transfers rehydrated from storage may carry no gas quote.
	if gasCost == nil {
		gasCost = new(big.Int)
	}

	r.mu.Lock()
	e, exists := r.entries[name]
	if !exists {
		r.mu.Unlock()
		return ErrBridgeNotRegistered
	}

	e.info.TotalTransfers++
	if !success {
		e.info.TotalFailures++
	}
	if volume != nil {
		e.info.TotalVolume = new(big.Int).Add(e.info.TotalVolume, volume)
	}

	if e.info.TotalTransfers == 1 {
		e.perf.AvgGasCost = new(big.Int).Set(gasCost)
		e.perf.AvgCompletionTime = completionTime
	} else {
		e.perf.AvgGasCost = ema(e.perf.AvgGasCost, gasCost)
		e.perf.AvgCompletionTime = time.Duration(
			(int64(e.perf.AvgCompletionTime)*9 + int64(completionTime)) / 10,
		)
	}

	succeeded := e.info.TotalTransfers - e.info.TotalFailures
	e.perf.SuccessRateBps = succeeded * 10000 / e.info.TotalTransfers
	e.perf.ReliabilityScore = reliabilityScore(e.perf, e.info)
	score := e.perf.ReliabilityScore
	r.mu.Unlock()

	metrics.AdapterReliability.WithLabelValues(name).Set(float64(score))
	return nil
}

// ema applies the registry's 90/10 smoothing to a big integer series.
func ema(prev, sample *big.Int) *big.Int {
	weighted := new(big.Int).Mul(prev, big.NewInt(9))
	weighted.Add(weighted, sample)
	return weighted.Div(weighted, big.NewInt(10))
}

// reliabilityScore derives a 0-100 score: base success rate, +10 for high
// cumulative volume, -10 for low volume, +5 for fast average completion.
func reliabilityScore(perf *bridge.PerformanceMetrics, info *bridge.BridgeInfo) int64 {
	score := perf.SuccessRateBps / 100

	volume := decimal.NewFromBigInt(info.TotalVolume, 0)
	switch {
	case volume.GreaterThanOrEqual(highVolumeThreshold):
		score += 10
	case volume.LessThan(lowVolumeThreshold):
		score -= 10
	}

	if perf.AvgCompletionTime > 0 && perf.AvgCompletionTime < fastCompletionCutoff {
		score += 5
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// EnabledBridges returns every enabled adapter in registration order.
func (r *Registry) EnabledBridges() []bridge.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]bridge.Adapter, 0, len(r.order))
	for _, name := range r.order {
		if e := r.entries[name]; e.info.Enabled {
			out = append(out, e.adapter)
		}
	}
	return out
}

// BridgesForChain returns adapters that are enabled, healthy and support the
// given chain, in registration order.
func (r *Registry) BridgesForChain(chainID string) []bridge.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]bridge.Adapter, 0, len(r.order))
	for _, name := range r.order {
		e := r.entries[name]
		if !e.info.Enabled || !e.info.Healthy {
			continue
		}
		for _, c := range e.chains {
			if c == chainID {
				out = append(out, e.adapter)
				break
			}
		}
	}
	return out
}

// CandidateBridges returns adapters that are enabled, healthy and support
// both chains of a route, in registration order.
func (r *Registry) CandidateBridges(srcChain, dstChain string) []bridge.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]bridge.Adapter, 0, len(r.order))
	for _, name := range r.order {
		e := r.entries[name]
		if !e.info.Enabled || !e.info.Healthy {
			continue
		}
		if containsString(e.chains, srcChain) && containsString(e.chains, dstChain) {
			out = append(out, e.adapter)
		}
	}
	return out
}

// SupportsChain reports whether the named adapter declares support for a chain.
func (r *Registry) SupportsChain(name, chainID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.entries[name]
	if !exists {
		return false
	}
	return containsString(e.chains, chainID)
}

// BridgeDetails returns copies of the adapter's info and performance records.
func (r *Registry) BridgeDetails(name string) (*bridge.BridgeInfo, *bridge.PerformanceMetrics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.entries[name]
	if !exists {
		return nil, nil, ErrBridgeNotRegistered
	}

	info := *e.info
	info.TotalVolume = new(big.Int).Set(e.info.TotalVolume)
	perf := *e.perf
	perf.AvgGasCost = new(big.Int).Set(e.perf.AvgGasCost)
	return &info, &perf, nil
}

// Adapter returns the adapter registered under name.
func (r *Registry) Adapter(name string) (bridge.Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, exists := r.entries[name]
	if !exists {
		return nil, false
	}
	return e.adapter, true
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
