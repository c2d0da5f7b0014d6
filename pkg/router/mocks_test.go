package router

import (
	"context"
	"math/big"

	"github.com/chainsafe/settlement-switch/pkg/bridge"
)

// mockAdapter is a function-field test double for bridge.Adapter.
type mockAdapter struct {
	name string

	SupportsRouteFunc         func(tokenIn, tokenOut, srcChain, dstChain string) bool
	GetRouteMetricsFunc       func(ctx context.Context, tokenIn, tokenOut string, amount *big.Int, srcChain, dstChain string) (*bridge.RouteMetrics, error)
	GetAvailableLiquidityFunc func(ctx context.Context, tokenIn, tokenOut, srcChain, dstChain string) (*big.Int, error)

	metricsCalls int
}

func (m *mockAdapter) Name() string { return m.name }

func (m *mockAdapter) SupportsRoute(tokenIn, tokenOut, srcChain, dstChain string) bool {
	if m.SupportsRouteFunc != nil {
		return m.SupportsRouteFunc(tokenIn, tokenOut, srcChain, dstChain)
	}
	return true
}

func (m *mockAdapter) GetRouteMetrics(ctx context.Context, tokenIn, tokenOut string, amount *big.Int, srcChain, dstChain string) (*bridge.RouteMetrics, error) {
	m.metricsCalls++
	if m.GetRouteMetricsFunc != nil {
		return m.GetRouteMetricsFunc(ctx, tokenIn, tokenOut, amount, srcChain, dstChain)
	}
	return nil, bridge.ErrUnsupportedRoute
}

func (m *mockAdapter) ExecuteBridge(context.Context, *bridge.Route, string, []byte) (string, error) {
	return "", nil
}

func (m *mockAdapter) GetTransfer(context.Context, string) (*bridge.Transfer, error) {
	return nil, bridge.ErrTransferNotFound
}

func (m *mockAdapter) EstimateGas(context.Context, *bridge.Route) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (m *mockAdapter) GetAvailableLiquidity(ctx context.Context, tokenIn, tokenOut, srcChain, dstChain string) (*big.Int, error) {
	if m.GetAvailableLiquidityFunc != nil {
		return m.GetAvailableLiquidityFunc(ctx, tokenIn, tokenOut, srcChain, dstChain)
	}
	return big.NewInt(0), nil
}

func (m *mockAdapter) GetSuccessRate(context.Context, string, string) (int64, error) {
	return 100, nil
}

func (m *mockAdapter) IsHealthy(context.Context) bool { return true }

func (m *mockAdapter) GetTransferLimits(string, string) (*big.Int, *big.Int) {
	return nil, nil
}

var _ bridge.Adapter = (*mockAdapter)(nil)

// mockRegistry is a function-field test double for RegistryView.
type mockRegistry struct {
	CandidateBridgesFunc func(srcChain, dstChain string) []bridge.Adapter
}

func (m *mockRegistry) CandidateBridges(srcChain, dstChain string) []bridge.Adapter {
	if m.CandidateBridgesFunc != nil {
		return m.CandidateBridgesFunc(srcChain, dstChain)
	}
	return nil
}

// mockTopology accepts every chain and token unless overridden.
type mockTopology struct {
	ChainSupportedFunc func(chainID string) bool
	TokenSupportedFunc func(chainID, token string) bool
}

func (m *mockTopology) ChainSupported(chainID string) bool {
	if m.ChainSupportedFunc != nil {
		return m.ChainSupportedFunc(chainID)
	}
	return true
}

func (m *mockTopology) TokenSupported(chainID, token string) bool {
	if m.TokenSupportedFunc != nil {
		return m.TokenSupportedFunc(chainID, token)
	}
	return true
}
