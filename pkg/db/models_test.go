package db

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/settlement-switch/pkg/bridge"
)

func TestTransferRecord_GasCostSurvivesRoundTrip(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	original := &bridge.Transfer{
		ID:        "t1",
		Sender:    testSender,
		Recipient: common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		Route: &bridge.Route{
			AdapterName: "sim",
			TokenIn:     "USDC",
			TokenOut:    "USDC",
			AmountIn:    big.NewInt(10_000),
			AmountOut:   big.NewInt(9_970),
			SrcChain:    "ethereum",
			DstChain:    "arbitrum",
			Metrics: bridge.RouteMetrics{
				EstimatedGasCost: big.NewInt(250),
			},
			Deadline: t0.Add(5 * time.Minute),
		},
		Status:      bridge.TransferStatusPending,
		InitiatedAt: t0,
	}

	got := toRecord(original).toTransfer()
	if got.Route.Metrics.EstimatedGasCost == nil {
		t.Fatal("gas cost should survive the row round trip")
	}
	if got.Route.Metrics.EstimatedGasCost.Cmp(big.NewInt(250)) != 0 {
		t.Errorf("expected gas cost 250, got %s", got.Route.Metrics.EstimatedGasCost)
	}

	// Rows written before the quote was recorded rehydrate without one.
	rec := toRecord(original)
	rec.GasCost = ""
	if legacy := rec.toTransfer(); legacy.Route.Metrics.EstimatedGasCost != nil {
		t.Errorf("empty column should rehydrate as a nil gas cost, got %s", legacy.Route.Metrics.EstimatedGasCost)
	}
}
