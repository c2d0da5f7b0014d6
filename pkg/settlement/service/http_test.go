package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/settlement-switch/pkg/bridge"
	"github.com/chainsafe/settlement-switch/pkg/bridge/sim"
	"github.com/chainsafe/settlement-switch/pkg/config"
	"github.com/chainsafe/settlement-switch/pkg/custody"
	"github.com/chainsafe/settlement-switch/pkg/db"
	"github.com/chainsafe/settlement-switch/pkg/eventbus"
	"github.com/chainsafe/settlement-switch/pkg/fees"
	"github.com/chainsafe/settlement-switch/pkg/registry"
	"github.com/chainsafe/settlement-switch/pkg/router"
	"github.com/chainsafe/settlement-switch/pkg/settlement"
)

const (
	testSender    = "0x1111111111111111111111111111111111111111"
	testRecipient = "0x2222222222222222222222222222222222222222"
	testCollector = "0x3333333333333333333333333333333333333333"
)

func newTestServer(t *testing.T) (http.Handler, *sim.Adapter) {
	t.Helper()
	logger := zap.NewNop()
	bus := eventbus.NewMemoryBus(logger)

	reg := registry.New(registry.Config{
		HealthCheckInterval: time.Minute,
		FailureThresholdBps: 1000,
		MinVolumeForHealth:  5,
	}, bus, logger)

	adapter := sim.New(sim.Config{
		Name:        "hop",
		GasCostWei:  big.NewInt(100),
		TimeMinutes: 5,
		SuccessRate: 99,
	})
	adapter.AddLiquidity("USDC", "USDC", "ethereum", "arbitrum", big.NewInt(1_000_000))
	err := reg.RegisterBridge(context.Background(), adapter, []string{"ethereum", "arbitrum"}, []string{"USDC"})
	require.NoError(t, err)

	topo := settlement.NewTopology([]config.ChainConfig{
		{ID: "ethereum", Name: "Ethereum", Tokens: []string{"USDC"}},
		{ID: "arbitrum", Name: "Arbitrum", Tokens: []string{"USDC"}},
	})
	calc := router.New(reg, topo, big.NewInt(1), 5*time.Minute, logger)

	vault := custody.NewMemoryVault()
	vault.Mint(common.HexToAddress(testSender), "USDC", "ethereum", big.NewInt(10_000_000))

	sw := settlement.New(settlement.Config{
		CacheTTL:            time.Minute,
		MinTransferInterval: 0,
		DailyLimit:          big.NewInt(100_000_000),
		MaxSplitLegs:        3,
	}, reg, calc, db.NewMemoryLedger(), vault,
		fees.NewBpsEngine(30, common.HexToAddress(testCollector), vault), topo, bus, logger)

	r := chi.NewRouter()
	RegisterRoutes(r, sw, nil, logger)
	return r, adapter
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func routeBody(amount string) map[string]any {
	return map[string]any{
		"token_in":  "USDC",
		"token_out": "USDC",
		"amount":    amount,
		"src_chain": "ethereum",
		"dst_chain": "arbitrum",
		"mode":      "cheapest",
	}
}

func transferBody(amount string) map[string]any {
	body := routeBody(amount)
	body["sender"] = testSender
	body["recipient"] = testRecipient
	return body
}

func TestHTTP_FindRoutes(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := postJSON(t, handler, "/routes", routeBody("10000"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got struct {
		Routes []struct {
			AdapterName string `json:"adapter_name"`
			AmountIn    string `json:"amount_in"`
			AmountOut   string `json:"amount_out"`
			Metrics     struct {
				AvailableLiquidity string `json:"available_liquidity"`
			} `json:"metrics"`
		} `json:"routes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Routes, 1)
	assert.Equal(t, "hop", got.Routes[0].AdapterName)
	assert.Equal(t, "10000", got.Routes[0].AmountIn)
	assert.Equal(t, "10000", got.Routes[0].AmountOut, "fee-free adapter passes the amount through")
	assert.Equal(t, "1000000", got.Routes[0].Metrics.AvailableLiquidity)
}

func TestHTTP_FindRoutes_Errors(t *testing.T) {
	handler, _ := newTestServer(t)

	tests := []struct {
		name     string
		mutate   func(map[string]any)
		wantCode int
	}{
		{"invalid mode", func(b map[string]any) { b["mode"] = "wormhole" }, http.StatusBadRequest},
		{"non-integer amount", func(b map[string]any) { b["amount"] = "12.5" }, http.StatusBadRequest},
		{"unsupported chain", func(b map[string]any) { b["dst_chain"] = "solana" }, http.StatusBadRequest},
		{"beyond liquidity", func(b map[string]any) { b["amount"] = "2000000" }, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := routeBody("10000")
			tt.mutate(body)
			rec := postJSON(t, handler, "/routes", body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/routes", bytes.NewBufferString("{invalid"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTP_ExecuteAndFetchTransfer(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := postJSON(t, handler, "/transfers", transferBody("10000"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Route  struct {
			AmountIn string `json:"amount_in"`
		} `json:"route"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, string(bridge.TransferStatusCompleted), created.Status)
	assert.Equal(t, "10000", created.Route.AmountIn)

	req := httptest.NewRequest(http.MethodGet, "/transfers/"+created.ID, nil)
	getRec := httptest.NewRecorder()
	handler.ServeHTTP(getRec, req)
	assert.Equal(t, http.StatusOK, getRec.Code, getRec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/transfers/no-such-id", nil)
	missRec := httptest.NewRecorder()
	handler.ServeHTTP(missRec, req)
	assert.Equal(t, http.StatusNotFound, missRec.Code)
}

func TestHTTP_TransferHistory(t *testing.T) {
	handler, _ := newTestServer(t)

	for i := 0; i < 2; i++ {
		rec := postJSON(t, handler, "/transfers", transferBody("10000"))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/transfers?sender=%s&limit=1", testSender), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got struct {
		Transfers []json.RawMessage
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Transfers, 1, "limit should apply")

	req = httptest.NewRequest(http.MethodGet, "/transfers?sender=not-an-address", nil)
	badRec := httptest.NewRecorder()
	handler.ServeHTTP(badRec, req)
	assert.Equal(t, http.StatusBadRequest, badRec.Code)
}

func TestHTTP_UserLimits(t *testing.T) {
	handler, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/limits/"+testSender, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/limits/nope", nil)
	badRec := httptest.NewRecorder()
	handler.ServeHTTP(badRec, req)
	assert.Equal(t, http.StatusBadRequest, badRec.Code)
}

func TestHTTP_AdminRequiresBearerToken(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := postJSON(t, handler, "/admin/pause", map[string]any{"reason": "drill"})
	require.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())

	var got struct {
		Error string `json:"error"`
		Code  int    `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "bearer token required", got.Error)
	assert.Equal(t, http.StatusUnauthorized, got.Code)
}

func TestHTTP_ExecuteTransfer_AdapterFailure(t *testing.T) {
	handler, adapter := newTestServer(t)
	adapter.FailNextExecute(bridge.ErrBridgeInactive)

	rec := postJSON(t, handler, "/transfers", transferBody("10000"))
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	var got struct {
		Error    string `json:"error"`
		Code     int    `json:"code"`
		Transfer struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"transfer"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, http.StatusConflict, got.Code)
	assert.Contains(t, got.Error, "bridge adapter inactive")
	require.NotEmpty(t, got.Transfer.ID, "caller needs the transfer id to request a refund")
	assert.Equal(t, string(bridge.TransferStatusFailed), got.Transfer.Status)

	// The failed entry is fetchable afterwards.
	req := httptest.NewRequest(http.MethodGet, "/transfers/"+got.Transfer.ID, nil)
	getRec := httptest.NewRecorder()
	handler.ServeHTTP(getRec, req)
	assert.Equal(t, http.StatusOK, getRec.Code, getRec.Body.String())
}
