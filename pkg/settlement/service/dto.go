package service

import (
	"math/big"
	"time"

	"github.com/chainsafe/settlement-switch/pkg/bridge"
)

// Response DTOs mirror the request convention: amounts are decimal strings
// so wei-scale values survive JSON intact.

type routeMetricsResponse struct {
	EstimatedGasCost     string `json:"estimated_gas_cost"`
	ProtocolFee          string `json:"protocol_fee"`
	TotalCostWei         string `json:"total_cost_wei"`
	EstimatedTimeMinutes int64  `json:"estimated_time_minutes"`
	AvailableLiquidity   string `json:"available_liquidity"`
	SuccessRate          int64  `json:"success_rate"`
	CongestionLevel      int64  `json:"congestion_level"`
}

type routeResponse struct {
	AdapterName string               `json:"adapter_name"`
	TokenIn     string               `json:"token_in"`
	TokenOut    string               `json:"token_out"`
	AmountIn    string               `json:"amount_in"`
	AmountOut   string               `json:"amount_out"`
	SrcChain    string               `json:"src_chain"`
	DstChain    string               `json:"dst_chain"`
	Metrics     routeMetricsResponse `json:"metrics"`
	Deadline    time.Time            `json:"deadline"`
}

type multiPathResponse struct {
	Routes      []routeResponse `json:"routes"`
	Amounts     []string        `json:"amounts"`
	TotalAmount string          `json:"total_amount"`
}

type transferResponse struct {
	ID                string         `json:"id"`
	AdapterTransferID string         `json:"adapter_transfer_id,omitempty"`
	Sender            string         `json:"sender"`
	Recipient         string         `json:"recipient"`
	Route             *routeResponse `json:"route,omitempty"`
	Status            string         `json:"status"`
	InitiatedAt       time.Time      `json:"initiated_at"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
}

type userLimitsResponse struct {
	DailyTransferred string    `json:"daily_transferred"`
	DayStart         time.Time `json:"day_start"`
	LastTransferAt   time.Time `json:"last_transfer_at"`
	TransferCount    int64     `json:"transfer_count"`
	Whitelisted      bool      `json:"whitelisted"`
}

func bigString(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}

func toRouteResponse(r *bridge.Route) routeResponse {
	return routeResponse{
		AdapterName: r.AdapterName,
		TokenIn:     r.TokenIn,
		TokenOut:    r.TokenOut,
		AmountIn:    bigString(r.AmountIn),
		AmountOut:   bigString(r.AmountOut),
		SrcChain:    r.SrcChain,
		DstChain:    r.DstChain,
		Metrics: routeMetricsResponse{
			EstimatedGasCost:     bigString(r.Metrics.EstimatedGasCost),
			ProtocolFee:          bigString(r.Metrics.ProtocolFee),
			TotalCostWei:         bigString(r.Metrics.TotalCostWei),
			EstimatedTimeMinutes: r.Metrics.EstimatedTimeMinutes,
			AvailableLiquidity:   bigString(r.Metrics.AvailableLiquidity),
			SuccessRate:          r.Metrics.SuccessRate,
			CongestionLevel:      r.Metrics.CongestionLevel,
		},
		Deadline: r.Deadline,
	}
}

func toRouteResponses(routes []*bridge.Route) []routeResponse {
	out := make([]routeResponse, len(routes))
	for i, r := range routes {
		out[i] = toRouteResponse(r)
	}
	return out
}

func toMultiPathResponse(mp *bridge.MultiPathRoute) multiPathResponse {
	amounts := make([]string, len(mp.Amounts))
	for i, a := range mp.Amounts {
		amounts[i] = bigString(a)
	}
	return multiPathResponse{
		Routes:      toRouteResponses(mp.Routes),
		Amounts:     amounts,
		TotalAmount: bigString(mp.TotalAmount),
	}
}

func toTransferResponse(t *bridge.Transfer) transferResponse {
	resp := transferResponse{
		ID:                t.ID,
		AdapterTransferID: t.AdapterTransferID,
		Sender:            t.Sender.Hex(),
		Recipient:         t.Recipient.Hex(),
		Status:            string(t.Status),
		InitiatedAt:       t.InitiatedAt,
	}
	if t.Route != nil {
		route := toRouteResponse(t.Route)
		resp.Route = &route
	}
	if !t.CompletedAt.IsZero() {
		completed := t.CompletedAt
		resp.CompletedAt = &completed
	}
	return resp
}

func toTransferResponses(transfers []*bridge.Transfer) []transferResponse {
	out := make([]transferResponse, len(transfers))
	for i, t := range transfers {
		out[i] = toTransferResponse(t)
	}
	return out
}

func toUserLimitsResponse(l bridge.UserLimits) userLimitsResponse {
	return userLimitsResponse{
		DailyTransferred: bigString(l.DailyTransferred),
		DayStart:         l.DayStart,
		LastTransferAt:   l.LastTransferAt,
		TransferCount:    l.TransferCount,
		Whitelisted:      l.Whitelisted,
	}
}
