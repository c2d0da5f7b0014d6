// Package service exposes the settlement switch over HTTP.
package service

import (
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/settlement-switch/pkg/app/errors"
	apphttp "github.com/chainsafe/settlement-switch/pkg/app/http"
	"github.com/chainsafe/settlement-switch/pkg/auth"
	"github.com/chainsafe/settlement-switch/pkg/bridge"
	"github.com/chainsafe/settlement-switch/pkg/db"
	"github.com/chainsafe/settlement-switch/pkg/router"
	"github.com/chainsafe/settlement-switch/pkg/settlement"
)

const maxBodyBytes = 1 << 20

var validate = validator.New()

// HTTP wraps the switch to provide HTTP endpoints.
type HTTP struct {
	sw     *settlement.Switch
	logger *zap.Logger
}

// RegisterRoutes registers the switch endpoints on the given chi router.
// Admin endpoints are mounted under /admin behind the JWT middleware.
func RegisterRoutes(r chi.Router, sw *settlement.Switch, jwtValidator *auth.JWTValidator, logger *zap.Logger) {
	h := &HTTP{sw: sw, logger: logger}

	r.Post("/routes", apphttp.HandleError(h.findRoutes))
	r.Post("/routes/multipath", apphttp.HandleError(h.findMultiPathRoute))
	r.Post("/transfers", apphttp.HandleError(h.executeTransfer))
	r.Post("/transfers/multipath", apphttp.HandleError(h.executeMultiPathTransfer))
	r.Get("/transfers/{id}", apphttp.HandleError(h.getTransfer))
	r.Get("/transfers", apphttp.HandleError(h.transferHistory))
	r.Get("/limits/{address}", apphttp.HandleError(h.userLimits))

	r.Route("/admin", func(ar chi.Router) {
		ar.Use(CapabilityMiddleware(jwtValidator, logger))
		ar.Post("/pause", apphttp.HandleError(h.pause))
		ar.Post("/unpause", apphttp.HandleError(h.unpause))
		ar.Put("/chains/{id}", apphttp.HandleError(h.setChainConfig))
		ar.Put("/users/{address}/limit", apphttp.HandleError(h.setUserDailyLimit))
		ar.Put("/users/{address}/whitelist", apphttp.HandleError(h.setWhitelisted))
		ar.Put("/users/{address}/blacklist", apphttp.HandleError(h.setBlacklisted))
		ar.Put("/cache-ttl", apphttp.HandleError(h.setCacheTTL))
		ar.Post("/bridges/{name}/enable", apphttp.HandleError(h.enableBridge))
		ar.Post("/bridges/{name}/disable", apphttp.HandleError(h.disableBridge))
		ar.Post("/transfers/{id}/refund", apphttp.HandleError(h.refundTransfer))
	})
}

// routeRequest is the payload for route queries and auto-routed transfers.
type routeRequest struct {
	TokenIn   string `json:"token_in" validate:"required"`
	TokenOut  string `json:"token_out" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
	SrcChain  string `json:"src_chain" validate:"required"`
	DstChain  string `json:"dst_chain" validate:"required"`
	Mode      string `json:"mode" validate:"required,oneof=cheapest fastest balanced"`
	MaxRoutes int    `json:"max_routes" validate:"omitempty,min=1,max=10"`
}

type transferRequest struct {
	routeRequest
	Sender    string `json:"sender" validate:"required,eth_addr"`
	Recipient string `json:"recipient" validate:"required,eth_addr"`
	AuthData  string `json:"auth_data"`
}

func (h *HTTP) findRoutes(w http.ResponseWriter, r *http.Request) error {
	var req routeRequest
	if err := decode(r, &req); err != nil {
		return err
	}

	rreq, err := req.toRouterRequest()
	if err != nil {
		return err
	}

	maxRoutes := req.MaxRoutes
	if maxRoutes == 0 {
		maxRoutes = 1
	}
	routes, err := h.sw.FindMultipleRoutes(r.Context(), rreq, maxRoutes)
	if err != nil {
		return mapErr(err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"routes": toRouteResponses(routes)})
	return nil
}

func (h *HTTP) findMultiPathRoute(w http.ResponseWriter, r *http.Request) error {
	var req routeRequest
	if err := decode(r, &req); err != nil {
		return err
	}

	rreq, err := req.toRouterRequest()
	if err != nil {
		return err
	}

	mp, err := h.sw.FindMultiPathRoute(r.Context(), rreq)
	if err != nil {
		return mapErr(err)
	}
	writeJSON(w, http.StatusOK, toMultiPathResponse(mp))
	return nil
}

func (h *HTTP) executeTransfer(w http.ResponseWriter, r *http.Request) error {
	var req transferRequest
	if err := decode(r, &req); err != nil {
		return err
	}

	rreq, err := req.toRouterRequest()
	if err != nil {
		return err
	}

	t, err := h.sw.BridgeWithAutoRoute(
		r.Context(),
		common.HexToAddress(req.Sender),
		rreq,
		common.HexToAddress(req.Recipient),
		[]byte(req.AuthData),
	)
	if err != nil {
		// An adapter rejection after custody leaves a FAILED ledger entry;
		// the caller needs its id to request a refund.
		if t != nil {
			writeFailedTransfer(w, err, t)
			return nil
		}
		return mapErr(err)
	}
	writeJSON(w, http.StatusCreated, toTransferResponse(t))
	return nil
}

func (h *HTTP) executeMultiPathTransfer(w http.ResponseWriter, r *http.Request) error {
	var req transferRequest
	if err := decode(r, &req); err != nil {
		return err
	}

	rreq, err := req.toRouterRequest()
	if err != nil {
		return err
	}

	mp, err := h.sw.FindMultiPathRoute(r.Context(), rreq)
	if err != nil {
		return mapErr(err)
	}

	transfers, err := h.sw.ExecuteMultiPathBridge(
		r.Context(),
		common.HexToAddress(req.Sender),
		mp,
		common.HexToAddress(req.Recipient),
		[]byte(req.AuthData),
	)
	if err != nil && !errors.Is(err, settlement.ErrMultiPathExecutionFailed) {
		return mapErr(err)
	}

	status := http.StatusCreated
	if err != nil {
		// Some legs settled; the caller gets the partial result.
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, map[string]any{"transfers": toTransferResponses(transfers)})
	return nil
}

func (h *HTTP) getTransfer(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	t, err := h.sw.SyncTransferStatus(r.Context(), id)
	if err != nil {
		return mapErr(err)
	}
	writeJSON(w, http.StatusOK, toTransferResponse(t))
	return nil
}

func (h *HTTP) transferHistory(w http.ResponseWriter, r *http.Request) error {
	sender := r.URL.Query().Get("sender")
	if !common.IsHexAddress(sender) {
		return apperrors.BadRequestError(nil, "sender must be a hex address")
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return apperrors.BadRequestError(err, "invalid limit")
		}
		limit = n
	}

	transfers, err := h.sw.History(r.Context(), common.HexToAddress(sender), limit)
	if err != nil {
		return mapErr(err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"transfers": toTransferResponses(transfers)})
	return nil
}

func (h *HTTP) userLimits(w http.ResponseWriter, r *http.Request) error {
	addr := chi.URLParam(r, "address")
	if !common.IsHexAddress(addr) {
		return apperrors.BadRequestError(nil, "address must be a hex address")
	}
	writeJSON(w, http.StatusOK, toUserLimitsResponse(h.sw.UserLimits(common.HexToAddress(addr))))
	return nil
}

func (req routeRequest) toRouterRequest() (router.Request, error) {
	if err := validate.Struct(req); err != nil {
		return router.Request{}, apperrors.BadRequestError(err, "invalid request")
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		return router.Request{}, apperrors.BadRequestError(nil, "amount must be a positive integer string")
	}
	return router.Request{
		TokenIn:  req.TokenIn,
		TokenOut: req.TokenOut,
		Amount:   amount,
		SrcChain: req.SrcChain,
		DstChain: req.DstChain,
		Mode:     bridge.RoutingMode(req.Mode),
	}, nil
}

func decode(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeFailedTransfer reports an execution error together with the ledger
// entry it left behind.
func writeFailedTransfer(w http.ResponseWriter, err error, t *bridge.Transfer) {
	status := http.StatusInternalServerError
	message := "Internal Server Error"
	var svcErr *apperrors.ServiceError
	if errors.As(mapErr(err), &svcErr) {
		status = svcErr.StatusCode()
		message = svcErr.Message
	}
	writeJSON(w, status, map[string]any{
		"error":    message,
		"code":     status,
		"transfer": toTransferResponse(t),
	})
}

// mapErr translates switch errors into HTTP service errors.
func mapErr(err error) error {
	switch {
	case errors.Is(err, router.ErrRouteNotFound),
		errors.Is(err, db.ErrTransferNotFound),
		errors.Is(err, bridge.ErrTransferNotFound),
		errors.Is(err, settlement.ErrAdapterNotRegistered):
		return apperrors.ResourceNotFoundError(err, err.Error())
	case errors.Is(err, router.ErrChainNotSupported),
		errors.Is(err, router.ErrTokenNotSupported),
		errors.Is(err, router.ErrInvalidMode),
		errors.Is(err, settlement.ErrInvalidAmount),
		errors.Is(err, settlement.ErrInvalidRecipient),
		errors.Is(err, settlement.ErrInvalidRoute),
		errors.Is(err, settlement.ErrRouteExpired),
		errors.Is(err, bridge.ErrUnsupportedRoute),
		errors.Is(err, bridge.ErrAmountBelowMinimum),
		errors.Is(err, bridge.ErrAmountAboveMaximum):
		return apperrors.BadRequestError(err, err.Error())
	case errors.Is(err, settlement.ErrBlacklisted):
		return apperrors.ForbiddenError(err, err.Error())
	case errors.Is(err, settlement.ErrPaused),
		errors.Is(err, settlement.ErrTransferTooFrequent),
		errors.Is(err, settlement.ErrDailyLimitExceeded),
		errors.Is(err, settlement.ErrNotRefundable),
		errors.Is(err, bridge.ErrInsufficientLiquidity),
		errors.Is(err, bridge.ErrBridgeInactive):
		return apperrors.ConflictError(err, err.Error())
	case errors.Is(err, auth.ErrCapabilityRequired):
		return apperrors.ForbiddenError(err, err.Error())
	default:
		return apperrors.GeneralError(err)
	}
}
