package service

import (
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	apperrors "github.com/chainsafe/settlement-switch/pkg/app/errors"
	"github.com/chainsafe/settlement-switch/pkg/auth"
)

type pauseRequest struct {
	Reason string `json:"reason"`
}

type chainConfigRequest struct {
	Tokens []string `json:"tokens"`
}

type dailyLimitRequest struct {
	// Limit is a wei amount; null restores the configured default.
	Limit *string `json:"limit"`
}

type flagRequest struct {
	Enabled bool `json:"enabled"`
}

type cacheTTLRequest struct {
	TTLSeconds int `json:"ttl_seconds" validate:"required,min=1"`
}

type disableBridgeRequest struct {
	Reason string `json:"reason"`
}

func (h *HTTP) pause(w http.ResponseWriter, r *http.Request) error {
	c, err := capability(r)
	if err != nil {
		return err
	}
	var req pauseRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	if err := h.sw.Pause(r.Context(), c, req.Reason); err != nil {
		return mapErr(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) unpause(w http.ResponseWriter, r *http.Request) error {
	c, err := capability(r)
	if err != nil {
		return err
	}
	if err := h.sw.Unpause(r.Context(), c); err != nil {
		return mapErr(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) setChainConfig(w http.ResponseWriter, r *http.Request) error {
	c, err := capability(r)
	if err != nil {
		return err
	}
	var req chainConfigRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	chainID := chi.URLParam(r, "id")
	if err := h.sw.SetChainConfig(r.Context(), c, chainID, req.Tokens); err != nil {
		return mapErr(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) setUserDailyLimit(w http.ResponseWriter, r *http.Request) error {
	c, err := capability(r)
	if err != nil {
		return err
	}
	user, err := pathAddress(r)
	if err != nil {
		return err
	}
	var req dailyLimitRequest
	if err := decode(r, &req); err != nil {
		return err
	}

	var limit *big.Int
	if req.Limit != nil {
		v, ok := new(big.Int).SetString(*req.Limit, 10)
		if !ok || v.Sign() < 0 {
			return apperrors.BadRequestError(nil, "limit must be a non-negative integer string")
		}
		limit = v
	}
	if err := h.sw.SetUserDailyLimit(r.Context(), c, user, limit); err != nil {
		return mapErr(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) setWhitelisted(w http.ResponseWriter, r *http.Request) error {
	c, err := capability(r)
	if err != nil {
		return err
	}
	user, err := pathAddress(r)
	if err != nil {
		return err
	}
	var req flagRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	if err := h.sw.SetWhitelisted(r.Context(), c, user, req.Enabled); err != nil {
		return mapErr(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) setBlacklisted(w http.ResponseWriter, r *http.Request) error {
	c, err := capability(r)
	if err != nil {
		return err
	}
	user, err := pathAddress(r)
	if err != nil {
		return err
	}
	var req flagRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	if err := h.sw.SetBlacklisted(r.Context(), c, user, req.Enabled); err != nil {
		return mapErr(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) setCacheTTL(w http.ResponseWriter, r *http.Request) error {
	c, err := capability(r)
	if err != nil {
		return err
	}
	var req cacheTTLRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	if err := validate.Struct(req); err != nil {
		return apperrors.BadRequestError(err, "invalid request")
	}
	if err := h.sw.SetCacheTTL(r.Context(), c, time.Duration(req.TTLSeconds)*time.Second); err != nil {
		return mapErr(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) enableBridge(w http.ResponseWriter, r *http.Request) error {
	c, err := capability(r)
	if err != nil {
		return err
	}
	if err := h.sw.EnableBridge(r.Context(), c, chi.URLParam(r, "name")); err != nil {
		return mapErr(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) disableBridge(w http.ResponseWriter, r *http.Request) error {
	c, err := capability(r)
	if err != nil {
		return err
	}
	var req disableBridgeRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	if err := h.sw.DisableBridge(r.Context(), c, chi.URLParam(r, "name"), req.Reason); err != nil {
		return mapErr(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) refundTransfer(w http.ResponseWriter, r *http.Request) error {
	c, err := capability(r)
	if err != nil {
		return err
	}
	t, err := h.sw.RefundTransfer(r.Context(), c, chi.URLParam(r, "id"))
	if err != nil {
		return mapErr(err)
	}
	writeJSON(w, http.StatusOK, t)
	return nil
}

func capability(r *http.Request) (auth.Capability, error) {
	c, ok := auth.CapabilityFromContext(r.Context())
	if !ok {
		return auth.Capability{}, apperrors.UnAuthorizedError(auth.ErrCapabilityRequired, "authentication required")
	}
	return c, nil
}

func pathAddress(r *http.Request) (common.Address, error) {
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		return common.Address{}, apperrors.BadRequestError(nil, "address must be a hex address")
	}
	return common.HexToAddress(raw), nil
}
