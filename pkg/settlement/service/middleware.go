package service

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/chainsafe/settlement-switch/pkg/app/errors"
	apphttp "github.com/chainsafe/settlement-switch/pkg/app/http"
	"github.com/chainsafe/settlement-switch/pkg/auth"
)

// CapabilityMiddleware validates the bearer token against the JWKS endpoint
// and attaches the resulting capability to the request context. Handlers
// still check the required role themselves.
func CapabilityMiddleware(v *auth.JWTValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(nil, "bearer token required"))
				return
			}

			claims, err := v.ValidateToken(token)
			if err != nil {
				logger.Debug("token validation failed", zap.Error(err))
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(err, "invalid token"))
				return
			}

			ctx := auth.WithCapability(r.Context(), auth.CapabilityFromClaims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
