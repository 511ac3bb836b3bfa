package httpapi

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/louisbranch/passwallet/internal/platform/errors"
	"github.com/louisbranch/passwallet/internal/platform/requestctx"
	"github.com/louisbranch/passwallet/internal/services/wallet/merchant"
	"github.com/louisbranch/passwallet/internal/services/wallet/payment"
)

type merchantContextKey struct{}

func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	const scheme = "Bearer "
	if len(auth) <= len(scheme) || !strings.EqualFold(auth[:len(scheme)], scheme) {
		return ""
	}
	return strings.TrimSpace(auth[len(scheme):])
}

// withDevice authenticates a device access token and stores the caller's
// user and device ids on the request context.
func (h *Handler) withDevice(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, err := h.authenticateDevice(r)
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r.WithContext(ctx))
	}
}

// withMerchant authenticates a merchant API key.
func (h *Handler) withMerchant(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, err := h.authenticateMerchant(r)
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r.WithContext(ctx))
	}
}

// withParty accepts either a merchant API key or a device access token.
func (h *Handler) withParty(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			ctx context.Context
			err error
		)
		if merchant.KeyFromRequest(r) != "" {
			ctx, err = h.authenticateMerchant(r)
		} else {
			ctx, err = h.authenticateDevice(r)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r.WithContext(ctx))
	}
}

func (h *Handler) authenticateDevice(r *http.Request) (context.Context, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, apperrors.New(apperrors.CodeUnauthenticated, "access token is required")
	}
	claims, err := h.tokens.ValidateAccess(token)
	if err != nil {
		return nil, err
	}
	ctx := requestctx.WithUserID(r.Context(), claims.UserID)
	return requestctx.WithDeviceID(ctx, claims.DeviceID), nil
}

func (h *Handler) authenticateMerchant(r *http.Request) (context.Context, error) {
	key := merchant.KeyFromRequest(r)
	if key == "" {
		return nil, apperrors.New(apperrors.CodeUnauthenticated, "merchant api key is required")
	}
	m, err := h.merchants.Authenticate(r.Context(), key)
	if err != nil {
		return nil, err
	}
	return context.WithValue(r.Context(), merchantContextKey{}, m.ID), nil
}

func merchantIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(merchantContextKey{}).(string)
	return value
}

// partyFromContext returns whichever party authenticated the request.
func partyFromContext(ctx context.Context) payment.Party {
	if merchantID := merchantIDFromContext(ctx); merchantID != "" {
		return payment.MerchantParty(merchantID)
	}
	return payment.UserParty(requestctx.UserIDFromContext(ctx))
}
