package httpapi

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/louisbranch/passwallet/internal/services/wallet/devicetoken"
	"github.com/louisbranch/passwallet/internal/services/wallet/merchant"
	"github.com/louisbranch/passwallet/internal/services/wallet/passkey"
	"github.com/louisbranch/passwallet/internal/services/wallet/payment"
	"github.com/louisbranch/passwallet/internal/services/wallet/ratelimit"
	"github.com/louisbranch/passwallet/internal/services/wallet/signature"
	"github.com/louisbranch/passwallet/internal/services/wallet/storage"
	"github.com/louisbranch/passwallet/internal/services/wallet/webhook"
)

// Deps are the services the API fronts. Limiters are optional.
type Deps struct {
	Passkeys       *passkey.Service
	Tokens         *devicetoken.Service
	Payments       *payment.Service
	Merchants      *merchant.Service
	Webhooks       *webhook.Processor
	Signatures     *signature.Verifier
	Users          storage.UserStore
	PasskeyLimiter *ratelimit.Limiter
	RefreshLimiter *ratelimit.Limiter
}

// Handler serves the wallet HTTP API.
type Handler struct {
	passkeys       *passkey.Service
	tokens         *devicetoken.Service
	payments       *payment.Service
	merchants      *merchant.Service
	webhooks       *webhook.Processor
	signatures     *signature.Verifier
	users          storage.UserStore
	passkeyLimiter *ratelimit.Limiter
	refreshLimiter *ratelimit.Limiter
}

// New validates deps and builds a Handler.
func New(deps Deps) (*Handler, error) {
	if deps.Passkeys == nil || deps.Tokens == nil || deps.Payments == nil {
		return nil, errors.New("passkey, token, and payment services are required")
	}
	if deps.Merchants == nil || deps.Webhooks == nil || deps.Signatures == nil || deps.Users == nil {
		return nil, errors.New("merchant, webhook, signature, and user dependencies are required")
	}
	return &Handler{
		passkeys:       deps.Passkeys,
		tokens:         deps.Tokens,
		payments:       deps.Payments,
		merchants:      deps.Merchants,
		webhooks:       deps.Webhooks,
		signatures:     deps.Signatures,
		users:          deps.Users,
		passkeyLimiter: deps.PasskeyLimiter,
		refreshLimiter: deps.RefreshLimiter,
	}, nil
}

// Routes builds the API router.
func (h *Handler) Routes() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: "route not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method_not_allowed", Message: "method not allowed"})
	})

	r.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()

	passkeys := v1.PathPrefix("/passkeys").Subrouter()
	passkeys.HandleFunc("/register/options", h.limited(h.passkeyLimiter, h.withDevice(h.handleRegisterOptions))).Methods(http.MethodPost)
	passkeys.HandleFunc("/register/verify", h.limited(h.passkeyLimiter, h.withDevice(h.handleRegisterVerify))).Methods(http.MethodPost)
	passkeys.HandleFunc("/login/options", h.limited(h.passkeyLimiter, h.handleLoginOptions)).Methods(http.MethodPost)
	passkeys.HandleFunc("/login/verify", h.limited(h.passkeyLimiter, h.handleLoginVerify)).Methods(http.MethodPost)
	passkeys.HandleFunc("", h.withDevice(h.handleListPasskeys)).Methods(http.MethodGet)
	passkeys.HandleFunc("/{credentialID}", h.withDevice(h.handleDeletePasskey)).Methods(http.MethodDelete)

	tokens := v1.PathPrefix("/tokens").Subrouter()
	tokens.HandleFunc("/refresh", h.limited(h.refreshLimiter, h.handleRefresh)).Methods(http.MethodPost)
	tokens.HandleFunc("/logout", h.withDevice(h.handleLogout)).Methods(http.MethodPost)
	tokens.HandleFunc("/logout-all", h.withDevice(h.handleLogoutAll)).Methods(http.MethodPost)

	payments := v1.PathPrefix("/payments").Subrouter()
	payments.HandleFunc("", h.withMerchant(h.handleCreatePayment)).Methods(http.MethodPost)
	payments.HandleFunc("/{id}", h.withParty(h.handlePaymentStatus)).Methods(http.MethodGet)
	payments.HandleFunc("/{id}/public", h.handlePaymentPublic).Methods(http.MethodGet)
	payments.HandleFunc("/{id}/claim", h.withDevice(h.handleClaimPayment)).Methods(http.MethodPost)
	payments.HandleFunc("/{id}/approve", h.withDevice(h.handleApprovePayment)).Methods(http.MethodPost)
	payments.HandleFunc("/{id}/complete", h.withMerchant(h.handleCompletePayment)).Methods(http.MethodPost)
	payments.HandleFunc("/{id}/cancel", h.withParty(h.handleCancelPayment)).Methods(http.MethodPost)
	payments.HandleFunc("/{id}/void", h.withMerchant(h.handleVoidPayment)).Methods(http.MethodPost)

	signed := signature.Middleware(h.signatures, writeError)
	v1.Handle("/webhooks/partner", signed(http.HandlerFunc(h.handlePartnerWebhook))).Methods(http.MethodPost)
	v1.Handle("/sso/issue", signed(http.HandlerFunc(h.handleSSOIssue))).Methods(http.MethodPost)

	return r
}

func (h *Handler) limited(limiter *ratelimit.Limiter, next http.HandlerFunc) http.HandlerFunc {
	if limiter == nil {
		return next
	}
	return limiter.Middleware(writeError)(next).ServeHTTP
}
