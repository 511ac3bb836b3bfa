package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	apperrors "github.com/louisbranch/passwallet/internal/platform/errors"
	"github.com/louisbranch/passwallet/internal/platform/requestctx"
	"github.com/louisbranch/passwallet/internal/services/wallet/payment"
)

type createPaymentRequest struct {
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	OrderRef   string `json:"orderRef"`
	TTLSeconds int64  `json:"ttlSeconds"`
}

type approvePaymentRequest struct {
	CardID string `json:"cardId"`
}

type completePaymentRequest struct {
	Token string `json:"token"`
}

func (h *Handler) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.TTLSeconds < 0 {
		writeError(w, apperrors.New(apperrors.CodeInvalidArgument, "ttlSeconds must not be negative"))
		return
	}
	view, err := h.payments.Create(r.Context(), payment.CreateInput{
		MerchantID: merchantIDFromContext(r.Context()),
		Amount:     req.Amount,
		Currency:   req.Currency,
		OrderRef:   req.OrderRef,
		TTL:        time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	view, err := h.payments.Status(r.Context(), partyFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handlePaymentPublic(w http.ResponseWriter, r *http.Request) {
	view, err := h.payments.Public(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleClaimPayment(w http.ResponseWriter, r *http.Request) {
	view, err := h.payments.Claim(r.Context(), requestctx.UserIDFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleApprovePayment(w http.ResponseWriter, r *http.Request) {
	var req approvePaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.CardID == "" {
		writeError(w, apperrors.New(apperrors.CodeInvalidArgument, "cardId is required"))
		return
	}
	approval, err := h.payments.Approve(r.Context(), requestctx.UserIDFromContext(r.Context()), mux.Vars(r)["id"], req.CardID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, approval)
}

func (h *Handler) handleCompletePayment(w http.ResponseWriter, r *http.Request) {
	var req completePaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	settlement, err := h.payments.Complete(r.Context(), merchantIDFromContext(r.Context()), mux.Vars(r)["id"], req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settlement)
}

func (h *Handler) handleCancelPayment(w http.ResponseWriter, r *http.Request) {
	view, err := h.payments.Cancel(r.Context(), partyFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleVoidPayment(w http.ResponseWriter, r *http.Request) {
	view, err := h.payments.Void(r.Context(), merchantIDFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
