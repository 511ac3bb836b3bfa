package httpapi

import (
	"net/http"

	"github.com/louisbranch/passwallet/internal/platform/requestctx"
)

// HeaderDeviceCredential carries the device credential issued at registration.
const HeaderDeviceCredential = "X-Device-Credential"

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type revokeResponse struct {
	Revoked int64 `json:"revoked"`
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	pair, err := h.tokens.Refresh(r.Context(), req.RefreshToken, r.Header.Get(HeaderDeviceCredential))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	revoked, err := h.tokens.Revoke(ctx, requestctx.UserIDFromContext(ctx), requestctx.DeviceIDFromContext(ctx))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, revokeResponse{Revoked: revoked})
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	revoked, err := h.tokens.RevokeAll(ctx, requestctx.UserIDFromContext(ctx))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, revokeResponse{Revoked: revoked})
}
