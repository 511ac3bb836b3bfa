package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/louisbranch/passwallet/internal/platform/errors"
	"github.com/louisbranch/passwallet/internal/services/wallet/storage"
	"github.com/louisbranch/passwallet/internal/services/wallet/webhook"
)

type ssoIssueRequest struct {
	UserID    string `json:"userId"`
	DeviceID  string `json:"deviceId"`
	Platform  string `json:"platform"`
	Timestamp int64  `json:"timestamp"`
}

func (h *Handler) handlePartnerWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidArgument, "read request body", err))
		return
	}
	event, err := webhook.Decode(body)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := h.webhooks.Process(r.Context(), event)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleSSOIssue binds a device to a user the partner bank vouches for. It is
// how a new user gets the access token needed to register a first passkey.
func (h *Handler) handleSSOIssue(w http.ResponseWriter, r *http.Request) {
	var req ssoIssueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.signatures.AuthorizeTimestamp(req.Timestamp); err != nil {
		writeError(w, err)
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		writeError(w, apperrors.New(apperrors.CodeInvalidArgument, "userId is required"))
		return
	}
	if _, err := h.users.GetUser(r.Context(), userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, apperrors.New(apperrors.CodeNotFound, "user not found"))
			return
		}
		writeError(w, err)
		return
	}
	session, err := h.bindDevice(r, userID, req.DeviceID, req.Platform)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}
