package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	apperrors "github.com/louisbranch/passwallet/internal/platform/errors"
	"github.com/louisbranch/passwallet/internal/platform/requestctx"
	"github.com/louisbranch/passwallet/internal/services/wallet/devicetoken"
	"github.com/louisbranch/passwallet/internal/services/wallet/passkey"
)

type ceremonyRequest struct {
	Response json.RawMessage `json:"response"`
}

type loginOptionsRequest struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type loginVerifyRequest struct {
	Response json.RawMessage `json:"response"`
	DeviceID string          `json:"deviceId"`
	Platform string          `json:"platform"`
}

type passkeyResponse struct {
	ID         string     `json:"id"`
	Transports []string   `json:"transports"`
	SignCount  uint32     `json:"signCount"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

// sessionResponse is returned whenever a device is (re)bound and issued tokens.
type sessionResponse struct {
	UserID string                       `json:"userId"`
	Device devicetoken.DeviceCredential `json:"device"`
	Tokens devicetoken.Pair             `json:"tokens"`
}

func toPasskeyResponse(credential passkey.Credential) passkeyResponse {
	transports := make([]string, 0, len(credential.Transports))
	for _, t := range credential.Transports {
		transports = append(transports, t.String())
	}
	return passkeyResponse{
		ID:         credential.ID,
		Transports: transports,
		SignCount:  credential.SignCount,
		CreatedAt:  credential.CreatedAt,
		LastUsedAt: credential.LastUsedAt,
	}
}

func (req ceremonyRequest) response() ([]byte, error) {
	if len(req.Response) == 0 || string(req.Response) == "null" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "response is required")
	}
	return req.Response, nil
}

func (h *Handler) handleRegisterOptions(w http.ResponseWriter, r *http.Request) {
	options, err := h.passkeys.BeginRegistration(r.Context(), requestctx.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, options)
}

func (h *Handler) handleRegisterVerify(w http.ResponseWriter, r *http.Request) {
	var req ceremonyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	response, err := req.response()
	if err != nil {
		writeError(w, err)
		return
	}
	credential, err := h.passkeys.FinishRegistration(r.Context(), requestctx.UserIDFromContext(r.Context()), response)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPasskeyResponse(credential))
}

func (h *Handler) handleLoginOptions(w http.ResponseWriter, r *http.Request) {
	var req loginOptionsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	options, err := h.passkeys.BeginLogin(r.Context(), passkey.LoginTarget{
		UserID: strings.TrimSpace(req.UserID),
		Email:  strings.TrimSpace(req.Email),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, options)
}

func (h *Handler) handleLoginVerify(w http.ResponseWriter, r *http.Request) {
	var req loginVerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	response, err := ceremonyRequest{Response: req.Response}.response()
	if err != nil {
		writeError(w, err)
		return
	}
	// Validate the device fields before the ceremony consumes its challenge.
	if strings.TrimSpace(req.DeviceID) == "" {
		writeError(w, apperrors.New(apperrors.CodeInvalidArgument, "device id is required"))
		return
	}
	if _, err := devicetoken.ParsePlatform(req.Platform); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.passkeys.FinishLogin(r.Context(), response)
	if err != nil {
		writeError(w, err)
		return
	}
	session, err := h.bindDevice(r, result.UserID, req.DeviceID, req.Platform)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) handleListPasskeys(w http.ResponseWriter, r *http.Request) {
	credentials, err := h.passkeys.ListCredentials(r.Context(), requestctx.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]passkeyResponse, 0, len(credentials))
	for _, credential := range credentials {
		out = append(out, toPasskeyResponse(credential))
	}
	writeJSON(w, http.StatusOK, map[string]any{"passkeys": out})
}

func (h *Handler) handleDeletePasskey(w http.ResponseWriter, r *http.Request) {
	credentialID := mux.Vars(r)["credentialID"]
	if err := h.passkeys.DeleteCredential(r.Context(), requestctx.UserIDFromContext(r.Context()), credentialID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// bindDevice registers the device for userID and issues its first token pair.
func (h *Handler) bindDevice(r *http.Request, userID, deviceID, platform string) (sessionResponse, error) {
	device, err := h.tokens.RegisterDevice(r.Context(), userID, deviceID, platform)
	if err != nil {
		return sessionResponse{}, err
	}
	pair, err := h.tokens.Issue(r.Context(), userID, device.DeviceID)
	if err != nil {
		return sessionResponse{}, err
	}
	return sessionResponse{UserID: userID, Device: device, Tokens: pair}, nil
}
