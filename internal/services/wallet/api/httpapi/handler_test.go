package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/louisbranch/passwallet/internal/services/wallet/devicetoken"
	"github.com/louisbranch/passwallet/internal/services/wallet/merchant"
	"github.com/louisbranch/passwallet/internal/services/wallet/passkey"
	"github.com/louisbranch/passwallet/internal/services/wallet/passkey/passkeytest"
	"github.com/louisbranch/passwallet/internal/services/wallet/payment"
	"github.com/louisbranch/passwallet/internal/services/wallet/ratelimit"
	"github.com/louisbranch/passwallet/internal/services/wallet/secretstore"
	"github.com/louisbranch/passwallet/internal/services/wallet/signature"
	"github.com/louisbranch/passwallet/internal/services/wallet/storage"
	"github.com/louisbranch/passwallet/internal/services/wallet/storage/sqlstore"
	"github.com/louisbranch/passwallet/internal/services/wallet/webhook"
)

const (
	testRPID          = "wallet.example"
	testOrigin        = "https://wallet.example"
	testPartnerSecret = "partner-secret"
)

type testServer struct {
	t         *testing.T
	handler   http.Handler
	deps      Deps
	store     *sqlstore.Store
	merchants *merchant.Service
}

type options struct {
	enforce        bool
	refreshLimiter *ratelimit.Limiter
}

func newTestServer(t *testing.T, opts options) *testServer {
	t.Helper()
	srv, cleanup, err := buildTestServer(t.TempDir(), opts)
	if err != nil {
		t.Fatalf("build test server: %v", err)
	}
	t.Cleanup(cleanup)
	srv.t = t
	return srv
}

// buildTestServer wires real services over a SQLite store in dir, seeded with
// user-1 and its card-x.
func buildTestServer(dir string, opts options) (*testServer, func(), error) {
	ctx := context.Background()
	store, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver: sqlstore.DriverSQLite,
		DSN:    filepath.Join(dir, "wallet.db"),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	cleanup := func() { _ = store.Close() }
	fail := func(err error) (*testServer, func(), error) {
		cleanup()
		return nil, nil, err
	}

	now := time.Now().UTC()
	if err := store.PutUser(ctx, storage.User{ID: "user-1", Email: "user-1@example.com", DisplayName: "User One", CreatedAt: now}); err != nil {
		return fail(fmt.Errorf("put user: %w", err))
	}
	if err := store.PutCard(ctx, storage.Card{ID: "card-x", UserID: "user-1", WalletCardToken: "wct_x", Network: "visa", Last4: "4242", CreatedAt: now}); err != nil {
		return fail(fmt.Errorf("put card: %w", err))
	}

	passkeys, err := passkey.NewService(passkey.Config{
		RPDisplayName: "Passwallet",
		RPID:          testRPID,
		RPOrigins:     []string{testOrigin},
		ChallengeTTL:  time.Minute,
	}, secretstore.NewMemory(), store, store)
	if err != nil {
		return fail(fmt.Errorf("passkey service: %w", err))
	}
	tokens, err := devicetoken.NewService(devicetoken.Config{
		Secret: []byte("0123456789abcdef0123456789abcdef"),
	}, store)
	if err != nil {
		return fail(fmt.Errorf("token service: %w", err))
	}
	payments, err := payment.NewService(payment.DefaultConfig(), store)
	if err != nil {
		return fail(fmt.Errorf("payment service: %w", err))
	}
	webhooks, err := webhook.NewProcessor(store, nil)
	if err != nil {
		return fail(fmt.Errorf("webhook processor: %w", err))
	}
	merchants := merchant.NewService(store)

	deps := Deps{
		Passkeys:       passkeys,
		Tokens:         tokens,
		Payments:       payments,
		Merchants:      merchants,
		Webhooks:       webhooks,
		Signatures:     signature.NewVerifier(signature.Config{Secret: testPartnerSecret, Enforce: opts.enforce, TimestampWindow: 5 * time.Minute}),
		Users:          store,
		RefreshLimiter: opts.refreshLimiter,
	}
	h, err := New(deps)
	if err != nil {
		return fail(fmt.Errorf("new handler: %w", err))
	}
	return &testServer{handler: h.Routes(), deps: deps, store: store, merchants: merchants}, cleanup, nil
}

// serve runs one request through the router.
func (s *testServer) serve(method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "203.0.113.7:4000"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	s.t.Helper()
	var encoded []byte
	switch v := body.(type) {
	case nil:
	case []byte:
		encoded = v
	default:
		var err error
		encoded, err = json.Marshal(v)
		if err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
	}
	return s.serve(method, path, encoded, headers)
}

// signed posts a body with a valid partner signature.
func (s *testServer) signed(path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	encoded, err := json.Marshal(body)
	if err != nil {
		s.t.Fatalf("encode body: %v", err)
	}
	return s.do(http.MethodPost, path, encoded, map[string]string{
		signature.HeaderSignature: s.deps.Signatures.Sign(encoded),
	})
}

func (s *testServer) ssoIssue(userID, deviceID string) sessionResponse {
	s.t.Helper()
	rec := s.signed("/v1/sso/issue", ssoIssueRequest{
		UserID:    userID,
		DeviceID:  deviceID,
		Platform:  "ios",
		Timestamp: time.Now().Unix(),
	})
	if rec.Code != http.StatusOK {
		s.t.Fatalf("sso issue status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var session sessionResponse
	decodeBody(s.t, rec, &session)
	return session
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	var body errorResponse
	decodeBody(t, rec, &body)
	if body.Error != code {
		t.Fatalf("error code = %q, want %q", body.Error, code)
	}
}

func TestUp(t *testing.T) {
	srv := newTestServer(t, options{enforce: true})
	rec := srv.do(http.MethodGet, "/up", nil, nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("up = %d %q", rec.Code, rec.Body.String())
	}
}

func TestUnknownRouteIsJSON(t *testing.T) {
	srv := newTestServer(t, options{enforce: true})
	assertError(t, srv.do(http.MethodGet, "/v1/nope", nil, nil), http.StatusNotFound, "not_found")
	assertError(t, srv.do(http.MethodGet, "/v1/tokens/refresh", nil, nil), http.StatusMethodNotAllowed, "method_not_allowed")
}

func TestPasskeyRegistrationAndLogin(t *testing.T) {
	srv := newTestServer(t, options{enforce: true})
	session := srv.ssoIssue("user-1", "phone-1")
	if session.UserID != "user-1" || session.Tokens.AccessToken == "" || session.Device.Secret == "" {
		t.Fatalf("unexpected session: %+v", session)
	}

	auth, err := passkeytest.New(testRPID, testOrigin)
	if err != nil {
		t.Fatalf("authenticator: %v", err)
	}

	rec := srv.do(http.MethodPost, "/v1/passkeys/register/options", nil, bearer(session.Tokens.AccessToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("register options status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var creation protocol.CredentialCreation
	decodeBody(t, rec, &creation)
	attestation, err := auth.Register(&creation)
	if err != nil {
		t.Fatalf("authenticator register: %v", err)
	}
	rec = srv.do(http.MethodPost, "/v1/passkeys/register/verify", map[string]json.RawMessage{"response": attestation}, bearer(session.Tokens.AccessToken))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register verify status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var registered passkeyResponse
	decodeBody(t, rec, &registered)
	if registered.ID == "" || registered.SignCount != 0 {
		t.Fatalf("unexpected passkey: %+v", registered)
	}

	rec = srv.do(http.MethodPost, "/v1/passkeys/login/options", loginOptionsRequest{Email: "user-1@example.com"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login options status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var assertion protocol.CredentialAssertion
	decodeBody(t, rec, &assertion)
	signed, err := auth.Assert(&assertion)
	if err != nil {
		t.Fatalf("authenticator assert: %v", err)
	}
	rec = srv.do(http.MethodPost, "/v1/passkeys/login/verify", loginVerifyRequest{
		Response: signed,
		DeviceID: "phone-2",
		Platform: "android",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login verify status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var login sessionResponse
	decodeBody(t, rec, &login)
	if login.UserID != "user-1" || login.Device.DeviceID != "phone-2" || login.Tokens.RefreshToken == "" {
		t.Fatalf("unexpected login session: %+v", login)
	}

	// The consumed challenge cannot be answered twice.
	rec = srv.do(http.MethodPost, "/v1/passkeys/login/verify", loginVerifyRequest{
		Response: signed,
		DeviceID: "phone-2",
		Platform: "android",
	}, nil)
	if rec.Code < 400 || rec.Code >= 500 {
		t.Fatalf("replayed login status = %d, want 4xx", rec.Code)
	}

	rec = srv.do(http.MethodGet, "/v1/passkeys", nil, bearer(login.Tokens.AccessToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var listed struct {
		Passkeys []passkeyResponse `json:"passkeys"`
	}
	decodeBody(t, rec, &listed)
	if len(listed.Passkeys) != 1 || listed.Passkeys[0].ID != registered.ID || listed.Passkeys[0].SignCount != 1 {
		t.Fatalf("unexpected passkeys: %+v", listed.Passkeys)
	}

	rec = srv.do(http.MethodDelete, "/v1/passkeys/"+registered.ID, nil, bearer(login.Tokens.AccessToken))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestLoginVerifyValidatesDeviceFields(t *testing.T) {
	srv := newTestServer(t, options{enforce: true})
	rec := srv.do(http.MethodPost, "/v1/passkeys/login/verify", loginVerifyRequest{
		Response: json.RawMessage(`{"id":"x"}`),
		DeviceID: "phone-1",
		Platform: "blackberry",
	}, nil)
	assertError(t, rec, http.StatusBadRequest, "invalid_argument")

	rec = srv.do(http.MethodPost, "/v1/passkeys/login/verify", loginVerifyRequest{Platform: "ios", DeviceID: "phone-1"}, nil)
	assertError(t, rec, http.StatusBadRequest, "invalid_argument")
}

func TestRegisterOptionsRequiresAccessToken(t *testing.T) {
	srv := newTestServer(t, options{enforce: true})
	assertError(t, srv.do(http.MethodPost, "/v1/passkeys/register/options", nil, nil), http.StatusUnauthorized, "unauthenticated")
	assertError(t, srv.do(http.MethodPost, "/v1/passkeys/register/options", nil, bearer("garbage")), http.StatusUnauthorized, "invalid_token")
}

func TestSSOIssueRejections(t *testing.T) {
	srv := newTestServer(t, options{enforce: true})

	body, _ := json.Marshal(ssoIssueRequest{UserID: "user-1", DeviceID: "phone-1", Platform: "ios", Timestamp: time.Now().Unix()})
	rec := srv.do(http.MethodPost, "/v1/sso/issue", body, map[string]string{signature.HeaderSignature: "sha256=00"})
	assertError(t, rec, http.StatusUnauthorized, "invalid_signature")

	rec = srv.signed("/v1/sso/issue", ssoIssueRequest{UserID: "user-1", DeviceID: "phone-1", Platform: "ios", Timestamp: time.Now().Add(-time.Hour).Unix()})
	assertError(t, rec, http.StatusUnauthorized, "invalid_signature")

	rec = srv.signed("/v1/sso/issue", ssoIssueRequest{UserID: "ghost", DeviceID: "phone-1", Platform: "ios", Timestamp: time.Now().Unix()})
	assertError(t, rec, http.StatusNotFound, "not_found")
}

func TestSSOIssueKeepsDeviceOwner(t *testing.T) {
	srv := newTestServer(t, options{enforce: true})
	session := srv.ssoIssue("user-1", "phone-1")
	if err := srv.store.PutUser(context.Background(), storage.User{ID: "user-2", Email: "user-2@example.com", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("put user: %v", err)
	}

	rec := srv.signed("/v1/sso/issue", ssoIssueRequest{UserID: "user-2", DeviceID: "phone-1", Platform: "ios", Timestamp: time.Now().Unix()})
	assertError(t, rec, http.StatusConflict, "conflict")

	rec = srv.do(http.MethodPost, "/v1/tokens/refresh", refreshRequest{RefreshToken: session.Tokens.RefreshToken},
		map[string]string{HeaderDeviceCredential: session.Device.Secret})
	if rec.Code != http.StatusOK {
		t.Fatalf("owner refresh status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestRefreshRotation(t *testing.T) {
	srv := newTestServer(t, options{enforce: true})
	session := srv.ssoIssue("user-1", "phone-1")
	credential := map[string]string{HeaderDeviceCredential: session.Device.Secret}

	rec := srv.do(http.MethodPost, "/v1/tokens/refresh", refreshRequest{RefreshToken: session.Tokens.AccessToken}, credential)
	assertError(t, rec, http.StatusUnauthorized, "invalid_token")
	var failure errorResponse
	decodeBody(t, rec, &failure)
	if failure.Message != "authentication failed" {
		t.Fatalf("message = %q, want generic", failure.Message)
	}

	rec = srv.do(http.MethodPost, "/v1/tokens/refresh", refreshRequest{RefreshToken: session.Tokens.RefreshToken}, nil)
	assertError(t, rec, http.StatusUnauthorized, "invalid_token")

	rec = srv.do(http.MethodPost, "/v1/tokens/refresh", refreshRequest{RefreshToken: session.Tokens.RefreshToken}, credential)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var pair devicetoken.Pair
	decodeBody(t, rec, &pair)
	if pair.RefreshToken == "" || pair.RefreshToken == session.Tokens.RefreshToken {
		t.Fatalf("refresh token was not rotated")
	}

	rec = srv.do(http.MethodPost, "/v1/tokens/refresh", refreshRequest{RefreshToken: session.Tokens.RefreshToken}, credential)
	assertError(t, rec, http.StatusUnauthorized, "invalid_token")

	rec = srv.do(http.MethodPost, "/v1/tokens/logout", nil, bearer(pair.AccessToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var revoked revokeResponse
	decodeBody(t, rec, &revoked)
	if revoked.Revoked != 1 {
		t.Fatalf("revoked = %d, want 1", revoked.Revoked)
	}
	rec = srv.do(http.MethodPost, "/v1/tokens/refresh", refreshRequest{RefreshToken: pair.RefreshToken}, credential)
	assertError(t, rec, http.StatusUnauthorized, "invalid_token")
}

func TestLogoutAll(t *testing.T) {
	srv := newTestServer(t, options{enforce: true})
	first := srv.ssoIssue("user-1", "phone-1")
	second := srv.ssoIssue("user-1", "tablet-1")

	rec := srv.do(http.MethodPost, "/v1/tokens/logout-all", nil, bearer(first.Tokens.AccessToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("logout-all status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var revoked revokeResponse
	decodeBody(t, rec, &revoked)
	if revoked.Revoked != 2 {
		t.Fatalf("revoked = %d, want 2", revoked.Revoked)
	}
	rec = srv.do(http.MethodPost, "/v1/tokens/refresh", refreshRequest{RefreshToken: second.Tokens.RefreshToken},
		map[string]string{HeaderDeviceCredential: second.Device.Secret})
	assertError(t, rec, http.StatusUnauthorized, "invalid_token")
}

func TestPaymentFlow(t *testing.T) {
	srv := newTestServer(t, options{enforce: true})
	session := srv.ssoIssue("user-1", "phone-1")
	shop, key, err := srv.merchants.Provision(context.Background(), "Corner Cafe")
	if err != nil {
		t.Fatalf("provision merchant: %v", err)
	}
	merchantKey := map[string]string{merchant.HeaderAPIKey: key}

	assertError(t, srv.do(http.MethodPost, "/v1/payments", createPaymentRequest{Amount: "50.00", Currency: "CAD"}, nil),
		http.StatusUnauthorized, "unauthenticated")
	assertError(t, srv.do(http.MethodPost, "/v1/payments", createPaymentRequest{Amount: "50.001", Currency: "CAD"}, merchantKey),
		http.StatusBadRequest, "invalid_amount")

	rec := srv.do(http.MethodPost, "/v1/payments", createPaymentRequest{Amount: "50.00", Currency: "CAD", OrderRef: "order-1"}, merchantKey)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created payment.View
	decodeBody(t, rec, &created)
	if created.Status != payment.StatusPending || created.MerchantID != shop.ID || created.AmountMinor != 5000 {
		t.Fatalf("unexpected payment: %+v", created)
	}

	rec = srv.do(http.MethodGet, "/v1/payments/"+created.ID+"/public", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("public status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var public payment.PublicView
	decodeBody(t, rec, &public)
	if public.MerchantName != "Corner Cafe" || public.Amount != "50.00" {
		t.Fatalf("unexpected public view: %+v", public)
	}

	rec = srv.do(http.MethodPost, "/v1/payments/"+created.ID+"/approve", approvePaymentRequest{CardID: "card-x"}, bearer(session.Tokens.AccessToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var approval payment.Approval
	decodeBody(t, rec, &approval)
	if approval.OneTimeToken == "" || approval.Payment.Status != payment.StatusApproved {
		t.Fatalf("unexpected approval: %+v", approval)
	}

	rec = srv.do(http.MethodPost, "/v1/payments/"+created.ID+"/complete", completePaymentRequest{Token: "wrong"}, merchantKey)
	assertError(t, rec, http.StatusUnauthorized, "invalid_token")

	rec = srv.do(http.MethodPost, "/v1/payments/"+created.ID+"/complete", completePaymentRequest{Token: approval.OneTimeToken}, merchantKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var settlement payment.Settlement
	decodeBody(t, rec, &settlement)
	if settlement.WalletCardToken != "wct_x" || settlement.EphemeralCardToken == "" {
		t.Fatalf("unexpected settlement: %+v", settlement)
	}

	rec = srv.do(http.MethodPost, "/v1/payments/"+created.ID+"/complete", completePaymentRequest{Token: approval.OneTimeToken}, merchantKey)
	assertError(t, rec, http.StatusConflict, "invalid_transition")

	rec = srv.do(http.MethodGet, "/v1/payments/"+created.ID, nil, merchantKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("status status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var view payment.View
	decodeBody(t, rec, &view)
	if view.Status != payment.StatusCompleted {
		t.Fatalf("status = %q, want completed", view.Status)
	}

	rec = srv.do(http.MethodGet, "/v1/payments/"+created.ID, nil, bearer(session.Tokens.AccessToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("user status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestPaymentCancelByMerchant(t *testing.T) {
	srv := newTestServer(t, options{enforce: true})
	_, key, err := srv.merchants.Provision(context.Background(), "Corner Cafe")
	if err != nil {
		t.Fatalf("provision merchant: %v", err)
	}
	merchantKey := map[string]string{"Authorization": "Bearer " + key}

	rec := srv.do(http.MethodPost, "/v1/payments", createPaymentRequest{Amount: "12.50", Currency: "usd", TTLSeconds: 60}, merchantKey)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created payment.View
	decodeBody(t, rec, &created)

	rec = srv.do(http.MethodPost, "/v1/payments/"+created.ID+"/cancel", nil, merchantKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var cancelled payment.View
	decodeBody(t, rec, &cancelled)
	if cancelled.Status != payment.StatusCancelled {
		t.Fatalf("status = %q, want cancelled", cancelled.Status)
	}

	rec = srv.do(http.MethodPost, "/v1/payments/"+created.ID+"/cancel", nil, merchantKey)
	assertError(t, rec, http.StatusConflict, "invalid_transition")

	rec = srv.do(http.MethodPost, "/v1/payments", createPaymentRequest{Amount: "1.00", Currency: "CAD", TTLSeconds: -1}, merchantKey)
	assertError(t, rec, http.StatusBadRequest, "invalid_argument")
}

func TestPartnerWebhook(t *testing.T) {
	srv := newTestServer(t, options{enforce: true})
	event := webhook.Event{ID: "evt_1", Type: "card.updated", UserID: "user-1", Data: json.RawMessage(`{"cardId":"card-x"}`)}

	encoded, _ := json.Marshal(event)
	tampered := append([]byte(nil), encoded...)
	tampered[len(tampered)-2] = 'z'
	rec := srv.do(http.MethodPost, "/v1/webhooks/partner", tampered, map[string]string{
		signature.HeaderSignature: srv.deps.Signatures.Sign(encoded),
	})
	assertError(t, rec, http.StatusUnauthorized, "invalid_signature")

	for i, wantDuplicate := range []bool{false, true} {
		rec = srv.signed("/v1/webhooks/partner", event)
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d status = %d, body = %s", i, rec.Code, rec.Body.String())
		}
		var result webhook.Result
		decodeBody(t, rec, &result)
		if result.EventID != "evt_1" || result.Duplicate != wantDuplicate {
			t.Fatalf("delivery %d result = %+v", i, result)
		}
	}

	rec = srv.signed("/v1/webhooks/partner", map[string]string{"type": "card.updated"})
	assertError(t, rec, http.StatusBadRequest, "invalid_argument")
}

func TestPartnerWebhookWithoutEnforcement(t *testing.T) {
	srv := newTestServer(t, options{enforce: false})
	body := []byte(`{"id":"evt_2","type":"card.updated"}`)
	rec := srv.do(http.MethodPost, "/v1/webhooks/partner", body, map[string]string{signature.HeaderSignature: "sha256=deadbeef"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestRefreshRateLimited(t *testing.T) {
	limiter, err := ratelimit.NewLimiter(ratelimit.NewMemory(), "refresh", ratelimit.Config{Limit: 1, Window: time.Minute})
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	srv := newTestServer(t, options{enforce: true, refreshLimiter: limiter})

	body := refreshRequest{RefreshToken: "nope"}
	assertError(t, srv.do(http.MethodPost, "/v1/tokens/refresh", body, nil), http.StatusUnauthorized, "invalid_token")
	rec := srv.do(http.MethodPost, "/v1/tokens/refresh", body, nil)
	assertError(t, rec, http.StatusTooManyRequests, "rate_limited")
	if retry, err := strconv.Atoi(rec.Header().Get("Retry-After")); err != nil || retry <= 0 {
		t.Fatalf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
}

func TestNewRequiresDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Fatal("expected error for missing deps")
	}
}
