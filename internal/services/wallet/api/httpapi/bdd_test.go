//go:build bdd

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/louisbranch/passwallet/internal/services/wallet/merchant"
	"github.com/louisbranch/passwallet/internal/services/wallet/signature"
	"github.com/louisbranch/passwallet/internal/services/wallet/storage"
)

// bddContext holds per-scenario state.
type bddContext struct {
	srv     *testServer
	cleanup func()
	dir     string

	session     sessionResponse
	oldRefresh  string
	merchantKey string
	paymentID   string
	oneTime     string

	lastStatus int
	lastBody   []byte
}

func (b *bddContext) reset() {
	if b.cleanup != nil {
		b.cleanup()
	}
	if b.dir != "" {
		_ = os.RemoveAll(b.dir)
	}
	*b = bddContext{}
}

func (b *bddContext) start(enforce bool) error {
	if b.cleanup != nil {
		b.cleanup()
	}
	if b.dir == "" {
		dir, err := os.MkdirTemp("", "wallet-bdd-")
		if err != nil {
			return err
		}
		b.dir = dir
	}
	dir, err := os.MkdirTemp(b.dir, "run-")
	if err != nil {
		return err
	}
	srv, cleanup, err := buildTestServer(dir, options{enforce: enforce})
	if err != nil {
		return err
	}
	b.srv, b.cleanup = srv, cleanup
	return nil
}

func (b *bddContext) request(method, path string, body []byte, headers map[string]string) {
	rec := b.srv.serve(method, path, body, headers)
	b.lastStatus = rec.Code
	b.lastBody = rec.Body.Bytes()
}

func (b *bddContext) requestJSON(method, path string, payload any, headers map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.request(method, path, body, headers)
	return nil
}

// ── Given steps ─────────────────────────────────────────────────────

func (b *bddContext) theWalletIsRunning() error {
	return b.start(true)
}

func (b *bddContext) partnerSignatureEnforcementIsOff() error {
	return b.start(false)
}

func (b *bddContext) aUserHoldsCard(userID, cardID, token string) error {
	ctx := context.Background()
	if _, err := b.srv.store.GetUser(ctx, userID); errors.Is(err, storage.ErrNotFound) {
		if err := b.srv.store.PutUser(ctx, storage.User{ID: userID, Email: userID + "@example.com", CreatedAt: time.Now()}); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	card, err := b.srv.store.GetCard(ctx, cardID)
	if errors.Is(err, storage.ErrNotFound) {
		return b.srv.store.PutCard(ctx, storage.Card{ID: cardID, UserID: userID, WalletCardToken: token, Network: "visa", Last4: "4242", CreatedAt: time.Now()})
	}
	if err != nil {
		return err
	}
	if card.UserID != userID || card.WalletCardToken != token {
		return fmt.Errorf("card %s already belongs to %s with token %s", cardID, card.UserID, card.WalletCardToken)
	}
	return nil
}

func (b *bddContext) userIsSignedInOnDevice(userID, deviceID string) error {
	ctx := context.Background()
	device, err := b.srv.deps.Tokens.RegisterDevice(ctx, userID, deviceID, "ios")
	if err != nil {
		return err
	}
	pair, err := b.srv.deps.Tokens.Issue(ctx, userID, device.DeviceID)
	if err != nil {
		return err
	}
	b.session = sessionResponse{UserID: userID, Device: device, Tokens: pair}
	return nil
}

func (b *bddContext) aMerchantIsProvisioned(name string) error {
	_, key, err := b.srv.merchants.Provision(context.Background(), name)
	if err != nil {
		return err
	}
	b.merchantKey = key
	return nil
}

// ── When steps ──────────────────────────────────────────────────────

func (b *bddContext) theMerchantCreatesAPayment(amount, currency string) error {
	err := b.requestJSON(http.MethodPost, "/v1/payments", createPaymentRequest{Amount: amount, Currency: currency},
		map[string]string{merchant.HeaderAPIKey: b.merchantKey})
	if err != nil {
		return err
	}
	if b.lastStatus == http.StatusCreated {
		var view struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(b.lastBody, &view); err != nil {
			return err
		}
		b.paymentID = view.ID
	}
	return nil
}

func (b *bddContext) theUserApprovesThePayment(cardID string) error {
	err := b.requestJSON(http.MethodPost, "/v1/payments/"+b.paymentID+"/approve", approvePaymentRequest{CardID: cardID},
		bearer(b.session.Tokens.AccessToken))
	if err != nil {
		return err
	}
	if b.lastStatus == http.StatusOK {
		var approval struct {
			OneTimeToken string `json:"oneTimeToken"`
		}
		if err := json.Unmarshal(b.lastBody, &approval); err != nil {
			return err
		}
		b.oneTime = approval.OneTimeToken
	}
	return nil
}

func (b *bddContext) theMerchantCompletesWithTheOneTimeToken() error {
	return b.theMerchantCompletesWithToken(b.oneTime)
}

func (b *bddContext) theMerchantCompletesWithToken(token string) error {
	return b.requestJSON(http.MethodPost, "/v1/payments/"+b.paymentID+"/complete", completePaymentRequest{Token: token},
		map[string]string{merchant.HeaderAPIKey: b.merchantKey})
}

func (b *bddContext) theDeviceRefreshesWithItsAccessToken() error {
	return b.refresh(b.session.Tokens.AccessToken)
}

func (b *bddContext) theDeviceRefreshesWithItsRefreshToken() error {
	if err := b.refresh(b.session.Tokens.RefreshToken); err != nil {
		return err
	}
	if b.lastStatus == http.StatusOK {
		b.oldRefresh = b.session.Tokens.RefreshToken
		if err := json.Unmarshal(b.lastBody, &b.session.Tokens); err != nil {
			return err
		}
	}
	return nil
}

func (b *bddContext) theDeviceRefreshesWithItsPreviousRefreshToken() error {
	if b.oldRefresh == "" {
		return fmt.Errorf("no previous refresh token")
	}
	return b.refresh(b.oldRefresh)
}

func (b *bddContext) refresh(token string) error {
	return b.requestJSON(http.MethodPost, "/v1/tokens/refresh", refreshRequest{RefreshToken: token},
		map[string]string{HeaderDeviceCredential: b.session.Device.Secret})
}

func (b *bddContext) thePartnerDeliversATamperedWebhook(eventID string) error {
	original, err := json.Marshal(map[string]any{"id": eventID, "type": "card.updated", "data": map[string]int{"v": 1}})
	if err != nil {
		return err
	}
	tampered, err := json.Marshal(map[string]any{"id": eventID, "type": "card.updated", "data": map[string]int{"v": 2}})
	if err != nil {
		return err
	}
	b.request(http.MethodPost, "/v1/webhooks/partner", tampered, map[string]string{
		signature.HeaderSignature: b.srv.deps.Signatures.Sign(original),
	})
	return nil
}

// ── Then steps ──────────────────────────────────────────────────────

func (b *bddContext) theResponseStatusShouldBe(expected int) error {
	if b.lastStatus != expected {
		return fmt.Errorf("expected status %d, got %d (body: %s)", expected, b.lastStatus, b.lastBody)
	}
	return nil
}

func (b *bddContext) theResponseJSONShouldBe(key, expected string) error {
	var m map[string]any
	if err := json.Unmarshal(b.lastBody, &m); err != nil {
		return fmt.Errorf("parse response JSON: %w", err)
	}
	val, ok := m[key]
	if !ok {
		return fmt.Errorf("key %q not found in response", key)
	}
	if fmt.Sprint(val) != expected {
		return fmt.Errorf("expected %q = %q, got %q", key, expected, val)
	}
	return nil
}

func (b *bddContext) thePaymentStatusShouldBe(expected string) error {
	rec := b.srv.serve(http.MethodGet, "/v1/payments/"+b.paymentID, nil, map[string]string{merchant.HeaderAPIKey: b.merchantKey})
	if rec.Code != http.StatusOK {
		return fmt.Errorf("payment status request: %d %s", rec.Code, rec.Body.String())
	}
	var view struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		return err
	}
	if view.Status != expected {
		return fmt.Errorf("expected payment status %q, got %q", expected, view.Status)
	}
	return nil
}

func (b *bddContext) aOneTimeTokenIsReturned() error {
	if b.oneTime == "" {
		return fmt.Errorf("no one-time token in approval (body: %s)", b.lastBody)
	}
	return nil
}

// ── Suite runner ────────────────────────────────────────────────────

func TestBDD(t *testing.T) {
	b := &bddContext{}

	suite := godog.TestSuite{
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
				b.reset()
				return ctx, nil
			})

			// Given
			sc.Step(`^the wallet is running$`, b.theWalletIsRunning)
			sc.Step(`^partner signature enforcement is off$`, b.partnerSignatureEnforcementIsOff)
			sc.Step(`^a user "([^"]*)" holds card "([^"]*)" with wallet token "([^"]*)"$`, b.aUserHoldsCard)
			sc.Step(`^user "([^"]*)" is signed in on device "([^"]*)"$`, b.userIsSignedInOnDevice)
			sc.Step(`^a merchant "([^"]*)" is provisioned$`, b.aMerchantIsProvisioned)

			// When
			sc.Step(`^the merchant creates a payment of "([^"]*)" "([^"]*)"$`, b.theMerchantCreatesAPayment)
			sc.Step(`^the user approves the payment with card "([^"]*)"$`, b.theUserApprovesThePayment)
			sc.Step(`^the merchant completes the payment with the one-time token$`, b.theMerchantCompletesWithTheOneTimeToken)
			sc.Step(`^the merchant completes the payment with token "([^"]*)"$`, b.theMerchantCompletesWithToken)
			sc.Step(`^the device refreshes with its access token$`, b.theDeviceRefreshesWithItsAccessToken)
			sc.Step(`^the device refreshes with its refresh token$`, b.theDeviceRefreshesWithItsRefreshToken)
			sc.Step(`^the device refreshes with its previous refresh token$`, b.theDeviceRefreshesWithItsPreviousRefreshToken)
			sc.Step(`^the partner delivers webhook "([^"]*)" with a tampered body$`, b.thePartnerDeliversATamperedWebhook)

			// Then
			sc.Step(`^the response status should be (\d+)$`, b.theResponseStatusShouldBe)
			sc.Step(`^the response JSON "([^"]*)" should be "([^"]*)"$`, b.theResponseJSONShouldBe)
			sc.Step(`^the payment status should be "([^"]*)"$`, b.thePaymentStatusShouldBe)
			sc.Step(`^a one-time token is returned$`, b.aOneTimeTokenIsReturned)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../../../../../features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("BDD tests failed")
	}

	b.reset()
}
