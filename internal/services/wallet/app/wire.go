package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/louisbranch/passwallet/internal/services/wallet/api/httpapi"
	"github.com/louisbranch/passwallet/internal/services/wallet/devicetoken"
	"github.com/louisbranch/passwallet/internal/services/wallet/merchant"
	"github.com/louisbranch/passwallet/internal/services/wallet/passkey"
	"github.com/louisbranch/passwallet/internal/services/wallet/payment"
	"github.com/louisbranch/passwallet/internal/services/wallet/ratelimit"
	"github.com/louisbranch/passwallet/internal/services/wallet/secretstore"
	"github.com/louisbranch/passwallet/internal/services/wallet/signature"
	"github.com/louisbranch/passwallet/internal/services/wallet/storage/sqlstore"
	"github.com/louisbranch/passwallet/internal/services/wallet/webhook"
)

// componentConfig gathers every component's environment configuration so a
// misconfigured process fails before binding any listener.
type componentConfig struct {
	storage    sqlstore.Config
	secrets    secretstore.Config
	passkey    passkey.Config
	tokens     devicetoken.Config
	payments   payment.Config
	signatures signature.Config
	rateLimit  ratelimit.Config
}

func loadComponentConfig() (componentConfig, error) {
	var (
		cfg componentConfig
		err error
	)
	if cfg.storage, err = sqlstore.LoadConfigFromEnv(); err != nil {
		return componentConfig{}, fmt.Errorf("storage config: %w", err)
	}
	if cfg.secrets, err = secretstore.LoadConfigFromEnv(); err != nil {
		return componentConfig{}, fmt.Errorf("secret store config: %w", err)
	}
	cfg.passkey = passkey.LoadConfigFromEnv()
	if cfg.tokens, err = devicetoken.LoadConfigFromEnv(); err != nil {
		return componentConfig{}, fmt.Errorf("token config: %w", err)
	}
	if cfg.payments, err = payment.LoadConfigFromEnv(); err != nil {
		return componentConfig{}, fmt.Errorf("payment config: %w", err)
	}
	if cfg.signatures, err = signature.LoadConfigFromEnv(); err != nil {
		return componentConfig{}, fmt.Errorf("signature config: %w", err)
	}
	if cfg.rateLimit, err = ratelimit.LoadConfigFromEnv(); err != nil {
		return componentConfig{}, fmt.Errorf("rate limit config: %w", err)
	}
	return cfg, nil
}

func (c componentConfig) usesRedis() bool {
	return c.secrets.Backend == secretstore.BackendRedis
}

// wire builds the services over the opened store and returns the API
// handler. Sweepers and pruners are queued to start with Serve.
func (s *Server) wire(cfg componentConfig) (http.Handler, error) {
	var (
		secrets secretstore.Store
		counter ratelimit.Counter
	)
	if s.redis != nil {
		secrets = secretstore.NewRedis(s.redis, cfg.secrets.KeyPrefix)
		counter = ratelimit.NewRedis(s.redis, cfg.secrets.KeyPrefix)
	} else {
		memorySecrets := secretstore.NewMemory()
		memoryCounter := ratelimit.NewMemory()
		s.background = append(s.background,
			func(ctx context.Context) { memorySecrets.StartSweeper(ctx, cfg.secrets.SweepInterval) },
			func(ctx context.Context) { memoryCounter.StartSweeper(ctx, cfg.rateLimit.Window) },
		)
		secrets, counter = memorySecrets, memoryCounter
	}

	passkeys, err := passkey.NewService(cfg.passkey, secrets, s.store, s.store)
	if err != nil {
		return nil, err
	}
	tokens, err := devicetoken.NewService(cfg.tokens, s.store)
	if err != nil {
		return nil, err
	}
	payments, err := payment.NewService(cfg.payments, s.store)
	if err != nil {
		return nil, err
	}
	s.background = append(s.background, func(ctx context.Context) {
		payments.StartPruner(ctx, cfg.payments.PruneInterval)
	})
	webhooks, err := webhook.NewProcessor(s.store, nil)
	if err != nil {
		return nil, err
	}
	passkeyLimiter, err := ratelimit.NewLimiter(counter, "passkey", cfg.rateLimit)
	if err != nil {
		return nil, err
	}
	refreshLimiter, err := ratelimit.NewLimiter(counter, "refresh", cfg.rateLimit)
	if err != nil {
		return nil, err
	}

	signatures := signature.NewVerifier(cfg.signatures)
	if !signatures.Enforcing() {
		log.Printf("WARNING: partner signature enforcement is OFF; forged partner requests will be processed")
	}

	handler, err := httpapi.New(httpapi.Deps{
		Passkeys:       passkeys,
		Tokens:         tokens,
		Payments:       payments,
		Merchants:      merchant.NewService(s.store),
		Webhooks:       webhooks,
		Signatures:     signatures,
		Users:          s.store,
		PasskeyLimiter: passkeyLimiter,
		RefreshLimiter: refreshLimiter,
	})
	if err != nil {
		return nil, err
	}
	return handler.Routes(), nil
}
