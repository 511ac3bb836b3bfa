package passkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	apperrors "github.com/louisbranch/passwallet/internal/platform/errors"
	"github.com/louisbranch/passwallet/internal/platform/otel"
	"github.com/louisbranch/passwallet/internal/services/wallet/secretstore"
	"github.com/louisbranch/passwallet/internal/services/wallet/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const anonymousKeyChallengeLen = 16

var (
	// ErrVerificationFailed covers every cryptographic or lookup failure in a
	// ceremony. The cause is logged, never returned.
	ErrVerificationFailed = apperrors.New(apperrors.CodeCredentialInvalid, "passkey verification failed")
	// ErrChallengeExpired reports a missing, consumed, or expired challenge.
	ErrChallengeExpired = apperrors.New(apperrors.CodeChallengeExpired, "passkey challenge expired")
	// ErrCredentialExists reports a credential id that is already registered.
	ErrCredentialExists = apperrors.New(apperrors.CodeCredentialExists, "passkey credential already registered")
)

var tracer = otel.Tracer("passwallet/passkey")

type webAuthnProvider interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	BeginLogin(user webauthn.User, opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	BeginDiscoverableLogin(opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidateLogin(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error)
	ValidatePasskeyLogin(handler webauthn.DiscoverableUserHandler, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (webauthn.User, *webauthn.Credential, error)
}

type responseParser interface {
	ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error)
	ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error)
}

type defaultParser struct{}

func (defaultParser) ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error) {
	return protocol.ParseCredentialCreationResponseBytes(data)
}

func (defaultParser) ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error) {
	return protocol.ParseCredentialRequestResponseBytes(data)
}

// Service verifies passkey ceremonies.
type Service struct {
	cfg         Config
	webauthn    webAuthnProvider
	parser      responseParser
	secrets     secretstore.Store
	users       storage.UserStore
	credentials storage.PasskeyStore
	clock       func() time.Time
}

// NewService builds a Service for the configured relying party.
func NewService(cfg Config, secrets secretstore.Store, users storage.UserStore, credentials storage.PasskeyStore) (*Service, error) {
	if secrets == nil {
		return nil, errors.New("secret store is required")
	}
	if users == nil || credentials == nil {
		return nil, errors.New("user and passkey stores are required")
	}
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = 5 * time.Minute
	}
	provider, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.RPID,
		RPDisplayName: cfg.RPDisplayName,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("init webauthn: %w", err)
	}
	return &Service{
		cfg:         cfg,
		webauthn:    provider,
		parser:      defaultParser{},
		secrets:     secrets,
		users:       users,
		credentials: credentials,
		clock:       time.Now,
	}, nil
}

// Credential summarizes a registered passkey.
type Credential struct {
	ID         string
	UserID     string
	Transports []Transport
	SignCount  uint32
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// LoginTarget optionally names the user who is logging in. When both fields
// are empty, or the user has no passkeys, a discoverable ceremony is issued.
type LoginTarget struct {
	UserID string
	Email  string
}

// LoginResult identifies who authenticated and with which credential.
type LoginResult struct {
	UserID       string
	CredentialID string
	SignCount    uint32
}

func registrationKey(userID string) string {
	return "passkey:reg:" + userID
}

func loginKey(userID string) string {
	return "passkey:auth:" + userID
}

func anonymousLoginKey(challenge string) string {
	if len(challenge) > anonymousKeyChallengeLen {
		challenge = challenge[:anonymousKeyChallengeLen]
	}
	return "passkey:auth:anon:" + challenge
}

// BeginRegistration issues creation options for userID. Existing credentials
// are excluded so the same authenticator cannot be enrolled twice.
func (s *Service) BeginRegistration(ctx context.Context, userID string) (*protocol.CredentialCreation, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "user id is required")
	}
	user, _, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	options := []webauthn.RegistrationOption{
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.Platform,
			UserVerification:        protocol.VerificationPreferred,
		}),
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementPreferred),
		webauthn.WithConveyancePreference(protocol.PreferNoAttestation),
	}
	if len(user.credentials) > 0 {
		options = append(options, webauthn.WithExclusions(webauthn.Credentials(user.credentials).CredentialDescriptors()))
	}

	creation, session, err := s.webauthn.BeginRegistration(user, options...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "begin passkey registration", err)
	}
	if err := s.putSession(ctx, registrationKey(userID), session); err != nil {
		return nil, err
	}
	return creation, nil
}

// FinishRegistration verifies an attestation response for userID and stores
// the new credential with a zero counter.
func (s *Service) FinishRegistration(ctx context.Context, userID string, response []byte) (Credential, error) {
	ctx, span := tracer.Start(ctx, "passkey.FinishRegistration")
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Credential{}, apperrors.New(apperrors.CodeInvalidArgument, "user id is required")
	}
	if len(response) == 0 {
		return Credential{}, apperrors.New(apperrors.CodeInvalidArgument, "credential response is required")
	}

	session, err := s.takeSession(ctx, registrationKey(userID))
	if err != nil {
		return Credential{}, err
	}
	user, _, err := s.loadUser(ctx, userID)
	if err != nil {
		return Credential{}, err
	}

	parsed, err := s.parser.ParseCredentialCreationResponseBytes(response)
	if err != nil {
		return Credential{}, s.rejected(span, "parse registration response", err)
	}
	credential, err := s.webauthn.CreateCredential(user, session, parsed)
	if err != nil {
		return Credential{}, s.rejected(span, "verify registration response", err)
	}
	credential.Authenticator.SignCount = 0
	credential.Authenticator.CloneWarning = false

	payload, err := json.Marshal(credential)
	if err != nil {
		return Credential{}, apperrors.Wrap(apperrors.CodeInternal, "encode credential", err)
	}
	record := storage.PasskeyCredential{
		CredentialID:   EncodeCredentialID(credential.ID),
		UserID:         userID,
		CredentialJSON: string(payload),
		SignCount:      0,
		CreatedAt:      s.clock().UTC(),
	}
	if err := s.credentials.CreatePasskeyCredential(ctx, record); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return Credential{}, ErrCredentialExists
		}
		return Credential{}, apperrors.Wrap(apperrors.CodeInternal, "store passkey credential", err)
	}
	span.SetAttributes(attribute.String("passkey.credential_id", record.CredentialID))
	log.Printf("passkey registered user=%s credential=%s", userID, record.CredentialID)
	return toCredential(record, *credential), nil
}

// BeginLogin issues assertion options. A known user with passkeys gets an
// allow-list ordered by transport preference, which tells the caller that
// the account holds passkeys. Unknown users and users without passkeys get
// the same discoverable ceremony.
func (s *Service) BeginLogin(ctx context.Context, target LoginTarget) (*protocol.CredentialAssertion, error) {
	user, err := s.resolveLoginUser(ctx, target)
	if err != nil {
		return nil, err
	}

	if user == nil || len(user.credentials) == 0 {
		assertion, session, err := s.webauthn.BeginDiscoverableLogin()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, "begin discoverable login", err)
		}
		if err := s.putSession(ctx, anonymousLoginKey(session.Challenge), session); err != nil {
			return nil, err
		}
		return assertion, nil
	}

	allowed := rankCredentials(webauthn.Credentials(user.credentials).CredentialDescriptors())
	assertion, session, err := s.webauthn.BeginLogin(user, webauthn.WithAllowedCredentials(allowed))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "begin passkey login", err)
	}
	if err := s.putSession(ctx, loginKey(user.user.ID), session); err != nil {
		return nil, err
	}
	return assertion, nil
}

func (s *Service) resolveLoginUser(ctx context.Context, target LoginTarget) (*walletUser, error) {
	userID := strings.TrimSpace(target.UserID)
	email := strings.TrimSpace(target.Email)
	if userID == "" && email != "" {
		found, err := s.users.GetUserByEmail(ctx, email)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		userID = found.ID
	}
	if userID == "" {
		return nil, nil
	}
	user, _, err := s.loadUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return user, err
}

// FinishLogin verifies an assertion in either mode. The challenge echoed in
// the client data selects the discoverable session; otherwise the session is
// looked up through the credential's owner.
func (s *Service) FinishLogin(ctx context.Context, response []byte) (LoginResult, error) {
	ctx, span := tracer.Start(ctx, "passkey.FinishLogin")
	defer span.End()

	if len(response) == 0 {
		return LoginResult{}, apperrors.New(apperrors.CodeInvalidArgument, "credential response is required")
	}
	parsed, err := s.parser.ParseCredentialRequestResponseBytes(response)
	if err != nil {
		return LoginResult{}, s.rejected(span, "parse assertion response", err)
	}
	credentialID := EncodeCredentialID(parsed.RawID)
	challenge := parsed.Response.CollectedClientData.Challenge
	if len(challenge) < anonymousKeyChallengeLen {
		return LoginResult{}, s.rejected(span, "short challenge", errors.New("challenge too short"))
	}

	var (
		validatedUser *walletUser
		credential    *webauthn.Credential
	)
	session, err := s.takeSession(ctx, anonymousLoginKey(challenge))
	switch {
	case err == nil:
		user, verified, verr := s.webauthn.ValidatePasskeyLogin(s.discoverableHandler(ctx), session, parsed)
		if verr != nil {
			return LoginResult{}, s.rejected(span, "verify discoverable assertion", verr)
		}
		owner, ok := user.(*walletUser)
		if !ok {
			return LoginResult{}, apperrors.New(apperrors.CodeInternal, "passkey user type mismatch")
		}
		validatedUser, credential = owner, verified
	case errors.Is(err, ErrChallengeExpired):
		record, lerr := s.credentials.GetPasskeyCredential(ctx, credentialID)
		if lerr != nil {
			return LoginResult{}, s.rejected(span, "lookup credential", lerr)
		}
		session, err = s.takeSession(ctx, loginKey(record.UserID))
		if err != nil {
			return LoginResult{}, err
		}
		owner, _, lerr := s.loadUser(ctx, record.UserID)
		if lerr != nil {
			return LoginResult{}, s.rejected(span, "load credential owner", lerr)
		}
		verified, verr := s.webauthn.ValidateLogin(owner, session, parsed)
		if verr != nil {
			return LoginResult{}, s.rejected(span, "verify assertion", verr)
		}
		validatedUser, credential = owner, verified
	default:
		return LoginResult{}, err
	}

	stored, err := s.credentials.GetPasskeyCredential(ctx, credentialID)
	if err != nil {
		return LoginResult{}, s.rejected(span, "reload credential", err)
	}
	counter := parsed.Response.AuthenticatorData.Counter
	if counter < stored.SignCount {
		log.Printf("passkey counter regression credential=%s stored=%d presented=%d", credentialID, stored.SignCount, counter)
		return LoginResult{}, s.rejected(span, "counter regression", fmt.Errorf("counter %d below %d", counter, stored.SignCount))
	}
	credential.Authenticator.SignCount = counter
	credential.Authenticator.CloneWarning = false

	payload, err := json.Marshal(credential)
	if err != nil {
		return LoginResult{}, apperrors.Wrap(apperrors.CodeInternal, "encode credential", err)
	}
	if err := s.credentials.RecordPasskeyUse(ctx, credentialID, string(payload), counter, s.clock().UTC()); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return LoginResult{}, s.rejected(span, "concurrent counter update", err)
		}
		return LoginResult{}, apperrors.Wrap(apperrors.CodeInternal, "record passkey use", err)
	}

	span.SetAttributes(attribute.String("passkey.credential_id", credentialID))
	return LoginResult{
		UserID:       validatedUser.user.ID,
		CredentialID: credentialID,
		SignCount:    counter,
	}, nil
}

func (s *Service) discoverableHandler(ctx context.Context) webauthn.DiscoverableUserHandler {
	return func(rawID, userHandle []byte) (webauthn.User, error) {
		record, err := s.credentials.GetPasskeyCredential(ctx, EncodeCredentialID(rawID))
		if err != nil {
			return nil, err
		}
		if record.UserID != string(userHandle) {
			return nil, errors.New("user handle does not own credential")
		}
		user, _, err := s.loadUser(ctx, record.UserID)
		if err != nil {
			return nil, err
		}
		return user, nil
	}
}

// ListCredentials returns the user's passkeys.
func (s *Service) ListCredentials(ctx context.Context, userID string) ([]Credential, error) {
	records, err := s.credentials.ListPasskeyCredentials(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "list passkey credentials", err)
	}
	result := make([]Credential, 0, len(records))
	for _, record := range records {
		decoded, err := decodeStoredCredential(record)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, "decode passkey credential", err)
		}
		result = append(result, toCredential(record, decoded))
	}
	return result, nil
}

// DeleteCredential removes one of the user's passkeys.
func (s *Service) DeleteCredential(ctx context.Context, userID, credentialID string) error {
	if strings.TrimSpace(credentialID) == "" {
		return apperrors.New(apperrors.CodeInvalidArgument, "credential id is required")
	}
	if err := s.credentials.DeletePasskeyCredential(ctx, userID, credentialID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return apperrors.Wrap(apperrors.CodeInternal, "delete passkey credential", err)
	}
	log.Printf("passkey removed user=%s credential=%s", userID, credentialID)
	return nil
}

func (s *Service) putSession(ctx context.Context, key string, session *webauthn.SessionData) error {
	if session == nil {
		return apperrors.New(apperrors.CodeInternal, "session data is required")
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "encode passkey session", err)
	}
	if err := s.secrets.Put(ctx, key, payload, s.cfg.ChallengeTTL); err != nil {
		return apperrors.Wrap(apperrors.CodeOf(err), "store passkey challenge", err)
	}
	return nil
}

func (s *Service) takeSession(ctx context.Context, key string) (webauthn.SessionData, error) {
	payload, err := s.secrets.TakeOnce(ctx, key)
	if errors.Is(err, secretstore.ErrNotFound) {
		return webauthn.SessionData{}, ErrChallengeExpired
	}
	if err != nil {
		return webauthn.SessionData{}, apperrors.Wrap(apperrors.CodeOf(err), "load passkey challenge", err)
	}
	var session webauthn.SessionData
	if err := json.Unmarshal(payload, &session); err != nil {
		return webauthn.SessionData{}, apperrors.Wrap(apperrors.CodeInternal, "decode passkey session", err)
	}
	return session, nil
}

// rejected logs the real cause and returns the generic failure.
func (s *Service) rejected(span trace.Span, stage string, cause error) error {
	log.Printf("passkey rejected at %s: %v", stage, cause)
	span.SetStatus(codes.Error, stage)
	return ErrVerificationFailed
}

func toCredential(record storage.PasskeyCredential, credential webauthn.Credential) Credential {
	transports := make([]Transport, 0, len(credential.Transport))
	for _, hint := range credential.Transport {
		transports = append(transports, ParseTransport(hint))
	}
	return Credential{
		ID:         record.CredentialID,
		UserID:     record.UserID,
		Transports: transports,
		SignCount:  record.SignCount,
		CreatedAt:  record.CreatedAt,
		LastUsedAt: record.LastUsedAt,
	}
}
