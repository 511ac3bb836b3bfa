package passkey

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/louisbranch/passwallet/internal/services/wallet/storage"
)

// walletUser adapts a wallet user to webauthn.User.
type walletUser struct {
	user        storage.User
	credentials []webauthn.Credential
}

func (u *walletUser) WebAuthnID() []byte {
	return []byte(u.user.ID)
}

func (u *walletUser) WebAuthnName() string {
	if u.user.Email != "" {
		return u.user.Email
	}
	return u.user.ID
}

func (u *walletUser) WebAuthnDisplayName() string {
	if u.user.DisplayName != "" {
		return u.user.DisplayName
	}
	return u.WebAuthnName()
}

func (u *walletUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}

func (s *Service) loadUser(ctx context.Context, userID string) (*walletUser, []storage.PasskeyCredential, error) {
	base, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	records, err := s.credentials.ListPasskeyCredentials(ctx, base.ID)
	if err != nil {
		return nil, nil, err
	}
	parsed, err := decodeStoredCredentials(records)
	if err != nil {
		return nil, nil, err
	}
	return &walletUser{user: base, credentials: parsed}, records, nil
}

func decodeStoredCredentials(records []storage.PasskeyCredential) ([]webauthn.Credential, error) {
	if len(records) == 0 {
		return nil, nil
	}
	credentials := make([]webauthn.Credential, 0, len(records))
	for _, record := range records {
		credential, err := decodeStoredCredential(record)
		if err != nil {
			return nil, err
		}
		credentials = append(credentials, credential)
	}
	return credentials, nil
}

func decodeStoredCredential(record storage.PasskeyCredential) (webauthn.Credential, error) {
	var credential webauthn.Credential
	if err := json.Unmarshal([]byte(record.CredentialJSON), &credential); err != nil {
		return webauthn.Credential{}, fmt.Errorf("decode credential %s: %w", record.CredentialID, err)
	}
	return credential, nil
}

// EncodeCredentialID renders a raw credential id the way it is stored.
func EncodeCredentialID(id []byte) string {
	return base64.RawURLEncoding.EncodeToString(id)
}
