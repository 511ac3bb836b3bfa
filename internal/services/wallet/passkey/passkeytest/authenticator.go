// Package passkeytest provides a software WebAuthn authenticator for tests.
package passkeytest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncbor"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
)

const (
	flagUserPresent  = 0x01
	flagUserVerified = 0x04
	flagAttested     = 0x40
)

// Authenticator is a single-credential platform authenticator backed by an
// ECDSA P-256 key. It is safe for concurrent use.
type Authenticator struct {
	RPID   string
	Origin string

	mu           sync.Mutex
	key          *ecdsa.PrivateKey
	credentialID []byte
	userHandle   []byte
	counter      uint32
}

// New returns an authenticator with a fresh key and credential id.
func New(rpID, origin string) (*Authenticator, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	credentialID := make([]byte, 32)
	if _, err := rand.Read(credentialID); err != nil {
		return nil, fmt.Errorf("generate credential id: %w", err)
	}
	return &Authenticator{RPID: rpID, Origin: origin, key: key, credentialID: credentialID}, nil
}

// CredentialID returns the raw credential id.
func (a *Authenticator) CredentialID() []byte {
	return append([]byte(nil), a.credentialID...)
}

// SetCounter forces the next assertion counter base, for replay tests.
func (a *Authenticator) SetCounter(value uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counter = value
}

type attestationObject struct {
	Format       string         `cbor:"fmt"`
	AttStatement map[string]any `cbor:"attStmt"`
	AuthData     []byte         `cbor:"authData"`
}

type clientData struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Origin    string `json:"origin"`
}

// Register answers creation options with a "none" attestation response.
func (a *Authenticator) Register(creation *protocol.CredentialCreation) ([]byte, error) {
	if creation == nil {
		return nil, errors.New("creation options are required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	switch id := creation.Response.User.ID.(type) {
	case protocol.URLEncodedBase64:
		a.userHandle = append([]byte(nil), id...)
	case string:
		// Options that went through JSON carry the handle base64url encoded.
		decoded, err := base64.RawURLEncoding.DecodeString(id)
		if err != nil {
			return nil, fmt.Errorf("decode user id: %w", err)
		}
		a.userHandle = decoded
	default:
		return nil, fmt.Errorf("unsupported user id type %T", id)
	}

	publicKey, err := webauthncbor.Marshal(webauthncose.EC2PublicKeyData{
		PublicKeyData: webauthncose.PublicKeyData{
			KeyType:   int64(webauthncose.EllipticKey),
			Algorithm: int64(webauthncose.AlgES256),
		},
		Curve:  int64(webauthncose.P256),
		XCoord: pad32(a.key.PublicKey.X.Bytes()),
		YCoord: pad32(a.key.PublicKey.Y.Bytes()),
	})
	if err != nil {
		return nil, fmt.Errorf("encode public key: %w", err)
	}

	authData := a.authData(flagUserPresent|flagUserVerified|flagAttested, a.counter)
	authData = append(authData, make([]byte, 16)...) // AAGUID
	idLen := make([]byte, 2)
	binary.BigEndian.PutUint16(idLen, uint16(len(a.credentialID)))
	authData = append(authData, idLen...)
	authData = append(authData, a.credentialID...)
	authData = append(authData, publicKey...)

	attestation, err := webauthncbor.Marshal(attestationObject{
		Format:       "none",
		AttStatement: map[string]any{},
		AuthData:     authData,
	})
	if err != nil {
		return nil, fmt.Errorf("encode attestation: %w", err)
	}
	clientDataJSON, err := json.Marshal(clientData{
		Type:      "webauthn.create",
		Challenge: creation.Response.Challenge.String(),
		Origin:    a.Origin,
	})
	if err != nil {
		return nil, err
	}

	encodedID := base64.RawURLEncoding.EncodeToString(a.credentialID)
	return json.Marshal(map[string]any{
		"id":                      encodedID,
		"rawId":                   encodedID,
		"type":                    "public-key",
		"authenticatorAttachment": "platform",
		"response": map[string]any{
			"clientDataJSON":    b64(clientDataJSON),
			"attestationObject": b64(attestation),
			"transports":        []string{"internal", "hybrid"},
		},
	})
}

// Assert answers request options, incrementing the signature counter.
func (a *Authenticator) Assert(assertion *protocol.CredentialAssertion) ([]byte, error) {
	if assertion == nil {
		return nil, errors.New("assertion options are required")
	}
	a.mu.Lock()
	a.counter++
	counter := a.counter
	a.mu.Unlock()
	return a.AssertWithCounter(assertion.Response.Challenge.String(), counter)
}

// AssertWithCounter signs a challenge with an explicit counter value.
func (a *Authenticator) AssertWithCounter(challenge string, counter uint32) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	authData := a.authData(flagUserPresent|flagUserVerified, counter)
	clientDataJSON, err := json.Marshal(clientData{
		Type:      "webauthn.get",
		Challenge: challenge,
		Origin:    a.Origin,
	})
	if err != nil {
		return nil, err
	}
	clientDataHash := sha256.Sum256(clientDataJSON)
	signed := append(append([]byte(nil), authData...), clientDataHash[:]...)
	digest := sha256.Sum256(signed)
	signature, err := ecdsa.SignASN1(rand.Reader, a.key, digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign assertion: %w", err)
	}

	encodedID := base64.RawURLEncoding.EncodeToString(a.credentialID)
	return json.Marshal(map[string]any{
		"id":                      encodedID,
		"rawId":                   encodedID,
		"type":                    "public-key",
		"authenticatorAttachment": "platform",
		"response": map[string]any{
			"clientDataJSON":    b64(clientDataJSON),
			"authenticatorData": b64(authData),
			"signature":         b64(signature),
			"userHandle":        b64(a.userHandle),
		},
	})
}

func (a *Authenticator) authData(flags byte, counter uint32) []byte {
	rpIDHash := sha256.Sum256([]byte(a.RPID))
	data := make([]byte, 0, 37)
	data = append(data, rpIDHash[:]...)
	data = append(data, flags)
	countBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(countBytes, counter)
	return append(data, countBytes...)
}

func pad32(value []byte) []byte {
	if len(value) >= 32 {
		return value
	}
	out := make([]byte, 32)
	copy(out[32-len(value):], value)
	return out
}

func b64(value []byte) string {
	return base64.RawURLEncoding.EncodeToString(value)
}
