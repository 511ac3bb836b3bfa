package passkey

import (
	"sort"

	"github.com/go-webauthn/webauthn/protocol"
)

// Transport is a hint for how the client reaches an authenticator.
type Transport int

const (
	TransportUnknown Transport = iota
	TransportInternal
	TransportHybrid
	TransportUSB
	TransportNFC
	TransportBLE
	TransportSmartCard
)

// ParseTransport maps a WebAuthn transport string to a Transport.
func ParseTransport(value protocol.AuthenticatorTransport) Transport {
	switch value {
	case protocol.Internal:
		return TransportInternal
	case protocol.Hybrid:
		return TransportHybrid
	case protocol.USB:
		return TransportUSB
	case protocol.NFC:
		return TransportNFC
	case protocol.BLE:
		return TransportBLE
	case protocol.SmartCard:
		return TransportSmartCard
	default:
		return TransportUnknown
	}
}

// String returns the WebAuthn name of the transport.
func (t Transport) String() string {
	switch t {
	case TransportInternal:
		return string(protocol.Internal)
	case TransportHybrid:
		return string(protocol.Hybrid)
	case TransportUSB:
		return string(protocol.USB)
	case TransportNFC:
		return string(protocol.NFC)
	case TransportBLE:
		return string(protocol.BLE)
	case TransportSmartCard:
		return string(protocol.SmartCard)
	default:
		return "unknown"
	}
}

// Preference ranks transports for allow-lists; lower is offered first.
// A local platform authenticator beats anything that needs a second device.
func (t Transport) Preference() int {
	switch t {
	case TransportInternal:
		return 0
	case TransportUSB:
		return 1
	case TransportNFC:
		return 2
	case TransportBLE:
		return 3
	case TransportSmartCard:
		return 4
	case TransportHybrid:
		return 5
	default:
		return 6
	}
}

// IsPlatform reports whether the transport is the device's own authenticator.
func (t Transport) IsPlatform() bool {
	return t == TransportInternal
}

// bestTransport returns the most preferred transport among hints.
func bestTransport(hints []protocol.AuthenticatorTransport) Transport {
	best := TransportUnknown
	for _, hint := range hints {
		candidate := ParseTransport(hint)
		if candidate.Preference() < best.Preference() {
			best = candidate
		}
	}
	return best
}

// rankCredentials orders descriptors by transport preference. When any
// credential is platform-bound, only platform-bound credentials are kept so
// the client never falls back to a cross-device prompt.
func rankCredentials(descriptors []protocol.CredentialDescriptor) []protocol.CredentialDescriptor {
	hasPlatform := false
	for _, d := range descriptors {
		if bestTransport(d.Transport).IsPlatform() {
			hasPlatform = true
			break
		}
	}

	ranked := make([]protocol.CredentialDescriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if hasPlatform && !bestTransport(d.Transport).IsPlatform() {
			continue
		}
		ranked = append(ranked, d)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return bestTransport(ranked[i].Transport).Preference() < bestTransport(ranked[j].Transport).Preference()
	})
	return ranked
}
