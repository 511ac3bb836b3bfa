// Package httpapi exposes the wallet core over JSON/HTTP.
//
// Three credentials reach the API: device access tokens (Authorization:
// Bearer <jwt>), merchant API keys (Authorization: Bearer mk_... or
// X-API-Key), and partner HMAC signatures (X-Signature). Each route accepts
// exactly the credentials listed in its registration.
package httpapi
