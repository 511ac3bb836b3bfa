// Package devicetoken issues and rotates the access/refresh token pairs held
// by wallet devices, and registers the devices those tokens are bound to.
//
// Refresh tokens are signed JWTs backed by a server-side record keyed by jti.
// A refresh token is usable once: rotation revokes the presented record and
// inserts its successor atomically. Refresh also requires the device
// credential minted at device registration, so a leaked refresh token is not
// usable from another device.
package devicetoken
