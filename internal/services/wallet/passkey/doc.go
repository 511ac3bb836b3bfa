// Package passkey runs WebAuthn registration and authentication ceremonies
// for wallet users. Challenges live in a secretstore.Store and are consumed
// exactly once; credentials and their signature counters live in storage.
package passkey
