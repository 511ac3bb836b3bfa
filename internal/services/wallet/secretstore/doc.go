// Package secretstore holds short-lived single-use secrets such as passkey
// challenges. Reads are destructive: a secret is handed out at most once.
package secretstore
