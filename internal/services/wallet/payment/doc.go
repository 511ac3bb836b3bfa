// Package payment drives merchant-initiated payment requests through the
// authorization state machine:
//
//	pending -> approved -> completed
//	pending -> cancelled
//	approved -> cancelled
//
// A request whose expiry has passed while still pending or approved reads as
// expired. Every transition is a guarded update on the prior status, so two
// racing callers cannot both move the same request.
package payment
