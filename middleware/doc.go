// Package middleware is the inbound side of the communication layer. It
// wraps HTTP handlers so they always see plaintext: encrypted requests are
// opened before the handler runs, and responses are sealed after it returns
// when the caller asked for an encrypted reply.
//
// The middleware fails closed. A request that claims to be encrypted but
// cannot be opened, whether from an unknown peer or a bad authentication
// tag, is rejected with a client error and the handler never executes.
package middleware
