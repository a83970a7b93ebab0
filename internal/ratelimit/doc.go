// Package ratelimit implements admission control for mutating requests.
//
// A Store keeps fixed-window counters: the first hit on a key starts a window
// of the requested length, later hits increment the same counter, and once the
// window expires the key disappears and counting restarts at 1. A burst that
// straddles a window boundary can therefore admit up to twice the configured
// maximum. That approximation is accepted.
//
// A Limiter applies one or more Rules to a request Subject. Every rule must
// pass; the first rule over quota aborts the request with a *QuotaError.
package ratelimit
