// Package api is the REST layer of orchard.
//
// Client is the shared core used for both the Orchard API and the
// per-app Docker hosts: resty over a retrying transport, rate limited and
// guarded by a circuit breaker, authenticating with "Token <token>" and
// logging every request as a curl command at debug level. Responses with
// an error status become *StatusError, classified the way the Orchard API
// reports problems (bad request, unauthorized, forbidden, not found,
// server error).
//
// Orchard adds the Orchard endpoints: sign in, the current customer, apps
// and hosts.
package api
