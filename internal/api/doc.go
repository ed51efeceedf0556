// Package api exposes the enrollment ledger over HTTP.
//
// Handlers read the caller from the request context (see
// middleware.Authenticate), decode and validate JSON bodies, call the
// ledger or query service and map the returned errors to status codes with
// HandleAPIError. Lifecycle rule violations are reported with their reason;
// every other failure gets a fixed message.
package api
