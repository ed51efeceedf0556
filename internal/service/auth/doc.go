// Package auth verifies the bearer tokens presented to the API.
//
// Tokens are issued by the identity service; this package only checks the
// HMAC-SHA256 signature and the time claims and extracts the caller's user
// ID and role.
package auth
