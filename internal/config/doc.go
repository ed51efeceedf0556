// Package config handles configuration loading, parsing, and validation
// from environment variables (COURSEHUB_ prefix) and an optional
// config.yaml. It provides type-safe access to the settings needed by the
// server, the stores, and the enrollment ledger while keeping configuration
// details separate from business logic.
package config
