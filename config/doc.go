// Package config loads and validates the application configuration.
//
// Configuration comes from a config.yml resolved from standard locations,
// a .env file when present, and environment variables, each layer
// overriding the previous one. Load returns the fully defaulted and
// validated Config; callers never see a half-initialized one.
package config
