// Package config loads and validates client configuration.
//
// Configuration is a JSON document layered over built-in defaults,
// with a small set of environment overrides (ACTORCORE_NAME,
// ACTORCORE_HUB_ADDR, ACTORCORE_LOG_LEVEL) for deployment scripts that
// cannot edit the file. Validate catches bad values before anything
// connects to the hub.
package config
