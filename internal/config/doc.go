// Package config loads, normalizes, and validates packfetch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PACKFETCH_FLAME_META_URL and XDG_CACHE_HOME. The Config type centralizes
// every knob the tasks and CLI need so cache locations, download endpoints,
// and fan-out limits are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, slash-terminated base URLs, and clear validation errors.
package config
