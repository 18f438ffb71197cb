// Package config loads, normalizes, and validates lessonmedia configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GEMINI_API_KEY and the LESSONMEDIA_S3_* credentials. The Config type
// centralizes every knob the daemon and CLI need, from generative model
// selection to composite layout.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
