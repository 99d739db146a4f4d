// Package config loads, normalizes, and validates chapterreel configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CHAPTERREEL_OUTPUT_DIR. The Config type centralizes the output location,
// scratch root, and encoder settings so a pipeline run never consults
// process-wide state.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
