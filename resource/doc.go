// Package resource provides global resource management for a tierstore
// instance: a hard memory budget for hot-tier payloads and rate limiting
// for background eviction IO.
package resource
