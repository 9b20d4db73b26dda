// Package model defines the shared value types of the tierstore engine:
// record keys, tier identifiers and hints exchanged between the coordinator
// and the individual tiers.
package model
