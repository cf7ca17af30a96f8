package controllers

import (
	"strconv"
	"strings"

	"govdata-backend/analytics"
	"govdata-backend/cache"
	"govdata-backend/gateway"
)

// Package-level collaborators, wired once at startup.
var (
	gw         *gateway.Gateway
	cacheStore *cache.Store
	aggregator *analytics.Aggregator
)

// Setup injects the core components the controllers delegate to.
func Setup(g *gateway.Gateway, store *cache.Store, agg *analytics.Aggregator) {
	gw = g
	cacheStore = store
	aggregator = agg
}

// parseUintQuery reads an optional non-negative integer query parameter.
// Returns nil when absent or unparsable.
func parseUintQuery(raw string) *uint {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil
	}
	u := uint(v)
	return &u
}
