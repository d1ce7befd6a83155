// Package cache provides the in-process data structures geobase's ingestion
// and enrichment paths use to avoid re-deriving expensive results: a generic
// TTL/LRU cache for the location resolver, and a spatial hash grid for
// neighbor-accelerated place clustering. Adapted from the teacher repo's
// internal/cache package.
package cache
