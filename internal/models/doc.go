// Package models defines the data structures shared across geobase: the
// Entity record and its derived fields, the per-source watermark, place and
// visit payloads produced by the secondary ingester, and the request/response
// shapes of the HTTP API.
//
// Entity is the single source of truth for the unified data model (spec §3.1):
// every ingested record from every source — GPS fixes, listening history,
// calendar events, photos, transactions, sleep sessions, place visits — is
// represented as one Entity, distinguished only by its Type and Payload.
package models
