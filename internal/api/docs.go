package api

import "net/http"

// swaggerDoc is a hand-maintained OpenAPI 2.0 document describing spec.md
// §4.6's endpoint surface, served under /docs the way the teacher serves
// its swag-generated doc.json (cmd/server/docs.go, internal/api/chi_router.go).
const swaggerDoc = `{
  "swagger": "2.0",
  "info": {
    "title": "geobase API",
    "description": "A personal spatiotemporal database: unified storage, location enrichment, and query planning over heterogeneous life-event sources.",
    "version": "1.0"
  },
  "basePath": "/",
  "schemes": ["http", "https"],
  "securityDefinitions": {
    "APIKeyAuth": {
      "type": "apiKey",
      "in": "header",
      "name": "X-API-Key"
    }
  },
  "paths": {
    "/health": {"get": {"summary": "Liveness check", "responses": {"200": {"description": "ok"}}}},
    "/stats": {"get": {"summary": "Store totals and coverage", "responses": {"200": {"description": "ok"}}}},
    "/v1/entity": {"post": {"summary": "Upsert one entity", "security": [{"APIKeyAuth": []}], "responses": {"200": {"description": "ok"}}}},
    "/v1/entities/batch": {"post": {"summary": "Batched upsert", "security": [{"APIKeyAuth": []}], "responses": {"200": {"description": "ok"}}}},
    "/v1/query/time": {"post": {"summary": "Time-window / resample query", "security": [{"APIKeyAuth": []}], "responses": {"200": {"description": "ok"}}}},
    "/v1/query/bbox": {"post": {"summary": "Bounding-box query", "security": [{"APIKeyAuth": []}], "responses": {"200": {"description": "ok"}}}},
    "/v1/query/export": {"get": {"summary": "NDJSON export stream", "security": [{"APIKeyAuth": []}], "responses": {"200": {"description": "ok"}}}},
    "/v1/places": {"get": {"summary": "List places with stats", "security": [{"APIKeyAuth": []}], "responses": {"200": {"description": "ok"}}}},
    "/v1/places/{id}": {
      "get": {"summary": "Place detail with recent visits", "security": [{"APIKeyAuth": []}], "responses": {"200": {"description": "ok"}}},
      "patch": {"summary": "Rename/recolor a place, propagating to its visits", "security": [{"APIKeyAuth": []}], "responses": {"200": {"description": "ok"}}}
    },
    "/v1/visits": {"delete": {"summary": "Bulk delete visits, requires confirm=yes", "security": [{"APIKeyAuth": []}], "responses": {"200": {"description": "ok"}}}}
  }
}`

func serveSwaggerDoc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(swaggerDoc))
}
