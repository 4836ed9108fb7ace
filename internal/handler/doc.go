// Package handler implements the HTTP API of clinigraph.
//
// # Instances
//
// Every engine instance is addressed by its id under /api/instances. The
// global live instance is also reachable under /api/live, where the session
// id in the path re-keys it when the live session changes.
//
// # Snapshots
//
// /api/snapshots imports, exports, lists, deletes and replays stored
// session snapshots.
//
// # Response Format
//
// Success responses return JSON data with appropriate status codes (200, 201).
// Error responses return JSON with {error, details} structure.
//
// # Server-Sent Events
//
// The /events endpoint streams engine changes; see package hub.
package handler
