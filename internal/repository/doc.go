// Package repository defines the persistence interfaces for clinigraph.
//
// A SnapshotRepository is the external document store for session
// snapshots. It also keeps an append-only log of the execution events
// received for each session, so a session can be replayed later.
//
// The sqlite subpackage implements the interface on SQLite (pure Go
// driver, WAL mode). Snapshots are stored as JSON documents with their
// node and link counts indexed for listing.
package repository
