// Package service coordinates the engine manager with the snapshot store.
//
// SessionService opens document instances from stored snapshots, saves
// instances back, imports and exports snapshots through the codec
// package, and records every execution event it forwards so a session can
// be replayed into a fresh document instance.
package service
