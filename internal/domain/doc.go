// Package domain defines the core types of the clinigraph session analysis engine.
//
// # Core Types
//
// Node is one entity of a session graph (symptom, diagnosis, treatment,
// action) or of an execution graph (reasoning step). Kind-specific payload
// fields are clamped to their documented ranges by Normalize.
//
// Link is a directed, typed relationship between two nodes with a strength
// in [0,1] and an active flag. A link may exist before it is semantically live.
//
// SessionAnalysis is the snapshot exchanged with the external document
// store: nodes grouped by kind, links and the clinician's action log.
//
// ThresholdConfig holds the per-kind visibility cutoffs. Symptoms and
// treatments use a ceiling (raising it reveals more), diagnoses use a floor
// (raising it hides more).
//
// # Design Principles
//
// - Records are values; Clone produces independent copies
// - No database or external dependencies
// - Pure domain logic without infrastructure concerns
package domain
