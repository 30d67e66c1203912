// Package diff implements two-phase change detection between a stored
// record and its freshly extracted counterpart.
//
// Phase one compares content fingerprints, which is the common case and
// costs a single string comparison. Only on a mismatch does phase two
// compare individual fields to build a human-readable change description
// and a per-field before/after map for the audit log.
package diff
