// Package model defines the core data structures for shelfwatch.
//
// The two central types are Record, one harvested catalog item, and
// ChangeEvent, an append-only audit entry describing how a Record came to
// be inserted or mutated. Records carry a content fingerprint over their
// mutable observable fields so that re-crawling an unchanged page can be
// detected without a field-by-field comparison.
package model
