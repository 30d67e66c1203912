package model

import "time"

// ChangeKind identifies why a change event was recorded.
type ChangeKind string

// Change event kinds.
//
// Exactly one ChangeNew event exists per record, written when the record is
// first inserted during an incremental run. ChangeUpdated events accumulate
// whenever a re-crawl's fingerprint differs from the stored one.
const (
	// ChangeNew marks the first insertion of a previously-unseen record.
	ChangeNew ChangeKind = "new"

	// ChangeUpdated marks an in-place mutation of an existing record.
	ChangeUpdated ChangeKind = "updated"
)

// FieldChange captures the before and after values of a single field.
type FieldChange struct {
	// Previous is the stored value before the update.
	Previous any `json:"previous"`

	// Current is the freshly extracted value.
	Current any `json:"current"`
}

// ChangeEvent is one entry in the append-only audit log.
// Events are immutable after creation and are written in the same
// transaction as the record change they describe.
type ChangeEvent struct {
	// ID is the internal storage identifier. The report generator uses it
	// as the keyset pagination key, so it must be assigned in insertion order.
	ID int64 `json:"id"`

	// Kind is the event kind, ChangeNew or ChangeUpdated.
	Kind ChangeKind `json:"kind"`

	// RecordID references the affected record.
	RecordID int64 `json:"record_id"`

	// SourceURL is the source locator of the affected record.
	SourceURL string `json:"source_url"`

	// OccurredAt is when the event was recorded.
	OccurredAt time.Time `json:"occurred_at"`

	// Description is a human-readable list of changed field labels,
	// e.g. "Price (including tax), Stock changed". Empty for new events.
	Description string `json:"description,omitempty"`

	// Changes maps changed field names to their before/after values.
	// Nil for new events.
	Changes map[string]FieldChange `json:"changes,omitempty"`
}
