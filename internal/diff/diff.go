package diff

import (
	"strings"

	"github.com/shelfwatch/shelfwatch/internal/model"
)

// Result describes the differences between a stored record and a re-crawled one.
type Result struct {
	// Description is the human-readable summary, built from the labels of
	// the changed fields, e.g. "Price (including tax), Stock changed".
	Description string

	// Changes maps changed field names to their before/after values.
	Changes map[string]model.FieldChange
}

// itemizedField is one field that contributes to the detailed diff.
// The itemized set deliberately differs from the fingerprint set: the
// fingerprint gates on {title, price_incl, is_available, stock} while the
// itemized diff reports the fields a catalog operator cares about tracking.
type itemizedField struct {
	name  string
	label string
	value func(*model.Record) any
}

var itemizedFields = []itemizedField{
	{name: "price_incl", label: "Price (including tax)", value: func(r *model.Record) any { return r.PriceIncl }},
	{name: "price_excl", label: "Price (excluding tax)", value: func(r *model.Record) any { return r.PriceExcl }},
	{name: "stock", label: "Stock", value: func(r *model.Record) any { return r.Stock }},
	{name: "num_reviews", label: "Number of Reviews", value: func(r *model.Record) any { return r.NumReviews }},
	{name: "rating", label: "Rating", value: func(r *model.Record) any { return r.Rating }},
}

// Compare detects whether next differs from old.
//
// It returns nil when the fingerprints match, meaning no observable change.
// On a fingerprint mismatch it returns a Result describing every itemized
// field that differs. When the fingerprint differs but none of the itemized
// fields do (e.g. only the title changed), the Result carries the generic
// description "Content changed" and an empty change map.
//
// Both records must have ContentHash populated; Compare does not recompute
// fingerprints.
func Compare(old, next *model.Record) *Result {
	if old.ContentHash == next.ContentHash {
		return nil
	}

	res := &Result{Changes: make(map[string]model.FieldChange)}

	labels := make([]string, 0, len(itemizedFields))
	for _, f := range itemizedFields {
		prev := f.value(old)
		cur := f.value(next)
		if prev == cur {
			continue
		}
		labels = append(labels, f.label)
		res.Changes[f.name] = model.FieldChange{Previous: prev, Current: cur}
	}

	if len(labels) == 0 {
		res.Description = "Content changed"
		return res
	}

	res.Description = strings.Join(labels, ", ") + " changed"
	return res
}
