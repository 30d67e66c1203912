// Package extract turns catalog HTML into structured data.
//
// It provides two pure functions over HTML text: listing pages yield the
// ordered item URLs they link to, and item pages yield a best-effort
// Record. Extraction never fails: a malformed or missing field degrades to
// its zero value so that one broken fragment cannot lose the whole record.
package extract
