// Package ledger encodes and decodes the per-event prediction history
// stored in the event source's free-text analysis field. Pure, no I/O.
package ledger

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"NewsPulse/internal/domain/models"
)

// legacyNoteKey holds pre-structured free text migrated into the ledger.
const legacyNoteKey = "legacyNote"

// Markers older producers embedded into the free-text analysis field.
// They are stripped during legacy migration; anything else is preserved.
var legacyMarkers = []string{"【MACRO_SIGNAL】", "【1H_PREDICTION】"}

const entryTimeFormat = "2006-01-02T15:04:05"

// Entry is one serialized signal inside a horizon list.
type Entry struct {
	Timestamp      string  `json:"timestamp"`
	Direction      string  `json:"direction"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
	ChainOfThought string  `json:"chain_of_thought,omitempty"`
}

// ProducedAt parses the entry timestamp, reporting ok=false when it cannot.
func (e *Entry) ProducedAt() (time.Time, bool) {
	if t, err := time.Parse(entryTimeFormat, e.Timestamp); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, e.Timestamp); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

func newEntry(sig *models.Signal) Entry {
	return Entry{
		Timestamp:      sig.ProducedAt.UTC().Format(entryTimeFormat),
		Direction:      string(sig.Direction),
		Confidence:     sig.Confidence,
		Reasoning:      sig.Rationale,
		ChainOfThought: sig.DeepRationale,
	}
}

// Append adds sig to the horizon's list inside currentRaw and returns the
// updated serialized ledger. It never drops other horizon lists, the legacy
// note, or top-level fields it does not understand. retention caps the list
// length (keep newest); zero or negative means unlimited.
func Append(currentRaw string, sig *models.Signal, horizon models.Horizon, retention int) (string, error) {
	doc := parse(currentRaw)

	listName := horizon.ListName()
	list := doc.list(listName)

	entryRaw, err := json.Marshal(newEntry(sig))
	if err != nil {
		return "", err
	}
	list = append(list, entryRaw)
	if retention > 0 && len(list) > retention {
		list = list[len(list)-retention:]
	}

	listRaw, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	doc.fields[listName] = listRaw

	return doc.serialize()
}

// Signals extracts the decoded entries of one horizon list. A legacy or
// empty ledger yields nil. Entries that fail to decode individually are
// skipped rather than failing the whole list.
func Signals(raw string, horizon models.Horizon) []Entry {
	doc := parse(raw)
	list := doc.list(horizon.ListName())
	if len(list) == 0 {
		return nil
	}
	out := make([]Entry, 0, len(list))
	for _, itemRaw := range list {
		var e Entry
		if err := json.Unmarshal(itemRaw, &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out
}

// LegacyNote returns the migrated free-text note, if any.
func LegacyNote(raw string) string {
	doc := parse(raw)
	noteRaw, ok := doc.fields[legacyNoteKey]
	if !ok {
		return ""
	}
	var note string
	if err := json.Unmarshal(noteRaw, &note); err != nil {
		return ""
	}
	return note
}

// LegacyDirection extracts a single directional token from a pre-structured
// pipe-delimited analysis string (`⚡【1H_PREDICTION】:0.8|BULLISH|...`).
// Used by the backtest engine as a fallback; the caller substitutes the
// event's own timestamp for the missing producedAt.
func LegacyDirection(raw string) (models.Direction, bool) {
	if raw == "" || strings.HasPrefix(strings.TrimSpace(raw), "{") {
		return "", false
	}
	for _, part := range strings.Split(raw, " || ") {
		idx := strings.Index(part, "】:")
		if idx < 0 {
			continue
		}
		fields := strings.Split(part[idx+len("】:"):], "|")
		if len(fields) < 2 {
			continue
		}
		switch d := models.Direction(strings.ToUpper(strings.TrimSpace(fields[1]))); d {
		case models.DirectionBullish, models.DirectionBearish, models.DirectionNeutral:
			return d, true
		}
	}
	return "", false
}

// document is a parsed ledger: top-level fields kept as raw JSON so unknown
// producers' data round-trips untouched.
type document struct {
	fields map[string]json.RawMessage
}

func parse(raw string) *document {
	doc := &document{fields: make(map[string]json.RawMessage)}
	if raw == "" {
		return doc
	}

	if err := json.Unmarshal([]byte(raw), &doc.fields); err != nil || doc.fields == nil {
		// Legacy free text: keep everything except known signal markers.
		doc.fields = make(map[string]json.RawMessage)
		if note := cleanLegacyText(raw); note != "" {
			noteRaw, _ := json.Marshal(note)
			doc.fields[legacyNoteKey] = noteRaw
		}
	}
	return doc
}

func cleanLegacyText(raw string) string {
	parts := strings.Split(raw, " || ")
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		marked := false
		for _, m := range legacyMarkers {
			if strings.Contains(p, m) {
				marked = true
				break
			}
		}
		if !marked {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " || ")
}

// list returns the horizon list as raw items. A legacy single-object value
// is wrapped as a one-element list (schema migration, not data loss).
func (d *document) list(name string) []json.RawMessage {
	cur, ok := d.fields[name]
	if !ok {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(cur, &items); err == nil {
		return items
	}
	return []json.RawMessage{cur}
}

// serialize writes the fields back with sorted keys for stable round trips.
func (d *document) serialize() (string, error) {
	keys := make([]string, 0, len(d.fields))
	for k := range d.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		keyRaw, err := json.Marshal(k)
		if err != nil {
			return "", err
		}
		b.Write(keyRaw)
		b.WriteByte(':')
		b.Write(d.fields[k])
	}
	b.WriteByte('}')
	return b.String(), nil
}
