package domain

import (
	"fmt"
	"time"
)

// Diagnostics collects the non-fatal events of a single run: rejected
// actions, skipped instruments, strategy failures. Entries are ordered and
// surfaced alongside the run's result so nothing is silently discarded.
type Diagnostics struct {
	entries []string
}

// Add appends a dated, formatted entry.
func (d *Diagnostics) Add(date time.Time, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	d.entries = append(d.entries, fmt.Sprintf("%s %s", date.Format("2006-01-02"), msg))
}

// Entries returns a copy of all recorded entries in order.
func (d *Diagnostics) Entries() []string {
	out := make([]string, len(d.entries))
	copy(out, d.entries)
	return out
}

// Len reports the number of recorded entries.
func (d *Diagnostics) Len() int { return len(d.entries) }
