package logbus

import "sync"

// Buffer is a bounded, sequenced ring buffer of LogEntry records, read
// back categorized or filtered by source (spec.md §3: "Stored in a bounded
// ring buffer ... behind a plain lock with O(1) append and O(n)
// categorized read").
type Buffer struct {
	mu       sync.Mutex
	entries  []LogEntry
	capacity int
	nextSeq  uint64
}

// NewBuffer creates a ring buffer holding at most capacity entries.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{capacity: capacity}
}

// Append records e, assigning it the next sequence number, and evicts the
// oldest entry once the buffer is at capacity.
func (b *Buffer) Append(e LogEntry) LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSeq++
	e.Seq = b.nextSeq
	b.entries = append(b.entries, e)
	if len(b.entries) > b.capacity {
		b.entries = b.entries[len(b.entries)-b.capacity:]
	}
	return e
}

// Read returns entries with Seq > cursor, optionally filtered by source
// and category, oldest-first, capped at limit (0 means unlimited). It
// also returns the cursor a subsequent call should pass to continue from
// where this page left off.
func (b *Buffer) Read(source Source, category Category, cursor uint64, limit int) ([]LogEntry, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []LogEntry
	for _, e := range b.entries {
		if e.Seq <= cursor {
			continue
		}
		if source != "" && e.Source != source {
			continue
		}
		if category != "" && e.Category != category {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	next := cursor
	if len(out) > 0 {
		next = out[len(out)-1].Seq
	}
	return out, next
}

// Categorized groups every buffered entry by Category.
func (b *Buffer) Categorized() map[Category][]LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[Category][]LogEntry)
	for _, e := range b.entries {
		out[e.Category] = append(out[e.Category], e)
	}
	return out
}

// Sources returns the distinct sources seen among buffered entries.
func (b *Buffer) Sources() []Source {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := map[Source]bool{}
	var out []Source
	for _, e := range b.entries {
		if !seen[e.Source] {
			seen[e.Source] = true
			out = append(out, e.Source)
		}
	}
	return out
}

// Clear drops every entry in category, or every entry if category is "".
func (b *Buffer) Clear(category Category) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if category == "" {
		b.entries = nil
		return
	}
	kept := b.entries[:0]
	for _, e := range b.entries {
		if e.Category != category {
			kept = append(kept, e)
		}
	}
	b.entries = kept
}

// Len reports how many entries are currently buffered.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
