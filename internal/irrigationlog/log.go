package irrigationlog

import "github.com/prite36/smart-irrigation/internal/models"

// DefaultRecent is how many entries Recent returns when n is not positive.
const DefaultRecent = 50

// Sink receives every entry after it has been committed to the log.
type Sink interface {
	Record(entry models.LogEntry)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(entry models.LogEntry)

func (f SinkFunc) Record(entry models.LogEntry) { f(entry) }

// Log is an append-only record of control actions. Storage grows for the
// lifetime of the process; only reads are bounded.
// It is not safe for concurrent use; the irrigation controller serializes access.
type Log struct {
	entries []models.LogEntry
}

func New() *Log {
	return &Log{}
}

func (l *Log) Append(entry models.LogEntry) {
	l.entries = append(l.entries, entry)
}

// Recent returns up to n entries, newest first.
func (l *Log) Recent(n int) []models.LogEntry {
	if n <= 0 {
		n = DefaultRecent
	}
	if n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]models.LogEntry, 0, n)
	for i := len(l.entries) - 1; i >= len(l.entries)-n; i-- {
		out = append(out, l.entries[i])
	}
	return out
}

func (l *Log) Len() int {
	return len(l.entries)
}
