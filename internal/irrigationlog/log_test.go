package irrigationlog

import (
	"testing"

	"github.com/prite36/smart-irrigation/internal/models"
)

func fill(l *Log, n int) {
	for i := 0; i < n; i++ {
		l.Append(models.LogEntry{Duration: i, Action: models.ActionManualStart})
	}
}

func TestRecentOrderAndBound(t *testing.T) {
	testCases := []struct {
		name      string
		appended  int
		n         int
		wantLen   int
		wantFirst int
	}{
		{"empty log", 0, 50, 0, -1},
		{"fewer than requested", 3, 50, 3, 2},
		{"exactly default", 50, 0, 50, 49},
		{"more than default", 120, 0, 50, 119},
		{"explicit n", 10, 4, 4, 9},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l := New()
			fill(l, tc.appended)

			got := l.Recent(tc.n)
			if len(got) != tc.wantLen {
				t.Fatalf("Expected %d entries, got %d", tc.wantLen, len(got))
			}
			if tc.wantLen == 0 {
				return
			}
			if got[0].Duration != tc.wantFirst {
				t.Errorf("Expected newest entry %d first, got %d", tc.wantFirst, got[0].Duration)
			}
			for i := 1; i < len(got); i++ {
				if got[i].Duration != got[i-1].Duration-1 {
					t.Fatalf("Expected reverse chronological order at %d, got %d after %d", i, got[i].Duration, got[i-1].Duration)
				}
			}
		})
	}
}

func TestRecentDoesNotTruncateStorage(t *testing.T) {
	l := New()
	fill(l, 75)

	_ = l.Recent(0)
	if l.Len() != 75 {
		t.Errorf("Expected 75 stored entries after read, got %d", l.Len())
	}

	// Mutating the returned slice must not touch the log.
	got := l.Recent(1)
	got[0].Duration = -100
	if l.Recent(1)[0].Duration != 74 {
		t.Error("Expected Recent to return a copy")
	}
}
