package utils

import (
	"strings"
	"time"
)

const DateOnlyFormat = "2006-01-02"

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"02-01-2006",
	"01/02/2006",
	"2006/01/02",
}

// ParseDateOnly reduces a date-ish string to YYYY-MM-DD.
// Strings that already start with an ISO date are truncated rather than
// round-tripped through time.Parse.
func ParseDateOnly(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) >= 10 {
		if _, err := time.Parse(DateOnlyFormat, s[:10]); err == nil {
			return s[:10], true
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateOnlyFormat), true
		}
	}
	return "", false
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999",
	"2006-01-02",
}

// ParseTimestamp parses a timestamp string to a UTC RFC3339 instant.
func ParseTimestamp(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC3339), true
		}
	}
	return "", false
}

// ChunkStrings splits ids into slices of at most size elements.
// Used to keep IN(...) clauses under the storage layer's parameter limits.
func ChunkStrings(ids []string, size int) [][]string {
	if size <= 0 || len(ids) == 0 {
		return nil
	}
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
