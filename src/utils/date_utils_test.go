package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDateOnly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-12-27", "2024-12-27", true},
		{"2024-12-27T10:15:00Z", "2024-12-27", true},
		{" 2024-12-27 10:15:00 ", "2024-12-27", true},
		{"27-12-2024", "2024-12-27", true},
		{"not a date", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseDateOnly(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	got, ok := ParseTimestamp("2024-11-01 09:30:00")
	assert.True(t, ok)
	assert.Equal(t, "2024-11-01T09:30:00Z", got)

	got, ok = ParseTimestamp("2024-11-01T09:30:00+01:00")
	assert.True(t, ok)
	assert.Equal(t, "2024-11-01T08:30:00Z", got)

	_, ok = ParseTimestamp("yesterday")
	assert.False(t, ok)
}

func TestChunkStrings(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ChunkStrings(nil, 2))
	assert.Nil(t, ChunkStrings([]string{"a"}, 0))

	chunks := ChunkStrings([]string{"a", "b", "c", "d", "e"}, 2)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, chunks)
}
