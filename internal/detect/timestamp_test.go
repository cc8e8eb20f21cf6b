package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		createdTime string
		cursor      uint64
		want        bool
	}{
		{name: "no cursor", createdTime: "2023-11-14T22:13:19+0000", cursor: 0, want: true},
		{name: "missing created time", createdTime: "", cursor: 1700000000, want: true},
		{name: "unparseable created time", createdTime: "yesterday", cursor: 1700000000, want: true},
		{name: "older than cursor", createdTime: "2023-11-14T22:13:19+0000", cursor: 1700000000, want: false},
		{name: "equal to cursor", createdTime: "2023-11-14T22:13:20+0000", cursor: 1700000000, want: false},
		{name: "newer than cursor", createdTime: "2023-11-14T22:13:25+0000", cursor: 1700000000, want: true},
		{name: "zulu suffix", createdTime: "2023-11-14T22:13:25Z", cursor: 1700000000, want: true},
		{name: "colon offset", createdTime: "2023-11-15T00:13:25+02:00", cursor: 1700000000, want: true},
		{name: "negative compact offset", createdTime: "2023-11-14T17:13:19-0500", cursor: 1700000000, want: false},
		{name: "before the epoch", createdTime: "1960-01-01T00:00:00Z", cursor: 1, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsNew(tt.createdTime, tt.cursor))
		})
	}
}

func TestIsNew_StrictlyAfterCursor(t *testing.T) {
	t.Parallel()

	base := time.Unix(1700000000, 0).UTC()
	for delta := -3; delta <= 3; delta++ {
		created := base.Add(time.Duration(delta) * time.Second).Format("2006-01-02T15:04:05-0700")
		assert.Equal(t, delta > 0, IsNew(created, 1700000000), created)
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	got, err := ParseTimestamp("2025-08-30T12:00:00+0200")
	require.NoError(t, err)
	assert.Equal(t, int64(1756548000), got.Unix())

	_, err = ParseTimestamp("")
	assert.Error(t, err)

	_, err = ParseTimestamp("30/08/2025")
	assert.ErrorContains(t, err, "invalid timestamp")
}

func TestNormalizeTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "2025-08-30T10:00:00+0000", want: "2025-08-30T10:00:00Z"},
		{in: "2025-08-30T12:00:00+0200", want: "2025-08-30T10:00:00Z"},
		{in: "2025-08-30T10:00:00Z", want: "2025-08-30T10:00:00Z"},
		{in: "", want: ""},
		{in: "not a time", want: "not a time"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeTimestamp(tt.in))
		})
	}
}
