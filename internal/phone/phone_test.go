package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "dashed", text: "call me at 555-123-4567 please", want: "555-123-4567"},
		{name: "country code and parentheses", text: "+1 (555) 123-4567", want: "+1 (555) 123-4567"},
		{name: "spaces", text: "555 123 4567", want: "555 123 4567"},
		{name: "bare digits", text: "number 5551234567", want: "5551234567"},
		{name: "first match wins", text: "555-123-4567 or 555-765-4321", want: "555-123-4567"},
		{name: "too short", text: "code 12345", want: ""},
		{name: "no digits", text: "interested!", want: ""},
		{name: "empty", text: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Extract(tt.text))
		})
	}
}
