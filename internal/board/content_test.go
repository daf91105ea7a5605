package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatTaskContent(t *testing.T) {
	assert.Equal(t, "☐ Analyze brief", FormatTaskContent("Analyze brief", false))
	assert.Equal(t, "☑ Analyze brief", FormatTaskContent("Analyze brief", true))
}

func TestParseTaskContent(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		taskName  string
		completed bool
		ok        bool
	}{
		{"unchecked", "☐ Wireframes", "Wireframes", false, true},
		{"checked", "☑ Wireframes", "Wireframes", true, true},
		{"no space after mark", "☑Wireframes", "Wireframes", true, true},
		{"accented task name", "☐ Revisão 1", "Revisão 1", false, true},
		{"plain text", "Some sticky note", "", false, false},
		{"empty", "", "", false, false},
		{"mark not at start", "done ☑", "", false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			name, completed, ok := ParseTaskContent(tc.content)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.taskName, name)
			assert.Equal(t, tc.completed, completed)
		})
	}
}

func TestParseTaskContentRoundTrip(t *testing.T) {
	name, completed, ok := ParseTaskContent(FormatTaskContent("Final revision", true))
	assert.True(t, ok)
	assert.True(t, completed)
	assert.Equal(t, "Final revision", name)
}
