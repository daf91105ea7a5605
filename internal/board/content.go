package board

import "strings"

// Checkbox marks used in task widget content. A widget reading "☑ Revisão 1"
// is the completed form of the task "Revisão 1".
const (
	CheckedMark   = "☑"
	UncheckedMark = "☐"
)

// FormatTaskContent renders the widget content for a task.
func FormatTaskContent(taskName string, completed bool) string {
	mark := UncheckedMark
	if completed {
		mark = CheckedMark
	}
	return mark + " " + taskName
}

// ParseTaskContent extracts the task name and completion flag from widget
// content. Returns ok=false when the content is not checkbox-shaped.
func ParseTaskContent(content string) (taskName string, completed bool, ok bool) {
	switch {
	case strings.HasPrefix(content, CheckedMark):
		return strings.TrimSpace(strings.TrimPrefix(content, CheckedMark)), true, true
	case strings.HasPrefix(content, UncheckedMark):
		return strings.TrimSpace(strings.TrimPrefix(content, UncheckedMark)), false, true
	}
	return "", false, false
}
