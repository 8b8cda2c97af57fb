package lifecycle

import (
	"unicode/utf8"

	"github.com/google/uuid"
)

// DefaultName is shown for participants that never picked a name.
const DefaultName = "Player"

func NewConnID() string {
	return uuid.NewString()
}

// TruncateName caps a display name at max runes. max <= 0 disables the cap.
func TruncateName(name string, max int) string {
	if max <= 0 || utf8.RuneCountInString(name) <= max {
		return name
	}
	n := 0
	for i := range name {
		if n == max {
			return name[:i]
		}
		n++
	}
	return name
}

// RenameTarget resolves a name-change request: empty names fall back to DefaultName.
func RenameTarget(name string, max int) string {
	if name == "" {
		name = DefaultName
	}
	return TruncateName(name, max)
}
