package schema

import (
	"strings"

	"github.com/google/uuid"
)

// IDScheme reports whether a value is a well-formed durable identifier.
type IDScheme func(id string) bool

// UUIDScheme accepts canonical hyphenated UUIDs, the format the ticket store issues.
func UUIDScheme(id string) bool {
	id = strings.TrimSpace(id)
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// AnyNonEmpty accepts any non-blank identifier. Useful for stores with opaque keys.
func AnyNonEmpty(id string) bool {
	return strings.TrimSpace(id) != ""
}

// FindDepartment resolves a department by case-insensitive exact name match.
func FindDepartment(departments []Department, name string) (Department, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Department{}, false
	}
	for _, d := range departments {
		if strings.EqualFold(strings.TrimSpace(d.Name), name) {
			return d, true
		}
	}
	return Department{}, false
}
