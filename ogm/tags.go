package ogm

import (
	"fmt"
	"strings"
)

// FieldTag contains the structured representation of a parsed `ogm` struct tag.
type FieldTag struct {
	// Name overrides the property name. Empty means the Go field name.
	Name string
	// Key marks the field as part of the type's identity.
	Key bool
	// Skip indicates the field is not mapped.
	Skip bool
}

// ParseTag parses the content of an `ogm` struct tag.
// Accepted forms: "name", "-", "name,key", ",key".
func ParseTag(tag string) (FieldTag, error) {
	if tag == "" || tag == "-" {
		return FieldTag{Skip: tag == "-"}, nil
	}

	parts := strings.Split(tag, ",")
	ft := FieldTag{Name: strings.TrimSpace(parts[0])}
	if ft.Name == "key" && len(parts) == 1 {
		return FieldTag{Key: true}, nil
	}

	for _, part := range parts[1:] {
		switch strings.TrimSpace(part) {
		case "key":
			ft.Key = true
		case "":
		default:
			return FieldTag{}, fmt.Errorf("unknown tag option: %q", part)
		}
	}
	return ft, nil
}
