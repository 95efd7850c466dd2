package enums

import (
	"fmt"
	"slices"
)

func oneOf[T ~string](v T, set []T) bool {
	return slices.Contains(set, v)
}

// parseOneOf matches value exactly; kind names the enum in the error.
func parseOneOf[T ~string](kind, value string, set []T) (T, error) {
	if v := T(value); slices.Contains(set, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, value)
}
