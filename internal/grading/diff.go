package grading

import (
	"strconv"
	"strings"
)

// KeyDiff is the set difference between two lists of storage keys.
type KeyDiff struct {
	Added   []string
	Removed []string
}

// DiffKeys returns keys present only in next (Added) and only in previous (Removed).
// Blank keys and duplicates are ignored; order follows the input lists.
func DiffKeys(previous, next []string) KeyDiff {
	previousSet := keySet(previous)
	nextSet := keySet(next)

	var diff KeyDiff
	for _, key := range uniqueKeys(next) {
		if _, ok := previousSet[key]; !ok {
			diff.Added = append(diff.Added, key)
		}
	}
	for _, key := range uniqueKeys(previous) {
		if _, ok := nextSet[key]; !ok {
			diff.Removed = append(diff.Removed, key)
		}
	}
	return diff
}

func keySet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	return set
}

func uniqueKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	result := make([]string, 0, len(keys))
	for _, key := range keys {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

func describeID(id *uint) string {
	if id == nil {
		return "<missing id>"
	}
	return strconv.FormatUint(uint64(*id), 10)
}
