package utils

// MergeStrings merges the two slices, keeping order and dropping duplicates.
func MergeStrings(a, b []string) []string {
	var merged = make([]string, 0, len(a)+len(b))
	var seen = make(map[string]struct{}, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		merged = append(merged, s)
	}

	return merged
}
