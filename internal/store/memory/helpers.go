package memory

import "sort"

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func sortBy[T any](s []T, less func(a, b T) bool) {
	sort.SliceStable(s, func(i, j int) bool { return less(s[i], s[j]) })
}
