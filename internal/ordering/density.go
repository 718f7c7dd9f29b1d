package ordering

import (
	"fmt"
	"sort"
)

// DensityError reports where a sequence departs from Base..n.
type DensityError struct {
	Missing    []int
	Duplicated []int
}

func (e *DensityError) Error() string {
	return fmt.Sprintf("positions are not dense: missing %v, duplicated %v", e.Missing, e.Duplicated)
}

// ValidateDensity returns a *DensityError unless the positions of s are
// exactly Base..len(s).
func ValidateDensity(s Sequence) error {
	seen := make(map[int]int, len(s))
	for _, e := range s {
		seen[e.Position]++
	}

	var derr DensityError
	for p := Base; p < Base+len(s); p++ {
		if seen[p] == 0 {
			derr.Missing = append(derr.Missing, p)
		}
	}
	for p, n := range seen {
		if n > 1 {
			derr.Duplicated = append(derr.Duplicated, p)
		}
	}
	if len(derr.Missing) == 0 && len(derr.Duplicated) == 0 {
		return nil
	}
	sort.Ints(derr.Duplicated)
	return &derr
}

// IsDense reports whether ValidateDensity would succeed.
func IsDense(s Sequence) bool {
	return ValidateDensity(s) == nil
}
