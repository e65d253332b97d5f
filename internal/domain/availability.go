package domain

import (
	"sort"
	"strconv"
)

// YearAvailability maps a 4-digit year to the metro geo ids whose most recent
// fully populated year it is.
type YearAvailability map[string][]string

// Contribution is what a single state adds to a YearAvailability.
type Contribution struct {
	State  string
	Year   string
	Metros []string
}

// Merge returns a new YearAvailability with c folded in. The receiver is not
// modified. A metro already present under any year keeps its first year.
func (a YearAvailability) Merge(c Contribution) YearAvailability {
	out := make(YearAvailability, len(a)+1)
	seen := map[string]bool{}
	for y, ms := range a {
		out[y] = append([]string(nil), ms...)
		for _, m := range ms {
			seen[m] = true
		}
	}
	if c.Year == "" {
		return out
	}
	for _, m := range c.Metros {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out[c.Year] = append(out[c.Year], m)
	}
	return out
}

// Years returns the discovered years in ascending order.
func (a YearAvailability) Years() []string {
	ys := make([]string, 0, len(a))
	for y := range a {
		ys = append(ys, y)
	}
	sort.Strings(ys)
	return ys
}

// Span returns the numeric min and max year. ok is false when a is empty or a
// key is not a number.
func (a YearAvailability) Span() (min, max int, ok bool) {
	first := true
	for y := range a {
		n, err := strconv.Atoi(y)
		if err != nil {
			return 0, 0, false
		}
		if first || n < min {
			min = n
		}
		if first || n > max {
			max = n
		}
		first = false
	}
	return min, max, !first
}

// MetroCount is the total number of metro ids across all years.
func (a YearAvailability) MetroCount() int {
	n := 0
	for _, ms := range a {
		n += len(ms)
	}
	return n
}
