package indicators

import "sort"

// Trend is the national level of an indicator in one year and its growth
// over the previous year.
type Trend struct {
	Year      int
	Level     float64
	Growth    float64
	HasGrowth bool
}

type yearQuarter struct{ year, quarter int }

func trends(levels map[int][]float64) []Trend {
	years := make([]int, 0, len(levels))
	for y := range levels {
		years = append(years, y)
	}
	sort.Ints(years)

	out := make([]Trend, 0, len(years))
	for i, y := range years {
		var s float64
		for _, v := range levels[y] {
			s += v
		}
		t := Trend{Year: y, Level: s / float64(len(levels[y]))}
		if i > 0 && out[i-1].Level != 0 {
			t.Growth = (t.Level - out[i-1].Level) / out[i-1].Level
			t.HasGrowth = true
		}
		out = append(out, t)
	}
	return out
}

// NationalYFShare averages the quarterly young-firm share of the national
// export per year.
func NationalYFShare(records []Record) []Trend {
	young, all := map[yearQuarter]float64{}, map[yearQuarter]float64{}
	for _, r := range records {
		if r.Education != EduAll {
			continue
		}
		k := yearQuarter{r.Year, r.Quarter}
		switch {
		case youngAges[r.FirmAge]:
			young[k] += r.Emp
		case r.FirmAge == AgeAll:
			all[k] += r.Emp
		}
	}
	levels := map[int][]float64{}
	for k, d := range all {
		if d != 0 {
			levels[k.year] = append(levels[k.year], young[k]/d)
		}
	}
	return trends(levels)
}

// NationalYFKI averages the bachelor's share of each young firm-age group and
// quarter per year.
func NationalYFKI(records []Record) []Trend {
	type key struct {
		yearQuarter
		age string
	}
	groups := map[key]*buckets{}
	for _, r := range records {
		if !youngAges[r.FirmAge] || r.Education == EduAll {
			continue
		}
		k := key{yearQuarter{r.Year, r.Quarter}, r.FirmAge}
		if groups[k] == nil {
			groups[k] = &buckets{}
		}
		groups[k].add(r.Education, r.Emp)
	}
	levels := map[int][]float64{}
	for k, b := range groups {
		if ratio, ok := b.ratio(); ok {
			levels[k.year] = append(levels[k.year], ratio)
		}
	}
	return trends(levels)
}

// Project carries non-SMALL metros forward from their own year to the
// latest year covered by both the trend and the data, compounding each
// later year's national growth. A value already reflects its own year's
// growth, so compounding starts the year after. Projected values take that
// year and stay fractional.
func Project(vs []Value, ts []Trend) []Value {
	if len(ts) == 0 || len(vs) == 0 {
		return vs
	}
	growth := map[int]float64{}
	for _, t := range ts {
		if t.HasGrowth {
			growth[t.Year] = t.Growth
		}
	}
	end := ts[len(ts)-1].Year
	latest := vs[0].Year
	for _, v := range vs {
		latest = max(latest, v.Year)
	}
	end = min(end, latest)

	out := make([]Value, len(vs))
	for i, v := range vs {
		out[i] = v
		if v.Size == Small || v.Year >= end {
			continue
		}
		for y := v.Year + 1; y <= end; y++ {
			if g, ok := growth[y]; ok {
				out[i].V *= 1 + g
			}
		}
		out[i].Year = end
	}
	return out
}
