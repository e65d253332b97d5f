package indicators

import (
	"math"
	"sort"
)

// Value is one metro's indicator for one year.
type Value struct {
	CBSA string
	Year int
	Size Size
	V    float64
}

type metroYear struct {
	cbsa string
	year int
}

type metroQuarter struct {
	metroYear
	quarter int
}

// buckets sums Emp per education level.
type buckets struct{ less, high, some, bachelor float64 }

func (b *buckets) add(edu string, emp float64) {
	switch edu {
	case EduLessHigh:
		b.less += emp
	case EduHigh:
		b.high += emp
	case EduSome:
		b.some += emp
	case EduBachelor:
		b.bachelor += emp
	}
}

func (b buckets) ratio() (float64, bool) {
	total := b.less + b.high + b.some + b.bachelor
	if total == 0 {
		return 0, false
	}
	return b.bachelor / total, true
}

// metroSize returns the size class for a metropolitan CBSA; micropolitan and
// unknown codes are rejected.
func metroSize(pop Population, cbsa string) (Size, bool) {
	a, ok := pop[cbsa]
	if !ok || a.LSAD != Metropolitan {
		return "", false
	}
	return Categorize(a.Population), true
}

// YFShare is 100 x young-firm Emp / all-firm-ages Emp per metro and year,
// summed over the year's quarters. Only all-education rows count. Groups with
// no all-ages employment are dropped.
func YFShare(records []Record, pop Population) []Value {
	young, all := map[metroYear]float64{}, map[metroYear]float64{}
	sizes := map[string]Size{}
	for _, r := range records {
		if r.Education != EduAll {
			continue
		}
		size, ok := metroSize(pop, r.CBSA)
		if !ok {
			continue
		}
		sizes[r.CBSA] = size
		k := metroYear{r.CBSA, r.Year}
		switch {
		case youngAges[r.FirmAge]:
			young[k] += r.Emp
		case r.FirmAge == AgeAll:
			all[k] += r.Emp
		}
	}

	var out []Value
	for k, d := range all {
		if d == 0 {
			continue
		}
		out = append(out, Value{CBSA: k.cbsa, Year: k.year, Size: sizes[k.cbsa], V: 100 * young[k] / d})
	}
	sortValues(out)
	return out
}

// YFKI is 100 x the mean over quarters of bachelor's-degree Emp divided by
// Emp across the four education levels, for young firms only.
func YFKI(records []Record, pop Population) []Value {
	qs := map[metroQuarter]*buckets{}
	sizes := map[string]Size{}
	for _, r := range records {
		if !youngAges[r.FirmAge] || r.Education == EduAll {
			continue
		}
		size, ok := metroSize(pop, r.CBSA)
		if !ok {
			continue
		}
		sizes[r.CBSA] = size
		k := metroQuarter{metroYear{r.CBSA, r.Year}, r.Quarter}
		if qs[k] == nil {
			qs[k] = &buckets{}
		}
		qs[k].add(r.Education, r.Emp)
	}

	sum, n := map[metroYear]float64{}, map[metroYear]int{}
	for k, b := range qs {
		if ratio, ok := b.ratio(); ok {
			sum[k.metroYear] += ratio
			n[k.metroYear]++
		}
	}
	var out []Value
	for k, s := range sum {
		out = append(out, Value{CBSA: k.cbsa, Year: k.year, Size: sizes[k.cbsa], V: 100 * s / float64(n[k])})
	}
	sortValues(out)
	return out
}

func sortValues(vs []Value) {
	sort.Slice(vs, func(i, j int) bool {
		if vs[i].CBSA != vs[j].CBSA {
			return vs[i].CBSA < vs[j].CBSA
		}
		return vs[i].Year < vs[j].Year
	})
}

// Scored is a Value with its z-score across the whole indicator.
type Scored struct {
	Value
	Z float64
}

// ZScores standardises with the sample standard deviation. With fewer than
// two values, or no spread, every score is 0.
func ZScores(vs []Value) []Scored {
	out := make([]Scored, len(vs))
	var mean float64
	for _, v := range vs {
		mean += v.V
	}
	if len(vs) > 0 {
		mean /= float64(len(vs))
	}
	var ss float64
	for _, v := range vs {
		ss += (v.V - mean) * (v.V - mean)
	}
	std := 0.0
	if len(vs) > 1 {
		std = math.Sqrt(ss / float64(len(vs)-1))
	}
	for i, v := range vs {
		out[i].Value = v
		if std > 0 {
			out[i].Z = (v.V - mean) / std
		}
	}
	return out
}
