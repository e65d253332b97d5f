package bls

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"econstats-engine/internal/scrape/util"
)

// Table is one row per series and one column per <year>-<period>.
type Table struct {
	Header []string
	Rows   [][]string
}

func column(year, period string) string { return year + "-" + period }

// periodTime parses a <year>-<Month> column; ok is false for anything else.
func periodTime(col string) (time.Time, bool) {
	t, err := time.Parse("2006-January", col)
	return t, err == nil
}

// Pivot builds the wide table. Columns are ordered by date, rows by first
// appearance; a missing observation is "0". The first value seen for a cell
// wins.
func Pivot(obs []Observation) Table {
	var order []string
	cells := map[string]map[string]string{}
	cols := map[string]bool{}
	for _, o := range obs {
		if cells[o.SeriesID] == nil {
			cells[o.SeriesID] = map[string]string{}
			order = append(order, o.SeriesID)
		}
		c := column(o.Year, o.PeriodName)
		if _, dup := cells[o.SeriesID][c]; !dup {
			cells[o.SeriesID][c] = o.Value
		}
		cols[c] = true
	}

	header := make([]string, 0, len(cols))
	for c := range cols {
		header = append(header, c)
	}
	sortByDate(header)

	t := Table{Header: append([]string{"series_id"}, header...)}
	for _, id := range order {
		row := []string{id}
		for _, c := range header {
			v, ok := cells[id][c]
			if !ok {
				v = "0"
			}
			row = append(row, v)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// sortByDate orders month columns chronologically; anything that is not a
// month sorts after them by name.
func sortByDate(cols []string) {
	sort.SliceStable(cols, func(i, j int) bool {
		ti, iok := periodTime(cols[i])
		tj, jok := periodTime(cols[j])
		switch {
		case iok && jok:
			return ti.Before(tj)
		case iok != jok:
			return iok
		}
		return cols[i] < cols[j]
	})
}

func yearOf(col string) string {
	y, _, _ := strings.Cut(col, "-")
	return y
}

// isPeriod reports whether col is a <year>-<month or quarter> column.
func isPeriod(col string) bool {
	y, p, found := strings.Cut(col, "-")
	if !found || len(y) != 4 || p == "Annual" {
		return false
	}
	_, err := strconv.Atoi(y)
	return err == nil
}

// annual folds the period columns of each row by year. A non-numeric value
// poisons its year for that row.
func annual(t Table) (years []string, sums [][]float64, ok [][]bool) {
	idx := map[string]int{}
	for _, c := range t.Header[1:] {
		if !isPeriod(c) {
			continue
		}
		y := yearOf(c)
		if _, seen := idx[y]; !seen {
			idx[y] = len(years)
			years = append(years, y)
		}
	}
	sums = make([][]float64, len(t.Rows))
	ok = make([][]bool, len(t.Rows))
	for r, row := range t.Rows {
		sums[r] = make([]float64, len(years))
		ok[r] = make([]bool, len(years))
		for i := range ok[r] {
			ok[r][i] = true
		}
		for c, name := range t.Header[1:] {
			if !isPeriod(name) {
				continue
			}
			y := idx[yearOf(name)]
			v, num := util.Number(row[c+1])
			if !num {
				ok[r][y] = false
				continue
			}
			sums[r][y] += v
		}
	}
	return years, sums, ok
}

func format(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// WithAnnualMeans inserts <year>-Annual (sum/12) right after <year>-December.
// Years without a December column get no annual column.
func WithAnnualMeans(t Table) Table {
	years, sums, ok := annual(t)
	yi := map[string]int{}
	for i, y := range years {
		yi[y] = i
	}

	type slot struct{ src, year int } // src column index, or -1 for an annual value
	var slots []slot
	out := Table{Header: []string{"series_id"}}
	for c, name := range t.Header[1:] {
		out.Header = append(out.Header, name)
		slots = append(slots, slot{src: c + 1, year: -1})
		if strings.HasSuffix(name, "-December") {
			if i, found := yi[yearOf(name)]; found {
				out.Header = append(out.Header, column(yearOf(name), "Annual"))
				slots = append(slots, slot{src: -1, year: i})
			}
		}
	}
	for r, row := range t.Rows {
		nr := []string{row[0]}
		for _, s := range slots {
			switch {
			case s.src >= 0:
				nr = append(nr, row[s.src])
			case ok[r][s.year]:
				nr = append(nr, format(sums[r][s.year]/12))
			default:
				nr = append(nr, "")
			}
		}
		out.Rows = append(out.Rows, nr)
	}
	return out
}

// AnnualSums returns series_id and one <year>-Annual total per year.
func AnnualSums(t Table) Table {
	years, sums, ok := annual(t)
	out := Table{Header: []string{"series_id"}}
	for _, y := range years {
		out.Header = append(out.Header, column(y, "Annual"))
	}
	for r, row := range t.Rows {
		nr := []string{row[0]}
		for i := range years {
			if ok[r][i] {
				nr = append(nr, format(sums[r][i]))
			} else {
				nr = append(nr, "")
			}
		}
		out.Rows = append(out.Rows, nr)
	}
	return out
}
