package bea

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strconv"

	"econstats-engine/internal/domain"
	"econstats-engine/internal/scrape/util"
)

// Table is a wide GeoFips x year table.
type Table struct {
	Header []string
	Rows   [][]string
}

// Pivot turns observations into one row per area with a column per year.
// Rows are sorted by GeoFips; missing observations are empty cells.
func Pivot(rows []Row) Table {
	type key struct{ fips, name string }
	cells := map[key]map[string]string{}
	yearSet := map[string]bool{}
	for _, r := range rows {
		k := key{r.GeoFips, r.GeoName}
		if cells[k] == nil {
			cells[k] = map[string]string{}
		}
		cells[k][r.TimePeriod] = util.CleanText(r.DataValue)
		yearSet[r.TimePeriod] = true
	}

	years := make([]string, 0, len(yearSet))
	for y := range yearSet {
		years = append(years, y)
	}
	sort.Strings(years)

	keys := make([]key, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].fips != keys[j].fips {
			return keys[i].fips < keys[j].fips
		}
		return keys[i].name < keys[j].name
	})

	t := Table{Header: append([]string{"GeoFips", "GeoName"}, years...)}
	for _, k := range keys {
		row := []string{k.fips, k.name}
		for _, y := range years {
			row = append(row, cells[k][y])
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// FileName is <table>_<first>-<last>.csv.
func FileName(q Query) string {
	if len(q.Years) == 0 {
		return q.Table + ".csv"
	}
	return fmt.Sprintf("%s_%d-%d.csv", q.Table, q.Years[0], q.Years[len(q.Years)-1])
}

// Run fetches q, pivots it and writes it under outDir. An API failure is
// reported as a skipped unit and a header-only table is written in its place;
// only a failure to write the file is returned as an error.
func Run(ctx context.Context, c *Client, q Query, outDir string) (string, domain.UnitResult, error) {
	path := filepath.Join(outDir, FileName(q))

	rows, err := c.GetData(ctx, q)
	var r domain.UnitResult
	if err != nil {
		log.Printf("[bea] table=%s err=%v", q.Table, err)
		r = domain.Skipped(q.Table, err.Error())
		rows = nil
	} else {
		r = domain.OK(q.Table)
	}

	t := Pivot(rows)
	if err := util.WriteCSV(path, t.Header, t.Rows); err != nil {
		return "", r, err
	}
	log.Printf("[bea] table=%s rows=%d saved=%s", q.Table, len(t.Rows), path)
	return path, r, nil
}

// Published narrows q.Years to the years BEA lists for q.Table. dropped
// holds the requested years the table does not have.
func Published(ctx context.Context, c *Client, q Query) (Query, []int, error) {
	opts, err := c.ParameterValues(ctx, q.Dataset, "Year", map[string]string{"TableName": q.Table})
	if err != nil {
		return q, nil, err
	}
	have := map[int]bool{}
	for _, o := range opts {
		if y, err := strconv.Atoi(o.Key); err == nil {
			have[y] = true
		}
	}
	var kept, dropped []int
	for _, y := range q.Years {
		if have[y] {
			kept = append(kept, y)
		} else {
			dropped = append(dropped, y)
		}
	}
	q.Years = kept
	return q, dropped, nil
}

// Years returns from..to inclusive.
func Years(from, to int) []int {
	var ys []int
	for y := from; y <= to; y++ {
		ys = append(ys, y)
	}
	return ys
}
