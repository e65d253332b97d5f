package bls

import (
	"fmt"
	"strconv"

	"econstats-engine/internal/scrape/util"
)

// Series id suffixes: private-sector all-industry employment and total wages.
const (
	Employment = "10010"
	Wages      = "50010"
)

// SeriesID builds the QCEW county series id ENU<fips5><suffix>.
func SeriesID(fips int, suffix string) string {
	return fmt.Sprintf("ENU%05d%s", fips, suffix)
}

// CountyFIPS reads the fips column of the county master file.
func CountyFIPS(path string) ([]int, error) {
	header, rows, err := util.ReadCSV(path)
	if err != nil {
		return nil, err
	}
	col := util.Column(header, "fips")
	if col < 0 {
		return nil, fmt.Errorf("%s: no fips column", path)
	}
	out := make([]int, 0, len(rows))
	for i, r := range rows {
		if col >= len(r) {
			continue
		}
		n, err := strconv.Atoi(util.CleanText(r[col]))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: fips %q: %w", path, i+2, r[col], err)
		}
		out = append(out, n)
	}
	return out, nil
}

func SeriesIDs(fips []int, suffix string) []string {
	out := make([]string, len(fips))
	for i, f := range fips {
		out[i] = SeriesID(f, suffix)
	}
	return out
}
