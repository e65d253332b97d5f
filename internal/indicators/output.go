package indicators

import (
	"fmt"
	"path/filepath"
	"strconv"

	"econstats-engine/internal/scrape/util"
)

type Indicator struct {
	Name   string
	Column string
	File   string
}

var (
	EmploymentShare = Indicator{
		Name:   "Young Firm Employment Share",
		Column: "YF_Emp_Share",
		File:   "YoungFirmEmploymentShare.csv",
	}
	KnowledgeIntensity = Indicator{
		Name:   "Young Firm Knowledge Intensity",
		Column: "YF_K_INT",
		File:   "YoungFirmKnowledgeIntensity.csv",
	}
)

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// Write stores rows as CBSACode, MetroSize, <column>, zscore.
func Write(dir string, ind Indicator, rows []Scored) (string, error) {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{r.CBSA, string(r.Size), ftoa(r.V), ftoa(r.Z)}
	}
	path := filepath.Join(dir, ind.File)
	return path, util.WriteCSV(path, []string{"CBSACode", "MetroSize", ind.Column, "zscore"}, out)
}

// Read loads an indicator file written by Write. Year is not stored and is
// left zero.
func Read(dir string, ind Indicator) ([]Scored, error) {
	path := filepath.Join(dir, ind.File)
	header, rows, err := util.ReadCSV(path)
	if err != nil {
		return nil, err
	}
	ci, si, vi, zi := util.Column(header, "CBSACode"), util.Column(header, "MetroSize"),
		util.Column(header, ind.Column), util.Column(header, "zscore")
	if ci < 0 || si < 0 || vi < 0 || zi < 0 {
		return nil, fmt.Errorf("%s: unexpected header %v", ind.File, header)
	}

	out := make([]Scored, 0, len(rows))
	for n, r := range rows {
		v, err1 := strconv.ParseFloat(r[vi], 64)
		z, err2 := strconv.ParseFloat(r[zi], 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%s row %d: bad number", ind.File, n+2)
		}
		out = append(out, Scored{Value: Value{CBSA: r[ci], Size: Size(r[si]), V: v}, Z: z})
	}
	return out, nil
}
