package indicators

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"econstats-engine/internal/scrape/util"
)

// Firm age and education labels as they appear in QWI exports.
const (
	AgeAll      = "All Firm Ages"
	EduAll      = "All Education Categories"
	EduLessHigh = "Less than high school"
	EduHigh     = "High school or equivalent, no college"
	EduSome     = "Some college or Associate degree"
	EduBachelor = "Bachelor's degree or advanced degree"
)

var youngAges = map[string]bool{"0-1 Years": true, "2-3 Years": true, "4-5 Years": true}

// Record is one Emp observation of a QWI export.
type Record struct {
	CBSA      string
	Education string
	FirmAge   string
	Year      int
	Quarter   int
	Emp       float64
}

// ReadExport parses a QWI CSV. Rows with a non-numeric Emp (suppressed
// cells) are dropped. The CBSA code is the last five characters of the
// geography column.
func ReadExport(path string) ([]Record, error) {
	header, rows, err := util.ReadCSV(path)
	if err != nil {
		return nil, err
	}
	cols := map[string]int{}
	for _, name := range []string{"geography", "education_label.value", "firmage_label.value", "year", "quarter", "Emp"} {
		i := util.Column(header, name)
		if i < 0 {
			return nil, fmt.Errorf("%s: missing column %s", filepath.Base(path), name)
		}
		cols[name] = i
	}

	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		if len(r) < len(header) {
			continue
		}
		emp, ok := util.Number(r[cols["Emp"]])
		if !ok {
			continue
		}
		year, err1 := strconv.Atoi(strings.TrimSpace(r[cols["year"]]))
		q, err2 := strconv.Atoi(strings.TrimSpace(r[cols["quarter"]]))
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, Record{
			CBSA:      util.LastN(strings.TrimSpace(r[cols["geography"]]), 5),
			Education: util.CleanText(r[cols["education_label.value"]]),
			FirmAge:   util.CleanText(r[cols["firmage_label.value"]]),
			Year:      year,
			Quarter:   q,
			Emp:       emp,
		})
	}
	return out, nil
}

// metroExport reports whether a file in the download dir holds metro rows
// rather than the national aggregate or a derived file.
func metroExport(name, prefix string) bool {
	if !strings.HasSuffix(name, ".csv") || strings.Contains(name, "YF") {
		return false
	}
	for _, p := range []string{prefix + "_USA", prefix + "_AllStates", "USA"} {
		if strings.HasPrefix(name, p) {
			return false
		}
	}
	return true
}

// LoadExports reads every metro export in dir.
func LoadExports(dir, prefix string) ([]Record, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && metroExport(e.Name(), prefix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var all []Record
	for _, n := range names {
		rs, err := ReadExport(filepath.Join(dir, n))
		if err != nil {
			return nil, nil, err
		}
		all = append(all, rs...)
	}
	return all, names, nil
}

// NationalExport is the path of the national aggregate export.
func NationalExport(dir, prefix string) string {
	return filepath.Join(dir, prefix+"_USA.csv")
}
