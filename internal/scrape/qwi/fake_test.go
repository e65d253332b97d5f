package qwi

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// fakeState is what the fake form shows for one state.
type fakeState struct {
	label    string
	year     string // empty: no fully available row
	metros   []string
	failAt   Phase // phase whose action fails; PhaseDone for none
	resetErr bool
}

type fakeDriver struct {
	states  []fakeState // states[0] is the United States
	current int
	opens   int
	resets  int
	openErr error
	calls   []string

	// export side
	downloadDir string
	failExport  map[string]ExportPhase
	loaded      string
	exports     int
}

func newFakeDriver(states ...fakeState) *fakeDriver {
	all := append([]fakeState{{label: "United States", failAt: PhaseDone}}, states...)
	return &fakeDriver{states: all}
}

func (f *fakeDriver) fail(p Phase) error {
	if f.states[f.current].failAt == p {
		return fmt.Errorf("timeout waiting for %s", p)
	}
	return nil
}

func (f *fakeDriver) Open(context.Context) error {
	f.opens++
	f.calls = append(f.calls, "open")
	return f.openErr
}

func (f *fakeDriver) ApplyFilters(context.Context) error {
	f.calls = append(f.calls, "filters")
	return nil
}

func (f *fakeDriver) States(context.Context) ([]string, error) {
	out := make([]string, len(f.states))
	for i, s := range f.states {
		out[i] = s.label
	}
	return out, nil
}

func (f *fakeDriver) SelectState(_ context.Context, i int) error {
	f.current = i
	f.calls = append(f.calls, "state:"+f.states[i].label)
	return f.fail(PhaseSelectState)
}

func (f *fakeDriver) SelectMetros(context.Context) error { return f.fail(PhaseSelectMetros) }
func (f *fakeDriver) OpenQuarters(context.Context) error { return f.fail(PhaseOpenQuarters) }

func (f *fakeDriver) MetroListHTML(context.Context) (string, error) {
	if err := f.fail(PhaseReadAvailability); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(`<details data-source-name="areas_list_M"><ul>`)
	for _, m := range f.states[f.current].metros {
		fmt.Fprintf(&b, `<li data-value="%s">Metro %s</li>`, m, m)
	}
	b.WriteString(`</ul></details>`)
	return b.String(), nil
}

func (f *fakeDriver) AvailabilityHTML(context.Context) (string, error) {
	y := f.states[f.current].year
	if y == "" {
		return grid(row("2023", 4, 2), row("2022", 3, 0)), nil
	}
	return grid(row("2024", 2, 0), row(y, 4, 0), row("2020", 4, 0)), nil
}

func (f *fakeDriver) ResetGeography(context.Context) error {
	f.resets++
	f.calls = append(f.calls, "reset")
	if f.states[f.current].resetErr {
		return errors.New("reset button not found")
	}
	return nil
}

func (f *fakeDriver) LoadSettings(_ context.Context, path string) error {
	f.loaded = filepath.Base(path)
	return f.exportErr(ExportLoadSettings)
}

func (f *fakeDriver) ReapplyWorkerFilters(context.Context) error {
	return f.exportErr(ExportWorkerFilters)
}

func (f *fakeDriver) SubmitExport(context.Context) error { return f.exportErr(ExportSubmit) }

func (f *fakeDriver) DownloadCSV(context.Context) (string, string, error) {
	if err := f.exportErr(ExportDownload); err != nil {
		return "", "", err
	}
	f.exports++
	id := fmt.Sprintf("%04d", f.exports)
	path := filepath.Join(f.downloadDir, "qwi_"+id+".csv")
	if err := os.WriteFile(path, []byte("geography,year\n"+f.loaded+",2022\n"), 0o644); err != nil {
		return "", "", err
	}
	return path, id, nil
}

func (f *fakeDriver) exportErr(p ExportPhase) error {
	if fp, ok := f.failExport[f.loaded]; ok && fp == p {
		return fmt.Errorf("export step %s timed out", p)
	}
	return nil
}

func (f *fakeDriver) Close() error { return nil }

var _ Driver = (*fakeDriver)(nil)

func grid(rows ...string) string {
	return `<table class="CheckGrid"><tbody>` + strings.Join(rows, "") + `</tbody></table>`
}

// row renders a year with n quarter checkboxes, the last `disabled` of them disabled.
func row(year string, n, disabled int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<tr><td abbr="%s">%s</td>`, year, year)
	for i := 0; i < n; i++ {
		attr := ""
		if i >= n-disabled {
			attr = " disabled"
		}
		fmt.Fprintf(&b, `<td><input type="checkbox" name="quarters" value="%s.%d"%s></td>`, year, i+1, attr)
	}
	b.WriteString("</tr>")
	return b.String()
}
