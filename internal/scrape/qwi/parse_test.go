package qwi

import (
	"reflect"
	"testing"
)

func TestMostRecentYearFirstFullRowWins(t *testing.T) {
	html := `<table class="CheckGrid">` +
		`<tr><th>Year</th><th>Q1</th></tr>` +
		row("2024", 1, 0) +
		row("2023", 4, 1) +
		row("2022", 4, 0) +
		row("2021", 4, 0) +
		`</table>`
	got, ok := MostRecentYear(html)
	if !ok || got != "2022" {
		t.Fatalf("got %q ok=%v, want 2022", got, ok)
	}
}

func TestMostRecentYearNone(t *testing.T) {
	html := grid(row("2024", 3, 0), row("2023", 4, 4))
	if got, ok := MostRecentYear(html); ok {
		t.Fatalf("expected no year, got %q", got)
	}
}

func TestMostRecentYearIgnoresRowsWithoutYearCell(t *testing.T) {
	html := grid(
		`<tr><td>total</td><td><input type="checkbox"></td><td><input type="checkbox"></td><td><input type="checkbox"></td><td><input type="checkbox"></td></tr>`,
		row("2019", 4, 0),
	)
	got, ok := MostRecentYear(html)
	if !ok || got != "2019" {
		t.Fatalf("got %q ok=%v, want 2019", got, ok)
	}
}

func TestMetroCodes(t *testing.T) {
	html := `<details data-source-name="areas_list_M"><ul>` +
		`<li data-value="10180">Abilene, TX</li>` +
		`<li data-value=" 10420 ">Akron, OH</li>` +
		`<li>header</li>` +
		`</ul></details>`
	got := MetroCodes(html)
	want := []string{"10180", "10420"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestStateLabels(t *testing.T) {
	html := `<div id="dijit_layout_ContentPane_2"><ul>` +
		`<li class="vtab"><div>United States</div></li>` +
		`<li class="vtab"><div>Alabama&nbsp;</div></li>` +
		`<li class="other"><div>ignored</div></li>` +
		`<li class="vtab"><div> Alaska </div></li>` +
		`</ul></div>`
	got := StateLabels(html)
	want := []string{"United States", "Alabama", "Alaska"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}
