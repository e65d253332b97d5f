package settings

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"econstats-engine/internal/domain"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "Upload"), filepath.Join(dir, "TempUpload"), filepath.Join(dir, "settings.lock"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func mustList(t *testing.T, dir string) []string {
	t.Helper()
	names, err := List(dir)
	if err != nil {
		t.Fatal(err)
	}
	return names
}

var scenario = domain.YearAvailability{
	"2021": {"10420", "10180"},
	"2022": {"10500"},
}

func TestGenerateScenario(t *testing.T) {
	descs, err := Generate(scenario)
	if err != nil {
		t.Fatal(err)
	}
	if len(descs) != 3 {
		t.Fatalf("expected 2 year descriptors + 1 aggregate, got %d", len(descs))
	}

	y2021 := descs[0]
	if y2021.Name != "output_2021.qwi" {
		t.Fatalf("first descriptor = %s", y2021.Name)
	}
	if !reflect.DeepEqual(y2021.Descriptor.SelectedAreas.GeoIDs, []string{"10180", "10420"}) {
		t.Fatalf("geo ids = %v", y2021.Descriptor.SelectedAreas.GeoIDs)
	}
	if !reflect.DeepEqual(y2021.Descriptor.Quarters, []string{"2021.1", "2021.2", "2021.3", "2021.4"}) {
		t.Fatalf("quarters = %v", y2021.Descriptor.Quarters)
	}

	agg := descs[2]
	if agg.Name != AggregateFile {
		t.Fatalf("aggregate name = %s", agg.Name)
	}
	if !reflect.DeepEqual(agg.Descriptor.SelectedAreas.GeoIDs, []string{"00"}) {
		t.Fatalf("aggregate geo = %v", agg.Descriptor.SelectedAreas.GeoIDs)
	}
	want := []string{"2021.1", "2021.2", "2021.3", "2021.4", "2022.1", "2022.2", "2022.3", "2022.4"}
	if !reflect.DeepEqual(agg.Descriptor.Quarters, want) {
		t.Fatalf("aggregate quarters = %v", agg.Descriptor.Quarters)
	}
}

func TestAggregateQuarterCount(t *testing.T) {
	avail := domain.YearAvailability{"2016": {"a"}, "2019": {"b"}, "2022": {"c"}}
	descs, err := Generate(avail)
	if err != nil {
		t.Fatal(err)
	}
	agg := descs[len(descs)-1].Descriptor
	if got, want := len(agg.Quarters), 4*(2022-2016+1); got != want {
		t.Fatalf("aggregate has %d quarters, want %d", got, want)
	}
	if agg.Quarters[0] != "2016.1" || agg.Quarters[len(agg.Quarters)-1] != "2022.4" {
		t.Fatalf("aggregate quarter bounds = %s..%s", agg.Quarters[0], agg.Quarters[len(agg.Quarters)-1])
	}
}

func TestGenerateFixedFilters(t *testing.T) {
	descs, err := Generate(scenario)
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range descs {
		f := d.Descriptor.FirmAttributes
		if f.NAICSLevel != "naics2" || f.Ownership != "op" || f.FAS != "fa" {
			t.Fatalf("%s firm attributes = %+v", d.Name, f)
		}
		if d.Descriptor.WorkerXing != "se" || !d.Descriptor.ExportLabels {
			t.Fatalf("%s output flags = %+v", d.Name, d.Descriptor)
		}
		if !reflect.DeepEqual(d.Descriptor.Indicators, []string{"Emp"}) {
			t.Fatalf("%s indicators = %v", d.Name, d.Descriptor.Indicators)
		}
	}
}

func TestGenerateEmpty(t *testing.T) {
	if _, err := Generate(domain.YearAvailability{}); !errors.Is(err, ErrNoAvailability) {
		t.Fatalf("expected ErrNoAvailability, got %v", err)
	}
}

func TestYearFromFile(t *testing.T) {
	if y, ok := YearFromFile("Upload/output_2022.qwi"); !ok || y != "2022" {
		t.Fatalf("got %q %v", y, ok)
	}
	if _, ok := YearFromFile("USA_DATA.qwi"); ok {
		t.Fatal("aggregate has no year")
	}
	if !IsAggregate("/x/USA_DATA.qwi") || IsAggregate("output_2022.qwi") {
		t.Fatal("IsAggregate misclassified")
	}
}

func TestWriteFirstRunGoesToCommitted(t *testing.T) {
	s := newStore(t)
	descs, _ := Generate(scenario)

	res, err := Write(s, descs)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Direct || res.Target != s.Committed || !res.AggregateChanged {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := mustList(t, s.Committed); len(got) != 3 {
		t.Fatalf("committed = %v", got)
	}
	if got := mustList(t, s.Pending); len(got) != 0 {
		t.Fatalf("pending = %v", got)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	s := newStore(t)
	descs, _ := Generate(scenario)
	if _, err := Write(s, descs); err != nil {
		t.Fatal(err)
	}
	before, err := os.ReadFile(filepath.Join(s.Committed, "output_2021.qwi"))
	if err != nil {
		t.Fatal(err)
	}

	res, err := Write(s, descs)
	if err != nil {
		t.Fatal(err)
	}
	if res.Direct || res.Target != s.Pending || res.AggregateChanged {
		t.Fatalf("second write: %+v", res)
	}
	if got := mustList(t, s.Pending); len(got) != 2 {
		t.Fatalf("pending = %v", got)
	}

	changed, err := Reconcile(s)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Fatal("identical rediscovery must not signal changes")
	}
	if got := mustList(t, s.Pending); len(got) != 0 {
		t.Fatalf("pending not emptied: %v", got)
	}
	after, err := os.ReadFile(filepath.Join(s.Committed, "output_2021.qwi"))
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatal("committed 2021 descriptor was modified")
	}
}

func TestReconcileOrderInsensitive(t *testing.T) {
	s := newStore(t)
	a := domain.NewDescriptor([]string{"10180", "10420"}, Quarters(2021, 2021))
	b := domain.NewDescriptor([]string{"10420", "10180"}, Quarters(2021, 2021))

	ab, _ := Encode(a)
	bb, _ := Encode(b)
	if err := os.WriteFile(filepath.Join(s.Committed, "output_2021.qwi"), ab, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.Pending, "output_2021.qwi"), bb, 0o644); err != nil {
		t.Fatal(err)
	}

	changed, err := Reconcile(s)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Fatal("reordered geo ids should compare equal")
	}
}

func TestReconcilePromotesChanged(t *testing.T) {
	s := newStore(t)
	descs, _ := Generate(scenario)
	if _, err := Write(s, descs); err != nil {
		t.Fatal(err)
	}

	next := domain.YearAvailability{
		"2021": {"10180", "10420"},
		"2022": {"10500", "10580"},
	}
	nd, _ := Generate(next)
	if _, err := Write(s, nd); err != nil {
		t.Fatal(err)
	}

	changed, err := Reconcile(s)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("expected changes")
	}
	d, err := ReadDescriptor(filepath.Join(s.Committed, "output_2022.qwi"))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(d.SelectedAreas.GeoIDs, []string{"10500", "10580"}) {
		t.Fatalf("committed 2022 = %v", d.SelectedAreas.GeoIDs)
	}
	if got := mustList(t, s.Pending); len(got) != 0 {
		t.Fatalf("pending not emptied: %v", got)
	}
}

func TestReconcileIgnoresAggregate(t *testing.T) {
	s := newStore(t)
	agg := domain.NewDescriptor([]string{"00"}, Quarters(2021, 2021))
	b, _ := Encode(agg)
	if err := os.WriteFile(filepath.Join(s.Committed, AggregateFile), b, 0o644); err != nil {
		t.Fatal(err)
	}
	// a pending year descriptor identical to the aggregate is still new work
	if err := os.WriteFile(filepath.Join(s.Pending, "output_2021.qwi"), b, 0o644); err != nil {
		t.Fatal(err)
	}
	changed, err := Reconcile(s)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("aggregate must not take part in the comparison")
	}
}

func TestWriteDetectsAggregateRangeChange(t *testing.T) {
	s := newStore(t)
	descs, _ := Generate(scenario)
	if _, err := Write(s, descs); err != nil {
		t.Fatal(err)
	}
	wider, _ := Generate(domain.YearAvailability{"2020": {"1"}, "2022": {"10500"}})
	res, err := Write(s, wider)
	if err != nil {
		t.Fatal(err)
	}
	if !res.AggregateChanged {
		t.Fatal("a wider year range must change the aggregate")
	}
}

func TestLockIsExclusive(t *testing.T) {
	s := newStore(t)
	unlock, err := s.Lock(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	other, err := Open(s.Committed, s.Pending, s.lock.Path())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if _, err := other.Lock(ctx); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}
