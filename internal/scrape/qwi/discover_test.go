package qwi

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"econstats-engine/internal/domain"
)

func TestDiscoverMergesStates(t *testing.T) {
	d := newFakeDriver(
		fakeState{label: "Alabama", year: "2021", metros: []string{"10180", "10420"}, failAt: PhaseDone},
		fakeState{label: "Alaska", year: "2022", metros: []string{"10500"}, failAt: PhaseDone},
		fakeState{label: "Arizona", year: "2022", metros: []string{"10180"}, failAt: PhaseDone},
	)
	var seen []string
	avail, results, err := Discover(context.Background(), d, func(r domain.UnitResult) { seen = append(seen, r.Unit) })
	if err != nil {
		t.Fatal(err)
	}

	want := domain.YearAvailability{"2021": {"10180", "10420"}, "2022": {"10500"}}
	if !reflect.DeepEqual(avail, want) {
		t.Fatalf("avail = %v, want %v", avail, want)
	}
	if got := domain.Count(results); got.OK != 3 || !got.Complete() {
		t.Fatalf("tally = %+v", got)
	}
	if !reflect.DeepEqual(seen, []string{"Alabama", "Alaska", "Arizona"}) {
		t.Fatalf("progress = %v", seen)
	}
	if d.resets != 3 {
		t.Fatalf("resets = %d, want one per state", d.resets)
	}
}

func TestDiscoverSkipsStateWithoutFullYear(t *testing.T) {
	d := newFakeDriver(
		fakeState{label: "Guam", failAt: PhaseDone},
		fakeState{label: "Ohio", year: "2022", metros: []string{"10420"}, failAt: PhaseDone},
	)
	avail, results, err := Discover(context.Background(), d, nil)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Outcome != domain.OutcomeSkipped || results[0].Reason != "no fully available year" {
		t.Fatalf("guam result = %+v", results[0])
	}
	if len(avail) != 1 || len(avail["2022"]) != 1 {
		t.Fatalf("avail = %v", avail)
	}
}

func TestDiscoverResetsAfterFailedPhase(t *testing.T) {
	for _, p := range []Phase{PhaseSelectState, PhaseSelectMetros, PhaseOpenQuarters, PhaseReadAvailability} {
		t.Run(p.String(), func(t *testing.T) {
			d := newFakeDriver(
				fakeState{label: "Iowa", year: "2021", metros: []string{"11180"}, failAt: p},
				fakeState{label: "Kansas", year: "2021", metros: []string{"11680"}, failAt: PhaseDone},
			)
			avail, results, err := Discover(context.Background(), d, nil)
			if err != nil {
				t.Fatal(err)
			}
			r := results[0]
			if r.Outcome != domain.OutcomeSkipped || !strings.HasPrefix(r.Reason, p.String()+": ") {
				t.Fatalf("iowa result = %+v", r)
			}
			if d.resets != 2 {
				t.Fatalf("resets = %d, want 2", d.resets)
			}
			if !reflect.DeepEqual(avail, domain.YearAvailability{"2021": {"11680"}}) {
				t.Fatalf("avail = %v", avail)
			}
		})
	}
}

func TestDiscoverReinitialisesAfterFailedReset(t *testing.T) {
	d := newFakeDriver(
		fakeState{label: "Maine", year: "2022", metros: []string{"12620"}, failAt: PhaseDone, resetErr: true},
		fakeState{label: "Texas", year: "2022", metros: []string{"10180"}, failAt: PhaseDone},
	)
	avail, results, err := Discover(context.Background(), d, nil)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Outcome != domain.OutcomeFatal {
		t.Fatalf("maine result = %+v", results[0])
	}
	if results[1].Outcome != domain.OutcomeOK {
		t.Fatalf("texas result = %+v", results[1])
	}
	if d.opens != 2 {
		t.Fatalf("opens = %d, want 2", d.opens)
	}
	// the availability read before the failed reset is still valid
	if got := avail["2022"]; !reflect.DeepEqual(got, []string{"12620", "10180"}) {
		t.Fatalf("2022 metros = %v", got)
	}
}

func TestDiscoverAbortsWhenReinitialiseFails(t *testing.T) {
	d := newFakeDriver(
		fakeState{label: "Maine", year: "2022", failAt: PhaseDone, resetErr: true},
		fakeState{label: "Texas", year: "2022", failAt: PhaseDone},
	)
	wrapOpen := &reopenFails{fakeDriver: d}
	_, results, err := Discover(context.Background(), wrapOpen, nil)
	if err == nil || !strings.Contains(err.Error(), "reinitialise") {
		t.Fatalf("err = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %+v", results)
	}
}

// reopenFails lets the first Open succeed and fails every later one.
type reopenFails struct{ *fakeDriver }

func (r *reopenFails) Open(ctx context.Context) error {
	if r.opens > 0 {
		return errors.New("page did not load")
	}
	return r.fakeDriver.Open(ctx)
}

func TestDiscoverNoStates(t *testing.T) {
	d := &fakeDriver{states: []fakeState{{label: "United States", failAt: PhaseDone}}}
	if _, _, err := Discover(context.Background(), d, nil); !errors.Is(err, ErrNoStates) {
		t.Fatalf("err = %v", err)
	}
}

func TestDiscoverStopsOnCancel(t *testing.T) {
	d := newFakeDriver(
		fakeState{label: "A", year: "2021", failAt: PhaseDone},
		fakeState{label: "B", year: "2021", failAt: PhaseDone},
	)
	ctx, cancel := context.WithCancel(context.Background())
	_, results, err := Discover(ctx, d, func(domain.UnitResult) { cancel() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
}
