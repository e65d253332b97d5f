package qwi

import (
	"context"
	"errors"
	"fmt"
	"log"

	"econstats-engine/internal/domain"
)

var ErrNoStates = errors.New("geography list has no states")

// Phase is a step of the per-state discovery walk.
type Phase int

const (
	PhaseSelectState Phase = iota
	PhaseSelectMetros
	PhaseOpenQuarters
	PhaseReadAvailability
	PhaseResetGeography
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseSelectState:
		return "select state"
	case PhaseSelectMetros:
		return "select metros"
	case PhaseOpenQuarters:
		return "open quarters"
	case PhaseReadAvailability:
		return "read availability"
	case PhaseResetGeography:
		return "reset geography"
	case PhaseDone:
		return "done"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

type stateWalk struct {
	d     DiscoveryDriver
	index int
	label string

	contrib domain.Contribution
	failure error
}

// step performs the action for p and returns the next phase. Every phase
// before the reset leads to the reset, even on failure.
func (w *stateWalk) step(ctx context.Context, p Phase) (Phase, error) {
	switch p {
	case PhaseSelectState:
		return PhaseSelectMetros, w.d.SelectState(ctx, w.index)
	case PhaseSelectMetros:
		return PhaseOpenQuarters, w.d.SelectMetros(ctx)
	case PhaseOpenQuarters:
		return PhaseReadAvailability, w.d.OpenQuarters(ctx)
	case PhaseReadAvailability:
		metros, err := w.d.MetroListHTML(ctx)
		if err != nil {
			return PhaseResetGeography, err
		}
		grid, err := w.d.AvailabilityHTML(ctx)
		if err != nil {
			return PhaseResetGeography, err
		}
		if year, ok := MostRecentYear(grid); ok {
			w.contrib = domain.Contribution{State: w.label, Year: year, Metros: MetroCodes(metros)}
		}
		return PhaseResetGeography, nil
	case PhaseResetGeography:
		return PhaseDone, w.d.ResetGeography(ctx)
	}
	return PhaseDone, fmt.Errorf("unexpected phase %s", p)
}

func (w *stateWalk) run(ctx context.Context) (domain.Contribution, domain.UnitResult) {
	p := PhaseSelectState
	for p != PhaseDone {
		next, err := w.step(ctx, p)
		if err != nil {
			if p == PhaseResetGeography {
				return w.contrib, domain.Fatal(w.label, fmt.Sprintf("%s: %v", p, err))
			}
			if w.failure == nil {
				w.failure = fmt.Errorf("%s: %w", p, err)
			}
			next = PhaseResetGeography
		}
		p = next
	}

	switch {
	case w.failure != nil:
		return domain.Contribution{}, domain.Skipped(w.label, w.failure.Error())
	case w.contrib.Year == "":
		return domain.Contribution{}, domain.Skipped(w.label, "no fully available year")
	}
	return w.contrib, domain.OK(w.label)
}

func initSession(ctx context.Context, d DiscoveryDriver) error {
	if err := d.Open(ctx); err != nil {
		return fmt.Errorf("open: %w", err)
	}
	if err := d.ApplyFilters(ctx); err != nil {
		return fmt.Errorf("apply filters: %w", err)
	}
	return nil
}

// Discover walks every state and folds each state's contribution into a
// YearAvailability. Failures inside a state are recorded and the walk moves
// on; it only stops when the session cannot be re-established or ctx ends.
func Discover(ctx context.Context, d DiscoveryDriver, onUnit func(domain.UnitResult)) (domain.YearAvailability, []domain.UnitResult, error) {
	avail := domain.YearAvailability{}
	var results []domain.UnitResult

	if err := initSession(ctx, d); err != nil {
		return avail, results, err
	}
	labels, err := d.States(ctx)
	if err != nil {
		return avail, results, fmt.Errorf("list states: %w", err)
	}
	if len(labels) < 2 {
		return avail, results, ErrNoStates
	}

	// labels[0] is the United States
	for i := 1; i < len(labels); i++ {
		if err := ctx.Err(); err != nil {
			return avail, results, err
		}

		w := &stateWalk{d: d, index: i, label: labels[i]}
		c, r := w.run(ctx)
		avail = avail.Merge(c)
		results = append(results, r)
		if onUnit != nil {
			onUnit(r)
		}

		switch r.Outcome {
		case domain.OutcomeOK:
			log.Printf("[qwi:discover] state=%q year=%s metros=%d", r.Unit, c.Year, len(c.Metros))
		case domain.OutcomeSkipped:
			log.Printf("[qwi:discover] state=%q skipped: %s", r.Unit, r.Reason)
		case domain.OutcomeFatal:
			log.Printf("[qwi:discover] state=%q %s; reloading form", r.Unit, r.Reason)
			if err := initSession(ctx, d); err != nil {
				return avail, results, fmt.Errorf("reinitialise after %q: %w", r.Unit, err)
			}
		}
	}

	log.Printf("[qwi:discover] done states=%d years=%d metros=%d", len(labels)-1, len(avail), avail.MetroCount())
	return avail, results, nil
}
