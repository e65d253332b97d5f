package domain

import "time"

type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFatal   Outcome = "fatal"
)

// UnitResult is the outcome of one unit of work inside a run: a state during
// discovery, a descriptor during download, a BLS batch, a BEA request.
type UnitResult struct {
	Unit    string    `json:"unit"`
	Outcome Outcome   `json:"outcome"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}

func OK(unit string) UnitResult {
	return UnitResult{Unit: unit, Outcome: OutcomeOK, At: time.Now().UTC()}
}

func Skipped(unit, reason string) UnitResult {
	return UnitResult{Unit: unit, Outcome: OutcomeSkipped, Reason: reason, At: time.Now().UTC()}
}

func Fatal(unit, reason string) UnitResult {
	return UnitResult{Unit: unit, Outcome: OutcomeFatal, Reason: reason, At: time.Now().UTC()}
}

type Tally struct {
	OK      int `json:"ok"`
	Skipped int `json:"skipped"`
	Fatal   int `json:"fatal"`
}

func Count(rs []UnitResult) Tally {
	var t Tally
	for _, r := range rs {
		switch r.Outcome {
		case OutcomeOK:
			t.OK++
		case OutcomeSkipped:
			t.Skipped++
		case OutcomeFatal:
			t.Fatal++
		}
	}
	return t
}

// Complete reports whether every unit succeeded.
func (t Tally) Complete() bool { return t.Skipped == 0 && t.Fatal == 0 }
