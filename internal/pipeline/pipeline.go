package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"econstats-engine/internal/config"
	"econstats-engine/internal/domain"
	"econstats-engine/internal/events"
	"econstats-engine/internal/scrape/qwi"
	"econstats-engine/internal/secrets"
	"econstats-engine/internal/store"
)

type Name string

const (
	Discover   Name = "discover"
	Download   Name = "download"
	QWI        Name = "qwi"
	BEA        Name = "bea"
	BLS        Name = "bls"
	Indicators Name = "indicators"
	Report     Name = "report"
	All        Name = "all"
)

var Names = []Name{Discover, Download, QWI, BEA, BLS, Indicators, Report, All}

var (
	ErrBusy    = errors.New("a pipeline is already running")
	ErrUnknown = errors.New("unknown pipeline")
)

func Parse(s string) (Name, error) {
	for _, n := range Names {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknown, s)
}

// Status is the live view served by /status.
type Status struct {
	Running    bool   `json:"running"`
	Pipeline   string `json:"pipeline"`
	RunID      string `json:"run_id"`
	LastRunAt  string `json:"last_run_at"`
	LastOkAt   string `json:"last_ok_at"`
	LastError  string `json:"last_error"`
	LastStatus string `json:"last_status"`
}

// DriverFactory opens a browser session for the QWI form.
type DriverFactory func(ctx context.Context, cfg config.QWI, downloadDir string) (qwi.Driver, error)

func chromeDriver(ctx context.Context, cfg config.QWI, downloadDir string) (qwi.Driver, error) {
	d, err := qwi.NewChromeDriver(ctx, cfg, downloadDir)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Runner executes one pipeline at a time and records every run in the ledger.
type Runner struct {
	Config    func() config.Config
	DB        *store.DB
	Hub       *events.Hub
	NewDriver DriverFactory
	APIKey    func(source string) (string, error)

	busy   atomic.Bool
	status atomic.Value // Status
}

func New(cfg func() config.Config, db *store.DB, hub *events.Hub) *Runner {
	r := &Runner{
		Config:    cfg,
		DB:        db,
		Hub:       hub,
		NewDriver: chromeDriver,
		APIKey:    secrets.GetAPIKey,
	}
	r.status.Store(Status{})
	return r
}

func (r *Runner) Status() Status {
	st, _ := r.status.Load().(Status)
	return st
}

// Run executes name synchronously.
func (r *Runner) Run(ctx context.Context, name Name) (store.Run, error) {
	run, err := r.begin(ctx, name)
	if err != nil {
		return store.Run{}, err
	}
	return r.execute(ctx, run, name)
}

// Start records a new run and executes it in the background. ctx must
// outlive the caller's request.
func (r *Runner) Start(ctx context.Context, name Name) (store.Run, error) {
	run, err := r.begin(ctx, name)
	if err != nil {
		return store.Run{}, err
	}
	go func() {
		if _, err := r.execute(ctx, run, name); err != nil {
			log.Printf("[pipeline] run=%s pipeline=%s err=%v", run.ID, name, err)
		}
	}()
	return run, nil
}

func (r *Runner) begin(ctx context.Context, name Name) (store.Run, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return store.Run{}, ErrBusy
	}
	run, err := r.DB.BeginRun(ctx, string(name))
	if err != nil {
		r.busy.Store(false)
		return store.Run{}, err
	}

	st := r.Status()
	st.Running = true
	st.Pipeline = string(name)
	st.RunID = run.ID
	st.LastRunAt = time.Now().Format(time.RFC3339)
	r.status.Store(st)

	r.Hub.Emit(events.TypeRunStarted, events.RunStarted{RunID: run.ID, Pipeline: string(name)})
	log.Printf("[pipeline] run=%s pipeline=%s started", run.ID, name)
	return run, nil
}

func (r *Runner) execute(ctx context.Context, run store.Run, name Name) (store.Run, error) {
	defer r.busy.Store(false)

	rec := &recorder{runID: run.ID, hub: r.Hub}
	err := r.exec(ctx, r.Config(), name, rec)

	results := rec.snapshot()
	status := store.StatusFor(results, err)
	summary := summarize(results, err)

	// the ledger records the outcome even when ctx was cancelled
	wctx := context.WithoutCancel(ctx)
	if lerr := r.DB.RecordUnits(wctx, run.ID, results); lerr != nil {
		err = errors.Join(err, lerr)
	}
	if lerr := r.DB.FinishRun(wctx, run.ID, status, summary); lerr != nil {
		err = errors.Join(err, lerr)
	}

	now := time.Now().Format(time.RFC3339)
	st := r.Status()
	st.Running = false
	st.LastStatus = string(status)
	st.LastError = ""
	if err != nil {
		st.LastError = err.Error()
	} else {
		st.LastOkAt = now
	}
	r.status.Store(st)

	r.Hub.Emit(events.TypeRunFinished, events.RunFinished{
		RunID: run.ID, Pipeline: string(name), Status: string(status), Summary: summary,
	})
	log.Printf("[pipeline] run=%s pipeline=%s status=%s %s", run.ID, name, status, summary)

	if got, gerr := r.DB.GetRun(wctx, run.ID); gerr == nil {
		run = got
	}
	return run, err
}

func (r *Runner) exec(ctx context.Context, cfg config.Config, name Name, rec *recorder) error {
	switch name {
	case Discover:
		return r.withDriver(ctx, cfg, func(d qwi.Driver) error {
			_, err := r.refreshSettings(ctx, cfg, d, rec)
			return err
		})
	case Download:
		return r.withDriver(ctx, cfg, func(d qwi.Driver) error {
			return r.download(ctx, cfg, d, rec, false)
		})
	case QWI:
		return r.qwi(ctx, cfg, rec)
	case BEA:
		return r.bea(ctx, cfg, rec)
	case BLS:
		return r.bls(ctx, cfg, rec)
	case Indicators:
		_, err := r.indicators(ctx, cfg, rec)
		return err
	case Report:
		return r.report(cfg, rec, nil)
	case All:
		return r.all(ctx, cfg, rec)
	}
	return fmt.Errorf("%w %q", ErrUnknown, name)
}

func summarize(results []domain.UnitResult, err error) string {
	t := domain.Count(results)
	s := fmt.Sprintf("ok=%d skipped=%d fatal=%d", t.OK, t.Skipped, t.Fatal)
	if err != nil {
		s += " error=" + err.Error()
	}
	return s
}

// recorder collects unit results of a run and publishes each as it arrives.
type recorder struct {
	runID string
	hub   *events.Hub

	mu      sync.Mutex
	results []domain.UnitResult
}

func (rec *recorder) add(u domain.UnitResult) {
	rec.mu.Lock()
	rec.results = append(rec.results, u)
	rec.mu.Unlock()
	rec.hub.Emit(events.TypeUnit, events.Unit{RunID: rec.runID, UnitResult: u})
}

func (rec *recorder) snapshot() []domain.UnitResult {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]domain.UnitResult(nil), rec.results...)
}
