package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"

	"econstats-engine/internal/config"
	"econstats-engine/internal/domain"
	"econstats-engine/internal/indicators"
	"econstats-engine/internal/report"
	"econstats-engine/internal/scrape/bea"
	"econstats-engine/internal/scrape/bls"
	"econstats-engine/internal/scrape/util"
	"econstats-engine/internal/secrets"

	"golang.org/x/sync/errgroup"
)

func limiterFor(cfg config.Config) *util.HostLimiter {
	rps := cfg.Sources.BLS.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return util.NewHostLimiter(rps, 1)
}

func (r *Runner) bea(ctx context.Context, cfg config.Config, rec *recorder) error {
	key, err := r.APIKey(secrets.SourceBEA)
	if err != nil {
		return err
	}
	b := cfg.Sources.BEA
	c := bea.New(b.Endpoint, key, limiterFor(cfg))
	q := bea.Query{
		Dataset:  b.Dataset,
		Table:    b.Table,
		GeoFips:  b.GeoFIPS,
		LineCode: b.LineCode,
		Years:    bea.Years(b.StartYear, b.EndYear),
	}
	switch pq, dropped, err := bea.Published(ctx, c, q); {
	case err != nil:
		log.Printf("[bea] year lookup failed; requesting configured years: %v", err)
	case len(pq.Years) == 0:
		return fmt.Errorf("bea: table %s publishes none of %d-%d", b.Table, b.StartYear, b.EndYear)
	default:
		for _, y := range dropped {
			rec.add(domain.Skipped(fmt.Sprintf("%s %d", b.Table, y), "year not published"))
		}
		q = pq
	}
	_, u, err := bea.Run(ctx, c, q, cfg.Path(b.OutDir))
	rec.add(u)
	return err
}

func (r *Runner) bls(ctx context.Context, cfg config.Config, rec *recorder) error {
	key, err := r.APIKey(secrets.SourceBLS)
	if errors.Is(err, secrets.ErrNoKey) {
		// v2 still answers unregistered callers, with lower limits
		log.Printf("[bls] no registration key; continuing unregistered")
		key, err = "", nil
	}
	if err != nil {
		return err
	}
	b := cfg.Sources.BLS
	job := bls.Job{
		Client:    bls.New(b.Endpoint, key, limiterFor(cfg)),
		FIPSPath:  cfg.Path(b.CountyFIPSPath),
		OutDir:    cfg.Path(b.OutDir),
		Start:     b.StartYear,
		End:       b.EndYear,
		BatchSize: b.BatchSize,
	}
	_, results, err := job.Run(ctx)
	for _, u := range results {
		rec.add(u)
	}
	return err
}

func (r *Runner) indicators(ctx context.Context, cfg config.Config, rec *recorder) (*indicators.Result, error) {
	p := cfg.Sources.Population
	pop, err := indicators.LoadPopulation(ctx, p.URL, cfg.Path(path.Base(p.URL)), p.EstimateColumn, limiterFor(cfg))
	if err != nil {
		return nil, fmt.Errorf("population: %w", err)
	}
	q := cfg.Sources.QWI
	res, err := indicators.Run(indicators.Options{
		DownloadDir: cfg.Path(q.DownloadDir),
		Prefix:      q.ExportPrefix,
		OutDir:      cfg.Path(cfg.Output.Dir),
		Population:  pop,
	})
	for _, u := range res.Units {
		rec.add(u)
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// report renders the PDF from res, or from the indicator files on disk when
// res is nil.
func (r *Runner) report(cfg config.Config, rec *recorder, res *indicators.Result) error {
	out := cfg.Path(cfg.Output.Dir)
	var sections []report.Section
	if res != nil {
		sections = []report.Section{
			{Indicator: indicators.EmploymentShare, Rows: res.Share},
			{Indicator: indicators.KnowledgeIntensity, Rows: res.Intensity},
		}
	} else {
		for _, ind := range []indicators.Indicator{indicators.EmploymentShare, indicators.KnowledgeIntensity} {
			rows, err := indicators.Read(out, ind)
			if err != nil {
				return fmt.Errorf("read %s: %w", ind.File, err)
			}
			sections = append(sections, report.Section{Indicator: ind, Rows: rows})
		}
	}
	p, err := report.WriteFile(out, sections, cfg.Output.ReportTop)
	if err != nil {
		return err
	}
	log.Printf("[report] saved=%s", p)
	rec.add(domain.OK(report.FileName))
	return nil
}

// all fetches BEA and BLS concurrently, then runs QWI, indicators and the
// report in order. A failing stage is recorded as fatal and the next stage
// still runs; only cancellation stops the sequence.
func (r *Runner) all(ctx context.Context, cfg config.Config, rec *recorder) error {
	stage := func(ctx context.Context, name string, fn func() error) error {
		if err := fn(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[pipeline] stage=%s err=%v", name, err)
			rec.add(domain.Fatal(name, err.Error()))
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Sources.BEA.Enabled {
		g.Go(func() error {
			return stage(gctx, string(BEA), func() error { return r.bea(gctx, cfg, rec) })
		})
	}
	if cfg.Sources.BLS.Enabled {
		g.Go(func() error {
			return stage(gctx, string(BLS), func() error { return r.bls(gctx, cfg, rec) })
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if cfg.Sources.QWI.Enabled {
		if err := stage(ctx, string(QWI), func() error { return r.qwi(ctx, cfg, rec) }); err != nil {
			return err
		}
	}

	var res *indicators.Result
	if err := stage(ctx, string(Indicators), func() error {
		var err error
		res, err = r.indicators(ctx, cfg, rec)
		return err
	}); err != nil {
		return err
	}

	if cfg.Output.Report && res != nil {
		return stage(ctx, string(Report), func() error { return r.report(cfg, rec, res) })
	}
	return nil
}
