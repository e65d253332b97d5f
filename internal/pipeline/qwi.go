package pipeline

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"econstats-engine/internal/config"
	"econstats-engine/internal/scrape/qwi"
	"econstats-engine/internal/settings"
)

const lockFile = ".settings.lock"

func openSettings(cfg config.Config) (*settings.Store, error) {
	q := cfg.Sources.QWI
	return settings.Open(cfg.Path(q.CommittedDir), cfg.Path(q.PendingDir), cfg.Path(lockFile))
}

// stagingDir receives browser downloads before they are renamed into place.
func stagingDir(cfg config.Config) string {
	return filepath.Join(cfg.Path(cfg.Sources.QWI.DownloadDir), ".incoming")
}

func (r *Runner) withDriver(ctx context.Context, cfg config.Config, fn func(qwi.Driver) error) error {
	d, err := r.NewDriver(ctx, cfg.Sources.QWI, stagingDir(cfg))
	if err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	defer d.Close()
	return fn(d)
}

// refreshSettings discovers availability and brings the committed
// descriptors up to date. changed reports whether anything a download
// depends on moved.
func (r *Runner) refreshSettings(ctx context.Context, cfg config.Config, d qwi.DiscoveryDriver, rec *recorder) (bool, error) {
	avail, _, err := qwi.Discover(ctx, d, rec.add)
	if err != nil {
		return false, fmt.Errorf("discover: %w", err)
	}
	if err := r.DB.RecordAvailability(ctx, rec.runID, avail); err != nil {
		return false, err
	}

	descs, err := settings.Generate(avail)
	if err != nil {
		return false, err
	}

	s, err := openSettings(cfg)
	if err != nil {
		return false, err
	}
	unlock, err := s.Lock(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	wr, err := settings.Write(s, descs)
	if err != nil {
		return false, err
	}
	if wr.Direct {
		return true, nil
	}
	changed, err := settings.Reconcile(s)
	if err != nil {
		return false, fmt.Errorf("reconcile: %w", err)
	}
	if !changed {
		log.Printf("[pipeline] no changes to year descriptors")
	}
	return changed || wr.AggregateChanged, nil
}

// download exports the committed descriptors. With onlyMissing set, files
// whose CSV is already in the download dir are left alone.
func (r *Runner) download(ctx context.Context, cfg config.Config, d qwi.ExportDriver, rec *recorder, onlyMissing bool) error {
	s, err := openSettings(cfg)
	if err != nil {
		return err
	}
	files, err := s.CommittedFiles()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no descriptors in %s; run discover first", s.Committed)
	}
	q := cfg.Sources.QWI
	dir := cfg.Path(q.DownloadDir)
	if onlyMissing {
		files = qwi.MissingExports(dir, q.ExportPrefix, files)
		if len(files) == 0 {
			log.Printf("[pipeline] qwi exports are current; skipping download")
			return nil
		}
		log.Printf("[pipeline] qwi exports missing=%d", len(files))
	}
	_, err = qwi.Download(ctx, d, files, dir, q.ExportPrefix, rec.add)
	return err
}

// qwi refreshes descriptors, then downloads everything when they changed
// and otherwise only the exports that are still missing. One browser
// session serves both steps.
func (r *Runner) qwi(ctx context.Context, cfg config.Config, rec *recorder) error {
	return r.withDriver(ctx, cfg, func(d qwi.Driver) error {
		changed, err := r.refreshSettings(ctx, cfg, d, rec)
		if err != nil {
			return err
		}
		return r.download(ctx, cfg, d, rec, !changed)
	})
}
