package qwi

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"econstats-engine/internal/domain"
	"econstats-engine/internal/settings"
)

// ExportPhase is a step of a single descriptor's export.
type ExportPhase int

const (
	ExportOpen ExportPhase = iota
	ExportLoadSettings
	ExportWorkerFilters
	ExportSubmit
	ExportDownload
	ExportRename
	ExportDone
)

func (p ExportPhase) String() string {
	return [...]string{"open", "load settings", "worker filters", "submit", "download", "rename", "done"}[p]
}

// ExportName is the file name a descriptor's CSV is stored under:
// <prefix>_USA.csv for the aggregate, <prefix>_<year>.csv otherwise.
func ExportName(prefix, descriptorFile string) (string, error) {
	if settings.IsAggregate(descriptorFile) {
		return prefix + "_USA.csv", nil
	}
	year, ok := settings.YearFromFile(descriptorFile)
	if !ok {
		return "", fmt.Errorf("no year in descriptor name %q", filepath.Base(descriptorFile))
	}
	return prefix + "_" + year + ".csv", nil
}

type export struct {
	d       ExportDriver
	file    string
	target  string
	fetched string
	reqID   string
}

func (e *export) step(ctx context.Context, p ExportPhase) (ExportPhase, error) {
	switch p {
	case ExportOpen:
		return ExportLoadSettings, e.d.Open(ctx)
	case ExportLoadSettings:
		return ExportWorkerFilters, e.d.LoadSettings(ctx, e.file)
	case ExportWorkerFilters:
		return ExportSubmit, e.d.ReapplyWorkerFilters(ctx)
	case ExportSubmit:
		return ExportDownload, e.d.SubmitExport(ctx)
	case ExportDownload:
		path, id, err := e.d.DownloadCSV(ctx)
		e.fetched, e.reqID = path, id
		return ExportRename, err
	case ExportRename:
		return ExportDone, os.Rename(e.fetched, e.target)
	}
	return ExportDone, fmt.Errorf("unexpected phase %s", p)
}

// Download exports every descriptor file in order and stores each CSV in dir
// under its ExportName. A failing descriptor is recorded and the next one is
// processed.
func Download(ctx context.Context, d ExportDriver, files []string, dir, prefix string, onUnit func(domain.UnitResult)) ([]domain.UnitResult, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var results []domain.UnitResult
	record := func(r domain.UnitResult) {
		results = append(results, r)
		if onUnit != nil {
			onUnit(r)
		}
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		unit := filepath.Base(f)

		name, err := ExportName(prefix, f)
		if err != nil {
			record(domain.Skipped(unit, err.Error()))
			continue
		}
		if _, err := settings.ReadDescriptor(f); err != nil {
			log.Printf("[qwi:download] file=%s err=%v", unit, err)
			record(domain.Skipped(unit, err.Error()))
			continue
		}

		e := &export{d: d, file: f, target: filepath.Join(dir, name)}
		p := ExportOpen
		var failed error
		for p != ExportDone {
			next, err := e.step(ctx, p)
			if err != nil {
				failed = fmt.Errorf("%s: %w", p, err)
				break
			}
			p = next
		}

		if failed != nil {
			log.Printf("[qwi:download] file=%s err=%v", unit, failed)
			record(domain.Skipped(unit, failed.Error()))
			continue
		}
		log.Printf("[qwi:download] file=%s request=%s saved=%s", unit, e.reqID, name)
		record(domain.OK(unit))
	}
	return results, nil
}

// MissingExports returns the descriptor files whose CSV is not in dir yet.
// Files with no usable name are returned too so the download records them.
func MissingExports(dir, prefix string, files []string) []string {
	var out []string
	for _, f := range files {
		name, err := ExportName(prefix, f)
		if err == nil {
			if _, err = os.Stat(filepath.Join(dir, name)); err == nil {
				continue
			}
		}
		out = append(out, f)
	}
	return out
}
