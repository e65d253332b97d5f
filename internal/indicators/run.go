package indicators

import (
	"errors"
	"fmt"
	"log"

	"econstats-engine/internal/domain"
)

var ErrNoExports = errors.New("no metro QWI exports to compute from")

type Options struct {
	DownloadDir string
	Prefix      string
	OutDir      string
	Population  Population
}

type Result struct {
	Share     []Scored
	Intensity []Scored
	Files     []string
	Units     []domain.UnitResult
}

// Run computes both indicators from the downloaded exports and writes them
// to OutDir. A missing national export disables projection and is reported
// as a skipped unit.
func Run(opts Options) (Result, error) {
	var res Result

	records, files, err := LoadExports(opts.DownloadDir, opts.Prefix)
	if err != nil {
		return res, fmt.Errorf("load exports: %w", err)
	}
	if len(records) == 0 {
		return res, ErrNoExports
	}
	log.Printf("[indicators] exports=%d records=%d metros_known=%d", len(files), len(records), len(opts.Population))

	var shareTrend, intensityTrend []Trend
	national, err := ReadExport(NationalExport(opts.DownloadDir, opts.Prefix))
	if err != nil {
		log.Printf("[indicators] national trend unavailable: %v", err)
		res.Units = append(res.Units, domain.Skipped("national trend", err.Error()))
	} else {
		shareTrend, intensityTrend = NationalYFShare(national), NationalYFKI(national)
		res.Units = append(res.Units, domain.OK("national trend"))
	}

	res.Share = ZScores(Project(YFShare(records, opts.Population), shareTrend))
	res.Intensity = ZScores(Project(YFKI(records, opts.Population), intensityTrend))

	for _, out := range []struct {
		ind  Indicator
		rows []Scored
	}{
		{EmploymentShare, res.Share},
		{KnowledgeIntensity, res.Intensity},
	} {
		path, err := Write(opts.OutDir, out.ind, out.rows)
		if err != nil {
			return res, err
		}
		res.Files = append(res.Files, path)
		if len(out.rows) == 0 {
			res.Units = append(res.Units, domain.Skipped(out.ind.File, "no metro matched the population table"))
		} else {
			res.Units = append(res.Units, domain.OK(out.ind.File))
		}
		log.Printf("[indicators] %s metros=%d saved=%s", out.ind.Column, len(out.rows), path)
	}
	return res, nil
}
