package bls

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"econstats-engine/internal/domain"
	"econstats-engine/internal/scrape/util"
)

const (
	EmploymentFile = "Employment_Data_Monthly_Annual.csv"
	WageFile       = "Wage_Data_Annual.csv"
)

type Job struct {
	Client    *Client
	FIPSPath  string
	OutDir    string
	Start     int
	End       int
	BatchSize int
}

// Run downloads county employment and wages and writes both summary tables.
// Batch failures are returned as skipped units; reading the county list or
// writing an output file is an error.
func (j Job) Run(ctx context.Context) ([]string, []domain.UnitResult, error) {
	fips, err := CountyFIPS(j.FIPSPath)
	if err != nil {
		return nil, nil, fmt.Errorf("county fips: %w", err)
	}
	log.Printf("[bls] counties=%d years=%d-%d batch=%d", len(fips), j.Start, j.End, j.BatchSize)

	var (
		paths   []string
		results []domain.UnitResult
	)

	obs, rs, err := j.Client.FetchAll(ctx, "employment", SeriesIDs(fips, Employment), j.BatchSize, j.Start, j.End)
	results = append(results, rs...)
	if err != nil {
		return paths, results, err
	}
	emp := WithAnnualMeans(Pivot(obs))
	p := filepath.Join(j.OutDir, EmploymentFile)
	if err := util.WriteCSV(p, emp.Header, emp.Rows); err != nil {
		return paths, results, err
	}
	paths = append(paths, p)

	obs, rs, err = j.Client.FetchAll(ctx, "wages", SeriesIDs(fips, Wages), j.BatchSize, j.Start, j.End)
	results = append(results, rs...)
	if err != nil {
		return paths, results, err
	}
	wage := AnnualSums(Pivot(obs))
	p = filepath.Join(j.OutDir, WageFile)
	if err := util.WriteCSV(p, wage.Header, wage.Rows); err != nil {
		return paths, results, err
	}
	paths = append(paths, p)

	log.Printf("[bls] employment_series=%d wage_series=%d", len(emp.Rows), len(wage.Rows))
	return paths, results, nil
}
