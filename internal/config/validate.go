package config

import (
	"fmt"
	"net/url"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate trims string fields and checks ranges.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	out.App.DataDir = strings.TrimSpace(out.App.DataDir)
	if out.App.DataDir == "" {
		out.App.DataDir = "."
	}
	q := &out.Sources.QWI
	q.ExportPrefix = strings.TrimSpace(q.ExportPrefix)
	q.CommittedDir = strings.TrimSpace(q.CommittedDir)
	q.PendingDir = strings.TrimSpace(q.PendingDir)
	q.DownloadDir = strings.TrimSpace(q.DownloadDir)

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	checkURL := func(name, raw string) {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || u.Scheme == "" || u.Host == "" {
			res.addErr("%s must be an absolute URL (got %q)", name, raw)
		}
	}
	checkYears := func(name string, start, end int) {
		if start < 1990 || end < 1990 {
			res.addErr("%s.start_year/end_year must be >= 1990", name)
		} else if start > end {
			res.addErr("%s.start_year (%d) is after end_year (%d)", name, start, end)
		}
	}

	if b := out.Sources.BEA; b.Enabled {
		checkURL("sources.bea.endpoint", b.Endpoint)
		checkYears("sources.bea", b.StartYear, b.EndYear)
		if strings.TrimSpace(b.Table) == "" || strings.TrimSpace(b.Dataset) == "" {
			res.addErr("sources.bea.dataset and sources.bea.table are required when bea is enabled")
		}
	}

	if b := out.Sources.BLS; b.Enabled {
		checkURL("sources.bls.endpoint", b.Endpoint)
		checkYears("sources.bls", b.StartYear, b.EndYear)
		if b.BatchSize <= 0 || b.BatchSize > 50 {
			res.addErr("sources.bls.batch_size must be 1..50 (BLS v2 limit)")
		}
		if b.RequestsPerSecond <= 0 {
			res.addErr("sources.bls.requests_per_second must be > 0")
		} else if b.RequestsPerSecond > 5 {
			res.addWarn("sources.bls.requests_per_second is high (%.1f) and may hit the daily quota quickly.", b.RequestsPerSecond)
		}
		if b.EndYear-b.StartYear >= 20 {
			res.addErr("sources.bls year span must be at most 20 years")
		}
		if strings.TrimSpace(b.CountyFIPSPath) == "" {
			res.addErr("sources.bls.county_fips_path is required when bls is enabled")
		}
	}

	if q.Enabled {
		checkURL("sources.qwi.url", q.URL)
		if q.WaitSeconds <= 0 {
			res.addErr("sources.qwi.wait_seconds must be > 0")
		}
		if q.ExportTimeoutSeconds <= 0 {
			res.addErr("sources.qwi.export_timeout_seconds must be > 0")
		} else if q.ExportTimeoutSeconds < 30 {
			res.addWarn("sources.qwi.export_timeout_seconds is low (%d); large exports take minutes.", q.ExportTimeoutSeconds)
		}
		if q.CommittedDir == "" || q.PendingDir == "" || q.DownloadDir == "" {
			res.addErr("sources.qwi committed_dir, pending_dir and download_dir are required")
		} else if q.CommittedDir == q.PendingDir {
			res.addErr("sources.qwi.committed_dir and pending_dir must differ")
		}
		if q.ExportPrefix == "" {
			res.addErr("sources.qwi.export_prefix is required")
		}
	}

	checkURL("sources.population.url", out.Sources.Population.URL)
	if strings.TrimSpace(out.Sources.Population.EstimateColumn) == "" {
		res.addErr("sources.population.estimate_column is required")
	}

	if out.Output.ReportTop < 0 {
		res.addErr("output.report_top must be >= 0")
	}
	if out.Schedule.QWIHours < 0 {
		res.addErr("schedule.qwi_hours must be >= 0")
	} else if out.Schedule.QWIHours > 0 && out.Schedule.QWIHours < 6 {
		res.addWarn("schedule.qwi_hours=%d re-walks every state that often; discovery takes a long time.", out.Schedule.QWIHours)
	}

	if !out.Sources.BEA.Enabled && !out.Sources.BLS.Enabled && !q.Enabled {
		res.addWarn("no sources enabled; only indicators/report can run.")
	}

	return out, res
}
