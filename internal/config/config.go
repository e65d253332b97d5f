// engine/internal/config/config.go
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Port    int    `yaml:"port"`
		DataDir string `yaml:"data_dir"`
	} `yaml:"app"`

	Sources struct {
		BEA        BEA        `yaml:"bea"`
		BLS        BLS        `yaml:"bls"`
		QWI        QWI        `yaml:"qwi"`
		Population Population `yaml:"population"`
	} `yaml:"sources"`

	Output struct {
		Dir       string `yaml:"dir"`
		Report    bool   `yaml:"report"`
		ReportTop int    `yaml:"report_top"`
	} `yaml:"output"`

	Schedule struct {
		QWIHours int `yaml:"qwi_hours"`
	} `yaml:"schedule"`
}

type BEA struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Dataset   string `yaml:"dataset"`
	Table     string `yaml:"table"`
	GeoFIPS   string `yaml:"geo_fips"`
	LineCode  int    `yaml:"line_code"`
	StartYear int    `yaml:"start_year"`
	EndYear   int    `yaml:"end_year"`
	OutDir    string `yaml:"out_dir"`
}

type BLS struct {
	Enabled           bool    `yaml:"enabled"`
	Endpoint          string  `yaml:"endpoint"`
	StartYear         int     `yaml:"start_year"`
	EndYear           int     `yaml:"end_year"`
	BatchSize         int     `yaml:"batch_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	CountyFIPSPath    string  `yaml:"county_fips_path"`
	OutDir            string  `yaml:"out_dir"`
}

type QWI struct {
	Enabled              bool   `yaml:"enabled"`
	URL                  string `yaml:"url"`
	Headless             bool   `yaml:"headless"`
	WaitSeconds          int    `yaml:"wait_seconds"`
	ExportTimeoutSeconds int    `yaml:"export_timeout_seconds"`
	CommittedDir         string `yaml:"committed_dir"`
	PendingDir           string `yaml:"pending_dir"`
	DownloadDir          string `yaml:"download_dir"`
	ExportPrefix         string `yaml:"export_prefix"`
}

type Population struct {
	URL            string `yaml:"url"`
	EstimateColumn string `yaml:"estimate_column"`
}

func (q QWI) Wait() time.Duration { return time.Duration(q.WaitSeconds) * time.Second }
func (q QWI) ExportTimeout() time.Duration {
	return time.Duration(q.ExportTimeoutSeconds) * time.Second
}

// Path resolves p against the data dir unless it is already absolute.
func (c Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.App.DataDir, p)
}

func Load(path string) (Config, error) {
	cfg := Defaults()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

// Defaults matches config/config.yml; fields missing from a user file keep these.
func Defaults() Config {
	var c Config
	c.App.Port = 38472
	c.App.DataDir = "."

	c.Sources.BEA = BEA{
		Enabled:   true,
		Endpoint:  "https://apps.bea.gov/api/data/",
		Dataset:   "REGIONAL",
		Table:     "CAGDP9",
		GeoFIPS:   "MSA",
		LineCode:  1,
		StartYear: 2017,
		EndYear:   2022,
		OutDir:    "BEA_Data",
	}
	c.Sources.BLS = BLS{
		Enabled:           true,
		Endpoint:          "https://api.bls.gov/publicAPI/v2/timeseries/data/",
		StartYear:         2017,
		EndYear:           2023,
		BatchSize:         50,
		RequestsPerSecond: 1,
		CountyFIPSPath:    "county_fips_master.csv",
		OutDir:            "BLS_Data",
	}
	c.Sources.QWI = QWI{
		Enabled:              true,
		URL:                  "https://ledextract.ces.census.gov/qwi/all",
		Headless:             true,
		WaitSeconds:          20,
		ExportTimeoutSeconds: 120,
		CommittedDir:         "Upload",
		PendingDir:           "TempUpload",
		DownloadDir:          "QWI_Data",
		ExportPrefix:         "QWI",
	}
	c.Sources.Population = Population{
		URL:            "https://www2.census.gov/programs-surveys/popest/datasets/2020-2022/metro/totals/cbsa-est2022.csv",
		EstimateColumn: "POPESTIMATE2022",
	}
	c.Output.Dir = "Output"
	c.Output.Report = true
	c.Output.ReportTop = 15
	return c
}
