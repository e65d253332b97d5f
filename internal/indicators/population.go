package indicators

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"econstats-engine/internal/scrape/util"
)

const (
	Metropolitan = "Metropolitan Statistical Area"
	Micropolitan = "Micropolitan Statistical Area"
)

type Size string

const (
	Small  Size = "SMALL"
	Medium Size = "MEDIUM"
	Large  Size = "LARGE"
)

func Categorize(pop int64) Size {
	switch {
	case pop < 500000:
		return Small
	case pop <= 999999:
		return Medium
	}
	return Large
}

type Area struct {
	Population int64
	LSAD       string
}

// Population maps a CBSA code to its estimate. Only metropolitan and
// micropolitan rows are kept.
type Population map[string]Area

// ParsePopulation reads the Census CBSA totals file. column names the
// estimate to use, e.g. POPESTIMATE2022.
func ParsePopulation(r io.Reader, column string) (Population, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("population header: %w", err)
	}
	cbsa, lsad, est := util.Column(header, "CBSA"), util.Column(header, "LSAD"), util.Column(header, column)
	if cbsa < 0 || lsad < 0 || est < 0 {
		return nil, fmt.Errorf("population: need CBSA, LSAD and %s columns", column)
	}

	out := Population{}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("population: %w", err)
		}
		if len(rec) <= max(cbsa, lsad, est) {
			continue
		}
		kind := util.CleanText(rec[lsad])
		if kind != Metropolitan && kind != Micropolitan {
			continue
		}
		n, ok := util.Number(rec[est])
		if !ok {
			continue
		}
		out[util.CleanText(rec[cbsa])] = Area{Population: int64(n), LSAD: kind}
	}
	return out, nil
}

// LoadPopulation reads the estimates from cache, downloading them from url
// first when the cache file does not exist.
func LoadPopulation(ctx context.Context, url, cache, column string, limiter *util.HostLimiter) (Population, error) {
	if _, err := os.Stat(cache); os.IsNotExist(err) {
		if err := download(ctx, url, cache, limiter); err != nil {
			return nil, err
		}
	}
	f, err := os.Open(cache)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParsePopulation(f, column)
}

func download(ctx context.Context, url, dst string, limiter *util.HostLimiter) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	hc := &http.Client{Timeout: 2 * time.Minute}
	res, err := limiter.Do(hc, req)
	if err != nil {
		return fmt.Errorf("population get: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return fmt.Errorf("population status %d", res.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp := dst + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, res.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("population save: %w", err)
	}
	log.Printf("[indicators] population bytes=%d saved=%s", n, dst)
	return os.Rename(tmp, dst)
}
