package bls

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"econstats-engine/internal/domain"
	"econstats-engine/internal/scrape/util"
)

const statusOK = "REQUEST_SUCCEEDED"

// RequestError is a response whose status is not REQUEST_SUCCEEDED.
type RequestError struct {
	Status   string
	Messages []string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("bls: %s: %s", e.Status, strings.Join(e.Messages, "; "))
}

// StatusError is a non-2xx HTTP answer.
type StatusError struct{ Code int }

func (e *StatusError) Error() string { return fmt.Sprintf("bls: status %d", e.Code) }

// Observation is one monthly value of a series.
type Observation struct {
	SeriesID   string
	Year       string
	Period     string
	PeriodName string
	Value      string
}

type Client struct {
	endpoint string
	key      string
	hc       *http.Client
	limiter  *util.HostLimiter
}

func New(endpoint, apiKey string, limiter *util.HostLimiter) *Client {
	return &Client{
		endpoint: endpoint,
		key:      apiKey,
		hc:       &http.Client{Timeout: 60 * time.Second},
		limiter:  limiter,
	}
}

type request struct {
	SeriesID        []string `json:"seriesid"`
	StartYear       string   `json:"startyear"`
	EndYear         string   `json:"endyear"`
	RegistrationKey string   `json:"registrationkey,omitempty"`
}

type response struct {
	Status  string   `json:"status"`
	Message []string `json:"message"`
	Results struct {
		Series []struct {
			SeriesID string `json:"seriesID"`
			Data     []struct {
				Year       string `json:"year"`
				Period     string `json:"period"`
				PeriodName string `json:"periodName"`
				Value      string `json:"value"`
			} `json:"data"`
		} `json:"series"`
	} `json:"Results"`
}

// FetchBatch requests up to one batch of series for start..end.
func (c *Client) FetchBatch(ctx context.Context, ids []string, start, end int) ([]Observation, error) {
	body, err := json.Marshal(request{
		SeriesID:        ids,
		StartYear:       strconv.Itoa(start),
		EndYear:         strconv.Itoa(end),
		RegistrationKey: c.key,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.limiter.Do(c.hc, req)
	if err != nil {
		return nil, fmt.Errorf("bls post: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
		return nil, &StatusError{Code: res.StatusCode}
	}

	var out response
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("bls decode: %w", err)
	}
	if out.Status != statusOK {
		return nil, &RequestError{Status: out.Status, Messages: out.Message}
	}

	var obs []Observation
	for _, s := range out.Results.Series {
		for _, d := range s.Data {
			obs = append(obs, Observation{
				SeriesID:   s.SeriesID,
				Year:       d.Year,
				Period:     d.Period,
				PeriodName: d.PeriodName,
				Value:      d.Value,
			})
		}
	}
	return obs, nil
}

// FetchAll splits ids into batches of size and fetches them in order. A
// failed batch is recorded as skipped and the remaining batches still run.
func (c *Client) FetchAll(ctx context.Context, name string, ids []string, size, start, end int) ([]Observation, []domain.UnitResult, error) {
	if size < 1 {
		size = 50
	}
	var (
		obs     []Observation
		results []domain.UnitResult
	)
	total := (len(ids) + size - 1) / size
	for i := 0; i < len(ids); i += size {
		if err := ctx.Err(); err != nil {
			return obs, results, err
		}
		j := min(i+size, len(ids))
		unit := fmt.Sprintf("%s batch %d/%d", name, i/size+1, total)

		got, err := c.FetchBatch(ctx, ids[i:j], start, end)
		if err != nil {
			if ctx.Err() != nil {
				return obs, results, ctx.Err()
			}
			log.Printf("[bls] %s series=%d err=%v", unit, j-i, err)
			results = append(results, domain.Skipped(unit, err.Error()))
			continue
		}
		obs = append(obs, got...)
		results = append(results, domain.OK(unit))
	}
	log.Printf("[bls] %s batches=%d observations=%d", name, total, len(obs))
	return obs, results, nil
}
