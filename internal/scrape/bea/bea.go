package bea

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"econstats-engine/internal/scrape/util"
)

var ErrMissingKey = errors.New("bea: response is missing BEAAPI.Results")

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bea: status %d: %s", e.Code, util.LastN(e.Body, 200))
}

// APIError is the error object BEA returns with a 200 status.
type APIError struct {
	Code        string `json:"APIErrorCode"`
	Description string `json:"APIErrorDescription"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bea: api error %s: %s", e.Code, e.Description)
}

type Option struct {
	Key  string
	Desc string
}

// Row is one observation of BEAAPI.Results.Data.
type Row struct {
	GeoFips    string `json:"GeoFips"`
	GeoName    string `json:"GeoName"`
	TimePeriod string `json:"TimePeriod"`
	DataValue  string `json:"DataValue"`
}

type Query struct {
	Dataset  string
	Table    string
	GeoFips  string
	LineCode int
	Years    []int
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

type envelope struct {
	BEAAPI *struct {
		Error   *APIError `json:"Error"`
		Results *struct {
			Error      *APIError `json:"Error"`
			Data       []Row     `json:"Data"`
			ParamValue []struct {
				Key  string `json:"Key"`
				Desc string `json:"Desc"`
			} `json:"ParamValue"`
		} `json:"Results"`
	} `json:"BEAAPI"`
}

func (c *Client) get(ctx context.Context, params url.Values) (*envelope, error) {
	params.Set("UserID", c.key)
	params.Set("ResultFormat", "JSON")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.limiter.Do(c.hc, req)
	if err != nil {
		return nil, fmt.Errorf("bea %s: %w", params.Get("method"), err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &StatusError{Code: res.StatusCode, Body: string(b)}
	}

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("bea decode: %w", err)
	}
	if env.BEAAPI == nil {
		return nil, ErrMissingKey
	}
	if env.BEAAPI.Error != nil {
		return nil, env.BEAAPI.Error
	}
	if env.BEAAPI.Results == nil {
		return nil, ErrMissingKey
	}
	if env.BEAAPI.Results.Error != nil {
		return nil, env.BEAAPI.Results.Error
	}
	return &env, nil
}

// ParameterValues lists the allowed values of target given filters. For the
// Year parameter only keys are returned.
func (c *Client) ParameterValues(ctx context.Context, dataset, target string, filters map[string]string) ([]Option, error) {
	p := url.Values{}
	p.Set("method", "GetParameterValuesFiltered")
	p.Set("datasetname", dataset)
	p.Set("TargetParameter", target)
	for k, v := range filters {
		p.Set(k, v)
	}

	env, err := c.get(ctx, p)
	if err != nil {
		return nil, err
	}
	vals := env.BEAAPI.Results.ParamValue
	if vals == nil {
		return nil, fmt.Errorf("%w: ParamValue", ErrMissingKey)
	}
	out := make([]Option, 0, len(vals))
	for _, v := range vals {
		o := Option{Key: v.Key}
		if target != "Year" {
			o.Desc = v.Desc
		}
		out = append(out, o)
	}
	return out, nil
}

func (c *Client) GetData(ctx context.Context, q Query) ([]Row, error) {
	years := make([]string, len(q.Years))
	for i, y := range q.Years {
		years[i] = strconv.Itoa(y)
	}

	p := url.Values{}
	p.Set("method", "GetData")
	p.Set("datasetname", q.Dataset)
	p.Set("TableName", q.Table)
	p.Set("GeoFIPS", q.GeoFips)
	p.Set("LineCode", strconv.Itoa(q.LineCode))
	p.Set("Year", strings.Join(years, ","))

	env, err := c.get(ctx, p)
	if err != nil {
		return nil, err
	}
	if env.BEAAPI.Results.Data == nil {
		return nil, fmt.Errorf("%w: Data", ErrMissingKey)
	}
	return env.BEAAPI.Results.Data, nil
}
