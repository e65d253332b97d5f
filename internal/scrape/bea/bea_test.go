package bea

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func serve(t *testing.T, status int, body string, check func(*http.Request)) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api/data/", "test-key", nil)
}

const dataBody = `{"BEAAPI":{"Results":{"Data":[
	{"GeoFips":"10180","GeoName":"Abilene, TX","TimePeriod":"2018","DataValue":"8,123"},
	{"GeoFips":"10180","GeoName":"Abilene, TX","TimePeriod":"2017","DataValue":"8,001"},
	{"GeoFips":"10020","GeoName":"Aberdeen, SD","TimePeriod":"2017","DataValue":"(D)"}
]}}}`

func TestGetData(t *testing.T) {
	c := serve(t, 200, dataBody, func(r *http.Request) {
		q := r.URL.Query()
		want := map[string]string{
			"UserID": "test-key", "method": "GetData", "datasetname": "REGIONAL",
			"TableName": "CAGDP9", "GeoFIPS": "MSA", "LineCode": "1",
			"Year": "2017,2018", "ResultFormat": "JSON",
		}
		for k, v := range want {
			if got := q.Get(k); got != v {
				t.Errorf("param %s = %q, want %q", k, got, v)
			}
		}
	})
	rows, err := c.GetData(context.Background(), Query{
		Dataset: "REGIONAL", Table: "CAGDP9", GeoFips: "MSA", LineCode: 1, Years: Years(2017, 2018),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[0].DataValue != "8,123" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestGetDataErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"status", 500, "boom", func(err error) bool {
			var se *StatusError
			return errors.As(err, &se) && se.Code == 500
		}},
		{"api error", 200, `{"BEAAPI":{"Results":{"Error":{"APIErrorCode":"40","APIErrorDescription":"bad year"}}}}`, func(err error) bool {
			var ae *APIError
			return errors.As(err, &ae) && ae.Code == "40"
		}},
		{"top level api error", 200, `{"BEAAPI":{"Error":{"APIErrorCode":"3","APIErrorDescription":"invalid UserID"}}}`, func(err error) bool {
			var ae *APIError
			return errors.As(err, &ae) && ae.Description == "invalid UserID"
		}},
		{"no results", 200, `{"BEAAPI":{}}`, func(err error) bool { return errors.Is(err, ErrMissingKey) }},
		{"no data", 200, `{"BEAAPI":{"Results":{}}}`, func(err error) bool { return errors.Is(err, ErrMissingKey) }},
		{"no envelope", 200, `{}`, func(err error) bool { return errors.Is(err, ErrMissingKey) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := serve(t, tc.status, tc.body, nil)
			_, err := c.GetData(context.Background(), Query{Table: "CAGDP9", Years: []int{2017}})
			if !tc.check(err) {
				t.Fatalf("unexpected err %v", err)
			}
		})
	}
}

func TestParameterValues(t *testing.T) {
	body := `{"BEAAPI":{"Results":{"ParamValue":[{"Key":"2017","Desc":"2017"},{"Key":"2018","Desc":"2018"}]}}}`
	c := serve(t, 200, body, func(r *http.Request) {
		q := r.URL.Query()
		if q.Get("method") != "GetParameterValuesFiltered" || q.Get("TargetParameter") != "Year" || q.Get("TableName") != "CAGDP9" {
			t.Errorf("query = %v", q)
		}
	})
	got, err := c.ParameterValues(context.Background(), "REGIONAL", "Year", map[string]string{"TableName": "CAGDP9"})
	if err != nil {
		t.Fatal(err)
	}
	want := []Option{{Key: "2017"}, {Key: "2018"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v", got)
	}

	body = `{"BEAAPI":{"Results":{"ParamValue":[{"Key":"CAGDP9","Desc":"Real GDP by county and metro"}]}}}`
	c = serve(t, 200, body, nil)
	got, err = c.ParameterValues(context.Background(), "REGIONAL", "TableName", nil)
	if err != nil || got[0].Desc == "" {
		t.Fatalf("got %+v err %v", got, err)
	}

	c = serve(t, 200, `{"BEAAPI":{"Results":{}}}`, nil)
	if _, err := c.ParameterValues(context.Background(), "REGIONAL", "Year", nil); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("err = %v", err)
	}
}

func TestPublishedDropsMissingYears(t *testing.T) {
	body := `{"BEAAPI":{"Results":{"ParamValue":[{"Key":"2017"},{"Key":"2018"},{"Key":"LAST5"}]}}}`
	c := serve(t, 200, body, nil)
	q := Query{Dataset: "REGIONAL", Table: "CAGDP9", Years: Years(2017, 2019)}
	got, dropped, err := Published(context.Background(), c, q)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.Years, []int{2017, 2018}) || !reflect.DeepEqual(dropped, []int{2019}) {
		t.Fatalf("years = %v dropped = %v", got.Years, dropped)
	}
	if FileName(got) != "CAGDP9_2017-2018.csv" {
		t.Fatalf("file = %s", FileName(got))
	}
}

func TestPivot(t *testing.T) {
	rows := []Row{
		{"10180", "Abilene, TX", "2018", "8,123"},
		{"10180", "Abilene, TX", "2017", "8,001"},
		{"10020", "Aberdeen, SD", "2017", "(D)"},
	}
	got := Pivot(rows)
	want := Table{
		Header: []string{"GeoFips", "GeoName", "2017", "2018"},
		Rows: [][]string{
			{"10020", "Aberdeen, SD", "(D)", ""},
			{"10180", "Abilene, TX", "8,001", "8,123"},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v\nwant %+v", got, want)
	}
}

func TestRunWritesTable(t *testing.T) {
	c := serve(t, 200, dataBody, nil)
	dir := t.TempDir()
	q := Query{Dataset: "REGIONAL", Table: "CAGDP9", GeoFips: "MSA", LineCode: 1, Years: Years(2017, 2022)}

	path, r, err := Run(context.Background(), c, q, dir)
	if err != nil {
		t.Fatal(err)
	}
	if r.Outcome != "ok" || filepath.Base(path) != "CAGDP9_2017-2022.csv" {
		t.Fatalf("path=%s result=%+v", path, r)
	}
	b, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(b), "GeoFips,GeoName,2017,2018\n10020,") {
		t.Fatalf("csv = %q", b)
	}
}

func TestRunSubstitutesEmptyTableOnFailure(t *testing.T) {
	c := serve(t, 503, "down", nil)
	dir := t.TempDir()
	path, r, err := Run(context.Background(), c, Query{Table: "CAGDP9", Years: Years(2017, 2018)}, dir)
	if err != nil {
		t.Fatal(err)
	}
	if r.Outcome != "skipped" || !strings.Contains(r.Reason, "503") {
		t.Fatalf("result = %+v", r)
	}
	b, _ := os.ReadFile(path)
	if string(b) != "GeoFips,GeoName\n" {
		t.Fatalf("csv = %q", b)
	}
}
