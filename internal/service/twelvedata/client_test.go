package twelvedata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"FxPipe/internal/domain/models"
	drepo "FxPipe/internal/domain/repository"
)

func TestFormatSymbol(t *testing.T) {
	cases := map[string]string{"EURUSD": "EUR/USD", "EUR/USD": "EUR/USD", "XAU": "XAU"}
	for in, want := range cases {
		if got := FormatSymbol(in); got != want {
			t.Fatalf("FormatSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTimeSeriesParsesAndSorts(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/time_series" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","values":[
			{"datetime":"2024-03-01 11:00:00","open":"1.1","high":"1.2","low":"1.0","close":"1.15"},
			{"datetime":"2024-03-01 10:00:00","open":"1.0","high":"1.1","low":"0.9","close":"1.05","volume":"12"}
		]}`))
	}))
	defer srv.Close()

	c := New("key", WithBaseURL(srv.URL))
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	bars, err := c.TimeSeries(context.Background(), drepo.SeriesQuery{
		Symbol: "EURUSD", Timeframe: models.H1, OutputSize: 5, Start: &start,
	})
	if err != nil {
		t.Fatalf("TimeSeries error: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	if !bars[0].Time.Equal(start) || bars[0].Time.Location() != time.UTC {
		t.Fatalf("first bar time = %v, want %v UTC", bars[0].Time, start)
	}
	if bars[0].Volume == nil || *bars[0].Volume != 12 {
		t.Fatalf("volume not parsed")
	}
	if bars[1].Close != 1.15 || bars[1].Source != SourceName {
		t.Fatalf("unexpected second bar %+v", bars[1])
	}

	want := map[string]string{
		"symbol": "EUR/USD", "interval": "1h", "outputsize": "5", "apikey": "key",
		"format": "JSON", "start_date": "2024-03-01 10:00:00", "order": "ASC",
	}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Fatalf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}
}

func TestTimeSeriesStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","code":429,"message":"out of credits"}`))
	}))
	defer srv.Close()

	_, err := New("key", WithBaseURL(srv.URL)).TimeSeries(context.Background(), drepo.SeriesQuery{Symbol: "EURUSD", Timeframe: models.H4, OutputSize: 1})
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Code != 429 || pe.Message != "out of credits" {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestNon2xxBecomesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New("key", WithBaseURL(srv.URL)).ExchangeRate(context.Background(), "JPY/USD")
	if err == nil || err.Error() != "HTTP 502" {
		t.Fatalf("err = %v, want HTTP 502", err)
	}
}

func TestExchangeRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") != "JPY/USD" {
			t.Errorf("symbol = %q", r.URL.Query().Get("symbol"))
		}
		_, _ = w.Write([]byte(`{"symbol":"JPY/USD","rate":0.0067,"timestamp":1700000000}`))
	}))
	defer srv.Close()

	rate, err := New("key", WithBaseURL(srv.URL)).ExchangeRate(context.Background(), "JPY/USD")
	if err != nil || rate != 0.0067 {
		t.Fatalf("rate = %v, %v", rate, err)
	}
}

func TestExchangeRateMissingValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"symbol":"JPY/USD"}`))
	}))
	defer srv.Close()

	if _, err := New("key", WithBaseURL(srv.URL)).ExchangeRate(context.Background(), "JPY/USD"); err == nil {
		t.Fatalf("expected error for missing rate")
	}
}
