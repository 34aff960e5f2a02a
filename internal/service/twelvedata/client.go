package twelvedata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"FxPipe/internal/domain/models"
	drepo "FxPipe/internal/domain/repository"
	xhttp "FxPipe/pkg/http"
	applogger "FxPipe/pkg/logger"
	"FxPipe/pkg/util"
)

const (
	DefaultBaseURL = "https://api.twelvedata.com"
	// SourceName is stored on every ingested bar.
	SourceName = "twelvedata"
)

// ProviderError is a status:"error" body or a non-2xx response.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("twelvedata error %d", e.Code)
	}
	return e.Message
}

// Client implements repository.QuoteProvider over the Twelve Data REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *xhttp.Client
	metrics drepo.Metrics
	logger  *applogger.Logger
	now     func() time.Time
}

// Option configures Client.
type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHTTPClient(h *xhttp.Client) Option { return func(c *Client) { c.http = h } }

func WithMetrics(m drepo.Metrics) Option { return func(c *Client) { c.metrics = m } }

// New creates a client. An empty apiKey is allowed; jobs check HasCredentials.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = xhttp.NewClient(xhttp.WithTimeout(30 * time.Second))
	}
	return c
}

// SetLogger sets the logger.
func (c *Client) SetLogger(l *applogger.Logger) { c.logger = l }

func (c *Client) HasCredentials() bool { return c.apiKey != "" }

// FormatSymbol turns "EURUSD" into "EUR/USD"; anything else passes through.
func FormatSymbol(symbol string) string {
	if strings.Contains(symbol, "/") || len(symbol) != 6 {
		return symbol
	}
	return symbol[:3] + "/" + symbol[3:]
}

type seriesValue struct {
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume,omitempty"`
}

type seriesResponse struct {
	Values  []seriesValue `json:"values"`
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Code    int           `json:"code"`
}

type rateResponse struct {
	Symbol    string   `json:"symbol"`
	Rate      *float64 `json:"rate"`
	Timestamp int64    `json:"timestamp"`
	Status    string   `json:"status"`
	Message   string   `json:"message"`
	Code      int      `json:"code"`
}

// TimeSeries fetches bars and returns them in ascending time order. An empty
// result is not an error.
func (c *Client) TimeSeries(ctx context.Context, q drepo.SeriesQuery) ([]models.Bar, error) {
	params := map[string][]string{
		"symbol":     {FormatSymbol(q.Symbol)},
		"interval":   {q.Timeframe.Interval()},
		"outputsize": {strconv.Itoa(q.OutputSize)},
		"apikey":     {c.apiKey},
		"format":     {"JSON"},
	}
	if q.Start != nil {
		params["start_date"] = []string{util.FormatProviderTime(*q.Start)}
	}
	if q.End != nil {
		params["end_date"] = []string{util.FormatProviderTime(*q.End)}
	}
	if q.Descending {
		params["order"] = []string{"DESC"}
	} else if q.Start != nil || q.End != nil {
		params["order"] = []string{"ASC"}
	}

	var resp seriesResponse
	if err := c.get(ctx, "time_series", params, &resp); err != nil {
		return nil, err
	}
	if resp.Status == "error" {
		return nil, &ProviderError{Code: resp.Code, Message: resp.Message}
	}

	ingested := c.now().UTC()
	bars := make([]models.Bar, 0, len(resp.Values))
	for _, v := range resp.Values {
		b, err := toBar(q.Symbol, q.Timeframe, v, ingested)
		if err != nil {
			c.logger.Warn("twelvedata: skipping malformed row",
				applogger.String("symbol", q.Symbol),
				applogger.String("datetime", v.Datetime),
				applogger.Error(err))
			continue
		}
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

// ExchangeRate returns the spot rate for a "BASE/QUOTE" pair.
func (c *Client) ExchangeRate(ctx context.Context, pair string) (float64, error) {
	params := map[string][]string{
		"symbol": {FormatSymbol(pair)},
		"apikey": {c.apiKey},
		"format": {"JSON"},
	}
	var resp rateResponse
	if err := c.get(ctx, "exchange_rate", params, &resp); err != nil {
		return 0, err
	}
	if resp.Status == "error" {
		return 0, &ProviderError{Code: resp.Code, Message: resp.Message}
	}
	if resp.Rate == nil || math.IsNaN(*resp.Rate) || math.IsInf(*resp.Rate, 0) {
		return 0, fmt.Errorf("Exchange rate unavailable for %s", pair)
	}
	return *resp.Rate, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params map[string][]string, dest interface{}) error {
	start := time.Now()
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + "/" + endpoint,
		QueryParams: params,
	}, dest)

	result := "ok"
	if err != nil {
		result = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordProviderRequest(endpoint, result, time.Since(start).Seconds())
	}

	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return &ProviderError{Code: se.StatusCode, Message: fmt.Sprintf("HTTP %d", se.StatusCode)}
	}
	if err != nil {
		return fmt.Errorf("twelvedata %s: %w", endpoint, err)
	}
	return nil
}

func toBar(symbol string, tf models.Timeframe, v seriesValue, ingested time.Time) (models.Bar, error) {
	t, ok := util.ParseProviderTime(v.Datetime)
	if !ok {
		return models.Bar{}, fmt.Errorf("parse datetime %q", v.Datetime)
	}
	var (
		f   [4]float64
		err error
	)
	for i, s := range []string{v.Open, v.High, v.Low, v.Close} {
		if f[i], err = strconv.ParseFloat(s, 64); err != nil {
			return models.Bar{}, fmt.Errorf("parse price %q: %w", s, err)
		}
	}
	b := models.Bar{
		Symbol:     symbol,
		Timeframe:  tf,
		Time:       t,
		Open:       f[0],
		High:       f[1],
		Low:        f[2],
		Close:      f[3],
		Source:     SourceName,
		IngestedAt: ingested,
	}
	if v.Volume != "" {
		if vol, err := strconv.ParseFloat(v.Volume, 64); err == nil {
			b.Volume = &vol
		}
	}
	return b, nil
}
