package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/roach88/fincollect/internal/model"
)

// maxBodyBytes caps a single response body.
const maxBodyBytes = 16 << 20

// HTTPConfig configures HTTPFetcher.
type HTTPConfig struct {
	BaseURL        string
	Exchange       string
	RateLimiter    *rate.Limiter
	RequestTimeout time.Duration
}

// DefaultHTTPConfig returns a config for baseURL limited to
// requestsPerSecond with the given burst.
func DefaultHTTPConfig(baseURL, exchange string, requestsPerSecond float64, burst int) *HTTPConfig {
	if burst < 1 {
		burst = 1
	}
	return &HTTPConfig{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		Exchange:       exchange,
		RateLimiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		RequestTimeout: 30 * time.Second,
	}
}

// HTTPFetcher fetches JSON documents from the data source:
//
//	GET {base}/exchanges/{exchange}/directory
//	GET {base}/exchanges/{exchange}/instruments/{company}/{instrument}/financials
type HTTPFetcher struct {
	config *HTTPConfig
	client *http.Client
	logger *slog.Logger
}

// NewHTTPFetcher creates a fetcher. A nil client gets one with the
// configured request timeout.
func NewHTTPFetcher(config *HTTPConfig, client *http.Client, logger *slog.Logger) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: config.RequestTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPFetcher{config: config, client: client, logger: logger}
}

// FetchDirectory implements Fetcher.
func (f *HTTPFetcher) FetchDirectory(ctx context.Context) (model.DirectorySnapshot, error) {
	u := fmt.Sprintf("%s/exchanges/%s/directory", f.config.BaseURL, url.PathEscape(f.config.Exchange))
	body, err := f.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("fetch directory: %w", err)
	}
	snapshot, err := ParseDirectory(body, f.config.Exchange)
	if err != nil {
		return nil, fmt.Errorf("fetch directory: %w", err)
	}
	f.logger.Debug("directory fetched", "instruments", snapshot.Len())
	return snapshot, nil
}

// FetchInstrumentData implements Fetcher.
func (f *HTTPFetcher) FetchInstrumentData(ctx context.Context, key model.InstrumentKey) (model.InstrumentFinancials, error) {
	u := fmt.Sprintf("%s/exchanges/%s/instruments/%s/%s/financials",
		f.config.BaseURL,
		url.PathEscape(key.Exchange),
		url.PathEscape(key.CompanySymbol),
		url.PathEscape(key.InstrumentSymbol))
	body, err := f.get(ctx, u)
	if err != nil {
		return model.InstrumentFinancials{}, fmt.Errorf("fetch %s: %w", key, err)
	}
	fin, err := ParseFinancials(body)
	if err != nil {
		return model.InstrumentFinancials{}, fmt.Errorf("fetch %s: %w", key, err)
	}
	for _, r := range fin.Reports {
		if r.Invalid {
			f.logger.Warn("malformed report in payload",
				"instrument", key.String(),
				"type", r.Type,
				"period", r.Period,
				"reason", r.InvalidReason)
		}
	}
	return fin, nil
}

// get waits for the rate limiter, then performs one GET and returns the
// body of a 200 response.
func (f *HTTPFetcher) get(ctx context.Context, u string) ([]byte, error) {
	if err := f.config.RateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, u)
	}
	return body, nil
}
