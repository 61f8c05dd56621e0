package health

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/maypok86/otter/v2"
	"github.com/tidwall/gjson"
)

// HTTPSource fetches samples from a health-platform bridge over HTTP:
//
//	GET <BaseURL>/samples?kind=<kind>&start=<unix>&end=<unix>
//
// Values are extracted from the JSON response with a gjson path. Responses
// are cached briefly so the poll loop and background evaluations landing in
// the same window share one request.
type HTTPSource struct {
	baseURL   string
	valuePath string
	client    *http.Client
	cache     *otter.Cache[string, []float64]
	bucket    time.Duration
	attempts  uint
	logger    *slog.Logger
}

// HTTPConfig configures an HTTPSource.
type HTTPConfig struct {
	BaseURL string
	// ValuePath is the gjson path to the sample values (default "samples.#.value").
	ValuePath string
	// CacheTTL bounds how long a fetched window is reused (default 30s, <0 disables).
	CacheTTL time.Duration
	// Attempts is the retry budget per fetch (default 3).
	Attempts   uint
	HTTPClient *http.Client
}

// NewHTTPSource creates an HTTP-backed source.
func NewHTTPSource(cfg HTTPConfig, logger *slog.Logger) (*HTTPSource, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("http source: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("http source: invalid base URL: %w", err)
	}
	if cfg.ValuePath == "" {
		cfg.ValuePath = "samples.#.value"
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &HTTPSource{
		baseURL:   cfg.BaseURL,
		valuePath: cfg.ValuePath,
		client:    cfg.HTTPClient,
		attempts:  cfg.Attempts,
		logger:    logger,
	}
	if cfg.CacheTTL > 0 {
		s.bucket = cfg.CacheTTL
		s.cache = otter.Must(&otter.Options[string, []float64]{
			MaximumSize:      1_000,
			ExpiryCalculator: otter.ExpiryWriting[string, []float64](cfg.CacheTTL),
		})
	}
	return s, nil
}

// FetchSamples implements Fetcher.
func (s *HTTPSource) FetchSamples(ctx context.Context, kind Kind, start, end time.Time) ([]float64, error) {
	key := s.cacheKey(kind, start, end)
	if s.cache != nil {
		if v, ok := s.cache.GetIfPresent(key); ok {
			s.logger.Debug("sample cache hit", "kind", kind)
			return v, nil
		}
	}

	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	u = u.JoinPath("samples")
	q := u.Query()
	q.Set("kind", string(kind))
	q.Set("start", strconv.FormatInt(start.Unix(), 10))
	q.Set("end", strconv.FormatInt(end.Unix(), 10))
	u.RawQuery = q.Encode()

	var body []byte
	err = retry.Do(
		func() error {
			b, err := s.get(ctx, u.String())
			if err != nil {
				return err
			}
			body = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.DelayType(retry.FullJitterBackoffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Debug("retrying sample fetch", "attempt", n+1, "kind", kind, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch %s samples: %w", kind, err)
	}

	values := gjson.GetBytes(body, s.valuePath)
	if !values.Exists() {
		// No data for the window.
		return nil, nil
	}
	arr := values.Array()
	out := make([]float64, 0, len(arr))
	for _, v := range arr {
		if v.Type != gjson.Number {
			continue
		}
		out = append(out, v.Float())
	}

	if s.cache != nil {
		s.cache.Set(key, out)
	}
	return out, nil
}

// Subscribe is not supported over plain HTTP.
func (s *HTTPSource) Subscribe(Kind, func()) error {
	return ErrSubscribeUnsupported
}

func (s *HTTPSource) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, retry.Unrecoverable(ErrUnauthorized)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(b))
	case resp.StatusCode != http.StatusOK:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, retry.Unrecoverable(fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(b)))
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return b, nil
}

// cacheKey buckets the window bounds so evaluations a few seconds apart
// share an entry.
func (s *HTTPSource) cacheKey(kind Kind, start, end time.Time) string {
	if s.bucket > 0 {
		start = start.Truncate(s.bucket)
		end = end.Truncate(s.bucket)
	}
	return fmt.Sprintf("%s|%d|%d", kind, start.Unix(), end.Unix())
}
