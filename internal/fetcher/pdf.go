package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ryosukesatoh/researchtldr/internal/config"
	"github.com/ryosukesatoh/researchtldr/internal/retry"
)

// PDFFetcher downloads paper PDFs. Requests to the same host are spaced by
// the configured minimum interval.
type PDFFetcher struct {
	client      *http.Client
	userAgent   string
	maxBytes    int64
	minInterval time.Duration
	retry       retry.Config

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewPDFFetcher builds a PDFFetcher from the pdf config section.
func NewPDFFetcher(cfg config.PDFConfig) *PDFFetcher {
	ua := cfg.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	return &PDFFetcher{
		client:      &http.Client{Timeout: cfg.Timeout},
		userAgent:   ua,
		maxBytes:    cfg.MaxBytes,
		minInterval: cfg.MinInterval,
		retry: retry.Config{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  2 * time.Second,
			MaxDelay:   30 * time.Second,
		},
		limiters: make(map[string]*rate.Limiter),
	}
}

// NormalizePDFURL forces https for arxiv.org hosts and leaves every other
// URL untouched.
func NormalizePDFURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	switch strings.ToLower(u.Hostname()) {
	case "arxiv.org", "www.arxiv.org":
		u.Scheme = "https"
		return u.String()
	}
	return raw
}

// Fetch downloads the PDF at rawURL and returns its bytes. Non-2xx responses
// and responses that are neither served as application/pdf nor requested
// from a .pdf URL fail with *FetchError.
func (f *PDFFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	target := NormalizePDFURL(rawURL)

	var data []byte
	err := retry.Do(ctx, f.retry, func(ctx context.Context) error {
		if err := f.wait(ctx, target); err != nil {
			return err
		}
		var err error
		data, err = f.get(ctx, target)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (f *PDFFetcher) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{URL: target, Reason: "bad request", Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: target, StatusCode: resp.StatusCode}
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/pdf") && !strings.HasSuffix(strings.ToLower(target), ".pdf") {
		return nil, &FetchError{URL: target, Reason: fmt.Sprintf("unexpected content type %q", ct)}
	}

	body := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, &FetchError{URL: target, Reason: fmt.Sprintf("response exceeds %d bytes", f.maxBytes)}
	}
	return data, nil
}

func (f *PDFFetcher) wait(ctx context.Context, target string) error {
	if f.minInterval <= 0 {
		return nil
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil
	}
	host := strings.ToLower(u.Host)

	f.mu.Lock()
	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(f.minInterval), 1)
		f.limiters[host] = l
	}
	f.mu.Unlock()

	if err := l.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// the limiter refuses waits that cannot finish before the deadline
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return nil
}
