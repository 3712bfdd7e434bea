// Package network implements the retrying, proxy-aware, domain-rotating
// HTTP fetch fabric (spec §4.C).
//
// Grounded on the teacher's network package: the retry-budget bookkeeping
// follows network.RetryRequest's counter discipline (ctx "retryCnt" vs
// "maxRetryCnt", adapted from colly's per-request context to an explicit
// loop since this fabric is not colly-based), and body decompression is
// network/body_decompress.go's switch-on-content-encoding table ported from
// *colly.Response to *http.Response. The plain net/http.Client with a custom
// Transport.Proxy func mirrors cmd/nhentai/internal/nhenapi/api.go's
// NhenClient.SetProxy; this package generalizes that single static proxy
// into a rotating pool with domain-rotation fallback, which no teacher file
// implements (original logic, grounded on python_legacy/lib/network.py's
// NetworkManager for the retry/anti-ban state machine shape).
package network

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/cobaltgrove/hakodl/internal/ferr"
	"github.com/cobaltgrove/hakodl/internal/proxypool"
)

// Response is the fabric's decoded result: a 2xx HTTP response with its
// body already read and decompressed according to Content-Encoding.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Config holds the Network Fabric's tunables (spec §4.C).
type Config struct {
	PrimaryHosts    []string // P, preferred-first
	ImageHosts      []string // I
	Headers         map[string]string
	Timeout         time.Duration
	AntiBanInterval int64         // R
	AntiBanPause    time.Duration // A
	RetryBudget     int           // M
	RateLimitBudget int           // M429
	Pool            *proxypool.Pool
}

// DefaultConfig returns the spec's default tunables with no primary/image
// hosts or proxy pool configured; callers fill in Hosts and Pool.
func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		AntiBanInterval: 100,
		AntiBanPause:    30 * time.Second,
		RetryBudget:     3,
		RateLimitBudget: 5,
	}
}

// Fabric is the stateful fetcher described in spec §4.C: a bounded-retry,
// anti-ban-paced, proxy-failover-or-domain-rotation HTTP client.
type Fabric struct {
	cfg          Config
	client       *http.Client
	requestCount int64
}

// New builds a Fabric from cfg. The returned client never follows the
// environment's proxy variables: proxy selection is entirely governed by
// cfg.Pool.
func New(cfg Config) *Fabric {
	return &Fabric{
		cfg: cfg,
		client: &http.Client{
			Transport: &http.Transport{Proxy: nil},
		},
	}
}

// RequestCount returns the number of network calls issued so far.
func (f *Fabric) RequestCount() int64 { return atomic.LoadInt64(&f.requestCount) }

// ResetCount zeroes the request counter, for starting a fresh anti-ban
// window (e.g. between volumes).
func (f *Fabric) ResetCount() { atomic.StoreInt64(&f.requestCount, 0) }

// HasProxy reports whether a non-empty Proxy Pool is configured.
func (f *Fabric) HasProxy() bool { return f.cfg.Pool != nil && f.cfg.Pool.Size() > 0 }

// ProxyCount returns the size of the configured Proxy Pool, or 0.
func (f *Fabric) ProxyCount() int {
	if f.cfg.Pool == nil {
		return 0
	}
	return f.cfg.Pool.Size()
}

// IsInternal reports whether urlStr's host equals, or is a subdomain of,
// any hostname in P ∪ I.
func (f *Fabric) IsInternal(urlStr string) bool {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Hostname()
	for _, d := range f.allHosts() {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func (f *Fabric) allHosts() []string {
	out := make([]string, 0, len(f.cfg.PrimaryHosts)+len(f.cfg.ImageHosts))
	out = append(out, f.cfg.PrimaryHosts...)
	out = append(out, f.cfg.ImageHosts...)
	return out
}

func (f *Fabric) isImageHost(host string) bool {
	for _, d := range f.cfg.ImageHosts {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// mergedHeaders overlays extra on top of the fabric's static header set.
func (f *Fabric) mergedHeaders(extra map[string]string) http.Header {
	h := make(http.Header, len(f.cfg.Headers)+len(extra))
	for k, v := range f.cfg.Headers {
		h.Set(k, v)
	}
	for k, v := range extra {
		h.Set(k, v)
	}
	return h
}

// FetchWithRetry implements the retry/anti-ban/rate-limit/rotation state
// machine of spec §4.C. timeout, if zero, falls back to cfg.Timeout.
func (f *Fabric) FetchWithRetry(ctx context.Context, rawURL string, headers map[string]string, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = f.cfg.Timeout
	}
	h := f.mergedHeaders(headers)

	var lastErr error
	rateLimitHits := 0

	for a := 0; a < f.cfg.RetryBudget; a++ {
		f.antiBanGate()

		var resp *Response
		var err error
		if f.HasProxy() {
			resp, err = f.fetchWithFailover(ctx, rawURL, h, timeout)
		} else {
			resp, err = f.fetchDirect(ctx, rawURL, h, timeout)
		}

		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			atomic.AddInt64(&f.requestCount, 1)
			return resp, nil
		}

		if err == nil && resp.StatusCode == http.StatusTooManyRequests {
			if rateLimitHits < f.cfg.RateLimitBudget {
				rateLimitHits++
				wait := time.Duration(rateLimitHits) * 30 * time.Second
				if wait > 120*time.Second {
					wait = 120 * time.Second
				}
				log.Warnf("rate limited on %s, waiting %s (hit %d/%d)", rawURL, wait, rateLimitHits, f.cfg.RateLimitBudget)
				sleep(ctx, wait)
				a--
				continue
			}
			lastErr = ferr.New(ferr.KindRateLimited)
			break
		}

		if err == nil {
			rotated, rerr := f.tryRotate(ctx, rawURL, h, timeout)
			if rerr == nil {
				atomic.AddInt64(&f.requestCount, 1)
				return rotated, nil
			}
			lastErr = ferr.HTTPStatus(resp.StatusCode)
		} else {
			rotated, rerr := f.tryRotate(ctx, rawURL, h, timeout)
			if rerr == nil {
				atomic.AddInt64(&f.requestCount, 1)
				return rotated, nil
			}
			lastErr = err
		}

		if a < f.cfg.RetryBudget-1 {
			sleep(ctx, time.Duration(1<<uint(a))*time.Second)
		}
	}

	if lastErr == nil {
		lastErr = ferr.New(ferr.KindTransport)
	}
	return nil, lastErr
}

// tryRotate attempts domain rotation when eligible: the URL is internal and
// no proxy pool is configured. Every attempt, successful or not, counts
// toward RequestCount.
func (f *Fabric) tryRotate(ctx context.Context, rawURL string, h http.Header, timeout time.Duration) (*Response, error) {
	if f.HasProxy() || !f.IsInternal(rawURL) {
		return nil, ferr.New(ferr.KindTransport)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, ferr.Wrap(ferr.KindInvalidURL, rawURL, err)
	}
	d0 := u.Hostname()

	list := f.cfg.PrimaryHosts
	if f.isImageHost(d0) {
		list = f.cfg.ImageHosts
	}

	var lastErr error
	for _, d := range list {
		if d == d0 {
			continue
		}
		alt := *u
		alt.Host = swapHost(u.Host, d)
		resp, err := f.fetchDirect(ctx, alt.String(), h, timeout)
		atomic.AddInt64(&f.requestCount, 1)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}
		lastErr = ferr.HTTPStatus(resp.StatusCode)
	}
	if lastErr == nil {
		lastErr = ferr.New(ferr.KindTransport)
	}
	return nil, lastErr
}

func swapHost(hostport, newHost string) string {
	if idx := strings.LastIndex(hostport, ":"); idx != -1 {
		return newHost + hostport[idx:]
	}
	return newHost
}

func (f *Fabric) antiBanGate() {
	count := atomic.LoadInt64(&f.requestCount)
	if f.cfg.AntiBanInterval > 0 && count > 0 && count%f.cfg.AntiBanInterval == 0 {
		log.Infof("anti-ban pause after %d requests", count)
		time.Sleep(f.cfg.AntiBanPause)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// fetchDirect issues a single unproxied request bounded by timeout.
func (f *Fabric) fetchDirect(ctx context.Context, rawURL string, h http.Header, timeout time.Duration) (*Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, ferr.Wrap(ferr.KindInvalidURL, rawURL, err)
	}
	req.Header = h.Clone()

	httpResp, err := f.client.Do(req)
	if err != nil {
		return nil, categorizeNonProxyErr(err)
	}
	defer httpResp.Body.Close()

	body, err := decompressResponse(httpResp)
	if err != nil {
		return nil, ferr.Wrap(ferr.KindTransport, rawURL, err)
	}

	return &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: body}, nil
}

func categorizeNonProxyErr(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "Client.Timeout") {
		return ferr.Wrap(ferr.KindTimeout, msg, err)
	}
	return ferr.Wrap(ferr.KindTransport, msg, err)
}

// DownloadToFile fetches rawURL and writes it to path, creating parent
// directories and writing atomically via a temp file + rename. The body is
// not streamed: FetchWithRetry reads it whole into memory before it is
// written. Returns true without any network call if path already exists
// with non-zero size.
func (f *Fabric) DownloadToFile(ctx context.Context, rawURL, path string) bool {
	if st, err := os.Stat(path); err == nil && st.Size() > 0 {
		return true
	}

	resp, err := f.FetchWithRetry(ctx, rawURL, nil, 0)
	if err != nil {
		log.Warnf("download failed for %s: %s", rawURL, err)
		return false
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Warnf("failed to create directory for %s: %s", path, err)
		return false
	}

	tmp := path + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, resp.Body, 0o644); err != nil {
		log.Warnf("failed to write temp file for %s: %s", path, err)
		return false
	}
	if err := os.Rename(tmp, path); err != nil {
		log.Warnf("failed to finalize %s: %s", path, err)
		os.Remove(tmp)
		return false
	}
	log.Infof("saved %s (%s)", path, humanize.Bytes(uint64(len(resp.Body))))
	return true
}
