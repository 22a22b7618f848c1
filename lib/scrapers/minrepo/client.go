package minrepo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pachidata-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	browser "github.com/EDDYCJY/fake-useragent"
	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/minrepo")

type ClientOptions struct {
	// BaseUrl defaults to the public site when empty.
	BaseUrl string
	Timeout time.Duration
	// CourtesyDelayMin/Max bound the randomized sleep applied before
	// every fetch. Zero values disable the delay (tests).
	CourtesyDelayMin time.Duration
	CourtesyDelayMax time.Duration
	// Proxies is the egress pool rotated through on block detection.
	// Empty means direct egress only.
	Proxies []string
}

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	opts    ClientOptions
	proxies []*url.URL
	// proxy is read by the transport's Proxy func on every request
	proxy atomic.Pointer[url.URL]

	mu       sync.Mutex
	proxyIdx int
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = "https://min-repo.com"
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 30
	}
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	c := &Client{
		BaseUrl: baseUrl,
		opts:    opts,
	}
	for _, p := range opts.Proxies {
		u, err := url.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", p, err)
		}
		c.proxies = append(c.proxies, u)
	}
	if len(c.proxies) > 0 {
		c.proxy.Store(c.proxies[0])
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)

	// the bypass wrapper hides the *http.Transport from resty's own
	// SetProxy, so the proxy selector goes on the inner transport first.
	// A nil pointer means direct egress.
	if transport, ok := client.GetClient().Transport.(*http.Transport); ok {
		transport.Proxy = func(*http.Request) (*url.URL, error) {
			return c.proxy.Load(), nil
		}
	}
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", browser.Random())
	client.SetHeader("accept-language", "ja,en-US;q=0.7,en;q=0.3")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(opts.Timeout)

	telemetry.InstrumentResty(client, "scrapers/minrepo/http")

	c.Http = client
	return c, nil
}

// PageUrl is the canonical per-store per-day page address.
func (c *Client) PageUrl(storeID int64, date string) string {
	return fmt.Sprintf("%s/%d/?date=%s", strings.TrimRight(c.BaseUrl.String(), "/"), storeID, date)
}

// Fetch retrieves one store/date page and returns its HTML. All
// failures come back as *FetchError with a classified kind; callers
// branch on the kind, never on the raw transport error.
func (c *Client) Fetch(ctx context.Context, storeID int64, date string) (string, error) {
	ctx, span := tracer.Start(ctx, "client:Fetch")
	defer span.End()

	c.courtesyDelay()

	pageUrl := c.PageUrl(storeID, date)
	res, err := c.Http.R().
		SetContext(ctx).
		Get(pageUrl)
	if err != nil {
		ferr := classifyTransportError(pageUrl, err)
		span.RecordError(ferr)
		span.SetStatus(codes.Error, ferr.Kind.String())
		return "", ferr
	}

	body := res.String()
	if ferr := classifyResponse(pageUrl, res.StatusCode(), body); ferr != nil {
		span.RecordError(ferr)
		span.SetStatus(codes.Error, ferr.Kind.String())
		return "", ferr
	}

	return body, nil
}

// RotateEgress advances to the next proxy in the pool. Called by the
// orchestrator when a fetch comes back blocked; a no-op without a pool.
func (c *Client) RotateEgress() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.proxies) == 0 {
		return
	}
	c.proxyIdx = (c.proxyIdx + 1) % len(c.proxies)
	c.proxy.Store(c.proxies[c.proxyIdx])
	// a fresh user-agent goes with the fresh egress
	c.Http.SetHeader("user-agent", browser.Random())
}

func (c *Client) courtesyDelay() {
	min := c.opts.CourtesyDelayMin
	max := c.opts.CourtesyDelayMax
	if max <= min {
		if min > 0 {
			time.Sleep(min)
		}
		return
	}
	jitter, err := random.IntRange(int(min.Milliseconds()), int(max.Milliseconds()))
	if err != nil {
		jitter = int(min.Milliseconds())
	}
	time.Sleep(time.Duration(jitter) * time.Millisecond)
}

// body signatures of the site's rate-limit / challenge interstitials
var blockedSignatures = []string{
	"captcha",
	"cf-challenge",
	"challenge-platform",
	"access denied",
	"アクセスが制限",
}

func classifyResponse(pageUrl string, status int, body string) *FetchError {
	if status == 403 || status == 429 || looksBlocked(body) {
		return &FetchError{Kind: FetchBlocked, StatusCode: status, Url: pageUrl}
	}
	switch {
	case status >= 200 && status < 300:
		return nil
	case status >= 400 && status < 500:
		return &FetchError{Kind: FetchHTTPClientError, StatusCode: status, Url: pageUrl}
	default:
		return &FetchError{Kind: FetchHTTPServerError, StatusCode: status, Url: pageUrl}
	}
}

func looksBlocked(body string) bool {
	if len(body) > 4096 {
		// interstitials are small, only sniff the head of the page
		body = body[:4096]
	}
	lower := strings.ToLower(body)
	for _, sig := range blockedSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

func classifyTransportError(pageUrl string, err error) *FetchError {
	kind := FetchConnectionRefused

	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout(),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, os.ErrDeadlineExceeded):
		kind = FetchTimeout
	}

	return &FetchError{Kind: kind, Url: pageUrl, Err: err}
}
