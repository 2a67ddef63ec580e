// Package remote talks to upstream module APIs: authenticated JSON requests with retries,
// tracing and metrics, plus raw binary downloads for image slices.
package remote

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/clovid/prisma-sub000/internal/app/appconfig"
	"github.com/clovid/prisma-sub000/internal/pkg/bininfo"
	"github.com/clovid/prisma-sub000/internal/pkg/cache"
	"github.com/clovid/prisma-sub000/internal/pkg/observability"
)

var tracer = otel.Tracer("remote")

type Options struct {
	ConnectTimeout time.Duration
	Timeout        time.Duration
	// Attempts is the number of tries for idempotent requests.
	Attempts uint
	// RetryDelay is the base delay between attempts.
	RetryDelay time.Duration
}

type Client struct {
	Module string

	conf  *appconfig.ModuleConfig
	store cache.Store
	http  *http.Client
	opts  Options
}

func NewClient(conf *appconfig.ModuleConfig, store cache.Store, opts Options) *Client {
	if opts.Attempts == 0 {
		opts.Attempts = 1
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = 200 * time.Millisecond
	}
	dialer := &net.Dialer{Timeout: opts.ConnectTimeout}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext

	return &Client{
		Module: conf.Name,
		conf:   conf,
		store:  store,
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts: opts,
	}
}

// Config returns the module configuration the client was created for.
func (c *Client) Config() *appconfig.ModuleConfig {
	return c.conf
}

// URL resolves path against the module base URL. Absolute URLs are returned unchanged.
func (c *Client) URL(path string, query url.Values) string {
	u := c.resolve(path)
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + query.Encode()
	}
	return u
}

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.conf.BaseURL + "/" + strings.TrimLeft(path, "/")
}

// GetBody fetches path and returns the body after checking it is valid JSON.
func (c *Client) GetBody(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.URL(path, query)
	var body []byte
	err := c.retry(ctx, func() error {
		var err error
		body, err = c.send(ctx, http.MethodGet, u, nil, "", true)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, &FetchError{Module: c.Module, URL: u, Status: http.StatusOK, Err: ErrMalformedResponse}
	}
	return body, nil
}

// GetJSON fetches path and decodes the JSON body into dest.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, dest any) error {
	body, err := c.GetBody(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return &FetchError{Module: c.Module, URL: c.URL(path, query), Status: http.StatusOK,
			Err: errors.Wrap(ErrMalformedResponse, err.Error())}
	}
	return nil
}

// PostJSON sends payload as JSON body and returns the response body. It is tried once.
func (c *Client) PostJSON(ctx context.Context, path string, payload []byte) ([]byte, error) {
	u := c.URL(path, nil)
	body, err := c.send(ctx, http.MethodPost, u, strings.NewReader(string(payload)), "application/json", true)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, &FetchError{Module: c.Module, URL: u, Status: http.StatusOK, Err: ErrMalformedResponse}
	}
	return body, nil
}

type RawResponse struct {
	ContentType string
	Body        []byte
}

// GetRaw downloads a binary resource such as an image slice.
func (c *Client) GetRaw(ctx context.Context, path string, query url.Values) (*RawResponse, error) {
	u := c.URL(path, query)
	var res *RawResponse
	err := c.retry(ctx, func() error {
		resp, err := c.do(ctx, http.MethodGet, u, nil, "", true)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return &FetchError{Module: c.Module, URL: u, Status: resp.StatusCode, Err: err}
		}
		res = &RawResponse{ContentType: resp.Header.Get("Content-Type"), Body: body}
		return nil
	})
	return res, err
}

func (c *Client) retry(ctx context.Context, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(c.opts.Attempts),
		retry.Delay(c.opts.RetryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var fe *FetchError
			return errors.As(err, &fe) && fe.retryable()
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Debug().Err(err).Str("module", c.Module).Uint("attempt", n+1).Msg("retrying upstream request")
		}),
	)
}

func (c *Client) send(ctx context.Context, method, u string, body io.Reader, contentType string, authorize bool) ([]byte, error) {
	resp, err := c.do(ctx, method, u, body, contentType, authorize)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Module: c.Module, URL: u, Status: resp.StatusCode, Err: err}
	}
	return b, nil
}

// do issues a single request. Responses other than 200 are turned into a FetchError and
// their body is closed.
func (c *Client) do(ctx context.Context, method, u string, body io.Reader, contentType string, authorize bool) (*http.Response, error) {
	route := routeOf(c.conf.BaseURL, u)
	ctx, span := tracer.Start(ctx, "remote."+c.Module+"."+route, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("prisma.module", c.Module),
			attribute.String("http.method", method),
			attribute.String("http.url", u),
		))
	defer span.End()

	start := time.Now()
	outcome := "error"
	defer func() {
		observability.UpstreamRequestDuration.WithLabelValues(c.Module, route, outcome).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, &FetchError{Module: c.Module, URL: u, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "prisma/"+bininfo.Version)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if authorize {
		if err := c.authorize(ctx, req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "authorization failed")
			return nil, err
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &FetchError{Module: c.Module, URL: u, Err: err}
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		if resp.StatusCode == http.StatusUnauthorized && authorize {
			c.forgetCredentials(ctx)
		}
		span.SetStatus(codes.Error, resp.Status)
		return nil, &FetchError{Module: c.Module, URL: u, Status: resp.StatusCode, Err: errors.New("unexpected status " + strconv.Itoa(resp.StatusCode))}
	}

	outcome = "ok"
	return resp, nil
}

// routeOf keeps the first path segment below the base URL as a low cardinality route label.
func routeOf(base, u string) string {
	rest := strings.TrimPrefix(u, base)
	rest = strings.TrimLeft(rest, "/")
	if i := strings.IndexAny(rest, "/?"); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" || strings.Contains(rest, ":") {
		return "external"
	}
	return rest
}
