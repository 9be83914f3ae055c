// Package httpclient provides an HTTP client instrumented with OTel tracing
// and a request counter, for JSON APIs.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/otoken-adapter/internal/ratelimit"
)

const (
	defaultDialKeepAlive   = 10 * time.Second
	defaultRequestTimeout  = 10 * time.Second
	defaultMaxConnsPerHost = 5
	defaultIdleConnTimeout = 2 * time.Minute

	metricRequestCounter = "http_client_requests_total"
)

// Client builds instrumented requests against one API.
type Client struct {
	client         *http.Client
	requestCounter metric.Int64Counter
	providerName   string
	tracer         trace.Tracer
	baseURL        string
	headers        map[string]string
	limiter        *ratelimit.Limiter
}

type options struct {
	roundTripper   http.RoundTripper
	requestTimeout time.Duration
	providerName   string
	baseURL        string
	headers        map[string]string
	meterProvider  metric.MeterProvider
	perMinute      int
}

// Option configures a Client.
type Option func(*options)

// WithRoundTripper replaces the pooled transport, mostly for tests.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(o *options) { o.roundTripper = rt }
}

// WithRequestTimeout bounds each request.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(o *options) { o.requestTimeout = timeout }
}

// WithProviderName labels metrics and spans.
func WithProviderName(name string) Option {
	return func(o *options) { o.providerName = name }
}

// WithBaseURL resolves relative request paths.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithHeaders sets headers sent with every request.
func WithHeaders(headers map[string]string) Option {
	return func(o *options) { o.headers = headers }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithRateLimit paces requests to the API's quota. Zero disables pacing.
func WithRateLimit(requestsPerMinute int) Option {
	return func(o *options) { o.perMinute = requestsPerMinute }
}

// New creates a client.
func New(opts ...Option) (*Client, error) {
	o := options{
		requestTimeout: defaultRequestTimeout,
		providerName:   "default",
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, fn := range opts {
		fn(&o)
	}

	transport := o.roundTripper
	if transport == nil {
		transport = &http.Transport{
			DialContext:     (&net.Dialer{KeepAlive: defaultDialKeepAlive}).DialContext,
			MaxConnsPerHost: defaultMaxConnsPerHost,
			IdleConnTimeout: defaultIdleConnTimeout,
		}
	}

	meter := o.meterProvider.Meter("httpclient",
		metric.WithInstrumentationAttributes(attribute.String("provider", o.providerName)))
	counter, err := meter.Int64Counter(metricRequestCounter,
		metric.WithDescription("Total number of HTTP requests"))
	if err != nil {
		return nil, err
	}

	return &Client{
		client: &http.Client{
			Timeout: o.requestTimeout,
			Transport: otelhttp.NewTransport(transport,
				otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
					return otelhttptrace.NewClientTrace(ctx)
				})),
		},
		requestCounter: counter,
		providerName:   o.providerName,
		tracer:         otel.Tracer("httpclient"),
		baseURL:        o.baseURL,
		headers:        o.headers,
		limiter:        ratelimit.New(o.perMinute),
	}, nil
}

// NewRequest starts a request carrying the client's default headers.
func (c *Client) NewRequest() *Request {
	headers := make(map[string]string, len(c.headers))
	for k, v := range c.headers {
		headers[k] = v
	}
	return &Request{client: c, headers: headers}
}
