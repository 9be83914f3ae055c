package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/otoken-adapter/internal/apperror"
)

// ErrorHandler turns an unsuccessful response into an error. Returning nil
// accepts the response.
type ErrorHandler func(statusCode int, body []byte) error

// Request is a single GET against the client's API.
type Request struct {
	client       *Client
	headers      map[string]string
	query        url.Values
	result       any
	errorHandler ErrorHandler
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Body       []byte
}

// SetHeader sets a header.
func (r *Request) SetHeader(key, value string) *Request {
	r.headers[key] = value
	return r
}

// SetQueryParam sets a query parameter.
func (r *Request) SetQueryParam(key, value string) *Request {
	if r.query == nil {
		r.query = url.Values{}
	}
	r.query.Set(key, value)
	return r
}

// SetResult decodes a successful JSON body into result.
func (r *Request) SetResult(result any) *Request {
	r.result = result
	return r
}

// SetErrorHandler replaces the default status check.
func (r *Request) SetErrorHandler(h ErrorHandler) *Request {
	r.errorHandler = h
	return r
}

// Get executes the request against path.
func (r *Request) Get(ctx context.Context, path string) (*Response, error) {
	target := r.resolve(path)

	ctx, span := r.client.tracer.Start(ctx, "http.get",
		trace.WithAttributes(
			attribute.String("http.url", target),
			attribute.String("provider", r.client.providerName),
		),
	)
	defer span.End()

	if err := r.client.limiter.Wait(ctx); err != nil {
		return nil, r.fail(ctx, span, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, r.fail(ctx, span, apperror.Wrap(err, apperror.CodeInvalidInput, "build request"))
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := r.client.client.Do(req)
	if err != nil {
		r.annotate(span, err)
		return nil, r.fail(ctx, span, apperror.New(apperror.CodeExternalServiceError,
			apperror.WithCause(err), apperror.WithContext(r.client.providerName)))
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, r.fail(ctx, span, apperror.Wrap(err, apperror.CodeExternalServiceError, "read body"))
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	out := &Response{StatusCode: resp.StatusCode, Body: body}

	handler := r.errorHandler
	if handler == nil {
		handler = defaultErrorHandler
	}
	if err := handler(resp.StatusCode, body); err != nil {
		return out, r.fail(ctx, span, err)
	}

	if r.result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, r.result); err != nil {
			return out, r.fail(ctx, span, apperror.Wrap(err, apperror.CodeExternalServiceError, "decode response"))
		}
	}

	r.record(ctx, true)
	span.SetStatus(codes.Ok, "")
	return out, nil
}

func (r *Request) resolve(path string) string {
	target := path
	if r.client.baseURL != "" && !strings.HasPrefix(path, "http") {
		target = strings.TrimSuffix(r.client.baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	}
	if len(r.query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + r.query.Encode()
	}
	return target
}

func (r *Request) fail(ctx context.Context, span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	r.record(ctx, false)
	return err
}

func (r *Request) annotate(span trace.Span, err error) {
	var netErr net.Error
	if errors.Is(err, context.Canceled) {
		span.SetAttributes(attribute.Bool("context.cancelled", true))
	}
	if errors.As(err, &netErr) && netErr.Timeout() {
		span.SetAttributes(attribute.Bool("request.timeout", true))
	}
}

func (r *Request) record(ctx context.Context, success bool) {
	r.client.requestCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", r.client.providerName),
		attribute.Bool("success", success),
	))
}

func defaultErrorHandler(status int, body []byte) error {
	if status < http.StatusBadRequest {
		return nil
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 256 {
		msg = msg[:256]
	}
	code := apperror.CodeExternalServiceError
	if status == http.StatusTooManyRequests {
		code = apperror.CodeRateLimitExceeded
	}
	return apperror.New(code, apperror.WithContext(http.StatusText(status)+": "+msg))
}
