package transport

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// BrowserUserAgent is sent to upstreams that reject non-browser clients.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// ModifyHeadersOption is a function type used to modify HTTP headers in a request.
// It takes a function that sets a header key and value, allowing for flexible header modification.
type ModifyHeadersOption func(func(key string, value string))

type modifyHeadersRoundTripper struct {
	roundTripper http.RoundTripper
	options      []ModifyHeadersOption
}

// NewModifyHeadersRoundTripper will add headers to a request.
func NewModifyHeadersRoundTripper(rt http.RoundTripper, opts ...ModifyHeadersOption) http.RoundTripper {
	return &modifyHeadersRoundTripper{roundTripper: rt, options: opts}
}

func (rt *modifyHeadersRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for _, opt := range rt.options {
		opt(req.Header.Set)
	}
	return rt.roundTripper.RoundTrip(req)
}

// WithUserAgent is a functional option to set the HTTP client user agent.
func WithUserAgent(userAgent string) ModifyHeadersOption {
	return WithHeader("User-Agent", userAgent)
}

// WithAcceptLanguage is a functional option to set the HTTP client accept language.
func WithAcceptLanguage(acceptLanguage string) ModifyHeadersOption {
	return WithHeader("Accept-Language", acceptLanguage)
}

// WithHeader sets an arbitrary header on every request. Empty values are skipped.
func WithHeader(key, value string) ModifyHeadersOption {
	return func(f func(key string, value string)) {
		if value == "" {
			return
		}
		f(key, value)
	}
}

// NewHTTPClient builds the pooled, instrumented client shared by all upstream integrations.
func NewHTTPClient(timeout time.Duration, opts ...ModifyHeadersOption) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 100
	t.MaxConnsPerHost = 100
	t.MaxIdleConnsPerHost = 100

	var rt http.RoundTripper = otelhttp.NewTransport(t)
	if len(opts) > 0 {
		rt = NewModifyHeadersRoundTripper(rt, opts...)
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: rt,
	}
}
