// Package proxy forwards gateway requests to the backing services. Each
// upstream gets its own circuit breaker, and the outbound hop is a client
// span so service spans hang under the gateway's server span.
package proxy

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/fjod/traced_shop/pkg/circuitbreaker"
	"github.com/fjod/traced_shop/pkg/httpx"
	"github.com/fjod/traced_shop/pkg/logger"
	"github.com/fjod/traced_shop/pkg/metrics"
	"github.com/fjod/traced_shop/pkg/telemetry"
)

// errServerError marks 5xx responses so the breaker counts them. The
// response itself is still returned to the client.
var errServerError = errors.New("upstream returned server error")

type Upstream struct {
	Name    string
	BaseURL string
}

type Config struct {
	Source   string
	Upstream Upstream
	// Transport defaults to http.DefaultTransport.
	Transport http.RoundTripper
	Breaker   *circuitbreaker.Config
	Logger    *zap.Logger
}

func New(cfg Config) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse %s url: %w", cfg.Upstream.Name, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("%s url %q must be absolute", cfg.Upstream.Name, cfg.Upstream.BaseURL)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	bcfg := circuitbreaker.DefaultConfig(cfg.Upstream.Name)
	if cfg.Breaker != nil {
		bcfg = *cfg.Breaker
	}

	name := cfg.Upstream.Name
	transport := telemetry.Transport(&breakerTransport{
		next: base,
		cb:   circuitbreaker.New[*http.Response](bcfg, cfg.Logger, nil),
	}, name)

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Host = target.Host
			pr.Out.Header.Set(metrics.SourceServiceHeader, cfg.Source)
			pr.Out.Header.Set(metrics.TargetServiceHeader, name)
		},
		Transport:      transport,
		ModifyResponse: stripEdgeHeaders,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log := logger.For(r.Context(), cfg.Logger).With(zap.String("upstream", name), zap.Error(err))
			if circuitbreaker.IsOpen(err) {
				log.Warn("upstream circuit open")
				httpx.RespondError(w, r, http.StatusServiceUnavailable, "upstream_unavailable", name+" is unavailable")
				return
			}
			log.Error("proxy request failed")
			httpx.RespondError(w, r, http.StatusBadGateway, "upstream_error", name+" did not respond")
		},
	}, nil
}

// stripEdgeHeaders drops headers the gateway's own middleware already set.
// ReverseProxy appends upstream headers, so leaving these in would send
// browsers two Access-Control-Allow-Origin values.
func stripEdgeHeaders(resp *http.Response) error {
	for key := range resp.Header {
		if strings.HasPrefix(key, "Access-Control-") {
			resp.Header.Del(key)
		}
	}
	resp.Header.Del("Vary")
	resp.Header.Del(telemetry.TraceIDHeader)
	return nil
}

type breakerTransport struct {
	next http.RoundTripper
	cb   *gobreaker.CircuitBreaker[*http.Response]
}

func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.cb.Execute(func() (*http.Response, error) {
		resp, err := t.next.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errServerError
		}
		return resp, nil
	})
	if errors.Is(err, errServerError) && resp != nil {
		return resp, nil
	}
	return resp, err
}
