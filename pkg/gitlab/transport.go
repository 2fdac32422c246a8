package gitlab

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"gitaiops/internal"
)

// guard is the single gate every remote call passes through: response
// cache, then circuit breaker, then rate limiter, then the real
// transport. It owns all three; nothing outside this package touches
// their state.
type guard struct {
	base      http.RoundTripper
	bucket    *tokenBucket
	breaker   *circuitBreaker
	cache     *responseCache
	ttl       time.Duration
	staticTTL time.Duration
}

func (g *guard) RoundTrip(req *http.Request) (*http.Response, error) {
	cacheable := req.Method == http.MethodGet
	key := cacheKey(req)

	if cacheable {
		if value, ok := g.cache.Get(key); ok {
			internal.IncCacheHit()
			return value.response(req), nil
		}
		internal.IncCacheMiss()
	}

	if err := g.breaker.Allow(); err != nil {
		internal.IncCircuitOpen()
		return nil, err
	}
	if err := g.bucket.Wait(req.Context()); err != nil {
		if err == ErrRateLimitTimeout {
			internal.IncRateLimitTimeout()
		}
		// A local wait timeout says nothing about remote health, but
		// the admitted probe slot has to go back.
		g.breaker.Release()
		return nil, err
	}

	resp, err := g.base.RoundTrip(req)
	if err != nil {
		g.breaker.OnFailure()
		return nil, err
	}
	if resp.StatusCode >= 500 {
		g.breaker.OnFailure()
	} else {
		g.breaker.OnSuccess()
	}

	if cacheable && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, readErr
		}
		g.cache.Set(key, cachedResponse{
			status: resp.StatusCode,
			header: resp.Header.Clone(),
			body:   body,
		}, g.ttlFor(req.URL.Path))
		resp.Body = io.NopCloser(bytes.NewReader(body))
	}
	return resp, nil
}

// ttlFor picks the TTL class for a path: bare project metadata is near
// static, everything under a project (MRs, pipelines, jobs) changes fast.
func (g *guard) ttlFor(path string) time.Duration {
	trimmed := strings.Trim(strings.TrimPrefix(path, "/api/v4"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 2 && parts[0] == "projects" {
		return g.staticTTL
	}
	return g.ttl
}

// cacheKey derives the cache key from method, path and sorted query
// parameters.
func cacheKey(req *http.Request) string {
	return req.Method + " " + req.URL.Path + "?" + req.URL.Query().Encode()
}

func (v cachedResponse) response(req *http.Request) *http.Response {
	return &http.Response{
		Status:        http.StatusText(v.status),
		StatusCode:    v.status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        v.header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(v.body)),
		ContentLength: int64(len(v.body)),
		Request:       req,
	}
}
