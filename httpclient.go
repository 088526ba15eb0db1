/*
 * Copyright 2022 RapidLoop, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package firebolt

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/firebolt-db/firebolt-go-sdk/auth"
	"github.com/rs/zerolog"
)

const (
	dialTimeout           = 10 * time.Second
	keepAlive             = 30 * time.Second
	idleConnTimeout       = 90 * time.Second
	tlsHandshakeTimeout   = 10 * time.Second
	expectContinueTimeout = 1 * time.Second
	maxIdleConns          = 100
	maxIdleConnsPerHost   = 10

	maxRetries = 3
)

// newTransport builds the *http.Transport this driver uses for every
// outbound request: a tuned dialer (connect timeout + TCP keepalive)
// plus the idle-connection-pool limits a long-lived Connection needs
// since it issues many sequential requests to the same engine host. If
// SSL_CERT_FILE names a cafile (the usual CORE-deployment self-signed-CA
// case), it's loaded as the transport's trust root instead of the
// system pool.
func newTransport() *http.Transport {
	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}
	t := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   maxIdleConnsPerHost,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ExpectContinueTimeout: expectContinueTimeout,
	}
	if tlsCfg, err := caCertTLSConfig(sslCertFile()); err == nil && tlsCfg != nil {
		t.TLSClientConfig = tlsCfg
	}
	return t
}

// caCertTLSConfig loads path as a PEM cafile and returns a *tls.Config
// trusting only that pool. Returns (nil, nil) when path is empty.
func caCertTLSConfig(path string) (*tls.Config, error) {
	if path == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading SSL_CERT_FILE %q: %w", path, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in SSL_CERT_FILE %q", path)
	}
	return &tls.Config{RootCAs: pool}, nil
}

// httpClient wraps an *http.Client with this driver's request shape:
// auth attachment, retry-with-backoff on transient failures, a single
// retry-with-refreshed-token on 401, and structured-error decoding for
// non-2xx responses.
type httpClient struct {
	hc        *http.Client
	authn     auth.Authenticator
	logger    zerolog.Logger
	userAgent func() string
}

func newHTTPClient(authn auth.Authenticator, logger zerolog.Logger, ua func() string) *httpClient {
	if ua == nil {
		ua = DefaultUserAgent
	}
	return &httpClient{
		hc:        &http.Client{Transport: newTransport()},
		authn:     authn,
		logger:    logger,
		userAgent: ua,
	}
}

// response is the outcome of a request: the raw body (already read and
// the http.Response's body closed) plus the status code and headers,
// so callers can inspect Firebolt-Update-* headers without keeping the
// http.Response alive.
type response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// do issues method/url with body, retrying transient failures (network
// errors, 5xx) with exponential backoff, and retrying exactly once,
// outside the backoff loop, if the engine reports 401 — after calling
// authn.Invalidate() so the retry carries a freshly fetched token.
func (c *httpClient) do(ctx context.Context, method, rawURL string, body []byte, extraHeaders http.Header) (*response, error) {
	if performanceDebugEnabled() {
		t0 := time.Now()
		defer func() {
			c.logger.Debug().Str("method", method).Str("url", rawURL).
				Dur("elapsed", time.Since(t0)).Msg("http: request complete")
		}()
	}

	roundTrip := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		for k, vs := range extraHeaders {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("User-Agent", c.userAgent())
		if c.authn != nil {
			cred, err := c.authn.Token(ctx)
			if err != nil {
				return nil, backoff.Permanent(wrapCause(ErrAuthenticationError, err, "fetching access token"))
			}
			if cred.Token != "" {
				req.Header.Set("Authorization", "Bearer "+cred.Token)
			}
		}
		return c.hc.Do(req)
	}

	var resp *http.Response
	operation := func() error {
		r, err := roundTrip()
		if err != nil {
			return err
		}
		if r.StatusCode >= 500 {
			raw, _ := io.ReadAll(r.Body)
			r.Body.Close()
			// Some deployments wrap an expired-token rejection in a 500
			// rather than a genuine 401; treat the embedded marker the
			// same as a real 401 so the caller still gets exactly one
			// refresh-and-retry instead of exhausting the 5xx backoff.
			if bytes.Contains(raw, []byte("HTTP status code: 401")) {
				r.StatusCode = http.StatusUnauthorized
				r.Body = io.NopCloser(bytes.NewReader(raw))
				resp = r
				return nil
			}
			return fmt.Errorf("server returned %d: %s", r.StatusCode, string(raw))
		}
		resp = r
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, wrapCause(ErrOperationalError, err, "request to %s failed", rawURL)
	}

	retriedAfter401 := false
	if resp.StatusCode == http.StatusUnauthorized && c.authn != nil {
		resp.Body.Close()
		c.logger.Debug().Str("url", rawURL).Msg("http: 401 received, invalidating cached token and retrying once")
		c.authn.Invalidate()
		r2, err := roundTrip()
		if err != nil {
			return nil, wrapCause(ErrAuthenticationError, err, "retry after 401 failed")
		}
		resp = r2
		retriedAfter401 = true
	}

	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, wrapCause(ErrOperationalError, err, "reading response body")
	}

	out := &response{StatusCode: resp.StatusCode, Header: resp.Header, Body: raw}
	if resp.StatusCode < 400 {
		return out, nil
	}
	// A 401 surviving the one-shot refresh-and-retry has no further
	// recovery path - the token was refreshed and still rejected, so
	// this is an authorization failure, not a credentials problem.
	if retriedAfter401 && resp.StatusCode == http.StatusUnauthorized {
		return out, wrapCause(ErrAuthorizationError, &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(raw)}, "authorization failed after token refresh")
	}
	return out, statusError(resp.StatusCode, raw)
}

// statusError classifies a non-2xx response into the error taxonomy.
// Falls back to a bare HTTPStatusError when the
// body doesn't parse as the expected shape.
func statusError(status int, body []byte) error {
	switch status {
	case http.StatusUnauthorized:
		return wrapCause(ErrAuthenticationError, &HTTPStatusError{StatusCode: status, Body: string(body)}, "authentication failed")
	case http.StatusForbidden:
		return wrapCause(ErrAuthorizationError, &HTTPStatusError{StatusCode: status, Body: string(body)}, "authorization failed")
	case http.StatusNotFound:
		return wrapCause(ErrAccountNotFound, &HTTPStatusError{StatusCode: status, Body: string(body)}, "resource not found")
	case http.StatusBadRequest:
		var payload struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
			return &BadRequestError{Message: payload.Message}
		}
		return &HTTPStatusError{StatusCode: status, Body: string(body)}
	default:
		return &HTTPStatusError{StatusCode: status, Body: string(body)}
	}
}
