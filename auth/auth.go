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

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Version is the auth/bootstrap variant a Connection was configured
// for. Detecting which of these applies drives the whole of the
// connection bootstrap (see the root package's connection.go).
type Version int

const (
	V2 Version = iota
	V1
	Core
)

func (v Version) String() string {
	switch v {
	case V2:
		return "v2"
	case V1:
		return "v1"
	case Core:
		return "core"
	default:
		return "unknown"
	}
}

const (
	pathTokenV2 = "/auth/v1/token"
	pathTokenV1 = "/auth/v1/login"
)

// Credential is a bearer token plus its expiry, as handed to the HTTP
// client for the Authorization header. It also carries the account and
// engine discovery state the root package's Connect resolves once per
// principal - AccountID, SystemEngineURL, DatabaseMap, and EngineMap -
// cached alongside the token so a warm Cache lets a later Connect skip
// those round trips entirely. Discovery state is read and refreshed
// independent of the token's own expiry: it does not go stale on the
// same clock a bearer token does.
type Credential struct {
	Token     string
	ExpiresAt time.Time

	AccountID       string
	SystemEngineURL string
	DatabaseMap     map[string]string
	EngineMap       map[string]string
}

func (c Credential) valid() bool {
	return c.Token != "" && time.Now().Before(c.ExpiresAt)
}

// hasDiscovery reports whether c carries a usable account/engine
// discovery result, regardless of whether its token is still fresh.
func (c Credential) hasDiscovery() bool {
	return c.AccountID != ""
}

// Config configures an Authenticator. Principal/Secret are the
// client_id/client_secret pair for V2's client-credentials grant, or the
// username/password pair for V1's legacy login endpoint.
type Config struct {
	Version    Version
	Principal  string
	Secret     string
	Token      string // static-token variant; set to bypass Principal/Secret entirely
	AuthServer string // host to authenticate against, e.g. https://id.app.firebolt.io
	HTTPClient *http.Client
	Cache      Cache
	Logger     zerolog.Logger
}

// Authenticator produces valid bearer credentials on demand and knows
// how to recover from a server-reported 401.
//
// Token returns a cached credential when one is still fresh, and only
// performs a network round trip on a cache miss or after Invalidate.
// This is the caching half of the design; the retry half lives in the
// root package's HTTP client, which calls Invalidate and retries the
// request exactly once when a response comes back 401.
type Authenticator interface {
	Version() Version
	Token(ctx context.Context) (Credential, error)
	Invalidate()

	// CachedDiscovery returns whatever account/engine discovery state is
	// cached for this principal. The bool is false when nothing usable
	// is cached yet (cache miss, or a variant - noAuth, staticTokenAuth -
	// with no principal to key a cache entry on).
	CachedDiscovery(ctx context.Context) (Credential, bool)

	// StoreDiscovery merges account/engine discovery results into the
	// cached entry for this principal, preserving whatever bearer token
	// is already cached there.
	StoreDiscovery(ctx context.Context, accountID, systemEngineURL string, engineMap map[string]string)
}

// New builds the Authenticator variant implied by cfg. A zero-value
// Principal/Secret with Version Core yields the no-op variant; a
// non-empty Token always yields the static-token variant regardless of
// Version.
func New(cfg Config) Authenticator {
	if cfg.Cache == nil {
		cfg.Cache = NewMemoryCache()
	}
	switch {
	case cfg.Token != "":
		return &staticTokenAuth{token: cfg.Token}
	case cfg.Version == Core && cfg.Principal == "":
		return &noAuth{}
	case cfg.Version == V1:
		return &usernamePasswordAuth{cfg: cfg, key: cacheKey(cfg)}
	default:
		return &clientCredentialsAuth{cfg: cfg, key: cacheKey(cfg)}
	}
}

// cacheKey folds the principal/secret/auth-server triple into a single
// fixed-size, non-reversible-looking map key, rather than using the
// secret itself as (part of) the Cache's map key.
func cacheKey(cfg Config) string {
	h := xxhash.New()
	h.WriteString(cfg.AuthServer)
	h.Write([]byte{0})
	h.WriteString(cfg.Principal)
	h.Write([]byte{0})
	h.WriteString(cfg.Secret)
	return strconv.FormatUint(h.Sum64(), 16)
}

// noAuth is used for a CORE deployment with no auth server configured:
// every request goes out unauthenticated.
type noAuth struct{}

func (noAuth) Version() Version { return Core }
func (noAuth) Token(context.Context) (Credential, error) { return Credential{}, nil }
func (noAuth) Invalidate() {}
func (noAuth) CachedDiscovery(context.Context) (Credential, bool) { return Credential{}, false }
func (noAuth) StoreDiscovery(context.Context, string, string, map[string]string) {}

// staticTokenAuth wraps a caller-supplied bearer token. There is
// nothing to refresh, so Invalidate is a no-op and a post-401 retry
// with the same token will simply fail again — by design, since the
// caller owns the token's lifecycle.
type staticTokenAuth struct{ token string }

func (staticTokenAuth) Version() Version { return Core }
func (s *staticTokenAuth) Token(context.Context) (Credential, error) {
	return Credential{Token: s.token, ExpiresAt: time.Now().Add(24 * time.Hour)}, nil
}
func (s *staticTokenAuth) Invalidate() {}

func (s *staticTokenAuth) CachedDiscovery(context.Context) (Credential, bool) {
	return Credential{}, false
}

func (s *staticTokenAuth) StoreDiscovery(context.Context, string, string, map[string]string) {}

// clientCredentialsAuth is the default V2 variant: an OAuth2
// client-credentials grant against AuthServer+pathTokenV2, with the token
// held in cfg.Cache. Connections share a token only when they are given
// the same Cache (ConnectionConfig.Cache); otherwise each Connect builds
// its own MemoryCache and authenticates separately.
type clientCredentialsAuth struct {
	cfg Config
	key string

	mu sync.Mutex
	tc *oauth2.Token
}

func (a *clientCredentialsAuth) Version() Version { return V2 }

func (a *clientCredentialsAuth) Token(ctx context.Context) (Credential, error) {
	if cred, ok := a.cfg.Cache.Get(ctx, a.key); ok && cred.valid() {
		return cred, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	// Re-check: another goroutine may have refreshed while we waited.
	if cred, ok := a.cfg.Cache.Get(ctx, a.key); ok && cred.valid() {
		return cred, nil
	}

	ccCfg := clientcredentials.Config{
		ClientID:     a.cfg.Principal,
		ClientSecret: a.cfg.Secret,
		TokenURL:     strings.TrimRight(a.cfg.AuthServer, "/") + pathTokenV2,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	httpCtx := ctx
	if a.cfg.HTTPClient != nil {
		httpCtx = context.WithValue(ctx, oauth2.HTTPClient, a.cfg.HTTPClient)
	}
	tok, err := ccCfg.Token(httpCtx)
	if err != nil {
		return Credential{}, fmt.Errorf("auth: client-credentials grant failed: %w", err)
	}
	cred := Credential{Token: tok.AccessToken, ExpiresAt: tok.Expiry}
	if cred.ExpiresAt.IsZero() {
		cred.ExpiresAt = time.Now().Add(time.Hour)
	}
	a.cfg.Cache.Set(ctx, a.key, cred)
	a.cfg.Logger.Debug().Str("principal", a.cfg.Principal).Msg("auth: fetched new access token")
	return cred, nil
}

func (a *clientCredentialsAuth) Invalidate() {
	a.cfg.Cache.Delete(context.Background(), a.key)
}

func (a *clientCredentialsAuth) CachedDiscovery(ctx context.Context) (Credential, bool) {
	return cachedDiscovery(ctx, a.cfg.Cache, a.key)
}

func (a *clientCredentialsAuth) StoreDiscovery(ctx context.Context, accountID, systemEngineURL string, engineMap map[string]string) {
	storeDiscovery(ctx, a.cfg.Cache, a.key, accountID, systemEngineURL, engineMap)
}

// usernamePasswordAuth is the legacy V1 login flow: POST {username,
// password} as JSON to AuthServer+pathTokenV1 and read back
// {access_token, expires_in}.
type usernamePasswordAuth struct {
	cfg Config
	key string
	mu  sync.Mutex
}

func (a *usernamePasswordAuth) Version() Version { return V1 }

type v1LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type v1LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (a *usernamePasswordAuth) Token(ctx context.Context) (Credential, error) {
	if cred, ok := a.cfg.Cache.Get(ctx, a.key); ok && cred.valid() {
		return cred, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if cred, ok := a.cfg.Cache.Get(ctx, a.key); ok && cred.valid() {
		return cred, nil
	}

	body, err := json.Marshal(v1LoginRequest{Username: a.cfg.Principal, Password: a.cfg.Secret})
	if err != nil {
		return Credential{}, err
	}
	endpoint := strings.TrimRight(a.cfg.AuthServer, "/") + pathTokenV1
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return Credential{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := a.cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("auth: v1 login request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Credential{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Credential{}, fmt.Errorf("auth: v1 login failed with status %d: %s", resp.StatusCode, string(raw))
	}
	var lr v1LoginResponse
	if err := json.Unmarshal(raw, &lr); err != nil {
		return Credential{}, fmt.Errorf("auth: malformed v1 login response: %w", err)
	}
	cred := Credential{Token: lr.AccessToken, ExpiresAt: time.Now().Add(time.Duration(lr.ExpiresIn) * time.Second)}
	a.cfg.Cache.Set(ctx, a.key, cred)
	return cred, nil
}

func (a *usernamePasswordAuth) Invalidate() {
	a.cfg.Cache.Delete(context.Background(), a.key)
}

func (a *usernamePasswordAuth) CachedDiscovery(ctx context.Context) (Credential, bool) {
	return cachedDiscovery(ctx, a.cfg.Cache, a.key)
}

func (a *usernamePasswordAuth) StoreDiscovery(ctx context.Context, accountID, systemEngineURL string, engineMap map[string]string) {
	storeDiscovery(ctx, a.cfg.Cache, a.key, accountID, systemEngineURL, engineMap)
}

// cachedDiscovery and storeDiscovery are shared by the two cache-backed
// Authenticator variants (clientCredentialsAuth, usernamePasswordAuth):
// both key their Cache entry the same way, so there's nothing
// grant-flow-specific left once Token has already resolved the key.
func cachedDiscovery(ctx context.Context, cache Cache, key string) (Credential, bool) {
	cred, ok := cache.Get(ctx, key)
	return cred, ok && cred.hasDiscovery()
}

func storeDiscovery(ctx context.Context, cache Cache, key, accountID, systemEngineURL string, engineMap map[string]string) {
	cred, _ := cache.Get(ctx, key)
	cred.AccountID = accountID
	cred.SystemEngineURL = systemEngineURL
	if len(engineMap) > 0 {
		if cred.EngineMap == nil {
			cred.EngineMap = make(map[string]string, len(engineMap))
		}
		for name, url := range engineMap {
			cred.EngineMap[name] = url
		}
	}
	cache.Set(ctx, key, cred)
}

// AuthServerURL resolves the auth host for a given account when the
// caller did not supply one explicitly, mirroring the default used by
// the reference client. Kept independent of the root package's url
// helpers to avoid an import cycle (connection.go imports this package).
func AuthServerURL(raw string) string {
	if raw == "" {
		return "https://id.app.firebolt.io"
	}
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" {
		return raw
	}
	return "https://" + raw
}
