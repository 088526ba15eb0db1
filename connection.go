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
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/firebolt-db/firebolt-go-sdk/auth"
	"github.com/firebolt-db/firebolt-go-sdk/rowset"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ConnectionConfig configures a Connect call: a plain struct the caller
// builds in Go, not a YAML/JSON-loaded document — a config-file format
// is out of scope for this driver.
type ConnectionConfig struct {
	// Version selects the bootstrap variant. Zero value is auth.V2
	// (the default), per the Open Question decision recorded in
	// DESIGN.md: V1/Core require an explicit opt-in, never inferred.
	Version auth.Version

	Principal string // client_id (V2) or username (V1)
	Secret    string // client_secret (V2) or password (V1)
	Token     string // static bearer token; bypasses Principal/Secret

	Account  string
	Database string
	Engine   string

	// AuthServer overrides the auth host. Empty uses the production
	// default (see auth.AuthServerURL).
	AuthServer string
	// APIEndpoint is the engine host for a Core deployment, where
	// there is no account/auth-server indirection to discover it from.
	APIEndpoint string

	Logger       *zerolog.Logger
	UserAgent    func() string
	DisableCache bool
	// Cache overrides the token/discovery cache. Nil gets a fresh
	// process-local auth.MemoryCache, so by default nothing is shared
	// across separate Connect calls; a caller that wants a warm cache
	// across Connections (skipping account resolution and engine
	// discovery on repeat Connects for the same principal) passes the
	// same Cache instance to each ConnectionConfig.
	Cache auth.Cache
}

// Connection is a bootstrapped, authenticated handle to one Firebolt
// engine. It owns the shared session parameters, the HTTP client, and
// the registry of live cursors, closed together by Close.
type Connection struct {
	cfg    ConnectionConfig
	logger zerolog.Logger
	authn  auth.Authenticator
	http   *httpClient

	paramStyle string
	accountID  string
	baseURL    string // the engine currently in use for user queries
	sysBaseURL string // the system engine, used for discovery/async status

	params  *sessionParams
	cursors sync.Map // string -> *Cursor
	closed  atomic.Bool
}

// Connect bootstraps a Connection: resolve the
// account, discover the system engine, optionally resolve a named
// engine's URL, and seed the immutable session parameters. A Core
// deployment (Version == auth.Core) skips account/engine discovery
// entirely and talks directly to APIEndpoint.
func Connect(ctx context.Context, cfg ConnectionConfig) (*Connection, error) {
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	cache := cfg.Cache
	if cache == nil {
		cache = auth.NewMemoryCache()
	}
	if cfg.DisableCache || cacheDisabledByEnv(cfg.Principal) {
		cache = auth.NoopCache{}
	}

	authn := auth.New(auth.Config{
		Version:    cfg.Version,
		Principal:  cfg.Principal,
		Secret:     cfg.Secret,
		Token:      cfg.Token,
		AuthServer: auth.AuthServerURL(cfg.AuthServer),
		Cache:      cache,
		Logger:     logger,
	})

	ua := cfg.UserAgent
	if ua == nil {
		ua = DefaultUserAgent
	}

	c := &Connection{
		cfg:        cfg,
		logger:     logger,
		authn:      authn,
		http:       newHTTPClient(authn, logger, ua),
		paramStyle: ParamStyleQmark,
	}
	c.params = newSessionParams(logger)
	if cfg.Database != "" {
		c.params.setImmutable("database", cfg.Database)
	}
	c.params.setImmutable("output_format", outputFormatBuffered)

	if cfg.Version == auth.Core {
		if cfg.Database == "" {
			c.params.setImmutable("database", defaultDatabase)
		}
		c.baseURL = strings.TrimRight(cfg.APIEndpoint, "/")
		c.sysBaseURL = c.baseURL
		return c, nil
	}

	// A warm cache entry for this principal carries the account ID,
	// system engine URL, and per-engine URLs from a previous Connect, so
	// this bootstrap can skip straight to seeding baseURL/sysBaseURL
	// instead of redoing account resolution and engine discovery over
	// the network.
	var engineMap map[string]string
	accountID, sysURL := "", ""
	if cached, ok := authn.CachedDiscovery(ctx); ok {
		accountID = cached.AccountID
		sysURL = cached.SystemEngineURL
		engineMap = cached.EngineMap
		c.logger.Debug().Str("account", cfg.Account).Msg("connect: reusing cached account/engine discovery")
	}

	if accountID == "" {
		id, err := c.resolveAccountID(ctx, cfg.Account)
		if err != nil {
			return nil, wrapCause(ErrAccountNotFound, err, "resolving account %q", cfg.Account)
		}
		accountID = id
	}
	c.accountID = accountID

	// V1 has no system engine to discover: it resolves a named engine's
	// URL directly off the account-ID-keyed engine list endpoint, the
	// one divergence point this legacy path is kept around to exercise.
	if cfg.Version == auth.V1 {
		if cfg.Engine == "" {
			return nil, wrapErr(ErrV1NotSupported,
				"V1 bootstrap requires an explicit engine name; there is no default system engine to discover")
		}
		engineURL := engineMap[cfg.Engine]
		if engineURL == "" {
			u, err := c.lookupEngineURLV1(ctx, accountID, cfg.Engine)
			if err != nil {
				return nil, err
			}
			engineURL = u
		}
		c.sysBaseURL = engineURL
		c.baseURL = engineURL
		c.params.setImmutable("engine", cfg.Engine)
		authn.StoreDiscovery(ctx, accountID, engineURL, map[string]string{cfg.Engine: engineURL})
		return c, nil
	}

	if sysURL == "" {
		u, err := c.discoverEngineURL(ctx, cfg.Account)
		if err != nil {
			return nil, err
		}
		sysURL = u
	}
	c.sysBaseURL = sysURL
	c.baseURL = sysURL

	if cfg.Engine != "" {
		engineURL := engineMap[cfg.Engine]
		if engineURL == "" {
			u, err := c.lookupEngineURL(ctx, cfg.Engine)
			if err != nil {
				return nil, err
			}
			engineURL = u
			if engineMap == nil {
				engineMap = map[string]string{}
			}
			engineMap[cfg.Engine] = engineURL
		}
		c.baseURL = engineURL
		c.params.setImmutable("engine", cfg.Engine)
	}

	authn.StoreDiscovery(ctx, accountID, sysURL, engineMap)
	return c, nil
}

type accountResolveResponse struct {
	AccountID string `json:"account_id"`
}

func (c *Connection) resolveAccountID(ctx context.Context, account string) (string, error) {
	if account == "" {
		return "", wrapErr(ErrConfigurationError, "account is required outside Core deployments")
	}
	authServer := auth.AuthServerURL(c.cfg.AuthServer)
	resp, err := c.http.do(ctx, "GET", authServer+accountResolvePath(account), nil, nil)
	if err != nil {
		return "", err
	}
	var out accountResolveResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil || out.AccountID == "" {
		return "", wrapCause(ErrAccountNotFoundOrNoAccess, err, "malformed account-resolve response")
	}
	return out.AccountID, nil
}

type engineURLResponse struct {
	EngineURL string `json:"engine_url"`
}

func (c *Connection) discoverEngineURL(ctx context.Context, account string) (string, error) {
	authServer := auth.AuthServerURL(c.cfg.AuthServer)
	resp, err := c.http.do(ctx, "GET", authServer+engineURLDiscoveryPath(account), nil, nil)
	if err != nil {
		return "", err
	}
	var out engineURLResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil || out.EngineURL == "" {
		return "", wrapCause(ErrOperationalError, err, "malformed engine-url discovery response")
	}
	return normalizeEngineURL(out.EngineURL), nil
}

// lookupEngineURL queries the system engine's information_schema.engines
// for a specific engine's URL and running status.
func (c *Connection) lookupEngineURL(ctx context.Context, engineName string) (string, error) {
	planner := qmarkPlanner{}
	sql, _, err := planner.prepare(systemEngineQueryEngines, []any{engineName})
	if err != nil {
		return "", err
	}
	rs, _, err := c.rawQuery(ctx, c.sysBaseURL, sql, nil)
	if err != nil {
		return "", err
	}
	defer rs.Close()

	if !rs.Next() {
		if err := convertRowSetError(rs.Err()); err != nil {
			return "", err
		}
		return "", wrapErr(ErrFireboltEngineError, "engine %q not found", engineName)
	}
	row := rs.Row()
	engineURL, _ := row[0].(string)
	status, _ := row[2].(string)
	if !strings.EqualFold(status, "running") {
		return "", wrapErr(ErrEngineNotRunning, "engine %q is not running (status %q)", engineName, status)
	}
	return normalizeEngineURL(engineURL), nil
}

type engineListResponseV1 struct {
	Engines []struct {
		Name   string `json:"engine_name"`
		URL    string `json:"endpoint"`
		Status string `json:"status"`
	} `json:"engines"`
}

// lookupEngineURLV1 resolves an engine's URL against V1's account-ID-keyed
// engine list endpoint (engineURLDiscoveryPathV1), in place of the
// account-name-keyed discovery + system-engine SQL lookup V2 uses.
func (c *Connection) lookupEngineURLV1(ctx context.Context, accountID, engineName string) (string, error) {
	authServer := auth.AuthServerURL(c.cfg.AuthServer)
	resp, err := c.http.do(ctx, "GET", authServer+engineURLDiscoveryPathV1(accountID), nil, nil)
	if err != nil {
		return "", err
	}
	var out engineListResponseV1
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", wrapCause(ErrOperationalError, err, "malformed V1 engine list response")
	}
	for _, e := range out.Engines {
		if !strings.EqualFold(e.Name, engineName) {
			continue
		}
		if !strings.EqualFold(e.Status, "running") {
			return "", wrapErr(ErrEngineNotRunning, "engine %q is not running (status %q)", engineName, e.Status)
		}
		return normalizeEngineURL(e.URL), nil
	}
	return "", wrapErr(ErrOperationalError, "engine %q not found", engineName)
}

func normalizeEngineURL(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return strings.TrimRight(raw, "/")
	}
	return "https://" + strings.TrimRight(raw, "/")
}

// rawQuery issues sql against base with the connection's current
// session parameters and decodes the response as a buffered or
// streaming RowSet depending on the output_format parameter. Used
// directly for bootstrap queries (engine lookup) before a Cursor
// exists, and via Cursor.execute for everything else. When params is
// non-empty (fb_numeric paramstyle), the request body is a JSON
// envelope carrying the positional parameters instead of raw SQL text.
func (c *Connection) rawQuery(ctx context.Context, base, sql string, params []wireParam) (rowset.RowSet, *response, error) {
	if c.closed.Load() {
		return nil, nil, ErrConnectionClosed
	}
	u := c.buildQueryURL(base)

	var body []byte
	var headers map[string][]string
	if len(params) > 0 {
		envelope := struct {
			Query      string      `json:"query"`
			Parameters []wireParam `json:"parameters"`
		}{Query: sql, Parameters: params}
		b, err := json.Marshal(envelope)
		if err != nil {
			return nil, nil, wrapCause(ErrDataError, err, "encoding parameterized query")
		}
		body = b
		headers = map[string][]string{"Content-Type": {"application/json"}}
	} else {
		body = []byte(sql)
		headers = map[string][]string{"Content-Type": {"text/plain"}}
	}

	resp, err := c.http.do(ctx, "POST", u, body, headers)
	if err != nil {
		return nil, resp, err
	}
	c.applyResponseHeaders(resp.Header)

	var rs rowset.RowSet
	outputFormat, _ := c.params.get("output_format")
	if outputFormat == outputFormatStreaming {
		rs, err = rowset.NewStreaming(bytes.NewReader(resp.Body))
	} else {
		rs, err = rowset.NewBuffered(bytes.NewReader(resp.Body))
	}
	if err != nil {
		if converted := convertRowSetError(err); converted != err {
			return nil, resp, converted
		}
		return nil, resp, wrapCause(ErrDataError, err, "decoding response")
	}
	return rs, resp, nil
}

func (c *Connection) buildQueryURL(base string) string {
	q := make(url.Values)
	for k, v := range c.params.snapshot() {
		if v != "" {
			q.Set(k, v)
		}
	}
	return base + "/?" + q.Encode()
}

// applyResponseHeaders reacts to the server-driven dynamic-update
// headers documented in constants.go: endpoint redirection, session
// parameter updates/removal, and a full session reset.
func (c *Connection) applyResponseHeaders(h map[string][]string) {
	if vs := h[headerUpdateEndpoint]; len(vs) > 0 {
		if u, err := url.Parse(vs[0]); err == nil && u.Scheme != "" {
			c.baseURL = strings.TrimRight(u.Scheme+"://"+u.Host+u.Path, "/")
			c.params.applyEndpointQuery(u.Query())
		} else {
			c.baseURL = normalizeEngineURL(vs[0])
		}
	}
	if vs := h[headerUpdateParameters]; len(vs) > 0 {
		for _, v := range vs {
			c.params.applyUpdateParameters(v)
		}
	}
	if vs := h[headerRemoveParameters]; len(vs) > 0 {
		for _, v := range vs {
			c.params.removeParameters(v)
		}
	}
	if _, ok := h[headerResetSession]; ok {
		c.params.resetSession()
	}
}

// NewCursor creates a Cursor bound to this Connection and registers it
// in the cursor registry, so Close can cascade.
func (c *Connection) NewCursor() *Cursor {
	cur := &Cursor{conn: c, id: uuid.NewString(), paramStyle: c.paramStyle}
	c.cursors.Store(cur.id, cur)
	return cur
}

func (c *Connection) forgetCursor(id string) {
	c.cursors.Delete(id)
}

// Close shuts the Connection down: every open Cursor is closed first,
// then the HTTP client's idle connections are released.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	c.cursors.Range(func(_, v any) bool {
		if cur, ok := v.(*Cursor); ok {
			if err := cur.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		return true
	})
	c.http.hc.CloseIdleConnections()
	if len(errs) > 0 {
		return joinErrors(errs...)
	}
	return nil
}

// Closed reports whether Close has already run.
func (c *Connection) Closed() bool { return c.closed.Load() }
