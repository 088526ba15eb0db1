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
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/firebolt-db/firebolt-go-sdk/auth"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

// fakeFirebolt stands in for the whole V2 bootstrap sequence (token grant,
// account resolve, system-engine discovery, named-engine lookup) plus
// query execution, routed with chi the way server.go routes the
// teacher's own API endpoints - here playing the server side of the
// wire protocol this driver speaks, rather than a client-side mock.
type fakeFirebolt struct {
	srv       *httptest.Server
	engineRow string // the row information_schema.engines should answer with
}

func newFakeFirebolt(t *testing.T) *fakeFirebolt {
	t.Helper()
	f := &fakeFirebolt{}

	r := chi.NewRouter()
	r.Post("/auth/v1/token", f.handleToken)
	r.Post("/auth/v1/login", f.handleLoginV1)
	r.Get("/iam/v2/accounts/{account}/resolve", f.handleResolveAccount)
	r.Get("/web/v3/account/{account}/engineUrl", f.handleEngineURLDiscovery)
	r.Get("/iam/v2/account/{accountID}/engines", f.handleEngineListV1)
	r.Post("/", f.handleQuery)

	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)
	f.engineRow = fmt.Sprintf(`[%q,"mydb","Running"]`, f.srv.URL)
	return f
}

func (f *fakeFirebolt) handleToken(w http.ResponseWriter, req *http.Request) {
	_ = req.ParseForm()
	if req.Form.Get("grant_type") != "client_credentials" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"access_token":"fake-token","token_type":"Bearer","expires_in":3600}`)
}

func (f *fakeFirebolt) handleResolveAccount(w http.ResponseWriter, req *http.Request) {
	account := chi.URLParam(req, "account")
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"account_id":"acc-%s"}`, account)
}

func (f *fakeFirebolt) handleEngineURLDiscovery(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"engine_url":%q}`, f.srv.URL)
}

func (f *fakeFirebolt) handleLoginV1(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"access_token":"fake-v1-token","expires_in":3600}`)
}

// handleEngineListV1 plays the separate, account-ID-keyed resolution
// endpoint V1 deployments use instead of /web/v3/.../engineUrl.
func (f *fakeFirebolt) handleEngineListV1(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"engines":[{"engine_name":"myengine","endpoint":%q,"status":"running"}]}`, f.srv.URL)
}

func (f *fakeFirebolt) handleQuery(w http.ResponseWriter, req *http.Request) {
	raw, _ := io.ReadAll(req.Body)
	sql := string(raw)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.Contains(sql, "information_schema.engines"):
		fmt.Fprintf(w, `{
			"meta": [{"name":"url","type":"String"},{"name":"attached_to","type":"String"},{"name":"status","type":"String"}],
			"data": [%s],
			"rows": 1
		}`, f.engineRow)
	default:
		fmt.Fprint(w, `{
			"meta": [{"name":"n","type":"Int32"}],
			"data": [[1]],
			"rows": 1
		}`)
	}
}

func TestConnectV2BootstrapsAndQueriesOverRealHTTP(t *testing.T) {
	r := require.New(t)
	f := newFakeFirebolt(t)
	logger := testLogger()

	c, err := Connect(context.Background(), ConnectionConfig{
		Version:    auth.V2,
		Principal:  "client-id",
		Secret:     "client-secret",
		Account:    "myaccount",
		Engine:     "myengine",
		AuthServer: f.srv.URL,
		Logger:     &logger,
	})
	r.NoError(err)
	defer c.Close()

	r.Equal(f.srv.URL, c.baseURL)
	r.Equal("acc-myaccount", c.accountID)

	cur := c.NewCursor()
	r.NoError(cur.Execute(context.Background(), "SELECT 1"))
	row, ok, err := cur.FetchOne()
	r.NoError(err)
	r.True(ok)
	r.Equal(int64(1), row[0])
}

func TestConnectV2FailsWhenNamedEngineNotRunning(t *testing.T) {
	r := require.New(t)
	f := newFakeFirebolt(t)
	f.engineRow = fmt.Sprintf(`[%q,"mydb","Stopped"]`, f.srv.URL)
	logger := testLogger()

	_, err := Connect(context.Background(), ConnectionConfig{
		Version:    auth.V2,
		Principal:  "client-id",
		Secret:     "client-secret",
		Account:    "myaccount",
		Engine:     "myengine",
		AuthServer: f.srv.URL,
		Logger:     &logger,
	})
	r.ErrorIs(err, ErrEngineNotRunning)
}

func TestConnectV2ReusesCachedDiscoveryOnSecondConnect(t *testing.T) {
	r := require.New(t)
	f := newFakeFirebolt(t)
	logger := testLogger()

	sharedCache := auth.NewMemoryCache()
	cfg := ConnectionConfig{
		Version:    auth.V2,
		Principal:  "client-id",
		Secret:     "client-secret",
		Account:    "myaccount",
		Engine:     "myengine",
		AuthServer: f.srv.URL,
		Logger:     &logger,
		Cache:      sharedCache,
	}

	c1, err := Connect(context.Background(), cfg)
	r.NoError(err)
	defer c1.Close()
	r.Equal(f.srv.URL, c1.baseURL)

	// Shut the discovery endpoints down; a second Connect with the same
	// cache must not need them.
	f.srv.Close()

	c2, err := Connect(context.Background(), cfg)
	r.NoError(err)
	defer c2.Close()
	r.Equal(f.srv.URL, c2.baseURL)
	r.Equal("acc-myaccount", c2.accountID)
}

func TestConnectV1BootstrapsOverAccountIDKeyedEndpoint(t *testing.T) {
	r := require.New(t)
	f := newFakeFirebolt(t)
	logger := testLogger()

	c, err := Connect(context.Background(), ConnectionConfig{
		Version:    auth.V1,
		Principal:  "user@example.com",
		Secret:     "password",
		Account:    "myaccount",
		Engine:     "myengine",
		AuthServer: f.srv.URL,
		Logger:     &logger,
	})
	r.NoError(err)
	defer c.Close()

	r.Equal(f.srv.URL, c.baseURL)
	r.Equal("acc-myaccount", c.accountID)

	cur := c.NewCursor()
	r.NoError(cur.Execute(context.Background(), "SELECT 1"))
	row, ok, err := cur.FetchOne()
	r.NoError(err)
	r.True(ok)
	r.Equal(int64(1), row[0])
}

func TestConnectV1RequiresExplicitEngine(t *testing.T) {
	r := require.New(t)
	f := newFakeFirebolt(t)
	logger := testLogger()

	_, err := Connect(context.Background(), ConnectionConfig{
		Version:    auth.V1,
		Principal:  "user@example.com",
		Secret:     "password",
		Account:    "myaccount",
		AuthServer: f.srv.URL,
		Logger:     &logger,
	})
	r.ErrorIs(err, ErrV1NotSupported)
}
