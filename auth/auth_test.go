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

package auth_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/firebolt-db/firebolt-go-sdk/auth"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
)

func TestNoAuthReturnsEmptyCredential(t *testing.T) {
	r := require.New(t)
	a := auth.New(auth.Config{Version: auth.Core})
	r.Equal(auth.Core, a.Version())
	cred, err := a.Token(context.Background())
	r.NoError(err)
	r.Equal("", cred.Token)
}

func TestStaticTokenAuthReturnsProvidedToken(t *testing.T) {
	r := require.New(t)
	a := auth.New(auth.Config{Token: "fixed-token"})
	cred, err := a.Token(context.Background())
	r.NoError(err)
	r.Equal("fixed-token", cred.Token)
	a.Invalidate() // no-op, must not panic
	cred2, err := a.Token(context.Background())
	r.NoError(err)
	r.Equal("fixed-token", cred2.Token)
}

func TestClientCredentialsAuthFetchesAndCachesToken(t *testing.T) {
	r := require.New(t)
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	calls := 0
	httpmock.RegisterResponder("POST", "https://id.example.com/auth/v1/token",
		func(req *http.Request) (*http.Response, error) {
			calls++
			return httpmock.NewJsonResponse(200, map[string]any{
				"access_token": "tok-abc",
				"token_type":   "bearer",
				"expires_in":   3600,
			})
		},
	)

	a := auth.New(auth.Config{
		Version:    auth.V2,
		Principal:  "client-id",
		Secret:     "client-secret",
		AuthServer: "https://id.example.com",
		HTTPClient: client,
	})
	ctx := context.Background()

	cred, err := a.Token(ctx)
	r.NoError(err)
	r.Equal("tok-abc", cred.Token)

	// Second call must be served from cache, not a second HTTP round trip.
	cred2, err := a.Token(ctx)
	r.NoError(err)
	r.Equal("tok-abc", cred2.Token)
	r.Equal(1, calls)

	// After Invalidate, the next Token call must re-authenticate.
	a.Invalidate()
	httpmock.RegisterResponder("POST", "https://id.example.com/auth/v1/token",
		func(req *http.Request) (*http.Response, error) {
			calls++
			return httpmock.NewJsonResponse(200, map[string]any{
				"access_token": "tok-def",
				"token_type":   "bearer",
				"expires_in":   3600,
			})
		},
	)
	cred3, err := a.Token(ctx)
	r.NoError(err)
	r.Equal("tok-def", cred3.Token)
	r.Equal(2, calls)
}

func TestClientCredentialsAuthCachesDiscoveryAlongsideToken(t *testing.T) {
	r := require.New(t)
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://id.example.com/auth/v1/token",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{
			"access_token": "tok-abc",
			"token_type":   "bearer",
			"expires_in":   3600,
		}),
	)

	a := auth.New(auth.Config{
		Version:    auth.V2,
		Principal:  "client-id",
		Secret:     "client-secret",
		AuthServer: "https://id.example.com",
		HTTPClient: client,
	})
	ctx := context.Background()

	_, ok := a.CachedDiscovery(ctx)
	r.False(ok)

	_, err := a.Token(ctx)
	r.NoError(err)

	a.StoreDiscovery(ctx, "acc-1", "https://sys.example.com", map[string]string{"eng1": "https://eng1.example.com"})

	cred, ok := a.CachedDiscovery(ctx)
	r.True(ok)
	r.Equal("acc-1", cred.AccountID)
	r.Equal("https://sys.example.com", cred.SystemEngineURL)
	r.Equal("https://eng1.example.com", cred.EngineMap["eng1"])

	// The token cached earlier by Token must survive StoreDiscovery.
	cred2, err := a.Token(ctx)
	r.NoError(err)
	r.Equal("tok-abc", cred2.Token)
}

func TestUsernamePasswordAuthV1Login(t *testing.T) {
	r := require.New(t)
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://id.example.com/auth/v1/login",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{
			"access_token": "v1-tok",
			"expires_in":   1800,
		}),
	)

	a := auth.New(auth.Config{
		Version:    auth.V1,
		Principal:  "user@example.com",
		Secret:     "pw",
		AuthServer: "https://id.example.com",
		HTTPClient: client,
	})
	cred, err := a.Token(context.Background())
	r.NoError(err)
	r.Equal("v1-tok", cred.Token)
}

func TestUsernamePasswordAuthRejectsNon200(t *testing.T) {
	r := require.New(t)
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://id.example.com/auth/v1/login",
		httpmock.NewStringResponder(401, `{"error":"invalid credentials"}`),
	)

	a := auth.New(auth.Config{
		Version:    auth.V1,
		Principal:  "user@example.com",
		Secret:     "wrong",
		AuthServer: "https://id.example.com",
		HTTPClient: client,
	})
	_, err := a.Token(context.Background())
	r.Error(err)
}

func TestAuthServerURLDefaultsAndNormalizes(t *testing.T) {
	r := require.New(t)
	r.Equal("https://id.app.firebolt.io", auth.AuthServerURL(""))
	r.Equal("https://custom.example.com", auth.AuthServerURL("https://custom.example.com"))
	r.Equal("https://bare-host.example.com", auth.AuthServerURL("bare-host.example.com"))
}
