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
	"path/filepath"
	"testing"
	"time"

	"github.com/firebolt-db/firebolt-go-sdk/auth"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	r := require.New(t)
	c := auth.NewMemoryCache()
	ctx := context.Background()

	_, ok := c.Get(ctx, "k")
	r.False(ok)

	cred := auth.Credential{Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}
	c.Set(ctx, "k", cred)
	got, ok := c.Get(ctx, "k")
	r.True(ok)
	r.Equal(cred.Token, got.Token)

	c.Delete(ctx, "k")
	_, ok = c.Get(ctx, "k")
	r.False(ok)
}

func TestNoopCacheNeverReturnsHit(t *testing.T) {
	r := require.New(t)
	c := auth.NoopCache{}
	ctx := context.Background()
	c.Set(ctx, "k", auth.Credential{Token: "tok", ExpiresAt: time.Now().Add(time.Hour)})
	_, ok := c.Get(ctx, "k")
	r.False(ok)
}

func TestFileCacheRoundTripsThroughEncryptedFile(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "token-cache")

	c1 := auth.NewFileCache(path, []byte("correct-passphrase"))
	cred := auth.Credential{Token: "tok-123", ExpiresAt: time.Now().Add(time.Hour)}
	c1.Set(ctx, "key-a", cred)

	// A fresh FileCache instance pointed at the same file and passphrase
	// must read back what was written.
	c2 := auth.NewFileCache(path, []byte("correct-passphrase"))
	got, ok := c2.Get(ctx, "key-a")
	r.True(ok)
	r.Equal(cred.Token, got.Token)

	// The wrong passphrase must not be able to decrypt it; FileCache
	// treats that as an empty cache rather than failing.
	c3 := auth.NewFileCache(path, []byte("wrong-passphrase"))
	_, ok = c3.Get(ctx, "key-a")
	r.False(ok)
}

func TestFileCacheDelete(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "token-cache")

	c := auth.NewFileCache(path, []byte("pw"))
	c.Set(ctx, "key-a", auth.Credential{Token: "t", ExpiresAt: time.Now().Add(time.Hour)})
	c.Delete(ctx, "key-a")
	_, ok := c.Get(ctx, "key-a")
	r.False(ok)
}
