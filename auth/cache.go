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
	"sync"
)

// Cache is the pluggable token-cache interface a caller can inject to
// share access tokens across Connections. Implementations must be safe
// for concurrent use: a single Cache instance may be shared by multiple
// Connections through ConnectionConfig.Cache.
type Cache interface {
	Get(ctx context.Context, key string) (Credential, bool)
	Set(ctx context.Context, key string, cred Credential)
	Delete(ctx context.Context, key string)
}

// MemoryCache is the default Cache: an in-process map keyed by the
// principal/secret/account triple, one entry per distinct credential
// set.
type MemoryCache struct {
	entries sync.Map // string -> Credential
}

// NewMemoryCache returns a ready-to-use in-memory Cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Get(_ context.Context, key string) (Credential, bool) {
	v, ok := c.entries.Load(key)
	if !ok {
		return Credential{}, false
	}
	return v.(Credential), true
}

func (c *MemoryCache) Set(_ context.Context, key string, cred Credential) {
	c.entries.Store(key, cred)
}

func (c *MemoryCache) Delete(_ context.Context, key string) {
	c.entries.Delete(key)
}

// NoopCache never caches anything; every Token call performs a fresh
// grant. Selected when the caller disables caching (FIREBOLT_SDK_DISABLE_CACHE
// and friends, see the root package's env.go).
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (Credential, bool) { return Credential{}, false }
func (NoopCache) Set(context.Context, string, Credential)        {}
func (NoopCache) Delete(context.Context, string)                 {}
