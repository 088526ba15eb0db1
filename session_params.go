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
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// sessionParams is the connection's string->string parameter map,
// partitioned into immutable, transaction, and user classes. It is owned
// by a Connection; cursors only ever see it through their connection. A
// single RWMutex serializes updates from response headers against reads
// by cursors issuing new requests.
type sessionParams struct {
	mu     sync.RWMutex
	values map[string]string
	logger zerolog.Logger
}

func newSessionParams(logger zerolog.Logger) *sessionParams {
	return &sessionParams{values: make(map[string]string), logger: logger}
}

// snapshot returns a copy suitable for building an outgoing request's
// query parameters without holding the lock across I/O.
func (s *sessionParams) snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func (s *sessionParams) get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// setImmutable is used only by connection bootstrap / header processing,
// never by a user SET statement.
func (s *sessionParams) setImmutable(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// setUser stages a client SET statement. Callers must have already
// rejected immutable/transaction keys via checkSettable.
func (s *sessionParams) setUser(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func checkSettable(key string) error {
	lower := strings.ToLower(key)
	if lower == "output_format" {
		return wrapErr(ErrConfigurationError, "output_format cannot be set directly")
	}
	if lower == "database" {
		return wrapErr(ErrConfigurationError, "cannot SET database, use USE DATABASE instead")
	}
	if lower == "engine" {
		return wrapErr(ErrConfigurationError, "cannot SET engine, use USE ENGINE instead")
	}
	if immutableParams[lower] || transactionParams[lower] {
		return wrapErr(ErrConfigurationError, "%q is a reserved session parameter", key)
	}
	return nil
}

// applyUpdateParameters merges a "k1=v1,k2=v2" Firebolt-Update-Parameters
// header value into the map.
func (s *sessionParams) applyUpdateParameters(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, kv := range strings.Split(raw, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		s.values[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
}

// applyEndpointQuery merges the query parameters of a
// Firebolt-Update-Endpoint URL into the immutable set.
func (s *sessionParams) applyEndpointQuery(q url.Values) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range q {
		s.values[k] = q.Get(k)
	}
}

// removeParameters handles Firebolt-Remove-Parameters. Per Open Question
// (ii), an immutable key in the list is refused and logged, never
// removed.
func (s *sessionParams) removeParameters(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range strings.Split(raw, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if immutableParams[strings.ToLower(key)] {
			s.logger.Warn().Str("parameter", key).Msg("refusing to remove immutable session parameter")
			continue
		}
		delete(s.values, key)
	}
}

// resetSession clears all user and transaction parameters, keeping only
// the immutable class, per Firebolt-Reset-Session.
func (s *sessionParams) resetSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.values {
		if !immutableParams[strings.ToLower(k)] {
			delete(s.values, k)
		}
	}
}
