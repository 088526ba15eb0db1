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

// Package auth implements the authentication engine: the pluggable
// credential variants (client-credentials, username/password, static
// token, none), the token cache interface and its three implementations
// (MemoryCache, NoopCache, FileCache), and the Invalidate hook the root
// package's HTTP client calls before retrying a request that came back
// 401.
package auth
