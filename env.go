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

import "os"

// Environment variables honored by this driver. Reading these is a
// documented convenience, not configuration-file loading, and these
// helpers are the only place os.Getenv is called in the driver. Only the
// cache flags have a config-field counterpart: ConnectionConfig.DisableCache
// also disables caching, but leaving it false does not lift a disable set
// here. The performance-debug and SSL_CERT_FILE variables have no config
// field.
const (
	envDisableCache       = "FIREBOLT_SDK_DISABLE_CACHE"
	envDisableCachePrefix = "FIREBOLT_SDK_DISABLE_CACHE_"
	envPerformanceDebug   = "FIREBOLT_SDK_PERFORMANCE_DEBUG"
	envSSLCertFile        = "SSL_CERT_FILE"
)

func envFlagSet(name string) bool {
	v, ok := os.LookupEnv(name)
	return ok && v != "" && v != "0" && v != "false"
}

// cacheDisabledByEnv reports whether the global or a named per-cache
// disable flag is set.
func cacheDisabledByEnv(cacheName string) bool {
	if envFlagSet(envDisableCache) {
		return true
	}
	if cacheName == "" {
		return false
	}
	return envFlagSet(envDisableCachePrefix + cacheName)
}

func performanceDebugEnabled() bool { return envFlagSet(envPerformanceDebug) }

func sslCertFile() string { return os.Getenv(envSSLCertFile) }
