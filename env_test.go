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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheDisabledByEnvGlobalFlag(t *testing.T) {
	r := require.New(t)
	t.Setenv(envDisableCache, "1")
	r.True(cacheDisabledByEnv(""))
	r.True(cacheDisabledByEnv("myprincipal"))
}

func TestCacheDisabledByEnvPerNameFlag(t *testing.T) {
	r := require.New(t)
	t.Setenv(envDisableCachePrefix+"myprincipal", "true")
	r.False(cacheDisabledByEnv(""))
	r.False(cacheDisabledByEnv("otherprincipal"))
	r.True(cacheDisabledByEnv("myprincipal"))
}

func TestEnvFlagSetTreatsZeroAndFalseAsUnset(t *testing.T) {
	r := require.New(t)
	t.Setenv("FIREBOLT_TEST_FLAG", "0")
	r.False(envFlagSet("FIREBOLT_TEST_FLAG"))
	t.Setenv("FIREBOLT_TEST_FLAG", "false")
	r.False(envFlagSet("FIREBOLT_TEST_FLAG"))
	t.Setenv("FIREBOLT_TEST_FLAG", "")
	r.False(envFlagSet("FIREBOLT_TEST_FLAG"))
	t.Setenv("FIREBOLT_TEST_FLAG", "1")
	r.True(envFlagSet("FIREBOLT_TEST_FLAG"))
}

func TestPerformanceDebugEnabled(t *testing.T) {
	r := require.New(t)
	t.Setenv(envPerformanceDebug, "1")
	r.True(performanceDebugEnabled())
}

func TestSSLCertFile(t *testing.T) {
	r := require.New(t)
	t.Setenv(envSSLCertFile, "/etc/ssl/custom-ca.pem")
	r.Equal("/etc/ssl/custom-ca.pem", sslCertFile())
}
