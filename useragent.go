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
	"fmt"
	"runtime"
)

// Version is the driver's own semver, embedded in the default User-Agent.
const Version = "0.1.0"

// UserAgentProvider composes the User-Agent header for every outgoing
// request. Telemetry/user-agent composition is an out-of-scope external
// collaborator left to the caller; this func type is the pluggable seam a
// caller-supplied connector/driver can use to append its own segment
// without this package needing to know about it.
type UserAgentProvider func() string

// DefaultUserAgent returns "GoSDK/<version> (<goos>/<goarch>)", used when
// no UserAgentProvider is configured.
func DefaultUserAgent() string {
	return fmt.Sprintf("GoSDK/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}
