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

// PEP-249-style module attributes, carried as documented constants rather
// than actually enforced by the server.
const (
	APILevel     = "2.0"
	ThreadSafety = 2

	// ParamStyleQmark is the default paramstyle: client-side `?`
	// substitution via the literal formatter.
	ParamStyleQmark = "qmark"
	// ParamStyleFbNumeric selects server-side `$1,$2,...` substitution.
	ParamStyleFbNumeric = "fb_numeric"
)

// Output formats advertised in the `output_format` session parameter.
const (
	outputFormatBuffered  = "JSON_Compact"
	outputFormatStreaming = "JSONLines_Compact"
)

// Immutable session parameters: set only by the server, never by SET.
var immutableParams = map[string]bool{
	"database":      true,
	"engine":        true,
	"output_format": true,
}

// Transaction-scoped session parameters, managed entirely by the server
// via dynamic-update headers.
var transactionParams = map[string]bool{
	"transaction_id":          true,
	"transaction_sequence_id": true,
}

// Server-driven response headers consumed by the client to update
// routing and session state dynamically, without a new connection.
const (
	headerUpdateEndpoint   = "Firebolt-Update-Endpoint"
	headerUpdateParameters = "Firebolt-Update-Parameters"
	headerResetSession     = "Firebolt-Reset-Session"
	headerRemoveParameters = "Firebolt-Remove-Parameters"
)

const defaultDatabase = "firebolt" // CORE deployment default.
