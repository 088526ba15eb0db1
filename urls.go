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

import "fmt"

// URL templates for the wire protocol. These
// are deliberately plain fmt.Sprintf templates, not a router - the driver
// never receives inbound traffic, only composes outbound request paths.
const (
	pathAuthToken     = "/auth/v1/token"
	pathAuthLogin     = "/auth/v1/login"
	pathEngineURLV2   = "/web/v3/account/%s/engineUrl"
	pathEngineURLV1   = "/iam/v2/account/%s/engines" // V1's separate, account-ID-keyed engine list endpoint
	pathAccountByName = "/iam/v2/accounts/%s/resolve"
)

func engineURLDiscoveryPath(account string) string {
	return fmt.Sprintf(pathEngineURLV2, account)
}

// engineURLDiscoveryPathV1 is the separate, account-ID-keyed resolution
// endpoint V1 deployments use in place of engineURLDiscoveryPath's
// account-name-keyed one.
func engineURLDiscoveryPathV1(accountID string) string {
	return fmt.Sprintf(pathEngineURLV1, accountID)
}

func accountResolvePath(account string) string {
	return fmt.Sprintf(pathAccountByName, account)
}

const (
	systemEngineQueryEngines = "SELECT url, attached_to, status FROM information_schema.engines WHERE engine_name = ?"
	systemEngineQueryHistory = "SELECT status FROM information_schema.engine_query_history WHERE query_id = ?"
)
