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

// Package rowset decodes the two response shapes a query engine can
// return: a single buffered JSON object (JSON_Compact, the default
// output format) and a JSON-Lines stream of START/DATA/FINISH_* records
// (JSONLines_Compact). Both
// satisfy the same RowSet interface so the root package's Cursor can
// treat them identically.
package rowset
