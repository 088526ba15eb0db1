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

// Package firebolt provides a PEP-249-flavored client driver for the
// Firebolt cloud SQL warehouse. A [Connection] is bootstrapped from a
// [ConnectionConfig] plus an account name, and resolves the system engine,
// an optional user engine, and an optional database. [Cursor] values
// created from a Connection execute statements and decode the resulting
// row-sets, buffered or streaming, via the types package's codec.
//
// See the package auth for the authentication engine, rowset for the
// result decoders, and types for the SQL type system.
package firebolt
