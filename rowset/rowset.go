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

package rowset

import (
	"github.com/firebolt-db/firebolt-go-sdk/types"
)

// Column describes one column of a result set: its wire name and its
// decoded Type, parsed once from the meta/result_columns block rather
// than on every row.
type Column struct {
	Name string
	Type types.Type
}

// Statistics carries the engine-reported execution statistics attached
// to a successfully finished query, when present.
type Statistics struct {
	ElapsedSeconds      float64
	RowsRead            int64
	BytesRead           int64
	TimeBeforeExec      float64
	TimeToExecute       float64
	ScannedBytesCache   int64
	ScannedBytesStorage int64
}

// RowSet is the decoder-agnostic view of a query result: either the
// whole thing was already buffered in memory (bufferedRowSet) or rows
// are parsed lazily off a live stream (streamingRowSet). Both advance
// one row at a time with Next/Row, matching the Cursor's FetchOne/
// FetchMany/FetchAll semantics.
type RowSet interface {
	// Columns returns the result's column metadata. Valid once the
	// header (meta, or the JSON-Lines START record) has been read,
	// which for both implementations happens eagerly in the
	// constructor.
	Columns() []Column

	// Next advances to the next row, returning false at end of data or
	// on error (see Err).
	Next() bool

	// Row returns the current row's decoded values, one per Column, in
	// column order. Valid only after a Next call returned true.
	Row() []any

	// Err returns the first error encountered while streaming or
	// decoding, nil if iteration completed (or hasn't started) cleanly.
	Err() error

	// RowCount reports how many rows the engine says were produced.
	// For a buffered set this is known immediately; for a streaming set
	// it is only final after Next has returned false.
	RowCount() int64

	// Statistics returns the execution statistics reported at the end
	// of the result, valid once iteration has completed.
	Statistics() *Statistics

	// Close releases any underlying resources (the HTTP response body,
	// for a streaming set). Safe to call multiple times.
	Close() error
}
