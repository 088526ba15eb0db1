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
	"bytes"
	"fmt"
	"io"

	"github.com/firebolt-db/firebolt-go-sdk/types"
	"github.com/goccy/go-json"
)

type wireMeta struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type wireStatistics struct {
	ElapsedSeconds      float64 `json:"elapsed"`
	RowsRead            int64   `json:"rows_read"`
	BytesRead           int64   `json:"bytes_read"`
	TimeBeforeExecution float64 `json:"time_before_execution"`
	TimeToExecute       float64 `json:"time_to_execute"`
	ScannedBytesCache   int64   `json:"scanned_bytes_cache"`
	ScannedBytesStorage int64   `json:"scanned_bytes_storage"`
}

func (s *wireStatistics) toStatistics() *Statistics {
	if s == nil {
		return nil
	}
	return &Statistics{
		ElapsedSeconds:      s.ElapsedSeconds,
		RowsRead:            s.RowsRead,
		BytesRead:           s.BytesRead,
		TimeBeforeExec:      s.TimeBeforeExecution,
		TimeToExecute:       s.TimeToExecute,
		ScannedBytesCache:   s.ScannedBytesCache,
		ScannedBytesStorage: s.ScannedBytesStorage,
	}
}

type wireResponse struct {
	Meta       []wireMeta        `json:"meta"`
	Data       [][]any           `json:"data"`
	Rows       int64             `json:"rows"`
	Statistics *wireStatistics   `json:"statistics"`
	Errors     []wireErrorRecord `json:"errors"`
}

// bufferedRowSet decodes the whole JSON_Compact response body up
// front, then parses each row's values lazily on Next, the same split
// the streaming decoder uses so both share the types.ParseValue path.
type bufferedRowSet struct {
	closer  io.Closer
	cols    []Column
	rawData [][]any
	idx     int
	cur     []any
	stats   *Statistics
	count   int64
	err     error
}

// NewBuffered decodes a JSON_Compact response body (meta/data/rows/
// statistics) read from r. The decode uses goccy/go-json's UseNumber
// mode so numeric literals reach types.ParseValue as json.Number,
// never as a lossy float64 — the same precision concern documented in
// the types package.
func NewBuffered(r io.Reader) (RowSet, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("rowset: reading buffered response: %w", err)
	}

	// An empty body (e.g. a DDL statement with no JSON payload at all)
	// is a valid "no metadata, row count unknown" result, not a decode
	// error.
	if len(bytes.TrimSpace(raw)) == 0 {
		b := &bufferedRowSet{count: -1, idx: -1}
		if c, ok := r.(io.Closer); ok {
			b.closer = c
		}
		return b, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var wr wireResponse
	if err := dec.Decode(&wr); err != nil {
		return nil, fmt.Errorf("rowset: malformed buffered response: %w", err)
	}
	if len(wr.Errors) > 0 {
		return nil, &ResultErrors{Records: toErrorRecords(wr.Errors)}
	}

	cols := make([]Column, len(wr.Meta))
	for i, m := range wr.Meta {
		t, err := types.ParseTypeString(m.Type)
		if err != nil {
			return nil, fmt.Errorf("rowset: column %q: %w", m.Name, err)
		}
		cols[i] = Column{Name: m.Name, Type: t}
	}

	b := &bufferedRowSet{
		cols:    cols,
		rawData: wr.Data,
		count:   wr.Rows,
		stats:   wr.Statistics.toStatistics(),
		idx:     -1,
	}
	if c, ok := r.(io.Closer); ok {
		b.closer = c
	}
	return b, nil
}

func (b *bufferedRowSet) Columns() []Column { return b.cols }

func (b *bufferedRowSet) Next() bool {
	if b.err != nil {
		return false
	}
	b.idx++
	if b.idx >= len(b.rawData) {
		return false
	}
	raw := b.rawData[b.idx]
	row := make([]any, len(b.cols))
	for i, col := range b.cols {
		var rv any
		if i < len(raw) {
			rv = raw[i]
		}
		v, err := types.ParseValue(rv, col.Type)
		if err != nil {
			b.err = fmt.Errorf("rowset: row %d column %q: %w", b.idx, col.Name, err)
			return false
		}
		row[i] = v
	}
	b.cur = row
	return true
}

func (b *bufferedRowSet) Row() []any              { return b.cur }
func (b *bufferedRowSet) Err() error              { return b.err }
func (b *bufferedRowSet) RowCount() int64         { return b.count }
func (b *bufferedRowSet) Statistics() *Statistics { return b.stats }

func (b *bufferedRowSet) Close() error {
	if b.closer == nil {
		return nil
	}
	err := b.closer.Close()
	b.closer = nil
	return err
}
