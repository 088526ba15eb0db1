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
	"fmt"
	"io"

	"github.com/firebolt-db/firebolt-go-sdk/types"
	"github.com/goccy/go-json"
)

// Message types carried by the JSONLines_Compact output format, one
// JSON object per line.
const (
	msgStart              = "START"
	msgData               = "DATA"
	msgFinishSuccessfully = "FINISH_SUCCESSFULLY"
	msgFinishWithErrors   = "FINISH_WITH_ERRORS"
)

type wireRecord struct {
	MessageType   string            `json:"message_type"`
	ResultColumns []wireMeta        `json:"result_columns"`
	Data          [][]any           `json:"data"`
	Statistics    *wireStatistics   `json:"statistics"`
	Errors        []wireErrorRecord `json:"errors"`
}

// streamingRowSet parses a JSON-Lines response record by record,
// handing out rows from each DATA record's batch before asking the
// decoder for the next line. Only the current batch is held in memory
// at any time, unlike bufferedRowSet which holds the whole response.
type streamingRowSet struct {
	dec     *json.Decoder
	closer  io.Closer
	cols    []Column
	pending [][]any
	pidx    int
	cur     []any
	count   int64
	stats   *Statistics
	err     error
	done    bool
}

// NewStreaming reads the START record off r (which must yield the
// result's column metadata before any row data) and returns a RowSet
// that lazily decodes the remaining DATA/FINISH_* records as Next is
// called.
func NewStreaming(r io.Reader) (RowSet, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var start wireRecord
	if err := dec.Decode(&start); err != nil {
		return nil, fmt.Errorf("rowset: malformed stream start: %w", err)
	}
	if start.MessageType != msgStart {
		return nil, &BadFirstRecordError{MessageType: start.MessageType}
	}

	cols := make([]Column, len(start.ResultColumns))
	for i, m := range start.ResultColumns {
		t, err := types.ParseTypeString(m.Type)
		if err != nil {
			return nil, fmt.Errorf("rowset: column %q: %w", m.Name, err)
		}
		cols[i] = Column{Name: m.Name, Type: t}
	}

	s := &streamingRowSet{dec: dec, cols: cols}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s, nil
}

func (s *streamingRowSet) Columns() []Column { return s.cols }

func (s *streamingRowSet) Next() bool {
	if s.err != nil || s.done {
		return false
	}
	for {
		if s.pidx < len(s.pending) {
			raw := s.pending[s.pidx]
			row := make([]any, len(s.cols))
			for i, col := range s.cols {
				var rv any
				if i < len(raw) {
					rv = raw[i]
				}
				v, err := types.ParseValue(rv, col.Type)
				if err != nil {
					s.err = fmt.Errorf("rowset: row column %q: %w", col.Name, err)
					return false
				}
				row[i] = v
			}
			s.pidx++
			s.count++
			s.cur = row
			return true
		}

		var rec wireRecord
		if err := s.dec.Decode(&rec); err != nil {
			if err == io.EOF {
				// EOF before a FINISH_* record means the stream was cut
				// short, not cleanly finished.
				s.err = &TruncatedStreamError{}
				s.done = true
				return false
			}
			s.err = fmt.Errorf("rowset: malformed stream record: %w", err)
			return false
		}
		switch rec.MessageType {
		case msgData:
			s.pending = rec.Data
			s.pidx = 0
		case msgFinishSuccessfully:
			s.stats = rec.Statistics.toStatistics()
			s.done = true
			return false
		case msgFinishWithErrors:
			s.err = &ResultErrors{Records: toErrorRecords(rec.Errors)}
			s.done = true
			return false
		default:
			// Unrecognized record types are skipped rather than failing
			// the whole stream, so the client stays forward-compatible
			// with new record kinds the engine might add.
		}
	}
}

func (s *streamingRowSet) Row() []any              { return s.cur }
func (s *streamingRowSet) Err() error              { return s.err }
func (s *streamingRowSet) RowCount() int64         { return s.count }
func (s *streamingRowSet) Statistics() *Statistics { return s.stats }

func (s *streamingRowSet) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}
