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
	"strings"
)

// ErrorLocation pinpoints a reported error within the submitted SQL text.
type ErrorLocation struct {
	FailingLine int
	StartOffset int
	EndOffset   int
}

// ErrorRecord is one entry of the server's `errors` array, shared by the
// buffered `errors` field and the streaming FINISH_WITH_ERRORS record. The
// root package's errors.go mirrors this shape as StructuredErrorRecord and
// converts one into the other (rowset cannot import the root package -
// the root package imports rowset - so this is the decoder-side twin
// rather than a shared type).
type ErrorRecord struct {
	Code        string
	Name        string
	Severity    string
	Source      string
	Description string
	Resolution  string
	HelpLink    string
	Location    *ErrorLocation
}

func (r ErrorRecord) String() string {
	var b strings.Builder
	b.WriteString(r.Severity)
	b.WriteString(": ")
	b.WriteString(r.Name)
	if r.Code != "" {
		b.WriteString(" (")
		b.WriteString(r.Code)
		b.WriteString(")")
	}
	b.WriteString(" - ")
	b.WriteString(r.Description)
	if r.Location != nil {
		fmt.Fprintf(&b, " at line %d [%d:%d]", r.Location.FailingLine, r.Location.StartOffset, r.Location.EndOffset)
	}
	if r.HelpLink != "" {
		b.WriteString(", see ")
		b.WriteString(r.HelpLink)
	}
	return b.String()
}

// ResultErrors wraps every error record the engine reported for a result
// - either the buffered response's top-level `errors` array or a
// streaming FINISH_WITH_ERRORS record's `errors` array. The root package
// recognizes this type with errors.As and converts it to its own
// StructuredError so callers can match errors.Is(err, ErrProgrammingError).
type ResultErrors struct {
	Records []ErrorRecord
}

func (e *ResultErrors) Error() string {
	parts := make([]string, len(e.Records))
	for i, r := range e.Records {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}

// TruncatedStreamError is returned when a JSON-Lines stream ends (EOF)
// before a SUCCESS or ERROR record was seen.
type TruncatedStreamError struct{}

func (*TruncatedStreamError) Error() string { return "unexpected end of response stream" }

// BadFirstRecordError is returned when a streaming response's first
// record is not a START record - the decoder has nothing to build a
// schema from.
type BadFirstRecordError struct {
	MessageType string
}

func (e *BadFirstRecordError) Error() string {
	return fmt.Sprintf("unexpected json line message type %s, expected START", e.MessageType)
}

// wireErrorLocation and wireErrorRecord are the JSON shapes of one entry
// of the server's `errors` array, shared by buffered.go's top-level
// `errors` field and streaming.go's FINISH_WITH_ERRORS record.
type wireErrorLocation struct {
	FailingLine int `json:"failingLine"`
	StartOffset int `json:"startOffset"`
	EndOffset   int `json:"endOffset"`
}

type wireErrorRecord struct {
	Code        string             `json:"code"`
	Name        string             `json:"name"`
	Severity    string             `json:"severity"`
	Source      string             `json:"source"`
	Description string             `json:"description"`
	Resolution  string             `json:"resolution"`
	HelpLink    string             `json:"helpLink"`
	Location    *wireErrorLocation `json:"location,omitempty"`
}

func toErrorRecords(in []wireErrorRecord) []ErrorRecord {
	out := make([]ErrorRecord, len(in))
	for i, w := range in {
		r := ErrorRecord{
			Code:        w.Code,
			Name:        w.Name,
			Severity:    w.Severity,
			Source:      w.Source,
			Description: w.Description,
			Resolution:  w.Resolution,
			HelpLink:    w.HelpLink,
		}
		if w.Location != nil {
			r.Location = &ErrorLocation{
				FailingLine: w.Location.FailingLine,
				StartOffset: w.Location.StartOffset,
				EndOffset:   w.Location.EndOffset,
			}
		}
		out[i] = r
	}
	return out
}
