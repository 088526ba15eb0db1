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
	"errors"
	"fmt"
	"strings"

	"github.com/firebolt-db/firebolt-go-sdk/rowset"
)

// kind tags every error raised by this driver so callers can branch on
// severity with errors.Is against the sentinel Err* values below, the way
// PEP-249 callers catch by exception class.
type kind uint8

const (
	kindWarning kind = iota
	kindInterfaceError
	kindConfigurationError
	kindDatabaseError
	kindDataError
	kindOperationalError
	kindConnectionClosedError
	kindEngineNotRunningError
	kindQueryTimeoutError
	kindIntegrityError
	kindInternalError
	kindProgrammingError
	kindCursorClosedError
	kindQueryNotRunError
	kindMethodNotAllowedInAsyncError
	kindFireboltStructuredError
	kindNotSupportedError
	kindV1NotSupportedError
	kindAuthenticationError
	kindAuthorizationError
	kindAccountNotFoundError
	kindAccountNotFoundOrNoAccessError
	kindFireboltEngineError
)

// Sentinel errors. Use errors.Is(err, firebolt.ErrProgrammingError) etc. to
// branch on the hierarchy below; a leaf error
// (e.g. ErrCursorClosed) is also errors.Is-comparable to its ancestors
// because fireboltError.Is walks the kind tree (see Is below).
var (
	ErrWarning                   = &fireboltError{k: kindWarning, msg: "warning"}
	ErrInterfaceError            = &fireboltError{k: kindInterfaceError, msg: "interface error"}
	ErrConfigurationError        = &fireboltError{k: kindConfigurationError, msg: "configuration error"}
	ErrDatabaseError             = &fireboltError{k: kindDatabaseError, msg: "database error"}
	ErrDataError                 = &fireboltError{k: kindDataError, msg: "data error"}
	ErrOperationalError          = &fireboltError{k: kindOperationalError, msg: "operational error"}
	ErrConnectionClosed          = &fireboltError{k: kindConnectionClosedError, msg: "connection is closed"}
	ErrEngineNotRunning          = &fireboltError{k: kindEngineNotRunningError, msg: "engine is not running"}
	ErrQueryTimeout              = &fireboltError{k: kindQueryTimeoutError, msg: "query timed out"}
	ErrIntegrityError            = &fireboltError{k: kindIntegrityError, msg: "integrity error"}
	ErrInternalError             = &fireboltError{k: kindInternalError, msg: "internal error"}
	ErrProgrammingError          = &fireboltError{k: kindProgrammingError, msg: "programming error"}
	ErrCursorClosed              = &fireboltError{k: kindCursorClosedError, msg: "cursor is closed"}
	ErrQueryNotRun               = &fireboltError{k: kindQueryNotRunError, msg: "no query has been run on this cursor"}
	ErrMethodNotAllowedInAsync   = &fireboltError{k: kindMethodNotAllowedInAsyncError, msg: "method not allowed for an async query"}
	ErrNotSupported              = &fireboltError{k: kindNotSupportedError, msg: "not supported"}
	ErrV1NotSupported            = &fireboltError{k: kindV1NotSupportedError, msg: "not supported on the V1 API"}
	ErrAuthenticationError       = &fireboltError{k: kindAuthenticationError, msg: "authentication failed"}
	ErrAuthorizationError        = &fireboltError{k: kindAuthorizationError, msg: "authorization failed"}
	ErrAccountNotFound           = &fireboltError{k: kindAccountNotFoundError, msg: "account not found"}
	ErrAccountNotFoundOrNoAccess = &fireboltError{k: kindAccountNotFoundOrNoAccessError, msg: "account not found or no access"}
	ErrFireboltEngineError       = &fireboltError{k: kindFireboltEngineError, msg: "engine error"}
)

// parent maps each kind to its immediate parent in the hierarchy of
// sentinels, so fireboltError.Is can walk up from a leaf to any
// ancestor sentinel.
var parent = map[kind]kind{
	kindConfigurationError:           kindInterfaceError,
	kindDataError:                    kindDatabaseError,
	kindOperationalError:             kindDatabaseError,
	kindIntegrityError:               kindDatabaseError,
	kindInternalError:                kindDatabaseError,
	kindProgrammingError:             kindDatabaseError,
	kindNotSupportedError:            kindDatabaseError,
	kindConnectionClosedError:        kindOperationalError,
	kindEngineNotRunningError:        kindOperationalError,
	kindQueryTimeoutError:            kindOperationalError,
	kindCursorClosedError:            kindProgrammingError,
	kindQueryNotRunError:             kindProgrammingError,
	kindMethodNotAllowedInAsyncError: kindProgrammingError,
	kindFireboltStructuredError:      kindProgrammingError,
	kindV1NotSupportedError:          kindNotSupportedError,
}

// fireboltError is the concrete type behind every sentinel and every error
// this driver constructs. It is intentionally a flat struct rather than a
// type per exception class — kind plus a wrapped cause gives errors.Is/As
// everything a caller needs without dozens of near-identical struct
// definitions.
type fireboltError struct {
	k     kind
	msg   string
	cause error
}

func (e *fireboltError) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *fireboltError) Unwrap() error { return e.cause }

// Is makes every fireboltError comparable against any ancestor sentinel in
// its kind chain, e.g. errors.Is(err, ErrProgrammingError) is true for an
// err built with kindCursorClosedError.
func (e *fireboltError) Is(target error) bool {
	t, ok := target.(*fireboltError)
	if !ok {
		return false
	}
	k := e.k
	for {
		if k == t.k {
			return true
		}
		p, ok := parent[k]
		if !ok || p == k {
			return false
		}
		k = p
	}
}

func wrapErr(sentinel *fireboltError, format string, args ...any) *fireboltError {
	return &fireboltError{k: sentinel.k, msg: fmt.Sprintf(format, args...)}
}

func wrapCause(sentinel *fireboltError, cause error, format string, args ...any) *fireboltError {
	return &fireboltError{k: sentinel.k, msg: fmt.Sprintf(format, args...), cause: cause}
}

// ErrorLocation pinpoints a structured server error within the submitted
// SQL text.
type ErrorLocation struct {
	FailingLine int `json:"failingLine"`
	StartOffset int `json:"startOffset"`
	EndOffset   int `json:"endOffset"`
}

// StructuredErrorRecord is one entry of the server's `errors` array, as
// described below.
type StructuredErrorRecord struct {
	Code        string         `json:"code"`
	Name        string         `json:"name"`
	Severity    string         `json:"severity"`
	Source      string         `json:"source"`
	Description string         `json:"description"`
	Resolution  string         `json:"resolution"`
	HelpLink    string         `json:"helpLink"`
	Location    *ErrorLocation `json:"location,omitempty"`
}

func (r StructuredErrorRecord) String() string {
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

// StructuredError wraps the server's structured `errors` array, surfaced
// both from a buffered row-set's `errors` field and from a streaming
// FINISH_WITH_ERRORS record. It renders as the ordered ", "-joined String()
// of each record.
type StructuredError struct {
	Records []StructuredErrorRecord
}

func (e *StructuredError) Error() string {
	parts := make([]string, len(e.Records))
	for i, r := range e.Records {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}

// Is lets errors.Is(err, ErrProgrammingError) match a *StructuredError,
// since FireboltStructuredError is a ProgrammingError leaf.
func (e *StructuredError) Is(target error) bool {
	return target == ErrProgrammingError || target == &structuredErrorSentinel
}

var structuredErrorSentinel = fireboltError{k: kindFireboltStructuredError, msg: "structured server error"}

// NewStructuredError builds a StructuredError from decoded records. An
// empty slice is a programmer error — callers (convertRowSetError) should only
// construct one when the server actually reported errors.
func NewStructuredError(records []StructuredErrorRecord) *StructuredError {
	return &StructuredError{Records: records}
}

// convertRowSetError recognizes the rowset package's own error types
// (which can't reference this package's sentinels without an import
// cycle) and translates them into this package's taxonomy, so callers
// can errors.Is/errors.As against ErrProgrammingError/StructuredError
// and ErrOperationalError regardless of which decoder produced the
// error. Anything else passes through unchanged.
func convertRowSetError(err error) error {
	if err == nil {
		return nil
	}
	var re *rowset.ResultErrors
	if errors.As(err, &re) {
		records := make([]StructuredErrorRecord, len(re.Records))
		for i, rec := range re.Records {
			sr := StructuredErrorRecord{
				Code:        rec.Code,
				Name:        rec.Name,
				Severity:    rec.Severity,
				Source:      rec.Source,
				Description: rec.Description,
				Resolution:  rec.Resolution,
				HelpLink:    rec.HelpLink,
			}
			if rec.Location != nil {
				sr.Location = &ErrorLocation{
					FailingLine: rec.Location.FailingLine,
					StartOffset: rec.Location.StartOffset,
					EndOffset:   rec.Location.EndOffset,
				}
			}
			records[i] = sr
		}
		return NewStructuredError(records)
	}
	var trunc *rowset.TruncatedStreamError
	if errors.As(err, &trunc) {
		return wrapCause(ErrOperationalError, trunc, "unexpected end of response stream")
	}
	var bad *rowset.BadFirstRecordError
	if errors.As(err, &bad) {
		return wrapCause(ErrOperationalError, bad, "decoding response")
	}
	return err
}

// HTTPStatusError is returned for HTTP error responses that don't fit a
// more specific category (BadRequestError, AccountNotFoundError, ...).
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d: %s", e.StatusCode, e.Body)
}

// BadRequestError is raised for a 400 response whose JSON body carries a
// `message` field.
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string { return "bad request: " + e.Message }

func (e *BadRequestError) Is(target error) bool { return target == ErrInterfaceError }

// joinErrors aggregates multiple close-time errors into one: used when
// closing a streaming row-set yields more than one stream-close error.
func joinErrors(errs ...error) error {
	joined := errors.Join(errs...)
	if joined == nil {
		return nil
	}
	return wrapCause(ErrOperationalError, joined, "multiple errors while closing row-set")
}
