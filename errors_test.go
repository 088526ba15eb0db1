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
	"testing"

	"github.com/firebolt-db/firebolt-go-sdk/rowset"
	"github.com/stretchr/testify/require"
)

func TestWrapErrIsComparableToAncestor(t *testing.T) {
	r := require.New(t)
	err := wrapErr(ErrCursorClosed, "cursor %q already closed", "c1")
	r.True(errors.Is(err, ErrCursorClosed))
	r.True(errors.Is(err, ErrProgrammingError))
	r.True(errors.Is(err, ErrDatabaseError))
	r.False(errors.Is(err, ErrInterfaceError))
}

func TestWrapCausePreservesUnwrap(t *testing.T) {
	r := require.New(t)
	cause := errors.New("boom")
	err := wrapCause(ErrDataError, cause, "formatting failed")
	r.True(errors.Is(err, ErrDataError))
	r.True(errors.Is(err, cause))
	r.Contains(err.Error(), "boom")
}

func TestStructuredErrorIsProgrammingError(t *testing.T) {
	r := require.New(t)
	se := NewStructuredError([]StructuredErrorRecord{
		{Severity: "ERROR", Name: "syntax error", Description: "unexpected token"},
	})
	r.True(errors.Is(se, ErrProgrammingError))
	r.Contains(se.Error(), "syntax error")
}

func TestConvertRowSetErrorTranslatesStructuredErrors(t *testing.T) {
	r := require.New(t)
	re := &rowset.ResultErrors{Records: []rowset.ErrorRecord{
		{Severity: "ERROR", Name: "syntax error", Description: "unexpected token"},
	}}
	converted := convertRowSetError(re)
	r.True(errors.Is(converted, ErrProgrammingError))
	var se *StructuredError
	r.ErrorAs(converted, &se)
	r.Len(se.Records, 1)
	r.Equal("syntax error", se.Records[0].Name)
}

func TestConvertRowSetErrorTranslatesTruncatedStream(t *testing.T) {
	r := require.New(t)
	converted := convertRowSetError(&rowset.TruncatedStreamError{})
	r.True(errors.Is(converted, ErrOperationalError))
}

func TestConvertRowSetErrorTranslatesBadFirstRecord(t *testing.T) {
	r := require.New(t)
	converted := convertRowSetError(&rowset.BadFirstRecordError{MessageType: "DATA"})
	r.True(errors.Is(converted, ErrOperationalError))
}

func TestConvertRowSetErrorPassesThroughUnrecognized(t *testing.T) {
	r := require.New(t)
	cause := errors.New("boom")
	r.Equal(cause, convertRowSetError(cause))
	r.Nil(convertRowSetError(nil))
}

func TestBadRequestErrorMessage(t *testing.T) {
	r := require.New(t)
	err := &BadRequestError{Message: "bad column"}
	r.Equal("bad request: bad column", err.Error())
}

func TestJoinErrorsNilWhenEmpty(t *testing.T) {
	r := require.New(t)
	r.NoError(joinErrors())
}

func TestJoinErrorsWrapsMultiple(t *testing.T) {
	r := require.New(t)
	err := joinErrors(errors.New("a"), errors.New("b"))
	r.Error(err)
	r.True(errors.Is(err, ErrOperationalError))
	r.Contains(err.Error(), "a")
	r.Contains(err.Error(), "b")
}
