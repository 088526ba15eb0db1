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
	"context"
	"sync"

	"github.com/firebolt-db/firebolt-go-sdk/auth"
	"github.com/firebolt-db/firebolt-go-sdk/rowset"
	"github.com/google/uuid"
)

// Cursor executes statements against the Connection that created it and
// iterates the resulting rows. One SQL string may hold several
// semicolon-separated statements; each becomes one result set, walked
// with NextSet. Not safe for concurrent use by multiple goroutines —
// concurrent Execute calls on the same Cursor are serialized by its
// mutex: only one statement is in flight per cursor at a time.
type Cursor struct {
	conn       *Connection
	id         string
	paramStyle string

	mu        sync.Mutex
	closed    bool
	executing bool

	results   []rowset.RowSet
	resultIdx int

	asyncToken string
}

// UseParamStyle switches this cursor's placeholder substitution
// strategy between ParamStyleQmark (the default, client-side literal
// inlining) and ParamStyleFbNumeric (server-side $1,$2,... binding).
func (c *Cursor) UseParamStyle(style string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := newPlanner(style, false); err != nil {
		return err
	}
	c.paramStyle = style
	return nil
}

// Execute runs sql (one or more semicolon-separated statements) with
// args substituted via the cursor's paramstyle. Parameters are only
// supported for a single statement.
func (c *Cursor) Execute(ctx context.Context, sql string, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.executeLocked(ctx, sql, args, false)
}

// ExecuteMany runs sql once per row of argSets, in order. It is a
// convenience wrapper, not a server-side batch: each row is a separate
// round trip, and execution stops at the first error.
func (c *Cursor) ExecuteMany(ctx context.Context, sql string, argSets [][]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, args := range argSets {
		if err := c.executeLocked(ctx, sql, args, false); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteAsync submits sql for asynchronous execution and returns an
// opaque query token immediately, without waiting for completion. Use
// IsAsyncQueryRunning / GetAsyncQueryInfo to poll, and CancelAsyncQuery
// to abort. After ExecuteAsync, Fetch* calls on this cursor return
// ErrMethodNotAllowedInAsync until its next Execute; NextSet does not
// check for an async query.
func (c *Cursor) ExecuteAsync(ctx context.Context, sql string, args ...any) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.executeLocked(ctx, sql, args, true); err != nil {
		return "", err
	}
	return c.asyncToken, nil
}

func (c *Cursor) executeLocked(ctx context.Context, sql string, args []any, async bool) error {
	if c.closed {
		return ErrCursorClosed
	}
	if c.executing {
		return wrapErr(ErrProgrammingError, "cursor already has a statement in flight")
	}
	c.executing = true
	defer func() { c.executing = false }()

	c.results = nil
	c.resultIdx = 0
	c.asyncToken = ""

	statements := splitStatements(sql)
	if len(statements) == 0 {
		return wrapErr(ErrProgrammingError, "empty SQL statement")
	}
	if len(statements) > 1 && len(args) > 0 {
		return wrapErr(ErrNotSupported, "parameters are not supported with multi-statement execution")
	}
	if async && len(statements) > 1 {
		return wrapErr(ErrNotSupported, "ExecuteAsync supports exactly one statement")
	}

	v1 := c.conn.cfg.Version == auth.V1

	// A deadline on ctx bounds the whole batch, not just one HTTP call;
	// tc.raiseIfTimeout is checked before each statement so a batch that
	// has already blown its deadline fails fast instead of issuing one
	// more doomed request, and tc.remaining bounds that request's own
	// context so it can't itself run past the batch deadline.
	var tc timeoutController
	if dl, ok := ctx.Deadline(); ok {
		tc = newTimeoutControllerAt(dl)
	}

	for _, stmt := range statements {
		if err := tc.raiseIfTimeout(); err != nil {
			return err
		}

		reqCtx := ctx
		if tc.enabled() {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, tc.remaining())
			defer cancel()
		}

		if key, value, ok := matchSet(stmt); ok {
			if err := checkSettable(key); err != nil {
				return err
			}
			// The engine is the source of truth for whether a SET is
			// accepted (unknown parameter names, bad values, etc.); stage
			// it into session parameters only once the one-off probe
			// request comes back successfully, rather than accepting it
			// unconditionally on the local immutable-key check alone.
			rs, _, err := c.conn.rawQuery(reqCtx, c.conn.baseURL, stmt, nil)
			if err != nil {
				return err
			}
			if rs != nil {
				rs.Close()
			}
			c.conn.params.setUser(key, value)
			continue
		}

		planner, err := newPlanner(c.paramStyle, v1)
		if err != nil {
			return err
		}
		text, params, err := planner.prepare(stmt, args)
		if err != nil {
			return err
		}

		if async {
			token := uuid.NewString()
			_, _, err := c.conn.rawQuery(reqCtx, c.conn.baseURL, text, appendAsyncToken(params, token))
			if err != nil {
				return err
			}
			c.asyncToken = token
			return nil
		}

		rs, _, err := c.conn.rawQuery(reqCtx, c.conn.baseURL, text, params)
		if err != nil {
			return err
		}
		c.results = append(c.results, rs)
	}
	return nil
}

func appendAsyncToken(params []wireParam, token string) []wireParam {
	return append(params, wireParam{Name: "query_label", Value: token})
}

func (c *Cursor) currentRowSet() (rowset.RowSet, error) {
	if c.resultIdx >= len(c.results) {
		return nil, wrapErr(ErrQueryNotRun, "no result set is positioned; call Execute first")
	}
	return c.results[c.resultIdx], nil
}

// NextSet advances to the next result set produced by a multi-statement
// Execute, returning false when there are no more.
func (c *Cursor) NextSet() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resultIdx+1 >= len(c.results) {
		return false
	}
	c.resultIdx++
	return true
}

// Columns returns the current result set's column metadata.
func (c *Cursor) Columns() ([]rowset.Column, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rs, err := c.currentRowSet()
	if err != nil {
		return nil, err
	}
	return rs.Columns(), nil
}

// FetchOne returns the next row, or (nil, false, nil) at end of data.
func (c *Cursor) FetchOne() ([]any, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.asyncToken != "" {
		return nil, false, ErrMethodNotAllowedInAsync
	}
	rs, err := c.currentRowSet()
	if err != nil {
		return nil, false, err
	}
	if !rs.Next() {
		return nil, false, convertRowSetError(rs.Err())
	}
	return rs.Row(), true, nil
}

// FetchMany returns up to n rows from the current result set.
func (c *Cursor) FetchMany(n int) ([][]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.asyncToken != "" {
		return nil, ErrMethodNotAllowedInAsync
	}
	rs, err := c.currentRowSet()
	if err != nil {
		return nil, err
	}
	rows := make([][]any, 0, n)
	for len(rows) < n && rs.Next() {
		rows = append(rows, rs.Row())
	}
	return rows, convertRowSetError(rs.Err())
}

// FetchAll drains the remainder of the current result set.
func (c *Cursor) FetchAll() ([][]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.asyncToken != "" {
		return nil, ErrMethodNotAllowedInAsync
	}
	rs, err := c.currentRowSet()
	if err != nil {
		return nil, err
	}
	var rows [][]any
	for rs.Next() {
		rows = append(rows, rs.Row())
	}
	return rows, convertRowSetError(rs.Err())
}

// Commit issues a COMMIT to the engine over this cursor.
func (c *Cursor) Commit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.executeLocked(ctx, "COMMIT", nil, false)
}

// Rollback issues a ROLLBACK to the engine over this cursor.
func (c *Cursor) Rollback(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.executeLocked(ctx, "ROLLBACK", nil, false)
}

func (c *Cursor) queryAsyncStatus(ctx context.Context) (string, error) {
	if c.asyncToken == "" {
		return "", wrapErr(ErrProgrammingError, "no async query is outstanding on this cursor")
	}
	planner := qmarkPlanner{}
	sql, _, err := planner.prepare(systemEngineQueryHistory, []any{c.asyncToken})
	if err != nil {
		return "", err
	}
	rs, _, err := c.conn.rawQuery(ctx, c.conn.sysBaseURL, sql, nil)
	if err != nil {
		return "", err
	}
	defer rs.Close()
	if !rs.Next() {
		if err := convertRowSetError(rs.Err()); err != nil {
			return "", err
		}
		return "", wrapErr(ErrOperationalError, "async query %q not found", c.asyncToken)
	}
	status, _ := rs.Row()[0].(string)
	return status, nil
}

// IsAsyncQueryRunning reports whether the last ExecuteAsync call's query
// is still executing.
func (c *Cursor) IsAsyncQueryRunning(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	status, err := c.queryAsyncStatus(ctx)
	if err != nil {
		return false, err
	}
	return status == "RUNNING" || status == "STARTED_EXECUTION", nil
}

// IsAsyncQuerySuccessful reports whether the last ExecuteAsync call's
// query finished successfully. Returns false while still running.
func (c *Cursor) IsAsyncQuerySuccessful(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	status, err := c.queryAsyncStatus(ctx)
	if err != nil {
		return false, err
	}
	return status == "ENDED_SUCCESSFULLY", nil
}

// GetAsyncQueryInfo returns the raw status string reported by the
// engine for the outstanding async query.
func (c *Cursor) GetAsyncQueryInfo(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queryAsyncStatus(ctx)
}

// CancelAsyncQuery requests cancellation of the outstanding async
// query.
func (c *Cursor) CancelAsyncQuery(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.asyncToken == "" {
		return wrapErr(ErrProgrammingError, "no async query is outstanding on this cursor")
	}
	planner := qmarkPlanner{}
	sql, _, err := planner.prepare("CANCEL QUERY WHERE query_id = ?", []any{c.asyncToken})
	if err != nil {
		return err
	}
	_, _, err = c.conn.rawQuery(ctx, c.conn.sysBaseURL, sql, nil)
	return err
}

// Close releases this cursor. Safe to call multiple times.
func (c *Cursor) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	var errs []error
	for _, rs := range c.results {
		if rs == nil {
			continue
		}
		if err := rs.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.conn.forgetCursor(c.id)
	if len(errs) > 0 {
		return joinErrors(errs...)
	}
	return nil
}
