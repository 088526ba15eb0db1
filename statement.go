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
	"fmt"
	"regexp"
	"strings"

	"github.com/firebolt-db/firebolt-go-sdk/types"
)

// rxSet recognizes a (non-parameterized) "SET key = value" statement,
// the one statement shape the cursor handles itself: it sends the SET to
// the engine as a probe and, once accepted, stages the pair as a session
// parameter for later requests.
var rxSet = regexp.MustCompile(`(?is)^\s*SET\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*=\s*(.+?)\s*;?\s*$`)

// matchSet reports whether sql is a SET statement, returning the
// unquoted, unescaped key and value text.
func matchSet(sql string) (key, value string, ok bool) {
	m := rxSet.FindStringSubmatch(sql)
	if m == nil {
		return "", "", false
	}
	v := strings.TrimSpace(m[2])
	v = strings.TrimSuffix(strings.TrimPrefix(v, "'"), "'")
	v = strings.ReplaceAll(v, "''", "'")
	return m[1], v, true
}

// splitStatements splits a multi-statement SQL string on top-level
// semicolons, ignoring any that appear inside single-quoted strings.
// Empty statements (trailing semicolon, blank input) are dropped.
func splitStatements(sql string) []string {
	var out []string
	var cur strings.Builder
	inQuote := false
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			cur.WriteByte(c)
		case c == ';' && !inQuote:
			if s := strings.TrimSpace(cur.String()); s != "" {
				out = append(out, s)
			}
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// wireParam is one positional parameter sent alongside a fb_numeric
// query, rather than inlined into the SQL text.
type wireParam struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// planner turns (sql, args) into the text actually POSTed to the
// engine, plus any side-channel parameters. qmarkPlanner and
// fbNumericPlanner are the two Go-idiomatic small-interface
// implementations instead of a single function branching on a style
// field, mirroring the sum-type-via-interface shape used for RowSet.
type planner interface {
	prepare(sql string, args []any) (text string, params []wireParam, err error)
}

type qmarkPlanner struct{ v1 bool }

// prepare walks sql byte by byte, substituting each unescaped, unquoted
// '?' with args[i] formatted as a SQL literal via types.FormatLiteral,
// in order. A mismatched arg count is a DataError: the caller asked for
// more or fewer substitutions than it supplied.
func (p qmarkPlanner) prepare(sql string, args []any) (string, []wireParam, error) {
	var out strings.Builder
	inQuote := false
	argi := 0
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			out.WriteByte(c)
		case c == '?' && !inQuote:
			if argi >= len(args) {
				return "", nil, wrapErr(ErrDataError,
					"not enough parameters supplied: statement has more than %d placeholders", len(args))
			}
			lit, err := types.FormatLiteral(args[argi], p.v1)
			if err != nil {
				return "", nil, wrapCause(ErrDataError, err, "formatting parameter %d", argi)
			}
			out.WriteString(lit)
			argi++
		default:
			out.WriteByte(c)
		}
	}
	if argi != len(args) {
		return "", nil, wrapErr(ErrDataError,
			"too many parameters supplied: statement has %d placeholders, got %d arguments", argi, len(args))
	}
	return out.String(), nil, nil
}

type fbNumericPlanner struct{}

var rxNumericPlaceholder = regexp.MustCompile(`\$([0-9]+)`)

// prepare leaves sql untouched and instead returns args as named
// positional wire parameters ($1, $2, ...), for engines that accept
// server-side parameter binding. It still validates that every
// placeholder present in sql has a corresponding argument.
func (fbNumericPlanner) prepare(sql string, args []any) (string, []wireParam, error) {
	maxIdx := 0
	for _, m := range rxNumericPlaceholder.FindAllStringSubmatch(sql, -1) {
		var n int
		fmt.Sscanf(m[1], "%d", &n)
		if n > maxIdx {
			maxIdx = n
		}
	}
	if maxIdx > len(args) {
		return "", nil, wrapErr(ErrDataError,
			"statement references $%d but only %d arguments supplied", maxIdx, len(args))
	}
	params := make([]wireParam, len(args))
	for i, a := range args {
		params[i] = wireParam{Name: fmt.Sprintf("$%d", i+1), Value: a}
	}
	return sql, params, nil
}

// newPlanner picks the planner for a paramstyle, as recorded in
// constants.go (ParamStyleQmark / ParamStyleFbNumeric).
func newPlanner(style string, v1 bool) (planner, error) {
	switch style {
	case ParamStyleQmark:
		return qmarkPlanner{v1: v1}, nil
	case ParamStyleFbNumeric:
		return fbNumericPlanner{}, nil
	default:
		return nil, wrapErr(ErrNotSupported, "unsupported paramstyle %q", style)
	}
}
