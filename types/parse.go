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

package types

import (
	"fmt"
	"strconv"
	"strings"
)

// scalarNames is the server catalog of recognized scalar type names,
// matched case-sensitively.
var scalarNames = map[string]Type{
	"Int8":     Int,
	"Int16":    Int,
	"Int32":    Int,
	"Int64":    Int,
	"UInt8":    Int,
	"UInt16":   Int,
	"UInt32":   Int,
	"UInt64":   Int,
	"Float32":  Float,
	"Float64":  Float,
	"String":   Str,
	"Date":     Date,
	"Date32":   Date,
	"DateTime": DateTime,
	"Nothing":  Null,
	"Boolean":  Bool,
	"Bytea":    Bytes,
}

// DataError is returned when the codec receives an input that can't
// possibly represent the thing it's being asked to represent (e.g. a
// non-string type payload). It's a thin local type rather than a
// dependency back on the root package's error hierarchy, since types must
// not import firebolt (that would be a cycle) - the root package's
// statement code wraps any FormatLiteral error, this one included, into
// its own ErrDataError.
type DataError struct {
	Msg string
}

func (e *DataError) Error() string { return e.Msg }

func dataErrorf(format string, args ...any) *DataError {
	return &DataError{Msg: fmt.Sprintf(format, args...)}
}

// ParseTypeString parses a raw server type string into a Type, following
// the ordered recognition rules below. Unknown scalar names
// never fail - they degrade to Str, since surfacing as text is the safe
// default.
func ParseTypeString(raw string) (Type, error) {
	s := strings.TrimSpace(raw)

	// rule 1: Array(...)
	if inner, ok := unwrap(s, "Array("); ok {
		elem, err := ParseTypeString(inner)
		if err != nil {
			return Type{}, err
		}
		return Array(elem), nil
	}

	// rule 2: Nullable(...)
	if inner, ok := unwrap(s, "Nullable("); ok {
		t, err := ParseTypeString(inner)
		if err != nil {
			return Type{}, err
		}
		t.Nullable = true
		return t, nil
	}

	// rule 3: Decimal(p,s) / numeric(p,s)
	if inner, ok := unwrap(s, "Decimal("); ok {
		if t, ok := parseDecimalArgs(inner); ok {
			return t, nil
		}
		// malformed payload falls back to rule 7 (unknown -> Str)
		return Str, nil
	}
	if inner, ok := unwrap(s, "numeric("); ok {
		if t, ok := parseDecimalArgs(inner); ok {
			return t, nil
		}
		return Str, nil
	}

	// rule 4: DateTime64(precision)
	if inner, ok := unwrap(s, "DateTime64("); ok {
		p, err := strconv.Atoi(strings.TrimSpace(inner))
		if err != nil {
			return Str, nil
		}
		return DateTime64(p), nil
	}

	// rule 5: struct(...)
	if inner, ok := unwrap(s, "struct("); ok {
		fields, err := parseStructFields(inner)
		if err != nil {
			return Type{}, err
		}
		return Struct(fields...), nil
	}

	// rule 6: recognized scalar names
	if t, ok := scalarNames[s]; ok {
		return t, nil
	}

	// rule 7: unknown -> Str
	return Str, nil
}

// unwrap returns (content, true) if s starts with prefix and ends with a
// matching closing paren for the one opened by prefix's trailing "(".
func unwrap(s, prefix string) (string, bool) {
	if !strings.HasPrefix(s, prefix) || !strings.HasSuffix(s, ")") {
		return "", false
	}
	return s[len(prefix) : len(s)-1], true
}

func parseDecimalArgs(inner string) (Type, bool) {
	parts := splitTopLevel(inner, ',')
	if len(parts) != 2 {
		return Type{}, false
	}
	p, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	s, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return Type{}, false
	}
	return Decimal(p, s), true
}

// splitTopLevel splits s on sep, ignoring occurrences nested inside
// parentheses, used both for Decimal args and struct field lists.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// parseStructFields splits "`name 1` type1, name2 type2" into ordered
// fields, honoring backtick-quoted names with embedded spaces (rule 5).
func parseStructFields(inner string) ([]StructField, error) {
	rawFields := splitTopLevel(inner, ',')
	fields := make([]StructField, 0, len(rawFields))
	for _, rf := range rawFields {
		rf = strings.TrimSpace(rf)
		if rf == "" {
			continue
		}
		name, rest, err := splitFieldNameAndType(rf)
		if err != nil {
			return nil, err
		}
		t, err := ParseTypeString(rest)
		if err != nil {
			return nil, err
		}
		fields = append(fields, StructField{Name: name, Type: t})
	}
	return fields, nil
}

func splitFieldNameAndType(field string) (name, rest string, err error) {
	if strings.HasPrefix(field, "`") {
		end := strings.Index(field[1:], "`")
		if end < 0 {
			return "", "", dataErrorf("struct field %q: unterminated backtick-quoted name", field)
		}
		name = field[1 : end+1]
		rest = strings.TrimSpace(field[end+2:])
		return name, rest, nil
	}
	sp := strings.IndexByte(field, ' ')
	if sp < 0 {
		return "", "", dataErrorf("struct field %q: missing type", field)
	}
	return field[:sp], strings.TrimSpace(field[sp+1:]), nil
}
