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
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FormatLiteral converts a Go-native value into the SQL literal text used
// for client-side (qmark) parameter substitution.
// v1 selects the legacy escaping rules (backslash doubled in strings).
func FormatLiteral(v any, v1 bool) (string, error) {
	if v == nil {
		return "NULL", nil
	}
	switch val := v.(type) {
	case string:
		return formatStringLiteral(val, v1), nil
	case bool:
		if val {
			return "true", nil
		}
		return "false", nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case decimal.Decimal:
		return val.String(), nil
	case DateValue:
		return "'" + val.String() + "'", nil
	case time.Time:
		return "'" + formatDateTimeUTC(val) + "'", nil
	case []byte:
		return formatBytesLiteral(val), nil
	default:
		return formatViaReflection(v, v1)
	}
}

// formatStringLiteral escapes s one source character at a time against a
// fixed substitution table, matching the reference client's per-character
// escape map - a sequence of whole-string ReplaceAll passes would
// re-escape a backslash this function itself just inserted (e.g. the "\0"
// it writes for a NUL byte) when a later pass doubles backslashes for v1.
func formatStringLiteral(s string, v1 bool) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\'':
			sb.WriteString("''")
		case 0:
			sb.WriteString(`\0`)
		case '\\':
			if v1 {
				sb.WriteString(`\\`)
			} else {
				sb.WriteByte(c)
			}
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}

func formatDateTimeUTC(t time.Time) string {
	return t.UTC().Format(dateTimeLayoutNoTZ)
}

func formatBytesLiteral(b []byte) string {
	var sb strings.Builder
	sb.WriteString("E'")
	for _, c := range b {
		fmt.Fprintf(&sb, `\x%02x`, c)
	}
	sb.WriteString("'")
	return sb.String()
}

// formatViaReflection handles slices (Array literals: [e1, e2, ...]) and
// rejects anything else with a DataError for an unsupported type.
func formatViaReflection(v any, v1 bool) (string, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return "", dataErrorf("unsupported literal type %T", v)
	}
	parts := make([]string, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		s, err := FormatLiteral(rv.Index(i).Interface(), v1)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return "[" + strings.Join(parts, ", ") + "]", nil
}
