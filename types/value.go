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
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StructValue is an ordered field->value map, the in-memory shape of a
// parsed Struct(...) value. A plain Go map would lose the field order
// ParseTypeString preserves from the type string.
type StructValue struct {
	Names  []string
	Values []any
}

// Get returns the value for a field name, or nil, false if absent.
func (s *StructValue) Get(name string) (any, bool) {
	for i, n := range s.Names {
		if n == name {
			return s.Values[i], true
		}
	}
	return nil, false
}

const (
	dateLayout         = "2006-01-02"
	dateTimeLayoutNoTZ = "2006-01-02 15:04:05"
	dateTimeLayoutFrac = "2006-01-02 15:04:05.999999999"
)

// ParseValue converts a raw decoded JSON scalar (string, json.Number,
// bool, nil, []any, map[string]any) into a Go-native value for t, per the
// type-string to Go-value rules below. The caller's JSON decoder must have
// UseNumber() enabled so numeric tokens arrive as json.Number/string, not
// float64, to preserve arbitrary precision.
func ParseValue(raw any, t Type) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch t.Kind {
	case KindInt:
		return parseInt(raw)
	case KindFloat:
		return parseFloat(raw)
	case KindStr:
		return parseStr(raw)
	case KindBool:
		return parseBool(raw)
	case KindDate:
		return parseDate(raw)
	case KindDateTime:
		return parseDateTime(raw, 0)
	case KindDateTime64:
		return parseDateTime(raw, t.Precision)
	case KindDecimal:
		return parseDecimal(raw)
	case KindBytes:
		return parseBytes(raw)
	case KindArray:
		return parseArray(raw, *t.Elem)
	case KindStruct:
		return parseStruct(raw, t.Fields)
	case KindNull:
		return nil, nil
	default:
		return parseStr(raw)
	}
}

func numericString(raw any) (string, bool) {
	switch v := raw.(type) {
	case json.Number:
		return v.String(), true
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(v, 10), true
	default:
		return "", false
	}
}

func parseInt(raw any) (int64, error) {
	switch v := raw.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, dataErrorf("cannot parse %q as Int", v.String())
		}
		return int64(f), nil // truncates toward zero
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case string:
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, dataErrorf("cannot parse %q as Int", v)
		}
		return int64(f), nil
	default:
		return 0, dataErrorf("cannot parse %T as Int", raw)
	}
}

func parseFloat(raw any) (float64, error) {
	if s, ok := raw.(string); ok {
		switch strings.ToLower(s) {
		case "inf":
			return math.Inf(1), nil
		case "-inf":
			return math.Inf(-1), nil
		case "nan", "-nan":
			return math.NaN(), nil
		}
	}
	s, ok := numericString(raw)
	if !ok {
		return 0, dataErrorf("cannot parse %T as Float", raw)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, dataErrorf("cannot parse %q as Float", s)
	}
	return f, nil
}

func parseStr(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	default:
		return "", dataErrorf("cannot parse %T as Str", raw)
	}
}

func parseBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return false, dataErrorf("cannot parse %q as Bool", v.String())
		}
		return i != 0, nil
	case float64:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case string:
		return false, dataErrorf("cannot parse string %q as Bool", v)
	default:
		return false, dataErrorf("cannot parse %T as Bool", raw)
	}
}

// DateValue is a date-only value - a distinct Go type from time.Time so
// the literal formatter can tell a Date from a DateTime apart (the wire
// format and literal syntax differ: 'YYYY-MM-DD' vs 'YYYY-MM-DD HH:MM:SS').
type DateValue time.Time

func (d DateValue) String() string { return time.Time(d).Format(dateLayout) }

func parseDate(raw any) (DateValue, error) {
	s, ok := raw.(string)
	if !ok {
		return DateValue{}, dataErrorf("cannot parse %T as Date", raw)
	}
	// accept a full ISO datetime and truncate to the date portion.
	if len(s) >= len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return DateValue{}, dataErrorf("cannot parse %q as Date: %v", s, err)
	}
	return DateValue(t), nil
}

func parseDateTime(raw any, precision int) (time.Time, error) {
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, dataErrorf("cannot parse %T as DateTime", raw)
	}
	layouts := []string{
		"2006-01-02 15:04:05.999999999-07:00:00",
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999-0700",
		"2006-01-02 15:04:05.999999999",
		dateTimeLayoutNoTZ,
	}
	var lastErr error
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, dataErrorf("cannot parse %q as DateTime: %v", s, lastErr)
}

func parseDecimal(raw any) (decimal.Decimal, error) {
	s, ok := numericString(raw)
	if !ok {
		return decimal.Decimal{}, dataErrorf("cannot parse %T as Decimal", raw)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, dataErrorf("cannot parse %q as Decimal: %v", s, err)
	}
	return d, nil
}

func parseBytes(raw any) ([]byte, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, dataErrorf("cannot parse %T as Bytes", raw)
	}
	return decodeHexEscapes(s)
}

// decodeHexEscapes decodes a string of the form `\xHH\xHH...` into raw
// bytes.
func decodeHexEscapes(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	var out []byte
	for i := 0; i < len(s); {
		if s[i] != '\\' || i+3 >= len(s) || s[i+1] != 'x' {
			return nil, dataErrorf("malformed byte escape in %q", s)
		}
		hi := hexVal(s[i+2])
		lo := hexVal(s[i+3])
		if hi < 0 || lo < 0 {
			return nil, dataErrorf("malformed byte escape in %q", s)
		}
		out = append(out, byte(hi<<4|lo))
		i += 4
	}
	return out, nil
}

func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	default:
		return -1
	}
}

func parseArray(raw any, elem Type) ([]any, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, dataErrorf("cannot parse %T as Array", raw)
	}
	out := make([]any, len(list))
	for i, v := range list {
		pv, err := ParseValue(v, elem)
		if err != nil {
			return nil, err
		}
		out[i] = pv
	}
	return out, nil
}

func parseStruct(raw any, fields []StructField) (*StructValue, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, dataErrorf("cannot parse %T as Struct", raw)
	}
	sv := &StructValue{Names: make([]string, 0, len(fields)), Values: make([]any, 0, len(fields))}
	for _, f := range fields {
		v, err := ParseValue(obj[f.Name], f.Type)
		if err != nil {
			return nil, err
		}
		sv.Names = append(sv.Names, f.Name)
		sv.Values = append(sv.Values, v)
	}
	return sv, nil
}
