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

package types_test

import (
	"testing"

	"github.com/firebolt-db/firebolt-go-sdk/types"
	"github.com/stretchr/testify/require"
)

func TestParseTypeStringScalars(t *testing.T) {
	r := require.New(t)
	cases := map[string]types.Type{
		"Int32":    types.Int,
		"UInt64":   types.Int,
		"Float64":  types.Float,
		"String":   types.Str,
		"Date":     types.Date,
		"DateTime": types.DateTime,
		"Boolean":  types.Bool,
		"Bytea":    types.Bytes,
		"Nothing":  types.Null,
	}
	for raw, want := range cases {
		got, err := types.ParseTypeString(raw)
		r.NoError(err, raw)
		r.Equal(want.Kind, got.Kind, raw)
	}
}

func TestParseTypeStringUnknownFallsBackToStr(t *testing.T) {
	r := require.New(t)
	got, err := types.ParseTypeString("SomeFutureType")
	r.NoError(err)
	r.Equal(types.KindStr, got.Kind)
}

func TestParseTypeStringArray(t *testing.T) {
	r := require.New(t)
	got, err := types.ParseTypeString("Array(Int32)")
	r.NoError(err)
	r.Equal(types.KindArray, got.Kind)
	r.Equal(types.KindInt, got.Elem.Kind)
}

func TestParseTypeStringNestedArray(t *testing.T) {
	r := require.New(t)
	got, err := types.ParseTypeString("Array(Array(String))")
	r.NoError(err)
	r.Equal(types.KindArray, got.Kind)
	r.Equal(types.KindArray, got.Elem.Kind)
	r.Equal(types.KindStr, got.Elem.Elem.Kind)
}

func TestParseTypeStringNullable(t *testing.T) {
	r := require.New(t)
	got, err := types.ParseTypeString("Nullable(Int32)")
	r.NoError(err)
	r.Equal(types.KindInt, got.Kind)
	r.True(got.Nullable)
}

func TestParseTypeStringDecimal(t *testing.T) {
	r := require.New(t)
	got, err := types.ParseTypeString("Decimal(38, 30)")
	r.NoError(err)
	r.Equal(types.KindDecimal, got.Kind)
	r.Equal(38, got.Precision)
	r.Equal(30, got.Scale)

	got, err = types.ParseTypeString("numeric(10,2)")
	r.NoError(err)
	r.Equal(types.KindDecimal, got.Kind)
}

func TestParseTypeStringDecimalMalformedFallsBackToStr(t *testing.T) {
	r := require.New(t)
	got, err := types.ParseTypeString("Decimal(oops)")
	r.NoError(err)
	r.Equal(types.KindStr, got.Kind)
}

func TestParseTypeStringDateTime64(t *testing.T) {
	r := require.New(t)
	got, err := types.ParseTypeString("DateTime64(6)")
	r.NoError(err)
	r.Equal(types.KindDateTime64, got.Kind)
	r.Equal(6, got.Precision)
}

func TestParseTypeStringStruct(t *testing.T) {
	r := require.New(t)
	got, err := types.ParseTypeString("struct(a Int32, b String)")
	r.NoError(err)
	r.Equal(types.KindStruct, got.Kind)
	r.Len(got.Fields, 2)
	r.Equal("a", got.Fields[0].Name)
	r.Equal(types.KindInt, got.Fields[0].Type.Kind)
	r.Equal("b", got.Fields[1].Name)
	r.Equal(types.KindStr, got.Fields[1].Type.Kind)
}

func TestParseTypeStringStructBacktickedName(t *testing.T) {
	r := require.New(t)
	got, err := types.ParseTypeString("struct(`field one` Int32)")
	r.NoError(err)
	r.Len(got.Fields, 1)
	r.Equal("field one", got.Fields[0].Name)
}

func TestParseTypeStringStructNested(t *testing.T) {
	r := require.New(t)
	got, err := types.ParseTypeString("struct(a struct(b Int32, c String), d Array(Int32))")
	r.NoError(err)
	r.Len(got.Fields, 2)
	r.Equal(types.KindStruct, got.Fields[0].Type.Kind)
	r.Len(got.Fields[0].Type.Fields, 2)
	r.Equal(types.KindArray, got.Fields[1].Type.Kind)
}

func TestParseTypeStringNotAString(t *testing.T) {
	// ParseTypeString itself only ever receives a string at the Go type
	// level, so this checks the nearest case: an empty type string falls
	// back to Str. The rowset decoders read the column type into a Go
	// string field, so a non-string type payload fails there as a JSON
	// decoding error before ParseTypeString is reached.
	r := require.New(t)
	got, err := types.ParseTypeString("")
	r.NoError(err)
	r.Equal(types.KindStr, got.Kind)
}
