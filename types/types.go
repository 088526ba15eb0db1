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

import "fmt"

// Kind tags the variant of a Type, the tagged union described in
// the wire type-string grammar.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindStr
	KindBool
	KindDate
	KindDateTime
	KindDecimal
	KindDateTime64
	KindArray
	KindStruct
	KindBytes
	KindNull
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindStr:
		return "Str"
	case KindBool:
		return "Bool"
	case KindDate:
		return "Date"
	case KindDateTime:
		return "DateTime"
	case KindDecimal:
		return "Decimal"
	case KindDateTime64:
		return "DateTime64"
	case KindArray:
		return "Array"
	case KindStruct:
		return "Struct"
	case KindBytes:
		return "Bytes"
	case KindNull:
		return "Null"
	default:
		return "Unknown"
	}
}

// StructField is one ordered field of a Struct type. Field order is
// preserved (not a plain Go map) so column display order stays stable.
type StructField struct {
	Name string
	Type Type
}

// Type is the tagged union of every SQL type this driver understands.
// Nullable is a per-value flag recorded from a `Nullable(T)` type string
// (nullable columns are reported this way); the wrapped Kind/Elem/Fields describe T
// itself, not a distinct "Nullable" variant.
type Type struct {
	Kind Kind

	// Elem is the element type for KindArray.
	Elem *Type

	// Fields is the ordered field list for KindStruct.
	Fields []StructField

	// Precision/Scale apply to KindDecimal; Precision alone applies to
	// KindDateTime64 (sub-second digits).
	Precision int
	Scale     int

	// Nullable records whether the original type string was wrapped in
	// Nullable(...); null values are always accepted regardless.
	Nullable bool
}

func (t Type) String() string {
	switch t.Kind {
	case KindArray:
		return fmt.Sprintf("Array(%s)", t.Elem.String())
	case KindDecimal:
		return fmt.Sprintf("Decimal(%d,%d)", t.Precision, t.Scale)
	case KindDateTime64:
		return fmt.Sprintf("DateTime64(%d)", t.Precision)
	case KindStruct:
		out := "Struct("
		for i, f := range t.Fields {
			if i > 0 {
				out += ", "
			}
			out += f.Name + " " + f.Type.String()
		}
		return out + ")"
	default:
		return t.Kind.String()
	}
}

var (
	Int      = Type{Kind: KindInt}
	Float    = Type{Kind: KindFloat}
	Str      = Type{Kind: KindStr}
	Bool     = Type{Kind: KindBool}
	Date     = Type{Kind: KindDate}
	DateTime = Type{Kind: KindDateTime}
	Bytes    = Type{Kind: KindBytes}
	Null     = Type{Kind: KindNull}
)

// Array builds an Array(elem) type.
func Array(elem Type) Type { return Type{Kind: KindArray, Elem: &elem} }

// Decimal builds a Decimal(precision,scale) type.
func Decimal(precision, scale int) Type {
	return Type{Kind: KindDecimal, Precision: precision, Scale: scale}
}

// DateTime64 builds a DateTime64(precision) type.
func DateTime64(precision int) Type {
	return Type{Kind: KindDateTime64, Precision: precision}
}

// Struct builds a Struct(field...) type, preserving field order.
func Struct(fields ...StructField) Type {
	return Type{Kind: KindStruct, Fields: fields}
}
