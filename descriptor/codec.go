// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package descriptor

// Codec converts between typed values and generic JSON-like trees
// (the values produced by unmarshaling JSON into any: nil, bool, float64,
// string, []any, map[string]any).
//
// Both operations must be pure, and Encode must invert Decode:
// for every representable value v of type t,
// Encode(Decode(t, v)) produces a tree equal to v.
type Codec interface {
	// Decode converts a generic JSON tree into a typed value of t.
	// A nil tree decodes to nil only when t is nullable.
	Decode(t Type, value any) (any, error)

	// Encode converts a typed value into a generic JSON tree.
	Encode(value any) (any, error)
}

// ProcedureError is an error variant a procedure declares as an expected
// outcome. Handlers raise one by returning an error that implements this
// interface with a tag listed in the method's ErrorTags; the bridge then
// serializes the variant through the codec instead of reporting a fault.
type ProcedureError interface {
	error

	// Tag returns the variant's wire tag.
	Tag() string
}
