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

package jsoncodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivaas.dev/rpcbridge/descriptor"
)

var (
	stringType = descriptor.Type{
		Name: "text",
		New:  func() any { return new(string) },
	}
	intType = descriptor.Type{
		Name: "int64",
		New:  func() any { return new(int64) },
	}
	optionalStringType = descriptor.Type{
		Name:     "text",
		Nullable: true,
		New:      func() any { return new(string) },
	}
)

func TestCodec_Decode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		typ     descriptor.Type
		value   any
		want    any
		wantErr error
	}{
		{
			name:  "string",
			typ:   stringType,
			value: "hello",
			want:  "hello",
		},
		{
			name:  "integer",
			typ:   intType,
			value: float64(42),
			want:  int64(42),
		},
		{
			name:  "null for nullable type",
			typ:   optionalStringType,
			value: nil,
			want:  nil,
		},
		{
			name:    "null for non-nullable type",
			typ:     stringType,
			value:   nil,
			wantErr: ErrNotNullable,
		},
		{
			name:    "missing constructor",
			typ:     descriptor.Type{Name: "text"},
			value:   "hello",
			wantErr: ErrNoConstructor,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := New().Decode(tt.typ, tt.value)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCodec_Decode_RejectsShapeMismatch(t *testing.T) {
	t.Parallel()

	codec := New()

	_, err := codec.Decode(stringType, float64(42))
	assert.Error(t, err, "a number must not coerce into a string")

	_, err = codec.Decode(stringType, []string{"a", "b"})
	assert.Error(t, err, "a list must not coerce into a scalar")

	_, err = codec.Decode(intType, "42")
	assert.Error(t, err, "a numeric string must not coerce into an integer")
}

func TestCodec_Decode_Struct(t *testing.T) {
	t.Parallel()

	type profile struct {
		Login string `json:"login" validate:"required"`
		Age   int    `json:"age"`
	}
	profileType := descriptor.Type{
		Name: "profile",
		New:  func() any { return new(profile) },
	}

	got, err := New().Decode(profileType, map[string]any{
		"login": "octocat",
		"age":   float64(7),
	})
	require.NoError(t, err)
	assert.Equal(t, profile{Login: "octocat", Age: 7}, got)
}

func TestCodec_Decode_Validation(t *testing.T) {
	t.Parallel()

	type profile struct {
		Login string `json:"login" validate:"required"`
	}
	profileType := descriptor.Type{
		Name: "profile",
		New:  func() any { return new(profile) },
	}

	codec := New(WithValidation())

	_, err := codec.Decode(profileType, map[string]any{"login": ""})
	assert.Error(t, err, "required field left empty must fail validation")

	got, err := codec.Decode(profileType, map[string]any{"login": "octocat"})
	require.NoError(t, err)
	assert.Equal(t, profile{Login: "octocat"}, got)

	// Validation only applies to struct-shaped values.
	got, err = codec.Decode(stringType, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestCodec_Encode(t *testing.T) {
	t.Parallel()

	type profile struct {
		Login string `json:"login"`
		Age   int    `json:"age"`
	}

	tests := []struct {
		name  string
		value any
		want  any
	}{
		{
			name:  "nil",
			value: nil,
			want:  nil,
		},
		{
			name:  "string",
			value: "hello",
			want:  "hello",
		},
		{
			name:  "struct becomes generic tree",
			value: profile{Login: "octocat", Age: 7},
			want:  map[string]any{"login": "octocat", "age": float64(7)},
		},
		{
			name:  "slice becomes generic tree",
			value: []int{1, 2},
			want:  []any{float64(1), float64(2)},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := New().Encode(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCodec_Encode_Unencodable(t *testing.T) {
	t.Parallel()

	_, err := New().Encode(make(chan int))
	assert.Error(t, err)
}

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	codec := New()
	decoded, err := codec.Decode(intType, float64(42))
	require.NoError(t, err)
	tree, err := codec.Encode(decoded)
	require.NoError(t, err)
	assert.Equal(t, float64(42), tree)
}
