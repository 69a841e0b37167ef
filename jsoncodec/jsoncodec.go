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

// Package jsoncodec provides the default descriptor.Codec backed by
// encoding/json.
//
// Decoding is strict: a generic JSON tree is re-marshaled and unmarshaled
// into a fresh value of the declared type, so a string never silently
// coerces into a number and a list never decodes into a scalar. Encoding
// round-trips a typed value back into a generic tree, which guarantees
// Encode(Decode(t, v)) == v for every representable v.
//
// Struct validation can be layered on top with WithValidation, which runs
// go-playground/validator tags against decoded struct values:
//
//	codec := jsoncodec.New(jsoncodec.WithValidation())
package jsoncodec

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"

	"rivaas.dev/rpcbridge/descriptor"
)

var (
	// ErrNotNullable indicates a null value was decoded against a
	// non-nullable type.
	ErrNotNullable = errors.New("null is not a value of a non-nullable type")

	// ErrNoConstructor indicates the declared type carries no New function,
	// leaving the codec without a decode target.
	ErrNoConstructor = errors.New("type has no constructor")
)

// Option defines functional options for codec configuration.
type Option func(*Codec)

// WithValidation enables go-playground/validator struct validation of
// decoded values. Validation runs after a successful unmarshal and only for
// struct-shaped types; a validation failure is reported as a decode failure.
func WithValidation() Option {
	return func(c *Codec) {
		c.validate = validator.New(validator.WithRequiredStructEnabled())
	}
}

// Codec is the default JSON codec. The zero value is not usable; construct
// one with New. A Codec is stateless apart from its configuration and safe
// for concurrent use.
type Codec struct {
	validate *validator.Validate
}

// New constructs a JSON codec.
func New(opts ...Option) *Codec {
	c := &Codec{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Decode converts a generic JSON tree into a typed value of t.
func (c *Codec) Decode(t descriptor.Type, value any) (any, error) {
	if value == nil {
		if t.Nullable {
			return nil, nil
		}
		return nil, fmt.Errorf("jsoncodec: %w: %s", ErrNotNullable, t.Name)
	}
	if t.New == nil {
		return nil, fmt.Errorf("jsoncodec: %w: %s", ErrNoConstructor, t.Name)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("jsoncodec: cannot re-encode value for %s: %w", t.Name, err)
	}
	target := t.New()
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("jsoncodec: cannot decode %s: %w", t.Name, err)
	}
	decoded := reflect.ValueOf(target).Elem().Interface()
	if c.validate != nil {
		if err := c.validateValue(decoded); err != nil {
			return nil, fmt.Errorf("jsoncodec: %s failed validation: %w", t.Name, err)
		}
	}
	return decoded, nil
}

// Encode converts a typed value into a generic JSON tree.
func (c *Codec) Encode(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("jsoncodec: cannot encode %T: %w", value, err)
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("jsoncodec: cannot build tree for %T: %w", value, err)
	}
	return tree, nil
}

// validateValue runs struct validation when the decoded value (or the value
// it points to) is a struct.
func (c *Codec) validateValue(value any) error {
	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	return c.validate.Struct(v.Interface())
}
