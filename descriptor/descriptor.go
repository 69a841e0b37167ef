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

// Package descriptor defines the static description of a remote-procedure
// service: its procedures, their parameter signatures, return types, declared
// error variants, and optional HTTP URL mappings.
//
// A Service is constructed once at startup and is immutable afterwards. All
// validation (bijective name tables, registered handlers, unique parameter
// names) happens at construction time; nothing is discovered lazily per
// request.
package descriptor

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrDuplicateMethodName indicates two procedures share a wire name.
	ErrDuplicateMethodName = errors.New("duplicate method wire name")

	// ErrDuplicateMethodKey indicates two procedures share an internal key.
	ErrDuplicateMethodKey = errors.New("duplicate method key")

	// ErrDuplicateParamName indicates a procedure declares two parameters
	// with the same wire name.
	ErrDuplicateParamName = errors.New("duplicate parameter wire name")

	// ErrNilHandler indicates a procedure has no registered handler.
	ErrNilHandler = errors.New("method has no handler")
)

// Type describes a declared wire type. It is deliberately minimal: the
// codec owns all knowledge of how values of the type are encoded, while the
// descriptor only carries what dispatch needs.
type Type struct {
	// Name is the type's wire-visible name, used in error messages.
	Name string

	// Nullable reports whether null is a valid value of the type. For a
	// parameter it doubles as optionality: a parameter of a nullable type
	// may be absent from the request payload.
	Nullable bool

	// New returns a pointer to a fresh zero value of the type's Go
	// representation, used by codecs as a decode target.
	New func() any
}

// Param is one declared procedure parameter.
type Param struct {
	// Name is the internal argument name the handler receives.
	Name string

	// WireName is the externally visible name used in request payloads and
	// URI templates. Name and WireName often coincide.
	WireName string

	// Type is the parameter's declared type.
	Type Type
}

// HTTPResource is an optional URL-mapping annotation binding a procedure to
// a URI template and an HTTP verb.
type HTTPResource struct {
	// Path is a URI template, e.g. "/users/{id}" or "/search?q={term}".
	Path string

	// Method is the HTTP verb, e.g. "GET". Case-insensitive.
	Method string
}

// HandlerFunc is the signature of a procedure implementation. It receives
// the request context and the fully decoded argument set, keyed by each
// parameter's internal Name, and returns the procedure's result value.
//
// A returned error that implements ProcedureError with a tag declared by the
// procedure is serialized as the procedure's own error envelope; any other
// error is an internal server fault.
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// Method describes one remote procedure.
type Method struct {
	// Name is the procedure's public wire name.
	Name string

	// Key is the internal handler identifier. The Name-to-Key mapping is
	// bijective across the service.
	Key string

	// Params is the ordered parameter list.
	Params []Param

	// Return is the declared return type.
	Return Type

	// ErrorTags is the set of declared error-variant tags the procedure may
	// raise as expected outcomes.
	ErrorTags []string

	// HTTP is the optional URL mapping. Procedures without one are reachable
	// only through the single-endpoint fallback protocol.
	HTTP *HTTPResource

	// Handler is the procedure implementation. Required.
	Handler HandlerFunc
}

// DeclaresError reports whether tag is one of the method's declared
// error-variant tags.
func (m *Method) DeclaresError(tag string) bool {
	return slices.Contains(m.ErrorTags, tag)
}

// Service is an immutable table of remote procedures. Build one with
// NewService at startup; afterwards it is safe to share across concurrent
// requests without synchronization.
type Service struct {
	name    string
	methods []Method
	byWire  map[string]*Method
	byKey   map[string]*Method
}

// NewService validates and assembles a service descriptor.
//
// It fails when two procedures share a wire name or an internal key (the two
// name spaces must each be unique so the wire-to-internal mapping is
// bijective), when a procedure has no handler, or when a procedure declares
// two parameters with the same wire name. These are startup faults: a
// service must not serve requests from a half-valid descriptor.
func NewService(name string, methods ...Method) (*Service, error) {
	s := &Service{
		name:    name,
		methods: slices.Clone(methods),
		byWire:  make(map[string]*Method, len(methods)),
		byKey:   make(map[string]*Method, len(methods)),
	}
	for i := range s.methods {
		m := &s.methods[i]
		if m.Handler == nil {
			return nil, fmt.Errorf("descriptor: %w: %s", ErrNilHandler, m.Name)
		}
		if _, dup := s.byWire[m.Name]; dup {
			return nil, fmt.Errorf("descriptor: %w: %s", ErrDuplicateMethodName, m.Name)
		}
		if _, dup := s.byKey[m.Key]; dup {
			return nil, fmt.Errorf("descriptor: %w: %s", ErrDuplicateMethodKey, m.Key)
		}
		seen := make(map[string]struct{}, len(m.Params))
		for _, p := range m.Params {
			if _, dup := seen[p.WireName]; dup {
				return nil, fmt.Errorf("descriptor: %w: %s.%s", ErrDuplicateParamName, m.Name, p.WireName)
			}
			seen[p.WireName] = struct{}{}
		}
		s.byWire[m.Name] = m
		s.byKey[m.Key] = m
	}
	return s, nil
}

// Name returns the service name.
func (s *Service) Name() string {
	return s.name
}

// Methods returns the service's procedures in declaration order.
func (s *Service) Methods() []Method {
	return slices.Clone(s.methods)
}

// MethodByWireName resolves a public wire name to its procedure.
func (s *Service) MethodByWireName(name string) (*Method, bool) {
	m, ok := s.byWire[name]
	return m, ok
}

// MethodByKey resolves an internal handler identifier to its procedure.
func (s *Service) MethodByKey(key string) (*Method, bool) {
	m, ok := s.byKey[key]
	return m, ok
}
