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

package rpcbridge

import "errors"

var (
	// ErrNilService indicates that New was given a nil service descriptor.
	ErrNilService = errors.New("service descriptor is nil")

	// ErrRootPathReserved indicates that a procedure's URL mapping binds the
	// root path, which is reserved for the fallback protocol.
	ErrRootPathReserved = errors.New("the root resource is reserved; disallowed to route to the root")

	// ErrTemplateUnsatisfied indicates that a procedure's URI template does
	// not declare a variable for every required parameter.
	ErrTemplateUnsatisfied = errors.New("template does not satisfy all required parameters")
)

// dispatchError is a request-time dispatch failure that maps directly to an
// HTTP status and an error-envelope message. It never escapes ServeHTTP.
type dispatchError struct {
	status  int
	message string
	cors    []corsHeader
}

func (e *dispatchError) Error() string {
	if e.message != "" {
		return e.message
	}
	return "dispatch failed"
}
