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

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"rivaas.dev/rpcbridge/descriptor"
)

// rpc resolves the procedure name, binds and validates arguments, invokes
// the handler, and validates the returned value. The handler call is the
// only blocking operation; timeouts and cancellation belong to the hosting
// transport via ctx.
func (b *Bridge) rpc(ctx context.Context, r *http.Request, dc *dispatchContext) response {
	m, ok := b.service.MethodByWireName(dc.method)
	if !ok {
		// A recognized route backed by no procedure is a 404; a bad
		// "method" query parameter on the fallback endpoint is the
		// caller's mistake.
		status := http.StatusBadRequest
		if dc.routed {
			status = http.StatusNotFound
		}
		return b.errorResponse(status, r, fmt.Sprintf("No service method `%s` found.", dc.method))
	}

	args, bindErr := b.bindArguments(m, dc.payload)
	if bindErr != nil {
		resp := b.errorResponse(http.StatusBadRequest, r, bindErr.message)
		resp.cors = dc.cors
		return resp
	}

	result, err := m.Handler(ctx, args)
	if err != nil {
		return b.handlerErrorResponse(r, dc, m, err)
	}

	tree, valid := b.checkReturn(m, result)
	if !valid {
		message := fmt.Sprintf(
			"The return type of the %s() method is %s, but its server-side "+
				"implementation has tried to return a value of an invalid type. "+
				"It is an internal server error and should be fixed by server-side.",
			m.Name, m.Return.Name,
		)
		if isNil(result) {
			message = fmt.Sprintf(
				"The return type of the %s() method is not optional, but its "+
					"server-side implementation has tried to return nothing "+
					"(i.e. null). It is an internal server error and should be "+
					"fixed by server-side.",
				m.Name,
			)
		}
		b.logger.Error("invalid return value",
			"service", b.service.Name(),
			"method", m.Name,
			"return_type", m.Return.Name,
			"nil_result", isNil(result),
		)
		resp := b.errorResponse(http.StatusInternalServerError, r, message)
		resp.cors = dc.cors
		return resp
	}

	return response{status: http.StatusOK, body: tree, cors: dc.cors}
}

// handlerErrorResponse renders an error returned by the handler. A declared
// error variant is an expected outcome: it is serialized through the codec
// as the procedure's own 400 envelope. Anything else is a server fault.
func (b *Bridge) handlerErrorResponse(r *http.Request, dc *dispatchContext, m *descriptor.Method, err error) response {
	var pe descriptor.ProcedureError
	if errors.As(err, &pe) && m.DeclaresError(pe.Tag()) {
		tree, encErr := b.codec.Encode(pe)
		if encErr == nil {
			return response{status: http.StatusBadRequest, body: tree, cors: dc.cors}
		}
		err = fmt.Errorf("cannot encode declared error %q: %w", pe.Tag(), encErr)
	}
	b.logger.Error("procedure failed with an undeclared error",
		"service", b.service.Name(),
		"method", m.Name,
		"error", err,
	)
	resp := b.errorResponse(http.StatusInternalServerError, r, "")
	resp.cors = dc.cors
	return resp
}

// checkReturn validates the handler's result against the declared return
// type by round-tripping it through the codec: encode, then decode against
// the declared type. A nil result is valid only for a nullable return type.
// On success it returns the encoded tree, ready to serve as the response
// body.
func (b *Bridge) checkReturn(m *descriptor.Method, result any) (any, bool) {
	if isNil(result) {
		return nil, m.Return.Nullable
	}
	tree, err := b.codec.Encode(result)
	if err != nil {
		return nil, false
	}
	if _, err := b.codec.Decode(m.Return, tree); err != nil {
		return nil, false
	}
	return tree, true
}

// isNil reports whether the handler result is nil, including a typed nil
// inside a non-nil interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
