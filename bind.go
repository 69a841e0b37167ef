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
	"fmt"

	"rivaas.dev/rpcbridge/descriptor"
)

// bindError is an argument-binding failure; it always renders as a 400 with
// the given message.
type bindError struct {
	message string
}

func (e *bindError) Error() string {
	return e.message
}

// bindArguments validates the merged raw payload against the procedure's
// declared signature and produces the typed argument set the handler
// receives, keyed by internal parameter name.
//
// A required parameter absent from the payload fails with a message naming
// the parameter. Every present value — including a repeated query capture,
// which arrives as a list — goes through the codec against the declared
// type; a list bound to a scalar-typed parameter is therefore rejected here
// rather than reaching the handler in an ambiguous shape.
func (b *Bridge) bindArguments(m *descriptor.Method, payload map[string]any) (map[string]any, *bindError) {
	args := make(map[string]any, len(m.Params))
	for _, p := range m.Params {
		raw, present := payload[p.WireName]
		if !present && !p.Type.Nullable {
			return nil, &bindError{fmt.Sprintf(
				"An argument named '%s' is missing, it is required.", p.WireName,
			)}
		}
		decoded, err := b.codec.Decode(p.Type, raw)
		if err != nil {
			return nil, &bindError{fmt.Sprintf(
				"Incorrect value for argument '%s'; expected a value of type '%s'.",
				p.WireName, p.Type.Name,
			)}
		}
		args[p.Name] = decoded
	}
	return args, nil
}
