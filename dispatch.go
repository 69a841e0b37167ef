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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// dispatchContext is the per-request outcome of dispatch coordination: which
// procedure to invoke, through which protocol, with which raw payload, and
// which CORS headers accompany the response. It is created fresh for every
// request and never shared.
type dispatchContext struct {
	// routed is true when a path rule matched; false when the request
	// reached the single-endpoint fallback protocol.
	routed bool

	// method is the resolved procedure wire name. Empty when the fallback
	// protocol was reached without a "method" query parameter.
	method string

	// payload is the merged raw argument payload: path/query captures with
	// JSON body keys merged over them (body wins on collision).
	payload map[string]any

	// cors is the accumulated, ordered CORS response header list.
	cors []corsHeader
}

// dispatchMethod resolves an incoming request to a procedure.
//
// Routed requests seed their payload from the rule's captures — one entry
// per declared parameter that was actually captured — and, for verbs other
// than GET and DELETE, merge the JSON body over the captures; body keys take
// precedence on collision. This two-stage merge is deliberate and is the
// only place payload precedence is decided.
//
// Unrouted requests may only use POST or OPTIONS (anything else is a 405);
// the target procedure comes from the "method" query parameter and the
// payload is the JSON body as a whole.
func (b *Bridge) dispatchMethod(r *http.Request) (*dispatchContext, *dispatchError) {
	dc := &dispatchContext{
		cors: []corsHeader{{"Vary", "Origin"}},
	}

	match, allowed := b.matchRequest(r.Method, r.URL.Path, r.URL.RawQuery)
	if match != nil {
		dc.routed = true
		dc.method = match.method
		dc.cors = append(dc.cors, corsHeader{
			"Access-Control-Allow-Methods",
			strings.Join(append(allowed, http.MethodOptions), ", "),
		})
		dc.payload = make(map[string]any)
		if m, ok := b.service.MethodByWireName(match.method); ok {
			for _, p := range m.Params {
				if v := match.captures.Get(p.WireName); v != nil {
					dc.payload[p.WireName] = v
				}
			}
		}
		if match.verb != http.MethodGet && match.verb != http.MethodDelete {
			body, derr := parseJSONBody(r)
			if derr != nil {
				return nil, derr
			}
			for k, v := range body {
				dc.payload[k] = v
			}
		}
	} else {
		if r.Method != http.MethodPost && r.Method != http.MethodOptions {
			// No rule supports this verb and the fallback protocol does
			// not apply. The response still advertises what the path does
			// support: its candidate rules' verbs, or the fallback pair.
			allowValue := "POST, OPTIONS"
			if len(allowed) > 0 {
				allowValue = strings.Join(append(allowed, http.MethodOptions), ", ")
			}
			return nil, &dispatchError{
				status: http.StatusMethodNotAllowed,
				cors: []corsHeader{
					{"Vary", "Origin"},
					{"Access-Control-Allow-Methods", allowValue},
				},
			}
		}
		dc.cors = append(dc.cors, corsHeader{"Access-Control-Allow-Methods", "POST, OPTIONS"})
		dc.method = r.URL.Query().Get("method")
		body, derr := parseJSONBody(r)
		if derr != nil {
			return nil, derr
		}
		dc.payload = body
	}

	if b.allowedHeaders != "" {
		dc.cors = append(dc.cors, corsHeader{"Access-Control-Allow-Headers", b.allowedHeaders})
	}
	if origin := r.Header.Get("Origin"); origin != "" && b.allowsOrigin(origin) {
		dc.cors = append(dc.cors, corsHeader{"Access-Control-Allow-Origin", origin})
	}
	return dc, nil
}

// parseJSONBody reads the request body as a flat JSON object. An empty body
// is an empty object; anything that is not a JSON object is a 400.
func parseJSONBody(r *http.Request) (map[string]any, *dispatchError) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, &dispatchError{
			status:  http.StatusBadRequest,
			message: "Invalid JSON payload: cannot read request body.",
		}
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]any{}, nil
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &dispatchError{
			status:  http.StatusBadRequest,
			message: fmt.Sprintf("Invalid JSON payload: '%s'.", string(data)),
		}
	}
	return payload, nil
}
