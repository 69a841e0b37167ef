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

// Package rpcbridge exposes a table of remote procedures over HTTP with JSON
// payloads.
//
// A Bridge is built from a descriptor.Service: each procedure carries a
// declared parameter signature, a return type, a set of declared error
// variants, and an optional URL mapping (URI template plus verb). Procedures
// with a URL mapping are routed by path; every procedure is also reachable
// through the single-endpoint fallback protocol, which targets the root path
// and selects the procedure with a "method" query parameter.
//
// The Bridge implements http.Handler and owns no sockets, timeouts, or
// worker pools; the hosting server does. Per request it:
//
//  1. Matches the path and query string against the compiled rule table
//     (most-specific rule first, ties broken deterministically).
//  2. Negotiates cross-origin access and short-circuits OPTIONS requests.
//  3. Binds path/query captures and the JSON body into a validated,
//     typed argument set.
//  4. Invokes the procedure's handler.
//  5. Validates the result against the declared return type by round-tripping
//     it through the codec, then renders it — or a uniform JSON error
//     envelope — back to the client.
//
// Basic usage:
//
//	svc, err := descriptor.NewService("user-service",
//	    descriptor.Method{
//	        Name: "get-user",
//	        Key:  "getUser",
//	        Params: []descriptor.Param{
//	            {Name: "id", WireName: "id", Type: descriptor.Type{
//	                Name: "text", New: func() any { return new(string) },
//	            }},
//	        },
//	        Return: descriptor.Type{Name: "user", New: func() any { return new(User) }},
//	        HTTP:   &descriptor.HTTPResource{Path: "/users/{id}", Method: "GET"},
//	        Handler: func(ctx context.Context, args map[string]any) (any, error) {
//	            return lookupUser(args["id"].(string))
//	        },
//	    },
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	bridge, err := rpcbridge.New(svc,
//	    rpcbridge.WithAllowedOrigins("*.example.com"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.ListenAndServe(":9322", bridge)
//
// Construction is strict: a malformed URI template, a duplicate template
// variable, a template bound to the root path, or a template that does not
// cover every required parameter of its procedure fails New. Nothing is
// validated lazily at request time.
//
// The Bridge, its rule table, and its origin matchers are immutable after
// New and safe for concurrent use. All per-request state is local to one
// ServeHTTP call.
package rpcbridge
