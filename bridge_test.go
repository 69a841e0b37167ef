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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"rivaas.dev/rpcbridge/descriptor"
)

type user struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type divByZero struct {
	Message string `json:"message"`
}

func (e *divByZero) Error() string { return e.Message }
func (e *divByZero) Tag() string   { return "div_by_zero" }

var (
	textType = descriptor.Type{
		Name: "text",
		New:  func() any { return new(string) },
	}
	optionalTextType = descriptor.Type{
		Name:     "text",
		Nullable: true,
		New:      func() any { return new(string) },
	}
	userType = descriptor.Type{
		Name: "user",
		New:  func() any { return new(user) },
	}
)

// testService builds the fixture service the bridge tests dispatch against.
func testService(t *testing.T) *descriptor.Service {
	t.Helper()

	svc, err := descriptor.NewService("fixture",
		descriptor.Method{
			Name: "get-user", Key: "get_user",
			Params: []descriptor.Param{{Name: "id", WireName: "id", Type: textType}},
			Return: userType,
			HTTP:   &descriptor.HTTPResource{Path: "/users/{id}", Method: "GET"},
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				return user{ID: args["id"].(string), Name: "Ada"}, nil
			},
		},
		descriptor.Method{
			Name: "update-user", Key: "update_user",
			Params: []descriptor.Param{
				{Name: "id", WireName: "id", Type: textType},
				{Name: "name", WireName: "name", Type: optionalTextType},
			},
			Return: userType,
			HTTP:   &descriptor.HTTPResource{Path: "/users/{id}", Method: "PUT"},
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				u := user{ID: args["id"].(string)}
				if name, ok := args["name"].(string); ok {
					u.Name = name
				}
				return u, nil
			},
		},
		descriptor.Method{
			Name: "search", Key: "search",
			Params: []descriptor.Param{{Name: "query", WireName: "term", Type: textType}},
			Return: textType,
			HTTP:   &descriptor.HTTPResource{Path: "/search?q={term}", Method: "GET"},
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				return args["query"], nil
			},
		},
		descriptor.Method{
			Name: "echo", Key: "echo",
			Params: []descriptor.Param{{Name: "text", WireName: "text", Type: textType}},
			Return: textType,
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				return args["text"], nil
			},
		},
		descriptor.Method{
			Name: "nothing", Key: "nothing",
			Return: textType,
			Handler: func(context.Context, map[string]any) (any, error) {
				return nil, nil
			},
		},
		descriptor.Method{
			Name: "bad-shape", Key: "bad_shape",
			Return: textType,
			Handler: func(context.Context, map[string]any) (any, error) {
				return 42, nil
			},
		},
		descriptor.Method{
			Name: "divide", Key: "divide",
			Return:    textType,
			ErrorTags: []string{"div_by_zero"},
			Handler: func(context.Context, map[string]any) (any, error) {
				return nil, &divByZero{Message: "divided by zero"}
			},
		},
		descriptor.Method{
			Name: "boom", Key: "boom",
			Return: textType,
			Handler: func(context.Context, map[string]any) (any, error) {
				return nil, errors.New("disk on fire")
			},
		},
	)
	require.NoError(t, err)
	return svc
}

func newTestBridge(t *testing.T, opts ...Option) *Bridge {
	t.Helper()
	b, err := New(testService(t), opts...)
	require.NoError(t, err)
	return b
}

func serve(b *Bridge, method, target, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	b.ServeHTTP(rec, r)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) any {
	t.Helper()
	var body any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestNew_NilService(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilService)
}

func TestMustNew_Panics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		MustNew(nil)
	})
}

func TestBridge_Service(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t)
	assert.Equal(t, "fixture", b.Service().Name())
}

func TestBridge_RoutedGet(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t)
	rec := serve(b, http.MethodGet, "/users/42", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
	assert.Equal(t, map[string]any{"id": "42", "name": "Ada"}, decodeBody(t, rec))
}

func TestBridge_RoutedQueryCapture(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t)
	rec := serve(b, http.MethodGet, "/search?q=hello", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", decodeBody(t, rec))
}

func TestBridge_RoutedQueryMissingKey(t *testing.T) {
	t.Parallel()

	// Without its declared query key the rule does not match; the request
	// falls through to the single-endpoint protocol, which takes no GET.
	b := newTestBridge(t)
	rec := serve(b, http.MethodGet, "/search", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	body := decodeBody(t, rec).(map[string]any)
	assert.Equal(t, "error", body["_type"])
	assert.Equal(t, "method_not_allowed", body["_tag"])
	assert.Equal(t, "The requested URL /search was not allowed HTTP method GET.", body["message"])
}

func TestBridge_RoutedRepeatedQueryValue(t *testing.T) {
	t.Parallel()

	// A repeated query key captures a list, which must not bind to a
	// scalar-typed parameter.
	b := newTestBridge(t)
	rec := serve(b, http.MethodGet, "/search?q=a&q=b", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec).(map[string]any)
	assert.Equal(t, "bad_request", body["_tag"])
	assert.Equal(t, "Incorrect value for argument 'term'; expected a value of type 'text'.", body["message"])
}

func TestBridge_RoutedBodyOverridesCapture(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t)
	rec := serve(b, http.MethodPut, "/users/42", `{"id": "99", "name": "Grace"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"id": "99", "name": "Grace"}, decodeBody(t, rec))
}

func TestBridge_RoutedOptionalParamAbsent(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t)
	rec := serve(b, http.MethodPut, "/users/42", `{}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"id": "42", "name": ""}, decodeBody(t, rec))
}

func TestBridge_RoutedMethodNotAllowed(t *testing.T) {
	t.Parallel()

	// The path and query match a GET rule, so the 405 advertises the
	// candidate rules' verbs.
	b := newTestBridge(t)
	rec := serve(b, http.MethodDelete, "/search?q=x", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
}

func TestBridge_RoutedOptions(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t)
	rec := serve(b, http.MethodOptions, "/users/42", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, rec.Body.Len(), "preflight responses carry no body")
	assert.Equal(t, "GET, PUT, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
}

func TestBridge_FallbackPost(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t)
	rec := serve(b, http.MethodPost, "/?method=echo", `{"text": "hi"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hi", decodeBody(t, rec))
}

func TestBridge_FallbackOptions(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t)
	rec := serve(b, http.MethodOptions, "/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, rec.Body.Len())
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestBridge_FallbackMissingMethodParam(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t)
	rec := serve(b, http.MethodPost, "/", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Header().Get("Vary"))
	body := decodeBody(t, rec).(map[string]any)
	assert.Equal(t, "bad_request", body["_tag"])
	assert.Equal(t, "`method` is missing.", body["message"])
}

func TestBridge_FallbackUnknownMethod(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t)
	rec := serve(b, http.MethodPost, "/?method=nope", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec).(map[string]any)
	assert.Equal(t, "No service method `nope` found.", body["message"])
}

func TestBridge_FallbackWrongVerb(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t)
	rec := serve(b, http.MethodGet, "/unknown/path", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestBridge_MalformedJSONBody(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t)
	rec := serve(b, http.MethodPost, "/?method=echo", `{`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec).(map[string]any)
	assert.Equal(t, "Invalid JSON payload: '{'.", body["message"])
}

func TestBridge_NonObjectJSONBody(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t)
	rec := serve(b, http.MethodPost, "/?method=echo", `[1, 2]`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec).(map[string]any)
	assert.Equal(t, "Invalid JSON payload: '[1, 2]'.", body["message"])
}

func TestBridge_MissingRequiredArgument(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t)
	rec := serve(b, http.MethodPost, "/?method=echo", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
	body := decodeBody(t, rec).(map[string]any)
	assert.Equal(t, "An argument named 'text' is missing, it is required.", body["message"])
}

func TestBridge_DeclaredProcedureError(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t)
	rec := serve(b, http.MethodPost, "/?method=divide", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
	assert.Equal(t, map[string]any{"message": "divided by zero"}, decodeBody(t, rec))
}

func TestBridge_UndeclaredHandlerError(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t)
	rec := serve(b, http.MethodPost, "/?method=boom", `{}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec).(map[string]any)
	assert.Equal(t, "internal_server_error", body["_tag"])
	assert.NotContains(t, body["message"], "disk on fire",
		"internal error details must not leak to the client")
}

func TestBridge_NilReturnForNonNullableType(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t)
	rec := serve(b, http.MethodPost, "/?method=nothing", `{}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec).(map[string]any)
	assert.Equal(t,
		"The return type of the nothing() method is not optional, but its "+
			"server-side implementation has tried to return nothing (i.e. null). "+
			"It is an internal server error and should be fixed by server-side.",
		body["message"])
}

func TestBridge_InvalidReturnShape(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t)
	rec := serve(b, http.MethodPost, "/?method=bad-shape", `{}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec).(map[string]any)
	assert.Equal(t,
		"The return type of the bad-shape() method is text, but its "+
			"server-side implementation has tried to return a value of an "+
			"invalid type. It is an internal server error and should be fixed "+
			"by server-side.",
		body["message"])
}

func TestBridge_UnknownRoutedMethod(t *testing.T) {
	t.Parallel()

	// Unreachable through ServeHTTP once construction has validated the
	// descriptor, but rpc still guards the lookup.
	b := newTestBridge(t)
	r := httptest.NewRequest(http.MethodGet, "/ghost", nil)
	resp := b.rpc(r.Context(), r, &dispatchContext{routed: true, method: "ghost"})

	assert.Equal(t, http.StatusNotFound, resp.status)
	body := resp.body.(map[string]any)
	assert.Equal(t, "not_found", body["_tag"])
	assert.Equal(t, "The requested URL /ghost was not found on this service.", body["message"])
}

func TestBridge_CORSAllowedOrigin(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t,
		WithAllowedOrigins("example.com", "*.example.com"),
		WithAllowedHeaders("Content-Type", "X-Request-ID"),
	)

	tests := []struct {
		name    string
		origin  string
		allowed bool
	}{
		{name: "literal domain", origin: "https://example.com", allowed: true},
		{name: "wildcard single label", origin: "https://api.example.com", allowed: true},
		{name: "wildcard two labels", origin: "https://a.b.example.com", allowed: false},
		{name: "unknown domain", origin: "https://evil.test", allowed: false},
		{name: "non-http scheme", origin: "ftp://example.com", allowed: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/users/42", nil)
			r.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			b.ServeHTTP(rec, r)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "Origin", rec.Header().Get("Vary"))
			assert.Equal(t, "content-type, x-request-id",
				rec.Header().Get("Access-Control-Allow-Headers"))
			if tt.allowed {
				assert.Equal(t, tt.origin, rec.Header().Get("Access-Control-Allow-Origin"))
			} else {
				assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestBridge_RequestID(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t, WithRequestID())

	r := httptest.NewRequest(http.MethodGet, "/users/42", nil)
	r.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	b.ServeHTTP(rec, r)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))

	rec = serve(b, http.MethodGet, "/users/42", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"),
		"a missing request id must be generated")
}

func TestBridge_Metrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	b := newTestBridge(t, WithMetrics(reg))

	serve(b, http.MethodGet, "/users/42", "")
	serve(b, http.MethodGet, "/unknown/path", "")

	assert.Equal(t, float64(1),
		testutil.ToFloat64(b.metrics.requests.WithLabelValues("get-user", "200")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(b.metrics.requests.WithLabelValues("_unmatched", "405")))
}

func TestBridge_Tracing(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t, WithTracing(noop.NewTracerProvider()))
	rec := serve(b, http.MethodGet, "/users/42", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
