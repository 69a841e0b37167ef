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
	"net/http"
	"strings"
)

// response is a fully decided HTTP response: status, JSON body tree, and the
// CORS headers to merge in. The zero cors slice means no CORS headers apply
// (method-dispatch failures and unknown-procedure responses carry none).
type response struct {
	status int
	body   any
	cors   []corsHeader
}

// statusTag converts an HTTP status code into the envelope's error tag: the
// lower-snake-case form of the standard reason phrase, e.g. 404 becomes
// "not_found".
func statusTag(status int) string {
	text := http.StatusText(status)
	if text == "" {
		text = "http error"
	}
	return strings.ToLower(strings.ReplaceAll(text, " ", "_"))
}

// errorEnvelope builds the canonical JSON error envelope. The message may be
// nil, which serializes as JSON null.
func errorEnvelope(tag string, message any) map[string]any {
	return map[string]any{
		"_type":   "error",
		"_tag":    tag,
		"message": message,
	}
}

// errorResponse maps a failure status to its canonical envelope.
//
// 404 and 405 always use their URL-specific message templates; 400 carries
// the caller-supplied message. Any other status falls back to the supplied
// message, or to the reason phrase when there is none.
func (b *Bridge) errorResponse(status int, r *http.Request, message string) response {
	tag := statusTag(status)
	var body map[string]any
	switch status {
	case http.StatusNotFound:
		body = errorEnvelope(tag, fmt.Sprintf(
			"The requested URL %s was not found on this service.", r.URL.Path,
		))
	case http.StatusBadRequest:
		var msg any
		if message != "" {
			msg = message
		}
		body = errorEnvelope(tag, msg)
	case http.StatusMethodNotAllowed:
		body = errorEnvelope(tag, fmt.Sprintf(
			"The requested URL %s was not allowed HTTP method %s.", r.URL.Path, r.Method,
		))
	default:
		if message == "" {
			message = http.StatusText(status)
		}
		body = errorEnvelope(tag, message)
	}
	return response{status: status, body: body}
}

// writeResponse renders a decided response: JSON body, merged CORS headers,
// application/json content type.
func (b *Bridge) writeResponse(w http.ResponseWriter, resp response) {
	data, err := json.Marshal(resp.body)
	if err != nil {
		// The body is always either an envelope map or a codec-produced
		// generic tree; marshaling one can only fail on a codec bug.
		b.logger.Error("cannot marshal response body", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	applyCORS(w.Header(), resp.cors)
	w.WriteHeader(resp.status)
	w.Write(data) //nolint:errcheck // nothing to do for a client gone away
}
