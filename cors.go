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
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// corsHeader is one accumulated CORS response header.
type corsHeader struct {
	name  string
	value string
}

// compileOrigins splits the configured origin domains into an exact-match
// set and a list of compiled wildcard patterns. This runs once during New;
// nothing is rebuilt per request.
//
// A "*" in a domain stands for exactly one non-dot label, so
// "*.example.com" matches "api.example.com" but neither "a.b.example.com"
// nor "example.com" itself.
func (b *Bridge) compileOrigins() {
	b.allowedOrigins = make(map[string]struct{})
	for _, domain := range b.originsInput {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain == "" {
			continue
		}
		if !strings.Contains(domain, "*") {
			b.allowedOrigins[domain] = struct{}{}
			continue
		}
		parts := strings.Split(domain, "*")
		for i, p := range parts {
			parts[i] = regexp.QuoteMeta(p)
		}
		pattern := "^" + strings.Join(parts, `(?:[^.]+?)`) + "$"
		b.originPatterns = append(b.originPatterns, regexp.MustCompile(pattern))
	}
}

// compileAllowedHeaders normalizes the configured allowed request headers
// into the precomputed Access-Control-Allow-Headers value: lower-cased,
// deduplicated, sorted, comma-joined.
func (b *Bridge) compileAllowedHeaders() {
	var headers []string
	for _, h := range b.headersInput {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" && !slices.Contains(headers, h) {
			headers = append(headers, h)
		}
	}
	slices.Sort(headers)
	b.allowedHeaders = strings.Join(headers, ", ")
}

// allowsOrigin reports whether the given Origin header value satisfies the
// configured origin policy. Only http and https origins can be allowed; the
// hostname must equal a configured literal domain or match a configured
// wildcard pattern.
func (b *Bridge) allowsOrigin(origin string) bool {
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false
	}
	if _, ok := b.allowedOrigins[host]; ok {
		return true
	}
	for _, pattern := range b.originPatterns {
		if pattern.MatchString(host) {
			return true
		}
	}
	return false
}

// applyCORS merges the accumulated CORS headers into a response header map.
// A header that is already present has the new value joined with ", "
// rather than being overwritten.
func applyCORS(h http.Header, headers []corsHeader) {
	for _, ch := range headers {
		if existing := h.Get(ch.name); existing != "" {
			h.Set(ch.name, existing+", "+ch.value)
		} else {
			h.Set(ch.name, ch.value)
		}
	}
}
