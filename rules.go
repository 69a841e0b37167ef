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
	"net/http"
	"slices"
	"sort"
	"strings"

	"rivaas.dev/rpcbridge/uritemplate"
)

// rule is one compiled URL mapping: a URI template bound to an HTTP verb and
// a target procedure.
type rule struct {
	template string
	matcher  *uritemplate.Template
	verb     string
	method   string // target procedure wire name
}

// pathMatch is the outcome of selecting a rule for a request.
type pathMatch struct {
	captures *uritemplate.MatchResult
	verb     string // the matched rule's verb, not the request method
	method   string // target procedure wire name
}

// buildRules compiles every procedure's HTTP annotation into the rule table
// and fixes the table's order. Any fault here is a startup fault: the Bridge
// must not serve requests from a partially built table.
//
// Rules are ordered once, most specific first: a rule with more template
// variables precedes one with fewer, and rules with equal variable counts
// are ordered by reverse-lexicographic template text. The order never
// changes after construction.
func (b *Bridge) buildRules() error {
	for _, m := range b.service.Methods() {
		if m.HTTP == nil {
			continue
		}
		template := m.HTTP.Path
		if strings.TrimLeft(template, "/") == "" {
			return fmt.Errorf("rpcbridge: %w: %s", ErrRootPathReserved, m.Name)
		}
		matcher, err := uritemplate.Compile(template)
		if err != nil {
			return fmt.Errorf("rpcbridge: %s: %w", m.Name, err)
		}
		var unsatisfied []string
		for _, p := range m.Params {
			if !p.Type.Nullable && !matcher.Declares(p.WireName) {
				unsatisfied = append(unsatisfied, p.WireName)
			}
		}
		if len(unsatisfied) > 0 {
			slices.Sort(unsatisfied)
			return fmt.Errorf("rpcbridge: %w: %q does not fully satisfy all parameters of %s(); unsatisfied parameters are: %s",
				ErrTemplateUnsatisfied, template, m.Name, strings.Join(unsatisfied, ", "))
		}
		b.rules = append(b.rules, rule{
			template: template,
			matcher:  matcher,
			verb:     strings.ToUpper(m.HTTP.Method),
			method:   m.Name,
		})
	}
	sort.Slice(b.rules, func(i, j int) bool {
		ri, rj := b.rules[i], b.rules[j]
		if vi, vj := ri.matcher.Vars(), rj.matcher.Vars(); vi != vj {
			return vi > vj
		}
		if ri.template != rj.template {
			return ri.template > rj.template
		}
		// Same template bound to several verbs: keep the order total.
		return ri.verb < rj.verb
	})
	return nil
}

// matchRequest scans the rule table for the given request line.
//
// The root path never matches; it is reserved for the fallback protocol.
// Every rule whose path and query both match contributes its verb to the
// accumulated allowed-verbs list (used for OPTIONS and 405 responses). The
// first such rule whose verb equals the request method — or any rule, when
// the request method is OPTIONS — becomes the selection; later rules keep
// extending the allowed-verbs list but cannot override it.
func (b *Bridge) matchRequest(method, path, rawQuery string) (*pathMatch, []string) {
	if path == "/" {
		return nil, nil
	}
	var (
		match   *pathMatch
		allowed []string
	)
	for _, rl := range b.rules {
		captures, ok := rl.matcher.MatchPath(path)
		if !ok {
			continue
		}
		queryCaptures, ok := rl.matcher.MatchQuery(rawQuery)
		if !ok {
			continue
		}
		captures.Merge(queryCaptures)
		if !slices.Contains(allowed, rl.verb) {
			allowed = append(allowed, rl.verb)
		}
		if match == nil && (method == rl.verb || method == http.MethodOptions) {
			match = &pathMatch{captures: captures, verb: rl.verb, method: rl.method}
		}
	}
	return match, allowed
}
