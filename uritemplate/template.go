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

// Package uritemplate compiles URI templates of the form
// "path[?key1={var1}&key2={var2}]" into matchers for request paths and
// query strings.
//
// Placeholders use curly braces and bind the matched text to a variable:
//
//	t, err := uritemplate.Compile("/users/{id}/posts/{post-id}")
//
// Hyphens in variable names are normalized to underscores, so the template
// above declares the variables "id" and "post_id". Path placeholders match
// one or more characters non-greedily up to the next literal run; the whole
// path must match end to end. Each declared query pair matches only when the
// key appears in the query string at least once, and captures every
// occurrence when the key repeats.
//
// Templates are compiled once and are safe for concurrent use.
package uritemplate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrDuplicateVariable indicates that a variable name appears more than
	// once in a template (across its path and query parts).
	ErrDuplicateVariable = errors.New("duplicate template variable")
)

// variablePattern matches a "{name}" placeholder.
var variablePattern = regexp.MustCompile(`\{([a-zA-Z0-9_-]+)\}`)

// queryPairPattern matches a "key={name}" pair in the query part of a template.
var queryPairPattern = regexp.MustCompile(`([\w-]+)=\{([a-zA-Z0-9_-]+)\}`)

// Template is a compiled URI template. It matches a request path against the
// template's path part and a raw query string against its declared query
// pairs, capturing placeholder variables along the way.
//
// A Template is immutable after Compile and safe for concurrent use.
type Template struct {
	raw     string
	names   []string
	nameSet map[string]struct{}
	path    *regexp.Regexp
	query   []queryMatcher
}

// queryMatcher scans a raw query string for one declared "key={name}" pair.
type queryMatcher struct {
	name string
	re   *regexp.Regexp // one capture group: the value up to the next '&'
}

// Normalize converts a variable or wire name to its template variable form,
// replacing hyphens with underscores.
func Normalize(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// Compile parses a URI template and builds its path and query matchers.
// The template is split at the first "?": everything before it is the path
// part, everything after it is the query part.
//
// Compile fails when a variable name is declared twice within the template.
func Compile(template string) (*Template, error) {
	pathPart := template
	queryPart := ""
	if i := strings.Index(template, "?"); i >= 0 {
		pathPart, queryPart = template[:i], template[i+1:]
	}

	t := &Template{
		raw:     template,
		nameSet: make(map[string]struct{}),
	}
	if err := t.compilePath(pathPart); err != nil {
		return nil, err
	}
	if err := t.compileQuery(queryPart); err != nil {
		return nil, err
	}
	return t, nil
}

// addVariable records a declared variable name, rejecting duplicates.
func (t *Template) addVariable(name string) error {
	if _, dup := t.nameSet[name]; dup {
		return fmt.Errorf("uritemplate: %w: %s", ErrDuplicateVariable, name)
	}
	t.nameSet[name] = struct{}{}
	t.names = append(t.names, name)
	return nil
}

// compilePath translates the path part into an anchored regular expression.
// Literal runs are escaped; each placeholder becomes a named, non-greedy
// capture of one or more characters.
func (t *Template) compilePath(part string) error {
	var b strings.Builder
	b.WriteString("^")
	last := 0
	for _, m := range variablePattern.FindAllStringSubmatchIndex(part, -1) {
		name := Normalize(part[m[2]:m[3]])
		if err := t.addVariable(name); err != nil {
			return err
		}
		b.WriteString(regexp.QuoteMeta(part[last:m[0]]))
		b.WriteString("(?P<")
		b.WriteString(name)
		b.WriteString(">.+?)")
		last = m[1]
	}
	b.WriteString(regexp.QuoteMeta(part[last:]))
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return fmt.Errorf("uritemplate: cannot compile path template %q: %w", part, err)
	}
	t.path = re
	return nil
}

// compileQuery translates each declared "key={name}" pair into an
// independent matcher scanned over the whole raw query string.
func (t *Template) compileQuery(part string) error {
	if part == "" {
		return nil
	}
	for _, m := range queryPairPattern.FindAllStringSubmatch(part, -1) {
		key, name := m[1], Normalize(m[2])
		if err := t.addVariable(name); err != nil {
			return err
		}
		re, err := regexp.Compile(regexp.QuoteMeta(key) + `=([^&]+)&?`)
		if err != nil {
			return fmt.Errorf("uritemplate: cannot compile query template %q: %w", part, err)
		}
		t.query = append(t.query, queryMatcher{name: name, re: re})
	}
	return nil
}

// Raw returns the template text the Template was compiled from.
func (t *Template) Raw() string {
	return t.raw
}

// Names returns the declared variable names in declaration order
// (path variables first, then query variables).
func (t *Template) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Vars returns the number of variables the template declares.
func (t *Template) Vars() int {
	return len(t.names)
}

// Declares reports whether the template declares the given variable name.
// The name is normalized before the lookup.
func (t *Template) Declares(name string) bool {
	_, ok := t.nameSet[Normalize(name)]
	return ok
}

// MatchPath matches a request path against the template's path part.
// On success the returned MatchResult holds one captured value per path
// placeholder. Captured values are raw path text; no unescaping is applied.
func (t *Template) MatchPath(path string) (*MatchResult, bool) {
	m := t.path.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}
	r := &MatchResult{}
	for i, name := range t.path.SubexpNames() {
		if name != "" {
			r.add(name, m[i])
		}
	}
	return r, true
}

// MatchQuery matches a raw query string against the template's declared
// query pairs. Every declared key must be present at least once; a key that
// repeats contributes every occurrence to the result. A template with no
// query part matches any query string trivially.
func (t *Template) MatchQuery(rawQuery string) (*MatchResult, bool) {
	r := &MatchResult{}
	if len(t.query) == 0 {
		return r, true
	}
	seen := make(map[string]struct{}, len(t.query))
	for _, q := range t.query {
		for _, m := range q.re.FindAllStringSubmatch(rawQuery, -1) {
			r.add(q.name, m[1])
			seen[q.name] = struct{}{}
		}
	}
	if len(seen) != len(t.query) {
		return nil, false
	}
	return r, true
}
