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

package uritemplate

// capture is one (variable, value) pair produced by a match.
type capture struct {
	name  string
	value string
}

// MatchResult holds the variables captured by one template match.
// The same variable may appear more than once when a query key repeats.
//
// A MatchResult is per-request, transient state; it must not be shared
// across requests.
type MatchResult struct {
	captures []capture
}

func (r *MatchResult) add(name, value string) {
	r.captures = append(r.captures, capture{name: name, value: value})
}

// Merge appends the captures of other to r, preserving order.
func (r *MatchResult) Merge(other *MatchResult) {
	if other == nil {
		return
	}
	r.captures = append(r.captures, other.captures...)
}

// Len returns the number of captured (variable, value) pairs.
func (r *MatchResult) Len() int {
	return len(r.captures)
}

// Get returns the value captured under the given variable name.
// The name is normalized before the lookup. It returns nil when the variable
// was not captured, the string value when it was captured exactly once, and
// a []string of every value when it was captured more than once.
func (r *MatchResult) Get(name string) any {
	name = Normalize(name)
	var values []string
	for _, c := range r.captures {
		if c.name == name {
			values = append(values, c.value)
		}
	}
	switch len(values) {
	case 0:
		return nil
	case 1:
		return values[0]
	default:
		return values
	}
}
