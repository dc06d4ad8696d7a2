// Copyright (c) 2024 The Blend65 Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package pattern is the generic peephole/dataflow pattern engine spec
// §4.2.2 and Design Notes §9 both call for: "a generic Pattern<I>
// capability with match and apply methods, and two concrete registries
// (IL, ASM) — not a class hierarchy." The teacher (falcon) has no such
// framework — compile/ssa/optimize.go instead hardcodes simplifyPhi,
// simplifyCFG and dce as fixed Go functions driven by a bespoke
// Optimizer.Ideal() loop. This package generalizes that loop's shape
// (repeat-until-no-change, bounded iteration count) into data: a
// priority-sorted registry of Pattern[I, C] values, instantiated once for
// il.Instruction and once for asmil.Element.
package pattern

import "sort"

// MatchResult describes a fired match: the window it covers (for the
// driver's replace-and-rewind bookkeeping) and the matched instructions
// themselves (so Apply doesn't need to re-index a slice the driver may
// have already mutated).
type MatchResult[I any] struct {
	Start       int
	Length      int
	Matched     []I
	CyclesSaved int
	BytesSaved  int
}

// Pattern is one named, prioritized rewrite rule over a window of
// instructions of type I, given read-only context C. Patterns are
// forbidden from mutating input in place (spec §4.2.2) — Match only reads
// instrs, and Apply returns a fresh replacement slice.
type Pattern[I any, C any] interface {
	Name() string
	Priority() int
	Category() string
	Match(instrs []I, index int, ctx C) (MatchResult[I], bool)
	Apply(m MatchResult[I], ctx C) []I
}

// Registry holds patterns grouped by category, sorted by priority
// (spec §4.2.2: "higher fires first").
type Registry[I any, C any] struct {
	patterns []Pattern[I, C]
	sorted   bool
}

func NewRegistry[I any, C any]() *Registry[I, C] {
	return &Registry[I, C]{}
}

func (r *Registry[I, C]) Add(p Pattern[I, C]) {
	r.patterns = append(r.patterns, p)
	r.sorted = false
}

// Ordered returns patterns sorted by descending priority, tie-broken by
// name for determinism (spec §5: stable ordering is required throughout).
func (r *Registry[I, C]) Ordered() []Pattern[I, C] {
	if !r.sorted {
		sort.SliceStable(r.patterns, func(i, j int) bool {
			if r.patterns[i].Priority() != r.patterns[j].Priority() {
				return r.patterns[i].Priority() > r.patterns[j].Priority()
			}
			return r.patterns[i].Name() < r.patterns[j].Name()
		})
		r.sorted = true
	}
	return r.patterns
}

func (r *Registry[I, C]) ByCategory(category string) []Pattern[I, C] {
	var out []Pattern[I, C]
	for _, p := range r.Ordered() {
		if p.Category() == category {
			out = append(out, p)
		}
	}
	return out
}

// FiredEvent records one pattern firing, for callers that want to surface
// "MAX_ITERATIONS hit: last-firing pattern was X" diagnostics (spec §4.2.3).
type FiredEvent struct {
	Pattern string
	AtIndex int
}

// Sweep performs a single left-to-right pass over instrs per spec §4.2.3's
// pseudocode: at each index, try every pattern in registry order; on the
// first match, splice in its replacement and rewind i so predecessors can
// be re-examined (`i ← max(0, i - m.length + 1)`), otherwise advance.
// Returns the rewritten slice, whether anything fired, and the last
// pattern that fired (for oscillation diagnostics).
func Sweep[I any, C any](instrs []I, reg *Registry[I, C], ctx C) ([]I, bool, string) {
	ordered := reg.Ordered()
	changed := false
	lastFired := ""
	i := 0
	for i < len(instrs) {
		fired := false
		for _, p := range ordered {
			if m, ok := p.Match(instrs, i, ctx); ok {
				replacement := p.Apply(m, ctx)
				instrs = replaceWindow(instrs, m.Start, m.Length, replacement)
				changed = true
				lastFired = p.Name()
				fired = true
				next := i - m.Length + 1
				if next < 0 {
					next = 0
				}
				i = next
				break
			}
		}
		if !fired {
			i++
		}
	}
	return instrs, changed, lastFired
}

func replaceWindow[I any](instrs []I, start, length int, replacement []I) []I {
	out := make([]I, 0, len(instrs)-length+len(replacement))
	out = append(out, instrs[:start]...)
	out = append(out, replacement...)
	out = append(out, instrs[start+length:]...)
	return out
}

const DefaultMaxIterations = 16
