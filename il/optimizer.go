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

package il

import (
	"blend65/ast"
	"blend65/diag"
	"blend65/pattern"
	"blend65/utils"
)

// Optimizer drives the fixed-point peephole sweep (spec §4.2.3) plus the
// separate block-graph reachability pass (spec §4.2.4's "remove
// unreachable blocks") that Sweep's windowed model cannot express, since
// it operates on the CFG rather than an instruction slice. Grounded on
// the teacher's Optimizer.Ideal() driver shape (compile/ssa/optimize.go),
// generalized per Design Notes §9.
type Optimizer struct {
	MaxIterations int
	Registry      *pattern.Registry[Instruction, *Context]
}

func NewOptimizer() *Optimizer {
	return &Optimizer{MaxIterations: pattern.DefaultMaxIterations, Registry: NewRegistry()}
}

// Run optimizes every function in mod to a fixed point, or until
// MaxIterations block-sweeps have run for a given function, whichever
// comes first (spec §4.2.3). Hitting the cap reports an info diagnostic
// naming the last pattern that fired, per spec's oscillation-guard intent.
func (o *Optimizer) Run(mod *Module, sink *diag.Sink) {
	for _, fn := range mod.Funcs {
		o.runFunc(fn, sink)
	}
}

func (o *Optimizer) runFunc(fn *Func, sink *diag.Sink) {
	ctx := NewContext()
	for iter := 0; iter < o.MaxIterations; iter++ {
		ctx.RecomputeUseCounts(fn)
		anyChanged := false
		lastFired := ""
		for _, b := range fn.Blocks {
			rewritten, changed, fired := pattern.Sweep(b.Instrs, o.Registry, ctx)
			if changed {
				b.Instrs = rewritten
				anyChanged = true
				lastFired = fired
			}
		}
		removeUnreachableBlocks(fn)
		if !anyChanged {
			return
		}
		if iter == o.MaxIterations-1 {
			sink.Infof(diag.ILIterationCap, ast.Span{}, "function %q hit the %d-iteration optimizer cap (last pattern fired: %s)", fn.Name, o.MaxIterations, lastFired)
		}
	}
}

// removeUnreachableBlocks drops blocks not reachable from fn.Entry by
// walking Succs, and prunes dangling Preds/Succs entries left behind
// (spec §4.2.4). This can't be a windowed Pattern since it reasons about
// the block graph, not an instruction slice.
func removeUnreachableBlocks(fn *Func) {
	reachable := utils.NewSet[BlockID]()
	reachable.Add(fn.Entry)
	stack := []BlockID{fn.Entry}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		b := fn.Block(id)
		if b == nil {
			continue
		}
		for _, s := range b.Succs {
			if !reachable.Contains(s) {
				reachable.Add(s)
				stack = append(stack, s)
			}
		}
	}

	kept := make([]*Block, 0, len(fn.Blocks))
	for _, b := range fn.Blocks {
		if reachable.Contains(b.ID) {
			kept = append(kept, b)
		}
	}
	fn.Blocks = kept

	for _, b := range fn.Blocks {
		b.Preds = filterReachable(b.Preds, reachable)
		b.Succs = filterReachable(b.Succs, reachable)
	}
}

func filterReachable(ids []BlockID, reachable *utils.Set[BlockID]) []BlockID {
	out := ids[:0]
	for _, id := range ids {
		if reachable.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}
