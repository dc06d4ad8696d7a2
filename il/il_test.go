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
	"testing"

	"blend65/ast"
	"blend65/diag"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singleBlockFunc(name string, instrs []Instruction) *Func {
	fn := NewFunc(name, ast.Void)
	b := fn.NewBlock("entry")
	b.Instrs = instrs
	fn.Entry = b.ID
	return fn
}

func TestVerifyRejectsEmptyBlock(t *testing.T) {
	fn := NewFunc("f", ast.Void)
	fn.NewBlock("entry")
	assert.Error(t, Verify(fn))
}

func TestVerifyRejectsMissingTerminator(t *testing.T) {
	fn := singleBlockFunc("f", []Instruction{
		{Op: OpConst, Dest: 0, Args: []Operand{ConstOperand(1)}},
	})
	assert.Error(t, Verify(fn))
}

func TestVerifyAcceptsWellFormedFunc(t *testing.T) {
	fn := singleBlockFunc("f", []Instruction{
		{Op: OpConst, Dest: 0, Args: []Operand{ConstOperand(1)}},
		{Op: OpReturnVoid},
	})
	assert.NoError(t, Verify(fn))
}

func TestVerifyRejectsDoubleDefinedTemp(t *testing.T) {
	fn := singleBlockFunc("f", []Instruction{
		{Op: OpConst, Dest: 0, Args: []Operand{ConstOperand(1)}},
		{Op: OpConst, Dest: 0, Args: []Operand{ConstOperand(2)}},
		{Op: OpReturnVoid},
	})
	assert.Error(t, Verify(fn))
}

func TestConstantFolding(t *testing.T) {
	fn := singleBlockFunc("f", []Instruction{
		{Op: OpAdd, Dest: 0, Args: []Operand{ConstOperand(2), ConstOperand(3)}},
		{Op: OpReturn, Args: []Operand{TempOperand(0)}},
	})
	opt := NewOptimizer()
	opt.Run(&Module{Funcs: []*Func{fn}}, diag.NewSink())

	// Folding turns the add into const t0=5; constant propagation then
	// rewrites the return to use 5 directly and DCE drops the unused const.
	instrs := fn.Blocks[0].Instrs
	require.Len(t, instrs, 1)
	assert.Equal(t, OpReturn, instrs[0].Op)
	assert.Equal(t, int64(5), instrs[0].Args[0].Const)
}

func TestAlgebraicIdentityAddZero(t *testing.T) {
	fn := singleBlockFunc("f", []Instruction{
		{Op: OpAdd, Dest: 0, Args: []Operand{TempOperand(99), ConstOperand(0)}},
		{Op: OpReturn, Args: []Operand{TempOperand(0)}},
	})
	// t99 isn't defined in this tiny fixture; the identity pattern only
	// inspects operand shape, not def-use, so this still exercises Apply.
	// The identity yields copy t0=t99; copy propagation then moves t99 into
	// the return and DCE drops the unused copy.
	opt := NewOptimizer()
	opt.Run(&Module{Funcs: []*Func{fn}}, diag.NewSink())

	instrs := fn.Blocks[0].Instrs
	require.Len(t, instrs, 1)
	assert.Equal(t, OpReturn, instrs[0].Op)
	assert.Equal(t, 99, instrs[0].Args[0].Temp)
}

// Scenario 2 — store/load elimination (spec §8.2), at the IL layer: a
// value stored to a variable and immediately reloaded collapses into a
// direct copy, and the dead store itself then falls to DSE.
func TestStoreLoadThenDeadStoreElimination(t *testing.T) {
	fn := singleBlockFunc("f", []Instruction{
		{Op: OpConst, Dest: 0, Args: []Operand{ConstOperand(7)}},
		{Op: OpStore, Label: "v", Args: []Operand{TempOperand(0)}},
		{Op: OpLoad, Dest: 1, Label: "v"},
		{Op: OpReturn, Args: []Operand{TempOperand(1)}},
	})
	opt := NewOptimizer()
	opt.Run(&Module{Funcs: []*Func{fn}}, diag.NewSink())

	instrs := fn.Blocks[0].Instrs
	for _, in := range instrs {
		assert.NotEqual(t, OpStore, in.Op, "dead store to v should have been eliminated")
	}
}

func TestDeadCodeEliminationDropsUnusedConst(t *testing.T) {
	fn := singleBlockFunc("f", []Instruction{
		{Op: OpConst, Dest: 0, Args: []Operand{ConstOperand(42)}}, // unused
		{Op: OpReturnVoid},
	})
	opt := NewOptimizer()
	opt.Run(&Module{Funcs: []*Func{fn}}, diag.NewSink())

	instrs := fn.Blocks[0].Instrs
	require.Len(t, instrs, 1)
	assert.Equal(t, OpReturnVoid, instrs[0].Op)
}

func TestConstantPropagation(t *testing.T) {
	fn := singleBlockFunc("f", []Instruction{
		{Op: OpConst, Dest: 0, Args: []Operand{ConstOperand(4)}},
		{Op: OpAdd, Dest: 1, Args: []Operand{TempOperand(0), ConstOperand(1)}},
		{Op: OpReturn, Args: []Operand{TempOperand(1)}},
	})
	opt := NewOptimizer()
	opt.Run(&Module{Funcs: []*Func{fn}}, diag.NewSink())

	// After propagation + folding, t1 should resolve to the constant 5 and
	// the return should reference it (directly or via the folded temp).
	foundFive := false
	for _, in := range fn.Blocks[0].Instrs {
		if in.Op == OpConst || in.Op == OpReturn {
			for _, a := range in.Args {
				if a.Kind == OperandConst && a.Const == 5 {
					foundFive = true
				}
			}
		}
	}
	assert.True(t, foundFive)
}

func TestRemoveUnreachableBlocks(t *testing.T) {
	fn := NewFunc("f", ast.Void)
	entry := fn.NewBlock("entry")
	live := fn.NewBlock("live")
	dead := fn.NewBlock("dead")
	fn.Entry = entry.ID

	entry.Instrs = []Instruction{{Op: OpJump, Label: live.Label}}
	fn.WireTo(entry, live)
	live.Instrs = []Instruction{{Op: OpReturnVoid}}
	dead.Instrs = []Instruction{{Op: OpReturnVoid}}

	removeUnreachableBlocks(fn)

	require.Len(t, fn.Blocks, 2)
	for _, b := range fn.Blocks {
		assert.NotEqual(t, dead.ID, b.ID)
	}
}

func TestOptimizerRespectsIterationCap(t *testing.T) {
	fn := singleBlockFunc("f", []Instruction{
		{Op: OpConst, Dest: 0, Args: []Operand{ConstOperand(1)}},
		{Op: OpReturnVoid},
	})
	opt := NewOptimizer()
	opt.MaxIterations = 1
	sink := diag.NewSink()
	opt.Run(&Module{Funcs: []*Func{fn}}, sink)
	// DCE drops the unused const in the only permitted iteration, so that
	// iteration changed the function and the cap is reported.
	found := false
	for _, d := range sink.All() {
		if d.Code == diag.ILIterationCap {
			found = true
		}
	}
	assert.True(t, found)
}
