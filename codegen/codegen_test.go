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

package codegen

import (
	"testing"

	"blend65/ast"
	"blend65/asmil"
	"blend65/config"
	"blend65/diag"
	"blend65/il"
	"blend65/sfa"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singleBlockFunc(name string, instrs []il.Instruction) *il.Func {
	fn := il.NewFunc(name, ast.Void)
	b := fn.NewBlock("entry")
	b.Instrs = instrs
	fn.Entry = b.ID
	return fn
}

// Scenario 1 — border color set (spec §8.2): `poke $D020, 6` must lower
// to a single LDA #6 / STA $D020 and must never collapse, since $D020 is
// volatile.
func TestLowerBorderColorPoke(t *testing.T) {
	fn := singleBlockFunc("main", []il.Instruction{
		{Op: il.OpPoke, Addr: 0xD020, Args: []il.Operand{il.ConstOperand(6)}},
		{Op: il.OpReturnVoid},
	})
	mod := &il.Module{Funcs: []*il.Func{fn}, Entry: "main"}

	fm := sfa.NewFrameMap(diag.NewSink())
	sink := diag.NewSink()
	b := asmil.NewBuilder("demo", 0x0801, config.C64())
	lw := NewLowerer(b, fm, config.C64(), sink)
	lw.LowerModule(mod, 0x0801, false)

	asmil.Optimize(b.Module, 16)

	var staD020, ldaImm6 int
	for _, s := range b.Module.Sections {
		for _, e := range s.Elements {
			if e.Kind == asmil.ElemInstruction && e.Mnemonic == asmil.STA && e.Operand == 0xD020 {
				staD020++
			}
			if e.Kind == asmil.ElemInstruction && e.Mnemonic == asmil.LDA && e.Mode == asmil.Immediate && e.Operand == 6 {
				ldaImm6++
			}
		}
	}
	assert.Equal(t, 1, staD020)
	assert.Equal(t, 1, ldaImm6)
	assert.False(t, sink.HasErrors(false))
}

// Scenario 2 — store/load elimination (spec §8.2), end to end: the IL
// optimizer collapses the store+load into a copy, and the ASM-level
// optimizer then cleans up any redundant LDA the naive lowering emits.
func TestLowerStoreLoadRoundTrip(t *testing.T) {
	fn := singleBlockFunc("f", []il.Instruction{
		{Op: il.OpConst, Dest: 0, Args: []il.Operand{il.ConstOperand(7)}},
		{Op: il.OpStore, Label: "v", Args: []il.Operand{il.TempOperand(0)}},
		{Op: il.OpLoad, Dest: 1, Label: "v"},
		{Op: il.OpReturn, Args: []il.Operand{il.TempOperand(1)}},
	})
	mod := &il.Module{Funcs: []*il.Func{fn}, Entry: "f"}

	opt := il.NewOptimizer()
	opt.Run(mod, diag.NewSink())

	fm := sfa.NewFrameMap(diag.NewSink())
	fm.Globals["v"] = &sfa.FrameSlot{Name: "v", Address: 0x02, Location: sfa.ZeroPage}

	sink := diag.NewSink()
	b := asmil.NewBuilder("demo", 0x0801, config.C64())
	lw := NewLowerer(b, fm, config.C64(), sink)
	lw.LowerModule(mod, 0x0801, false)

	asmil.Optimize(b.Module, 16)

	result := asmil.Emit(b.Module, sink)
	require.False(t, sink.HasErrors(false))
	assert.Contains(t, result.Text, "RTS")
}

func TestAllocateSpillsOnRegisterExhaustion(t *testing.T) {
	fn := il.NewFunc("f", ast.Void)
	b := fn.NewBlock("entry")
	fn.Entry = b.ID
	var instrs []il.Instruction
	// four temps simultaneously live: more than the three available
	// registers, forcing at least one spill.
	for i := 0; i < 4; i++ {
		instrs = append(instrs, il.Instruction{Op: il.OpConst, Dest: i, Args: []il.Operand{il.ConstOperand(int64(i))}})
	}
	var sum []il.Operand
	for i := 0; i < 4; i++ {
		sum = append(sum, il.TempOperand(i))
	}
	instrs = append(instrs, il.Instruction{Op: il.OpReturnVoid, Args: sum})
	b.Instrs = instrs

	sink := diag.NewSink()
	alloc := Allocate(fn, config.C64(), sink)

	spilled := false
	for _, loc := range alloc.Locs {
		if loc.Spilled {
			spilled = true
		}
	}
	assert.True(t, spilled, "4 simultaneously live temps must force a spill with only 3 registers")
	assert.False(t, sink.HasErrors(false), "plenty of zero-page scratch is configured; spill should not exhaust it")
}

// peekw/pokew must round-trip both bytes of a word value (spec §6.2:
// little-endian, low byte at addr, high byte at addr+1) — regression test
// for a prior lowering that silently discarded peekw's high byte and never
// wrote pokew's.
func TestLowerPeekwPokewPreservesBothBytes(t *testing.T) {
	fn := singleBlockFunc("f", []il.Instruction{
		{Op: il.OpPeekW, Dest: 0, Addr: 0x03, Type: ast.Word},
		{Op: il.OpPokeW, Addr: 0x10, Args: []il.Operand{il.TempOperand(0)}},
		{Op: il.OpReturnVoid},
	})
	mod := &il.Module{Funcs: []*il.Func{fn}, Entry: "f"}

	fm := sfa.NewFrameMap(diag.NewSink())
	sink := diag.NewSink()
	b := asmil.NewBuilder("demo", 0x0801, config.C64())
	lw := NewLowerer(b, fm, config.C64(), sink)
	lw.LowerModule(mod, 0x0801, false)

	require.False(t, sink.HasErrors(false))

	var ldaLow, ldaHigh, staLow, staHigh int
	for _, s := range b.Module.Sections {
		for _, e := range s.Elements {
			if e.Kind != asmil.ElemInstruction {
				continue
			}
			switch {
			case e.Mnemonic == asmil.LDA && e.Mode == asmil.ZeroPage && e.Operand == 0x03:
				ldaLow++
			case e.Mnemonic == asmil.LDA && e.Mode == asmil.ZeroPage && e.Operand == 0x04:
				ldaHigh++
			case e.Mnemonic == asmil.STA && e.Mode == asmil.ZeroPage && e.Operand == 0x10:
				staLow++
			case e.Mnemonic == asmil.STA && e.Mode == asmil.ZeroPage && e.Operand == 0x11:
				staHigh++
			}
		}
	}
	assert.Equal(t, 1, ldaLow, "peekw must read the low byte at Addr")
	assert.Equal(t, 1, ldaHigh, "peekw must read the high byte at Addr+1, not discard it")
	assert.Equal(t, 1, staLow, "pokew must write the low byte at Addr")
	assert.Equal(t, 1, staHigh, "pokew must write the high byte at Addr+1, not skip it")
}

func TestBasicLoaderStubTargetsStartOfCode(t *testing.T) {
	addr, stub := BasicLoaderStub(0x0801)
	require.Len(t, stub, 12)
	assert.Equal(t, uint16(0x080D), addr)
	assert.Equal(t, byte(0x9E), stub[4])
	assert.Equal(t, "2061", string(stub[5:9]))
}
