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

package asmil

import (
	"testing"

	"blend65/config"
	"blend65/diag"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuilder() *Builder {
	b := NewBuilder("demo", 0x0801, config.C64())
	b.StartSection("code")
	return b
}

// Scenario 1 — border color set (spec §8.2): poke $D020 should never
// participate in store-load elimination since it's volatile.
func TestStoreLoadEliminationSkipsVolatileAddress(t *testing.T) {
	b := newTestBuilder()
	b.LdaImm(6)
	b.StaAbs(0xD020) // VIC-II border color register
	b.LdaAbs(0xD020)
	b.Rts()

	Optimize(b.Module, 16)

	var staCount, ldaAbsCount int
	for _, e := range b.Module.Section("code").Elements {
		if e.Kind == ElemInstruction && e.Mnemonic == STA {
			staCount++
		}
		if e.Kind == ElemInstruction && e.Mnemonic == LDA && e.Mode == Absolute {
			ldaAbsCount++
		}
	}
	assert.Equal(t, 1, staCount)
	assert.Equal(t, 1, ldaAbsCount, "volatile reload must survive")
}

func TestStoreLoadEliminationNonVolatile(t *testing.T) {
	b := newTestBuilder()
	b.LdaImm(1)
	b.StaZp(0x10)
	b.LdaZp(0x10)
	b.Rts()

	Optimize(b.Module, 16)

	elems := b.Module.Section("code").Elements
	for _, e := range elems {
		if e.Kind == ElemInstruction && e.Mnemonic == LDA && e.Mode == ZeroPage {
			t.Fatalf("redundant LDA $10 should have been eliminated")
		}
	}
}

func TestRedundantCmpZero(t *testing.T) {
	b := newTestBuilder()
	b.LdaImm(0)
	b.CmpImm(0)
	b.Beq("done")
	b.Label("done")
	b.Rts()

	Optimize(b.Module, 16)

	for _, e := range b.Module.Section("code").Elements {
		assert.NotEqual(t, CMP, e.Mnemonic)
	}
}

func TestDeadClcDroppedBeforeNextCarrySetter(t *testing.T) {
	b := newTestBuilder()
	b.Clc()
	b.LdaImm(1) // A-only work, no carry read
	b.Sec()     // unconditionally overwrites carry again
	b.Rts()

	Optimize(b.Module, 16)

	for _, e := range b.Module.Section("code").Elements {
		assert.False(t, e.Kind == ElemInstruction && e.Mnemonic == CLC, "dead CLC should have been dropped")
	}
}

func TestClcSurvivesWhenCarryIsReadBeforeNextSetter(t *testing.T) {
	b := newTestBuilder()
	b.Clc()
	b.LdaZp(0x10)
	b.AdcZp(0x11) // reads carry
	b.Rts()

	Optimize(b.Module, 16)

	found := false
	for _, e := range b.Module.Section("code").Elements {
		if e.Kind == ElemInstruction && e.Mnemonic == CLC {
			found = true
		}
	}
	assert.True(t, found, "CLC consumed by a later ADC must not be removed")
}

func TestConditionalBranchChainFollowsToFinalTarget(t *testing.T) {
	b := newTestBuilder()
	b.Beq("mid")
	b.Rts()
	b.Label("mid")
	b.JmpAbs("final")
	b.Label("final")
	b.Rts()

	Optimize(b.Module, 16)

	elems := b.Module.Section("code").Elements
	require.True(t, len(elems) > 0)
	assert.Equal(t, BEQ, elems[0].Mnemonic)
	assert.Equal(t, "final", elems[0].OperandLabel)
}

func TestDuplicateTransferCollapsed(t *testing.T) {
	b := newTestBuilder()
	b.Tax()
	b.Tax()
	b.Rts()

	Optimize(b.Module, 16)

	count := 0
	for _, e := range b.Module.Section("code").Elements {
		if e.Kind == ElemInstruction && e.Mnemonic == TAX {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestBranchChainFollowsToFinalTarget(t *testing.T) {
	b := newTestBuilder()
	b.JmpAbs("mid")
	b.Label("mid")
	b.JmpAbs("final")
	b.Label("final")
	b.Rts()

	Optimize(b.Module, 16)

	elems := b.Module.Section("code").Elements
	require.True(t, len(elems) > 0)
	assert.Equal(t, "final", elems[0].OperandLabel)
}

func TestUnreachableCodeDropped(t *testing.T) {
	b := newTestBuilder()
	b.Rts()
	b.LdaImm(1) // dead, unlabeled
	b.Label("after")
	b.Rts()

	Optimize(b.Module, 16)

	elems := b.Module.Section("code").Elements
	for _, e := range elems {
		if e.Kind == ElemInstruction {
			assert.NotEqual(t, byte(1), byte(e.Operand))
		}
	}
}

func TestEmitDetectsUndefinedLabel(t *testing.T) {
	b := newTestBuilder()
	b.JmpAbs("nowhere")

	sink := diag.NewSink()
	Emit(b.Module, sink)

	found := false
	for _, d := range sink.All() {
		if d.Code == diag.AsmUndefinedLabel {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEmitDetectsBranchOutOfRange(t *testing.T) {
	b := newTestBuilder()
	b.Beq("far")
	for i := 0; i < 200; i++ {
		b.Nop()
	}
	b.Label("far")
	b.Rts()

	sink := diag.NewSink()
	Emit(b.Module, sink)

	found := false
	for _, d := range sink.All() {
		if d.Code == diag.AsmBranchOutOfRange {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEmitHeaderAndOrigin(t *testing.T) {
	b := newTestBuilder()
	b.Rts()
	sink := diag.NewSink()
	res := Emit(b.Module, sink)
	assert.Contains(t, res.Text, "!to \"demo.prg\", cbm")
	assert.Contains(t, res.Text, "* = $0801")
	assert.False(t, sink.HasErrors(false))
}
