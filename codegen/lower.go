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

// Package codegen lowers an optimized IL module into ASM-IL (spec §4.6),
// using the FrameMap for every variable's address and a linear-scan
// allocator (regalloc.go) for IL temporaries. Structure directly grounded
// on the teacher's compile/codegen/lower_x86.go: a Lowerer walking blocks
// in order, one case arm per source instruction kind, retargeted from x86
// machine operands to the 6502 ASM-IL builder.
package codegen

import (
	"fmt"

	"blend65/ast"
	"blend65/asmil"
	"blend65/config"
	"blend65/diag"
	"blend65/il"
	"blend65/sfa"
	"blend65/utils"
)

// Lowerer holds the state threaded through one module's code generation.
type Lowerer struct {
	Builder  *asmil.Builder
	FrameMap *sfa.FrameMap
	Platform config.PlatformConfig
	Sink     *diag.Sink

	fn    *il.Func
	frame *sfa.Frame
	alloc *Allocation
}

func NewLowerer(b *asmil.Builder, fm *sfa.FrameMap, platform config.PlatformConfig, sink *diag.Sink) *Lowerer {
	return &Lowerer{Builder: b, FrameMap: fm, Platform: platform, Sink: sink}
}

// LowerModule executes the four-phase structure spec §4.6.2 describes:
// module prelude, globals emission, function emission, module epilogue.
func (lw *Lowerer) LowerModule(mod *il.Module, loadAddress uint16, basicStub bool) {
	lw.emitPrelude(mod, loadAddress, basicStub)
	lw.emitGlobals(mod)
	for _, fn := range mod.Funcs {
		lw.lowerFunc(fn, mod.Entry)
	}
	lw.emitEpilogue()
}

func (lw *Lowerer) emitPrelude(mod *il.Module, loadAddress uint16, basicStub bool) {
	lw.Builder.StartSection("prelude")
	lw.Builder.Comment(fmt.Sprintf("%s — generated, do not edit", lw.Builder.Module.Name))
	if basicStub {
		startAddr, stub := BasicLoaderStub(loadAddress)
		lw.Builder.Bytes(stub...)
		// The stub's SYS target is the byte immediately following it. Globals
		// and other functions may be emitted before the entry function, so a
		// JMP to the entry label is placed there.
		_ = startAddr
		lw.Builder.JmpAbs(mod.Entry)
	}
}

func (lw *Lowerer) emitGlobals(mod *il.Module) {
	if len(mod.Globals) == 0 {
		return
	}
	lw.Builder.StartSection("globals")
	for _, g := range mod.Globals {
		switch g.Storage {
		case il.GlobalZeroPage:
			lw.Builder.Directive(fmt.Sprintf("%s = $%02x", g.Name, g.Addr))
		case il.GlobalData:
			lw.Builder.Comment(fmt.Sprintf("%s (read-only data)", g.Name))
			lw.Builder.Label(g.Name)
			lw.Builder.Bytes(zeroFill(g.Type.Size())...)
		default: // GlobalRam, GlobalMapped
			lw.Builder.Label(g.Name)
			lw.Builder.Bytes(zeroFill(g.Type.Size())...)
		}
	}
}

func zeroFill(n int) []byte {
	if n <= 0 {
		n = 1
	}
	return make([]byte, n)
}

func (lw *Lowerer) emitEpilogue() {
	lw.Builder.StartSection("epilogue")
	lw.Builder.Comment("end of program")
}

func blockLabel(fn *il.Func, b *il.Block) string {
	if b.Label != "" {
		return fn.Name + "_" + b.Label
	}
	return fmt.Sprintf("%s_L%d", fn.Name, b.ID)
}

func (lw *Lowerer) lowerFunc(fn *il.Func, entryName string) {
	lw.fn = fn
	lw.frame = lw.FrameMap.Frames[fn.Name]
	lw.alloc = Allocate(fn, lw.Platform, lw.Sink)

	lw.Builder.StartSection("code")
	if fn.Name == entryName {
		lw.Builder.ExportedLabel(fn.Name)
	} else {
		lw.Builder.Label(fn.Name)
	}
	for _, b := range fn.Blocks {
		lw.Builder.Label(blockLabel(fn, b))
		for _, in := range b.Instrs {
			lw.lowerInstr(fn, in)
		}
	}
}

// varAddress resolves a named variable (local, parameter, or global) to
// its allocated address (spec §4.6.1: "using the FrameMap for all
// variable addresses").
func (lw *Lowerer) varAddress(name string) (uint16, bool) {
	if lw.frame != nil {
		if s := lw.frame.Slot(name); s != nil {
			return s.Address, true
		}
	}
	if s, ok := lw.FrameMap.Globals[name]; ok {
		return s.Address, true
	}
	return 0, false
}

func (lw *Lowerer) reportMissingVar(name string) {
	lw.Sink.Errorf(diag.CodegenUnsupportedOp, ast.Span{}, "function %q: no frame/global address resolved for variable %q", lw.fn.Name, name)
}

// loadOperandToA emits whatever's needed to put op's value into A.
func (lw *Lowerer) loadOperandToA(op il.Operand) {
	switch op.Kind {
	case il.OperandConst:
		lw.Builder.LdaImm(byte(op.Const))
	case il.OperandVar:
		addr, ok := lw.varAddress(op.Var)
		if !ok {
			lw.reportMissingVar(op.Var)
			return
		}
		lw.Builder.LdaAuto(addr)
	case il.OperandTemp:
		lw.loadTempToA(op.Temp)
	}
}

func (lw *Lowerer) loadTempToA(temp int) {
	loc := lw.alloc.Loc(temp)
	switch {
	case loc.Spilled:
		lw.Builder.LdaZp(byte(loc.Scratch))
	case loc.Reg == RegA:
		// already resident
	case loc.Reg == RegX:
		lw.Builder.Txa()
	case loc.Reg == RegY:
		lw.Builder.Tya()
	}
}

// loadOperandLowToA and loadOperandHighToA load the low/high byte of a
// word-valued operand into A. Word temps are always allocated to a 2-byte
// zero-page scratch pair (regalloc.go's wordTemps forcing), since neither
// A, X, nor Y can hold more than 8 bits; word variables occupy two
// consecutive bytes at addr/addr+1 the same way (spec §6.2: "little-endian
// word... low byte at addr, high byte at addr+1").
func (lw *Lowerer) loadOperandLowToA(op il.Operand) {
	switch op.Kind {
	case il.OperandConst:
		lw.Builder.LdaImm(byte(op.Const))
	case il.OperandVar:
		addr, ok := lw.varAddress(op.Var)
		if !ok {
			lw.reportMissingVar(op.Var)
			return
		}
		lw.Builder.LdaAuto(addr)
	case il.OperandTemp:
		loc := lw.alloc.Loc(op.Temp)
		lw.Builder.LdaZp(byte(loc.Scratch))
	}
}

func (lw *Lowerer) loadOperandHighToA(op il.Operand) {
	switch op.Kind {
	case il.OperandConst:
		lw.Builder.LdaImm(byte(op.Const >> 8))
	case il.OperandVar:
		addr, ok := lw.varAddress(op.Var)
		if !ok {
			lw.reportMissingVar(op.Var)
			return
		}
		lw.Builder.LdaAuto(addr + 1)
	case il.OperandTemp:
		loc := lw.alloc.Loc(op.Temp)
		lw.Builder.LdaZp(byte(loc.Scratch + 1))
	}
}

// storeAWordLowToDest and storeAWordHighToDest store A into the low/high
// byte of a word-valued dest's scratch pair.
func (lw *Lowerer) storeAWordLowToDest(dest int) {
	loc := lw.alloc.Loc(dest)
	lw.Builder.StaZp(byte(loc.Scratch))
}

func (lw *Lowerer) storeAWordHighToDest(dest int) {
	loc := lw.alloc.Loc(dest)
	lw.Builder.StaZp(byte(loc.Scratch + 1))
}

// storeAFromDest routes A into wherever dest's allocation says it lives.
func (lw *Lowerer) storeAFromDest(dest int) {
	if dest < 0 {
		return
	}
	loc := lw.alloc.Loc(dest)
	switch {
	case loc.Spilled:
		lw.Builder.StaZp(byte(loc.Scratch))
	case loc.Reg == RegX:
		lw.Builder.Tax()
	case loc.Reg == RegY:
		lw.Builder.Tay()
	}
}

func condToBranch(cond il.CondCode) (asmFirst func(*asmil.Builder, string), inverse func(*asmil.Builder, string)) {
	switch cond {
	case il.CondEq:
		return (*asmil.Builder).Beq, (*asmil.Builder).Bne
	case il.CondNe:
		return (*asmil.Builder).Bne, (*asmil.Builder).Beq
	case il.CondLt:
		return (*asmil.Builder).Bcc, (*asmil.Builder).Bcs
	case il.CondGe:
		return (*asmil.Builder).Bcs, (*asmil.Builder).Bcc
	default:
		return (*asmil.Builder).Beq, (*asmil.Builder).Bne
	}
}

// lowerInstr implements the per-opcode lowering table (spec §4.6.3).
func (lw *Lowerer) lowerInstr(fn *il.Func, in il.Instruction) {
	b := lw.Builder
	switch in.Op {
	case il.OpConst:
		lw.loadOperandToA(in.Args[0])
		lw.storeAFromDest(in.Dest)

	case il.OpCopy:
		lw.loadOperandToA(in.Args[0])
		lw.storeAFromDest(in.Dest)

	case il.OpLoad:
		addr, ok := lw.varAddress(in.Label)
		if !ok {
			lw.reportMissingVar(in.Label)
			return
		}
		b.LdaAuto(addr)
		lw.storeAFromDest(in.Dest)

	case il.OpStore:
		addr, ok := lw.varAddress(in.Label)
		if !ok {
			lw.reportMissingVar(in.Label)
			return
		}
		lw.loadOperandToA(in.Args[0])
		b.StaAuto(addr)

	case il.OpAdd:
		lw.loadOperandToA(in.Args[0])
		b.Clc()
		lw.binOpRhs(in.Args[1], b.AdcImm, b.AdcAuto)
		lw.storeAFromDest(in.Dest)

	case il.OpSub:
		lw.loadOperandToA(in.Args[0])
		b.Sec()
		lw.binOpRhs(in.Args[1], b.SbcImm, b.SbcAuto)
		lw.storeAFromDest(in.Dest)

	case il.OpAnd:
		lw.loadOperandToA(in.Args[0])
		lw.binOpRhs(in.Args[1], b.AndImm, b.AndAuto)
		lw.storeAFromDest(in.Dest)

	case il.OpOr:
		lw.loadOperandToA(in.Args[0])
		lw.binOpRhs(in.Args[1], b.OraImm, b.OraAuto)
		lw.storeAFromDest(in.Dest)

	case il.OpXor:
		lw.loadOperandToA(in.Args[0])
		lw.binOpRhs(in.Args[1], b.EorImm, b.EorAuto)
		lw.storeAFromDest(in.Dest)

	case il.OpShl:
		lw.loadOperandToA(in.Args[0])
		b.AslAcc()
		lw.storeAFromDest(in.Dest)

	case il.OpShr:
		lw.loadOperandToA(in.Args[0])
		b.LsrAcc()
		lw.storeAFromDest(in.Dest)

	case il.OpNeg:
		// 6502 has no NEG; two's complement via EOR #$FF ; CLC ; ADC #1.
		lw.loadOperandToA(in.Args[0])
		b.EorImm(0xFF)
		b.Clc()
		b.AdcImm(1)
		lw.storeAFromDest(in.Dest)

	case il.OpNot:
		lw.loadOperandToA(in.Args[0])
		b.EorImm(0xFF)
		lw.storeAFromDest(in.Dest)

	case il.OpPeek, il.OpHwRead:
		b.LdaAuto(in.Addr)
		lw.storeAFromDest(in.Dest)

	case il.OpPoke, il.OpHwWrite:
		lw.loadOperandToA(in.Args[0])
		b.StaAuto(in.Addr)

	case il.OpPeekW:
		b.LdaAuto(in.Addr)
		lw.storeAWordLowToDest(in.Dest)
		b.LdaAuto(in.Addr + 1)
		lw.storeAWordHighToDest(in.Dest)

	case il.OpPokeW:
		lw.loadOperandLowToA(in.Args[0])
		b.StaAuto(in.Addr)
		lw.loadOperandHighToA(in.Args[0])
		b.StaAuto(in.Addr + 1)

	case il.OpIndexLoad:
		lw.lowerIndexLoad(in)

	case il.OpIndexStore:
		lw.lowerIndexStore(in)

	case il.OpJump:
		b.JmpAbs(fn.Name + "_" + in.Label)

	case il.OpBranch:
		lw.loadOperandToA(in.Args[0])
		if len(in.Args) > 1 {
			lw.binOpRhs(in.Args[1], b.CmpImm, func(addr uint16) { b.CmpAbs(addr) })
		}
		taken, _ := condToBranch(in.Cond)
		taken(b, fn.Name+"_"+in.Label)

	case il.OpCall:
		b.Jsr(in.Label)
		lw.storeAFromDest(in.Dest)

	case il.OpCallVoid:
		b.Jsr(in.Label)

	case il.OpReturn:
		lw.loadOperandToA(in.Args[0])
		b.Rts()

	case il.OpReturnVoid:
		b.Rts()

	case il.OpSys:
		b.Jsr(in.Label)

	case il.OpPhi:
		// Block-argument merges never survive to codegen: every
		// predecessor writes the same named variable before branching,
		// so by the time lowering sees this block the value is already
		// reachable via OpLoad. A stray Phi here means the optimizer's
		// unreachable-block pass left one unconverted block behind.
		lw.Sink.Errorf(diag.CodegenUnsupportedOp, ast.Span{}, "function %q: unlowered phi for t%d", fn.Name, in.Dest)

	default:
		utils.ShouldNotReachHere()
	}
}

// binOpRhs picks the immediate or memory-operand builder method depending
// on the RHS operand kind.
func (lw *Lowerer) binOpRhs(op il.Operand, immFn func(byte), autoFn func(uint16)) {
	switch op.Kind {
	case il.OperandConst:
		immFn(byte(op.Const))
	case il.OperandVar:
		addr, ok := lw.varAddress(op.Var)
		if !ok {
			lw.reportMissingVar(op.Var)
			return
		}
		autoFn(addr)
	case il.OperandTemp:
		loc := lw.alloc.Loc(op.Temp)
		if loc.Spilled {
			autoFn(loc.Scratch)
			return
		}
		// 6502 arithmetic can only combine A with a memory operand, never
		// two registers directly. No transient spill is emitted here: a
		// register-resident RHS is reported as CODEGEN_UNSUPPORTED_OP.
		lw.Sink.Errorf(diag.CodegenUnsupportedOp, ast.Span{}, "binop RHS temp t%d is register-resident; expected a memory operand", op.Temp)
	}
}

// lowerIndexLoad implements `arr[i]` (spec §4.6.5): `i` in X, base
// absolute, `arr,X` addressing.
func (lw *Lowerer) lowerIndexLoad(in il.Instruction) {
	base, ok := lw.varAddress(in.Args[0].Var)
	if !ok {
		lw.reportMissingVar(in.Args[0].Var)
		return
	}
	lw.loadIndexToX(in.Args[1])
	lw.Builder.LdaAbsX(base)
	lw.storeAFromDest(in.Dest)
}

func (lw *Lowerer) lowerIndexStore(in il.Instruction) {
	base, ok := lw.varAddress(in.Args[0].Var)
	if !ok {
		lw.reportMissingVar(in.Args[0].Var)
		return
	}
	lw.loadIndexToX(in.Args[1])
	lw.loadOperandToA(in.Args[2])
	lw.Builder.StaAbsX(base)
}

func (lw *Lowerer) loadIndexToX(op il.Operand) {
	switch op.Kind {
	case il.OperandConst:
		lw.Builder.LdxImm(byte(op.Const))
	case il.OperandVar:
		addr, ok := lw.varAddress(op.Var)
		if !ok {
			lw.reportMissingVar(op.Var)
			return
		}
		lw.Builder.LdxAuto(addr)
	case il.OperandTemp:
		loc := lw.alloc.Loc(op.Temp)
		if loc.Reg == RegX {
			return
		}
		if loc.Spilled {
			lw.Builder.LdxZp(byte(loc.Scratch))
			return
		}
		if loc.Reg == RegA {
			lw.Builder.Tax()
		}
	}
}
