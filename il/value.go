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

// Package il is the 3-address, basic-block-structured IL (spec §3.3) and
// its fixed-point optimizer (spec §4.2). The block/value model is an
// arena: blocks live in Func.Blocks indexed by BlockID, and
// predecessor/successor lists carry BlockIDs rather than *Block pointers
// — the re-architecture Design Notes §9 calls for ("cyclic AST/IL
// references... use an arena indexed by block-ID"), even though the
// teacher's own compile/ssa/hir.go still links blocks with raw pointers.
package il

import (
	"fmt"

	"blend65/ast"
)

// Op enumerates the IL instruction variants (spec §3.3). Go has no sum
// types, so — per Design Notes §9 — this is expressed as a tag plus a
// single Instruction struct wide enough to hold any variant's operand
// data; the tag is what a `switch` dispatches on, the same shape the
// teacher's own Value.Op/Block.Kind enums use in compile/ssa/hir.go.
type Op int

const (
	OpConst Op = iota
	OpCopy // dest = Args[0], a bare temp-to-temp move; introduced by identity/propagation patterns
	OpLoad
	OpStore
	OpAdd
	OpSub
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpNeg
	OpNot
	OpPeek
	OpPoke
	OpPeekW
	OpPokeW
	OpHwRead
	OpHwWrite
	OpSys
	OpIndexLoad  // array element load: dest = base[index]
	OpIndexStore // array element store: base[index] = value
	OpJump
	OpBranch
	OpCall
	OpCallVoid
	OpReturn
	OpReturnVoid
	OpPhi
)

func (o Op) String() string {
	names := [...]string{
		"const", "copy", "load", "store", "add", "sub", "and", "or", "xor", "shl", "shr",
		"neg", "not", "peek", "poke", "peekw", "pokew", "hw_read", "hw_write", "sys",
		"index_load", "index_store", "jump", "branch", "call", "call_void",
		"return", "return_void", "phi",
	}
	if int(o) < len(names) {
		return names[o]
	}
	return "?"
}

// Volatile reports whether this op is one of the seven hardware-accessing
// primitives (peek, poke, peekw, pokew, hw_read, hw_write, sys) that must never be eliminated, reordered across another
// volatile op, or hoisted out of loops (spec §4.2.5, §6.2).
func (o Op) Volatile() bool {
	switch o {
	case OpPeek, OpPoke, OpPeekW, OpPokeW, OpHwRead, OpHwWrite, OpSys:
		return true
	default:
		return false
	}
}

// HasSideEffect reports whether the instruction has an observable effect,
// so that it must be kept even when its result is unused (spec §4.2.4
// dead-code elimination excludes anything with an observable effect).
func (o Op) HasSideEffect() bool {
	switch o {
	case OpStore, OpIndexStore, OpPoke, OpPokeW, OpHwWrite, OpSys,
		OpCall, OpCallVoid, OpJump, OpBranch, OpReturn, OpReturnVoid:
		return true
	default:
		return o.Volatile()
	}
}

// Defines reports whether this op writes a destination temp. Instruction.Dest
// defaults to the Go zero value (0) on literals that never set it — a valid
// temp ID, not a sentinel — so callers that need to know "does this
// instruction define anything" must gate on the op, not on Dest >= 0.
func (o Op) Defines() bool {
	switch o {
	case OpStore, OpIndexStore, OpPoke, OpPokeW, OpHwWrite, OpSys,
		OpJump, OpBranch, OpCallVoid, OpReturn, OpReturnVoid:
		return false
	default:
		return true
	}
}

type OperandKind int

const (
	OperandTemp OperandKind = iota
	OperandConst
	OperandVar
	OperandLabel
)

// Operand is a reference to a value used by an instruction: an SSA temp,
// an immediate constant, a named variable, or a block label.
type Operand struct {
	Kind  OperandKind
	Temp  int
	Const int64
	Var   string
	Label string
}

func TempOperand(id int) Operand  { return Operand{Kind: OperandTemp, Temp: id} }
func ConstOperand(c int64) Operand { return Operand{Kind: OperandConst, Const: c} }
func VarOperand(name string) Operand { return Operand{Kind: OperandVar, Var: name} }
func LabelOperand(name string) Operand { return Operand{Kind: OperandLabel, Label: name} }

func (o Operand) String() string {
	switch o.Kind {
	case OperandTemp:
		return fmt.Sprintf("t%d", o.Temp)
	case OperandConst:
		return fmt.Sprintf("%d", o.Const)
	case OperandVar:
		return o.Var
	case OperandLabel:
		return o.Label
	default:
		return "?"
	}
}

// CondCode is the comparison a branch instruction tests.
type CondCode int

const (
	CondEq CondCode = iota
	CondNe
	CondLt
	CondLe
	CondGt
	CondGe
)

// Instruction is one tagged IL operation (spec §3.3). Dest is the
// destination temp, meaningful only when Op.Defines() is true; literals of
// non-defining ops (store/jump/return_void) usually leave it at 0. Every
// instruction carries a source-location back-pointer for diagnostics.
type Instruction struct {
	Op    Op
	Dest  int
	Args  []Operand
	Cond  CondCode
	Type  *ast.Type
	Label string // jump/branch/call target, or store/load/peek/poke address symbol
	Addr  uint16 // resolved absolute address for peek/poke/hw_read/hw_write
	Loc   ast.Span
}

func (i Instruction) String() string {
	s := i.Op.String()
	if i.Dest >= 0 {
		s = fmt.Sprintf("t%d = %s", i.Dest, s)
	}
	if i.Label != "" {
		s += " " + i.Label
	}
	for _, a := range i.Args {
		s += " " + a.String()
	}
	return s
}

// BlockID indexes into Func.Blocks.
type BlockID int

// Block is one basic block: a label, an ordered instruction list, and
// predecessor/successor references by ID (spec §3.3).
type Block struct {
	ID     BlockID
	Label  string
	Instrs []Instruction
	Preds  []BlockID
	Succs  []BlockID
}

// Terminator returns the block's last instruction, or nil if the block is
// empty (an invariant violation the verifier below catches).
func (b *Block) Terminator() *Instruction {
	if len(b.Instrs) == 0 {
		return nil
	}
	return &b.Instrs[len(b.Instrs)-1]
}

func isTerminatorOp(op Op) bool {
	switch op {
	case OpJump, OpBranch, OpReturn, OpReturnVoid:
		return true
	default:
		return false
	}
}

// Func is one IL function: an ordered block list, parameter names, return
// type, and a designated entry block.
type Func struct {
	Name    string
	Params  []string
	RetType *ast.Type
	Blocks  []*Block
	Entry   BlockID
	nextTemp int
	nextBlockID BlockID
}

func NewFunc(name string, retType *ast.Type) *Func {
	return &Func{Name: name, RetType: retType}
}

func (f *Func) NewBlock(label string) *Block {
	b := &Block{ID: f.nextBlockID, Label: label}
	f.nextBlockID++
	f.Blocks = append(f.Blocks, b)
	return b
}

func (f *Func) NewTemp() int {
	t := f.nextTemp
	f.nextTemp++
	return t
}

func (f *Func) Block(id BlockID) *Block {
	for _, b := range f.Blocks {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// WireTo records a directed CFG edge from -> to, keeping both Succs and
// Preds consistent (spec §3.3 invariant: "every successor/predecessor
// relation is bidirectional and consistent").
func (f *Func) WireTo(from, to *Block) {
	from.Succs = append(from.Succs, to.ID)
	to.Preds = append(to.Preds, from.ID)
}

// GlobalStorage classifies a module global's placement (spec §3.3).
type GlobalStorage int

const (
	GlobalZeroPage GlobalStorage = iota
	GlobalRam
	GlobalData
	GlobalMapped
)

type Global struct {
	Name    string
	Type    *ast.Type
	Storage GlobalStorage
	Addr    uint16
}

// Module owns every global and function in one compilation unit, plus the
// designated entry symbol (spec §3.3).
type Module struct {
	Globals []Global
	Funcs   []*Func
	Entry   string
}

func (m *Module) FindFunc(name string) *Func {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}
