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

import "blend65/pattern"

// Required IL-level patterns (spec §4.2.4, the "minimum set for the MVP
// optimizer"). Loop optimizations (LICM, unrolling) are explicitly scoped
// out (spec §4.2.4) and not attempted here.

type constantFoldingPattern struct{}

func (constantFoldingPattern) Name() string     { return "constant-folding" }
func (constantFoldingPattern) Priority() int     { return 100 }
func (constantFoldingPattern) Category() string { return "const" }

func (constantFoldingPattern) Match(instrs []Instruction, i int, ctx *Context) (pattern.MatchResult[Instruction], bool) {
	in := instrs[i]
	if in.Op.Volatile() {
		return pattern.MatchResult[Instruction]{}, false
	}
	switch in.Op {
	case OpAdd, OpSub, OpAnd, OpOr, OpXor, OpShl, OpShr:
		if len(in.Args) == 2 && in.Args[0].Kind == OperandConst && in.Args[1].Kind == OperandConst {
			return pattern.MatchResult[Instruction]{Start: i, Length: 1, Matched: []Instruction{in}}, true
		}
	case OpNeg, OpNot:
		if len(in.Args) == 1 && in.Args[0].Kind == OperandConst {
			return pattern.MatchResult[Instruction]{Start: i, Length: 1, Matched: []Instruction{in}}, true
		}
	}
	return pattern.MatchResult[Instruction]{}, false
}

func (constantFoldingPattern) Apply(m pattern.MatchResult[Instruction], ctx *Context) []Instruction {
	in := m.Matched[0]
	var result int64
	switch in.Op {
	case OpAdd:
		result = in.Args[0].Const + in.Args[1].Const
	case OpSub:
		result = in.Args[0].Const - in.Args[1].Const
	case OpAnd:
		result = in.Args[0].Const & in.Args[1].Const
	case OpOr:
		result = in.Args[0].Const | in.Args[1].Const
	case OpXor:
		result = in.Args[0].Const ^ in.Args[1].Const
	case OpShl:
		result = in.Args[0].Const << uint(in.Args[1].Const)
	case OpShr:
		result = in.Args[0].Const >> uint(in.Args[1].Const)
	case OpNeg:
		result = -in.Args[0].Const
	case OpNot:
		if in.Args[0].Const == 0 {
			result = 1
		} else {
			result = 0
		}
	}
	return []Instruction{{Op: OpConst, Dest: in.Dest, Args: []Operand{ConstOperand(result)}, Type: in.Type, Loc: in.Loc}}
}

// algebraicIdentityPattern covers x+0, x-0, x&0, x|0xFF and their mirrors
// (spec §4.2.4). Multiplication/division are not part of this IL's
// instruction set (spec §3.3 only names add/sub/and/or/xor/shift), so the
// spec's "x × 1 → x" / "x × 0 → 0" examples are honored only for the
// operators this IL actually has.
type algebraicIdentityPattern struct{}

func (algebraicIdentityPattern) Name() string     { return "algebraic-identity" }
func (algebraicIdentityPattern) Priority() int     { return 90 }
func (algebraicIdentityPattern) Category() string { return "const" }

func constOperandArg(o Operand) (int64, bool) {
	if o.Kind == OperandConst {
		return o.Const, true
	}
	return 0, false
}

func (algebraicIdentityPattern) Match(instrs []Instruction, i int, ctx *Context) (pattern.MatchResult[Instruction], bool) {
	in := instrs[i]
	if in.Op.Volatile() || len(in.Args) != 2 {
		return pattern.MatchResult[Instruction]{}, false
	}
	lhs, lok := constOperandArg(in.Args[0])
	rhs, rok := constOperandArg(in.Args[1])
	switch in.Op {
	case OpAdd:
		if (rok && rhs == 0) || (lok && lhs == 0) {
			return pattern.MatchResult[Instruction]{Start: i, Length: 1, Matched: []Instruction{in}}, true
		}
	case OpSub:
		if rok && rhs == 0 {
			return pattern.MatchResult[Instruction]{Start: i, Length: 1, Matched: []Instruction{in}}, true
		}
	case OpAnd:
		if (rok && rhs == 0) || (lok && lhs == 0) {
			return pattern.MatchResult[Instruction]{Start: i, Length: 1, Matched: []Instruction{in}}, true
		}
	case OpOr:
		if (rok && rhs == 0xFF) || (lok && lhs == 0xFF) {
			return pattern.MatchResult[Instruction]{Start: i, Length: 1, Matched: []Instruction{in}}, true
		}
	}
	return pattern.MatchResult[Instruction]{}, false
}

func (algebraicIdentityPattern) Apply(m pattern.MatchResult[Instruction], ctx *Context) []Instruction {
	in := m.Matched[0]
	lhs, lok := constOperandArg(in.Args[0])
	rhs, rok := constOperandArg(in.Args[1])
	switch in.Op {
	case OpAdd:
		if rok && rhs == 0 {
			return []Instruction{{Op: OpCopy, Dest: in.Dest, Args: []Operand{in.Args[0]}, Type: in.Type, Loc: in.Loc}}
		}
		return []Instruction{{Op: OpCopy, Dest: in.Dest, Args: []Operand{in.Args[1]}, Type: in.Type, Loc: in.Loc}}
	case OpSub:
		return []Instruction{{Op: OpCopy, Dest: in.Dest, Args: []Operand{in.Args[0]}, Type: in.Type, Loc: in.Loc}}
	case OpAnd:
		if (rok && rhs == 0) || (lok && lhs == 0) {
			return []Instruction{{Op: OpConst, Dest: in.Dest, Args: []Operand{ConstOperand(0)}, Type: in.Type, Loc: in.Loc}}
		}
	case OpOr:
		return []Instruction{{Op: OpConst, Dest: in.Dest, Args: []Operand{ConstOperand(0xFF)}, Type: in.Type, Loc: in.Loc}}
	}
	return m.Matched
}

// constantPropagationPattern replaces later uses of a just-defined
// constant temp with the literal value in every later instruction of the
// block (spec §4.2.4). Volatile ops do not stop the rewrite; they only
// receive the literal in place of the temp.
type constantPropagationPattern struct{}

func (constantPropagationPattern) Name() string     { return "constant-propagation" }
func (constantPropagationPattern) Priority() int     { return 80 }
func (constantPropagationPattern) Category() string { return "propagation" }

func (constantPropagationPattern) Match(instrs []Instruction, i int, ctx *Context) (pattern.MatchResult[Instruction], bool) {
	def := instrs[i]
	if def.Op != OpConst || def.Dest < 0 {
		return pattern.MatchResult[Instruction]{}, false
	}
	last := i
	found := false
	for j := i + 1; j < len(instrs); j++ {
		usesTemp := false
		for _, a := range instrs[j].Args {
			if a.Kind == OperandTemp && a.Temp == def.Dest {
				usesTemp = true
			}
		}
		if usesTemp {
			last = j
			found = true
		}
	}
	if !found {
		return pattern.MatchResult[Instruction]{}, false
	}
	window := make([]Instruction, last-i+1)
	copy(window, instrs[i:last+1])
	return pattern.MatchResult[Instruction]{Start: i, Length: last - i + 1, Matched: window}, true
}

func (constantPropagationPattern) Apply(m pattern.MatchResult[Instruction], ctx *Context) []Instruction {
	def := m.Matched[0]
	out := make([]Instruction, len(m.Matched))
	out[0] = def
	for k := 1; k < len(m.Matched); k++ {
		in := m.Matched[k]
		newArgs := make([]Operand, len(in.Args))
		for ai, a := range in.Args {
			if a.Kind == OperandTemp && a.Temp == def.Dest {
				newArgs[ai] = ConstOperand(def.Args[0].Const)
			} else {
				newArgs[ai] = a
			}
		}
		in.Args = newArgs
		out[k] = in
	}
	return out
}

// copyPropagationPattern implements spec §4.2.4's `a = b; use(a) → use(b)`
// by chasing an OpCopy's source into its first later use, mirroring the
// same "store then load the same place" shape Scenario 2 (spec §8.2)
// describes for the ASM-level store-load-elimination pattern, one layer
// up at the IL/variable level.
type copyPropagationPattern struct{}

func (copyPropagationPattern) Name() string     { return "copy-propagation" }
func (copyPropagationPattern) Priority() int     { return 80 }
func (copyPropagationPattern) Category() string { return "propagation" }

func (copyPropagationPattern) Match(instrs []Instruction, i int, ctx *Context) (pattern.MatchResult[Instruction], bool) {
	def := instrs[i]
	if def.Op != OpCopy || def.Dest < 0 || len(def.Args) != 1 {
		return pattern.MatchResult[Instruction]{}, false
	}
	for j := i + 1; j < len(instrs); j++ {
		for _, a := range instrs[j].Args {
			if a.Kind == OperandTemp && a.Temp == def.Dest {
				window := make([]Instruction, j-i+1)
				copy(window, instrs[i:j+1])
				return pattern.MatchResult[Instruction]{Start: i, Length: j - i + 1, Matched: window}, true
			}
		}
	}
	return pattern.MatchResult[Instruction]{}, false
}

func (copyPropagationPattern) Apply(m pattern.MatchResult[Instruction], ctx *Context) []Instruction {
	def := m.Matched[0]
	src := def.Args[0]
	out := make([]Instruction, len(m.Matched))
	out[0] = def
	for k := 1; k < len(m.Matched); k++ {
		in := m.Matched[k]
		newArgs := make([]Operand, len(in.Args))
		for ai, a := range in.Args {
			if a.Kind == OperandTemp && a.Temp == def.Dest {
				newArgs[ai] = src
			} else {
				newArgs[ai] = a
			}
		}
		in.Args = newArgs
		out[k] = in
	}
	return out
}

// storeLoadForwardingPattern implements Scenario 2's store/load
// elimination (spec §8.2) at the IL layer: a store to a variable followed
// by a load of that same variable, with no intervening write, forwards
// the stored value directly — turning the load into a copy of the stored
// operand. The store itself is left for deadStoreEliminationPattern to
// clean up once it has no remaining reads.
type storeLoadForwardingPattern struct{}

func (storeLoadForwardingPattern) Name() string     { return "store-load-forwarding" }
func (storeLoadForwardingPattern) Priority() int     { return 75 }
func (storeLoadForwardingPattern) Category() string { return "propagation" }

func (storeLoadForwardingPattern) Match(instrs []Instruction, i int, ctx *Context) (pattern.MatchResult[Instruction], bool) {
	st := instrs[i]
	if st.Op != OpStore || len(st.Args) != 1 {
		return pattern.MatchResult[Instruction]{}, false
	}
	for j := i + 1; j < len(instrs); j++ {
		nxt := instrs[j]
		if nxt.Label != st.Label {
			continue
		}
		switch nxt.Op {
		case OpLoad:
			window := make([]Instruction, j-i+1)
			copy(window, instrs[i:j+1])
			return pattern.MatchResult[Instruction]{Start: i, Length: j - i + 1, Matched: window}, true
		case OpStore:
			return pattern.MatchResult[Instruction]{}, false // rewritten before any load: not a forwarding opportunity
		}
	}
	return pattern.MatchResult[Instruction]{}, false
}

func (storeLoadForwardingPattern) Apply(m pattern.MatchResult[Instruction], ctx *Context) []Instruction {
	st := m.Matched[0]
	out := make([]Instruction, len(m.Matched))
	out[0] = st
	for k := 1; k < len(m.Matched); k++ {
		in := m.Matched[k]
		if in.Op == OpLoad && in.Label == st.Label {
			in = Instruction{Op: OpCopy, Dest: in.Dest, Args: []Operand{st.Args[0]}, Type: in.Type, Loc: in.Loc}
		}
		out[k] = in
	}
	return out
}

// deadCodeEliminationPattern drops a side-effect-free instruction whose
// result is unused anywhere in the function (spec §4.2.4). ctx.UseCount
// is recomputed once per sweep by the driver (Optimizer.Run).
type deadCodeEliminationPattern struct{}

func (deadCodeEliminationPattern) Name() string     { return "dead-code-elimination" }
func (deadCodeEliminationPattern) Priority() int     { return 70 }
func (deadCodeEliminationPattern) Category() string { return "dce" }

func (deadCodeEliminationPattern) Match(instrs []Instruction, i int, ctx *Context) (pattern.MatchResult[Instruction], bool) {
	in := instrs[i]
	if in.Op.HasSideEffect() || in.Dest < 0 {
		return pattern.MatchResult[Instruction]{}, false
	}
	if ctx.UsedElsewhere(in.Dest) {
		return pattern.MatchResult[Instruction]{}, false
	}
	return pattern.MatchResult[Instruction]{Start: i, Length: 1, Matched: []Instruction{in}}, true
}

func (deadCodeEliminationPattern) Apply(m pattern.MatchResult[Instruction], ctx *Context) []Instruction {
	return nil
}

// deadStoreEliminationPattern drops `store varname, t` when no later
// instruction in the block reads varname before either the block ends or
// varname is next written (spec §4.2.4). Volatile targets (poke/hw_write
// are separate ops entirely, never OpStore) are unaffected by
// construction.
type deadStoreEliminationPattern struct{}

func (deadStoreEliminationPattern) Name() string     { return "dead-store-elimination" }
func (deadStoreEliminationPattern) Priority() int     { return 60 }
func (deadStoreEliminationPattern) Category() string { return "dce" }

func (deadStoreEliminationPattern) Match(instrs []Instruction, i int, ctx *Context) (pattern.MatchResult[Instruction], bool) {
	in := instrs[i]
	if in.Op != OpStore {
		return pattern.MatchResult[Instruction]{}, false
	}
	varName := in.Label
	for j := i + 1; j < len(instrs); j++ {
		nxt := instrs[j]
		if nxt.Op == OpLoad && nxt.Label == varName {
			return pattern.MatchResult[Instruction]{}, false // read before rewrite: not dead
		}
		if nxt.Op == OpStore && nxt.Label == varName {
			break // rewritten before any read: the first store is dead
		}
		if isTerminatorOp(nxt.Op) {
			break // reaches block end unread: dead within this block
		}
	}
	return pattern.MatchResult[Instruction]{Start: i, Length: 1, Matched: []Instruction{in}}, true
}

func (deadStoreEliminationPattern) Apply(m pattern.MatchResult[Instruction], ctx *Context) []Instruction {
	return nil
}

// NewRegistry builds the standard IL pattern registry with the full
// required set (spec §4.2.4).
func NewRegistry() *pattern.Registry[Instruction, *Context] {
	r := pattern.NewRegistry[Instruction, *Context]()
	r.Add(constantFoldingPattern{})
	r.Add(algebraicIdentityPattern{})
	r.Add(constantPropagationPattern{})
	r.Add(copyPropagationPattern{})
	r.Add(storeLoadForwardingPattern{})
	r.Add(deadCodeEliminationPattern{})
	r.Add(deadStoreEliminationPattern{})
	return r
}
