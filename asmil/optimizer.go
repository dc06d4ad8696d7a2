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

import "blend65/pattern"

// OptContext is the read-only state ASM-IL patterns need: which labels a
// branch/jump target resolves to (for branch-chain patterns), grouped by
// the instruction index immediately following the label (spec §4.4.2).
type OptContext struct {
	// NextInstrAfterLabel maps a label name to the index, within the same
	// flattened element slice a Sweep call is operating over, of the first
	// ElemInstruction that follows it. Rebuilt once per sweep.
	NextInstrAfterLabel map[string]int
}

// BuildContext scans elems once and indexes every label's immediate
// successor instruction, for branch-chain-style lookahead.
func BuildContext(elems []AsmElement) *OptContext {
	ctx := &OptContext{NextInstrAfterLabel: make(map[string]int)}
	pendingLabels := []string{}
	for i, e := range elems {
		if e.Kind == ElemLabel {
			pendingLabels = append(pendingLabels, e.Label)
			continue
		}
		if e.Kind == ElemInstruction {
			for _, l := range pendingLabels {
				ctx.NextInstrAfterLabel[l] = i
			}
			pendingLabels = nil
		}
	}
	return ctx
}

func isLabeled(elems []AsmElement, i int) bool {
	return i > 0 && elems[i-1].Kind == ElemLabel
}

// --- Load/Store family (spec §4.4.2, highest priority) ---

type storeLoadEliminationPattern struct{ st, ld Mnemonic }

func (p storeLoadEliminationPattern) Name() string { return "store-load-elimination-" + string(p.st) }
func (storeLoadEliminationPattern) Priority() int     { return 100 }
func (storeLoadEliminationPattern) Category() string { return "load-store" }

func sameOperand(a, b AsmElement) bool {
	return a.Mode == b.Mode && a.Operand == b.Operand && a.OperandLabel == b.OperandLabel
}

func (p storeLoadEliminationPattern) Match(elems []AsmElement, i int, ctx *OptContext) (pattern.MatchResult[AsmElement], bool) {
	if i+1 >= len(elems) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	a, b := elems[i], elems[i+1]
	if a.Kind != ElemInstruction || b.Kind != ElemInstruction {
		return pattern.MatchResult[AsmElement]{}, false
	}
	if a.Mnemonic != p.st || b.Mnemonic != p.ld {
		return pattern.MatchResult[AsmElement]{}, false
	}
	if a.Volatile || !sameOperand(a, b) || isLabeled(elems, i+1) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	return pattern.MatchResult[AsmElement]{Start: i, Length: 2, Matched: []AsmElement{a, b}}, true
}

func (p storeLoadEliminationPattern) Apply(m pattern.MatchResult[AsmElement], ctx *OptContext) []AsmElement {
	return []AsmElement{m.Matched[0]}
}

type deadLoadPattern struct{ mnemonic Mnemonic }

func (p deadLoadPattern) Name() string     { return "dead-load-" + string(p.mnemonic) }
func (deadLoadPattern) Priority() int     { return 95 }
func (deadLoadPattern) Category() string { return "load-store" }

func (p deadLoadPattern) Match(elems []AsmElement, i int, ctx *OptContext) (pattern.MatchResult[AsmElement], bool) {
	if i+1 >= len(elems) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	a, b := elems[i], elems[i+1]
	if a.Kind != ElemInstruction || b.Kind != ElemInstruction {
		return pattern.MatchResult[AsmElement]{}, false
	}
	if a.Mnemonic != p.mnemonic || b.Mnemonic != p.mnemonic {
		return pattern.MatchResult[AsmElement]{}, false
	}
	if isLabeled(elems, i+1) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	return pattern.MatchResult[AsmElement]{Start: i, Length: 2, Matched: []AsmElement{a, b}}, true
}

func (p deadLoadPattern) Apply(m pattern.MatchResult[AsmElement], ctx *OptContext) []AsmElement {
	survivor := m.Matched[1]
	return []AsmElement{survivor}
}

// redundantLoadPattern drops a second `LDA α` that reloads the same
// address A already holds, provided nothing between the two touches A or
// α, carries a label, or is a branch/jump (spec §4.4.2).
type redundantLoadPattern struct{ mnemonic Mnemonic }

func modifiesReg(mnemonic Mnemonic) bool {
	switch mnemonic {
	case LDA, ADC, SBC, AND, ORA, EOR, ASL, LSR, ROL, ROR, PLA, TXA, TYA, LDX, LDY, TAX, TAY, INX, DEX, INY, DEY:
		return true
	default:
		return false
	}
}

func controlFlow(mnemonic Mnemonic) bool {
	return isBranch(mnemonic) || mnemonic == JMP || mnemonic == JSR || mnemonic == RTS || mnemonic == RTI || mnemonic == BRK
}

func (p redundantLoadPattern) Name() string     { return "redundant-load-" + string(p.mnemonic) }
func (redundantLoadPattern) Priority() int     { return 90 }
func (redundantLoadPattern) Category() string { return "load-store" }

func (p redundantLoadPattern) Match(elems []AsmElement, i int, ctx *OptContext) (pattern.MatchResult[AsmElement], bool) {
	first := elems[i]
	if first.Kind != ElemInstruction || first.Mnemonic != p.mnemonic || first.Volatile {
		return pattern.MatchResult[AsmElement]{}, false
	}
	for j := i + 1; j < len(elems); j++ {
		e := elems[j]
		if e.Kind == ElemLabel {
			return pattern.MatchResult[AsmElement]{}, false
		}
		if e.Kind != ElemInstruction {
			continue
		}
		if controlFlow(e.Mnemonic) {
			return pattern.MatchResult[AsmElement]{}, false
		}
		if e.Mnemonic == p.mnemonic && sameOperand(e, first) {
			window := make([]AsmElement, j-i+1)
			copy(window, elems[i:j+1])
			return pattern.MatchResult[AsmElement]{Start: i, Length: j - i + 1, Matched: window}, true
		}
		if modifiesReg(e.Mnemonic) {
			return pattern.MatchResult[AsmElement]{}, false
		}
		if storeTargets(e, first) {
			return pattern.MatchResult[AsmElement]{}, false
		}
	}
	return pattern.MatchResult[AsmElement]{}, false
}

func storeTargets(e, loaded AsmElement) bool {
	switch e.Mnemonic {
	case STA, STX, STY, INC, DEC, ASL, LSR, ROL, ROR:
		return sameOperand(e, loaded)
	default:
		return false
	}
}

func (p redundantLoadPattern) Apply(m pattern.MatchResult[AsmElement], ctx *OptContext) []AsmElement {
	out := make([]AsmElement, 0, len(m.Matched)-1)
	out = append(out, m.Matched[:len(m.Matched)-1]...)
	return out
}

// deadStorePattern drops a first `STA α` that is overwritten by a second
// `STA α` with nothing reading or branching between them (spec §4.4.2).
type deadStorePattern struct{ mnemonic Mnemonic }

func (p deadStorePattern) Name() string     { return "dead-store-" + string(p.mnemonic) }
func (deadStorePattern) Priority() int     { return 85 }
func (deadStorePattern) Category() string { return "load-store" }

func loadReads(mnemonic Mnemonic) bool {
	switch mnemonic {
	case LDA, LDX, LDY, ADC, SBC, CMP, CPX, CPY, AND, ORA, EOR, BIT, INC, DEC, ASL, LSR, ROL, ROR:
		return true
	default:
		return false
	}
}

func (p deadStorePattern) Match(elems []AsmElement, i int, ctx *OptContext) (pattern.MatchResult[AsmElement], bool) {
	first := elems[i]
	if first.Kind != ElemInstruction || first.Mnemonic != p.mnemonic || first.Volatile || isLabeled(elems, i) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	for j := i + 1; j < len(elems); j++ {
		e := elems[j]
		if e.Kind == ElemLabel {
			return pattern.MatchResult[AsmElement]{}, false
		}
		if e.Kind != ElemInstruction {
			continue
		}
		if controlFlow(e.Mnemonic) {
			return pattern.MatchResult[AsmElement]{}, false
		}
		if loadReads(e.Mnemonic) && sameOperand(e, first) {
			return pattern.MatchResult[AsmElement]{}, false
		}
		if e.Mnemonic == p.mnemonic && sameOperand(e, first) {
			window := make([]AsmElement, j-i+1)
			copy(window, elems[i:j+1])
			return pattern.MatchResult[AsmElement]{Start: i, Length: j - i + 1, Matched: window}, true
		}
	}
	return pattern.MatchResult[AsmElement]{}, false
}

func (p deadStorePattern) Apply(m pattern.MatchResult[AsmElement], ctx *OptContext) []AsmElement {
	return m.Matched[1:]
}

// --- Flag family ---

type redundantCmpZeroPattern struct{}

func setsNZ(mnemonic Mnemonic) bool {
	switch mnemonic {
	case LDA, LDX, LDY, AND, ORA, EOR, INC, DEC, INX, INY, DEX, DEY, TAX, TAY, TXA, TYA, ADC, SBC, ASL, LSR, ROL, ROR, PLA, BIT:
		return true
	default:
		return false
	}
}

func (redundantCmpZeroPattern) Name() string     { return "redundant-cmp-0" }
func (redundantCmpZeroPattern) Priority() int     { return 70 }
func (redundantCmpZeroPattern) Category() string { return "flag" }

func (redundantCmpZeroPattern) Match(elems []AsmElement, i int, ctx *OptContext) (pattern.MatchResult[AsmElement], bool) {
	if i+1 >= len(elems) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	a, b := elems[i], elems[i+1]
	if a.Kind != ElemInstruction || b.Kind != ElemInstruction {
		return pattern.MatchResult[AsmElement]{}, false
	}
	if !setsNZ(a.Mnemonic) || b.Mnemonic != CMP || b.Mode != Immediate || b.Operand != 0 || isLabeled(elems, i+1) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	return pattern.MatchResult[AsmElement]{Start: i, Length: 2, Matched: []AsmElement{a, b}}, true
}

func (redundantCmpZeroPattern) Apply(m pattern.MatchResult[AsmElement], ctx *OptContext) []AsmElement {
	return []AsmElement{m.Matched[0]}
}

type duplicateFlagPattern struct{ mnemonic Mnemonic }

func (p duplicateFlagPattern) Name() string     { return "duplicate-" + string(p.mnemonic) }
func (duplicateFlagPattern) Priority() int     { return 65 }
func (duplicateFlagPattern) Category() string { return "flag" }

func (p duplicateFlagPattern) Match(elems []AsmElement, i int, ctx *OptContext) (pattern.MatchResult[AsmElement], bool) {
	if i+1 >= len(elems) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	a, b := elems[i], elems[i+1]
	if a.Kind != ElemInstruction || b.Kind != ElemInstruction || a.Mnemonic != p.mnemonic || b.Mnemonic != p.mnemonic {
		return pattern.MatchResult[AsmElement]{}, false
	}
	if isLabeled(elems, i+1) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	return pattern.MatchResult[AsmElement]{Start: i, Length: 2, Matched: []AsmElement{a, b}}, true
}

func (p duplicateFlagPattern) Apply(m pattern.MatchResult[AsmElement], ctx *OptContext) []AsmElement {
	return []AsmElement{m.Matched[0]}
}

// carryReader reports whether mnemonic consumes the carry flag as an
// input (spec §4.4.2's dead-CLC/dead-SEC precondition).
func carryReader(mnemonic Mnemonic) bool {
	switch mnemonic {
	case ADC, SBC, ROL, ROR, BCC, BCS:
		return true
	default:
		return false
	}
}

// carrySetter reports whether mnemonic overwrites the carry flag from
// scratch, independent of its incoming value — once one of these runs, an
// earlier CLC/SEC can no longer be observed.
func carrySetter(mnemonic Mnemonic) bool {
	switch mnemonic {
	case CLC, SEC, CMP, CPX, CPY, ASL, LSR:
		return true
	default:
		return false
	}
}

// deadCarrySetPattern drops a CLC/SEC that nothing reads before the carry
// flag is unconditionally overwritten again: a forward scan from the
// CLC/SEC looking for the next carrySetter, bailing out the moment a
// carryReader, a label, or control flow appears first (spec §4.4.2's
// dead-CLC/dead-SEC pair). Shaped like redundantLoadPattern's forward scan.
type deadCarrySetPattern struct{ mnemonic Mnemonic }

func (p deadCarrySetPattern) Name() string     { return "dead-" + string(p.mnemonic) }
func (deadCarrySetPattern) Priority() int      { return 68 }
func (deadCarrySetPattern) Category() string   { return "flag" }

func (p deadCarrySetPattern) Match(elems []AsmElement, i int, ctx *OptContext) (pattern.MatchResult[AsmElement], bool) {
	first := elems[i]
	if first.Kind != ElemInstruction || first.Mnemonic != p.mnemonic || isLabeled(elems, i) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	for j := i + 1; j < len(elems); j++ {
		e := elems[j]
		if e.Kind == ElemLabel {
			return pattern.MatchResult[AsmElement]{}, false
		}
		if e.Kind != ElemInstruction {
			continue
		}
		if carryReader(e.Mnemonic) {
			return pattern.MatchResult[AsmElement]{}, false
		}
		if carrySetter(e.Mnemonic) {
			window := make([]AsmElement, j-i+1)
			copy(window, elems[i:j+1])
			return pattern.MatchResult[AsmElement]{Start: i, Length: j - i + 1, Matched: window}, true
		}
		if controlFlow(e.Mnemonic) {
			return pattern.MatchResult[AsmElement]{}, false
		}
	}
	return pattern.MatchResult[AsmElement]{}, false
}

func (p deadCarrySetPattern) Apply(m pattern.MatchResult[AsmElement], ctx *OptContext) []AsmElement {
	return m.Matched[1:]
}

// signedComparisonPattern turns `CMP #$80 ; BCS lbl` into `BMI lbl` and
// `CMP #$80 ; BCC lbl` into `BPL lbl` (spec §4.4.2) — both test the sign
// bit directly instead of routing through the carry flag.
type signedComparisonPattern struct{ from, to Mnemonic }

func (p signedComparisonPattern) Name() string {
	return "signed-comparison-" + string(p.from) + "-" + string(p.to)
}
func (signedComparisonPattern) Priority() int     { return 60 }
func (signedComparisonPattern) Category() string { return "flag" }

func (p signedComparisonPattern) Match(elems []AsmElement, i int, ctx *OptContext) (pattern.MatchResult[AsmElement], bool) {
	if i+1 >= len(elems) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	a, b := elems[i], elems[i+1]
	if a.Kind != ElemInstruction || b.Kind != ElemInstruction {
		return pattern.MatchResult[AsmElement]{}, false
	}
	if a.Mnemonic != CMP || a.Mode != Immediate || a.Operand != 0x80 || b.Mnemonic != p.from {
		return pattern.MatchResult[AsmElement]{}, false
	}
	if isLabeled(elems, i+1) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	return pattern.MatchResult[AsmElement]{Start: i, Length: 2, Matched: []AsmElement{a, b}}, true
}

func (p signedComparisonPattern) Apply(m pattern.MatchResult[AsmElement], ctx *OptContext) []AsmElement {
	b := m.Matched[1]
	b.Mnemonic = p.to
	return []AsmElement{b}
}

// --- Branch family ---

// branchChainPattern rewrites `JMP L1` where `L1: JMP L2` into `JMP L2`
// directly, as long as L2 != L1 (spec §4.4.2: "no self-cycle").
type branchChainPattern struct{}

func (branchChainPattern) Name() string     { return "branch-chain" }
func (branchChainPattern) Priority() int     { return 55 }
func (branchChainPattern) Category() string { return "branch" }

func (branchChainPattern) Match(elems []AsmElement, i int, ctx *OptContext) (pattern.MatchResult[AsmElement], bool) {
	e := elems[i]
	if e.Kind != ElemInstruction || e.Mnemonic != JMP {
		return pattern.MatchResult[AsmElement]{}, false
	}
	idx, ok := ctx.NextInstrAfterLabel[e.OperandLabel]
	if !ok || idx >= len(elems) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	target := elems[idx]
	if target.Kind != ElemInstruction || target.Mnemonic != JMP {
		return pattern.MatchResult[AsmElement]{}, false
	}
	if target.OperandLabel == e.OperandLabel {
		return pattern.MatchResult[AsmElement]{}, false // self-cycle
	}
	return pattern.MatchResult[AsmElement]{Start: i, Length: 1, Matched: []AsmElement{e, target}}, true
}

func (branchChainPattern) Apply(m pattern.MatchResult[AsmElement], ctx *OptContext) []AsmElement {
	rewritten := m.Matched[0]
	rewritten.OperandLabel = m.Matched[1].OperandLabel
	return []AsmElement{rewritten}
}

// conditionalBranchChainPattern rewrites `Bxx L1` where `L1: JMP L2` into
// `Bxx L2` directly, mirroring branchChainPattern but for a conditional
// branch's target instead of an unconditional JMP (spec §4.4.2). The
// rewritten branch's displacement is re-checked by the ACME emitter's
// range validation at serialization time (asmil/emitter.go), so this
// pattern does not need to pre-compute relative range itself.
type conditionalBranchChainPattern struct{}

func (conditionalBranchChainPattern) Name() string     { return "conditional-branch-chain" }
func (conditionalBranchChainPattern) Priority() int     { return 53 }
func (conditionalBranchChainPattern) Category() string { return "branch" }

func (conditionalBranchChainPattern) Match(elems []AsmElement, i int, ctx *OptContext) (pattern.MatchResult[AsmElement], bool) {
	e := elems[i]
	if e.Kind != ElemInstruction || !isBranch(e.Mnemonic) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	idx, ok := ctx.NextInstrAfterLabel[e.OperandLabel]
	if !ok || idx >= len(elems) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	target := elems[idx]
	if target.Kind != ElemInstruction || target.Mnemonic != JMP {
		return pattern.MatchResult[AsmElement]{}, false
	}
	if target.OperandLabel == e.OperandLabel {
		return pattern.MatchResult[AsmElement]{}, false // self-cycle
	}
	return pattern.MatchResult[AsmElement]{Start: i, Length: 1, Matched: []AsmElement{e, target}}, true
}

func (conditionalBranchChainPattern) Apply(m pattern.MatchResult[AsmElement], ctx *OptContext) []AsmElement {
	rewritten := m.Matched[0]
	rewritten.OperandLabel = m.Matched[1].OperandLabel
	return []AsmElement{rewritten}
}

// unreachableCodePattern drops an unlabeled tail following an
// unconditional terminator, up to (not including) the next labeled
// instruction (spec §4.4.2).
type unreachableCodePattern struct{}

func (unreachableCodePattern) Name() string     { return "unreachable-code" }
func (unreachableCodePattern) Priority() int     { return 50 }
func (unreachableCodePattern) Category() string { return "branch" }

func (unreachableCodePattern) Match(elems []AsmElement, i int, ctx *OptContext) (pattern.MatchResult[AsmElement], bool) {
	e := elems[i]
	if e.Kind != ElemInstruction || !isUnconditionalTerminator(e.Mnemonic) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	j := i + 1
	for j < len(elems) && elems[j].Kind != ElemLabel {
		j++
	}
	if j == i+1 {
		return pattern.MatchResult[AsmElement]{}, false // nothing to drop
	}
	window := make([]AsmElement, j-i)
	copy(window, elems[i:j])
	return pattern.MatchResult[AsmElement]{Start: i, Length: j - i, Matched: window}, true
}

func (unreachableCodePattern) Apply(m pattern.MatchResult[AsmElement], ctx *OptContext) []AsmElement {
	return []AsmElement{m.Matched[0]}
}

// branchOverNopPattern collapses `Bxx skip ; NOP ; skip:` into just the
// label (spec §4.4.2).
type branchOverNopPattern struct{}

func (branchOverNopPattern) Name() string     { return "branch-over-nop" }
func (branchOverNopPattern) Priority() int     { return 45 }
func (branchOverNopPattern) Category() string { return "branch" }

func (branchOverNopPattern) Match(elems []AsmElement, i int, ctx *OptContext) (pattern.MatchResult[AsmElement], bool) {
	if i+2 >= len(elems) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	br, nop, lbl := elems[i], elems[i+1], elems[i+2]
	if br.Kind != ElemInstruction || !isBranch(br.Mnemonic) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	if nop.Kind != ElemInstruction || nop.Mnemonic != NOP || isLabeled(elems, i+1) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	if lbl.Kind != ElemLabel || lbl.Label != br.OperandLabel {
		return pattern.MatchResult[AsmElement]{}, false
	}
	return pattern.MatchResult[AsmElement]{Start: i, Length: 3, Matched: []AsmElement{br, nop, lbl}}, true
}

func (branchOverNopPattern) Apply(m pattern.MatchResult[AsmElement], ctx *OptContext) []AsmElement {
	return []AsmElement{m.Matched[2]}
}

// branchInversionPattern turns `Bxx skip ; JMP target ; skip:` into
// `B!xx target ; skip:` (spec §4.4.2), inverting the branch condition
// per the BEQ<->BNE/BCC<->BCS/BMI<->BPL/BVC<->BVS table.
type branchInversionPattern struct{}

func (branchInversionPattern) Name() string     { return "branch-inversion" }
func (branchInversionPattern) Priority() int     { return 48 }
func (branchInversionPattern) Category() string { return "branch" }

func (branchInversionPattern) Match(elems []AsmElement, i int, ctx *OptContext) (pattern.MatchResult[AsmElement], bool) {
	if i+2 >= len(elems) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	br, jmp, lbl := elems[i], elems[i+1], elems[i+2]
	if br.Kind != ElemInstruction || !isBranch(br.Mnemonic) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	if jmp.Kind != ElemInstruction || jmp.Mnemonic != JMP || isLabeled(elems, i+1) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	if lbl.Kind != ElemLabel || lbl.Label != br.OperandLabel {
		return pattern.MatchResult[AsmElement]{}, false
	}
	if _, ok := invertBranch(br.Mnemonic); !ok {
		return pattern.MatchResult[AsmElement]{}, false
	}
	return pattern.MatchResult[AsmElement]{Start: i, Length: 3, Matched: []AsmElement{br, jmp, lbl}}, true
}

func (branchInversionPattern) Apply(m pattern.MatchResult[AsmElement], ctx *OptContext) []AsmElement {
	br, jmp, lbl := m.Matched[0], m.Matched[1], m.Matched[2]
	inverted, _ := invertBranch(br.Mnemonic)
	br.Mnemonic = inverted
	br.OperandLabel = jmp.OperandLabel
	return []AsmElement{br, lbl}
}

// --- Transfer family ---

type roundTripTransferPattern struct{ first, second Mnemonic }

func (p roundTripTransferPattern) Name() string {
	return "round-trip-transfer-" + string(p.first) + "-" + string(p.second)
}
func (roundTripTransferPattern) Priority() int     { return 40 }
func (roundTripTransferPattern) Category() string { return "transfer" }

func (p roundTripTransferPattern) Match(elems []AsmElement, i int, ctx *OptContext) (pattern.MatchResult[AsmElement], bool) {
	if i+1 >= len(elems) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	a, b := elems[i], elems[i+1]
	if a.Kind != ElemInstruction || b.Kind != ElemInstruction || a.Mnemonic != p.first || b.Mnemonic != p.second {
		return pattern.MatchResult[AsmElement]{}, false
	}
	if isLabeled(elems, i+1) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	return pattern.MatchResult[AsmElement]{Start: i, Length: 2, Matched: []AsmElement{a, b}}, true
}

func (p roundTripTransferPattern) Apply(m pattern.MatchResult[AsmElement], ctx *OptContext) []AsmElement {
	return []AsmElement{m.Matched[0]}
}

// duplicateTransferPattern drops a repeated transfer of the same kind
// (e.g. `TAX ; TAX`), which only restates a value the destination
// register already holds (spec §4.4.2's Transfer-family "duplicate
// transfer" entry) — same shape as duplicateFlagPattern, one family over.
type duplicateTransferPattern struct{ mnemonic Mnemonic }

func (p duplicateTransferPattern) Name() string     { return "duplicate-transfer-" + string(p.mnemonic) }
func (duplicateTransferPattern) Priority() int      { return 42 }
func (duplicateTransferPattern) Category() string   { return "transfer" }

func (p duplicateTransferPattern) Match(elems []AsmElement, i int, ctx *OptContext) (pattern.MatchResult[AsmElement], bool) {
	if i+1 >= len(elems) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	a, b := elems[i], elems[i+1]
	if a.Kind != ElemInstruction || b.Kind != ElemInstruction || a.Mnemonic != p.mnemonic || b.Mnemonic != p.mnemonic {
		return pattern.MatchResult[AsmElement]{}, false
	}
	if isLabeled(elems, i+1) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	return pattern.MatchResult[AsmElement]{Start: i, Length: 2, Matched: []AsmElement{a, b}}, true
}

func (p duplicateTransferPattern) Apply(m pattern.MatchResult[AsmElement], ctx *OptContext) []AsmElement {
	return []AsmElement{m.Matched[0]}
}

// tsxTxsPattern collapses `TSX ; TXS` to just `TSX` (spec §4.4.2).
type tsxTxsPattern struct{}

func (tsxTxsPattern) Name() string     { return "tsx-txs" }
func (tsxTxsPattern) Priority() int     { return 38 }
func (tsxTxsPattern) Category() string { return "transfer" }

func (tsxTxsPattern) Match(elems []AsmElement, i int, ctx *OptContext) (pattern.MatchResult[AsmElement], bool) {
	if i+1 >= len(elems) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	a, b := elems[i], elems[i+1]
	if a.Kind != ElemInstruction || b.Kind != ElemInstruction || a.Mnemonic != TSX || b.Mnemonic != TXS {
		return pattern.MatchResult[AsmElement]{}, false
	}
	if isLabeled(elems, i+1) {
		return pattern.MatchResult[AsmElement]{}, false
	}
	return pattern.MatchResult[AsmElement]{Start: i, Length: 2, Matched: []AsmElement{a, b}}, true
}

func (tsxTxsPattern) Apply(m pattern.MatchResult[AsmElement], ctx *OptContext) []AsmElement {
	return []AsmElement{m.Matched[0]}
}

// NewRegistry builds the standard ASM-IL pattern registry (spec §4.4.2).
//
// load-transfer-fold (`LDA α ; TAX` -> `LDX α` when α's addressing mode is
// also legal for LDX/LDY) and transfer-store-fold (`TXA ; STA α` -> `STX
// α`) are NOT implemented: nothing in this tree validates, for an
// arbitrary AddressingMode, which of LDA/LDX/LDY (or STA/STX/STY) legally
// accept it — codegen/regalloc.go is a linear-scan 3-color allocator with
// no such table, and codegen/lower.go always emits the matching
// mnemonic for the register it already chose, so no fold ever has a
// wrong-mnemonic case to clean up after. Adding these two patterns here
// would mean duplicating the zp/zp,x/zp,y/absolute/absolute,x/absolute,y
// legality table from scratch with no existing source of truth to ground
// it on; left unimplemented until codegen grows one.
func NewRegistry() *pattern.Registry[AsmElement, *OptContext] {
	r := pattern.NewRegistry[AsmElement, *OptContext]()
	r.Add(storeLoadEliminationPattern{STA, LDA})
	r.Add(storeLoadEliminationPattern{STX, LDX})
	r.Add(storeLoadEliminationPattern{STY, LDY})
	r.Add(deadLoadPattern{LDA})
	r.Add(deadLoadPattern{LDX})
	r.Add(deadLoadPattern{LDY})
	r.Add(redundantLoadPattern{LDA})
	r.Add(deadStorePattern{STA})
	r.Add(redundantCmpZeroPattern{})
	r.Add(deadCarrySetPattern{CLC})
	r.Add(deadCarrySetPattern{SEC})
	r.Add(duplicateFlagPattern{CLC})
	r.Add(duplicateFlagPattern{SEC})
	r.Add(signedComparisonPattern{BCS, BMI})
	r.Add(signedComparisonPattern{BCC, BPL})
	r.Add(branchChainPattern{})
	r.Add(conditionalBranchChainPattern{})
	r.Add(unreachableCodePattern{})
	r.Add(branchOverNopPattern{})
	r.Add(branchInversionPattern{})
	r.Add(roundTripTransferPattern{TAX, TXA})
	r.Add(roundTripTransferPattern{TAY, TYA})
	r.Add(roundTripTransferPattern{TXA, TAX})
	r.Add(roundTripTransferPattern{TYA, TAY})
	r.Add(duplicateTransferPattern{TAX})
	r.Add(duplicateTransferPattern{TAY})
	r.Add(duplicateTransferPattern{TXA})
	r.Add(duplicateTransferPattern{TYA})
	r.Add(duplicateTransferPattern{TSX})
	r.Add(duplicateTransferPattern{TXS})
	r.Add(tsxTxsPattern{})
	return r
}

// Optimize sweeps every section of mod to a fixed point or MaxIterations,
// whichever comes first (spec §4.4.1 reusing §4.2.3's driver shape).
func Optimize(mod *AsmModule, maxIterations int) {
	reg := NewRegistry()
	for _, s := range mod.Sections {
		for iter := 0; iter < maxIterations; iter++ {
			ctx := BuildContext(s.Elements)
			rewritten, changed, _ := pattern.Sweep(s.Elements, reg, ctx)
			s.Elements = rewritten
			if !changed {
				break
			}
		}
	}
}
