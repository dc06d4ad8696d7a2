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
	"sort"

	"blend65/ast"
	"blend65/config"
	"blend65/diag"
	"blend65/il"
	"blend65/utils"
)

// Register is one of the three 6502 registers the allocator colors
// temporaries into (spec §4.6.4: "Only A, X, Y").
type Register int

const (
	RegNone Register = iota
	RegA
	RegX
	RegY
)

func (r Register) String() string {
	switch r {
	case RegA:
		return "A"
	case RegX:
		return "X"
	case RegY:
		return "Y"
	default:
		return "-"
	}
}

// TempLoc is where one IL temp lives after allocation: either a register,
// or a spilled zero-page scratch address (spec §4.6.4 step 5).
type TempLoc struct {
	Reg     Register
	Spilled bool
	Scratch uint16
}

// Allocation is the regalloc result for one function.
type Allocation struct {
	Locs map[int]TempLoc
}

func (a *Allocation) Loc(temp int) TempLoc {
	if l, ok := a.Locs[temp]; ok {
		return l
	}
	return TempLoc{Reg: RegA}
}

type interval struct {
	temp       int
	start, end int
	preferred  Register
}

// preferredRegister guesses a temp's best-fit register from how its
// defining instruction is used downstream: an index operand of an
// indexed access prefers X (spec §4.6.4: "(zp,X) requires X"); every
// other arithmetic/load/store temp funnels through A by construction of
// the lowering table in lower.go, so A is the default preference.
func preferredRegister(fn *il.Func, temp int) Register {
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			if in.Op != il.OpIndexLoad && in.Op != il.OpIndexStore {
				continue
			}
			if len(in.Args) >= 2 && in.Args[1].Kind == il.OperandTemp && in.Args[1].Temp == temp {
				return RegX
			}
		}
	}
	return RegA
}

// linearPositions flattens fn's blocks in declaration order into a single
// position space. This ignores back-edges (a loop's second iteration
// could, in principle, overlap a temp's live range differently) —
// acceptable here because loop-carried state in this language always
// goes through a named variable (a store/load pair), never a raw IL
// temp held live across a backward branch (spec §3.2's frame-slot model).
//
// wordTemps collects every temp whose defining instruction carries a
// word/pointer Type: such a value can never fit in a single 8-bit A/X/Y
// register (spec §6.1, ast.Type.Scalar's "words and pointers need a byte
// pair"), so Allocate forces these straight to a 2-byte scratch pair
// instead of running them through the normal 3-color assignment.
func linearPositions(fn *il.Func) ([]il.Instruction, map[int][2]int, map[int]bool) {
	var flat []il.Instruction
	ranges := make(map[int][2]int)
	wordTemps := make(map[int]bool)
	pos := 0
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			flat = append(flat, in)
			if in.Op.Defines() {
				ranges[in.Dest] = [2]int{pos, pos}
				if in.Type != nil && (in.Type.IsWord() || in.Type.IsPointer()) {
					wordTemps[in.Dest] = true
				}
			}
			for _, a := range in.Args {
				if a.Kind == il.OperandTemp {
					r := ranges[a.Temp]
					r[1] = utils.Max(r[1], pos)
					ranges[a.Temp] = r
				}
			}
			pos++
		}
	}
	return flat, ranges, wordTemps
}

// Allocate runs a linear-scan 3-color allocation over fn's temporaries,
// spilling to the platform's zero-page scratch range on exhaustion (spec
// §4.6.4). Grounded on the teacher's LSRA shape (compile/codegen/lsra.go:
// sorted intervals, an active set, greedy expire-then-assign) but
// completed from scratch, since the teacher's LIR-based allocator targets
// a register file (x86) this backend doesn't have — ending in
// `os.Exit(1)` on spill rather than a recoverable diagnostic, which spec
// §7's accumulate-don't-abort policy forbids reusing as-is.
func Allocate(fn *il.Func, platform config.PlatformConfig, sink *diag.Sink) *Allocation {
	_, ranges, wordTemps := linearPositions(fn)

	var intervals []*interval
	for temp, r := range ranges {
		intervals = append(intervals, &interval{temp: temp, start: r[0], end: r[1], preferred: preferredRegister(fn, temp)})
	}
	sort.Slice(intervals, func(i, j int) bool {
		if intervals[i].start != intervals[j].start {
			return intervals[i].start < intervals[j].start
		}
		return intervals[i].temp < intervals[j].temp
	})

	scratch := scratchAddresses(platform)
	nextScratch := 0

	type active struct {
		iv  *interval
		reg Register
	}
	var actives []active
	alloc := &Allocation{Locs: make(map[int]TempLoc)}

	freeRegs := func(at int) *utils.Set[Register] {
		free := utils.NewSet[Register]()
		free.Add(RegA)
		free.Add(RegX)
		free.Add(RegY)
		kept := actives[:0]
		for _, a := range actives {
			if a.iv.end < at {
				continue
			}
			kept = append(kept, a)
			free.Remove(a.reg)
		}
		actives = kept
		return free
	}

	for _, iv := range intervals {
		free := freeRegs(iv.start)

		if wordTemps[iv.temp] {
			if nextScratch+1 >= len(scratch) {
				sink.Errorf(diag.CodegenSpillExhausted, ast.Span{}, "function %q: ran out of zero-page scratch while allocating word-sized t%d (needs 2 of %d remaining scratch bytes)", fn.Name, iv.temp, len(scratch)-nextScratch)
				alloc.Locs[iv.temp] = TempLoc{Spilled: true, Scratch: scratch[0]}
				continue
			}
			addr := scratch[nextScratch]
			nextScratch += 2
			alloc.Locs[iv.temp] = TempLoc{Spilled: true, Scratch: addr}
			continue
		}

		var chosen Register
		if free.Contains(iv.preferred) {
			chosen = iv.preferred
		} else {
			for _, r := range []Register{RegA, RegX, RegY} {
				if free.Contains(r) {
					chosen = r
					break
				}
			}
		}
		if chosen == RegNone {
			if nextScratch >= len(scratch) {
				sink.Errorf(diag.CodegenSpillExhausted, ast.Span{}, "function %q: ran out of zero-page scratch while allocating t%d (all %d scratch bytes in use)", fn.Name, iv.temp, len(scratch))
				alloc.Locs[iv.temp] = TempLoc{Reg: RegA}
				continue
			}
			addr := scratch[nextScratch]
			nextScratch++
			alloc.Locs[iv.temp] = TempLoc{Spilled: true, Scratch: addr}
			continue
		}
		actives = append(actives, active{iv: iv, reg: chosen})
		alloc.Locs[iv.temp] = TempLoc{Reg: chosen}
	}
	return alloc
}

func scratchAddresses(p config.PlatformConfig) []uint16 {
	var out []uint16
	for a := p.ZeroPageScratch.Start; ; a++ {
		out = append(out, a)
		if a == p.ZeroPageScratch.End {
			break
		}
	}
	return out
}
