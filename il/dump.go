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
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

// Dump renders fn as a readable block listing, for -debug output (spec
// §6.3's textual IL dump). Listing format is hand-rolled; go-spew is kept
// for DumpValue below, for the same "throw a Go value at a debug dumper"
// use hejops-gone/cpu/debugger.go puts spew.Sdump to.
func Dump(fn *Func) string {
	var b strings.Builder
	fmt.Fprintf(&b, "func %s:\n", fn.Name)
	for _, blk := range fn.Blocks {
		fmt.Fprintf(&b, "%s:  ; preds=%v succs=%v\n", blk.Label, blk.Preds, blk.Succs)
		for _, in := range blk.Instrs {
			fmt.Fprintf(&b, "    %s\n", in.String())
		}
	}
	return b.String()
}

func DumpModule(mod *Module) string {
	var b strings.Builder
	for _, g := range mod.Globals {
		fmt.Fprintf(&b, "global %s %s @%04x\n", g.Name, g.Type, g.Addr)
	}
	for _, fn := range mod.Funcs {
		b.WriteString(Dump(fn))
	}
	return b.String()
}

// DumpValue spew-dumps an arbitrary IL value (an Instruction, Operand, or
// Block) for ad-hoc debugging sessions where the structured Dump/DumpModule
// listing above is too coarse — e.g. inspecting one Operand's exact field
// values while chasing a propagation bug.
func DumpValue(v interface{}) string {
	return spew.Sdump(v)
}
