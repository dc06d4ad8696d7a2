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

// Context is the read-only state IL patterns need beyond the instruction
// window itself: how many times each temp is used in the function (for
// dead-code elimination). It carries no volatility information; volatile
// ops are recognized by Op.Volatile in the patterns themselves.
type Context struct {
	// UseCount is recomputed once per sweep: how many instructions in the
	// owning function reference each temp as an operand.
	UseCount map[int]int
}

func NewContext() *Context {
	return &Context{UseCount: make(map[int]int)}
}

// RecomputeUseCounts scans every instruction in fn and rebuilds UseCount.
// Cheap enough to call once before each sweep — functions in this
// compiler are small (no recursion, fixed frames) so this never dominates
// compile time the way it might in a general-purpose optimizer.
func (c *Context) RecomputeUseCounts(fn *Func) {
	c.UseCount = make(map[int]int)
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			for _, a := range instr.Args {
				if a.Kind == OperandTemp {
					c.UseCount[a.Temp]++
				}
			}
		}
	}
}

func (c *Context) UsedElsewhere(temp int) bool {
	return c.UseCount[temp] > 0
}
