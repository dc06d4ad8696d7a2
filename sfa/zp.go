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

package sfa

import (
	"sort"

	"blend65/ast"
	"blend65/diag"
)

// zpPool tracks byte occupancy within the zero-page range, a plain
// []bool rather than utils.BitMap since the pool is small (≤256 bytes on
// every supported platform) and first-fit scanning it directly is simpler
// than threading bitmap set-ops through it.
type zpPool struct {
	start uint16
	used  []bool
}

func newZPPool(a *Allocator) *zpPool {
	rng := a.Platform.ZeroPage
	pool := &zpPool{start: rng.Start, used: make([]bool, rng.Size())}
	for i := rng.Start; i <= rng.End; i++ {
		if a.Platform.IsReserved(i) {
			pool.used[i-rng.Start] = true
		}
		if i == rng.End {
			break // avoid uint16 wraparound when End == 0xFFFF
		}
	}
	return pool
}

// place finds the first-fit contiguous run of size free bytes and marks it
// used, returning the base address. Contiguity alone satisfies the
// pointer byte-pair requirement decided in DESIGN.md's Open Question #3
// (both bytes in ZP, contiguous).
func (z *zpPool) place(size int) (uint16, bool) {
	if size <= 0 {
		size = 1
	}
	run := 0
	for i := 0; i < len(z.used); i++ {
		if z.used[i] {
			run = 0
			continue
		}
		run++
		if run == size {
			base := i - size + 1
			for j := base; j <= i; j++ {
				z.used[j] = true
			}
			return z.start + uint16(base), true
		}
	}
	return 0, false
}

// allocateZeroPage implements spec §4.1.3 step 6.
func (a *Allocator) allocateZeroPage(slots []*FrameSlot, fm *FrameMap, sink *diag.Sink) bool {
	pool := newZPPool(a)

	var required, optional []*FrameSlot
	for _, s := range slots {
		switch s.Directive {
		case RequireZP:
			required = append(required, s)
		case RequireRam:
			// excluded entirely from the ZP pool
		default:
			optional = append(optional, s)
		}
	}

	sort.SliceStable(required, func(i, j int) bool { return required[i].Name < required[j].Name })
	sort.SliceStable(optional, func(i, j int) bool {
		if optional[i].Score != optional[j].Score {
			return optional[i].Score > optional[j].Score
		}
		return optional[i].Name < optional[j].Name
	})

	var failed []*FrameSlot
	for _, s := range required {
		if addr, ok := pool.place(s.Size); ok {
			s.Location = ZeroPage
			s.Address = addr
		} else {
			failed = append(failed, s)
		}
	}
	if len(failed) > 0 {
		names := ""
		for i, s := range failed {
			if i > 0 {
				names += ", "
			}
			names += s.Name
		}
		sink.Errorf(diag.SFAZPOverflow, ast.Span{}, "zero-page-required slot(s) could not be placed: %s", names)
		return false
	}

	for _, s := range optional {
		if addr, ok := pool.place(s.Size); ok {
			s.Location = ZeroPage
			s.Address = addr
		}
		// Slots that don't fit stay Unplaced here; they're resolved to
		// FrameRegion (locals/params) or general RAM (globals) later.
	}
	return true
}
