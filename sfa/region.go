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
	"fmt"
	"sort"

	"blend65/ast"
	"blend65/diag"
)

// allocateFrameRegion implements spec §4.1.3 step 7: coalesce groups are
// placed sequentially in the frame region, in the order they were formed
// by the greedy merge in buildCoalesceGroups.
func (a *Allocator) allocateFrameRegion(fm *FrameMap, sink *diag.Sink) bool {
	rng := a.Platform.FrameRegion
	cursor := rng.Start
	var sizes []string
	overflow := false

	for _, grp := range fm.Groups {
		end := int(cursor) + grp.Size - 1
		if end > int(rng.End) {
			overflow = true
		}
		grp.Base = cursor
		cursor += uint16(grp.Size)
		sizes = append(sizes, fmt.Sprintf("%s=%d", groupLabel(grp), grp.Size))
	}

	if overflow {
		sink.Errorf(diag.SFAFrameOverflow, ast.Span{}, "frame region [$%04X-$%04X] exceeded by groups: %s", rng.Start, rng.End, joinStrings(sizes, ", "))
		return false
	}

	for _, grp := range fm.Groups {
		for _, member := range grp.Members {
			f := fm.Frames[member]
			f.BaseAddress = grp.Base
			for _, s := range f.Slots {
				if s.Location != ZeroPage {
					s.Location = FrameRegion
					s.Address = grp.Base + uint16(s.Offset)
				}
			}
		}
		fm.FrameRegionBytesUsed += grp.Size
	}
	return true
}

func groupLabel(g *CoalesceGroupInfo) string {
	if len(g.Members) == 0 {
		return fmt.Sprintf("group%d", g.ID)
	}
	return g.Members[0]
}

func joinStrings(ss []string, sep string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += sep
		}
		out += s
	}
	return out
}

// allocateGeneralRAM implements spec §4.1.3 step 8: @ram globals, @data
// globals, large arrays, and any @zp-eligible global that didn't fit in
// the zero-page pool are placed sequentially in general RAM, in
// name-sorted order for determinism (spec §4.1.5).
func (a *Allocator) allocateGeneralRAM(modules []*ast.Module, fm *FrameMap) {
	cursor := a.Platform.GeneralRAM.Start

	var names []string
	for _, m := range modules {
		for _, gd := range m.Globals {
			if gd.Storage == ast.StorageMap {
				slot := &FrameSlot{Name: gd.Name, Type: gd.Type, Size: gd.Type.Size(), Location: Mapped, Address: gd.MapAddr}
				fm.Globals[gd.Name] = slot
				continue
			}
			names = append(names, gd.Name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		slot := fm.Globals[name]
		if slot == nil || slot.Location == ZeroPage {
			continue
		}
		slot.Location = GeneralRAM
		slot.Address = cursor
		cursor += uint16(slot.Size)
	}
}
