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
	"blend65/callgraph"
	"blend65/config"
	"blend65/diag"
	"blend65/utils"
)

// typeWeight is the per-type multiplier in the zero-page scoring formula
// (spec §4.1.3 step 5).
func typeWeight(t *ast.Type) int {
	switch {
	case t.IsPointer():
		return 0x800
	case t.IsByte():
		return 0x100
	case t.IsWord():
		return 0x080
	case t.IsArray():
		return 0
	default:
		return 0
	}
}

// Allocator produces a FrameMap from a set of modules and a platform
// configuration (spec §4.1.1).
type Allocator struct {
	Platform config.PlatformConfig
	EntryName string
}

func NewAllocator(platform config.PlatformConfig) *Allocator {
	return &Allocator{Platform: platform, EntryName: "main"}
}

// Allocate runs the full eight-step algorithm (spec §4.1.3). It returns
// (nil, false) when a fatal diagnostic was reported (recursion, ZP
// overflow, frame-region overflow, missing/malformed entry point).
func (a *Allocator) Allocate(modules []*ast.Module, sink *diag.Sink) (*FrameMap, bool) {
	g := callgraph.New()
	var allFuncs []*ast.FuncDecl
	for _, m := range modules {
		for _, f := range m.Funcs {
			g.AddFunc(f)
			allFuncs = append(allFuncs, f)
		}
	}
	for _, f := range allFuncs {
		ast.Walk(f.Body, func(ast.Stmt) {}, func(e ast.Expr) {
			if call, ok := e.(*ast.CallExpr); ok {
				if _, isFunc := g.Node(call.Callee); isFunc {
					g.AddEdge(f.Name, call.Callee, call.Loc())
				}
			}
		})
	}

	// Step 1: recursion gate.
	if cycle := g.FindCycle(); cycle != nil {
		sink.Errorf(diag.SFARecursion, ast.Span{}, "recursive call graph: %s", callgraph.FormatCycle(cycle))
		return nil, false
	}

	// Entry point checks (also part of step 1's gate in spirit: nothing
	// downstream can proceed without a valid entry).
	entry := findFunc(allFuncs, a.entryName())
	if entry == nil || !entry.Exported {
		sink.Errorf(diag.SFANoEntry, ast.Span{}, "entry point %q not found or not exported", a.entryName())
		return nil, false
	}
	if len(entry.Params) != 0 || !entry.RetType.IsVoid() {
		sink.Errorf(diag.SFABadEntrySignature, entry.DeclSpan, "entry point %q must take no parameters and return void", a.entryName())
		return nil, false
	}

	// Step 2: thread-context tagging.
	threadCtx := g.Classify(a.entryName())
	for _, f := range allFuncs {
		if threadCtx[f.Name] == callgraph.SharedThread {
			sink.Warnf(diag.SFAMultithreadCall, f.DeclSpan, "function %q is called from multiple thread contexts (main and callback)", f.Name)
		}
	}

	fm := NewFrameMap(sink)

	// Step 3: frame-size computation.
	for _, f := range allFuncs {
		frame := a.buildFrame(f, threadCtx[f.Name])
		fm.Frames[f.Name] = frame
	}
	for _, name := range g.Names() {
		if threadCtx[name] == callgraph.Unreachable {
			fm.Frames[name].Unreachable = true
			sink.Infof(diag.SFAUnreachableFunc, ast.Span{}, "function %q is unreachable from main or any callback", name)
		}
	}

	// Module globals participate in zero-page scoring/allocation too.
	var globalSlots []*FrameSlot
	for _, m := range modules {
		for _, gd := range m.Globals {
			slot := &FrameSlot{
				Name:      gd.Name,
				Type:      gd.Type,
				Size:      gd.Type.Size(),
				Kind:      Local,
				IsPointer: gd.Type.IsPointer(),
				Score:     0,
			}
			switch gd.Storage {
			case ast.StorageZP:
				slot.Directive = RequireZP
			case ast.StorageRam, ast.StorageData:
				slot.Directive = RequireRam
			}
			fm.Globals[gd.Name] = slot
			if gd.Storage != ast.StorageMap {
				globalSlots = append(globalSlots, slot)
			}
		}
	}

	// Step 4: coalesce-group construction (reachable functions only).
	reachable := make([]*Frame, 0, len(allFuncs))
	for _, name := range g.Names() {
		if f := fm.Frames[name]; !f.Unreachable {
			reachable = append(reachable, f)
		}
	}
	a.buildCoalesceGroups(g, reachable, fm)

	// Step 5: zero-page scoring — already computed per-slot while building
	// frames (below, buildFrame populates AccessCount/LoopDepth/Score).

	// Step 6: zero-page allocation pass.
	var allSlots []*FrameSlot
	allSlots = append(allSlots, globalSlots...)
	for _, f := range reachable {
		allSlots = append(allSlots, f.Slots...)
	}
	ok := a.allocateZeroPage(allSlots, fm, sink)
	if !ok {
		return nil, false
	}

	// Step 7: frame-region allocation.
	if !a.allocateFrameRegion(fm, sink) {
		return nil, false
	}

	// Step 8: module globals — @ram/@data placed sequentially in general RAM.
	a.allocateGeneralRAM(modules, fm)

	for _, f := range reachable {
		var zpBytes, frameBytes int
		for _, s := range f.Slots {
			if s.Location == ZeroPage {
				zpBytes += s.Size
			}
		}
		fm.ZeroPageBytesUsed += zpBytes
		_ = frameBytes
	}
	for _, s := range fm.Globals {
		if s.Location == ZeroPage {
			fm.ZeroPageBytesUsed += s.Size
		}
	}

	return fm, true
}

func (a *Allocator) entryName() string {
	if a.EntryName == "" {
		return "main"
	}
	return a.EntryName
}

func findFunc(funcs []*ast.FuncDecl, name string) *ast.FuncDecl {
	for _, f := range funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// buildFrame implements step 3 and (inline) step 5 for one function: slot
// sizes from declared types, offsets fixed by lexical order, and the
// zero-page score for each slot.
func (a *Allocator) buildFrame(f *ast.FuncDecl, ctx callgraph.ThreadContext) *Frame {
	frame := &Frame{FuncName: f.Name, ThreadContext: ctx, CoalesceGroup: -1}
	offset := 0

	addSlot := func(name string, t *ast.Type, kind SlotKind, directive Directive) *FrameSlot {
		slot := &FrameSlot{Name: name, Type: t, Size: t.Size(), Kind: kind, Directive: directive, IsPointer: t.IsPointer(), Offset: offset}
		offset += slot.Size
		frame.Slots = append(frame.Slots, slot)
		return slot
	}

	for _, p := range f.Params {
		addSlot(p.Name, p.Type, Parameter, None)
	}
	if !f.RetType.IsVoid() {
		addSlot("$return", f.RetType, ReturnValue, None)
	}

	loopDepth := 0
	var walkStmts func(stmts []ast.Stmt)
	walkStmts = func(stmts []ast.Stmt) {
		for _, st := range stmts {
			switch n := st.(type) {
			case *ast.LetStmt:
				directive := None
				switch n.Storage {
				case ast.StorageZP:
					directive = RequireZP
				case ast.StorageRam:
					directive = RequireRam
				}
				addSlot(n.Name, n.Type, Local, directive)
				countExprAccess(frame, n.Init, loopDepth)
			case *ast.AssignStmt:
				countExprAccess(frame, n.Target, loopDepth)
				countExprAccess(frame, n.Value, loopDepth)
			case *ast.ExprStmt:
				countExprAccess(frame, n.X, loopDepth)
			case *ast.IfStmt:
				countExprAccess(frame, n.Cond, loopDepth)
				walkStmts(n.Then)
				walkStmts(n.Else)
			case *ast.WhileStmt:
				countExprAccess(frame, n.Cond, loopDepth)
				loopDepth++
				walkStmts(n.Body)
				loopDepth--
			case *ast.ReturnStmt:
				countExprAccess(frame, n.Value, loopDepth)
			}
		}
	}
	walkStmts(f.Body)

	// Finalize scores now that access counts and max loop depths are known.
	for _, s := range frame.Slots {
		loopBonus := utils.Min(s.LoopDepth*4, a.Platform.LoopBonusCap)
		s.Score = s.AccessCount*typeWeight(s.Type) + loopBonus
		frame.TotalSize += s.Size
	}
	return frame
}

// countExprAccess walks an expression subtree, crediting every identifier
// reference found to the matching slot in frame (spec §4.1.3 step 5:
// access_count is "the number of read/write references in the typed AST").
func countExprAccess(frame *Frame, e ast.Expr, loopDepth int) {
	if e == nil {
		return
	}
	var walk func(ast.Expr)
	walk = func(e ast.Expr) {
		switch n := e.(type) {
		case *ast.IdentExpr:
			if s := frame.Slot(n.Name); s != nil {
				s.AccessCount++
				if loopDepth > s.LoopDepth {
					s.LoopDepth = loopDepth
				}
			}
		case *ast.BinaryExpr:
			walk(n.Lhs)
			walk(n.Rhs)
		case *ast.UnaryExpr:
			walk(n.Operand)
		case *ast.CallExpr:
			for _, arg := range n.Args {
				walk(arg)
			}
		case *ast.IndexExpr:
			walk(n.Base)
			walk(n.Index)
		}
	}
	walk(e)
}

// compatible implements spec §4.1.3 step 4's "may be simultaneously live"
// predicate, negated: two frames are compatible (may share a coalesce
// group) iff neither transitively calls the other AND they share the same
// thread context (excluding SharedThread, which never coalesces with
// anything, per spec §8.2 Scenario 5 and the dedicated non-coalescing
// group called for in §4.1.3 step 2).
func compatible(g *callgraph.Graph, reach map[string]map[string]bool, a, b *Frame) bool {
	if a.ThreadContext == callgraph.SharedThread || b.ThreadContext == callgraph.SharedThread {
		return false
	}
	if a.ThreadContext != b.ThreadContext {
		return false
	}
	if reach[a.FuncName][b.FuncName] || reach[b.FuncName][a.FuncName] {
		return false
	}
	return true
}

// buildCoalesceGroups implements spec §4.1.3 step 4: greedy merging by
// decreasing frame size, tie-broken toward the existing group whose size
// is closest to (but not less than) the new frame.
func (a *Allocator) buildCoalesceGroups(g *callgraph.Graph, frames []*Frame, fm *FrameMap) {
	reach := make(map[string]map[string]bool, len(frames))
	for _, f := range frames {
		reach[f.FuncName] = transitiveReachable(g, f.FuncName)
	}

	sorted := make([]*Frame, len(frames))
	copy(sorted, frames)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].TotalSize != sorted[j].TotalSize {
			return sorted[i].TotalSize > sorted[j].TotalSize
		}
		return sorted[i].FuncName < sorted[j].FuncName
	})

	var groups []*CoalesceGroupInfo
	for _, f := range sorted {
		best := -1
		for gi, grp := range groups {
			allCompatible := true
			for _, member := range grp.Members {
				if !compatible(g, reach, f, fm.Frames[member]) {
					allCompatible = false
					break
				}
			}
			if !allCompatible {
				continue
			}
			if grp.Size < f.TotalSize {
				continue
			}
			if best == -1 || grp.Size < groups[best].Size {
				best = gi
			}
		}
		if best == -1 {
			groups = append(groups, &CoalesceGroupInfo{ID: len(groups), Members: []string{f.FuncName}, Size: f.TotalSize})
			f.CoalesceGroup = len(groups) - 1
		} else {
			groups[best].Members = append(groups[best].Members, f.FuncName)
			if f.TotalSize > groups[best].Size {
				groups[best].Size = f.TotalSize
			}
			f.CoalesceGroup = best
		}
	}
	fm.Groups = groups
}

func transitiveReachable(g *callgraph.Graph, name string) map[string]bool {
	seen := map[string]bool{}
	var stack []string
	if n, ok := g.Node(name); ok {
		for _, c := range n.Callees() {
			if !seen[c] {
				seen[c] = true
				stack = append(stack, c)
			}
		}
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, ok := g.Node(cur)
		if !ok {
			continue
		}
		for _, c := range n.Callees() {
			if !seen[c] {
				seen[c] = true
				stack = append(stack, c)
			}
		}
	}
	return seen
}
