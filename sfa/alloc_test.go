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
	"testing"

	"blend65/ast"
	"blend65/config"
	"blend65/diag"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emptyMain(extraCalls ...string) *ast.FuncDecl {
	body := []ast.Stmt{}
	for _, c := range extraCalls {
		body = append(body, &ast.ExprStmt{X: &ast.CallExpr{Callee: c}})
	}
	return &ast.FuncDecl{Name: "main", Exported: true, RetType: ast.Void, Body: body}
}

func voidFunc(name string, body ...ast.Stmt) *ast.FuncDecl {
	return &ast.FuncDecl{Name: name, RetType: ast.Void, Body: body}
}

// Scenario 3 — Coalescing savings (spec §8.2).
func TestCoalescingSavings(t *testing.T) {
	stepA := voidFunc("stepA", &ast.LetStmt{Name: "a", Type: ast.ArrayOf(ast.Byte, 10)})
	stepB := voidFunc("stepB", &ast.LetStmt{Name: "b", Type: ast.ArrayOf(ast.Byte, 10)})
	stepC := voidFunc("stepC", &ast.LetStmt{Name: "c", Type: ast.ArrayOf(ast.Byte, 10)})
	main := emptyMain("stepA", "stepB", "stepC")

	mod := &ast.Module{QualifiedName: "Demo", Funcs: []*ast.FuncDecl{main, stepA, stepB, stepC}}

	sink := diag.NewSink()
	fm, ok := NewAllocator(config.C64()).Allocate([]*ast.Module{mod}, sink)
	require.True(t, ok, "%v", sink.All())

	require.Len(t, fm.Groups, 2) // {stepA,stepB,stepC} share one group; main is alone in another
	var stepsGroup *CoalesceGroupInfo
	for _, g := range fm.Groups {
		if g.Size == 10 {
			stepsGroup = g
		}
	}
	require.NotNil(t, stepsGroup)
	assert.ElementsMatch(t, []string{"stepA", "stepB", "stepC"}, stepsGroup.Members)
	assert.InDelta(t, 0.667, fm.CoalescingSavings(), 0.01)
}

// Scenario 4 — Recursion rejection (spec §8.2).
func TestRecursionRejected(t *testing.T) {
	ping := voidFunc("ping", &ast.ExprStmt{X: &ast.CallExpr{Callee: "pong"}})
	pong := voidFunc("pong", &ast.ExprStmt{X: &ast.CallExpr{Callee: "ping"}})
	main := emptyMain("ping")
	mod := &ast.Module{QualifiedName: "Demo", Funcs: []*ast.FuncDecl{main, ping, pong}}

	sink := diag.NewSink()
	fm, ok := NewAllocator(config.C64()).Allocate([]*ast.Module{mod}, sink)
	assert.False(t, ok)
	assert.Nil(t, fm)

	found := false
	for _, d := range sink.All() {
		if d.Code == diag.SFARecursion {
			found = true
		}
	}
	assert.True(t, found)
}

// Scenario 5 — Callback isolation (spec §8.2).
func TestCallbackIsolation(t *testing.T) {
	main := voidFunc("main", &ast.LetStmt{Name: "m", Type: ast.Byte}, &ast.AssignStmt{Target: &ast.IdentExpr{Name: "m"}, Value: &ast.IntLitExpr{Value: 1}})
	main.Exported = true
	irq := &ast.FuncDecl{Name: "irq", Callback: true, RetType: ast.Void, Body: []ast.Stmt{
		&ast.LetStmt{Name: "i", Type: ast.Byte},
		&ast.AssignStmt{Target: &ast.IdentExpr{Name: "i"}, Value: &ast.IntLitExpr{Value: 2}},
	}}
	mod := &ast.Module{QualifiedName: "Demo", Funcs: []*ast.FuncDecl{main, irq}}

	sink := diag.NewSink()
	fm, ok := NewAllocator(config.C64()).Allocate([]*ast.Module{mod}, sink)
	require.True(t, ok, "%v", sink.All())

	mainFrame := fm.Frames["main"]
	irqFrame := fm.Frames["irq"]
	assert.NotEqual(t, mainFrame.CoalesceGroup, irqFrame.CoalesceGroup)
	assert.NotEqual(t, mainFrame.BaseAddress, irqFrame.BaseAddress)
}

// Scenario 6 — ZP overflow (spec §8.2).
func TestZPOverflow(t *testing.T) {
	var globals []*ast.GlobalDecl
	for i := 0; i < 100; i++ {
		globals = append(globals, &ast.GlobalDecl{Name: nthGlobalName(i), Type: ast.Byte, Storage: ast.StorageZP})
	}
	buf := voidFunc("useBuf", &ast.LetStmt{Name: "buf", Type: ast.ArrayOf(ast.Byte, 50), Storage: ast.StorageZP})
	main := emptyMain("useBuf")
	mod := &ast.Module{QualifiedName: "Demo", Globals: globals, Funcs: []*ast.FuncDecl{main, buf}}

	sink := diag.NewSink()
	fm, ok := NewAllocator(config.C64()).Allocate([]*ast.Module{mod}, sink)
	assert.False(t, ok)
	assert.Nil(t, fm)

	found := false
	for _, d := range sink.All() {
		if d.Code == diag.SFAZPOverflow {
			found = true
		}
	}
	assert.True(t, found)
}

func nthGlobalName(i int) string {
	return "x" + string(rune('A'+i%26)) + string(rune('0'+i/26))
}

func TestMissingEntryPoint(t *testing.T) {
	mod := &ast.Module{QualifiedName: "Demo", Funcs: []*ast.FuncDecl{voidFunc("helper")}}
	sink := diag.NewSink()
	_, ok := NewAllocator(config.C64()).Allocate([]*ast.Module{mod}, sink)
	assert.False(t, ok)
	assert.Equal(t, diag.SFANoEntry, sink.All()[0].Code)
}
