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

// Command blend65 drives the in-scope half of the pipeline (spec §2): the
// static frame allocator, the IL optimizer, code generation, the ASM
// optimizer, the emitter and the ACME invocation. The lexer/parser and the
// AST-to-IL generator sit upstream of this package's scope (spec §1, §2:
// "(B) IL Generator ... [external: specify inputs/outputs only]"), so this
// command does not accept a .b65 source file — it demonstrates the five
// in-scope stages over a fixed example module, the way falcon's old
// main.go demonstrated compile.CompileTheWorld over a fixed test.y.
package main

import (
	"fmt"
	"os"

	"blend65/acme"
	"blend65/ast"
	"blend65/asmil"
	"blend65/codegen"
	"blend65/config"
	"blend65/diag"
	"blend65/il"
	"blend65/internal/trace"
	"blend65/sfa"
)

// Exit codes (spec §6.5).
const (
	exitSuccess     = 0
	exitCompileErr  = 1
	exitConfigErr   = 2
	exitAcmeFailed  = 4
	exitInternalErr = 5
)

func main() {
	outPrefix := "out"
	if len(os.Args) > 1 {
		outPrefix = os.Args[1]
	}

	cfg := config.CompileConfig{
		Target:       config.TargetC64,
		Optimization: config.O1,
		Debug:        config.DebugVice,
		OutputFormat: config.OutputBoth,
		BasicStub:    true,
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "blend65: config error:", err)
		os.Exit(exitConfigErr)
	}

	platform := config.C64()
	sink := diag.NewSink()
	tr := trace.New(cfg.Debug != config.DebugNone)

	astModules := []*ast.Module{demoModule()}
	tr.Dump("AST", astModules[0])

	fm, ok := sfa.NewAllocator(platform).Allocate(astModules, sink)
	if !ok {
		reportAndExit(sink, exitCompileErr)
	}
	tr.Printf("SFA: %d global(s), %d zero-page byte(s) used\n", len(fm.Globals), fm.ZeroPageBytesUsed)

	ilMod := demoILModule()
	if err := il.VerifyModule(ilMod); err != nil {
		fmt.Fprintln(os.Stderr, "blend65: internal error:", err)
		os.Exit(exitInternalErr)
	}
	if cfg.OptimizerEnabled() {
		il.NewOptimizer().Run(ilMod, sink)
	}
	tr.Dump("IL", dumpModule{ilMod})
	if sink.HasErrors(cfg.Strict) {
		reportAndExit(sink, exitCompileErr)
	}

	loadAddr := cfg.EffectiveLoadAddress(platform)
	builder := asmil.NewBuilder("demo", loadAddr, platform)
	codegen.NewLowerer(builder, fm, platform, sink).LowerModule(ilMod, loadAddr, cfg.BasicStub)
	if sink.HasErrors(cfg.Strict) {
		reportAndExit(sink, exitCompileErr)
	}

	if cfg.OptimizerEnabled() {
		asmil.Optimize(builder.Module, 16)
	}

	result := asmil.Emit(builder.Module, sink)
	if sink.HasErrors(cfg.Strict) {
		reportAndExit(sink, exitCompileErr)
	}
	tr.Printf("emitted %d line(s), %d byte(s)\n", result.LineCount, result.ByteCount)

	asmPath := outPrefix + ".asm"
	prgPath := outPrefix + ".prg"
	if cfg.OutputFormat.WantsAsm() {
		if err := os.WriteFile(asmPath, []byte(result.Text), 0644); err != nil {
			fmt.Fprintln(os.Stderr, "blend65: writing", asmPath, "failed:", err)
			os.Exit(exitInternalErr)
		}
	}

	if cfg.OutputFormat.WantsPrg() {
		acme.Assemble(asmPath, prgPath, cfg.Debug, sink)
		if cfg.Debug.WantsLabels() {
			if err := acme.WriteViceLabels(builder.Module, outPrefix+".labels"); err != nil {
				fmt.Fprintln(os.Stderr, "blend65: writing labels failed:", err)
			}
		}
	}

	if sink.HasErrors(cfg.Strict) {
		reportAndExit(sink, exitAcmeFailed)
	}

	fmt.Fprint(os.Stderr, sink.FormatAll())
	os.Exit(exitSuccess)
}

func reportAndExit(sink *diag.Sink, code int) {
	fmt.Fprint(os.Stderr, sink.FormatAll())
	os.Exit(code)
}

// demoModule is the AST half of the fixed example (spec §8.2 Scenario 1):
// a zero-page frame counter bumped once per call, with the border flashed
// to confirm the hardware-write path survives the optimizer untouched.
func demoModule() *ast.Module {
	return &ast.Module{
		QualifiedName: "demo",
		Exports:       []string{"main"},
		Globals: []*ast.GlobalDecl{
			{Name: "frameCounter", Type: ast.Byte, Storage: ast.StorageZP},
		},
		Funcs: []*ast.FuncDecl{
			{Name: "main", Exported: true, RetType: ast.Void},
		},
	}
}

// demoILModule is the IL half of the same example, hand-built rather than
// lowered from demoModule's body — the AST-to-IL generator is out of this
// core's scope (spec §1), so the golden path here is the same
// direct-construction style il_test.go/codegen_test.go use.
func demoILModule() *il.Module {
	fn := il.NewFunc("main", ast.Void)
	entry := fn.NewBlock("entry")
	fn.Entry = entry.ID

	tCounter := fn.NewTemp()
	tNext := fn.NewTemp()
	entry.Instrs = []il.Instruction{
		{Op: il.OpLoad, Dest: tCounter, Label: "frameCounter"},
		{Op: il.OpAdd, Dest: tNext, Args: []il.Operand{il.TempOperand(tCounter), il.ConstOperand(1)}},
		{Op: il.OpStore, Label: "frameCounter", Args: []il.Operand{il.TempOperand(tNext)}},
		{Op: il.OpPoke, Addr: 0xD020, Args: []il.Operand{il.ConstOperand(6)}},
		{Op: il.OpReturnVoid},
	}

	return &il.Module{
		Entry: "main",
		Globals: []il.Global{
			{Name: "frameCounter", Type: ast.Byte, Storage: il.GlobalZeroPage},
		},
		Funcs: []*il.Func{fn},
	}
}

// dumpModule adapts il.Module to fmt.Stringer for trace.Dump, mirroring
// the teacher's DebugDumpSSA helper without pulling go-spew into the
// tracer itself (dump.go's DumpValue already owns that for individual
// values).
type dumpModule struct{ mod *il.Module }

func (d dumpModule) String() string {
	s := fmt.Sprintf("module entry=%s, %d global(s), %d func(s)\n", d.mod.Entry, len(d.mod.Globals), len(d.mod.Funcs))
	for _, fn := range d.mod.Funcs {
		s += fmt.Sprintf("  func %s:\n", fn.Name)
		for _, b := range fn.Blocks {
			s += fmt.Sprintf("    %s:\n", b.Label)
			for _, in := range b.Instrs {
				s += "      " + in.String() + "\n"
			}
		}
	}
	return s
}
