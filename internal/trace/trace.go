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

// Package trace is the pipeline's ambient debug-print helper: each phase
// (frame allocator, IL generator, optimizer, code generator, emitter) calls
// one of these instead of gating a raw fmt.Printf on a local bool, the way
// the teacher's compile/compiler.go does with its package-level
// DebugPrintAst/DebugDumpAst/DebugDumpSSA constants. Those constants are
// compile-time and print to stdout, mixing with program output; Tracer is
// a runtime value (set once from the CLI's `debug` flag, spec §6.3) that
// writes to stderr, so piping a .asm to a file never captures trace noise.
package trace

import (
	"fmt"
	"io"
	"os"
)

// Tracer prints phase-by-phase diagnostics when enabled, and is a silent
// no-op otherwise. Every phase package takes a *Tracer (or nil) alongside
// its *diag.Sink: diag.Sink is for user-facing diagnostics the pipeline
// accumulates and eventually reports; Tracer is for the compiler author's
// own "what did this phase just do" narration, never seen by a user who
// isn't passing `debug`.
type Tracer struct {
	Enabled bool
	Out     io.Writer
}

// New returns a Tracer writing to os.Stderr when enabled is true, and a
// disabled (silent) Tracer otherwise.
func New(enabled bool) *Tracer {
	return &Tracer{Enabled: enabled, Out: os.Stderr}
}

// Section prints a "== <label> ==" banner, mirroring the teacher's
// `fmt.Printf("== AST(%s) ==\n", filePath)` section-header style.
func (t *Tracer) Section(label string) {
	if t == nil || !t.Enabled {
		return
	}
	fmt.Fprintf(t.Out, "== %s ==\n", label)
}

func (t *Tracer) Printf(format string, args ...interface{}) {
	if t == nil || !t.Enabled {
		return
	}
	fmt.Fprintf(t.Out, format, args...)
}

// Dump prints a section banner followed by v's String() form (or
// %+v if v isn't a Stringer) — the shape of the teacher's
// `fmt.Printf("== LIR(%s) ==\n%s\n", decl.Name, lir)` call.
func (t *Tracer) Dump(label string, v interface{}) {
	if t == nil || !t.Enabled {
		return
	}
	t.Section(label)
	if s, ok := v.(fmt.Stringer); ok {
		fmt.Fprintf(t.Out, "%s\n", s.String())
		return
	}
	fmt.Fprintf(t.Out, "%+v\n", v)
}
