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

// Package acme assembles a .asm file with the external ACME cross-assembler
// and writes the VICE-format .labels file (spec §6.4). Both are
// external-collaborator glue: ACME itself does the 6502 encoding, this
// package just invokes it and reports failure as a diagnostic rather than a
// panic, per spec §7's accumulate-don't-abort propagation policy.
package acme

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"blend65/ast"
	"blend65/asmil"
	"blend65/config"
	"blend65/diag"
	"blend65/utils"
)

// Assemble invokes `acme -f cbm -o <prgPath> <asmPath>` (plus `-l
// <labelsPath>` when debug >= vice), per spec §6.4. If ACME is not on PATH,
// this reports ACME_NOT_FOUND as a warning and returns without error — the
// .asm file itself is still a valid, already-written artifact (spec §6.4:
// "emit a warning and skip .prg").
func Assemble(asmPath, prgPath string, debug config.DebugLevel, sink *diag.Sink) {
	if !utils.CommandExists("acme") {
		sink.Warnf(diag.AcmeNotFound, ast.Span{}, "acme not found on PATH; skipping %s", prgPath)
		return
	}

	args := []string{"acme", "-f", "cbm", "-o", prgPath}
	var labelsPath string
	if debug.WantsLabels() {
		labelsPath = strings.TrimSuffix(prgPath, filepath.Ext(prgPath)) + ".labels.acme"
		args = append(args, "-l", labelsPath)
	}
	args = append(args, asmPath)

	workDir := filepath.Dir(asmPath)
	if _, err := utils.ExecuteCmd(workDir, args...); err != nil {
		sink.Errorf(diag.AcmeFailed, ast.Span{}, "acme assembly of %s failed: %v", asmPath, err)
	}
}

// WriteViceLabels writes a VICE monitor label file: one `al C:<hex-addr>
// .<label>` line per exported label in mod (spec §6.4). This is
// independent of ACME's own `-l` output — ACME's label file lists every
// label including internal ones; this one is scoped to just the symbols
// the compiler chose to export, which is what a VICE user debugging a
// specific program's public entry points actually wants.
func WriteViceLabels(mod *asmil.AsmModule, path string) error {
	var b strings.Builder
	for _, s := range mod.Sections {
		for _, e := range s.Elements {
			if e.Kind == asmil.ElemLabel && e.Exported {
				fmt.Fprintf(&b, "al C:%04x .%s\n", resolveLabelAddress(mod, e.Label), e.Label)
			}
		}
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

// resolveLabelAddress sums element sizes up to (not including) the labeled
// element, relative to the module's load address — the same offset
// accounting the emitter's computeOffsets does, duplicated here in miniature
// since this runs independently of one particular Emit call.
func resolveLabelAddress(mod *asmil.AsmModule, label string) uint16 {
	offset := uint16(0)
	for _, s := range mod.Sections {
		for _, e := range s.Elements {
			if e.Kind == asmil.ElemLabel && e.Label == label {
				return mod.LoadAddress + offset
			}
			offset += elementByteSize(e)
		}
	}
	return mod.LoadAddress
}

func elementByteSize(e asmil.AsmElement) uint16 {
	switch e.Kind {
	case asmil.ElemInstruction:
		return uint16(e.Mode.Length())
	case asmil.ElemData:
		switch e.DKind {
		case asmil.DataByte:
			return uint16(len(e.Bytes))
		case asmil.DataWord:
			return uint16(2 * len(e.Words))
		default:
			return uint16(len(e.Text))
		}
	default:
		return 0
	}
}
