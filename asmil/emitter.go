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

package asmil

import (
	"fmt"
	"strings"

	"blend65/ast"
	"blend65/diag"
)

// EmitResult is the ACME emitter's output (spec §4.5.4): the rendered
// text and size metrics. Diagnostics raised during validation go to the
// sink passed to Emit, not into EmitResult.
type EmitResult struct {
	Text      string
	ByteCount int
	LineCount int
}

const indent = "        " // 8 spaces, spec §4.5.2

// Emit serializes mod to ACME-syntax text, validating labels, branch
// ranges and immediate operand ranges as it goes (spec §4.5.3). Errors
// are reported to sink; Emit still returns whatever text it produced so
// callers can inspect a partial result, but a caller should check
// sink.HasErrors before trusting ByteCount/the .prg it feeds to ACME.
func Emit(mod *AsmModule, sink *diag.Sink) EmitResult {
	var b strings.Builder
	fmt.Fprintf(&b, "!to \"%s.prg\", cbm\n", mod.Name)
	fmt.Fprintf(&b, "* = $%04x\n", mod.LoadAddress)

	labelDefined := map[string]bool{}
	for _, s := range mod.Sections {
		for _, e := range s.Elements {
			if e.Kind == ElemLabel {
				labelDefined[e.Label] = true
			}
		}
	}

	byteCount := 0
	lineCount := 2

	for _, s := range mod.Sections {
		fmt.Fprintf(&b, "; --- section %s ---\n", s.Name)
		lineCount++

		offsets := computeOffsets(s.Elements)
		for i, e := range s.Elements {
			line, n := renderElement(e, sink, labelDefined, s.Elements, offsets, i)
			b.WriteString(line)
			b.WriteString("\n")
			lineCount++
			byteCount += n
		}
	}

	return EmitResult{Text: b.String(), ByteCount: byteCount, LineCount: lineCount}
}

// computeOffsets assigns each element a running byte offset within its
// section, for relative-branch range checking (spec §4.5.3).
func computeOffsets(elems []AsmElement) []int {
	offsets := make([]int, len(elems))
	off := 0
	for i, e := range elems {
		offsets[i] = off
		off += elementSize(e)
	}
	return offsets
}

func elementSize(e AsmElement) int {
	switch e.Kind {
	case ElemInstruction:
		return e.Mode.Length()
	case ElemData:
		switch e.DKind {
		case DataByte:
			return len(e.Bytes)
		case DataWord:
			return 2 * len(e.Words)
		default:
			return len(e.Text)
		}
	default:
		return 0
	}
}

func renderElement(e AsmElement, sink *diag.Sink, labelDefined map[string]bool, elems []AsmElement, offsets []int, i int) (string, int) {
	switch e.Kind {
	case ElemLabel:
		return e.Label + ":", 0
	case ElemComment:
		return "; " + e.Text2, 0
	case ElemDirective:
		return e.Text2, 0
	case ElemData:
		return renderData(e), elementSize(e)
	default:
		return renderInstruction(e, sink, labelDefined, elems, offsets, i), elementSize(e)
	}
}

func renderData(e AsmElement) string {
	switch e.DKind {
	case DataByte:
		parts := make([]string, len(e.Bytes))
		for i, v := range e.Bytes {
			parts[i] = fmt.Sprintf("$%02x", v)
		}
		return indent + "!byte " + strings.Join(parts, ", ")
	case DataWord:
		parts := make([]string, len(e.Words))
		for i, v := range e.Words {
			parts[i] = fmt.Sprintf("$%04x", v)
		}
		return indent + "!word " + strings.Join(parts, ", ")
	default:
		return indent + fmt.Sprintf("!text %q", e.Text)
	}
}

func renderInstruction(e AsmElement, sink *diag.Sink, labelDefined map[string]bool, elems []AsmElement, offsets []int, i int) string {
	if e.OperandLabel != "" {
		if !labelDefined[e.OperandLabel] {
			sink.Errorf(diag.AsmUndefinedLabel, ast.Span{}, "undefined label %q referenced by %s", e.OperandLabel, e.Mnemonic)
		}
		if e.Mode == Relative {
			checkBranchRange(e, elems, offsets, i, sink)
		}
		return indent + string(e.Mnemonic) + " " + e.OperandLabel
	}
	if e.Mode != Immediate && e.Mode != Implied && e.Mode != Accumulator && e.Operand > 0xFFFF {
		sink.Errorf(diag.AsmImmediateRange, ast.Span{}, "operand $%x out of range for %s", e.Operand, e.Mnemonic)
	}
	if e.Mode == Immediate && e.Operand > 0xFF {
		sink.Errorf(diag.AsmImmediateRange, ast.Span{}, "immediate operand $%x out of range 0..255 for %s", e.Operand, e.Mnemonic)
	}
	return indent + string(e.Mnemonic) + " " + formatOperand(e)
}

func formatOperand(e AsmElement) string {
	switch e.Mode {
	case Implied:
		return ""
	case Accumulator:
		return "A"
	case Immediate:
		return fmt.Sprintf("#$%02x", e.Operand)
	case ZeroPage:
		return fmt.Sprintf("$%02x", e.Operand)
	case ZeroPageX:
		return fmt.Sprintf("$%02x,X", e.Operand)
	case ZeroPageY:
		return fmt.Sprintf("$%02x,Y", e.Operand)
	case IndirectX:
		return fmt.Sprintf("($%02x,X)", e.Operand)
	case IndirectY:
		return fmt.Sprintf("($%02x),Y", e.Operand)
	case Absolute:
		return fmt.Sprintf("$%04x", e.Operand)
	case AbsoluteX:
		return fmt.Sprintf("$%04x,X", e.Operand)
	case AbsoluteY:
		return fmt.Sprintf("$%04x,Y", e.Operand)
	case Indirect:
		return fmt.Sprintf("($%04x)", e.Operand)
	default:
		return ""
	}
}

// checkBranchRange resolves a relative branch's byte distance by summing
// element sizes between the branch and its label's target, erroring with
// ASM_BRANCH_OUT_OF_RANGE if it exceeds the signed 8-bit range (spec
// §4.5.3). Only forward/backward distance within the same section is
// considered — cross-section branches cannot occur in this compiler's
// output, since every function's blocks live in one section.
func checkBranchRange(e AsmElement, elems []AsmElement, offsets []int, i int, sink *diag.Sink) {
	targetIdx := -1
	for j, t := range elems {
		if t.Kind == ElemLabel && t.Label == e.OperandLabel {
			targetIdx = j
			break
		}
	}
	if targetIdx < 0 {
		return // already reported as undefined above
	}
	branchEnd := offsets[i] + e.Mode.Length()
	var targetOffset int
	if targetIdx < len(offsets) {
		targetOffset = offsets[targetIdx]
	}
	dist := targetOffset - branchEnd
	if dist < -128 || dist > 127 {
		sink.Report(diag.Diagnostic{
			Severity: diag.Error,
			Code:     diag.AsmBranchOutOfRange,
			Message:  fmt.Sprintf("%s %s: relative distance %d out of range -128..127", e.Mnemonic, e.OperandLabel, dist),
			Suggestions: []string{
				fmt.Sprintf("use a long jump: invert the branch over a JMP %s", e.OperandLabel),
			},
		})
	}
}
