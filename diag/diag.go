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

// Package diag is the accumulable diagnostics sink (spec §3.5, §7).
// Diagnostics never throw control flow: every phase takes a *Sink and
// keeps going, collecting as many diagnostics as it usefully can, rather
// than aborting at the first error the way the teacher's
// panic/os.Exit-based ast.Parser.syntaxError does.
package diag

import (
	"fmt"
	"sort"
	"strings"

	"blend65/ast"

	"github.com/charmbracelet/lipgloss"
)

type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "?"
	}
}

// Code is a machine-readable diagnostic identifier. The catalogue below
// collects every code spec.md names explicitly, plus a handful implied by
// §7's taxonomy table but not literally spelled out there.
type Code string

const (
	SFARecursion         Code = "SFA_RECURSION"
	SFAZPOverflow        Code = "SFA_ZP_OVERFLOW"
	SFAFrameOverflow     Code = "SFA_FRAME_OVERFLOW"
	SFAMultithreadCall   Code = "SFA_MULTITHREAD_CALL"
	SFANoEntry           Code = "SFA_NO_ENTRY"
	SFABadEntrySignature Code = "SFA_BAD_ENTRY_SIGNATURE"
	SFAUnreachableFunc   Code = "SFA_UNREACHABLE_FUNC"

	ILIterationCap Code = "IL_ITERATION_CAP"

	CodegenSpillExhausted Code = "CODEGEN_SPILL_EXHAUSTED"
	CodegenUnsupportedOp  Code = "CODEGEN_UNSUPPORTED_OP"

	AsmUndefinedLabel   Code = "ASM_UNDEFINED_LABEL"
	AsmBranchOutOfRange Code = "ASM_BRANCH_OUT_OF_RANGE"
	AsmImmediateRange   Code = "ASM_IMMEDIATE_RANGE"

	BuiltinAddrRange    Code = "BUILTIN_ADDR_RANGE"
	BuiltinValueRange   Code = "BUILTIN_VALUE_RANGE"
	BuiltinHwAccess     Code = "BUILTIN_HW_ACCESS"
	BuiltinRomWrite     Code = "BUILTIN_ROM_WRITE"
	UnknownFunction     Code = "UNKNOWN_FUNCTION"

	AcmeNotFound  Code = "ACME_NOT_FOUND"
	AcmeFailed    Code = "ACME_FAILED"
	ConfigInvalid Code = "CONFIG_INVALID"
)

// Diagnostic is one reportable event: severity, code, message, an optional
// primary source location, and optional suggestion strings.
type Diagnostic struct {
	Severity    Severity
	Code        Code
	Message     string
	Loc         ast.Span
	Suggestions []string
}

func (d Diagnostic) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%s]: %s", d.Severity, d.Code, d.Message)
	if !d.Loc.Zero() {
		fmt.Fprintf(&b, "\n --> %s", d.Loc)
	}
	for _, s := range d.Suggestions {
		fmt.Fprintf(&b, "\n     = suggestion: %s", s)
	}
	return b.String()
}

// Sink accumulates diagnostics across an entire pipeline run. It is never
// passed by value: phases share one sink, per spec §7's "mutable
// diagnostics sink" propagation policy.
type Sink struct {
	diags []Diagnostic
}

func NewSink() *Sink { return &Sink{} }

func (s *Sink) Report(d Diagnostic) {
	s.diags = append(s.diags, d)
}

func (s *Sink) Errorf(code Code, loc ast.Span, format string, args ...interface{}) {
	s.Report(Diagnostic{Severity: Error, Code: code, Message: fmt.Sprintf(format, args...), Loc: loc})
}

func (s *Sink) Warnf(code Code, loc ast.Span, format string, args ...interface{}) {
	s.Report(Diagnostic{Severity: Warning, Code: code, Message: fmt.Sprintf(format, args...), Loc: loc})
}

func (s *Sink) Infof(code Code, loc ast.Span, format string, args ...interface{}) {
	s.Report(Diagnostic{Severity: Info, Code: code, Message: fmt.Sprintf(format, args...), Loc: loc})
}

// HasErrors reports whether any Error-severity diagnostic was reported. In
// strict mode (spec §6.3), warnings are treated as errors too.
func (s *Sink) HasErrors(strict bool) bool {
	for _, d := range s.diags {
		if d.Severity == Error {
			return true
		}
		if strict && d.Severity == Warning {
			return true
		}
	}
	return false
}

func (s *Sink) All() []Diagnostic {
	return s.diags
}

// Sorted returns diagnostics ordered by file, then line, then column, then
// severity (spec §7's "User-visible format").
func (s *Sink) Sorted() []Diagnostic {
	out := make([]Diagnostic, len(s.diags))
	copy(out, s.diags)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Loc.File != b.Loc.File {
			return a.Loc.File < b.Loc.File
		}
		if a.Loc.Line != b.Loc.Line {
			return a.Loc.Line < b.Loc.Line
		}
		if a.Loc.Col != b.Loc.Col {
			return a.Loc.Col < b.Loc.Col
		}
		return a.Severity > b.Severity
	})
	return out
}

var (
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

// FormatColor renders a diagnostic's severity tag with a terminal style,
// repurposing lipgloss (retrieved alongside the rest of hejops-gone's TUI
// dependencies) for plain severity-colored diagnostic lines rather than a
// TUI layout, since Blend65 has no interactive surface.
func FormatColor(d Diagnostic) string {
	style := infoStyle
	switch d.Severity {
	case Error:
		style = errorStyle
	case Warning:
		style = warnStyle
	}
	plain := d.String()
	tag := style.Render(d.Severity.String())
	return strings.Replace(plain, d.Severity.String(), tag, 1)
}

// FormatAll renders every diagnostic in sorted order, colorized.
func (s *Sink) FormatAll() string {
	var b strings.Builder
	for _, d := range s.Sorted() {
		b.WriteString(FormatColor(d))
		b.WriteString("\n")
	}
	return b.String()
}
