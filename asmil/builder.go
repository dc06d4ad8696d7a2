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
	"blend65/config"
)

// Builder constructs an AsmModule incrementally, hiding opcode/addressing
// enumeration details behind one method per {mnemonic, mode} pair (spec
// §4.3.1, §4.3.2). Every emitted element's Pos is assigned in strictly
// increasing lexical order, so the ASM optimizer can always recover the
// builder's original ordering even after several rewrite passes.
type Builder struct {
	Module   *AsmModule
	Platform config.PlatformConfig

	section *AsmSection
	pos     int
}

func NewBuilder(name string, loadAddress uint16, platform config.PlatformConfig) *Builder {
	return &Builder{Module: NewModule(name, loadAddress), Platform: platform}
}

// StartSection begins (or resumes) a named section (spec §4.3.2).
func (b *Builder) StartSection(name string) {
	if s := b.Module.Section(name); s != nil {
		b.section = s
		return
	}
	s := &AsmSection{Name: name}
	b.Module.Sections = append(b.Module.Sections, s)
	b.section = s
}

func (b *Builder) emit(e AsmElement) {
	e.Pos = b.pos
	b.pos++
	b.section.Elements = append(b.section.Elements, e)
}

// Label emits a local label definition (spec §4.3.2).
func (b *Builder) Label(name string) {
	b.emit(AsmElement{Kind: ElemLabel, Label: name})
}

// ExportedLabel emits a label that must remain visible to other modules
// (e.g. a function's entry point); the emitter never strips it even when
// nothing in this module references it.
func (b *Builder) ExportedLabel(name string) {
	b.emit(AsmElement{Kind: ElemLabel, Label: name, Exported: true})
}

func (b *Builder) Comment(text string) {
	b.emit(AsmElement{Kind: ElemComment, Text2: text})
}

func (b *Builder) Directive(text string) {
	b.emit(AsmElement{Kind: ElemDirective, Text2: text})
}

func (b *Builder) Bytes(values ...byte) {
	b.emit(AsmElement{Kind: ElemData, DKind: DataByte, Bytes: values})
}

func (b *Builder) Words(values ...uint16) {
	b.emit(AsmElement{Kind: ElemData, DKind: DataWord, Words: values})
}

func (b *Builder) RawText(s string) {
	b.emit(AsmElement{Kind: ElemData, DKind: DataText, Text: s})
}

// isVolatile reports whether addr falls in a configured hardware range
// (spec §4.4.2's definition of a volatile memory address).
func (b *Builder) isVolatile(addr uint16) bool {
	_, ok := b.Platform.HwRegionFor(addr)
	return ok
}

func modeForAddr(addr uint16, platform config.PlatformConfig) AddressingMode {
	if platform.ZeroPage.Contains(addr) {
		return ZeroPage
	}
	return Absolute
}

func (b *Builder) instr(mnemonic Mnemonic, mode AddressingMode, operand uint16) {
	b.emit(AsmElement{Kind: ElemInstruction, Mnemonic: mnemonic, Mode: mode, Operand: operand, Volatile: b.isVolatile(operand)})
}

func (b *Builder) instrLabel(mnemonic Mnemonic, mode AddressingMode, label string) {
	b.emit(AsmElement{Kind: ElemInstruction, Mnemonic: mnemonic, Mode: mode, OperandLabel: label})
}

// --- LDA family ---
//
// Each mnemonic method below takes a Go `byte` for an immediate or
// zero-page operand: the argument type itself enforces spec §4.3.3's
// "reject values outside 0..=255" constraint at the call site, so there
// is no separate runtime range check to thread through every method.

func (b *Builder) LdaImm(v byte) { b.instr(LDA, Immediate, uint16(v)) }
func (b *Builder) LdaZp(addr byte) { b.instr(LDA, ZeroPage, uint16(addr)) }
func (b *Builder) LdaZpX(addr byte) { b.instr(LDA, ZeroPageX, uint16(addr)) }
func (b *Builder) LdaAbs(addr uint16) { b.instr(LDA, Absolute, addr) }
func (b *Builder) LdaAbsX(addr uint16) { b.instr(LDA, AbsoluteX, addr) }
func (b *Builder) LdaAbsY(addr uint16) { b.instr(LDA, AbsoluteY, addr) }
func (b *Builder) LdaIndX(addr byte) { b.instr(LDA, IndirectX, uint16(addr)) }
func (b *Builder) LdaIndY(addr byte) { b.instr(LDA, IndirectY, uint16(addr)) }

// LdaAuto picks zero-page or absolute addressing from the operand's
// resolved address (spec §4.6.5's heuristic, surfaced at the builder
// layer so the code generator doesn't have to duplicate the choice).
func (b *Builder) LdaAuto(addr uint16) { b.instr(LDA, modeForAddr(addr, b.Platform), addr) }

// --- LDX family ---

func (b *Builder) LdxImm(v byte) { b.instr(LDX, Immediate, uint16(v)) }
func (b *Builder) LdxZp(addr byte) { b.instr(LDX, ZeroPage, uint16(addr)) }
func (b *Builder) LdxZpY(addr byte) { b.instr(LDX, ZeroPageY, uint16(addr)) }
func (b *Builder) LdxAbs(addr uint16) { b.instr(LDX, Absolute, addr) }
func (b *Builder) LdxAbsY(addr uint16) { b.instr(LDX, AbsoluteY, addr) }
func (b *Builder) LdxAuto(addr uint16) { b.instr(LDX, modeForAddr(addr, b.Platform), addr) }

// --- LDY family ---

func (b *Builder) LdyImm(v byte) { b.instr(LDY, Immediate, uint16(v)) }
func (b *Builder) LdyZp(addr byte) { b.instr(LDY, ZeroPage, uint16(addr)) }
func (b *Builder) LdyZpX(addr byte) { b.instr(LDY, ZeroPageX, uint16(addr)) }
func (b *Builder) LdyAbs(addr uint16) { b.instr(LDY, Absolute, addr) }
func (b *Builder) LdyAbsX(addr uint16) { b.instr(LDY, AbsoluteX, addr) }
func (b *Builder) LdyAuto(addr uint16) { b.instr(LDY, modeForAddr(addr, b.Platform), addr) }

// --- STA/STX/STY families ---

func (b *Builder) StaZp(addr byte) { b.instr(STA, ZeroPage, uint16(addr)) }
func (b *Builder) StaZpX(addr byte) { b.instr(STA, ZeroPageX, uint16(addr)) }
func (b *Builder) StaAbs(addr uint16) { b.instr(STA, Absolute, addr) }
func (b *Builder) StaAbsX(addr uint16) { b.instr(STA, AbsoluteX, addr) }
func (b *Builder) StaAbsY(addr uint16) { b.instr(STA, AbsoluteY, addr) }
func (b *Builder) StaIndX(addr byte) { b.instr(STA, IndirectX, uint16(addr)) }
func (b *Builder) StaIndY(addr byte) { b.instr(STA, IndirectY, uint16(addr)) }
func (b *Builder) StaAuto(addr uint16) { b.instr(STA, modeForAddr(addr, b.Platform), addr) }

func (b *Builder) StxZp(addr byte) { b.instr(STX, ZeroPage, uint16(addr)) }
func (b *Builder) StxZpY(addr byte) { b.instr(STX, ZeroPageY, uint16(addr)) }
func (b *Builder) StxAbs(addr uint16) { b.instr(STX, Absolute, addr) }
func (b *Builder) StxAuto(addr uint16) { b.instr(STX, modeForAddr(addr, b.Platform), addr) }

func (b *Builder) StyZp(addr byte) { b.instr(STY, ZeroPage, uint16(addr)) }
func (b *Builder) StyZpX(addr byte) { b.instr(STY, ZeroPageX, uint16(addr)) }
func (b *Builder) StyAbs(addr uint16) { b.instr(STY, Absolute, addr) }
func (b *Builder) StyAuto(addr uint16) { b.instr(STY, modeForAddr(addr, b.Platform), addr) }

// --- Arithmetic ---

func (b *Builder) AdcImm(v byte) { b.instr(ADC, Immediate, uint16(v)) }
func (b *Builder) AdcZp(addr byte) { b.instr(ADC, ZeroPage, uint16(addr)) }
func (b *Builder) AdcAbs(addr uint16) { b.instr(ADC, Absolute, addr) }
func (b *Builder) AdcAuto(addr uint16) { b.instr(ADC, modeForAddr(addr, b.Platform), addr) }

func (b *Builder) SbcImm(v byte) { b.instr(SBC, Immediate, uint16(v)) }
func (b *Builder) SbcZp(addr byte) { b.instr(SBC, ZeroPage, uint16(addr)) }
func (b *Builder) SbcAbs(addr uint16) { b.instr(SBC, Absolute, addr) }
func (b *Builder) SbcAuto(addr uint16) { b.instr(SBC, modeForAddr(addr, b.Platform), addr) }

func (b *Builder) CmpImm(v byte) { b.instr(CMP, Immediate, uint16(v)) }
func (b *Builder) CmpZp(addr byte) { b.instr(CMP, ZeroPage, uint16(addr)) }
func (b *Builder) CmpAbs(addr uint16) { b.instr(CMP, Absolute, addr) }

func (b *Builder) CpxImm(v byte) { b.instr(CPX, Immediate, uint16(v)) }
func (b *Builder) CpxZp(addr byte) { b.instr(CPX, ZeroPage, uint16(addr)) }

func (b *Builder) CpyImm(v byte) { b.instr(CPY, Immediate, uint16(v)) }
func (b *Builder) CpyZp(addr byte) { b.instr(CPY, ZeroPage, uint16(addr)) }

func (b *Builder) IncZp(addr byte) { b.instr(INC, ZeroPage, uint16(addr)) }
func (b *Builder) IncAbs(addr uint16) { b.instr(INC, Absolute, addr) }
func (b *Builder) DecZp(addr byte) { b.instr(DEC, ZeroPage, uint16(addr)) }
func (b *Builder) DecAbs(addr uint16) { b.instr(DEC, Absolute, addr) }

func (b *Builder) Inx() { b.instr(INX, Implied, 0) }
func (b *Builder) Iny() { b.instr(INY, Implied, 0) }
func (b *Builder) Dex() { b.instr(DEX, Implied, 0) }
func (b *Builder) Dey() { b.instr(DEY, Implied, 0) }

// --- Logic/shift ---

func (b *Builder) AndImm(v byte) { b.instr(AND, Immediate, uint16(v)) }
func (b *Builder) AndZp(addr byte) { b.instr(AND, ZeroPage, uint16(addr)) }
func (b *Builder) AndAuto(addr uint16) { b.instr(AND, modeForAddr(addr, b.Platform), addr) }

func (b *Builder) OraImm(v byte) { b.instr(ORA, Immediate, uint16(v)) }
func (b *Builder) OraZp(addr byte) { b.instr(ORA, ZeroPage, uint16(addr)) }
func (b *Builder) OraAuto(addr uint16) { b.instr(ORA, modeForAddr(addr, b.Platform), addr) }

func (b *Builder) EorImm(v byte) { b.instr(EOR, Immediate, uint16(v)) }
func (b *Builder) EorZp(addr byte) { b.instr(EOR, ZeroPage, uint16(addr)) }
func (b *Builder) EorAuto(addr uint16) { b.instr(EOR, modeForAddr(addr, b.Platform), addr) }

func (b *Builder) AslAcc() { b.instr(ASL, Accumulator, 0) }
func (b *Builder) AslZp(addr byte) { b.instr(ASL, ZeroPage, uint16(addr)) }
func (b *Builder) LsrAcc() { b.instr(LSR, Accumulator, 0) }
func (b *Builder) LsrZp(addr byte) { b.instr(LSR, ZeroPage, uint16(addr)) }
func (b *Builder) RolAcc() { b.instr(ROL, Accumulator, 0) }
func (b *Builder) RolZp(addr byte) { b.instr(ROL, ZeroPage, uint16(addr)) }
func (b *Builder) RorAcc() { b.instr(ROR, Accumulator, 0) }
func (b *Builder) RorZp(addr byte) { b.instr(ROR, ZeroPage, uint16(addr)) }

func (b *Builder) BitZp(addr byte) { b.instr(BIT, ZeroPage, uint16(addr)) }
func (b *Builder) BitAbs(addr uint16) { b.instr(BIT, Absolute, addr) }

// --- Control ---

func (b *Builder) JmpAbs(label string) { b.instrLabel(JMP, Absolute, label) }
func (b *Builder) JmpInd(label string) { b.instrLabel(JMP, Indirect, label) }
func (b *Builder) Jsr(label string) { b.instrLabel(JSR, Absolute, label) }
func (b *Builder) Rts() { b.instr(RTS, Implied, 0) }
func (b *Builder) Rti() { b.instr(RTI, Implied, 0) }
func (b *Builder) Brk() { b.instr(BRK, Implied, 0) }

// --- Branches ---

func (b *Builder) Bcc(label string) { b.instrLabel(BCC, Relative, label) }
func (b *Builder) Bcs(label string) { b.instrLabel(BCS, Relative, label) }
func (b *Builder) Beq(label string) { b.instrLabel(BEQ, Relative, label) }
func (b *Builder) Bne(label string) { b.instrLabel(BNE, Relative, label) }
func (b *Builder) Bmi(label string) { b.instrLabel(BMI, Relative, label) }
func (b *Builder) Bpl(label string) { b.instrLabel(BPL, Relative, label) }
func (b *Builder) Bvc(label string) { b.instrLabel(BVC, Relative, label) }
func (b *Builder) Bvs(label string) { b.instrLabel(BVS, Relative, label) }

// --- Flags ---

func (b *Builder) Clc() { b.instr(CLC, Implied, 0) }
func (b *Builder) Sec() { b.instr(SEC, Implied, 0) }
func (b *Builder) Cld() { b.instr(CLD, Implied, 0) }
func (b *Builder) Sed() { b.instr(SED, Implied, 0) }
func (b *Builder) Cli() { b.instr(CLI, Implied, 0) }
func (b *Builder) Sei() { b.instr(SEI, Implied, 0) }
func (b *Builder) Clv() { b.instr(CLV, Implied, 0) }

// --- Transfer/stack ---

func (b *Builder) Tax() { b.instr(TAX, Implied, 0) }
func (b *Builder) Tay() { b.instr(TAY, Implied, 0) }
func (b *Builder) Txa() { b.instr(TXA, Implied, 0) }
func (b *Builder) Tya() { b.instr(TYA, Implied, 0) }
func (b *Builder) Tsx() { b.instr(TSX, Implied, 0) }
func (b *Builder) Txs() { b.instr(TXS, Implied, 0) }
func (b *Builder) Pha() { b.instr(PHA, Implied, 0) }
func (b *Builder) Pla() { b.instr(PLA, Implied, 0) }
func (b *Builder) Php() { b.instr(PHP, Implied, 0) }
func (b *Builder) Plp() { b.instr(PLP, Implied, 0) }

func (b *Builder) Nop() { b.instr(NOP, Implied, 0) }
