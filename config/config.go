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

// Package config holds the two flat, immutable records the pipeline is
// configured by (spec §4.1.2, §6.3). Both are built by the out-of-scope
// CLI/config-file layer and passed into the pipeline entry point by value —
// no environment object, no mutable singleton (Design Notes §9).
package config

import "fmt"

type Target int

const (
	TargetC64 Target = iota
	TargetC128
	TargetX16
)

func (t Target) String() string {
	switch t {
	case TargetC64:
		return "c64"
	case TargetC128:
		return "c128"
	case TargetX16:
		return "x16"
	default:
		return "?"
	}
}

type OptLevel int

const (
	O0 OptLevel = iota
	O1
	O2
	O3
	Os
	Oz
)

type DebugLevel int

const (
	DebugNone DebugLevel = iota
	DebugInline
	DebugVice
	DebugBoth
)

func (d DebugLevel) WantsLabels() bool {
	return d == DebugVice || d == DebugBoth
}

func (d DebugLevel) WantsInlineComments() bool {
	return d == DebugInline || d == DebugBoth
}

type OutputFormat int

const (
	OutputAsm OutputFormat = iota
	OutputPrg
	OutputBoth
)

func (o OutputFormat) WantsAsm() bool { return o == OutputAsm || o == OutputBoth }
func (o OutputFormat) WantsPrg() bool { return o == OutputPrg || o == OutputBoth }

// AddrRange is an inclusive [Start, End] byte-address range.
type AddrRange struct {
	Start uint16
	End   uint16
}

func (r AddrRange) Contains(addr uint16) bool {
	return addr >= r.Start && addr <= r.End
}

func (r AddrRange) Size() int {
	return int(r.End) - int(r.Start) + 1
}

// HwRegion names a volatile hardware memory range (spec §4.4.2, §6.2).
type HwRegion struct {
	Name  string
	Range AddrRange
}

// PlatformConfig is the per-target configuration consumed by the frame
// allocator (§4.1.2) and the ASM optimizer's volatility check (§4.4.2).
type PlatformConfig struct {
	Target Target

	ZeroPage         AddrRange
	ZeroPageReserved []AddrRange
	ZeroPageScratch  AddrRange
	FrameRegion      AddrRange
	GeneralRAM       AddrRange

	HwRegions []HwRegion
	RomRanges []AddrRange

	LoadAddress uint16

	// LoopBonusCap is the configurable cap for the zero-page scoring
	// loop bonus (spec §9 Open Question: "treat the cap as a configurable
	// constant, default e.g. depth × 4 capped at 16").
	LoopBonusCap int
}

const DefaultLoopBonusCap = 16

// C64 returns the default Commodore 64 platform configuration (spec
// §4.1.2, §4.4.2, §6.2).
func C64() PlatformConfig {
	return PlatformConfig{
		Target:           TargetC64,
		ZeroPage:         AddrRange{0x02, 0x8F},
		ZeroPageScratch:  AddrRange{0xFB, 0xFE},
		FrameRegion:      AddrRange{0x0200, 0x03FF},
		GeneralRAM:       AddrRange{0x0800, 0xCFFF},
		LoadAddress:      0x0801,
		LoopBonusCap:     DefaultLoopBonusCap,
		HwRegions: []HwRegion{
			{Name: "VIC-II", Range: AddrRange{0xD000, 0xD3FF}},
			{Name: "SID", Range: AddrRange{0xD400, 0xD7FF}},
			{Name: "color RAM", Range: AddrRange{0xD800, 0xDBFF}},
			{Name: "CIA1", Range: AddrRange{0xDC00, 0xDCFF}},
			{Name: "CIA2", Range: AddrRange{0xDD00, 0xDDFF}},
		},
		RomRanges: []AddrRange{
			{0xA000, 0xBFFF}, // BASIC ROM
			{0xE000, 0xFFFF}, // KERNAL
		},
	}
}

// HwRegionFor returns the hardware region addr falls in, if any.
func (p PlatformConfig) HwRegionFor(addr uint16) (HwRegion, bool) {
	for _, r := range p.HwRegions {
		if r.Range.Contains(addr) {
			return r, true
		}
	}
	return HwRegion{}, false
}

func (p PlatformConfig) InRom(addr uint16) bool {
	for _, r := range p.RomRanges {
		if r.Contains(addr) {
			return true
		}
	}
	return false
}

// IsReserved reports whether addr is a reserved hole or within the
// code-generator scratch range, and therefore never eligible for frame
// allocation (spec §4.1.3 step 6).
func (p PlatformConfig) IsReserved(addr uint16) bool {
	if p.ZeroPageScratch.Contains(addr) {
		return true
	}
	for _, r := range p.ZeroPageReserved {
		if r.Contains(addr) {
			return true
		}
	}
	return false
}

// CompileConfig is the immutable per-compilation record (spec §6.3),
// consumed at pipeline entry.
type CompileConfig struct {
	Target       Target
	Optimization OptLevel
	Debug        DebugLevel
	OutputFormat OutputFormat
	LoadAddress  uint16 // 0 means "use platform default"
	BasicStub    bool
	Strict       bool
}

// Validate checks the flag/config surface the core honors (spec §6.3,
// exit code 2: configuration error).
func (c CompileConfig) Validate() error {
	if c.Target != TargetC64 {
		return fmt.Errorf("target %s is not fully implemented; only c64 is supported", c.Target)
	}
	return nil
}

// EffectiveLoadAddress resolves the load address, honoring an override
// over the platform default (spec §6.3 "overrides default $0801").
func (c CompileConfig) EffectiveLoadAddress(p PlatformConfig) uint16 {
	if c.LoadAddress != 0 {
		return c.LoadAddress
	}
	return p.LoadAddress
}

// OptimizerEnabled reports whether the IL and ASM optimizer passes should
// run at all — O0 disables both (spec §6.3).
func (c CompileConfig) OptimizerEnabled() bool {
	return c.Optimization != O0
}
