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

package codegen

import (
	"strconv"

	"blend65/utils"
)

// BasicLoaderStub builds the 12-byte (typical) tokenized BASIC program
// "10 SYS <addr>" that C64 .prg files prepend to machine code so LOAD/RUN
// starts it (spec §4.6.6). <addr> is load_address + len(stub); since the
// decimal digit count of <addr> feeds back into the stub's own length,
// this resolves the two by iterating to a fixed point — converges in one
// extra pass except right at a power-of-ten boundary.
//
// Returns the resolved start address (where the SYS token jumps to) and
// the stub bytes themselves.
func BasicLoaderStub(loadAddress uint16) (uint16, []byte) {
	digits := 4 // $0801 + 12 -> "2061", the common case
	var addr uint16
	var addrStr string
	for i := 0; i < 3; i++ {
		stubLen := 8 + digits
		addr = loadAddress + uint16(stubLen)
		addrStr = strconv.Itoa(int(addr))
		if len(addrStr) == digits {
			break
		}
		digits = len(addrStr)
	}
	utils.Assert(len(addrStr) == digits, "basic loader stub: digit count did not converge for load address $%04X", loadAddress)

	stubLen := 8 + len(addrStr)
	nextLine := loadAddress + uint16(stubLen) - 2

	stub := make([]byte, 0, stubLen)
	stub = append(stub, byte(nextLine&0xFF), byte(nextLine>>8))
	stub = append(stub, 0x0A, 0x00) // line number 10
	stub = append(stub, 0x9E)       // SYS token
	stub = append(stub, []byte(addrStr)...)
	stub = append(stub, 0x00)       // end of line
	stub = append(stub, 0x00, 0x00) // end of program

	return addr, stub
}
