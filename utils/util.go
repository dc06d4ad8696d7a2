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

package utils

import (
	"bytes"
	"fmt"
	"os/exec"
)

// Assert panics on true internal-invariant violations — bugs in the
// compiler itself, never a user-facing compile diagnostic. Compile errors
// belong in a diag.Sink, not here.
func Assert(cond bool, format string, msg ...interface{}) {
	if !cond {
		panic(fmt.Sprintf(format, msg...))
	}
}

func ShouldNotReachHere() {
	panic("should not reach here")
}

func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func Max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func CommandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}

// ExecuteCmd runs args[0] with the remaining args as a subprocess in
// workDir, returning combined stdout and any failure as an error instead of
// exiting the process — the ACME subprocess step (spec §6.4) is a
// diagnostic-reportable failure (exit code 4), never an internal panic.
func ExecuteCmd(workDir string, args ...string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("no command given")
	}
	if !CommandExists(args[0]) {
		return "", fmt.Errorf("%s not found on PATH", args[0])
	}
	cmd := exec.Command(args[0], args[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Dir = workDir

	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("%s failed: %w\nstderr:\n%s", args[0], err, stderr.String())
	}
	return stdout.String(), nil
}
