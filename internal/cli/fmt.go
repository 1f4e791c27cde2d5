// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

var errPrefix = color.New(color.FgRed, color.Bold).Sprint("Error: ")

// Fatal prints an error prefix and the operands to
// STDERR and exits the program with exit code 1.
func Fatal(v ...any) {
	fmt.Fprintln(os.Stderr, errPrefix+fmt.Sprint(v...))
	os.Exit(1)
}

// Fatalf is like Fatal but formats the operands
// according to the format specifier.
func Fatalf(format string, v ...any) {
	fmt.Fprintln(os.Stderr, errPrefix+fmt.Sprintf(format, v...))
	os.Exit(1)
}
