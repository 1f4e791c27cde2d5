// Copyright 2024 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package cli

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

var isTerm = term.IsTerminal(int(os.Stdout.Fd())) || term.IsTerminal(int(os.Stderr.Fd()))

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool { return isTerm }

// ReadPassword prints the prompt to stderr and reads a
// password from the terminal without echoing it. It fails
// if stdin is not a terminal.
func ReadPassword(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("cli: cannot read password: stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)
	return term.ReadPassword(fd)
}
