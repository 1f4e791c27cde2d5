// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/minio/fckv/internal/cli"
	"github.com/minio/fckv/internal/sys"
	flag "github.com/spf13/pflag"
)

const usage = `Usage:
    fckv [options] <command>

Commands:
    server                   Start a FCKV server.

    put                      Write a value.
    get                      Read a value.
    ls                       List all keys.
    status                   Print server status information.

    identity                 Create and compute client identities.
    tamper                   Instruct a server to lie. Only for testing.

Options:
    -v, --version            Print version information.
    -h, --help               Print command line options.
`

func main() {
	if len(os.Args) < 1 {
		os.Exit(1)
	}

	subCmds := commands{
		"server": serverCmd,

		"put":    putCmd,
		"get":    getCmd,
		"ls":     lsCmd,
		"status": statusCmd,

		"identity": identityCmd,
		"tamper":   tamperCmd,
	}

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if cmd, ok := subCmds[os.Args[1]]; ok {
		cmd(os.Args[1:])
		return
	}

	cmd := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	cmd.Usage = func() { fmt.Fprint(os.Stderr, usage) }

	var showVersion bool
	cmd.BoolVarP(&showVersion, "version", "v", false, "Print version information.")
	if err := cmd.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		cli.Fatalf("%v. See 'fckv --help'", err)
	}
	if showVersion {
		info := sys.BinaryInfo()
		fmt.Printf("fckv %s (commit=%s)\n", info.Version, info.CommitID)
		return
	}
	cli.Fatalf("%q is not a fckv command. See 'fckv --help'", cmd.Arg(0))
}

type commands = map[string]func([]string)

// runCommand dispatches to the sub command named by args[1].
func runCommand(subCmds commands, usage string, args []string) {
	if len(args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if cmd, ok := subCmds[args[1]]; ok {
		cmd(args[1:])
		return
	}
	if args[1] == "-h" || args[1] == "--help" {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cli.Fatalf("%q is not a %s command. See 'fckv %s --help'", args[1], args[0], args[0])
}
