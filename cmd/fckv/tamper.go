// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/minio/fckv"
	"github.com/minio/fckv/internal/cli"
	"github.com/minio/fckv/internal/hash"
	flag "github.com/spf13/pflag"
)

const tamperCmdUsage = `Usage:
    fckv tamper [options] <MODE> [<HASH>]

Instructs a server to misbehave. The server must have tampering
enabled and the client must be the server admin. Tampering must
only be used for testing.

Modes:
    none                     Store content writes again.
    hide-update              Acknowledge content writes without storing them.
    bad-data                 Replace the content with the given HASH by empty
                             content.

Options:
    -k, --insecure           Skip server certificate verification.
    -h, --help               Print command line options.

Examples:
    $ fckv tamper hide-update
    $ fckv tamper bad-data 3981292810029201918
`

func tamperCmd(args []string) {
	cmd := flag.NewFlagSet(args[0], flag.ContinueOnError)
	cmd.Usage = func() { fmt.Fprint(os.Stderr, tamperCmdUsage) }

	var insecureSkipVerify bool
	flagsInsecureSkipVerify(cmd, &insecureSkipVerify)
	parseFlags(cmd, args)

	switch {
	case cmd.NArg() == 0:
		cli.Fatal("no tamper mode specified. See 'fckv tamper --help'")
	case cmd.NArg() > 2:
		cli.Fatal("too many arguments. See 'fckv tamper --help'")
	}

	mode, err := fckv.ParseTamperMode(cmd.Arg(0))
	if err != nil {
		cli.Fatal(err)
	}
	var sum hash.Sum
	switch {
	case mode == fckv.TamperBadData && cmd.NArg() != 2:
		cli.Fatal("no content hash specified. See 'fckv tamper --help'")
	case mode != fckv.TamperBadData && cmd.NArg() == 2:
		cli.Fatalf("tamper mode '%v' does not accept a content hash", mode)
	case cmd.NArg() == 2:
		if sum, err = hash.Parse(cmd.Arg(1)); err != nil {
			cli.Fatalf("invalid content hash '%s': %v", cmd.Arg(1), err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancel()

	client := newClient(insecureSkipVerify)
	if err = client.Tamper(ctx, mode, sum); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(1)
		}
		cli.Fatalf("failed to tamper: %v", err)
	}
}
