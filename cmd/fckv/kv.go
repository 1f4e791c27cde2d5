// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"aead.dev/mem"
	"github.com/fatih/color"
	"github.com/minio/fckv"
	"github.com/minio/fckv/internal/cli"
	"github.com/minio/fckv/internal/log"
	flag "github.com/spf13/pflag"
)

const putCmdUsage = `Usage:
    fckv put [options] <KEY> [<VALUE>]

Writes the VALUE to the KEY. If no VALUE is specified, the
value is read from STDIN.

Options:
    -k, --insecure           Skip server certificate verification.
    -h, --help               Print command line options.

Examples:
    $ fckv put 100 20
    $ cat value.bin | fckv put my-key
`

func putCmd(args []string) {
	cmd := flag.NewFlagSet(args[0], flag.ContinueOnError)
	cmd.Usage = func() { fmt.Fprint(os.Stderr, putCmdUsage) }

	var insecureSkipVerify bool
	flagsInsecureSkipVerify(cmd, &insecureSkipVerify)
	parseFlags(cmd, args)

	switch {
	case cmd.NArg() == 0:
		cli.Fatal("no key specified. See 'fckv put --help'")
	case cmd.NArg() > 2:
		cli.Fatal("too many arguments. See 'fckv put --help'")
	}

	key := cmd.Arg(0)
	var value []byte
	if cmd.NArg() == 2 {
		value = []byte(cmd.Arg(1))
	} else {
		var err error
		if value, err = io.ReadAll(mem.LimitReader(os.Stdin, fckv.MaxValueSize+1)); err != nil {
			cli.Fatalf("failed to read value: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancel()

	client := newClient(insecureSkipVerify)
	if err := client.Put(ctx, key, value); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(1)
		}
		cli.Fatalf("failed to write '%s': %v", key, err)
	}
}

const getCmdUsage = `Usage:
    fckv get [options] <KEY>

Reads the value of the KEY and writes it to STDOUT.

Options:
    -k, --insecure           Skip server certificate verification.
    -h, --help               Print command line options.

Examples:
    $ fckv get 100
`

func getCmd(args []string) {
	cmd := flag.NewFlagSet(args[0], flag.ContinueOnError)
	cmd.Usage = func() { fmt.Fprint(os.Stderr, getCmdUsage) }

	var insecureSkipVerify bool
	flagsInsecureSkipVerify(cmd, &insecureSkipVerify)
	parseFlags(cmd, args)

	switch {
	case cmd.NArg() == 0:
		cli.Fatal("no key specified. See 'fckv get --help'")
	case cmd.NArg() > 1:
		cli.Fatal("too many arguments. See 'fckv get --help'")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancel()

	key := cmd.Arg(0)
	client := newClient(insecureSkipVerify)
	value, err := client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(1)
		}
		cli.Fatalf("failed to read '%s': %v", key, err)
	}
	os.Stdout.Write(value)
	if cli.IsTerminal() {
		fmt.Println()
	}
}

const lsCmdUsage = `Usage:
    fckv ls [options]

Lists all keys.

Options:
    -k, --insecure           Skip server certificate verification.
        --json               Print keys in JSON format.
    -h, --help               Print command line options.
`

func lsCmd(args []string) {
	cmd := flag.NewFlagSet(args[0], flag.ContinueOnError)
	cmd.Usage = func() { fmt.Fprint(os.Stderr, lsCmdUsage) }

	var (
		insecureSkipVerify bool
		jsonFlag           bool
	)
	flagsInsecureSkipVerify(cmd, &insecureSkipVerify)
	flagsOutputJSON(cmd, &jsonFlag)
	parseFlags(cmd, args)
	if cmd.NArg() > 0 {
		cli.Fatal("too many arguments. See 'fckv ls --help'")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancel()

	client := newClient(insecureSkipVerify)
	keys, err := client.Keys(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(1)
		}
		cli.Fatalf("failed to list keys: %v", err)
	}

	if jsonFlag {
		if keys == nil {
			keys = []string{}
		}
		json.NewEncoder(os.Stdout).Encode(keys)
		return
	}
	if len(keys) == 0 {
		return
	}
	if cli.IsTerminal() {
		fmt.Println(color.New(color.Bold, color.Underline).Sprint("Key"))
	}
	for _, key := range keys {
		fmt.Println(key)
	}
}

// clientLog returns a log handler that writes client warnings,
// like detected forks, to STDERR.
func clientLog() slog.Handler {
	return log.NewHandler(os.Stderr, log.TextFormat, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})
}
