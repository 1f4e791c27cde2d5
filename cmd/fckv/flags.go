// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/minio/fckv"
	"github.com/minio/fckv/internal/cli"
	"github.com/minio/fckv/internal/https"
	flag "github.com/spf13/pflag"
)

// flagsInsecureSkipVerify adds a bool flag '-k, --insecure'
// that sets insecureSkipVerify to true if provided on the
// command line.
func flagsInsecureSkipVerify(f *flag.FlagSet, insecureSkipVerify *bool) {
	f.BoolVarP(insecureSkipVerify, "insecure", "k", false, "Skip server certificate verification")
}

func flagsOutputJSON(f *flag.FlagSet, jsonOutput *bool) {
	f.BoolVar(jsonOutput, "json", false, "Print output in JSON format")
}

// parseFlags parses the command line arguments and exits
// if parsing fails or the help flag has been provided.
func parseFlags(cmd *flag.FlagSet, args []string) {
	if err := cmd.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		cli.Fatalf("%v. See 'fckv %s --help'", err, cmd.Name())
	}
}

// client is a fckv.Client that persists its state.
type client struct {
	*fckv.Client

	stateFile string
}

// newClient returns a new client using the certificate, endpoint
// and state file referenced by the environment.
func newClient(insecureSkipVerify bool) *client {
	endpoint, err := cli.EndpointFromEnv()
	if err != nil {
		cli.Fatal(err)
	}
	cert, err := cli.CertificateFromEnv(func() ([]byte, error) {
		return cli.ReadPassword("Enter password for private key: ")
	})
	if err != nil {
		cli.Fatal(err)
	}
	rootCAs, err := cli.RootCAsFromEnv()
	if err != nil {
		cli.Fatal(err)
	}

	stateFile, err := cli.StateFileFromEnv(https.Identity(cert.Leaf))
	if err != nil {
		cli.Fatalf("failed to determine client state file: %v", err)
	}
	state, err := fckv.ReadStateFile(stateFile)
	if errors.Is(err, fs.ErrNotExist) {
		state, err = &fckv.ClientState{}, nil
	}
	if err != nil {
		cli.Fatalf("failed to read client state '%s': %v", stateFile, err)
	}

	c, err := fckv.NewClient(&fckv.ClientConfig{
		Endpoint:           endpoint,
		Certificate:        cert,
		RootCAs:            rootCAs,
		InsecureSkipVerify: insecureSkipVerify,
		Log:                clientLog(),
		State:              state,
	})
	if err != nil {
		cli.Fatal(err)
	}
	return &client{
		Client:    c,
		stateFile: stateFile,
	}
}

// Put writes the value and stores the new client state.
func (c *client) Put(ctx context.Context, key string, value []byte) error {
	err := c.Client.Put(ctx, key, value)
	c.saveState()
	return err
}

// Get reads the value and stores the new client state.
func (c *client) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.Client.Get(ctx, key)
	c.saveState()
	return value, err
}

// Keys lists all keys and stores the new client state.
func (c *client) Keys(ctx context.Context) ([]string, error) {
	keys, err := c.Client.Keys(ctx)
	c.saveState()
	return keys, err
}

func (c *client) saveState() {
	if err := fckv.WriteStateFile(c.stateFile, c.State()); err != nil {
		cli.Fatalf("failed to write client state '%s': %v", c.stateFile, err)
	}
}
