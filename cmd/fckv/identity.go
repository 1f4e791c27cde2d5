// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package main

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/minio/fckv/internal/cli"
	"github.com/minio/fckv/internal/https"
	flag "github.com/spf13/pflag"
)

const identityCmdUsage = `Usage:
    fckv identity <command>

Commands:
    new                      Create a new RSA private key and certificate.
    of                       Compute the identity of a certificate.

Options:
    -h, --help               Print command line options.
`

func identityCmd(args []string) {
	subCmds := commands{
		"new": newIdentityCmd,
		"of":  ofIdentityCmd,
	}
	runCommand(subCmds, identityCmdUsage, args)
}

const newIdentityCmdUsage = `Usage:
    fckv identity new [options] <KEY> <CERT>

Creates a new RSA-2048 private key and a self-signed certificate
and writes them to the files KEY and CERT. The identity of the
certificate is printed to STDOUT.

Options:
    --name <NAME>            The certificate subject common name.
    --ip <IP>                Add an IP address as subject alternative name.
    --dns <DOMAIN>           Add a domain as subject alternative name.
    --expiry <DURATION>      Duration until the certificate expires.
                             (default: 720h)
    -f, --force              Overwrite existing files.

    -h, --help               Print command line options.

Examples:
    $ fckv identity new --name alice alice.key alice.crt
    $ fckv identity new --ip 127.0.0.1 --dns localhost server.key server.crt
`

func newIdentityCmd(args []string) {
	cmd := flag.NewFlagSet(args[0], flag.ContinueOnError)
	cmd.Usage = func() { fmt.Fprint(os.Stderr, newIdentityCmdUsage) }

	var (
		nameFlag   string
		ipFlag     []net.IP
		dnsFlag    []string
		expiryFlag time.Duration
		forceFlag  bool
	)
	cmd.StringVar(&nameFlag, "name", "fckv", "The certificate subject common name")
	cmd.IPSliceVar(&ipFlag, "ip", nil, "Add an IP address as subject alternative name")
	cmd.StringSliceVar(&dnsFlag, "dns", nil, "Add a domain as subject alternative name")
	cmd.DurationVar(&expiryFlag, "expiry", 720*time.Hour, "Duration until the certificate expires")
	cmd.BoolVarP(&forceFlag, "force", "f", false, "Overwrite existing files")
	parseFlags(cmd, args)

	switch {
	case cmd.NArg() < 2:
		cli.Fatal("no private key or certificate file specified. See 'fckv identity new --help'")
	case cmd.NArg() > 2:
		cli.Fatal("too many arguments. See 'fckv identity new --help'")
	}
	if expiryFlag <= 0 {
		cli.Fatalf("invalid certificate expiry '%v'", expiryFlag)
	}

	keyFile, certFile := cmd.Arg(0), cmd.Arg(1)
	if !forceFlag {
		if _, err := os.Stat(keyFile); err == nil {
			cli.Fatalf("private key '%s' already exists. Use --force to overwrite it", keyFile)
		}
		if _, err := os.Stat(certFile); err == nil {
			cli.Fatalf("certificate '%s' already exists. Use --force to overwrite it", certFile)
		}
	}

	key, err := https.GenerateKey()
	if err != nil {
		cli.Fatalf("failed to generate private key: %v", err)
	}
	cert, err := https.NewCertificate(key, &https.CertificateConfig{
		CommonName: nameFlag,
		DNSNames:   dnsFlag,
		IPs:        ipFlag,
		Expiry:     expiryFlag,
	})
	if err != nil {
		cli.Fatalf("failed to create certificate: %v", err)
	}
	if forceFlag {
		os.Remove(keyFile)
		os.Remove(certFile)
	}
	if err = https.WriteCertificateFiles(keyFile, certFile, cert); err != nil {
		cli.Fatal(err)
	}

	identity := https.Identity(cert.Leaf)
	if cli.IsTerminal() {
		fmt.Println(color.New(color.Bold).Sprint("Identity: ") + color.CyanString(identity))
		return
	}
	fmt.Println(identity)
}

const ofIdentityCmdUsage = `Usage:
    fckv identity of <CERT>...

Computes the identity of each certificate. An identity is the
hex-encoded SHA-256 hash of the certificate's public key.

Options:
    -h, --help               Print command line options.

Examples:
    $ fckv identity of alice.crt
`

func ofIdentityCmd(args []string) {
	cmd := flag.NewFlagSet(args[0], flag.ContinueOnError)
	cmd.Usage = func() { fmt.Fprint(os.Stderr, ofIdentityCmdUsage) }
	parseFlags(cmd, args)

	if cmd.NArg() == 0 {
		cli.Fatal("no certificate specified. See 'fckv identity of --help'")
	}
	for _, filename := range cmd.Args() {
		cert, err := readCertificate(filename)
		if err != nil {
			cli.Fatal(err)
		}
		identity := https.Identity(cert)
		switch {
		case cmd.NArg() == 1:
			fmt.Println(identity)
		case cli.IsTerminal():
			fmt.Println(color.CyanString(identity), " ", filename)
		default:
			fmt.Println(identity, filename)
		}
	}
}

func readCertificate(filename string) (*x509.Certificate, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	for len(b) > 0 {
		var block *pem.Block
		if block, b = pem.Decode(b); block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			return x509.ParseCertificate(block.Bytes)
		}
	}
	return nil, errors.New("no PEM-encoded certificate found in '" + filename + "'")
}
