// Copyright 2024 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package cli

// Environment variable used by the FCKV CLI.
const (
	// EnvServer is the server endpoint the client uses. If not set,
	// clients will use '127.0.0.1:7474'.
	EnvServer = "FCKV_SERVER"

	// EnvPrivateKey and EnvCertificate are the paths to the client's
	// private key and X.509 certificate. The client identity is the
	// hash of the key's public key.
	EnvPrivateKey  = "FCKV_CLIENT_KEY"
	EnvCertificate = "FCKV_CLIENT_CERT"

	// EnvCA is an optional path to the CA certificate(s) used to
	// verify the server certificate.
	EnvCA = "FCKV_CA"

	// EnvState is the path of the file that stores the client's
	// accepted version record. If not set, clients use
	// '~/.fckv/<identity>.state'.
	EnvState = "FCKV_STATE"
)
