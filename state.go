// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package fckv

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/tinylib/msgp/msgp"
)

// ClientState is the state a client carries from one operation
// to the next: the version record it has accepted most recently.
//
// A client detects a forked history only if it remembers its own
// history. Applications that create a new Client per process, like
// CLIs, should persist the ClientState after every operation and
// restore it via ClientConfig.State.
type ClientState struct {
	// Accepted is the binary-encoded version record the client
	// committed last. It is empty if the client has not
	// committed any operation yet.
	Accepted []byte
}

// stateVersion is the version of the binary ClientState encoding.
const stateVersion = 1

// MarshalBinary returns the binary encoding of s.
func (s *ClientState) MarshalBinary() ([]byte, error) {
	b := msgp.AppendArrayHeader(nil, 2)
	b = msgp.AppendUint(b, stateVersion)
	return msgp.AppendBytes(b, s.Accepted), nil
}

// UnmarshalBinary decodes s from its binary encoding.
func (s *ClientState) UnmarshalBinary(b []byte) error {
	items, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return err
	}
	if items != 2 {
		return errors.New("fckv: invalid client state: invalid number of items")
	}
	version, b, err := msgp.ReadUintBytes(b)
	if err != nil {
		return err
	}
	if version != stateVersion {
		return errors.New("fckv: invalid client state: unsupported version")
	}
	accepted, b, err := msgp.ReadBytesBytes(b, nil)
	if err != nil {
		return err
	}
	if len(b) != 0 {
		return errors.New("fckv: invalid client state: trailing data")
	}
	s.Accepted = accepted
	return nil
}

// ReadStateFile reads a ClientState from the given file.
func ReadStateFile(filename string) (*ClientState, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var state ClientState
	if err = state.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return &state, nil
}

// WriteStateFile writes the ClientState to the given file.
// It creates the parent directory if it does not exist.
// The file is replaced atomically.
func WriteStateFile(filename string, state *ClientState) error {
	b, err := state.MarshalBinary()
	if err != nil {
		return err
	}

	dir := filepath.Dir(filename)
	if err = os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	file, err := os.CreateTemp(dir, filepath.Base(filename)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(file.Name())

	if _, err = file.Write(b); err != nil {
		file.Close()
		return err
	}
	if err = file.Sync(); err != nil {
		file.Close()
		return err
	}
	if err = file.Close(); err != nil {
		return err
	}
	return os.Rename(file.Name(), filename)
}
