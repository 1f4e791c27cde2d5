// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package fckv

import (
	"fmt"
	"strings"
)

// TamperMode is a fault injected into a server to simulate
// a dishonest server. It exists for testing whether clients
// detect server misbehavior.
type TamperMode uint32

// Supported tamper modes.
const (
	// TamperNone disables fault injection.
	TamperNone TamperMode = iota

	// TamperHideUpdate makes the server acknowledge content
	// writes without storing the content.
	TamperHideUpdate

	// TamperBadData replaces the content at a given hash with
	// empty content. It is applied once and does not change
	// the mode of subsequent writes.
	TamperBadData
)

// ParseTamperMode parses s as TamperMode.
func ParseTamperMode(s string) (TamperMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "0":
		return TamperNone, nil
	case "hide-update", "1":
		return TamperHideUpdate, nil
	case "bad-data", "2":
		return TamperBadData, nil
	default:
		return 0, fmt.Errorf("fckv: invalid tamper mode '%s'", s)
	}
}

// String returns the string representation of m.
func (m TamperMode) String() string {
	switch m {
	case TamperNone:
		return "none"
	case TamperHideUpdate:
		return "hide-update"
	case TamperBadData:
		return "bad-data"
	default:
		return fmt.Sprintf("TamperMode(%d)", uint32(m))
	}
}
