// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package cli

import (
	"strings"
	"testing"
)

func TestStartupMessage(t *testing.T) {
	msg := startupMessage(StartupInfo{
		Version: "v0.1.0",
		Addr:    "127.0.0.1:7373",
		Store:   "mem",
		Verify:  "none",
		Lease:   "30s",
		Tamper:  true,
	}, false)

	for _, want := range []string{
		"Endpoint    https://127.0.0.1:7373",
		"Admin       _",
		"[ disabled ]",
		"Tamper      enabled",
		"$ export " + EnvServer + "=127.0.0.1:7373",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("startup message does not contain '%s':\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "\x1b[") {
		t.Fatalf("startup message contains escape sequences:\n%s", msg)
	}
}
