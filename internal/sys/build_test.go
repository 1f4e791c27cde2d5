// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package sys

import (
	"runtime/debug"
	"testing"
)

var parseBuildInfoTests = []struct {
	Main     string
	Settings []debug.BuildSetting
	Info     BuildInfo
}{
	{ // 0
		Info: BuildInfo{Version: DevVersion, CommitID: UnknownCommit},
	},
	{ // 1
		Settings: []debug.BuildSetting{
			{Key: "-tags", Value: "netgo,version=v1.2.3"},
			{Key: "vcs.revision", Value: "8f1c2e"},
			{Key: "vcs.modified", Value: "true"},
		},
		Info: BuildInfo{Version: "v1.2.3", CommitID: "8f1c2e", Modified: true},
	},
	{ // 2
		Settings: []debug.BuildSetting{
			{Key: "-tags", Value: "version=not-a-version"},
		},
		Info: BuildInfo{Version: DevVersion, CommitID: UnknownCommit},
	},
	{ // 3
		Main: "v0.4.1",
		Info: BuildInfo{Version: "v0.4.1", CommitID: UnknownCommit},
	},
	{ // 4
		Main: "(devel)",
		Info: BuildInfo{Version: DevVersion, CommitID: UnknownCommit},
	},
	{ // 5
		Main: "v0.4.1",
		Settings: []debug.BuildSetting{
			{Key: "-tags", Value: "version=v0.5.0"},
		},
		Info: BuildInfo{Version: "v0.5.0", CommitID: UnknownCommit},
	},
}

func TestParseBuildInfo(t *testing.T) {
	for i, test := range parseBuildInfoTests {
		info := parseBuildInfo(&debug.BuildInfo{
			Main:     debug.Module{Version: test.Main},
			Settings: test.Settings,
		})
		if info != test.Info {
			t.Fatalf("Test %d: got %+v - want %+v", i, info, test.Info)
		}
	}
	if info := parseBuildInfo(nil); info.Version != DevVersion {
		t.Fatalf("got '%s' - want '%s'", info.Version, DevVersion)
	}
}
