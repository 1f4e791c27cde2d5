// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

// Package sys reports build and runtime information
// of the running process.
package sys

import (
	"runtime"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/blang/semver/v4"
)

// Fallbacks for binaries built without version or VCS information.
const (
	DevVersion    = "v0.0.0-dev"
	UnknownCommit = "<unknown>"
)

// BuildInfo identifies the build of a binary.
type BuildInfo struct {
	Version  string // Semantic version, DevVersion if unknown
	CommitID string // VCS revision, UnknownCommit if unknown
	Modified bool   // Built from a dirty working tree
}

// BinaryInfo returns the BuildInfo of the running binary.
//
// The version is taken from a 'version=<semver>' build tag,
// e.g. go build -tags version=v1.2.0, or from the main module
// version when the binary was installed via go install.
var BinaryInfo = sync.OnceValue(func() BuildInfo {
	info, _ := debug.ReadBuildInfo()
	return parseBuildInfo(info)
})

// RuntimeInfo is a snapshot of the Go runtime state.
type RuntimeInfo struct {
	OS         string
	Arch       string
	CPUs       int
	UsableCPUs int
	HeapAlloc  uint64
	StackAlloc uint64
}

// ReadRuntimeInfo returns the current RuntimeInfo.
func ReadRuntimeInfo() RuntimeInfo {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return RuntimeInfo{
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		CPUs:       runtime.NumCPU(),
		UsableCPUs: runtime.GOMAXPROCS(0),
		HeapAlloc:  stats.HeapAlloc,
		StackAlloc: stats.StackSys,
	}
}

func parseBuildInfo(info *debug.BuildInfo) BuildInfo {
	build := BuildInfo{Version: DevVersion, CommitID: UnknownCommit}
	if info == nil {
		return build
	}
	if isVersion(info.Main.Version) {
		build.Version = info.Main.Version
	}

	for _, s := range info.Settings {
		switch s.Key {
		case "-tags":
			for _, tag := range strings.Split(s.Value, ",") {
				if v, ok := strings.CutPrefix(tag, "version="); ok && isVersion(v) {
					build.Version = v
				}
			}
		case "vcs.revision":
			build.CommitID = s.Value
		case "vcs.modified":
			build.Modified = s.Value == "true"
		}
	}
	return build
}

// isVersion reports whether v is a semantic version
// other than the "(devel)" placeholder of the go tool.
func isVersion(v string) bool {
	if v == "" || v == "(devel)" {
		return false
	}
	_, err := semver.ParseTolerant(v)
	return err == nil
}
